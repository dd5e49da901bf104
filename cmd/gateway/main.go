package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/teamf/dresshop/internal/gateway"
	"github.com/teamf/dresshop/internal/telemetry"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

func main() {
	ctx := context.Background()
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))

	shutdownTracer, err := telemetry.InitTracerProvider(ctx, "gateway", "0.1.0")
	if err != nil {
		logger.Error("failed to initialize tracer", "error", err)
		os.Exit(1)
	}
	defer func() { _ = shutdownTracer(ctx) }()

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}

	apiURL := os.Getenv("API_URL")
	if apiURL == "" {
		logger.Error("API_URL is required")
		os.Exit(1)
	}

	sessionSecret := os.Getenv("SESSION_SECRET")
	if sessionSecret == "" {
		logger.Error("SESSION_SECRET is required")
		os.Exit(1)
	}

	httpClient := &http.Client{
		Timeout:   10 * time.Second,
		Transport: otelhttp.NewTransport(http.DefaultTransport),
	}

	apiProxy := gateway.NewServiceProxy(apiURL, httpClient)
	verifier := gateway.NewSessionVerifier(sessionSecret)
	handler := gateway.NewHandler(apiProxy, verifier, logger)

	public := telemetry.WithHTTPRoute(handler.HandlePublic)
	authed := telemetry.WithHTTPRoute(handler.HandleAuthed)

	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", public)
	mux.HandleFunc("GET /dresses", public)
	mux.HandleFunc("GET /dresses/{id}", public)
	mux.HandleFunc("GET /categories/parents", public)
	mux.HandleFunc("GET /categories/children", public)

	mux.HandleFunc("GET /users/profile", authed)
	mux.HandleFunc("PUT /users/profile", authed)
	mux.HandleFunc("GET /addresses", authed)
	mux.HandleFunc("POST /addresses", authed)
	mux.HandleFunc("GET /addresses/{id}", authed)
	mux.HandleFunc("PUT /addresses/{id}", authed)
	mux.HandleFunc("DELETE /addresses/{id}", authed)
	mux.HandleFunc("POST /addresses/{id}/default", authed)
	mux.HandleFunc("GET /orders", authed)
	mux.HandleFunc("POST /orders", authed)
	mux.HandleFunc("GET /orders/{id}", authed)
	mux.HandleFunc("POST /orders/{id}/cancel", authed)
	mux.HandleFunc("GET /payments/{id}", authed)
	mux.HandleFunc("POST /payments/{id}/card", authed)
	mux.HandleFunc("POST /payments/{id}/bank-transfer", authed)
	mux.HandleFunc("POST /payments/{id}/cash-on-delivery", authed)
	mux.HandleFunc("/admin/", authed)

	server := &http.Server{
		Addr: ":" + port,
		Handler: otelhttp.NewHandler(mux, "gateway",
			otelhttp.WithSpanNameFormatter(func(_ string, r *http.Request) string {
				if r.Pattern != "" {
					return r.Pattern
				}
				return r.Method + " " + r.URL.Path
			}),
		),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("starting gateway service", "port", port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	logger.Info("shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.Error("shutdown error", "error", err)
		os.Exit(1)
	}
}
