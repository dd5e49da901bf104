package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	_ "github.com/lib/pq"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/teamf/dresshop/internal/addresses"
	"github.com/teamf/dresshop/internal/auth"
	"github.com/teamf/dresshop/internal/catalog"
	"github.com/teamf/dresshop/internal/inventory"
	"github.com/teamf/dresshop/internal/messaging"
	"github.com/teamf/dresshop/internal/orders"
	"github.com/teamf/dresshop/internal/payments"
	"github.com/teamf/dresshop/internal/telemetry"
	"github.com/teamf/dresshop/internal/users"
)

func main() {
	ctx := context.Background()
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))

	shutdownTracer, err := telemetry.InitTracerProvider(ctx, "storefront-api", "0.1.0")
	if err != nil {
		logger.Error("failed to initialize tracer", "error", err)
		os.Exit(1)
	}
	defer func() { _ = shutdownTracer(ctx) }()

	metricsHandler, shutdownMeter, err := telemetry.InitMeterProvider("storefront-api", "0.1.0")
	if err != nil {
		logger.Error("failed to initialize meter", "error", err)
		os.Exit(1)
	}
	defer func() { _ = shutdownMeter(ctx) }()

	postgresURL := os.Getenv("POSTGRES_URL")
	if postgresURL == "" {
		logger.Error("POSTGRES_URL environment variable is required")
		os.Exit(1)
	}

	db, err := telemetry.OpenDB(postgresURL)
	if err != nil {
		logger.Error("failed to open database", "error", err)
		os.Exit(1)
	}
	defer func() { _ = db.Close() }()

	if err := db.Ping(); err != nil {
		logger.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}

	var publisher orders.Publisher
	if kafkaBrokers := os.Getenv("KAFKA_BROKERS"); kafkaBrokers != "" {
		producer := messaging.NewProducer(strings.Split(kafkaBrokers, ","))
		defer func() { _ = producer.Close() }()
		publisher = producer
	} else {
		logger.Warn("KAFKA_BROKERS not set, event publishing disabled")
	}

	ledger := inventory.NewLedger()
	orderService := orders.NewService(db, orders.NewRepository(db), ledger, publisher, logger)
	paymentService := payments.NewService(db, payments.NewRepository(db), orderService, payments.StubCharger{}, publisher, logger)

	catalogHandler := catalog.NewHandler(catalog.NewRepository(db), logger)
	addressHandler := addresses.NewHandler(addresses.NewRepository(db), logger)
	userHandler := users.NewHandler(users.NewRepository(db), logger)
	orderHandler := orders.NewHandler(orderService, logger)
	paymentHandler := payments.NewHandler(paymentService, logger)
	stockHandler := inventory.NewHandler(inventory.NewRepository(db), logger)

	mux := http.NewServeMux()
	mux.Handle("GET /metrics", metricsHandler)
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	route := func(pattern string, h http.HandlerFunc) {
		mux.HandleFunc(pattern, telemetry.WithHTTPRoute(h))
	}

	route("GET /dresses", catalogHandler.HandleListDresses)
	route("GET /dresses/{id}", catalogHandler.HandleGetDress)
	route("GET /categories/parents", catalogHandler.HandleListParentCategories)
	route("GET /categories/children", catalogHandler.HandleListChildCategories)

	route("GET /users/profile", auth.Require(userHandler.HandleProfile))
	route("PUT /users/profile", auth.Require(userHandler.HandleUpdateProfile))

	route("GET /addresses", auth.Require(addressHandler.HandleList))
	route("POST /addresses", auth.Require(addressHandler.HandleCreate))
	route("GET /addresses/{id}", auth.Require(addressHandler.HandleGet))
	route("PUT /addresses/{id}", auth.Require(addressHandler.HandleUpdate))
	route("DELETE /addresses/{id}", auth.Require(addressHandler.HandleDelete))
	route("POST /addresses/{id}/default", auth.Require(addressHandler.HandleSetDefault))

	route("GET /orders", auth.Require(orderHandler.HandleList))
	route("POST /orders", auth.Require(orderHandler.HandlePlace))
	route("GET /orders/{id}", auth.Require(orderHandler.HandleGet))
	route("POST /orders/{id}/cancel", auth.Require(orderHandler.HandleCancel))

	route("GET /payments/{id}", auth.Require(paymentHandler.HandleGet))
	route("POST /payments/{id}/card", auth.Require(paymentHandler.HandleProcessCard))
	route("POST /payments/{id}/bank-transfer", auth.Require(paymentHandler.HandleProcessBankTransfer))
	route("POST /payments/{id}/cash-on-delivery", auth.Require(paymentHandler.HandleProcessCashOnDelivery))

	route("GET /admin/orders", auth.RequireAdmin(orderHandler.HandleAdminList))
	route("PATCH /admin/orders/{id}/status", auth.RequireAdmin(orderHandler.HandleAdminUpdateStatus))
	route("GET /admin/payments", auth.RequireAdmin(paymentHandler.HandleAdminList))
	route("POST /admin/payments/{id}/confirm", auth.RequireAdmin(paymentHandler.HandleAdminConfirm))
	route("POST /admin/payments/{id}/refund", auth.RequireAdmin(paymentHandler.HandleAdminRefund))
	route("POST /admin/dresses", auth.RequireAdmin(catalogHandler.HandleCreateDress))
	route("PUT /admin/dresses/{id}", auth.RequireAdmin(catalogHandler.HandleUpdateDress))
	route("DELETE /admin/dresses/{id}", auth.RequireAdmin(catalogHandler.HandleDeleteDress))
	route("POST /admin/categories/parents", auth.RequireAdmin(catalogHandler.HandleCreateParentCategory))
	route("POST /admin/categories/children", auth.RequireAdmin(catalogHandler.HandleCreateChildCategory))
	route("DELETE /admin/categories/children/{id}", auth.RequireAdmin(catalogHandler.HandleDeleteChildCategory))
	route("GET /admin/users", auth.RequireAdmin(userHandler.HandleAdminList))
	route("GET /admin/users/{id}", auth.RequireAdmin(userHandler.HandleAdminGet))
	route("GET /admin/stock", auth.RequireAdmin(stockHandler.HandleListStock))
	route("GET /admin/stock/{dressId}", auth.RequireAdmin(stockHandler.HandleGetStock))

	port := os.Getenv("PORT")
	if port == "" {
		port = "8081"
	}

	server := &http.Server{
		Addr: ":" + port,
		Handler: otelhttp.NewHandler(mux, "storefront-api",
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
		logger.Info("starting storefront api", "port", port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown error", "error", err)
		os.Exit(1)
	}
}
