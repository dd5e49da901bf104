package gateway

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/teamf/dresshop/internal/auth"
)

// Handler terminates sessions at the edge: it verifies the bearer
// token, replaces any client-supplied identity headers with verified
// ones, and forwards to the storefront API.
type Handler struct {
	apiProxy *ServiceProxy
	verifier *SessionVerifier
	logger   *slog.Logger
}

func NewHandler(apiProxy *ServiceProxy, verifier *SessionVerifier, logger *slog.Logger) *Handler {
	return &Handler{
		apiProxy: apiProxy,
		verifier: verifier,
		logger:   logger,
	}
}

// HandlePublic forwards without requiring a session. Identity headers
// are stripped so anonymous callers cannot forge them.
func (h *Handler) HandlePublic(w http.ResponseWriter, r *http.Request) {
	for _, header := range identityHeaders {
		r.Header.Del(header)
	}
	h.proxy(w, r)
}

// HandleAuthed verifies the bearer token before forwarding.
func (h *Handler) HandleAuthed(w http.ResponseWriter, r *http.Request) {
	token, ok := bearerToken(r)
	if !ok {
		h.writeError(w, http.StatusUnauthorized, "missing bearer token")
		return
	}

	id, err := h.verifier.Verify(token, time.Now())
	if err != nil {
		if errors.Is(err, ErrExpiredToken) {
			h.writeError(w, http.StatusUnauthorized, "session expired")
			return
		}
		h.writeError(w, http.StatusUnauthorized, "invalid session")
		return
	}

	r.Header.Set(auth.HeaderUserID, id.UserID)
	r.Header.Set(auth.HeaderAdmin, strconv.FormatBool(id.Admin))
	h.proxy(w, r)
}

func (h *Handler) proxy(w http.ResponseWriter, r *http.Request) {
	path := r.URL.Path
	if r.URL.RawQuery != "" {
		path += "?" + r.URL.RawQuery
	}

	resp, err := h.apiProxy.Forward(r.Context(), r.Method, path, r.Body, r.Header)
	if err != nil {
		h.logger.Error("failed to forward request", "error", err, "path", r.URL.Path)
		h.writeError(w, http.StatusBadGateway, "service unavailable")
		return
	}
	defer func() { _ = resp.Body.Close() }()

	if contentType := resp.Header.Get("Content-Type"); contentType != "" {
		w.Header().Set("Content-Type", contentType)
	}

	w.WriteHeader(resp.StatusCode)

	h.logger.Info("request proxied", "method", r.Method, "path", r.URL.Path, "status", resp.StatusCode)

	if _, err := io.Copy(w, resp.Body); err != nil {
		h.logger.Error("failed to copy response body", "error", err)
	}
}

func bearerToken(r *http.Request) (string, bool) {
	header := r.Header.Get("Authorization")
	token, ok := strings.CutPrefix(header, "Bearer ")
	if !ok || token == "" {
		return "", false
	}
	return token, true
}

func (h *Handler) writeError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(map[string]string{"error": message}); err != nil {
		h.logger.Error("failed to encode error response", "error", err)
	}
}
