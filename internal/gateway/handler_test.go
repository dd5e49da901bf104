package gateway

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/teamf/dresshop/internal/auth"
)

func testHandler(t *testing.T, upstream http.HandlerFunc) (*Handler, *SessionVerifier, *httptest.Server) {
	t.Helper()
	server := httptest.NewServer(upstream)
	t.Cleanup(server.Close)

	verifier := NewSessionVerifier("test-secret")
	handler := NewHandler(
		NewServiceProxy(server.URL, server.Client()),
		verifier,
		slog.New(slog.NewTextHandler(io.Discard, nil)),
	)
	return handler, verifier, server
}

func TestHandlePublic(t *testing.T) {
	t.Run("forwards and strips identity headers", func(t *testing.T) {
		handler, _, _ := testHandler(t, func(w http.ResponseWriter, r *http.Request) {
			if r.Header.Get(auth.HeaderUserID) != "" {
				t.Errorf("identity header leaked through: %q", r.Header.Get(auth.HeaderUserID))
			}
			if r.URL.Path != "/dresses" {
				t.Errorf("expected /dresses, got %s", r.URL.Path)
			}
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte(`[]`))
		})

		req := httptest.NewRequest(http.MethodGet, "/dresses", nil)
		req.Header.Set(auth.HeaderUserID, "forged-user")
		req.Header.Set(auth.HeaderAdmin, "true")
		rec := httptest.NewRecorder()

		handler.HandlePublic(rec, req)

		if rec.Code != http.StatusOK {
			t.Errorf("expected 200, got %d", rec.Code)
		}
		if rec.Header().Get("Content-Type") != "application/json" {
			t.Errorf("expected application/json, got %s", rec.Header().Get("Content-Type"))
		}
	})

	t.Run("forwards query string", func(t *testing.T) {
		handler, _, _ := testHandler(t, func(w http.ResponseWriter, r *http.Request) {
			if r.URL.RawQuery != "category=c1&in_stock=true" {
				t.Errorf("unexpected query: %s", r.URL.RawQuery)
			}
			w.WriteHeader(http.StatusOK)
		})

		req := httptest.NewRequest(http.MethodGet, "/dresses?category=c1&in_stock=true", nil)
		rec := httptest.NewRecorder()
		handler.HandlePublic(rec, req)

		if rec.Code != http.StatusOK {
			t.Errorf("expected 200, got %d", rec.Code)
		}
	})

	t.Run("returns 502 when upstream unavailable", func(t *testing.T) {
		handler := NewHandler(
			NewServiceProxy("http://localhost:1", &http.Client{}),
			NewSessionVerifier("test-secret"),
			slog.New(slog.NewTextHandler(io.Discard, nil)),
		)

		req := httptest.NewRequest(http.MethodGet, "/dresses", nil)
		rec := httptest.NewRecorder()
		handler.HandlePublic(rec, req)

		if rec.Code != http.StatusBadGateway {
			t.Errorf("expected 502, got %d", rec.Code)
		}

		var resp map[string]string
		if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
			t.Fatalf("failed to decode response: %v", err)
		}
		if resp["error"] != "service unavailable" {
			t.Errorf("expected 'service unavailable', got %s", resp["error"])
		}
	})
}

func TestHandleAuthed(t *testing.T) {
	t.Run("missing token", func(t *testing.T) {
		handler, _, _ := testHandler(t, func(w http.ResponseWriter, r *http.Request) {
			t.Error("upstream should not be reached")
		})

		req := httptest.NewRequest(http.MethodGet, "/orders", nil)
		rec := httptest.NewRecorder()
		handler.HandleAuthed(rec, req)

		if rec.Code != http.StatusUnauthorized {
			t.Errorf("expected 401, got %d", rec.Code)
		}
	})

	t.Run("garbage token", func(t *testing.T) {
		handler, _, _ := testHandler(t, func(w http.ResponseWriter, r *http.Request) {
			t.Error("upstream should not be reached")
		})

		req := httptest.NewRequest(http.MethodGet, "/orders", nil)
		req.Header.Set("Authorization", "Bearer not-a-token")
		rec := httptest.NewRecorder()
		handler.HandleAuthed(rec, req)

		if rec.Code != http.StatusUnauthorized {
			t.Errorf("expected 401, got %d", rec.Code)
		}
	})

	t.Run("expired token", func(t *testing.T) {
		handler, verifier, _ := testHandler(t, func(w http.ResponseWriter, r *http.Request) {
			t.Error("upstream should not be reached")
		})

		token := verifier.Sign(auth.Identity{UserID: "user-1"}, time.Now().Add(-time.Hour))
		req := httptest.NewRequest(http.MethodGet, "/orders", nil)
		req.Header.Set("Authorization", "Bearer "+token)
		rec := httptest.NewRecorder()
		handler.HandleAuthed(rec, req)

		if rec.Code != http.StatusUnauthorized {
			t.Errorf("expected 401, got %d", rec.Code)
		}
	})

	t.Run("valid token injects verified identity", func(t *testing.T) {
		handler, verifier, _ := testHandler(t, func(w http.ResponseWriter, r *http.Request) {
			if got := r.Header.Get(auth.HeaderUserID); got != "user-1" {
				t.Errorf("expected user-1, got %q", got)
			}
			if got := r.Header.Get(auth.HeaderAdmin); got != "false" {
				t.Errorf("expected admin=false, got %q", got)
			}
			body, _ := io.ReadAll(r.Body)
			if string(body) != `{"address_id":"a1"}` {
				t.Errorf("unexpected body: %s", body)
			}
			w.WriteHeader(http.StatusCreated)
		})

		token := verifier.Sign(auth.Identity{UserID: "user-1"}, time.Now().Add(time.Hour))
		req := httptest.NewRequest(http.MethodPost, "/orders", strings.NewReader(`{"address_id":"a1"}`))
		req.Header.Set("Authorization", "Bearer "+token)
		req.Header.Set(auth.HeaderUserID, "forged-user")
		req.Header.Set("Content-Type", "application/json")
		rec := httptest.NewRecorder()
		handler.HandleAuthed(rec, req)

		if rec.Code != http.StatusCreated {
			t.Errorf("expected 201, got %d", rec.Code)
		}
	})

	t.Run("preserves upstream error status", func(t *testing.T) {
		handler, verifier, _ := testHandler(t, func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusConflict)
			_, _ = w.Write([]byte(`{"error":"insufficient stock"}`))
		})

		token := verifier.Sign(auth.Identity{UserID: "user-1"}, time.Now().Add(time.Hour))
		req := httptest.NewRequest(http.MethodPost, "/orders", nil)
		req.Header.Set("Authorization", "Bearer "+token)
		rec := httptest.NewRecorder()
		handler.HandleAuthed(rec, req)

		if rec.Code != http.StatusConflict {
			t.Errorf("expected 409, got %d", rec.Code)
		}
	})
}
