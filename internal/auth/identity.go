// Package auth carries the caller identity resolved at the edge.
//
// The gateway verifies the session token and injects the identity
// headers; the API trusts only those headers. Token issuance happens
// elsewhere.
package auth

import (
	"context"
	"net/http"
)

const (
	HeaderUserID = "X-User-Id"
	HeaderAdmin  = "X-Admin"
)

type Identity struct {
	UserID string
	Admin  bool
}

type contextKey struct{}

func WithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, contextKey{}, id)
}

func FromContext(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(contextKey{}).(Identity)
	return id, ok
}

// Require rejects requests without an identity header and stores the
// identity on the request context for downstream handlers.
func Require(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := r.Header.Get(HeaderUserID)
		if userID == "" {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = w.Write([]byte(`{"error":"authentication required"}`))
			return
		}
		id := Identity{
			UserID: userID,
			Admin:  r.Header.Get(HeaderAdmin) == "true",
		}
		next(w, r.WithContext(WithIdentity(r.Context(), id)))
	}
}

// RequireAdmin gates privileged routes.
func RequireAdmin(next http.HandlerFunc) http.HandlerFunc {
	return Require(func(w http.ResponseWriter, r *http.Request) {
		id, _ := FromContext(r.Context())
		if !id.Admin {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusForbidden)
			_, _ = w.Write([]byte(`{"error":"admin access required"}`))
			return
		}
		next(w, r)
	})
}
