package gateway

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/teamf/dresshop/internal/auth"
)

var (
	ErrInvalidToken = errors.New("invalid session token")
	ErrExpiredToken = errors.New("session token expired")
)

// SessionVerifier checks the HMAC-signed session tokens minted by the
// login service. Verification is stateless; the edge never stores
// sessions.
type SessionVerifier struct {
	secret []byte
}

func NewSessionVerifier(secret string) *SessionVerifier {
	return &SessionVerifier{secret: []byte(secret)}
}

// Sign produces a token for the identity. Exposed for tests and for
// the seed tooling; issuing real sessions is the login service's job.
func (v *SessionVerifier) Sign(id auth.Identity, expires time.Time) string {
	payload := fmt.Sprintf("%s|%t|%d", id.UserID, id.Admin, expires.Unix())
	return base64.RawURLEncoding.EncodeToString([]byte(payload)) + "." + v.signature(payload)
}

func (v *SessionVerifier) Verify(token string, now time.Time) (auth.Identity, error) {
	encoded, sig, ok := strings.Cut(token, ".")
	if !ok {
		return auth.Identity{}, ErrInvalidToken
	}

	raw, err := base64.RawURLEncoding.DecodeString(encoded)
	if err != nil {
		return auth.Identity{}, ErrInvalidToken
	}
	payload := string(raw)

	if !hmac.Equal([]byte(sig), []byte(v.signature(payload))) {
		return auth.Identity{}, ErrInvalidToken
	}

	parts := strings.Split(payload, "|")
	if len(parts) != 3 {
		return auth.Identity{}, ErrInvalidToken
	}

	expires, err := strconv.ParseInt(parts[2], 10, 64)
	if err != nil {
		return auth.Identity{}, ErrInvalidToken
	}
	if now.Unix() >= expires {
		return auth.Identity{}, ErrExpiredToken
	}

	return auth.Identity{
		UserID: parts[0],
		Admin:  parts[1] == "true",
	}, nil
}

func (v *SessionVerifier) signature(payload string) string {
	mac := hmac.New(sha256.New, v.secret)
	mac.Write([]byte(payload))
	return base64.RawURLEncoding.EncodeToString(mac.Sum(nil))
}
