// Package identity extracts the caller's owner ID from bearer tokens issued
// by the external identity provider. This service only verifies tokens; it
// never issues credentials or manages users.
package identity

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

type contextKey string

const ownerIDContextKey contextKey = "owner_id"

// Verifier validates bearer tokens and resolves them to an owner ID.
type Verifier struct {
	secret []byte
}

// NewVerifier returns a Verifier using the given HMAC secret, which must be
// shared with the identity provider.
func NewVerifier(secret string) *Verifier {
	return &Verifier{secret: []byte(secret)}
}

// OwnerID verifies a raw token and returns the owner ID from its subject
// claim.
func (v *Verifier) OwnerID(tokenString string) (uuid.UUID, error) {
	claims := &jwt.RegisteredClaims{}

	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return v.secret, nil
	})
	if err != nil {
		return uuid.Nil, fmt.Errorf("invalid token: %w", err)
	}
	if !token.Valid {
		return uuid.Nil, errors.New("invalid token")
	}

	ownerID, err := uuid.Parse(claims.Subject)
	if err != nil {
		return uuid.Nil, fmt.Errorf("subject is not a valid owner ID: %w", err)
	}
	return ownerID, nil
}

// Middleware resolves an optional Authorization header into an owner ID in
// the request context. Requests without a bearer token proceed anonymously;
// requests with an unparseable token also proceed anonymously rather than
// failing, since every link operation treats missing ownership as NotFound
// on its own.
func (v *Verifier) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw := bearerToken(r)
		if raw == "" {
			next.ServeHTTP(w, r)
			return
		}

		ownerID, err := v.OwnerID(raw)
		if err != nil {
			next.ServeHTTP(w, r)
			return
		}

		ctx := WithOwnerID(r.Context(), ownerID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// FromContext returns the caller's owner ID, or nil when the caller is
// anonymous.
func FromContext(ctx context.Context) *uuid.UUID {
	if id, ok := ctx.Value(ownerIDContextKey).(uuid.UUID); ok {
		return &id
	}
	return nil
}

// WithOwnerID attaches an owner ID to the context. Useful in tests.
func WithOwnerID(ctx context.Context, ownerID uuid.UUID) context.Context {
	return context.WithValue(ctx, ownerIDContextKey, ownerID)
}

// SignToken issues a token for the given owner ID with the verifier's
// secret. Exists for tests and local development; production tokens come
// from the identity provider.
func (v *Verifier) SignToken(ownerID uuid.UUID) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject: ownerID.String(),
	})
	return token.SignedString(v.secret)
}

func bearerToken(r *http.Request) string {
	auth := r.Header.Get("Authorization")
	const prefix = "Bearer "
	if !strings.HasPrefix(auth, prefix) {
		return ""
	}
	return strings.TrimSpace(auth[len(prefix):])
}
