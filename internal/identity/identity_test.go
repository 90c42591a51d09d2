package identity

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const testSecret = "0123456789abcdef0123456789abcdef"

func TestVerifierOwnerID(t *testing.T) {
	v := NewVerifier(testSecret)

	t.Run("round-trips a signed token", func(t *testing.T) {
		ownerID := uuid.New()

		raw, err := v.SignToken(ownerID)
		if err != nil {
			t.Fatalf("SignToken() unexpected error: %v", err)
		}

		got, err := v.OwnerID(raw)
		if err != nil {
			t.Fatalf("OwnerID() unexpected error: %v", err)
		}
		if got != ownerID {
			t.Errorf("OwnerID() = %s, want %s", got, ownerID)
		}
	})

	t.Run("rejects token signed with wrong secret", func(t *testing.T) {
		other := NewVerifier("another-secret-of-enough-length")
		raw, err := other.SignToken(uuid.New())
		if err != nil {
			t.Fatalf("SignToken() unexpected error: %v", err)
		}

		if _, err := v.OwnerID(raw); err == nil {
			t.Fatal("OwnerID() expected error for wrong secret")
		}
	})

	t.Run("rejects non-UUID subject", func(t *testing.T) {
		token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
			Subject: "not-a-uuid",
		})
		raw, err := token.SignedString([]byte(testSecret))
		if err != nil {
			t.Fatalf("SignedString() unexpected error: %v", err)
		}

		if _, err := v.OwnerID(raw); err == nil {
			t.Fatal("OwnerID() expected error for bad subject")
		}
	})

	t.Run("rejects garbage", func(t *testing.T) {
		if _, err := v.OwnerID("garbage"); err == nil {
			t.Fatal("OwnerID() expected error for garbage token")
		}
	})
}

func TestVerifierMiddleware(t *testing.T) {
	v := NewVerifier(testSecret)

	t.Run("passes owner ID into context", func(t *testing.T) {
		ownerID := uuid.New()
		raw, err := v.SignToken(ownerID)
		if err != nil {
			t.Fatalf("SignToken() unexpected error: %v", err)
		}

		var seen *uuid.UUID
		handler := v.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			seen = FromContext(r.Context())
		}))

		req := httptest.NewRequest("GET", "/", nil)
		req.Header.Set("Authorization", "Bearer "+raw)
		handler.ServeHTTP(httptest.NewRecorder(), req)

		if seen == nil {
			t.Fatal("owner ID missing from context")
		}
		if *seen != ownerID {
			t.Errorf("owner ID = %s, want %s", *seen, ownerID)
		}
	})

	t.Run("anonymous without Authorization header", func(t *testing.T) {
		var seen *uuid.UUID
		handler := v.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			seen = FromContext(r.Context())
		}))

		handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest("GET", "/", nil))

		if seen != nil {
			t.Errorf("owner ID = %s, want anonymous", *seen)
		}
	})

	t.Run("anonymous on invalid token", func(t *testing.T) {
		var seen *uuid.UUID
		handler := v.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			seen = FromContext(r.Context())
		}))

		req := httptest.NewRequest("GET", "/", nil)
		req.Header.Set("Authorization", "Bearer nonsense")
		handler.ServeHTTP(httptest.NewRecorder(), req)

		if seen != nil {
			t.Errorf("owner ID = %s, want anonymous", *seen)
		}
	})
}

func TestFromContext(t *testing.T) {
	t.Run("returns nil on bare context", func(t *testing.T) {
		if got := FromContext(t.Context()); got != nil {
			t.Errorf("FromContext() = %v, want nil", got)
		}
	})
}
