package links

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/sundayezeilo/shortly/internal/errx"
	"github.com/sundayezeilo/shortly/internal/identity"
)

func newTestHandler(store Store, cache Cache) *Handler {
	return NewHandler(HandlerConfig{
		Resolver: NewResolver(store, cache, &ResolverConfig{Logger: testLogger()}),
		Logger:   testLogger(),
		BaseURL:  "https://short.ly",
	})
}

func decodeBody[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.NewDecoder(rec.Body).Decode(&v); err != nil {
		t.Fatalf("decode response body: %v", err)
	}
	return v
}

/***************
 * CreateLink Tests
 ***************/

func TestHandlerCreateLink(t *testing.T) {
	t.Run("creates link and returns 201 with short URL", func(t *testing.T) {
		var capturedLink Link
		store := &mockStore{
			insertLinkFunc: func(ctx context.Context, link Link) (Link, error) {
				capturedLink = link
				link.ID = uuid.New()
				link.CreatedAt = time.Now()
				return link, nil
			},
		}
		h := newTestHandler(store, &mockCache{})

		body := `{"url": "https://example.com", "custom_alias": "my-alias"}`
		req := httptest.NewRequest(http.MethodPost, "/api/links", strings.NewReader(body))
		rec := httptest.NewRecorder()
		h.CreateLink(rec, req)

		if rec.Code != http.StatusCreated {
			t.Fatalf("status = %d, want %d; body: %s", rec.Code, http.StatusCreated, rec.Body.String())
		}

		resp := decodeBody[LinkResponse](t, rec)
		if resp.ShortCode != "my-alias" {
			t.Errorf("ShortCode = %q, want %q", resp.ShortCode, "my-alias")
		}
		if resp.ShortURL != "https://short.ly/my-alias" {
			t.Errorf("ShortURL = %q, want %q", resp.ShortURL, "https://short.ly/my-alias")
		}
		if capturedLink.OwnerID != nil {
			t.Errorf("OwnerID = %v, want nil for anonymous request", capturedLink.OwnerID)
		}
	})

	t.Run("attaches owner from request context", func(t *testing.T) {
		var capturedLink Link
		store := &mockStore{
			insertLinkFunc: func(ctx context.Context, link Link) (Link, error) {
				capturedLink = link
				link.ID = uuid.New()
				return link, nil
			},
		}
		h := newTestHandler(store, &mockCache{})

		ownerID := uuid.New()
		body := `{"url": "https://example.com"}`
		req := httptest.NewRequest(http.MethodPost, "/api/links", strings.NewReader(body))
		req = req.WithContext(identity.WithOwnerID(req.Context(), ownerID))
		rec := httptest.NewRecorder()
		h.CreateLink(rec, req)

		if rec.Code != http.StatusCreated {
			t.Fatalf("status = %d, want %d", rec.Code, http.StatusCreated)
		}
		if capturedLink.OwnerID == nil || *capturedLink.OwnerID != ownerID {
			t.Errorf("OwnerID = %v, want %v", capturedLink.OwnerID, ownerID)
		}
	})

	t.Run("rejects missing url", func(t *testing.T) {
		h := newTestHandler(&mockStore{}, &mockCache{})

		req := httptest.NewRequest(http.MethodPost, "/api/links", strings.NewReader(`{}`))
		rec := httptest.NewRecorder()
		h.CreateLink(rec, req)

		if rec.Code != http.StatusBadRequest {
			t.Errorf("status = %d, want %d", rec.Code, http.StatusBadRequest)
		}
	})

	t.Run("rejects malformed JSON", func(t *testing.T) {
		h := newTestHandler(&mockStore{}, &mockCache{})

		req := httptest.NewRequest(http.MethodPost, "/api/links", strings.NewReader(`{"url":`))
		rec := httptest.NewRecorder()
		h.CreateLink(rec, req)

		if rec.Code != http.StatusBadRequest {
			t.Errorf("status = %d, want %d", rec.Code, http.StatusBadRequest)
		}
	})

	t.Run("rejects expiry in the past", func(t *testing.T) {
		h := newTestHandler(&mockStore{}, &mockCache{})

		body := `{"url": "https://example.com", "expires_at": "2020-01-01T00:00:00Z"}`
		req := httptest.NewRequest(http.MethodPost, "/api/links", strings.NewReader(body))
		rec := httptest.NewRecorder()
		h.CreateLink(rec, req)

		if rec.Code != http.StatusBadRequest {
			t.Errorf("status = %d, want %d", rec.Code, http.StatusBadRequest)
		}
	})

	t.Run("maps Conflict to 409", func(t *testing.T) {
		store := &mockStore{
			insertLinkFunc: func(ctx context.Context, link Link) (Link, error) {
				return Link{}, errx.E("store.InsertLink", errx.Conflict, errors.New("duplicate code"))
			},
		}
		h := newTestHandler(store, &mockCache{})

		body := `{"url": "https://example.com", "custom_alias": "taken"}`
		req := httptest.NewRequest(http.MethodPost, "/api/links", strings.NewReader(body))
		rec := httptest.NewRecorder()
		h.CreateLink(rec, req)

		if rec.Code != http.StatusConflict {
			t.Errorf("status = %d, want %d", rec.Code, http.StatusConflict)
		}
	})

	t.Run("maps Unavailable to 503", func(t *testing.T) {
		store := &mockStore{
			insertLinkFunc: func(ctx context.Context, link Link) (Link, error) {
				return Link{}, errx.E("store.InsertLink", errx.Unavailable, errors.New("db down"))
			},
		}
		h := newTestHandler(store, &mockCache{})

		body := `{"url": "https://example.com", "custom_alias": "abc123"}`
		req := httptest.NewRequest(http.MethodPost, "/api/links", strings.NewReader(body))
		rec := httptest.NewRecorder()
		h.CreateLink(rec, req)

		if rec.Code != http.StatusServiceUnavailable {
			t.Errorf("status = %d, want %d", rec.Code, http.StatusServiceUnavailable)
		}
	})
}

/***************
 * ResolveLink Tests
 ***************/

func TestHandlerResolveLink(t *testing.T) {
	t.Run("redirects with 302 and Location header", func(t *testing.T) {
		store := &mockStore{
			resolveAndTouchFunc: func(ctx context.Context, code string) (Link, error) {
				return Link{OriginalURL: "https://example.com/landing", ShortCode: code}, nil
			},
		}
		h := newTestHandler(store, &mockCache{})

		req := httptest.NewRequest(http.MethodGet, "/abc1234", nil)
		req.SetPathValue("code", "abc1234")
		rec := httptest.NewRecorder()
		h.ResolveLink(rec, req)

		if rec.Code != http.StatusFound {
			t.Fatalf("status = %d, want %d", rec.Code, http.StatusFound)
		}
		if loc := rec.Header().Get("Location"); loc != "https://example.com/landing" {
			t.Errorf("Location = %q, want %q", loc, "https://example.com/landing")
		}
	})

	t.Run("maps NotFound to 404", func(t *testing.T) {
		h := newTestHandler(&mockStore{}, &mockCache{})

		req := httptest.NewRequest(http.MethodGet, "/missing1", nil)
		req.SetPathValue("code", "missing1")
		rec := httptest.NewRecorder()
		h.ResolveLink(rec, req)

		if rec.Code != http.StatusNotFound {
			t.Errorf("status = %d, want %d", rec.Code, http.StatusNotFound)
		}
	})

	t.Run("rejects over-long code without touching the resolver", func(t *testing.T) {
		h := newTestHandler(&mockStore{}, &mockCache{})

		code := strings.Repeat("a", MaxAliasLength+1)
		req := httptest.NewRequest(http.MethodGet, "/"+code, nil)
		req.SetPathValue("code", code)
		rec := httptest.NewRecorder()
		h.ResolveLink(rec, req)

		if rec.Code != http.StatusBadRequest {
			t.Errorf("status = %d, want %d", rec.Code, http.StatusBadRequest)
		}
	})
}

/***************
 * UpdateLink Tests
 ***************/

func TestHandlerUpdateLink(t *testing.T) {
	t.Run("updates and returns 204", func(t *testing.T) {
		ownerID := uuid.New()
		var capturedOwner uuid.UUID
		store := &mockStore{
			updateOriginalFunc: func(ctx context.Context, code string, owner uuid.UUID, originalURL string) error {
				capturedOwner = owner
				return nil
			},
		}
		h := newTestHandler(store, &mockCache{})

		body := `{"url": "https://new.example.com"}`
		req := httptest.NewRequest(http.MethodPut, "/api/links/abc1234", strings.NewReader(body))
		req.SetPathValue("code", "abc1234")
		req = req.WithContext(identity.WithOwnerID(req.Context(), ownerID))
		rec := httptest.NewRecorder()
		h.UpdateLink(rec, req)

		if rec.Code != http.StatusNoContent {
			t.Fatalf("status = %d, want %d; body: %s", rec.Code, http.StatusNoContent, rec.Body.String())
		}
		if capturedOwner != ownerID {
			t.Errorf("owner = %v, want %v", capturedOwner, ownerID)
		}
	})

	t.Run("anonymous caller gets 404", func(t *testing.T) {
		h := newTestHandler(&mockStore{}, &mockCache{})

		body := `{"url": "https://new.example.com"}`
		req := httptest.NewRequest(http.MethodPut, "/api/links/abc1234", strings.NewReader(body))
		req.SetPathValue("code", "abc1234")
		rec := httptest.NewRecorder()
		h.UpdateLink(rec, req)

		if rec.Code != http.StatusNotFound {
			t.Errorf("status = %d, want %d", rec.Code, http.StatusNotFound)
		}
	})

	t.Run("non-owner gets 404", func(t *testing.T) {
		store := &mockStore{
			updateOriginalFunc: func(ctx context.Context, code string, owner uuid.UUID, originalURL string) error {
				return errx.E("store.UpdateOriginalURL", errx.NotFound, errors.New("not found"))
			},
		}
		h := newTestHandler(store, &mockCache{})

		body := `{"url": "https://new.example.com"}`
		req := httptest.NewRequest(http.MethodPut, "/api/links/abc1234", strings.NewReader(body))
		req.SetPathValue("code", "abc1234")
		req = req.WithContext(identity.WithOwnerID(req.Context(), uuid.New()))
		rec := httptest.NewRecorder()
		h.UpdateLink(rec, req)

		if rec.Code != http.StatusNotFound {
			t.Errorf("status = %d, want %d", rec.Code, http.StatusNotFound)
		}
	})

	t.Run("rejects missing url", func(t *testing.T) {
		h := newTestHandler(&mockStore{}, &mockCache{})

		req := httptest.NewRequest(http.MethodPut, "/api/links/abc1234", strings.NewReader(`{}`))
		req.SetPathValue("code", "abc1234")
		req = req.WithContext(identity.WithOwnerID(req.Context(), uuid.New()))
		rec := httptest.NewRecorder()
		h.UpdateLink(rec, req)

		if rec.Code != http.StatusBadRequest {
			t.Errorf("status = %d, want %d", rec.Code, http.StatusBadRequest)
		}
	})
}

/***************
 * DeleteLink Tests
 ***************/

func TestHandlerDeleteLink(t *testing.T) {
	t.Run("deletes and returns 204", func(t *testing.T) {
		deleted := false
		store := &mockStore{
			deleteLinkFunc: func(ctx context.Context, code string, ownerID uuid.UUID) error {
				deleted = true
				return nil
			},
		}
		h := newTestHandler(store, &mockCache{})

		req := httptest.NewRequest(http.MethodDelete, "/api/links/abc1234", nil)
		req.SetPathValue("code", "abc1234")
		req = req.WithContext(identity.WithOwnerID(req.Context(), uuid.New()))
		rec := httptest.NewRecorder()
		h.DeleteLink(rec, req)

		if rec.Code != http.StatusNoContent {
			t.Fatalf("status = %d, want %d", rec.Code, http.StatusNoContent)
		}
		if !deleted {
			t.Error("store DeleteLink was not called")
		}
	})

	t.Run("anonymous caller gets 404", func(t *testing.T) {
		h := newTestHandler(&mockStore{}, &mockCache{})

		req := httptest.NewRequest(http.MethodDelete, "/api/links/abc1234", nil)
		req.SetPathValue("code", "abc1234")
		rec := httptest.NewRecorder()
		h.DeleteLink(rec, req)

		if rec.Code != http.StatusNotFound {
			t.Errorf("status = %d, want %d", rec.Code, http.StatusNotFound)
		}
	})
}

/***************
 * LinkStats Tests
 ***************/

func TestHandlerLinkStats(t *testing.T) {
	t.Run("returns the snapshot", func(t *testing.T) {
		now := time.Now().UTC().Truncate(time.Second)
		store := &mockStore{
			findByShortCodeFunc: func(ctx context.Context, code string) (Link, error) {
				return Link{
					OriginalURL: "https://example.com",
					ShortCode:   code,
					CreatedAt:   now,
					Clicks:      9,
				}, nil
			},
		}
		h := newTestHandler(store, &mockCache{})

		req := httptest.NewRequest(http.MethodGet, "/api/links/abc1234/stats", nil)
		req.SetPathValue("code", "abc1234")
		rec := httptest.NewRecorder()
		h.LinkStats(rec, req)

		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
		}

		stats := decodeBody[Stats](t, rec)
		if stats.Clicks != 9 {
			t.Errorf("Clicks = %d, want 9", stats.Clicks)
		}
		if stats.OriginalURL != "https://example.com" {
			t.Errorf("OriginalURL = %q, want %q", stats.OriginalURL, "https://example.com")
		}
	})

	t.Run("maps NotFound to 404", func(t *testing.T) {
		h := newTestHandler(&mockStore{}, &mockCache{})

		req := httptest.NewRequest(http.MethodGet, "/api/links/missing1/stats", nil)
		req.SetPathValue("code", "missing1")
		rec := httptest.NewRecorder()
		h.LinkStats(rec, req)

		if rec.Code != http.StatusNotFound {
			t.Errorf("status = %d, want %d", rec.Code, http.StatusNotFound)
		}
	})
}

/***************
 * SearchLink Tests
 ***************/

func TestHandlerSearchLink(t *testing.T) {
	t.Run("returns the short code for a known URL", func(t *testing.T) {
		store := &mockStore{
			findByOriginalFunc: func(ctx context.Context, originalURL string) (Link, error) {
				return Link{ShortCode: "abc1234", OriginalURL: originalURL}, nil
			},
		}
		h := newTestHandler(store, &mockCache{})

		req := httptest.NewRequest(http.MethodGet, "/api/links/search?url=https%3A%2F%2Fexample.com", nil)
		rec := httptest.NewRecorder()
		h.SearchLink(rec, req)

		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
		}

		resp := decodeBody[SearchResponse](t, rec)
		if resp.ShortCode != "abc1234" {
			t.Errorf("ShortCode = %q, want %q", resp.ShortCode, "abc1234")
		}
		if resp.ShortURL != "https://short.ly/abc1234" {
			t.Errorf("ShortURL = %q, want %q", resp.ShortURL, "https://short.ly/abc1234")
		}
	})

	t.Run("rejects missing url parameter", func(t *testing.T) {
		h := newTestHandler(&mockStore{}, &mockCache{})

		req := httptest.NewRequest(http.MethodGet, "/api/links/search", nil)
		rec := httptest.NewRecorder()
		h.SearchLink(rec, req)

		if rec.Code != http.StatusBadRequest {
			t.Errorf("status = %d, want %d", rec.Code, http.StatusBadRequest)
		}
	})

	t.Run("maps NotFound to 404", func(t *testing.T) {
		h := newTestHandler(&mockStore{}, &mockCache{})

		req := httptest.NewRequest(http.MethodGet, "/api/links/search?url=https%3A%2F%2Funknown.example.com", nil)
		rec := httptest.NewRecorder()
		h.SearchLink(rec, req)

		if rec.Code != http.StatusNotFound {
			t.Errorf("status = %d, want %d", rec.Code, http.StatusNotFound)
		}
	})
}
