package links

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/sundayezeilo/shortly/internal/errx"
	"github.com/sundayezeilo/shortly/internal/httpx"
	"github.com/sundayezeilo/shortly/internal/identity"
)

// HTTPCreateLinkRequest represents the JSON request body for creating a link.
type HTTPCreateLinkRequest struct {
	URL         string     `json:"url"`
	CustomAlias string     `json:"custom_alias,omitempty"`
	ExpiresAt   *time.Time `json:"expires_at,omitempty"`
}

// HTTPUpdateLinkRequest represents the JSON request body for updating a link.
type HTTPUpdateLinkRequest struct {
	URL string `json:"url"`
}

// LinkResponse represents the JSON response for a created link.
type LinkResponse struct {
	ID          string     `json:"id"`
	ShortCode   string     `json:"short_code"`
	OriginalURL string     `json:"original_url"`
	ShortURL    string     `json:"short_url"`
	CreatedAt   time.Time  `json:"created_at"`
	ExpiresAt   *time.Time `json:"expires_at,omitempty"`
}

// SearchResponse represents the JSON response for a URL search.
type SearchResponse struct {
	ShortCode string `json:"short_code"`
	ShortURL  string `json:"short_url"`
}

// Handler provides HTTP handlers for the link service.
type Handler struct {
	resolver *Resolver
	logger   *slog.Logger
	baseURL  string
}

// HandlerConfig holds configuration for the handler.
type HandlerConfig struct {
	Resolver *Resolver
	Logger   *slog.Logger
	BaseURL  string // Base URL for constructing short URLs (e.g., "https://short.ly")
}

// NewHandler creates a new Handler instance.
func NewHandler(cfg HandlerConfig) *Handler {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Handler{
		resolver: cfg.Resolver,
		logger:   logger,
		baseURL:  cfg.BaseURL,
	}
}

// CreateLink handles POST requests to create a new short link.
func (h *Handler) CreateLink(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := h.requestLogger(ctx, r)

	req, err := httpx.DecodeJSON[HTTPCreateLinkRequest](r)
	if err != nil {
		logger.WarnContext(ctx, "failed to decode request", "error", err.Error())
		httpx.WriteError(w, http.StatusBadRequest, "invalid_request", err.Error(), nil)
		return
	}

	if req.URL == "" {
		logger.WarnContext(ctx, "request validation failed", "error", "url is required")
		httpx.WriteError(w, http.StatusBadRequest, "validation_failed", "url is required", nil)
		return
	}
	if req.ExpiresAt != nil && !req.ExpiresAt.After(time.Now()) {
		logger.WarnContext(ctx, "request validation failed", "error", "expires_at is in the past")
		httpx.WriteError(w, http.StatusBadRequest, "validation_failed", "expires_at must be in the future", nil)
		return
	}

	link, err := h.resolver.Create(ctx, CreateLinkRequest{
		OriginalURL: req.URL,
		OwnerID:     identity.FromContext(ctx),
		CustomAlias: req.CustomAlias,
		ExpiresAt:   req.ExpiresAt,
	})
	if err != nil {
		h.writeResolverError(ctx, w, err, "create link failed")
		return
	}

	logger.InfoContext(ctx, "link created",
		"link_id", link.ID.String(),
		"short_code", link.ShortCode,
		"custom_alias", req.CustomAlias != "",
		"expires", link.ExpiresAt != nil,
	)

	httpx.WriteJSON(w, http.StatusCreated, h.linkResponse(link))
}

// ResolveLink handles GET requests to redirect a short code to its original
// URL.
func (h *Handler) ResolveLink(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := h.requestLogger(ctx, r)

	code := r.PathValue("code")
	if err := validateCodeFormat(code); err != nil {
		logger.WarnContext(ctx, "invalid short code", "code", code, "error", err.Error())
		httpx.WriteError(w, http.StatusBadRequest, "invalid_code", err.Error(), nil)
		return
	}

	originalURL, err := h.resolver.Resolve(ctx, code)
	if err != nil {
		h.writeResolverError(ctx, w, err, "resolve failed")
		return
	}

	logger.InfoContext(ctx, "short code resolved",
		"code", code,
		"user_agent", r.UserAgent(),
		"referer", r.Referer(),
	)

	http.Redirect(w, r, originalURL, http.StatusFound)
}

// UpdateLink handles PUT requests to rewrite the target URL of an owned
// link.
func (h *Handler) UpdateLink(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := h.requestLogger(ctx, r)

	code := r.PathValue("code")
	if err := validateCodeFormat(code); err != nil {
		logger.WarnContext(ctx, "invalid short code", "code", code, "error", err.Error())
		httpx.WriteError(w, http.StatusBadRequest, "invalid_code", err.Error(), nil)
		return
	}

	req, err := httpx.DecodeJSON[HTTPUpdateLinkRequest](r)
	if err != nil {
		logger.WarnContext(ctx, "failed to decode request", "error", err.Error())
		httpx.WriteError(w, http.StatusBadRequest, "invalid_request", err.Error(), nil)
		return
	}
	if req.URL == "" {
		logger.WarnContext(ctx, "request validation failed", "error", "url is required")
		httpx.WriteError(w, http.StatusBadRequest, "validation_failed", "url is required", nil)
		return
	}

	if err := h.resolver.Update(ctx, code, identity.FromContext(ctx), req.URL); err != nil {
		h.writeResolverError(ctx, w, err, "update link failed")
		return
	}

	logger.InfoContext(ctx, "link updated", "code", code)
	w.WriteHeader(http.StatusNoContent)
}

// DeleteLink handles DELETE requests to remove an owned link.
func (h *Handler) DeleteLink(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := h.requestLogger(ctx, r)

	code := r.PathValue("code")
	if err := validateCodeFormat(code); err != nil {
		logger.WarnContext(ctx, "invalid short code", "code", code, "error", err.Error())
		httpx.WriteError(w, http.StatusBadRequest, "invalid_code", err.Error(), nil)
		return
	}

	if err := h.resolver.Delete(ctx, code, identity.FromContext(ctx)); err != nil {
		h.writeResolverError(ctx, w, err, "delete link failed")
		return
	}

	logger.InfoContext(ctx, "link deleted", "code", code)
	w.WriteHeader(http.StatusNoContent)
}

// LinkStats handles GET requests for a link's usage snapshot.
func (h *Handler) LinkStats(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := h.requestLogger(ctx, r)

	code := r.PathValue("code")
	if err := validateCodeFormat(code); err != nil {
		logger.WarnContext(ctx, "invalid short code", "code", code, "error", err.Error())
		httpx.WriteError(w, http.StatusBadRequest, "invalid_code", err.Error(), nil)
		return
	}

	stats, err := h.resolver.Stats(ctx, code)
	if err != nil {
		h.writeResolverError(ctx, w, err, "stats lookup failed")
		return
	}

	httpx.WriteJSON(w, http.StatusOK, stats)
}

// SearchLink handles GET requests to find the short code for an original
// URL, passed through the "url" query parameter.
func (h *Handler) SearchLink(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := h.requestLogger(ctx, r)

	rawURL := r.URL.Query().Get("url")
	if rawURL == "" {
		logger.WarnContext(ctx, "request validation failed", "error", "url query parameter is required")
		httpx.WriteError(w, http.StatusBadRequest, "validation_failed", "url query parameter is required", nil)
		return
	}

	code, err := h.resolver.Search(ctx, rawURL)
	if err != nil {
		h.writeResolverError(ctx, w, err, "search failed")
		return
	}

	httpx.WriteJSON(w, http.StatusOK, SearchResponse{
		ShortCode: code,
		ShortURL:  fmt.Sprintf("%s/%s", h.baseURL, code),
	})
}

func (h *Handler) linkResponse(link Link) LinkResponse {
	return LinkResponse{
		ID:          link.ID.String(),
		ShortCode:   link.ShortCode,
		OriginalURL: link.OriginalURL,
		ShortURL:    fmt.Sprintf("%s/%s", h.baseURL, link.ShortCode),
		CreatedAt:   link.CreatedAt,
		ExpiresAt:   link.ExpiresAt,
	}
}

func (h *Handler) requestLogger(ctx context.Context, r *http.Request) *slog.Logger {
	return h.logger.With(
		"request_id", httpx.GetRequestID(ctx),
		"method", r.Method,
		"path", r.URL.Path,
	)
}

// writeResolverError maps a Resolver error onto the HTTP response. Conflict
// gets a hint since it only arises from taken aliases; everything else maps
// straight through the kind tables.
func (h *Handler) writeResolverError(ctx context.Context, w http.ResponseWriter, err error, msg string) {
	kind := errx.KindOf(err)

	logAttrs := []any{
		"error", err.Error(),
		"error_kind", kind,
		"operation", errx.OpOf(err),
	}

	switch kind {
	case errx.NotFound:
		h.logger.WarnContext(ctx, msg, logAttrs...)
		httpx.WriteError(w, http.StatusNotFound, "not_found",
			"short link doesn't exist", nil)

	case errx.Conflict:
		h.logger.WarnContext(ctx, msg, logAttrs...)
		httpx.WriteError(w, http.StatusConflict, "conflict",
			"This alias is already taken",
			map[string]string{
				"hint": "Try a different custom alias or let us generate one for you",
			})

	case errx.Invalid:
		h.logger.WarnContext(ctx, msg, logAttrs...)
		httpx.WriteError(w, http.StatusBadRequest, "invalid_input", err.Error(), nil)

	case errx.Unavailable:
		h.logger.ErrorContext(ctx, msg, logAttrs...)
		httpx.WriteError(w, http.StatusServiceUnavailable, "unavailable",
			"Unable to complete this request at this time. Please try again.", nil)

	default:
		h.logger.ErrorContext(ctx, msg, logAttrs...)
		httpx.WriteError(w, http.StatusInternalServerError, "internal_error",
			"Unable to complete this request at this time. Please try again.", nil)
	}
}

// validateCodeFormat performs basic short code validation for the HTTP
// layer. This is a lightweight check before calling the resolver.
func validateCodeFormat(code string) error {
	if code == "" {
		return errors.New("short code is required")
	}
	if len(code) > MaxAliasLength {
		return errors.New("invalid link")
	}
	return nil
}
