// Package links implements the link resolution core: creating, resolving,
// updating, deleting and reporting on short links, keeping a Redis-backed
// cache consistent with the Postgres store through an invalidate-on-write
// policy.
package links

import (
	"context"
	"errors"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/sundayezeilo/shortly/codegen"
	"github.com/sundayezeilo/shortly/internal/errx"
)

const (
	DefaultCodeLength     = codegen.DefaultLength
	MinAliasLength        = 3
	MaxAliasLength        = 64
	MaxURLLength          = 2048
	DefaultCodeMaxRetries = 3
)

// CreateLinkRequest carries the parameters for creating a new link. All
// fields except OriginalURL are optional.
type CreateLinkRequest struct {
	OriginalURL string
	OwnerID     *uuid.UUID // nil creates an anonymous link
	CustomAlias string     // empty means a code is generated
	ExpiresAt   *time.Time // nil means the link never expires
}

// Resolver coordinates the Store and the Cache. It holds no state of its
// own beyond injected collaborators, so all methods are safe for concurrent
// use; the store's row-level atomicity and the cache's last-writer-wins
// semantics carry the concurrency guarantees.
type Resolver struct {
	store      Store
	cache      Cache
	codes      codegen.Generator
	logger     *slog.Logger
	codeLength int
	maxRetries int
	sweep      func()
}

// ResolverConfig holds configuration for the Resolver.
type ResolverConfig struct {
	CodeGenerator  codegen.Generator
	Logger         *slog.Logger
	CodeLength     int
	CodeMaxRetries int    // attempts when generating a unique code (default: 3)
	SweepTrigger   func() // called after creating an expiring link; must not block
}

// NewResolver creates a new Resolver instance.
func NewResolver(store Store, cache Cache, config *ResolverConfig) *Resolver {
	if config == nil {
		config = &ResolverConfig{}
	}

	codes := config.CodeGenerator
	if codes == nil {
		codes = codegen.NewBase62()
	}

	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}

	codeLength := config.CodeLength
	if codeLength < MinAliasLength || codeLength > MaxAliasLength {
		codeLength = DefaultCodeLength
	}

	retries := config.CodeMaxRetries
	if retries <= 0 {
		retries = DefaultCodeMaxRetries
	}

	return &Resolver{
		store:      store,
		cache:      cache,
		codes:      codes,
		logger:     logger,
		codeLength: codeLength,
		maxRetries: retries,
		sweep:      config.SweepTrigger,
	}
}

// Create persists a new link and returns it. The original URL is
// percent-decoded before storage. A custom alias that collides with an
// existing code fails with Conflict; generated codes retry on collision.
// The cache is untouched; it fills lazily on the first resolve.
func (r *Resolver) Create(ctx context.Context, req CreateLinkRequest) (Link, error) {
	const op = "links.Resolver.Create"

	originalURL, err := normalizeURL(req.OriginalURL)
	if err != nil {
		return Link{}, errx.E(op, errx.Invalid, err)
	}

	link := Link{
		OriginalURL: originalURL,
		OwnerID:     req.OwnerID,
		ExpiresAt:   req.ExpiresAt,
	}

	var created Link
	if req.CustomAlias != "" {
		if err := validateAlias(req.CustomAlias); err != nil {
			return Link{}, errx.E(op, errx.Invalid, err)
		}
		link.ShortCode = req.CustomAlias

		created, err = r.store.InsertLink(ctx, link)
		if err != nil {
			// Conflict here is the alias being taken; pass it through.
			return Link{}, errx.E(op, errx.KindOf(err), err)
		}
	} else {
		created, err = r.createWithGeneratedCode(ctx, op, link)
		if err != nil {
			return Link{}, err
		}
	}

	// Scheduling the sweep is best-effort: the link is already committed,
	// so a missing trigger only delays the purge.
	if created.ExpiresAt != nil && r.sweep != nil {
		r.sweep()
	}

	return created, nil
}

func (r *Resolver) createWithGeneratedCode(ctx context.Context, op string, link Link) (Link, error) {
	for range r.maxRetries {
		code, err := r.codes.Generate(r.codeLength)
		if err != nil {
			return Link{}, errx.E(op, errx.Unavailable, err)
		}
		link.ShortCode = code

		created, err := r.store.InsertLink(ctx, link)
		if err == nil {
			return created, nil
		}

		// Retry on code collision, fail on anything else.
		if errx.KindOf(err) != errx.Conflict {
			return Link{}, errx.E(op, errx.KindOf(err), err)
		}
	}

	return Link{}, errx.E(op, errx.Unavailable,
		errors.New("could not generate unique short code after retries"))
}

// Resolve returns the original URL for a short code and records the click.
//
// The resolved-URL cache is trusted as-is: a cached entry is returned even
// if the store row has since expired or been swept, and cached hits do not
// bump the click counter. That staleness window is intentional and closes
// only when an update or delete invalidates the entry.
func (r *Resolver) Resolve(ctx context.Context, code string) (string, error) {
	const op = "links.Resolver.Resolve"

	if code == "" {
		return "", errx.E(op, errx.Invalid, errors.New("short code cannot be empty"))
	}

	cached, ok, err := r.cache.GetURL(ctx, code)
	if err != nil {
		// A broken cache degrades to a miss; the store answers instead.
		r.logger.WarnContext(ctx, "url cache read failed", "code", code, "error", err)
	}
	if ok {
		return cached, nil
	}

	link, err := r.store.ResolveAndTouch(ctx, code)
	if err != nil {
		return "", errx.E(op, errx.KindOf(err), err)
	}

	if err := r.cache.SetURL(ctx, code, link.OriginalURL); err != nil {
		// The store mutation already succeeded; never fail the resolve
		// over a cache populate.
		r.logger.WarnContext(ctx, "url cache populate failed", "code", code, "error", err)
	}

	return link.OriginalURL, nil
}

// Update rewrites the original URL of a link owned by the caller, then
// invalidates both cache namespaces for the code. Invalidation strictly
// follows the store commit so a concurrent resolve cannot repopulate the
// old URL after we delete it here and before the store has the new one.
// Non-owners and anonymous callers get NotFound, indistinguishable from a
// missing code.
func (r *Resolver) Update(ctx context.Context, code string, ownerID *uuid.UUID, newURL string) error {
	const op = "links.Resolver.Update"

	if code == "" {
		return errx.E(op, errx.Invalid, errors.New("short code cannot be empty"))
	}
	if ownerID == nil {
		// Anonymous links are immutable: without a caller identity there
		// is nothing to match ownership against.
		return errx.E(op, errx.NotFound, errors.New("anonymous callers cannot update links"))
	}

	originalURL, err := normalizeURL(newURL)
	if err != nil {
		return errx.E(op, errx.Invalid, err)
	}

	if err := r.store.UpdateOriginalURL(ctx, code, *ownerID, originalURL); err != nil {
		return errx.E(op, errx.KindOf(err), err)
	}

	r.invalidate(ctx, code)
	return nil
}

// Delete removes a link owned by the caller and invalidates both cache
// namespaces, under the same ownership rule as Update.
func (r *Resolver) Delete(ctx context.Context, code string, ownerID *uuid.UUID) error {
	const op = "links.Resolver.Delete"

	if code == "" {
		return errx.E(op, errx.Invalid, errors.New("short code cannot be empty"))
	}
	if ownerID == nil {
		return errx.E(op, errx.NotFound, errors.New("anonymous callers cannot delete links"))
	}

	if err := r.store.DeleteLink(ctx, code, *ownerID); err != nil {
		return errx.E(op, errx.KindOf(err), err)
	}

	r.invalidate(ctx, code)
	return nil
}

// Stats returns the usage snapshot for a code. A cached snapshot is served
// verbatim, so clicks recorded after it was cached are not visible until an
// update or delete invalidates it; resolves never refresh it.
func (r *Resolver) Stats(ctx context.Context, code string) (Stats, error) {
	const op = "links.Resolver.Stats"

	if code == "" {
		return Stats{}, errx.E(op, errx.Invalid, errors.New("short code cannot be empty"))
	}

	cached, ok, err := r.cache.GetStats(ctx, code)
	if err != nil {
		r.logger.WarnContext(ctx, "stats cache read failed", "code", code, "error", err)
	}
	if ok {
		return cached, nil
	}

	link, err := r.store.FindByShortCode(ctx, code)
	if err != nil {
		return Stats{}, errx.E(op, errx.KindOf(err), err)
	}

	stats := Stats{
		OriginalURL: link.OriginalURL,
		CreatedAt:   link.CreatedAt,
		Clicks:      link.Clicks,
		LastUsedAt:  link.LastUsedAt,
	}

	if err := r.cache.SetStats(ctx, code, stats); err != nil {
		r.logger.WarnContext(ctx, "stats cache populate failed", "code", code, "error", err)
	}

	return stats, nil
}

// Search returns the short code of a live link pointing at the given URL.
func (r *Resolver) Search(ctx context.Context, originalURL string) (string, error) {
	const op = "links.Resolver.Search"

	decoded, err := normalizeURL(originalURL)
	if err != nil {
		return "", errx.E(op, errx.Invalid, err)
	}

	link, err := r.store.FindByOriginalURL(ctx, decoded)
	if err != nil {
		return "", errx.E(op, errx.KindOf(err), err)
	}
	return link.ShortCode, nil
}

// invalidate deletes both cache namespaces for a code after a store write.
// Failures are logged and dropped: the store already committed, and a stale
// entry lives at most until the next successful invalidation or eviction.
func (r *Resolver) invalidate(ctx context.Context, code string) {
	if err := r.cache.DeleteURL(ctx, code); err != nil {
		r.logger.WarnContext(ctx, "url cache invalidate failed", "code", code, "error", err)
	}
	if err := r.cache.DeleteStats(ctx, code); err != nil {
		r.logger.WarnContext(ctx, "stats cache invalidate failed", "code", code, "error", err)
	}
}

// normalizeURL percent-decodes the submitted URL and validates it.
func normalizeURL(rawURL string) (string, error) {
	if rawURL == "" {
		return "", errors.New("url cannot be empty")
	}

	decoded, err := url.QueryUnescape(rawURL)
	if err != nil {
		return "", errors.New("url is not valid percent-encoding")
	}
	if err := validateURL(decoded); err != nil {
		return "", err
	}
	return decoded, nil
}

func validateURL(rawURL string) error {
	if len(rawURL) > MaxURLLength {
		return errors.New("url too long (max 2048 characters)")
	}

	parsedURL, err := url.Parse(rawURL)
	if err != nil {
		return errors.New("invalid url format")
	}
	if parsedURL.Scheme != "http" && parsedURL.Scheme != "https" {
		return errors.New("url scheme must be http or https")
	}
	if parsedURL.Host == "" {
		return errors.New("url must include host")
	}
	return nil
}

func validateAlias(alias string) error {
	if len(alias) < MinAliasLength {
		return errors.New("alias too short (minimum 3 characters)")
	}
	if len(alias) > MaxAliasLength {
		return errors.New("alias too long (maximum 64 characters)")
	}

	if strings.HasPrefix(alias, "-") || strings.HasPrefix(alias, "_") ||
		strings.HasSuffix(alias, "-") || strings.HasSuffix(alias, "_") {
		return errors.New("alias cannot start or end with dash or underscore")
	}

	for _, char := range alias {
		if !isValidAliasChar(char) {
			return errors.New("alias contains invalid characters (only alphanumeric, dash, and underscore allowed)")
		}
	}
	return nil
}

func isValidAliasChar(c rune) bool {
	switch {
	case c >= 'a' && c <= 'z':
		return true
	case c >= 'A' && c <= 'Z':
		return true
	case c >= '0' && c <= '9':
		return true
	case c == '-' || c == '_':
		return true
	default:
		return false
	}
}
