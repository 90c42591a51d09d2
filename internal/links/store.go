package links

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Store is the durable, authoritative record of links. Lookups never return
// expired rows; deleting them is the Sweeper's job. Every method is a single
// atomic operation against the database, and short-code uniqueness is
// enforced by the store's unique constraint rather than by callers.
type Store interface {
	// InsertLink persists a new link. Returns a Conflict error when the
	// short code is already taken.
	InsertLink(ctx context.Context, link Link) (Link, error)

	// FindByShortCode returns the live link with the given code.
	// Expired links are reported as NotFound.
	FindByShortCode(ctx context.Context, code string) (Link, error)

	// FindByOriginalURL returns a live link pointing at the given URL.
	FindByOriginalURL(ctx context.Context, originalURL string) (Link, error)

	// ResolveAndTouch atomically increments the click counter and stamps
	// last_used_at for the live link with the given code, returning the
	// updated row. Concurrent calls never lose increments.
	ResolveAndTouch(ctx context.Context, code string) (Link, error)

	// UpdateOriginalURL rewrites the target URL of the link with the given
	// code, but only when it is owned by ownerID. A missing or differently
	// owned link is NotFound.
	UpdateOriginalURL(ctx context.Context, code string, ownerID uuid.UUID, originalURL string) error

	// DeleteLink removes the link with the given code under the same
	// ownership rule as UpdateOriginalURL.
	DeleteLink(ctx context.Context, code string, ownerID uuid.UUID) error

	// DeleteExpired removes every link whose expiry is strictly before the
	// given instant, in one batch. Returns the number of rows removed.
	DeleteExpired(ctx context.Context, before time.Time) (int64, error)
}
