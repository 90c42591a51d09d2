package links

import (
	"time"

	"github.com/google/uuid"
)

// Link is a short code bound to an original URL. The store row is the
// single source of truth; cache entries are derived from it.
type Link struct {
	ID          uuid.UUID
	OriginalURL string
	ShortCode   string
	OwnerID     *uuid.UUID // nil for anonymous links
	CreatedAt   time.Time
	ExpiresAt   *time.Time // nil means the link never expires
	Clicks      int64
	LastUsedAt  *time.Time
}

// Expired reports whether the link's expiry has elapsed at the given time.
func (l Link) Expired(now time.Time) bool {
	return l.ExpiresAt != nil && l.ExpiresAt.Before(now)
}

// Stats is the usage snapshot served for a link. It is cached verbatim as
// JSON, so the click count may lag behind the store until the snapshot is
// invalidated by an update or delete.
type Stats struct {
	OriginalURL string     `json:"original_url"`
	CreatedAt   time.Time  `json:"created_at"`
	Clicks      int64      `json:"clicks"`
	LastUsedAt  *time.Time `json:"last_used_at,omitempty"`
}
