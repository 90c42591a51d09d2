package links

import "context"

// Cache is the volatile accelerator in front of the Store. It holds two
// independent namespaces keyed by short code: resolved URLs and stats
// snapshots. Entries are derived state: the Resolver repopulates them
// lazily on read and deletes them after writes, and correctness must hold
// even when entries never expire.
//
// Misses are reported via the ok return, not as errors; an error means the
// cache itself misbehaved and callers treat it as a miss on the read path.
type Cache interface {
	GetURL(ctx context.Context, code string) (url string, ok bool, err error)
	SetURL(ctx context.Context, code, url string) error
	DeleteURL(ctx context.Context, code string) error

	GetStats(ctx context.Context, code string) (stats Stats, ok bool, err error)
	SetStats(ctx context.Context, code string, stats Stats) error
	DeleteStats(ctx context.Context, code string) error
}
