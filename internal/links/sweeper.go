package links

import (
	"context"
	"log/slog"
	"time"
)

// Sweeper removes expired links from the store in batches. It runs on a
// periodic ticker and on demand via Kick, which creators of expiring links
// use to schedule a purge without blocking.
//
// The sweeper never touches the cache: a swept row may keep resolving from
// a cached entry until that entry is invalidated or evicted, which the
// read path accepts.
type Sweeper struct {
	store    Store
	logger   *slog.Logger
	interval time.Duration
	kicks    chan struct{}
}

// SweeperConfig holds configuration for the Sweeper.
type SweeperConfig struct {
	Logger   *slog.Logger
	Interval time.Duration // 0 disables the ticker; sweeps then run on Kick only
}

// NewSweeper creates a new Sweeper instance.
func NewSweeper(store Store, config *SweeperConfig) *Sweeper {
	if config == nil {
		config = &SweeperConfig{}
	}

	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Sweeper{
		store:    store,
		logger:   logger,
		interval: config.Interval,
		// Capacity 1 coalesces bursts: one pending sweep covers any
		// number of kicks that arrive before it runs.
		kicks: make(chan struct{}, 1),
	}
}

// Kick requests a sweep soon. It never blocks; if a sweep is already
// pending the kick is absorbed by it.
func (s *Sweeper) Kick() {
	select {
	case s.kicks <- struct{}{}:
	default:
	}
}

// Run sweeps until the context is cancelled. It is meant to be launched as
// a goroutine during application startup.
func (s *Sweeper) Run(ctx context.Context) {
	var tick <-chan time.Time
	if s.interval > 0 {
		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()
		tick = ticker.C
	}

	for {
		select {
		case <-ctx.Done():
			return
		case <-s.kicks:
			s.sweep(ctx)
		case <-tick:
			s.sweep(ctx)
		}
	}
}

// sweep deletes every link that expired before now. Failures are logged
// and retried on the next trigger; rows left behind stay invisible to
// lookups, which always filter on expiry.
func (s *Sweeper) sweep(ctx context.Context) {
	removed, err := s.store.DeleteExpired(ctx, time.Now())
	if err != nil {
		s.logger.ErrorContext(ctx, "sweep failed", "error", err)
		return
	}
	if removed > 0 {
		s.logger.InfoContext(ctx, "swept expired links", "removed", removed)
	}
}
