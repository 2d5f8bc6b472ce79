package service

import (
	"LinkSnap-Backend/internal/repository"
	"context"
	"errors"
	"time"

	"go.uber.org/zap"
)

// Reaper periodically deletes links that expired more than grace ago,
// together with their click events.
type Reaper struct {
	storage   repository.Storage
	interval  time.Duration
	grace     time.Duration
	batchSize int
	log       *zap.Logger
	now       func() time.Time
}

func NewReaper(storage repository.Storage, interval, grace time.Duration, batchSize int, log *zap.Logger) *Reaper {
	if batchSize <= 0 {
		batchSize = 100
	}
	return &Reaper{
		storage:   storage,
		interval:  interval,
		grace:     grace,
		batchSize: batchSize,
		log:       log.With(zap.String("component", "reaper")),
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// Run sweeps once immediately and then on every tick until ctx is done.
func (r *Reaper) Run(ctx context.Context) {
	r.log.Info("reaper started", zap.Duration("interval", r.interval), zap.Duration("grace", r.grace))

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		if _, err := r.Sweep(ctx); err != nil && !errors.Is(err, context.Canceled) {
			r.log.Error("reaper sweep failed", zap.Error(err))
		}

		select {
		case <-ctx.Done():
			r.log.Info("reaper stopped")
			return
		case <-ticker.C:
		}
	}
}

// Sweep deletes expired links in batches and returns how many were removed.
func (r *Reaper) Sweep(ctx context.Context) (int, error) {
	cutoff := r.now().Add(-r.grace)
	removed := 0

	for {
		links, err := r.storage.ListExpiredLinks(ctx, cutoff, r.batchSize)
		if err != nil {
			return removed, err
		}
		if len(links) == 0 {
			break
		}

		for _, link := range links {
			if _, err := r.storage.DeleteLink(ctx, link.ID, link.UserID); err != nil {
				if errors.Is(err, repository.ErrLinkNotFound) {
					continue
				}
				return removed, err
			}
			removed++
		}

		if len(links) < r.batchSize {
			break
		}
	}

	if removed > 0 {
		r.log.Info("purged expired links", zap.Int("count", removed))
	}
	return removed, nil
}
