package leaderboard

import (
	"context"
	"log/slog"
	"time"
)

// Refresher periodically recomputes the leaderboard so the cache stays
// warm between solves
type Refresher struct {
	service  *Service
	interval time.Duration
}

// NewRefresher creates a new refresher worker
func NewRefresher(service *Service, interval time.Duration) *Refresher {
	if interval <= 0 {
		interval = 1 * time.Minute
	}

	return &Refresher{
		service:  service,
		interval: interval,
	}
}

// Start begins the refresher in a goroutine
func (r *Refresher) Start(ctx context.Context) {
	go r.run(ctx)
}

// run is the main loop for the refresher worker
func (r *Refresher) run(ctx context.Context) {
	slog.Info("leaderboard refresher started", "interval", r.interval)

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	// Warm the cache immediately on start
	r.refresh(ctx)

	for {
		select {
		case <-ctx.Done():
			slog.Info("leaderboard refresher stopped")
			return
		case <-ticker.C:
			r.refresh(ctx)
		}
	}
}

func (r *Refresher) refresh(ctx context.Context) {
	start := time.Now()

	snap, err := r.service.Recompute(ctx)
	if err != nil {
		slog.Error("failed to refresh leaderboard", "error", err)
		return
	}

	slog.Debug("leaderboard refreshed",
		"users", snap.TotalUsers,
		"duration_ms", time.Since(start).Milliseconds(),
	)
}
