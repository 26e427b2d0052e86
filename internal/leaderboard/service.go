package leaderboard

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/hackrange/ctf-engine/internal/models"
)

const cacheKey = "leaderboard:overall"

// Store is the subset of the storage repository the service depends on
type Store interface {
	ListProgress(ctx context.Context, filters models.ProgressFilters) ([]*models.ProgressRecord, error)
	ListUsers(ctx context.Context) ([]*models.User, error)
}

// Catalog is the read-only challenge source used for point values
type Catalog interface {
	List() []*models.Challenge
}

// Service produces leaderboard snapshots, with a Redis-backed cache in
// front of the computation. The cache is a throwaway copy: the source
// of truth is always progress records plus the catalog.
type Service struct {
	store   Store
	catalog Catalog
	rdb     *redis.Client
	ttl     time.Duration
	now     func() time.Time
}

// NewService creates a new leaderboard service. rdb may be nil, in
// which case every snapshot is computed from storage.
func NewService(store Store, catalog Catalog, rdb *redis.Client, ttl time.Duration) *Service {
	return &Service{
		store:   store,
		catalog: catalog,
		rdb:     rdb,
		ttl:     ttl,
		now:     time.Now,
	}
}

// Snapshot returns the current leaderboard, served from cache when fresh
func (s *Service) Snapshot(ctx context.Context) (*models.LeaderboardSnapshot, error) {
	if s.rdb != nil {
		data, err := s.rdb.Get(ctx, cacheKey).Bytes()
		if err == nil {
			var snap models.LeaderboardSnapshot
			if err := json.Unmarshal(data, &snap); err == nil {
				return &snap, nil
			}
			// A corrupt cache entry falls through to a recompute
			slog.Warn("discarding unreadable leaderboard cache entry")
		} else if !errors.Is(err, redis.Nil) {
			return nil, fmt.Errorf("failed to read leaderboard cache: %w", err)
		}
	}

	return s.Recompute(ctx)
}

// Recompute builds a fresh snapshot from storage and the catalog,
// updating the cache on the way out
func (s *Service) Recompute(ctx context.Context) (*models.LeaderboardSnapshot, error) {
	completed := true
	records, err := s.store.ListProgress(ctx, models.ProgressFilters{Completed: &completed})
	if err != nil {
		return nil, fmt.Errorf("failed to load progress records: %w", err)
	}

	roster, err := s.store.ListUsers(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load roster: %w", err)
	}

	snap := &models.LeaderboardSnapshot{
		Entries:     Compute(records, s.catalog.List(), roster),
		GeneratedAt: s.now().UTC(),
	}
	snap.TotalUsers = len(snap.Entries)

	if s.rdb != nil {
		data, err := json.Marshal(snap)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal snapshot: %w", err)
		}
		if err := s.rdb.Set(ctx, cacheKey, data, s.ttl).Err(); err != nil {
			// Cache write failure degrades to uncached reads
			slog.Warn("failed to write leaderboard cache", "error", err)
		}
	}

	return snap, nil
}

// Invalidate drops the cached snapshot so the next read recomputes.
// Called after every first solve.
func (s *Service) Invalidate(ctx context.Context) {
	if s.rdb == nil {
		return
	}
	if err := s.rdb.Del(ctx, cacheKey).Err(); err != nil {
		slog.Warn("failed to invalidate leaderboard cache", "error", err)
	}
}
