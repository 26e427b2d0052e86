package leaderboard

import (
	"context"
	"testing"
	"time"

	"github.com/hackrange/ctf-engine/internal/models"
)

type stubStore struct {
	records []*models.ProgressRecord
	users   []*models.User
	filters models.ProgressFilters
}

func (s *stubStore) ListProgress(ctx context.Context, filters models.ProgressFilters) ([]*models.ProgressRecord, error) {
	s.filters = filters
	return s.records, nil
}

func (s *stubStore) ListUsers(ctx context.Context) ([]*models.User, error) {
	return s.users, nil
}

type stubCatalog struct {
	challenges []*models.Challenge
}

func (c *stubCatalog) List() []*models.Challenge {
	return c.challenges
}

func TestSnapshotWithoutRedis(t *testing.T) {
	at := time.Now()
	store := &stubStore{
		records: []*models.ProgressRecord{
			{UserID: "alice", ChallengeID: "recon", Completed: true, CompletedAt: &at},
		},
		users: []*models.User{
			{ID: "alice", Username: "alice"},
			{ID: "bob", Username: "bob"},
		},
	}
	catalog := &stubCatalog{challenges: []*models.Challenge{{ID: "recon", Points: 50}}}

	svc := NewService(store, catalog, nil, time.Minute)

	snap, err := svc.Snapshot(context.Background())
	if err != nil {
		t.Fatalf("Snapshot failed: %v", err)
	}

	if snap.TotalUsers != 2 {
		t.Errorf("expected 2 users, got %d", snap.TotalUsers)
	}
	if snap.Entries[0].UserID != "alice" || snap.Entries[0].Points != 50 {
		t.Errorf("unexpected top entry: %+v", snap.Entries[0])
	}
	if snap.GeneratedAt.IsZero() {
		t.Error("expected generated_at to be set")
	}

	// Recompute only considers completed records
	if store.filters.Completed == nil || !*store.filters.Completed {
		t.Error("expected progress listing filtered to completed records")
	}
}
