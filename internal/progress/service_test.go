package progress

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/hackrange/ctf-engine/internal/models"
)

// fakeCatalog serves a fixed set of challenges
type fakeCatalog struct {
	challenges map[string]*models.Challenge
}

func (c *fakeCatalog) Get(id string) *models.Challenge {
	return c.challenges[id]
}

// fakeStore mirrors the upsert semantics of the Postgres repository
// in memory: one record per (user, challenge), attempts incremented on
// every submission, completed_at set at most once.
type fakeStore struct {
	records map[string]*models.ProgressRecord
	logs    []*models.SubmissionLog
	failLog bool
}

func newFakeStore() *fakeStore {
	return &fakeStore{records: make(map[string]*models.ProgressRecord)}
}

func (s *fakeStore) key(userID, challengeID string) string {
	return userID + "/" + challengeID
}

func (s *fakeStore) UpsertSubmission(ctx context.Context, userID, challengeID string, correct bool, submittedAt time.Time) (*models.ProgressRecord, error) {
	// timestamptz keeps microseconds; drop nanoseconds like the real
	// storage layer would
	submittedAt = submittedAt.Truncate(time.Microsecond)

	key := s.key(userID, challengeID)
	rec, ok := s.records[key]
	if !ok {
		rec = &models.ProgressRecord{
			ID:          fmt.Sprintf("rec-%d", len(s.records)+1),
			UserID:      userID,
			ChallengeID: challengeID,
			CreatedAt:   submittedAt,
		}
		s.records[key] = rec
	}

	rec.Attempts++
	if correct && !rec.Completed {
		rec.Completed = true
		at := submittedAt
		rec.CompletedAt = &at
	}

	snapshot := *rec
	return &snapshot, nil
}

func (s *fakeStore) ListProgress(ctx context.Context, filters models.ProgressFilters) ([]*models.ProgressRecord, error) {
	var out []*models.ProgressRecord
	for _, rec := range s.records {
		if filters.UserID != "" && rec.UserID != filters.UserID {
			continue
		}
		if filters.ChallengeID != "" && rec.ChallengeID != filters.ChallengeID {
			continue
		}
		if filters.Completed != nil && rec.Completed != *filters.Completed {
			continue
		}
		out = append(out, rec)
	}
	return out, nil
}

func (s *fakeStore) CreateSubmissionLog(ctx context.Context, log *models.SubmissionLog) error {
	if s.failLog {
		return errors.New("log write failed")
	}
	s.logs = append(s.logs, log)
	return nil
}

func (s *fakeStore) ListSubmissionLogs(ctx context.Context, filters models.LogFilters) ([]*models.SubmissionLog, error) {
	var out []*models.SubmissionLog
	for _, l := range s.logs {
		if filters.UserID != "" && l.UserID != filters.UserID {
			continue
		}
		if filters.ChallengeID != "" && l.ChallengeID != filters.ChallengeID {
			continue
		}
		if filters.Outcome != "" && l.Outcome != filters.Outcome {
			continue
		}
		out = append(out, l)
	}
	return out, nil
}

func newTestService(store *fakeStore) *Service {
	catalog := &fakeCatalog{challenges: map[string]*models.Challenge{
		"basic-recon": {
			ID:         "basic-recon",
			Title:      "Basic Reconnaissance Techniques",
			Category:   models.CategoryGettingStarted,
			Difficulty: models.DifficultyEasy,
			Points:     50,
			Flag:       "FLAG{recon_master}",
		},
	}}
	return NewService(catalog, store)
}

func TestSubmitFlagCorrect(t *testing.T) {
	store := newFakeStore()
	svc := newTestService(store)

	result, err := svc.SubmitFlag(context.Background(), Submission{
		UserID:      "user-1",
		ChallengeID: "basic-recon",
		Flag:        "FLAG{recon_master}",
	})
	if err != nil {
		t.Fatalf("SubmitFlag failed: %v", err)
	}

	if !result.Correct {
		t.Error("expected correct result")
	}
	if result.AlreadyCompleted {
		t.Error("first solve should not be marked already completed")
	}
	if result.PointsAwarded != 50 {
		t.Errorf("expected 50 points awarded, got %d", result.PointsAwarded)
	}
	if result.Attempts != 1 {
		t.Errorf("expected 1 attempt, got %d", result.Attempts)
	}

	if len(store.logs) != 1 {
		t.Fatalf("expected 1 log entry, got %d", len(store.logs))
	}
	if store.logs[0].Outcome != models.OutcomeCorrect {
		t.Errorf("expected outcome correct, got %s", store.logs[0].Outcome)
	}
}

func TestSubmitFlagFirstSolveSurvivesTimestampRounding(t *testing.T) {
	// The store round-trips timestamps at microsecond precision while the
	// clock hands out nanoseconds; first-solve detection must not be
	// fooled by the lost digits.
	store := newFakeStore()
	svc := newTestService(store)
	svc.now = func() time.Time {
		return time.Date(2026, 3, 14, 15, 9, 26, 535897932, time.UTC)
	}

	var solves int
	svc.OnSolve(func(ctx context.Context, ev models.SolveEvent) {
		solves++
	})

	result, err := svc.SubmitFlag(context.Background(), Submission{
		UserID:      "user-1",
		ChallengeID: "basic-recon",
		Flag:        "FLAG{recon_master}",
	})
	if err != nil {
		t.Fatalf("SubmitFlag failed: %v", err)
	}

	if result.AlreadyCompleted {
		t.Error("first solve must not be reported as already completed")
	}
	if result.PointsAwarded != 50 {
		t.Errorf("first solve awarded %d points, want 50", result.PointsAwarded)
	}
	if solves != 1 {
		t.Errorf("expected 1 solve event, got %d", solves)
	}
	if store.logs[0].Outcome != models.OutcomeCorrect {
		t.Errorf("expected outcome correct, got %s", store.logs[0].Outcome)
	}
}

func TestSubmitFlagWrong(t *testing.T) {
	store := newFakeStore()
	svc := newTestService(store)

	result, err := svc.SubmitFlag(context.Background(), Submission{
		UserID:      "user-1",
		ChallengeID: "basic-recon",
		Flag:        "FLAG{nope}",
	})
	if err != nil {
		t.Fatalf("SubmitFlag failed: %v", err)
	}

	if result.Correct {
		t.Error("expected incorrect result")
	}
	if result.PointsAwarded != 0 {
		t.Errorf("expected 0 points awarded, got %d", result.PointsAwarded)
	}
	if store.logs[0].Outcome != models.OutcomeWrong {
		t.Errorf("expected outcome wrong, got %s", store.logs[0].Outcome)
	}
}

func TestSubmitFlagIdempotentCompletion(t *testing.T) {
	store := newFakeStore()
	svc := newTestService(store)
	ctx := context.Background()

	sub := Submission{UserID: "user-1", ChallengeID: "basic-recon", Flag: "FLAG{recon_master}"}

	first, err := svc.SubmitFlag(ctx, sub)
	if err != nil {
		t.Fatalf("first SubmitFlag failed: %v", err)
	}
	second, err := svc.SubmitFlag(ctx, sub)
	if err != nil {
		t.Fatalf("second SubmitFlag failed: %v", err)
	}

	if first.PointsAwarded != 50 {
		t.Errorf("first solve should award points, got %d", first.PointsAwarded)
	}
	if second.PointsAwarded != 0 {
		t.Errorf("repeat solve must not award points, got %d", second.PointsAwarded)
	}
	if !second.AlreadyCompleted {
		t.Error("repeat solve should be marked already completed")
	}
	if second.Attempts != 2 {
		t.Errorf("attempts should count every submission, got %d", second.Attempts)
	}

	// completed_at must not move on the repeat
	rec := store.records[store.key("user-1", "basic-recon")]
	if rec.CompletedAt == nil {
		t.Fatal("completed_at not set")
	}
	if len(store.logs) != 2 || store.logs[1].Outcome != models.OutcomeDuplicate {
		t.Errorf("repeat correct submission should log outcome duplicate")
	}
}

func TestSubmitFlagAttemptsKeepCountingAfterCompletion(t *testing.T) {
	store := newFakeStore()
	svc := newTestService(store)
	ctx := context.Background()

	if _, err := svc.SubmitFlag(ctx, Submission{UserID: "user-1", ChallengeID: "basic-recon", Flag: "FLAG{recon_master}"}); err != nil {
		t.Fatalf("SubmitFlag failed: %v", err)
	}

	// A wrong guess after completion still bumps attempts but never
	// un-completes the record
	result, err := svc.SubmitFlag(ctx, Submission{UserID: "user-1", ChallengeID: "basic-recon", Flag: "FLAG{wrong}"})
	if err != nil {
		t.Fatalf("SubmitFlag failed: %v", err)
	}

	if result.Correct {
		t.Error("wrong flag should not be correct")
	}
	if result.Attempts != 2 {
		t.Errorf("expected 2 attempts, got %d", result.Attempts)
	}

	rec := store.records[store.key("user-1", "basic-recon")]
	if !rec.Completed {
		t.Error("completion must never be revoked")
	}
}

func TestSubmitFlagUnknownChallenge(t *testing.T) {
	store := newFakeStore()
	svc := newTestService(store)

	_, err := svc.SubmitFlag(context.Background(), Submission{
		UserID:      "user-1",
		ChallengeID: "no-such-challenge",
		Flag:        "FLAG{anything}",
	})
	if !errors.Is(err, ErrChallengeNotFound) {
		t.Fatalf("expected ErrChallengeNotFound, got %v", err)
	}

	if len(store.records) != 0 || len(store.logs) != 0 {
		t.Error("unknown challenge must leave no progress or log records")
	}
}

func TestSubmitFlagInvalidInput(t *testing.T) {
	store := newFakeStore()
	svc := newTestService(store)
	ctx := context.Background()

	cases := []Submission{
		{UserID: "", ChallengeID: "basic-recon", Flag: "FLAG{x}"},
		{UserID: "user-1", ChallengeID: "", Flag: "FLAG{x}"},
		{UserID: "user-1", ChallengeID: "basic-recon", Flag: ""},
		{UserID: "user-1", ChallengeID: "basic-recon", Flag: "   "},
	}

	for _, sub := range cases {
		if _, err := svc.SubmitFlag(ctx, sub); !errors.Is(err, ErrInvalidInput) {
			t.Errorf("submission %+v: expected ErrInvalidInput, got %v", sub, err)
		}
	}
}

func TestSubmitFlagLogFailurePropagates(t *testing.T) {
	store := newFakeStore()
	store.failLog = true
	svc := newTestService(store)

	var solves int
	svc.OnSolve(func(ctx context.Context, ev models.SolveEvent) {
		solves++
	})

	_, err := svc.SubmitFlag(context.Background(), Submission{
		UserID:      "user-1",
		ChallengeID: "basic-recon",
		Flag:        "FLAG{recon_master}",
	})
	if err == nil {
		t.Fatal("expected error when audit log write fails")
	}

	// The completion committed before the log write, so the hooks must
	// have run regardless
	if solves != 1 {
		t.Errorf("expected solve hook to fire despite log failure, got %d", solves)
	}
	if rec := store.records[store.key("user-1", "basic-recon")]; rec == nil || !rec.Completed {
		t.Error("completion must survive the log failure")
	}
}

func TestSolveHookFiresOnFirstSolveOnly(t *testing.T) {
	store := newFakeStore()
	svc := newTestService(store)
	ctx := context.Background()

	var events []models.SolveEvent
	svc.OnSolve(func(ctx context.Context, ev models.SolveEvent) {
		events = append(events, ev)
	})

	sub := Submission{UserID: "user-1", ChallengeID: "basic-recon", Flag: "FLAG{recon_master}"}

	if _, err := svc.SubmitFlag(ctx, Submission{UserID: "user-1", ChallengeID: "basic-recon", Flag: "FLAG{wrong}"}); err != nil {
		t.Fatalf("SubmitFlag failed: %v", err)
	}
	if _, err := svc.SubmitFlag(ctx, sub); err != nil {
		t.Fatalf("SubmitFlag failed: %v", err)
	}
	if _, err := svc.SubmitFlag(ctx, sub); err != nil {
		t.Fatalf("SubmitFlag failed: %v", err)
	}

	if len(events) != 1 {
		t.Fatalf("expected exactly 1 solve event, got %d", len(events))
	}
	if events[0].UserID != "user-1" || events[0].ChallengeID != "basic-recon" || events[0].Points != 50 {
		t.Errorf("unexpected solve event: %+v", events[0])
	}
}

func TestGetProgress(t *testing.T) {
	store := newFakeStore()
	svc := newTestService(store)
	ctx := context.Background()

	if _, err := svc.SubmitFlag(ctx, Submission{UserID: "user-1", ChallengeID: "basic-recon", Flag: "FLAG{recon_master}"}); err != nil {
		t.Fatalf("SubmitFlag failed: %v", err)
	}

	records, err := svc.GetProgress(ctx, "user-1", "")
	if err != nil {
		t.Fatalf("GetProgress failed: %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("expected 1 record, got %d", len(records))
	}
	if !records[0].Completed {
		t.Error("expected completed record")
	}

	if _, err := svc.GetProgress(ctx, "", ""); !errors.Is(err, ErrInvalidInput) {
		t.Errorf("expected ErrInvalidInput for empty user id, got %v", err)
	}
}
