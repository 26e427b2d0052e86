package progress

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/hackrange/ctf-engine/internal/models"
)

var (
	// ErrChallengeNotFound is returned when the challenge id does not resolve
	ErrChallengeNotFound = errors.New("challenge not found")

	// ErrInvalidInput is returned for empty user id, challenge id or flag
	ErrInvalidInput = errors.New("invalid input")
)

// Catalog is the read-only challenge source consumed by the service
type Catalog interface {
	Get(id string) *models.Challenge
}

// Store is the subset of the storage repository the service depends on
type Store interface {
	UpsertSubmission(ctx context.Context, userID, challengeID string, correct bool, submittedAt time.Time) (*models.ProgressRecord, error)
	ListProgress(ctx context.Context, filters models.ProgressFilters) ([]*models.ProgressRecord, error)
	CreateSubmissionLog(ctx context.Context, log *models.SubmissionLog) error
	ListSubmissionLogs(ctx context.Context, filters models.LogFilters) ([]*models.SubmissionLog, error)
}

// SolveHook is invoked after a user first completes a challenge.
// Hooks run synchronously on the submitting request; implementations
// must be fast and must not block.
type SolveHook func(ctx context.Context, ev models.SolveEvent)

// Submission is a single flag submission
type Submission struct {
	UserID      string
	ChallengeID string
	Flag        string
	IPAddress   string
}

// Service turns flag submissions into durable progress updates
type Service struct {
	catalog Catalog
	store   Store
	hooks   []SolveHook
	now     func() time.Time
}

// NewService creates a new progress service
func NewService(catalog Catalog, store Store) *Service {
	return &Service{
		catalog: catalog,
		store:   store,
		now:     time.Now,
	}
}

// OnSolve registers a hook to run on every first solve
func (s *Service) OnSolve(hook SolveHook) {
	s.hooks = append(s.hooks, hook)
}

// SubmitFlag validates and records one flag submission. The attempts
// counter reflects every call, including ones after completion; points
// are awarded only on the first correct submission.
func (s *Service) SubmitFlag(ctx context.Context, sub Submission) (*models.SubmissionResult, error) {
	if sub.UserID == "" || sub.ChallengeID == "" || strings.TrimSpace(sub.Flag) == "" {
		return nil, ErrInvalidInput
	}

	challenge := s.catalog.Get(sub.ChallengeID)
	if challenge == nil {
		return nil, ErrChallengeNotFound
	}

	correct := EvaluateFlag(sub.Flag, challenge.Flag)

	// timestamptz round-trips at microsecond precision; truncate up front
	// so the RETURNING comparison below stays exact.
	submittedAt := s.now().UTC().Truncate(time.Microsecond)

	rec, err := s.store.UpsertSubmission(ctx, sub.UserID, sub.ChallengeID, correct, submittedAt)
	if err != nil {
		return nil, err
	}

	// The upsert sets completed_at at most once. This submission is the
	// first solve exactly when the stored completion time is the one we
	// just passed in; a concurrent winner leaves an earlier timestamp.
	firstSolve := correct && rec.CompletedAt != nil && rec.CompletedAt.Equal(submittedAt)
	alreadyCompleted := rec.Completed && !firstSolve

	outcome := models.OutcomeWrong
	if correct {
		outcome = models.OutcomeCorrect
		if alreadyCompleted {
			outcome = models.OutcomeDuplicate
		}
	}

	result := &models.SubmissionResult{
		Correct:          correct,
		AlreadyCompleted: alreadyCompleted,
		Attempts:         rec.Attempts,
		UserID:           sub.UserID,
		ChallengeID:      sub.ChallengeID,
	}

	// The completion is durable once the upsert commits, so hooks fire
	// before the audit write: a failed log entry must not leave the
	// leaderboard cache stale or swallow the feed event.
	if firstSolve {
		result.PointsAwarded = challenge.Points
		for _, hook := range s.hooks {
			hook(ctx, models.SolveEvent{
				UserID:      sub.UserID,
				ChallengeID: sub.ChallengeID,
				Points:      challenge.Points,
				SolvedAt:    submittedAt,
			})
		}
	}

	if err := s.store.CreateSubmissionLog(ctx, &models.SubmissionLog{
		ID:            uuid.NewString(),
		UserID:        sub.UserID,
		ChallengeID:   sub.ChallengeID,
		SubmittedFlag: sub.Flag,
		Outcome:       outcome,
		IPAddress:     sub.IPAddress,
		SubmittedAt:   submittedAt,
	}); err != nil {
		return nil, err
	}

	return result, nil
}

// GetProgress returns a user's progress records, optionally narrowed
// to a single challenge. Read-only.
func (s *Service) GetProgress(ctx context.Context, userID, challengeID string) ([]*models.ProgressRecord, error) {
	if userID == "" {
		return nil, ErrInvalidInput
	}

	return s.store.ListProgress(ctx, models.ProgressFilters{
		UserID:      userID,
		ChallengeID: challengeID,
	})
}

// ListSubmissions returns audit log entries for submitted flags
func (s *Service) ListSubmissions(ctx context.Context, filters models.LogFilters) ([]*models.SubmissionLog, error) {
	return s.store.ListSubmissionLogs(ctx, filters)
}
