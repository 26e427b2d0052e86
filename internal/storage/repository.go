package storage

import (
	"context"
	"time"

	"github.com/hackrange/ctf-engine/internal/models"
)

// Repository defines the interface for progress persistence
type Repository interface {
	// Progress
	// UpsertSubmission atomically records one submission for the
	// (userID, challengeID) key: attempts always increments by one,
	// completed only transitions false->true, completed_at is set once.
	// Returns the post-update record.
	UpsertSubmission(ctx context.Context, userID, challengeID string, correct bool, submittedAt time.Time) (*models.ProgressRecord, error)
	ListProgress(ctx context.Context, filters models.ProgressFilters) ([]*models.ProgressRecord, error)

	// Submission logs
	CreateSubmissionLog(ctx context.Context, log *models.SubmissionLog) error
	ListSubmissionLogs(ctx context.Context, filters models.LogFilters) ([]*models.SubmissionLog, error)

	// Users (roster)
	UpsertUser(ctx context.Context, u *models.User) error
	GetUser(ctx context.Context, id string) (*models.User, error)
	ListUsers(ctx context.Context) ([]*models.User, error)

	// API Clients
	GetClientByApiKey(ctx context.Context, apiKey string) (*models.ApiClient, error)
	UpdateClientLastUsed(ctx context.Context, apiKey string) error

	// Health
	Ping(ctx context.Context) error
	Close() error
}
