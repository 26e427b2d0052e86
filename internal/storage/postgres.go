package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/hackrange/ctf-engine/internal/models"
)

// PostgresRepository implements Repository using PostgreSQL
type PostgresRepository struct {
	pool *pgxpool.Pool
}

// PostgresConfig holds PostgreSQL connection configuration
type PostgresConfig struct {
	DSN          string
	MaxOpenConns int32
	MaxIdleConns int32
	MaxLifetime  time.Duration
}

// NewPostgresRepository creates a new PostgreSQL repository
func NewPostgresRepository(ctx context.Context, cfg PostgresConfig) (*PostgresRepository, error) {
	poolConfig, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("failed to parse DSN: %w", err)
	}

	if cfg.MaxOpenConns > 0 {
		poolConfig.MaxConns = cfg.MaxOpenConns
	} else {
		poolConfig.MaxConns = 25
	}

	if cfg.MaxIdleConns > 0 {
		poolConfig.MinConns = cfg.MaxIdleConns
	} else {
		poolConfig.MinConns = 5
	}

	if cfg.MaxLifetime > 0 {
		poolConfig.MaxConnLifetime = cfg.MaxLifetime
	} else {
		poolConfig.MaxConnLifetime = 30 * time.Minute
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &PostgresRepository{pool: pool}, nil
}

// Ping checks database connectivity
func (r *PostgresRepository) Ping(ctx context.Context) error {
	return r.pool.Ping(ctx)
}

// Close closes the database connection pool
func (r *PostgresRepository) Close() error {
	r.pool.Close()
	return nil
}

// --- Progress ---

// UpsertSubmission records one submission atomically. The whole
// read-modify-write runs inside a single INSERT ... ON CONFLICT, so
// concurrent submissions for the same key cannot lose attempts and
// completed_at is set at most once.
func (r *PostgresRepository) UpsertSubmission(ctx context.Context, userID, challengeID string, correct bool, submittedAt time.Time) (*models.ProgressRecord, error) {
	var completedAt *time.Time
	if correct {
		completedAt = &submittedAt
	}

	query := `
		INSERT INTO progress_records (id, user_id, challenge_id, attempts, completed, completed_at, created_at)
		VALUES ($1, $2, $3, 1, $4, $5, $6)
		ON CONFLICT (user_id, challenge_id) DO UPDATE
		SET attempts = progress_records.attempts + 1,
		    completed = progress_records.completed OR EXCLUDED.completed,
		    completed_at = COALESCE(progress_records.completed_at, EXCLUDED.completed_at)
		RETURNING id, user_id, challenge_id, attempts, completed, completed_at, created_at
	`

	var rec models.ProgressRecord
	var recCompletedAt sql.NullTime

	err := r.pool.QueryRow(ctx, query,
		uuid.NewString(),
		userID,
		challengeID,
		correct,
		nullTime(completedAt),
		submittedAt,
	).Scan(
		&rec.ID,
		&rec.UserID,
		&rec.ChallengeID,
		&rec.Attempts,
		&rec.Completed,
		&recCompletedAt,
		&rec.CreatedAt,
	)

	if err != nil {
		return nil, fmt.Errorf("failed to upsert submission: %w", err)
	}

	if recCompletedAt.Valid {
		rec.CompletedAt = &recCompletedAt.Time
	}

	return &rec, nil
}

// ListProgress returns progress records matching filters
func (r *PostgresRepository) ListProgress(ctx context.Context, filters models.ProgressFilters) ([]*models.ProgressRecord, error) {
	query := `
		SELECT id, user_id, challenge_id, attempts, completed, completed_at, created_at
		FROM progress_records
		WHERE 1=1
	`
	args := make([]interface{}, 0)
	argNum := 1

	if filters.UserID != "" {
		query += fmt.Sprintf(" AND user_id = $%d", argNum)
		args = append(args, filters.UserID)
		argNum++
	}

	if filters.ChallengeID != "" {
		query += fmt.Sprintf(" AND challenge_id = $%d", argNum)
		args = append(args, filters.ChallengeID)
		argNum++
	}

	if filters.Completed != nil {
		query += fmt.Sprintf(" AND completed = $%d", argNum)
		args = append(args, *filters.Completed)
		argNum++
	}

	query += " ORDER BY created_at ASC"

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list progress: %w", err)
	}
	defer rows.Close()

	var records []*models.ProgressRecord

	for rows.Next() {
		var rec models.ProgressRecord
		var completedAt sql.NullTime

		err := rows.Scan(
			&rec.ID,
			&rec.UserID,
			&rec.ChallengeID,
			&rec.Attempts,
			&rec.Completed,
			&completedAt,
			&rec.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan progress record: %w", err)
		}

		if completedAt.Valid {
			rec.CompletedAt = &completedAt.Time
		}

		records = append(records, &rec)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating progress records: %w", err)
	}

	return records, nil
}

// --- Submission logs ---

// CreateSubmissionLog appends an audit record for a flag submission
func (r *PostgresRepository) CreateSubmissionLog(ctx context.Context, log *models.SubmissionLog) error {
	query := `
		INSERT INTO submission_logs (id, user_id, challenge_id, submitted_flag, outcome, ip_address, submitted_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`

	_, err := r.pool.Exec(ctx, query,
		log.ID,
		log.UserID,
		log.ChallengeID,
		log.SubmittedFlag,
		string(log.Outcome),
		nullString(log.IPAddress),
		log.SubmittedAt,
	)

	if err != nil {
		return fmt.Errorf("failed to create submission log: %w", err)
	}

	return nil
}

// ListSubmissionLogs returns audit records matching filters, newest first
func (r *PostgresRepository) ListSubmissionLogs(ctx context.Context, filters models.LogFilters) ([]*models.SubmissionLog, error) {
	query := `
		SELECT id, user_id, challenge_id, submitted_flag, outcome, ip_address, submitted_at
		FROM submission_logs
		WHERE 1=1
	`
	args := make([]interface{}, 0)
	argNum := 1

	if filters.UserID != "" {
		query += fmt.Sprintf(" AND user_id = $%d", argNum)
		args = append(args, filters.UserID)
		argNum++
	}

	if filters.ChallengeID != "" {
		query += fmt.Sprintf(" AND challenge_id = $%d", argNum)
		args = append(args, filters.ChallengeID)
		argNum++
	}

	if filters.Outcome != "" {
		query += fmt.Sprintf(" AND outcome = $%d", argNum)
		args = append(args, string(filters.Outcome))
		argNum++
	}

	query += " ORDER BY submitted_at DESC"

	if filters.Limit > 0 {
		query += fmt.Sprintf(" LIMIT $%d", argNum)
		args = append(args, filters.Limit)
		argNum++
	}

	if filters.Offset > 0 {
		query += fmt.Sprintf(" OFFSET $%d", argNum)
		args = append(args, filters.Offset)
	}

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list submission logs: %w", err)
	}
	defer rows.Close()

	var logs []*models.SubmissionLog

	for rows.Next() {
		var log models.SubmissionLog
		var outcomeStr string
		var ipAddress sql.NullString

		err := rows.Scan(
			&log.ID,
			&log.UserID,
			&log.ChallengeID,
			&log.SubmittedFlag,
			&outcomeStr,
			&ipAddress,
			&log.SubmittedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan submission log: %w", err)
		}

		log.Outcome = models.SubmissionOutcome(outcomeStr)
		log.IPAddress = ipAddress.String

		logs = append(logs, &log)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating submission logs: %w", err)
	}

	return logs, nil
}

// --- Users ---

// UpsertUser creates or updates a roster entry
func (r *PostgresRepository) UpsertUser(ctx context.Context, u *models.User) error {
	query := `
		INSERT INTO users (id, username, display_name, bio, created_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (id) DO UPDATE
		SET username = EXCLUDED.username,
		    display_name = EXCLUDED.display_name,
		    bio = EXCLUDED.bio
	`

	_, err := r.pool.Exec(ctx, query,
		u.ID,
		u.Username,
		nullString(u.DisplayName),
		nullString(u.Bio),
		u.CreatedAt,
	)

	if err != nil {
		return fmt.Errorf("failed to upsert user: %w", err)
	}

	return nil
}

// GetUser retrieves a roster entry by id
func (r *PostgresRepository) GetUser(ctx context.Context, id string) (*models.User, error) {
	query := `
		SELECT id, username, display_name, bio, created_at
		FROM users
		WHERE id = $1
	`

	var u models.User
	var displayName, bio sql.NullString

	err := r.pool.QueryRow(ctx, query, id).Scan(
		&u.ID,
		&u.Username,
		&displayName,
		&bio,
		&u.CreatedAt,
	)

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil // Not found
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}

	u.DisplayName = displayName.String
	u.Bio = bio.String

	return &u, nil
}

// ListUsers returns the full roster in registration order. The order is
// the leaderboard's stable tie-break, so it must be deterministic.
func (r *PostgresRepository) ListUsers(ctx context.Context) ([]*models.User, error) {
	query := `
		SELECT id, username, display_name, bio, created_at
		FROM users
		ORDER BY created_at ASC, id ASC
	`

	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	defer rows.Close()

	var users []*models.User

	for rows.Next() {
		var u models.User
		var displayName, bio sql.NullString

		err := rows.Scan(
			&u.ID,
			&u.Username,
			&displayName,
			&bio,
			&u.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan user: %w", err)
		}

		u.DisplayName = displayName.String
		u.Bio = bio.String

		users = append(users, &u)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating users: %w", err)
	}

	return users, nil
}

// --- API clients ---

// GetClientByApiKey retrieves an API client by its key
func (r *PostgresRepository) GetClientByApiKey(ctx context.Context, apiKey string) (*models.ApiClient, error) {
	query := `
		SELECT id, name, api_key, is_active, permissions, created_at, last_used_at
		FROM api_clients
		WHERE api_key = $1
	`

	var client models.ApiClient
	var lastUsedAt sql.NullTime

	err := r.pool.QueryRow(ctx, query, apiKey).Scan(
		&client.ID,
		&client.Name,
		&client.ApiKey,
		&client.IsActive,
		&client.Permissions,
		&client.CreatedAt,
		&lastUsedAt,
	)

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil // Not found
		}
		return nil, fmt.Errorf("failed to get api client: %w", err)
	}

	if lastUsedAt.Valid {
		client.LastUsedAt = &lastUsedAt.Time
	}

	return &client, nil
}

// UpdateClientLastUsed updates the last_used_at timestamp for a client
func (r *PostgresRepository) UpdateClientLastUsed(ctx context.Context, apiKey string) error {
	query := `UPDATE api_clients SET last_used_at = NOW() WHERE api_key = $1`

	_, err := r.pool.Exec(ctx, query, apiKey)
	if err != nil {
		return fmt.Errorf("failed to update client last_used_at: %w", err)
	}

	return nil
}

// Helper functions for nullable values

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}
