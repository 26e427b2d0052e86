package targets

import (
	"context"
	"crypto/rand"
	"database/sql"
	"encoding/hex"
	"fmt"
	"log/slog"
	"strings"

	_ "github.com/lib/pq"

	"github.com/hackrange/ctf-engine/internal/models"
)

// PostgresProvider implements Provider for PostgreSQL practice targets.
// Each challenge gets its own database and low-privilege role on a
// shared training instance.
type PostgresProvider struct {
	BaseProvider
	db   *sql.DB
	host string
	port int
}

// NewPostgresProvider creates a new PostgreSQL provider
func NewPostgresProvider(dsn string) (*PostgresProvider, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to postgres: %w", err)
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping postgres: %w", err)
	}

	host, port := parseHostPort(dsn, "localhost", 5432)

	return &PostgresProvider{
		BaseProvider: BaseProvider{targetType: "postgres"},
		db:           db,
		host:         host,
		port:         port,
	}, nil
}

// Provision creates a database and role for the challenge. Idempotent:
// credentials are never persisted, so every restart re-provisions the
// same targets. An existing role gets its password rotated and an
// existing database is left untouched, data included.
func (p *PostgresProvider) Provision(ctx context.Context, challengeID string) (*models.ServerCredentials, error) {
	dbName := fmt.Sprintf("ctf_%s", sanitize(challengeID))
	userName := fmt.Sprintf("ctf_user_%s", sanitize(challengeID))
	password := generatePassword(16)

	slog.Info("provisioning postgres target",
		"challenge_id", challengeID,
		"database", dbName,
		"user", userName,
	)

	var roleExists bool
	checkRoleSQL := "SELECT EXISTS (SELECT 1 FROM pg_roles WHERE rolname = $1)"
	if err := p.db.QueryRowContext(ctx, checkRoleSQL, userName).Scan(&roleExists); err != nil {
		return nil, fmt.Errorf("failed to check role: %w", err)
	}

	if roleExists {
		alterUserSQL := fmt.Sprintf("ALTER USER %s WITH PASSWORD '%s'", userName, password)
		if _, err := p.db.ExecContext(ctx, alterUserSQL); err != nil {
			return nil, fmt.Errorf("failed to rotate password: %w", err)
		}
	} else {
		createUserSQL := fmt.Sprintf("CREATE USER %s WITH PASSWORD '%s'", userName, password)
		if _, err := p.db.ExecContext(ctx, createUserSQL); err != nil {
			return nil, fmt.Errorf("failed to create user: %w", err)
		}
	}

	var dbExists bool
	checkDBSQL := "SELECT EXISTS (SELECT 1 FROM pg_database WHERE datname = $1)"
	if err := p.db.QueryRowContext(ctx, checkDBSQL, dbName).Scan(&dbExists); err != nil {
		return nil, fmt.Errorf("failed to check database: %w", err)
	}

	if !dbExists {
		createDBSQL := fmt.Sprintf("CREATE DATABASE %s OWNER %s", dbName, userName)
		if _, err := p.db.ExecContext(ctx, createDBSQL); err != nil {
			if !roleExists {
				// Cleanup user we just created
				_, _ = p.db.ExecContext(ctx, fmt.Sprintf("DROP USER IF EXISTS %s", userName))
			}
			return nil, fmt.Errorf("failed to create database: %w", err)
		}
	}

	uri := fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=disable",
		userName, password, p.host, p.port, dbName)

	return &models.ServerCredentials{
		Host:     p.host,
		Port:     p.port,
		Username: userName,
		Password: password,
		URI:      uri,
	}, nil
}

// Deprovision removes the database and role
func (p *PostgresProvider) Deprovision(ctx context.Context, challengeID string) error {
	dbName := fmt.Sprintf("ctf_%s", sanitize(challengeID))
	userName := fmt.Sprintf("ctf_user_%s", sanitize(challengeID))

	slog.Info("deprovisioning postgres target",
		"challenge_id", challengeID,
		"database", dbName,
	)

	// Terminate existing connections first
	terminateSQL := fmt.Sprintf(`
		SELECT pg_terminate_backend(pid)
		FROM pg_stat_activity
		WHERE datname = '%s' AND pid <> pg_backend_pid()
	`, dbName)
	_, _ = p.db.ExecContext(ctx, terminateSQL)

	if _, err := p.db.ExecContext(ctx, fmt.Sprintf("DROP DATABASE IF EXISTS %s", dbName)); err != nil {
		slog.Warn("failed to drop database", "error", err, "database", dbName)
	}

	if _, err := p.db.ExecContext(ctx, fmt.Sprintf("DROP USER IF EXISTS %s", userName)); err != nil {
		slog.Warn("failed to drop user", "error", err, "user", userName)
	}

	return nil
}

// HealthCheck verifies PostgreSQL connectivity
func (p *PostgresProvider) HealthCheck(ctx context.Context) error {
	return p.db.PingContext(ctx)
}

// Close closes the admin connection
func (p *PostgresProvider) Close() error {
	return p.db.Close()
}

// sanitize makes a challenge id safe for use in SQL identifiers
func sanitize(id string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			return r
		case r >= 'A' && r <= 'Z':
			return r + ('a' - 'A')
		default:
			return '_'
		}
	}, id)
}

// parseHostPort extracts host and port from a URI-style DSN
func parseHostPort(dsn, defaultHost string, defaultPort int) (string, int) {
	host := defaultHost
	port := defaultPort

	if strings.Contains(dsn, "@") {
		parts := strings.Split(dsn, "@")
		hostPart := strings.Split(parts[len(parts)-1], "/")[0]
		if strings.Contains(hostPart, ":") {
			hostParts := strings.Split(hostPart, ":")
			host = hostParts[0]
			fmt.Sscanf(hostParts[1], "%d", &port)
		} else if hostPart != "" {
			host = hostPart
		}
	}

	return host, port
}

// generatePassword creates a random password
func generatePassword(length int) string {
	bytes := make([]byte, length)
	if _, err := rand.Read(bytes); err != nil {
		return "ctf_default_pass_" + fmt.Sprintf("%d", length)
	}
	return hex.EncodeToString(bytes)[:length]
}
