package targets

import (
	"context"

	"github.com/hackrange/ctf-engine/internal/models"
)

// Provider provisions practice-target credentials for challenges that
// declare a backing service (e.g. a network challenge against a shared
// Postgres instance). The grading core treats the credentials as opaque.
type Provider interface {
	// Provision creates isolated resources for a challenge
	Provision(ctx context.Context, challengeID string) (*models.ServerCredentials, error)

	// Deprovision removes all resources for a challenge
	Deprovision(ctx context.Context, challengeID string) error

	// Type returns the target type name
	Type() string

	// HealthCheck checks if the backing service is available
	HealthCheck(ctx context.Context) error
}

// BaseProvider provides common functionality for providers
type BaseProvider struct {
	targetType string
}

// Type returns the target type
func (p *BaseProvider) Type() string {
	return p.targetType
}
