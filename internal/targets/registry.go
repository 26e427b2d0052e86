package targets

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/hackrange/ctf-engine/internal/models"
)

// Registry manages target providers by type name
type Registry struct {
	mu        sync.RWMutex
	providers map[string]Provider
}

// NewRegistry creates a new target registry
func NewRegistry() *Registry {
	return &Registry{
		providers: make(map[string]Provider),
	}
}

// Register adds a provider to the registry
func (r *Registry) Register(name string, provider Provider) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.providers[name] = provider
}

// Get retrieves a provider by name
func (r *Registry) Get(name string) Provider {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.providers[name]
}

// List returns all registered provider names
func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.providers))
	for name := range r.providers {
		names = append(names, name)
	}
	return names
}

// HealthCheckAll checks health of all registered providers
func (r *Registry) HealthCheckAll(ctx context.Context) map[string]error {
	r.mu.RLock()
	defer r.mu.RUnlock()

	results := make(map[string]error)
	for name, provider := range r.providers {
		results[name] = provider.HealthCheck(ctx)
	}
	return results
}

// DeprovisionDropped tears down targets for challenges that declared
// one before a reload but no longer do. previous maps challenge id to
// its old target type; current is the reloaded catalog.
func (r *Registry) DeprovisionDropped(ctx context.Context, previous map[string]string, current []*models.Challenge) {
	kept := make(map[string]string, len(current))
	for _, ch := range current {
		if ch.Target != "" {
			kept[ch.ID] = ch.Target
		}
	}

	for id, target := range previous {
		if kept[id] == target {
			continue
		}

		provider := r.Get(target)
		if provider == nil {
			continue
		}

		if err := provider.Deprovision(ctx, id); err != nil {
			slog.Warn("failed to deprovision dropped target", "challenge", id, "target", target, "error", err)
			continue
		}
		slog.Info("challenge target deprovisioned", "challenge", id, "target", target)
	}
}

// ProvisionAll provisions credentials for every challenge that declares
// a target and does not already carry credentials from its definition.
// Challenges are mutated in place. One failing challenge does not block
// the rest; the combined error is returned after the full pass.
func (r *Registry) ProvisionAll(ctx context.Context, challenges []*models.Challenge) error {
	var errs []error

	for _, ch := range challenges {
		if ch.Target == "" || ch.Credentials != nil {
			continue
		}

		provider := r.Get(ch.Target)
		if provider == nil {
			errs = append(errs, fmt.Errorf("challenge %s: no provider registered for target %q", ch.ID, ch.Target))
			continue
		}

		creds, err := provider.Provision(ctx, ch.ID)
		if err != nil {
			slog.Warn("failed to provision challenge target", "challenge", ch.ID, "target", ch.Target, "error", err)
			errs = append(errs, fmt.Errorf("challenge %s: failed to provision %s target: %w", ch.ID, ch.Target, err))
			continue
		}

		ch.Credentials = creds
		slog.Info("challenge target provisioned", "challenge", ch.ID, "target", ch.Target)
	}

	return errors.Join(errs...)
}
