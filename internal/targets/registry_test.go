package targets

import (
	"context"
	"errors"
	"testing"

	"github.com/hackrange/ctf-engine/internal/models"
)

// stubProvider records provisioning calls and can fail for chosen
// challenge ids
type stubProvider struct {
	BaseProvider
	failFor       map[string]bool
	provisioned   []string
	deprovisioned []string
}

func newStubProvider(targetType string) *stubProvider {
	return &stubProvider{
		BaseProvider: BaseProvider{targetType: targetType},
		failFor:      make(map[string]bool),
	}
}

func (p *stubProvider) Provision(ctx context.Context, challengeID string) (*models.ServerCredentials, error) {
	if p.failFor[challengeID] {
		return nil, errors.New("backing service unavailable")
	}
	p.provisioned = append(p.provisioned, challengeID)
	return &models.ServerCredentials{Host: "localhost", Port: 5432, Username: "ctf_user_" + challengeID}, nil
}

func (p *stubProvider) Deprovision(ctx context.Context, challengeID string) error {
	p.deprovisioned = append(p.deprovisioned, challengeID)
	return nil
}

func (p *stubProvider) HealthCheck(ctx context.Context) error {
	return nil
}

func TestProvisionAllContinuesPastFailures(t *testing.T) {
	registry := NewRegistry()
	provider := newStubProvider("postgres")
	provider.failFor["broken"] = true
	registry.Register("postgres", provider)

	challenges := []*models.Challenge{
		{ID: "broken", Target: "postgres"},
		{ID: "healthy", Target: "postgres"},
		{ID: "plain"},
	}

	err := registry.ProvisionAll(context.Background(), challenges)
	if err == nil {
		t.Fatal("expected error for the failing challenge")
	}

	// The failure must not block later challenges
	if challenges[1].Credentials == nil {
		t.Error("healthy challenge should still receive credentials")
	}
	if challenges[0].Credentials != nil {
		t.Error("failing challenge must not receive credentials")
	}
	if challenges[2].Credentials != nil {
		t.Error("challenge without a target must not be provisioned")
	}
}

func TestProvisionAllMissingProvider(t *testing.T) {
	registry := NewRegistry()

	challenges := []*models.Challenge{
		{ID: "orphan", Target: "mysql"},
	}

	if err := registry.ProvisionAll(context.Background(), challenges); err == nil {
		t.Fatal("expected error for unregistered target type")
	}
	if challenges[0].Credentials != nil {
		t.Error("challenge must not receive credentials without a provider")
	}
}

func TestProvisionAllSkipsExistingCredentials(t *testing.T) {
	registry := NewRegistry()
	provider := newStubProvider("postgres")
	registry.Register("postgres", provider)

	creds := &models.ServerCredentials{Host: "static-host", Port: 5432}
	challenges := []*models.Challenge{
		{ID: "preset", Target: "postgres", Credentials: creds},
	}

	if err := registry.ProvisionAll(context.Background(), challenges); err != nil {
		t.Fatalf("ProvisionAll failed: %v", err)
	}

	if len(provider.provisioned) != 0 {
		t.Errorf("definition-supplied credentials must not be overwritten, provisioned %v", provider.provisioned)
	}
	if challenges[0].Credentials != creds {
		t.Error("existing credentials replaced")
	}
}

func TestDeprovisionDropped(t *testing.T) {
	registry := NewRegistry()
	provider := newStubProvider("postgres")
	registry.Register("postgres", provider)

	previous := map[string]string{
		"kept":    "postgres",
		"dropped": "postgres",
		"removed": "postgres",
	}
	current := []*models.Challenge{
		{ID: "kept", Target: "postgres"},
		{ID: "dropped"}, // target removed from the definition
		// "removed" no longer in the catalog at all
	}

	registry.DeprovisionDropped(context.Background(), previous, current)

	got := make(map[string]bool, len(provider.deprovisioned))
	for _, id := range provider.deprovisioned {
		got[id] = true
	}

	if got["kept"] {
		t.Error("challenge that kept its target must not be deprovisioned")
	}
	if !got["dropped"] || !got["removed"] {
		t.Errorf("expected dropped and removed targets torn down, got %v", provider.deprovisioned)
	}
}
