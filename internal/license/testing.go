package license

import (
	"context"
	"log/slog"
)

// StaticStore is a ConfigStore with fixed contents, for tests.
type StaticStore struct {
	Config  *LicenseConfig
	Address string
}

// ReadConfig implements ConfigStore.
func (s *StaticStore) ReadConfig() *LicenseConfig {
	if s.Config == nil {
		return nil
	}
	cfg := *s.Config
	return &cfg
}

// ResolveAuthorityAddress implements ConfigStore.
func (s *StaticStore) ResolveAuthorityAddress() string {
	if s.Address == "" {
		return DefaultAuthorityURL
	}
	return s.Address
}

// staticAuthority answers every request with the same tier.
type staticAuthority struct {
	tier Tier
}

func (a staticAuthority) Verify(context.Context, LicenseConfig) (*VerificationResult, error) {
	return &VerificationResult{
		Valid:   true,
		Message: "ok",
		License: &LicenseInfo{Tier: a.tier, ExpiresAt: NeverExpires(), CustomerName: "test"},
	}, nil
}

func (a staticAuthority) Activate(context.Context, string, string) (*ActivationOutcome, error) {
	return &ActivationOutcome{
		Success: true,
		Message: "activated",
		License: &LicenseInfo{Tier: a.tier},
	}, nil
}

// NewTestManager creates a Manager that reports a valid license of the given
// tier without contacting any authority. An empty tier yields an unconfigured
// deployment.
func NewTestManager(tier Tier) *Manager {
	store := &StaticStore{}
	if tier != "" {
		store.Config = &LicenseConfig{Domain: "test.local", LicenseKey: "test-license-key"}
	}
	return newManager(ManagerConfig{}, store, staticAuthority{tier: tier}, nil, slog.Default())
}
