package license

import (
	"context"
)

// ReasonRequiresPro is the denial reason for restricted features below the Pro tier.
const ReasonRequiresPro = "requires Pro license"

// Decision is the answer to a feature check.
type Decision struct {
	Allowed bool   `json:"allowed"`
	Reason  string `json:"reason,omitempty"`
}

// ConfigView is the presentable form of the stored license settings.
type ConfigView struct {
	Domain     string `json:"domain"`
	LicenseKey string `json:"licenseKey"`
}

// DisplayStatus is a read-only summary of the entitlement state for presentation.
// Info and Config are nil when no license is configured.
type DisplayStatus struct {
	Configured bool                `json:"configured"`
	Valid      bool                `json:"valid"`
	Info       *VerificationResult `json:"info"`
	Config     *ConfigView         `json:"config"`
}

// StatusProvider returns the current verification result.
type StatusProvider interface {
	Status(ctx context.Context, forceRefresh bool) VerificationResult
}

var _ Checker = (*Gate)(nil)

// Gate maps verification results to feature decisions.
type Gate struct {
	status  StatusProvider
	store   ConfigStore
	metrics *Metrics
}

// NewGate creates a Gate backed by the given status provider.
func NewGate(status StatusProvider, store ConfigStore, metrics *Metrics) *Gate {
	return &Gate{status: status, store: store, metrics: metrics}
}

// CheckFeature decides whether the feature may be used.
func (g *Gate) CheckFeature(ctx context.Context, feature string) Decision {
	d := decide(g.status.Status(ctx, false), feature)
	g.metrics.decision(featureLabel(feature), d.Allowed)
	return d
}

// DisplayStatus summarizes the entitlement state.
func (g *Gate) DisplayStatus(ctx context.Context) DisplayStatus {
	cfg := g.store.ReadConfig()
	if !cfg.IsConfigured() {
		return DisplayStatus{}
	}

	res := g.status.Status(ctx, false)
	return DisplayStatus{
		Configured: true,
		Valid:      res.Valid,
		Info:       &res,
		Config: &ConfigView{
			Domain:     cfg.Domain,
			LicenseKey: MaskKey(cfg.LicenseKey),
		},
	}
}

func decide(res VerificationResult, feature string) Decision {
	if !res.Valid {
		return Decision{Allowed: false, Reason: res.Message}
	}

	tier := res.Tier()
	if tier.Unrestricted() {
		return Decision{Allowed: true}
	}
	if IsRestricted(feature) && tier != TierPro {
		return Decision{Allowed: false, Reason: ReasonRequiresPro}
	}
	return Decision{Allowed: true}
}

// featureLabel bounds metric label cardinality to the known feature names.
func featureLabel(feature string) string {
	if IsRestricted(feature) {
		return feature
	}
	return "other"
}
