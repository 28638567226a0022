package license

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// Tier is the license class that gates feature availability.
type Tier string

const (
	TierStandard   Tier = "standard"
	TierPro        Tier = "pro"
	TierEnterprise Tier = "enterprise"
	TierLifetime   Tier = "lifetime"
)

// Unrestricted reports whether the tier unlocks every feature.
func (t Tier) Unrestricted() bool {
	return t == TierLifetime || t == TierEnterprise
}

// Expiry is a license expiration date. Never is set for licenses that do not expire.
type Expiry struct {
	Time  time.Time
	Never bool
}

// NeverExpires returns an Expiry for a perpetual license.
func NeverExpires() *Expiry {
	return &Expiry{Never: true}
}

// ExpiresOn returns an Expiry at the given time.
func ExpiresOn(t time.Time) *Expiry {
	return &Expiry{Time: t}
}

func (e Expiry) String() string {
	if e.Never {
		return "never"
	}
	return e.Time.UTC().Format(time.RFC3339)
}

// MarshalJSON implements json.Marshaler.
func (e Expiry) MarshalJSON() ([]byte, error) {
	return json.Marshal(e.String())
}

// UnmarshalJSON accepts an RFC 3339 timestamp or the literal "never".
func (e *Expiry) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("expiresAt must be a string: %w", err)
	}
	if strings.EqualFold(strings.TrimSpace(s), "never") {
		*e = Expiry{Never: true}
		return nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return fmt.Errorf("invalid expiresAt %q: %w", s, err)
	}
	*e = Expiry{Time: t}
	return nil
}

// LicenseInfo describes a license as reported by the authority.
type LicenseInfo struct {
	Tier         Tier    `json:"type,omitempty"`
	MaxUsers     *int    `json:"maxUsers,omitempty"`
	ExpiresAt    *Expiry `json:"expiresAt,omitempty"`
	CustomerName string  `json:"customerName,omitempty"`
}

// VerificationResult is the outcome of a verification attempt.
// When Valid is false, License carries no meaning.
type VerificationResult struct {
	Valid   bool         `json:"valid"`
	Message string       `json:"message"`
	License *LicenseInfo `json:"license,omitempty"`
}

// Tier returns the license tier, or an empty tier when the result is
// invalid or carries no license details.
func (r VerificationResult) Tier() Tier {
	if !r.Valid || r.License == nil {
		return ""
	}
	return r.License.Tier
}

// clone returns a copy of r that shares no memory with it.
func (r VerificationResult) clone() VerificationResult {
	if r.License == nil {
		return r
	}
	info := *r.License
	if info.MaxUsers != nil {
		n := *info.MaxUsers
		info.MaxUsers = &n
	}
	if info.ExpiresAt != nil {
		e := *info.ExpiresAt
		info.ExpiresAt = &e
	}
	r.License = &info
	return r
}

const (
	messageNotConfigured      = "not configured"
	messageVerificationFailed = "verification failed"
)

func notConfiguredResult() VerificationResult {
	return VerificationResult{Valid: false, Message: messageNotConfigured}
}

func failedResult(err error) VerificationResult {
	return VerificationResult{
		Valid:   false,
		Message: fmt.Sprintf("%s: %v", messageVerificationFailed, err),
	}
}
