package license

import "strings"

// LicenseConfig holds the license settings recorded for this deployment.
type LicenseConfig struct {
	Domain     string `json:"domain"`
	LicenseKey string `json:"licenseKey"`
}

// IsConfigured reports whether both the domain and the license key are present.
func (c *LicenseConfig) IsConfigured() bool {
	return c != nil && strings.TrimSpace(c.Domain) != "" && strings.TrimSpace(c.LicenseKey) != ""
}

// ConfigStore provides read access to the persisted license settings.
type ConfigStore interface {
	// ReadConfig returns nil when no license is recorded or the settings
	// cannot be read.
	ReadConfig() *LicenseConfig
	// ResolveAuthorityAddress returns the base URL of the license authority.
	ResolveAuthorityAddress() string
}

// ActivationOutcome is the authority's answer to an activation request.
type ActivationOutcome struct {
	Success bool         `json:"success"`
	Message string       `json:"message"`
	License *LicenseInfo `json:"license,omitempty"`
}

// MaskKey hides all but the first and last four characters of a license key.
func MaskKey(key string) string {
	runes := []rune(key)
	if len(runes) <= 8 {
		return "****"
	}
	return string(runes[:4]) + "****" + string(runes[len(runes)-4:])
}
