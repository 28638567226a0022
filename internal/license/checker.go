package license

import (
	"context"
	"slices"
)

// Feature constants for tier-gated capabilities.
const (
	FeatureMoviePilot     = "moviepilot"
	FeatureTelegramBot    = "telegram_bot"
	FeaturePlaybackReport = "playback_report"
	FeatureDeviceControl  = "device_control"
)

// restrictedFeatures require at least a Pro license.
var restrictedFeatures = []string{
	FeatureMoviePilot,
	FeatureTelegramBot,
	FeaturePlaybackReport,
	FeatureDeviceControl,
}

// RestrictedFeatures returns the tier-gated feature names.
func RestrictedFeatures() []string {
	return slices.Clone(restrictedFeatures)
}

// IsRestricted reports whether the feature requires a Pro license.
func IsRestricted(feature string) bool {
	return slices.Contains(restrictedFeatures, feature)
}

// Checker answers entitlement questions for the rest of the application.
type Checker interface {
	CheckFeature(ctx context.Context, feature string) Decision
	DisplayStatus(ctx context.Context) DisplayStatus
}
