// Package tag provides standardized tag functions for structured logging.
//
// All tag keys use kebab-case naming convention for consistency.
// Use these functions instead of raw strings to ensure consistent
// and type-safe log output across the codebase.
package tag

import (
	"log/slog"
	"time"
)

func String(key, value string) slog.Attr {
	return slog.String(key, value)
}

// Error creates a tag for error objects.
func Error(err any) slog.Attr {
	return slog.Any("err", err)
}

// License tags

// Domain creates a tag for the deployment's registered domain.
func Domain(domain string) slog.Attr {
	return slog.String("domain", domain)
}

// LicenseKey creates a tag for a license key. Callers pass the masked form.
func LicenseKey(masked string) slog.Attr {
	return slog.String("license-key", masked)
}

// Tier creates a tag for license tiers.
func Tier(tier string) slog.Attr {
	return slog.String("tier", tier)
}

// Feature creates a tag for tier-gated feature names.
func Feature(name string) slog.Attr {
	return slog.String("feature", name)
}

// Authority creates a tag for the license authority address.
func Authority(addr string) slog.Attr {
	return slog.String("authority", addr)
}

// InstanceID creates a tag for the deployment's instance ID.
func InstanceID(id string) slog.Attr {
	return slog.String("instance-id", id)
}

// Path and file tags

// File creates a tag for file paths.
func File(path string) slog.Attr {
	return slog.String("file", path)
}

// Dir creates a tag for directory paths.
func Dir(path string) slog.Attr {
	return slog.String("dir", path)
}

// Network tags

func Host(host string) slog.Attr {
	return slog.String("host", host)
}

func Port(port int) slog.Attr {
	return slog.Int("port", port)
}

// Addr creates a tag for listen addresses.
func Addr(addr string) slog.Attr {
	return slog.String("addr", addr)
}

// Timing tags

// Interval creates a tag for time intervals.
func Interval(d time.Duration) slog.Attr {
	return slog.Duration("interval", d)
}

// Schedule creates a tag for cron schedules.
func Schedule(spec string) slog.Attr {
	return slog.String("schedule", spec)
}

// Misc

// Version creates a tag for version strings.
func Version(v string) slog.Attr {
	return slog.String("version", v)
}

// Reason creates a tag for explanations of a decision or state.
func Reason(r string) slog.Attr {
	return slog.String("reason", r)
}

// Config creates a tag for configuration file paths.
func Config(path string) slog.Attr {
	return slog.String("config", path)
}
