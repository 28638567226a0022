package config

import (
	"errors"
	"fmt"
	"net/url"
	"slices"
	"strings"
	"time"
)

// Config holds the overall configuration for the application.
type Config struct {
	Core     Core
	Server   Server
	Paths    PathsConfig
	License  LicenseConfig
	Warnings []string
}

// Core contains global settings.
type Core struct {
	Debug     bool
	LogFormat string
}

// Server contains the HTTP server settings.
type Server struct {
	Host     string
	Port     int
	BasePath string
}

// Addr returns the listen address.
func (s Server) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// PathsConfig holds resolved filesystem locations.
type PathsConfig struct {
	AppHome        string
	ConfigFileUsed string
	DataDir        string
	LogDir         string
	SettingsFile   string
}

// LicenseConfig holds the entitlement verification settings.
type LicenseConfig struct {
	DefaultServer   string
	RefreshInterval time.Duration
	Timeout         time.Duration
	RefreshSchedule string
	WatchSettings   bool
}

var validLogFormats = []string{"text", "json"}

// Validate checks the configuration for values the application cannot run with.
func (c *Config) Validate() error {
	var errs []error

	if !slices.Contains(validLogFormats, c.Core.LogFormat) {
		errs = append(errs, fmt.Errorf("invalid log_format %q: must be one of %s",
			c.Core.LogFormat, strings.Join(validLogFormats, ", ")))
	}
	if c.Server.Port < 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Errorf("invalid port number: %d", c.Server.Port))
	}
	if c.Server.BasePath != "" && !strings.HasPrefix(c.Server.BasePath, "/") {
		errs = append(errs, fmt.Errorf("base_path must start with '/': %q", c.Server.BasePath))
	}
	if c.Paths.SettingsFile == "" {
		errs = append(errs, errors.New("paths.settings_file must not be empty"))
	}
	if c.License.RefreshInterval <= 0 {
		errs = append(errs, fmt.Errorf("license.refresh_interval must be positive: %s", c.License.RefreshInterval))
	}
	if c.License.Timeout <= 0 {
		errs = append(errs, fmt.Errorf("license.timeout must be positive: %s", c.License.Timeout))
	}
	if c.License.DefaultServer != "" {
		u, err := url.Parse(c.License.DefaultServer)
		if err != nil || u.Scheme == "" || u.Host == "" {
			errs = append(errs, fmt.Errorf("license.default_server must be an absolute URL: %q", c.License.DefaultServer))
		}
	}

	return errors.Join(errs...)
}
