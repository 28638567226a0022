package config

import "time"

// Definition holds the overall configuration for the application.
// Each field maps to a configuration key defined in external sources (like YAML files)
type Definition struct {
	// Debug toggles debug logging.
	Debug bool `mapstructure:"debug"`

	// LogFormat defines the output format for log messages.
	// Available options: "json", "text"
	LogFormat string `mapstructure:"log_format"`

	// Host defines the hostname or IP address on which the server listens.
	Host string `mapstructure:"host"`

	// Port specifies the network port for incoming connections.
	Port int `mapstructure:"port"`

	// BasePath is the root URL path from which the application is served.
	// This is useful when hosting the app behind a reverse proxy under a subpath.
	BasePath string `mapstructure:"base_path"`

	// Paths holds filesystem locations used by the application.
	Paths PathsDef `mapstructure:"paths"`

	// License configures entitlement verification.
	License LicenseDef `mapstructure:"license"`
}

// PathsDef holds filesystem path configuration.
type PathsDef struct {
	DataDir      string `mapstructure:"data_dir"`
	LogDir       string `mapstructure:"log_dir"`
	SettingsFile string `mapstructure:"settings_file"`
}

// LicenseDef configures entitlement verification.
type LicenseDef struct {
	// DefaultServer is the authority address used when neither LICENSE_SERVER
	// nor the settings file name one.
	DefaultServer string `mapstructure:"default_server"`

	// RefreshInterval is the minimum time between unforced verifications.
	RefreshInterval time.Duration `mapstructure:"refresh_interval"`

	// Timeout bounds each request to the authority.
	Timeout time.Duration `mapstructure:"timeout"`

	// RefreshSchedule is the cron spec of the background refresher.
	// An empty value disables background refreshes.
	RefreshSchedule string `mapstructure:"refresh_schedule"`

	// WatchSettings invalidates the cached status when the settings file changes.
	WatchSettings bool `mapstructure:"watch_settings"`
}
