package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/adrg/xdg"
	"github.com/go-viper/mapstructure/v2"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// ConfigLoader reads and merges configuration from various sources.
type ConfigLoader struct {
	v          *viper.Viper
	configFile string
	appHomeDir string
	warnings   []string
}

// ConfigLoaderOption defines a functional option for configuring a ConfigLoader.
type ConfigLoaderOption func(*ConfigLoader)

// WithConfigFile returns a ConfigLoaderOption that sets the configuration file path.
func WithConfigFile(configFile string) ConfigLoaderOption {
	return func(l *ConfigLoader) {
		l.configFile = configFile
	}
}

// WithAppHomeDir returns a ConfigLoaderOption that sets the application home directory
// used by the ConfigLoader, overriding the default STREAMDESK_HOME resolution.
func WithAppHomeDir(dir string) ConfigLoaderOption {
	return func(l *ConfigLoader) {
		l.appHomeDir = dir
	}
}

// NewConfigLoader creates a ConfigLoader with the given viper instance and options.
func NewConfigLoader(v *viper.Viper, options ...ConfigLoaderOption) *ConfigLoader {
	loader := &ConfigLoader{v: v}
	for _, opt := range options {
		opt(loader)
	}
	return loader
}

// Load reads configuration files, applies defaults and environment overrides,
// and returns a validated Config instance.
func (l *ConfigLoader) Load() (*Config, error) {
	paths, err := l.resolvePaths()
	if err != nil {
		return nil, err
	}

	l.loadDotEnv(paths.configDir)
	l.configureViper(paths.configDir)
	l.bindEnvironmentVariables()
	l.setViperDefaultValues(paths)

	if err := l.v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !(l.configFile == "" && errors.Is(err, os.ErrNotExist)) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	var def Definition
	if err := l.v.Unmarshal(&def, viper.DecodeHook(mapstructure.ComposeDecodeHookFunc(
		mapstructure.StringToTimeDurationHookFunc(),
		mapstructure.StringToSliceHookFunc(","),
	))); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	cfg, err := l.buildConfig(def, paths)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

type resolvedPaths struct {
	home      string
	configDir string
	dataDir   string
	logDir    string
}

// resolvePaths picks the application home: the explicit option, then
// STREAMDESK_HOME, then the XDG directories.
func (l *ConfigLoader) resolvePaths() (resolvedPaths, error) {
	home := l.appHomeDir
	if home == "" {
		home = os.Getenv(strings.ToUpper(AppSlug) + "_HOME")
	}

	if home != "" {
		abs, err := filepath.Abs(home)
		if err != nil {
			return resolvedPaths{}, fmt.Errorf("failed to resolve app home %q: %w", home, err)
		}
		return resolvedPaths{
			home:      abs,
			configDir: abs,
			dataDir:   filepath.Join(abs, "data"),
			logDir:    filepath.Join(abs, "logs"),
		}, nil
	}

	configDir := filepath.Join(xdg.ConfigHome, AppSlug)
	dataDir := filepath.Join(xdg.DataHome, AppSlug)
	return resolvedPaths{
		home:      configDir,
		configDir: configDir,
		dataDir:   filepath.Join(dataDir, "data"),
		logDir:    filepath.Join(dataDir, "logs"),
	}, nil
}

// loadDotEnv loads a .env file next to the config without overriding
// variables already present in the environment.
func (l *ConfigLoader) loadDotEnv(configDir string) {
	envFile := filepath.Join(configDir, ".env")
	if _, err := os.Stat(envFile); err != nil {
		return
	}
	if err := godotenv.Load(envFile); err != nil {
		l.warnings = append(l.warnings, fmt.Sprintf("Failed to load %s: %v", envFile, err))
	}
}

func (l *ConfigLoader) buildConfig(def Definition, paths resolvedPaths) (*Config, error) {
	cfg := &Config{
		Core: Core{
			Debug:     def.Debug,
			LogFormat: strings.ToLower(strings.TrimSpace(def.LogFormat)),
		},
		Server: Server{
			Host:     def.Host,
			Port:     def.Port,
			BasePath: strings.TrimRight(def.BasePath, "/"),
		},
		License: LicenseConfig{
			DefaultServer:   strings.TrimSpace(def.License.DefaultServer),
			RefreshInterval: def.License.RefreshInterval,
			Timeout:         def.License.Timeout,
			RefreshSchedule: strings.TrimSpace(def.License.RefreshSchedule),
			WatchSettings:   def.License.WatchSettings,
		},
	}

	var err error
	cfg.Paths.AppHome = paths.home
	if cfg.Paths.ConfigFileUsed, err = resolvePath("config file", l.v.ConfigFileUsed()); err != nil {
		return nil, err
	}
	if cfg.Paths.DataDir, err = resolvePath("data_dir", def.Paths.DataDir); err != nil {
		return nil, err
	}
	if cfg.Paths.LogDir, err = resolvePath("log_dir", def.Paths.LogDir); err != nil {
		return nil, err
	}
	if cfg.Paths.SettingsFile, err = resolvePath("settings_file", def.Paths.SettingsFile); err != nil {
		return nil, err
	}
	if cfg.Paths.SettingsFile == "" {
		cfg.Paths.SettingsFile = filepath.Join(cfg.Paths.DataDir, "settings.json")
	}

	cfg.Warnings = l.warnings
	return cfg, nil
}

// resolvePath resolves a path to an absolute path, expanding a leading "~".
// Empty paths are returned as-is.
func resolvePath(fieldName, value string) (string, error) {
	if value == "" {
		return "", nil
	}
	if value == "~" || strings.HasPrefix(value, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("failed to resolve %s path %q: %w", fieldName, value, err)
		}
		value = filepath.Join(home, strings.TrimPrefix(value, "~"))
	}
	abs, err := filepath.Abs(value)
	if err != nil {
		return "", fmt.Errorf("failed to resolve %s path %q: %w", fieldName, value, err)
	}
	return abs, nil
}

func (l *ConfigLoader) setViperDefaultValues(paths resolvedPaths) {
	l.v.SetDefault("debug", false)
	l.v.SetDefault("log_format", "text")
	l.v.SetDefault("host", "127.0.0.1")
	l.v.SetDefault("port", 8090)
	l.v.SetDefault("base_path", "")

	l.v.SetDefault("paths.data_dir", paths.dataDir)
	l.v.SetDefault("paths.log_dir", paths.logDir)
	l.v.SetDefault("paths.settings_file", "")

	l.v.SetDefault("license.default_server", "")
	l.v.SetDefault("license.refresh_interval", "1h")
	l.v.SetDefault("license.timeout", "10s")
	l.v.SetDefault("license.refresh_schedule", "@every 15m")
	l.v.SetDefault("license.watch_settings", true)
}

type envBinding struct {
	key    string
	env    string
	isPath bool
}

var envBindings = []envBinding{
	{key: "debug", env: "DEBUG"},
	{key: "log_format", env: "LOG_FORMAT"},
	{key: "host", env: "HOST"},
	{key: "port", env: "PORT"},
	{key: "base_path", env: "BASE_PATH"},

	{key: "paths.data_dir", env: "DATA_DIR", isPath: true},
	{key: "paths.log_dir", env: "LOG_DIR", isPath: true},
	{key: "paths.settings_file", env: "SETTINGS_FILE", isPath: true},

	{key: "license.default_server", env: "LICENSE_DEFAULT_SERVER"},
	{key: "license.refresh_interval", env: "LICENSE_REFRESH_INTERVAL"},
	{key: "license.timeout", env: "LICENSE_TIMEOUT"},
	{key: "license.refresh_schedule", env: "LICENSE_REFRESH_SCHEDULE"},
	{key: "license.watch_settings", env: "LICENSE_WATCH_SETTINGS"},
}

func (l *ConfigLoader) bindEnvironmentVariables() {
	prefix := strings.ToUpper(AppSlug) + "_"

	for _, b := range envBindings {
		fullEnv := prefix + b.env

		if b.isPath {
			if val := os.Getenv(fullEnv); val != "" {
				if abs, err := filepath.Abs(val); err == nil && abs != val {
					_ = os.Setenv(fullEnv, abs)
				}
			}
		}

		_ = l.v.BindEnv(b.key, fullEnv)
	}
}

func (l *ConfigLoader) configureViper(configDir string) {
	if l.configFile == "" {
		l.v.AddConfigPath(configDir)
		l.v.SetConfigName("config")
	} else {
		l.v.SetConfigFile(l.configFile)
	}
	l.v.SetConfigType("yaml")
	l.v.SetEnvPrefix(strings.ToUpper(AppSlug))
	l.v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	l.v.AutomaticEnv()
}
