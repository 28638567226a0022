// Package cmd implements the streamdesk command line.
package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/streamdesk/streamdesk/internal/cmn/config"
	"github.com/streamdesk/streamdesk/internal/cmn/logger"
	"github.com/streamdesk/streamdesk/internal/cmn/logger/tag"
	"github.com/streamdesk/streamdesk/internal/license"
	"github.com/streamdesk/streamdesk/internal/persis/filelicense"
)

// Context holds the configuration for a command.
type Context struct {
	context.Context

	Command *cobra.Command
	Flags   []commandLineFlag
	Config  *config.Config
	Logger  *slog.Logger
	Quiet   bool
}

// NewContext loads the configuration and sets up the logger for cmd.
func NewContext(cmd *cobra.Command, flags []commandLineFlag) (*Context, error) {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	v := viper.New()
	if err := bindFlags(v, cmd, flags...); err != nil {
		return nil, err
	}

	quiet, err := cmd.Flags().GetBool("quiet")
	if err != nil {
		return nil, fmt.Errorf("failed to get quiet flag: %w", err)
	}

	var loaderOpts []config.ConfigLoaderOption
	if cfgPath, _ := cmd.Flags().GetString("config"); cfgPath != "" {
		loaderOpts = append(loaderOpts, config.WithConfigFile(cfgPath))
	}

	cfg, err := config.NewConfigLoader(v, loaderOpts...).Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	l := logger.New(loggerOptions(cfg, quiet)...)
	ctx = logger.WithLogger(ctx, l)

	for _, w := range cfg.Warnings {
		logger.Warn(ctx, w)
	}

	return &Context{
		Context: ctx,
		Command: cmd,
		Flags:   flags,
		Config:  cfg,
		Logger:  l,
		Quiet:   quiet,
	}, nil
}

func loggerOptions(cfg *config.Config, quiet bool) []logger.Option {
	var opts []logger.Option
	if cfg.Core.Debug {
		opts = append(opts, logger.WithDebug())
	}
	if quiet {
		opts = append(opts, logger.WithQuiet())
	}
	if cfg.Core.LogFormat != "" {
		opts = append(opts, logger.WithFormat(cfg.Core.LogFormat))
	}
	return opts
}

// LogToFile replaces the context logger with one that also writes to f.
func (c *Context) LogToFile(f *os.File) {
	opts := loggerOptions(c.Config, c.Quiet)
	if f != nil {
		opts = append(opts, logger.WithWriter(f))
	}
	c.Logger = logger.New(opts...)
	c.Context = logger.WithLogger(c.Context, c.Logger)
}

// OpenLogFile opens the server log file in the configured log directory.
func (c *Context) OpenLogFile() (*os.File, error) {
	if err := os.MkdirAll(c.Config.Paths.LogDir, 0750); err != nil {
		return nil, fmt.Errorf("failed to create log directory %s: %w", c.Config.Paths.LogDir, err)
	}
	path := filepath.Join(c.Config.Paths.LogDir, config.AppSlug+".log")
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0600)
	if err != nil {
		return nil, fmt.Errorf("failed to open log file %s: %w", path, err)
	}
	return f, nil
}

// LicenseStore returns the settings file store.
func (c *Context) LicenseStore() *filelicense.Store {
	return filelicense.New(
		c.Config.Paths.SettingsFile,
		filelicense.WithDefaultAuthority(c.Config.License.DefaultServer),
		filelicense.WithLogger(c.Logger),
	)
}

// NewLicenseManager builds the entitlement manager backed by store.
// registerer may be nil, in which case no metrics are recorded.
func (c *Context) NewLicenseManager(store *filelicense.Store, registerer prometheus.Registerer) (*license.Manager, error) {
	instanceID, err := license.GetOrCreateInstanceID(c.Config.Paths.DataDir)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize instance ID: %w", err)
	}

	var metrics *license.Metrics
	if registerer != nil {
		metrics = license.NewMetrics(registerer)
	}

	logger.Debug(c, "License manager initialization",
		tag.File(store.Path()),
		tag.Authority(store.ResolveAuthorityAddress()),
		tag.InstanceID(instanceID),
	)

	return license.NewManager(license.ManagerConfig{
		RefreshInterval: c.Config.License.RefreshInterval,
		Timeout:         c.Config.License.Timeout,
		RefreshSchedule: c.Config.License.RefreshSchedule,
		InstanceID:      instanceID,
		UserAgent:       config.UserAgent(),
		WatchSettings:   c.Config.License.WatchSettings,
	}, store, metrics, c.Logger), nil
}

// NewCommand creates a new command instance with the given cobra command and run function.
func NewCommand(cmd *cobra.Command, flags []commandLineFlag, runFunc func(cmd *Context, args []string) error) *cobra.Command {
	initFlags(cmd, flags...)

	cmd.SilenceUsage = true
	cmd.RunE = func(cmd *cobra.Command, args []string) error {
		ctx, err := NewContext(cmd, flags)
		if err != nil {
			return fmt.Errorf("initialization error: %w", err)
		}
		if err := runFunc(ctx, args); err != nil {
			logger.Error(ctx, "Command failed", tag.Error(err))
			return err
		}
		return nil
	}

	return cmd
}
