package cmd

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"

	"github.com/streamdesk/streamdesk/internal/cmn/config"
	"github.com/streamdesk/streamdesk/internal/cmn/logger"
	"github.com/streamdesk/streamdesk/internal/cmn/logger/tag"
	"github.com/streamdesk/streamdesk/internal/service/frontend"
)

func Server() *cobra.Command {
	return NewCommand(
		&cobra.Command{
			Use:   "server [flags]",
			Short: "Start the API server",
			Long: `Launch the Streamdesk API server.

The server verifies the configured license in the background and exposes
license status, activation and feature checks over HTTP, along with
Prometheus metrics.

Flags:
  --host string    Host address to bind the server to (default: 127.0.0.1)
  --port int       Port number to listen on (default: 8090)

Example:
  streamdesk server --host=0.0.0.0 --port=8090
`,
			Args: cobra.NoArgs,
		}, serverFlags, runServer,
	)
}

var serverFlags = []commandLineFlag{hostFlag, portFlag}

func runServer(ctx *Context, _ []string) error {
	logFile, err := ctx.OpenLogFile()
	if err != nil {
		return err
	}
	defer func() { _ = logFile.Close() }()
	ctx.LogToFile(logFile)

	logger.Info(ctx, "Server initialization",
		tag.Version(config.Version),
		tag.Host(ctx.Config.Server.Host),
		tag.Port(ctx.Config.Server.Port),
		tag.Config(ctx.Config.Paths.ConfigFileUsed),
	)

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	store := ctx.LicenseStore()
	mgr, err := ctx.NewLicenseManager(store, registry)
	if err != nil {
		return err
	}
	if err := mgr.Start(ctx); err != nil {
		return fmt.Errorf("failed to start license manager: %w", err)
	}
	defer mgr.Stop()

	server := frontend.NewServer(ctx.Config, mgr, store, registry, ctx.Logger)
	if err := server.Serve(ctx); err != nil {
		return fmt.Errorf("failed to start server: %w", err)
	}

	return nil
}
