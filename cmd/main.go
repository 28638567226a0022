package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/streamdesk/streamdesk/internal/cmd"
	"github.com/streamdesk/streamdesk/internal/cmn/config"
)

var rootCmd = &cobra.Command{
	Use:   config.AppSlug,
	Short: "Streamdesk is a self-hosted media streaming server",
	Long: `Streamdesk is a self-hosted media streaming server.

This binary runs the API server and provides commands to inspect and manage
the license that unlocks Pro features.
`,
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.AddCommand(cmd.Server())
	rootCmd.AddCommand(cmd.License())
	rootCmd.AddCommand(cmd.Version())

	config.Version = version
}

var version = "0.0.0"
