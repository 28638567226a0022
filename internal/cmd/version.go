package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/streamdesk/streamdesk/internal/cmn/config"
)

func Version() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Display the binary version",
		Long:  `Print the current version of the Streamdesk executable.`,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			_, err := fmt.Fprintln(cmd.OutOrStdout(), config.Version)
			return err
		},
	}
}
