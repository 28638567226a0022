package cmd

import (
	"fmt"
	"slices"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// Default values for the server.
const (
	defaultHost = "127.0.0.1"
	defaultPort = "8090"
)

type commandLineFlag struct {
	name, shorthand, defaultValue, usage string
	isBool                               bool
	// bindViper binds the flag to the configuration key of the same name.
	bindViper bool
}

var (
	configFlag = commandLineFlag{
		name:      "config",
		shorthand: "c",
		usage:     "config file (default is $HOME/.config/streamdesk/config.yaml)",
	}
	quietFlag = commandLineFlag{
		name:      "quiet",
		shorthand: "q",
		usage:     "suppress log output",
		isBool:    true,
	}
	debugFlag = commandLineFlag{
		name:      "debug",
		usage:     "enable debug logging",
		isBool:    true,
		bindViper: true,
	}
	hostFlag = commandLineFlag{
		name:         "host",
		shorthand:    "s",
		defaultValue: defaultHost,
		usage:        "server host",
		bindViper:    true,
	}
	portFlag = commandLineFlag{
		name:         "port",
		shorthand:    "p",
		defaultValue: defaultPort,
		usage:        "server port",
		bindViper:    true,
	}
	jsonFlag = commandLineFlag{
		name:   "json",
		usage:  "print the result as JSON",
		isBool: true,
	}
	refreshFlag = commandLineFlag{
		name:   "refresh",
		usage:  "contact the license server instead of using a cached result",
		isBool: true,
	}
)

// baseFlags are registered on every command.
var baseFlags = []commandLineFlag{configFlag, quietFlag, debugFlag}

func initFlags(cmd *cobra.Command, additionalFlags ...commandLineFlag) {
	for _, flag := range slices.Concat(baseFlags, additionalFlags) {
		if flag.isBool {
			cmd.Flags().BoolP(flag.name, flag.shorthand, flag.defaultValue == "true", flag.usage)
			continue
		}
		cmd.Flags().StringP(flag.name, flag.shorthand, flag.defaultValue, flag.usage)
	}
}

// bindFlags binds flags that were set on the command line to v. Unset flags
// are left unbound so config files and environment variables still apply.
func bindFlags(v *viper.Viper, cmd *cobra.Command, additionalFlags ...commandLineFlag) error {
	for _, flag := range slices.Concat(baseFlags, additionalFlags) {
		if !flag.bindViper || !cmd.Flags().Changed(flag.name) {
			continue
		}
		if err := v.BindPFlag(flag.name, cmd.Flags().Lookup(flag.name)); err != nil {
			return fmt.Errorf("failed to bind flag %s: %w", flag.name, err)
		}
	}
	return nil
}
