// Package commands implements the frost-server CLI command tree.
package commands

import (
	"github.com/spf13/cobra"
)

var (
	// Version information injected at build time by main.main.
	Version = "dev"
	Commit  = "none"
	Date    = "unknown"

	// Global flags.
	cfgFile string
)

var rootCmd = &cobra.Command{
	Use:   "frost-server",
	Short: "frost-server hosts a Communicator's server side",
	Long: `frost-server brings up a Communicator, starts its client and server
thread pools, and registers the admin object adapter frostctl uses for
live introspection (proxy inspection, connection listing, forced close).

Use "frost-server [command] --help" for more information about a command.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute adds all child commands to the root command and runs it. Called
// once by main.main.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: $XDG_CONFIG_HOME/frost/config.yaml)")
	rootCmd.AddCommand(startCmd)
	rootCmd.AddCommand(versionCmd)
}

// GetConfigFile returns the config file path from the global --config flag.
func GetConfigFile() string {
	return cfgFile
}
