// Package commands implements the frostctl CLI command tree.
package commands

import (
	"github.com/spf13/cobra"

	"github.com/frostrpc/frost/cmd/frostctl/cmdutil"
	"github.com/frostrpc/frost/cmd/frostctl/commands/connection"
	"github.com/frostrpc/frost/cmd/frostctl/commands/proxy"
)

var (
	// Version information injected at build time by main.main.
	Version = "dev"
	Commit  = "none"
	Date    = "unknown"
)

var rootCmd = &cobra.Command{
	Use:   "frostctl",
	Short: "frostctl inspects a running frost-server",
	Long: `frostctl is a diagnostic client for frost-server's admin object
adapter: it can inspect a stringified reference locally, or connect to a
running server to list and close live connections.

Use "frostctl [command] --help" for more information about a command.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute adds all child commands to the root command and runs it.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cmdutil.ServerAddr, "server", "127.0.0.1:9075", "frost-server admin address (host:port)")
	rootCmd.AddCommand(proxy.Cmd)
	rootCmd.AddCommand(connection.Cmd)
	rootCmd.AddCommand(versionCmd)
}
