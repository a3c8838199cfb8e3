// Package connection implements frostctl's "connection" command group:
// listing and force-closing connections a running frost-server has
// accepted, via the admin adapter (pkg/admin).
package connection

import "github.com/spf13/cobra"

// Cmd is the "connection" command group, added to the root command.
var Cmd = &cobra.Command{
	Use:   "connection",
	Short: "List or close live connections on a frost-server",
}

func init() {
	Cmd.AddCommand(lsCmd)
	Cmd.AddCommand(closeCmd)
}
