// Package proxy implements frostctl's "proxy" command group: local
// inspection of stringified references, following the CLI's one-noun
// per-package layout.
package proxy

import "github.com/spf13/cobra"

// Cmd is the "proxy" command group, added to the root command.
var Cmd = &cobra.Command{
	Use:   "proxy",
	Short: "Inspect proxy references",
}

func init() {
	Cmd.AddCommand(inspectCmd)
}
