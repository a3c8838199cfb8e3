// Command frostctl is a thin diagnostic client for frost-server's admin
// adapter: it dials the same wire protocol the rest of the runtime speaks
// and renders the replies as tables, with a cobra command tree of
// RPC-native calls rather than a separate HTTP+JWT control plane.
package main

import (
	"fmt"
	"os"

	"github.com/frostrpc/frost/cmd/frostctl/commands"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	commands.Version = version
	commands.Commit = commit
	commands.Date = date

	if err := commands.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "frostctl:", err)
		os.Exit(1)
	}
}
