// Command frost-server hosts a Communicator's server side: it loads
// process properties, brings up the client/server thread pools, and
// registers the built-in admin object adapter frostctl talks to.
package main

import (
	"fmt"
	"os"

	"github.com/frostrpc/frost/cmd/frost-server/commands"
)

// Build-time variables injected via ldflags.
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
		fmt.Fprintln(os.Stderr, "frost-server:", err)
		os.Exit(1)
	}
}
