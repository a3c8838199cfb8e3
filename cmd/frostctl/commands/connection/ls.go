package connection

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/frostrpc/frost/cmd/frostctl/cmdutil"
	"github.com/frostrpc/frost/internal/cli/output"
	"github.com/frostrpc/frost/pkg/admin"
)

var lsAdapter string

var lsCmd = &cobra.Command{
	Use:   "ls",
	Short: "List live connections",
	Long: `List the connections a running frost-server has accepted, across all
object adapters or one named adapter.

Examples:
  # List every connection on every adapter
  frostctl connection ls

  # List connections on one adapter only
  frostctl connection ls --adapter echo`,
	RunE: runLs,
}

func init() {
	lsCmd.Flags().StringVar(&lsAdapter, "adapter", "", "only list connections on this adapter")
}

// connectionList adapts []admin.ConnectionInfo to output.TableRenderer.
type connectionList []admin.ConnectionInfo

func (cl connectionList) Headers() []string { return []string{"ID", "ADAPTER", "STATE", "REMOTE ADDR"} }

func (cl connectionList) Rows() [][]string {
	rows := make([][]string, 0, len(cl))
	for _, c := range cl {
		rows = append(rows, []string{c.ID, c.Adapter, c.State, c.RemoteAddr})
	}
	return rows
}

func runLs(cmd *cobra.Command, args []string) error {
	client, err := cmdutil.Dial(cmdutil.ServerAddr)
	if err != nil {
		return err
	}
	defer client.Close()

	var conns []admin.ConnectionInfo
	if err := client.Call(context.Background(), "listConnections", map[string]string{"adapter": lsAdapter}, &conns); err != nil {
		return err
	}
	if len(conns) == 0 {
		fmt.Println("No connections found.")
		return nil
	}
	output.PrintTable(os.Stdout, connectionList(conns))
	return nil
}
