package connection

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/frostrpc/frost/cmd/frostctl/cmdutil"
	"github.com/frostrpc/frost/internal/cli/prompt"
	"github.com/frostrpc/frost/pkg/admin"
)

var closeForce bool

var closeCmd = &cobra.Command{
	Use:   "close [connection-id]",
	Short: "Force-close a connection",
	Long: `Force-close one connection a running frost-server has accepted. With no
connection-id argument, an interactive picker lists every live connection
across every adapter.

Examples:
  # Pick a connection interactively
  frostctl connection close

  # Close a specific connection without the confirmation prompt
  frostctl connection close 'echo<-127.0.0.1:52814#1a2b3c4d' --force`,
	Args: cobra.MaximumNArgs(1),
	RunE: runClose,
}

func init() {
	closeCmd.Flags().BoolVarP(&closeForce, "force", "f", false, "skip the confirmation prompt")
}

func runClose(cmd *cobra.Command, args []string) error {
	client, err := cmdutil.Dial(cmdutil.ServerAddr)
	if err != nil {
		return err
	}
	defer client.Close()

	ctx := context.Background()

	var conns []admin.ConnectionInfo
	if err := client.Call(ctx, "listConnections", map[string]string{}, &conns); err != nil {
		return err
	}

	var target admin.ConnectionInfo
	if len(args) == 1 {
		found := false
		for _, c := range conns {
			if c.ID == args[0] {
				target = c
				found = true
				break
			}
		}
		if !found {
			return fmt.Errorf("no live connection %q", args[0])
		}
	} else {
		if len(conns) == 0 {
			fmt.Println("No connections found.")
			return nil
		}
		options := make([]prompt.SelectOption, len(conns))
		for i, c := range conns {
			options[i] = prompt.SelectOption{
				Label: fmt.Sprintf("%s  [%s]  %s  %s", c.ID, c.Adapter, c.State, c.RemoteAddr),
				Value: c.ID,
			}
		}
		chosen, err := prompt.Select("Select a connection to close", options)
		if err != nil {
			return err
		}
		for _, c := range conns {
			if c.ID == chosen {
				target = c
				break
			}
		}
	}

	ok, err := prompt.ConfirmWithForce(fmt.Sprintf("Close connection %s on adapter %s?", target.ID, target.Adapter), closeForce)
	if err != nil {
		return err
	}
	if !ok {
		fmt.Println("Aborted.")
		return nil
	}

	req := map[string]string{"adapter": target.Adapter, "connection_id": target.ID}
	if err := client.Call(ctx, "closeConnection", req, nil); err != nil {
		return err
	}
	fmt.Printf("Closed connection %s\n", target.ID)
	return nil
}
