package proxy

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/frostrpc/frost/internal/cli/output"
	"github.com/frostrpc/frost/pkg/reference"
)

var inspectCmd = &cobra.Command{
	Use:   "inspect <stringified-ref>",
	Short: "Print a stringified reference's fields as a table",
	Long: `Parse a stringified reference (the grammar frost's wire protocol uses
to name a remote object, e.g. "greeter -t:tcp -h 127.0.0.1 -p 4061") and
print its endpoint, mode, and timeout fields. This never dials a server —
it only decodes the string locally.

Examples:
  frostctl proxy inspect "greeter:tcp -h 127.0.0.1 -p 4061"
  frostctl proxy inspect "logger -o:tcp -h 10.0.0.5 -p 9000"`,
	Args: cobra.ExactArgs(1),
	RunE: runInspect,
}

func runInspect(cmd *cobra.Command, args []string) error {
	ref, err := reference.ParseString(args[0])
	if err != nil {
		return fmt.Errorf("failed to parse reference: %w", err)
	}

	pairs := [][2]string{
		{"Identity", ref.Identity().String()},
		{"Facet", emptyDash(ref.Facet())},
		{"Mode", ref.Mode().String()},
		{"Protocol", ref.Protocol().String()},
		{"Encoding", ref.Encoding().String()},
		{"Secure", strconv.FormatBool(ref.Secure())},
		{"Compress", strconv.FormatBool(ref.Compress())},
		{"Endpoint selection", ref.EndpointSelection().String()},
		{"Invocation timeout", ref.InvocationTimeout().String()},
		{"Endpoints", joinEndpoints(ref.Endpoints())},
	}
	if ref.IsIndirect() {
		pairs = append(pairs, [2]string{"Adapter ID", ref.AdapterID()})
	}

	output.SimpleTable(os.Stdout, pairs)
	return nil
}

func emptyDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

func joinEndpoints(eps []reference.Endpoint) string {
	if len(eps) == 0 {
		return "-"
	}
	parts := make([]string, len(eps))
	for i, ep := range eps {
		parts[i] = ep.String()
	}
	return strings.Join(parts, ", ")
}
