package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/nfrund/batepapo/cmd/batepapo/internal/output"
	"github.com/nfrund/batepapo/internal/pubsub"
	"github.com/spf13/cobra"
)

var eventsFormat string

var eventsCmd = &cobra.Command{
	Use:   "events",
	Short: "List the events the live stream carries",
	Long: `List the bus events the server publishes and "batepapo tail" relays,
with the payload each one carries.

Output formats:
  table - Human-readable table (default)
  json  - Machine-readable JSON`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		events := pubsub.Events()
		out := cmd.OutOrStdout()

		switch eventsFormat {
		case "table":
			output.Events(out, events)
			return nil
		case "json":
			enc := json.NewEncoder(out)
			enc.SetIndent("", "  ")
			return enc.Encode(events)
		default:
			return fmt.Errorf("unsupported output format %q, use table or json", eventsFormat)
		}
	},
}

func init() {
	rootCmd.AddCommand(eventsCmd)

	eventsCmd.Flags().StringVarP(&eventsFormat, "format", "f", "table", "Output format (table, json)")
}
