package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/nfrund/batepapo/cmd/batepapo/internal/client"
	"github.com/nfrund/batepapo/cmd/batepapo/internal/output"
	"github.com/spf13/cobra"
)

const defaultServer = "http://localhost:5000"

var (
	serverURL string
	userName  string
)

var rootCmd = &cobra.Command{
	Use:   "batepapo",
	Short: "Batepapo chat room client",
	Long: `batepapo talks to a batepapo server from the terminal.

Available commands:
  join       Enter the room under a name
  who        List the participants
  say        Send a message
  messages   Show the messages visible to you
  tail       Follow the room live
  export     Save the visible messages as a transcript
  events     List the events the live stream carries

The participant is chosen with --user or BATEPAPO_USER, the server with
--server or BATEPAPO_SERVER.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command and returns the process exit code.
func Execute(ctx context.Context) int {
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		output.Error(rootCmd.ErrOrStderr(), "Error: %v", err)
		return 1
	}
	return 0
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// newClient builds a client from the persistent flags. Commands acting as a
// participant pass requireUser.
func newClient(requireUser bool) (*client.Client, error) {
	if requireUser && userName == "" {
		return nil, fmt.Errorf("no participant: pass --user or set BATEPAPO_USER")
	}
	return client.New(serverURL, client.WithUser(userName))
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&serverURL, "server", "s", envOr("BATEPAPO_SERVER", defaultServer), "Server base URL")
	rootCmd.PersistentFlags().StringVarP(&userName, "user", "u", os.Getenv("BATEPAPO_USER"), "Participant name")
}
