package cmd

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/nfrund/batepapo/cmd/batepapo/internal/client"
	"github.com/nfrund/batepapo/cmd/batepapo/internal/output"
	"github.com/nfrund/batepapo/internal/messages"
	"github.com/nfrund/batepapo/internal/presence"
	stream "github.com/nfrund/batepapo/internal/websocket"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

var (
	tailKeepAlive time.Duration
	tailPresence  bool
)

var tailCmd = &cobra.Command{
	Use:   "tail",
	Short: "Follow the room live",
	Long: `Stream the room's messages as they are posted, edited and deleted.

While following, the participant's status is refreshed every --keepalive so
the server does not remove it for inactivity. Pass --keepalive 0 to only
watch.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := newClient(true)
		if err != nil {
			return err
		}
		return follow(cmd.Context(), c, cmd.OutOrStdout(), cmd.ErrOrStderr())
	},
}

// follow streams frames to out until ctx is done, the server closes the
// stream or the participant is evicted.
func follow(ctx context.Context, c *client.Client, out, errOut io.Writer) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	g, gctx := errgroup.WithContext(ctx)

	if tailKeepAlive > 0 {
		g.Go(func() error {
			err := c.KeepAlive(gctx, tailKeepAlive, func(err error) {
				output.Error(errOut, "status update failed: %v", err)
			})
			if client.IsStatus(err, http.StatusNotFound) {
				return fmt.Errorf("%s is no longer in the room: %w", c.User(), err)
			}
			return err
		})
	}

	g.Go(func() error {
		defer cancel()
		return c.Stream(gctx, func(f client.Frame) error {
			printFrame(out, f, c.User())
			return nil
		})
	})

	return g.Wait()
}

func printFrame(out io.Writer, f client.Frame, viewer string) {
	switch f.Event {
	case stream.EventReady:
		output.Notice(out, "Conectado como %s.", viewer)
	case messages.EventCreated.Name():
		output.Message(out, *f.Message, viewer)
	case messages.EventUpdated.Name():
		output.Notice(out, "editada %s:", f.Message.ID)
		output.Message(out, *f.Message, viewer)
	case messages.EventDeleted.Name():
		output.Notice(out, "apagada %s", f.Message.ID)
	case presence.EventJoined.Name():
		if tailPresence {
			output.Notice(out, "+ %s", f.Participant.Name)
		}
	case presence.EventLeft.Name():
		if tailPresence {
			output.Notice(out, "- %s %s", f.Participant.Name, f.Participant.Reason)
		}
	}
}

func init() {
	rootCmd.AddCommand(tailCmd)

	tailCmd.Flags().DurationVarP(&tailKeepAlive, "keepalive", "k", 5*time.Second, "Status refresh interval (0 disables)")
	tailCmd.Flags().BoolVar(&tailPresence, "presence", false, "Also print join and leave events")
}
