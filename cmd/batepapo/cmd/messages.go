package cmd

import (
	"strings"

	"github.com/nfrund/batepapo/cmd/batepapo/internal/output"
	"github.com/nfrund/batepapo/internal/domain"
	"github.com/spf13/cobra"
)

var (
	sayTo       string
	sayPrivate  bool
	editTo      string
	editPrivate bool
	listLimit   int
)

// messageInput builds the message a say or edit command sends.
func messageInput(to string, private bool, words []string) domain.MessageInput {
	in := domain.MessageInput{To: to, Text: strings.Join(words, " "), Type: domain.TypePublic}
	if private {
		in.Type = domain.TypePrivate
	}
	return in
}

var sayCmd = &cobra.Command{
	Use:   "say TEXT...",
	Short: "Send a message to the room or to one participant",
	Example: `  batepapo say oi pessoal
  batepapo say --to bob tudo bem?
  batepapo say --to bob --private só entre nós`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := newClient(true)
		if err != nil {
			return err
		}
		m, err := c.Send(cmd.Context(), messageInput(sayTo, sayPrivate, args))
		if err != nil {
			return err
		}
		output.Message(cmd.OutOrStdout(), *m, c.User())
		output.Notice(cmd.OutOrStdout(), "id %s", m.ID)
		return nil
	},
}

var messagesCmd = &cobra.Command{
	Use:     "messages",
	Aliases: []string{"ls"},
	Short:   "Show the messages visible to you",
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := newClient(true)
		if err != nil {
			return err
		}
		msgs, err := c.Messages(cmd.Context(), listLimit)
		if err != nil {
			return err
		}
		output.Messages(cmd.OutOrStdout(), msgs, c.User())
		return nil
	},
}

var editCmd = &cobra.Command{
	Use:   "edit ID TEXT...",
	Short: "Replace one of your messages",
	Args:  cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := newClient(true)
		if err != nil {
			return err
		}
		m, err := c.Edit(cmd.Context(), args[0], messageInput(editTo, editPrivate, args[1:]))
		if err != nil {
			return err
		}
		output.Message(cmd.OutOrStdout(), *m, c.User())
		return nil
	},
}

var deleteCmd = &cobra.Command{
	Use:     "delete ID",
	Aliases: []string{"rm"},
	Short:   "Delete one of your messages",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := newClient(true)
		if err != nil {
			return err
		}
		if err := c.Delete(cmd.Context(), args[0]); err != nil {
			return err
		}
		output.Success(cmd.OutOrStdout(), "Mensagem %s apagada.", args[0])
		return nil
	},
}

func init() {
	rootCmd.AddCommand(sayCmd)
	rootCmd.AddCommand(messagesCmd)
	rootCmd.AddCommand(editCmd)
	rootCmd.AddCommand(deleteCmd)

	sayCmd.Flags().StringVarP(&sayTo, "to", "t", domain.Broadcast, "Recipient")
	sayCmd.Flags().BoolVarP(&sayPrivate, "private", "p", false, "Only the recipient can read it")

	editCmd.Flags().StringVarP(&editTo, "to", "t", domain.Broadcast, "Recipient")
	editCmd.Flags().BoolVarP(&editPrivate, "private", "p", false, "Only the recipient can read it")

	messagesCmd.Flags().IntVarP(&listLimit, "limit", "n", 0, "Show only the last N messages (0 for all)")
}
