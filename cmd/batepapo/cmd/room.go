package cmd

import (
	"time"

	"github.com/nfrund/batepapo/cmd/batepapo/internal/output"
	"github.com/spf13/cobra"
)

var joinCmd = &cobra.Command{
	Use:   "join NAME",
	Short: "Enter the room under NAME",
	Long: `Register NAME in the room. Names are compared without regard to case,
so a name someone else already holds is refused.

Keep the participant alive afterwards with "batepapo tail", or the server
removes it after a period without status updates.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := newClient(false)
		if err != nil {
			return err
		}
		p, err := c.Register(cmd.Context(), args[0])
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		output.Success(out, "Bem-vindo, %s!", p.DisplayName)
		output.Notice(out, "export BATEPAPO_USER=%q", p.Name)
		return nil
	},
}

var whoCmd = &cobra.Command{
	Use:   "who",
	Short: "List the participants in the room",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := newClient(false)
		if err != nil {
			return err
		}
		ps, err := c.Participants(cmd.Context())
		if err != nil {
			return err
		}
		output.Participants(cmd.OutOrStdout(), ps, time.Now())
		return nil
	},
}

func init() {
	rootCmd.AddCommand(joinCmd)
	rootCmd.AddCommand(whoCmd)
}
