package cmd

import (
	"fmt"
	"strings"
	"time"

	"github.com/nfrund/batepapo/cmd/batepapo/internal/output"
	"github.com/nfrund/batepapo/internal/storage"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"
)

// appFs is where transcripts are written. Tests swap in a memory filesystem.
var appFs = afero.NewOsFs()

var (
	exportDir   string
	exportName  string
	exportLimit int
	exportList  bool
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Save the messages visible to you as a transcript",
	Example: `  batepapo export
  batepapo export --name sexta.txt --limit 50
  batepapo export --list`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		out := cmd.OutOrStdout()
		archive := storage.NewArchive(appFs, exportDir)

		if exportList {
			names, err := archive.List(ctx)
			if err != nil {
				return err
			}
			for _, name := range names {
				fmt.Fprintln(out, name)
			}
			return nil
		}

		c, err := newClient(true)
		if err != nil {
			return err
		}
		msgs, err := c.Messages(ctx, exportLimit)
		if err != nil {
			return err
		}

		name := exportName
		if name == "" {
			name = fmt.Sprintf("batepapo-%s-%s.txt", c.User(), time.Now().Format("20060102-150405"))
		}
		n, err := archive.Save(ctx, name, strings.NewReader(output.Transcript(msgs)))
		if err != nil {
			return err
		}
		output.Success(out, "%d mensagens salvas em %s (%d bytes)", len(msgs), name, n)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(exportCmd)

	exportCmd.Flags().StringVarP(&exportDir, "dir", "d", "transcripts", "Directory transcripts are saved to")
	exportCmd.Flags().StringVar(&exportName, "name", "", "Transcript file name (default batepapo-USER-TIMESTAMP.txt)")
	exportCmd.Flags().IntVarP(&exportLimit, "limit", "n", 0, "Save only the last N messages (0 for all)")
	exportCmd.Flags().BoolVarP(&exportList, "list", "l", false, "List saved transcripts instead")
}
