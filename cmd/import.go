package cmd

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
)

// importCmd represents the import command
var importCmd = &cobra.Command{
	Use:   "import <file|->",
	Short: "Import channels from a JSON export",
	Long: `Import sessions from a JSON export. Imported sessions replace saved sessions
with the same channel id; other saved sessions are kept.`,
	Example: `  ytdash import sessions.json
  cat sessions.json | ytdash import -`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := requireApp(cmd)
		if err != nil {
			return err
		}

		var r io.Reader = os.Stdin
		if args[0] != "-" {
			f, err := os.Open(args[0])
			if err != nil {
				return fmt.Errorf("opening %s: %w", args[0], err)
			}
			defer f.Close()
			r = f
		}

		res, err := app.Import(cmd.Context(), r)
		if err != nil {
			return err
		}
		app.UI().Printf("Imported %d channels (%d new, %d replaced)\n", res.Added+res.Replaced, res.Added, res.Replaced)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(importCmd)
}
