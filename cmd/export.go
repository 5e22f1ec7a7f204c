package cmd

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
)

// exportCmd represents the export command
var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export saved channels as JSON or a spreadsheet",
	Example: `  ytdash export > sessions.json
  ytdash export -o channels.xlsx
  ytdash export --format xlsx -o report.xlsx`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		output, _ := cmd.Flags().GetString("output")
		format, _ := cmd.Flags().GetString("format")
		if format == "" {
			format = "json"
			if strings.EqualFold(filepath.Ext(output), ".xlsx") {
				format = "xlsx"
			}
		}
		if format != "json" && format != "xlsx" {
			return fmt.Errorf("unsupported format: %s (supported: json, xlsx)", format)
		}
		if format == "xlsx" && output == "" {
			return fmt.Errorf("spreadsheet export needs an output file, use --output")
		}

		// stdout carries the document
		quietUI = output == ""
		app, err := requireApp(cmd)
		if err != nil {
			return err
		}

		var w io.Writer = os.Stdout
		if output != "" {
			f, err := os.Create(output)
			if err != nil {
				return fmt.Errorf("creating %s: %w", output, err)
			}
			defer f.Close()
			w = f
		}

		if format == "xlsx" {
			err = app.ExportXLSX(cmd.Context(), w)
		} else {
			err = app.ExportJSON(cmd.Context(), w)
		}
		if err != nil {
			return err
		}
		if output != "" {
			app.UI().Printf("Exported %d channels to %s\n", len(app.Sessions(cmd.Context())), output)
		}
		return nil
	},
}

func init() {
	exportCmd.Flags().StringP("output", "o", "", "Write to file instead of stdout")
	exportCmd.Flags().String("format", "", "Export format: json or xlsx (default from the file extension)")
	rootCmd.AddCommand(exportCmd)
}
