package cmd

import (
	"github.com/spf13/cobra"

	"github.com/rtzll/ytdash/internal"
)

// pathsCmd represents the paths command
var pathsCmd = &cobra.Command{
	Use:   "paths",
	Short: "Show paths used by the application",
	Example: `  # Show all application paths
  ytdash paths

  # Write the built-in prompt templates for editing
  ytdash paths --write-prompts`,
	RunE: func(cmd *cobra.Command, args []string) error {
		prompts := internal.NewPromptManager(config.ConfigDir)
		if write, _ := cmd.Flags().GetBool("write-prompts"); write {
			if err := prompts.EnsureDefaultPrompts(); err != nil {
				return err
			}
		}
		cmd.Printf("Config file: %s\n", config.ConfigFile)
		cmd.Printf("Prompts directory: %s\n", prompts.Dir())
		cmd.Printf("Local database: %s\n", config.LocalDB)
		cmd.Printf("Identity file: %s\n", config.IdentityFile)
		cmd.Printf("Log file: %s\n", config.LogFile)
		cmd.Printf("Cache directory: %s\n", config.CacheDir)
		if config.RemoteDSN == "" {
			cmd.Println("Remote sync: not configured")
		} else {
			cmd.Println("Remote sync: configured")
		}
		return nil
	},
}

func init() {
	pathsCmd.Flags().Bool("write-prompts", false, "Write default prompt templates that do not exist yet")
	rootCmd.AddCommand(pathsCmd)
}
