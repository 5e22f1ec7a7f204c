package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/rtzll/ytdash/internal"
)

var (
	config *internal.Config
	app    *internal.App
	// quietUI silences stdout status, for commands whose stdout is a protocol or a file
	quietUI bool
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "ytdash",
	Short: "YouTube channel research dashboard",
	Long: `ytdash fetches YouTube channels and their uploads, computes engagement and
keyword statistics, and asks Gemini or OpenAI about them.

Sessions are stored on this device. After "ytdash login" they are kept in a
per-account remote record instead and synced in the background.`,
	Example: `  # Fetch a channel and its latest uploads
  ytdash fetch @veritasium

  # List saved channels
  ytdash list

  # Ask about a channel
  ytdash chat @veritasium "Which topics get the most views?"

  # Compare all saved channels
  ytdash report`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return internal.HandleVerboseFlag(cmd, config)
	},
}

// requireApp creates the application on first use
func requireApp(cmd *cobra.Command) (*internal.App, error) {
	if app != nil {
		return app, nil
	}
	opts := []internal.AppOption{}
	if quietUI {
		opts = append(opts, internal.WithUI(internal.NewUIManager(config.Verbose, true)))
	}
	a, err := internal.NewApp(cmd.Context(), config, opts...)
	if err != nil {
		return nil, err
	}
	app = a
	return app, nil
}

// closeApp flushes pending sync work; it runs even when the command failed
func closeApp() {
	if app == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := app.Close(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: %v\n", err)
	}
	app = nil
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() error {
	var err error
	config, err = internal.InitConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return err
	}

	if err := internal.EnsureDirs(config.ConfigDir, config.DataDir, config.StateDir, config.CacheDir); err != nil {
		fmt.Fprintf(os.Stderr, "Error creating XDG directories: %v\n", err)
		return err
	}
	if created, err := internal.EnsureDefaultConfig(config.ConfigDir); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: Failed to ensure default config: %v\n", err)
	} else if created {
		fmt.Fprintf(os.Stderr, "Created default configuration at %s\n", config.ConfigDir)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	err = rootCmd.ExecuteContext(ctx)
	closeApp()
	return err
}

func init() {
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "Enable verbose output for debugging")
}
