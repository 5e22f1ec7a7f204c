package internal

import (
	"fmt"

	"github.com/spf13/cobra"
)

// AddProviderFlags adds flags selecting the AI provider for one invocation
func AddProviderFlags(cmd *cobra.Command) {
	cmd.Flags().String("provider", "", "AI provider to use for this run (gemini or openai)")
	cmd.Flags().StringP("model", "m", "", "Model to use for this run")
	cmd.Flags().StringP("prompt", "p", "", "Custom prompt template (string or file path)")
}

// AddPagesFlag adds the --pages flag
func AddPagesFlag(cmd *cobra.Command) {
	cmd.Flags().IntP("pages", "n", 0, "Pages of 50 videos to fetch (default from config)")
}

// HandleProviderFlags applies --provider and --model without persisting them
func HandleProviderFlags(cmd *cobra.Command, app *App) error {
	provider, err := cmd.Flags().GetString("provider")
	if err != nil {
		return fmt.Errorf("failed to get provider flag: %w", err)
	}
	model, err := cmd.Flags().GetString("model")
	if err != nil {
		return fmt.Errorf("failed to get model flag: %w", err)
	}
	switch ProviderName(provider) {
	case "", ProviderGemini, ProviderOpenAI:
	default:
		return fmt.Errorf("unsupported provider: %s (supported: gemini, openai)", provider)
	}
	app.OverrideProvider(ProviderName(provider), model)
	return nil
}

// HandlePromptFlag processes the --prompt flag for the named template
func HandlePromptFlag(cmd *cobra.Command, app *App, name string) error {
	promptFlag := cmd.Flags().Lookup("prompt")
	if promptFlag == nil || !promptFlag.Changed {
		return nil
	}
	prompt, err := cmd.Flags().GetString("prompt")
	if err != nil {
		return fmt.Errorf("failed to get prompt flag: %w", err)
	}
	if prompt == "" {
		return nil
	}
	if err := app.Prompts().SetOverride(name, prompt); err != nil {
		return err
	}
	if IsLikelyFilePath(prompt) && FileExists(prompt) {
		app.UI().Verbose("Using custom prompt file: %s\n", prompt)
	} else {
		app.UI().Verbose("Using custom prompt string\n")
	}
	return nil
}

// HandleVerboseFlag processes the --verbose flag to update config
func HandleVerboseFlag(cmd *cobra.Command, config *Config) error {
	verbose, err := cmd.Flags().GetBool("verbose")
	if err != nil {
		return fmt.Errorf("failed to get verbose flag: %w", err)
	}
	if verbose {
		config.Verbose = true
	}
	return nil
}

// PagesFlag returns --pages, falling back to the configured default
func PagesFlag(cmd *cobra.Command, config *Config) int {
	pages, err := cmd.Flags().GetInt("pages")
	if err != nil || pages <= 0 {
		return config.Pages
	}
	return pages
}
