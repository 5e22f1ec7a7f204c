package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"

	"github.com/adrg/xdg"
	"github.com/goccy/go-json"
	"github.com/spf13/cobra"

	"github.com/rtzll/ytdash/internal"
)

// mcpCmd represents the mcp command
var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Run an MCP server exposing saved channels",
	Long: `Run a Model Context Protocol (MCP) server that exposes ytdash as tools.

Tools:
- list_sessions: saved channels with their video counts
- channel_stats: engagement and keyword statistics of a saved channel
- fetch_channel: fetch a channel and save it as a session
- chat_with_channel: ask the AI provider about a saved channel

The server follows sign-in and sign-out done with "ytdash login" in another
terminal. With metrics_addr set, Prometheus metrics are served on /metrics.

Transport options:
- stdio (default): Standard MCP transport via stdin/stdout
- http: HTTP transport on specified port (use --port to configure)`,
	Example: `  # Run MCP server with stdio transport (e.g. for Claude Desktop)
  ytdash mcp

  # Run MCP server with HTTP transport on port 8080
  ytdash mcp --transport=http --port=8080

  # Set up Claude Desktop integration
  ytdash mcp setup-claude`,
	PreRunE: func(cmd *cobra.Command, args []string) error {
		transport, _ := cmd.Flags().GetString("transport")
		// stdout is the protocol stream
		if transport != "http" {
			config.Verbose = false
			quietUI = true
		}
		return nil
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		transport, _ := cmd.Flags().GetString("transport")
		port, _ := cmd.Flags().GetInt("port")
		if transport != "stdio" && transport != "http" {
			return fmt.Errorf("unsupported transport: %s (supported: stdio, http)", transport)
		}

		app, err := requireApp(cmd)
		if err != nil {
			return err
		}
		if transport == "http" {
			app.UI().Printf("Starting ytdash MCP server on HTTP port %d...\n", port)
		}
		return internal.NewMCPServer(app, version).Start(cmd.Context(), transport, port)
	},
}

// setupClaudeCmd represents the setup-claude subcommand
var setupClaudeCmd = &cobra.Command{
	Use:   "setup-claude",
	Short: "Register ytdash as an MCP server in Claude Desktop",
	Long: `Add ytdash to claude_desktop_config.json, keeping other configured servers.
The current XDG base directories are passed along so the server finds the
same database, identity and config as this shell.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		configPath, err := claudeDesktopConfigPath()
		if err != nil {
			return fmt.Errorf("getting Claude Desktop config path: %w", err)
		}
		if err := registerMCPServer(configPath); err != nil {
			return err
		}
		fmt.Printf("Registered ytdash in %s\n", configPath)
		fmt.Println("Restart Claude Desktop to use the ytdash MCP server")
		return nil
	},
}

// ClaudeDesktopConfig is the part of claude_desktop_config.json ytdash edits
type ClaudeDesktopConfig struct {
	MCPServers map[string]MCPServerConfig `json:"mcpServers"`
}

// MCPServerConfig is one entry of mcpServers
type MCPServerConfig struct {
	Command string            `json:"command"`
	Args    []string          `json:"args"`
	Env     map[string]string `json:"env,omitempty"`
}

func registerMCPServer(configPath string) error {
	execPath, err := os.Executable()
	if err != nil {
		return fmt.Errorf("getting executable path: %w", err)
	}
	if execPath, err = filepath.EvalSymlinks(execPath); err != nil {
		return fmt.Errorf("resolving executable path: %w", err)
	}

	data, err := os.ReadFile(configPath)
	if os.IsNotExist(err) {
		return fmt.Errorf("config for Claude Desktop not found at %s", configPath)
	}
	if err != nil {
		return fmt.Errorf("reading existing config: %w", err)
	}

	// decode twice so fields other than mcpServers survive the rewrite
	var doc map[string]json.RawMessage
	if err := json.Unmarshal(data, &doc); err != nil {
		return fmt.Errorf("parsing existing config: %w", err)
	}
	var cfg ClaudeDesktopConfig
	if err := json.Unmarshal(data, &cfg); err != nil {
		return fmt.Errorf("parsing existing config: %w", err)
	}
	if cfg.MCPServers == nil {
		cfg.MCPServers = make(map[string]MCPServerConfig)
	}
	cfg.MCPServers["ytdash"] = MCPServerConfig{
		Command: execPath,
		Args:    []string{"mcp"},
		Env: map[string]string{
			"XDG_CONFIG_HOME": xdg.ConfigHome,
			"XDG_DATA_HOME":   xdg.DataHome,
			"XDG_STATE_HOME":  xdg.StateHome,
			"XDG_CACHE_HOME":  xdg.CacheHome,
		},
	}

	servers, err := json.Marshal(cfg.MCPServers)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}
	doc["mcpServers"] = servers
	out, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}
	if err := os.WriteFile(configPath, out, 0o644); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}
	return nil
}

// claudeDesktopConfigPath returns the platform-specific config path for Claude Desktop
func claudeDesktopConfigPath() (string, error) {
	switch runtime.GOOS {
	case "darwin":
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		return filepath.Join(home, "Library", "Application Support", "Claude", "claude_desktop_config.json"), nil
	case "windows":
		appData := os.Getenv("APPDATA")
		if appData == "" {
			return "", fmt.Errorf("APPDATA environment variable not set")
		}
		return filepath.Join(appData, "Claude", "claude_desktop_config.json"), nil
	case "linux":
		return filepath.Join(xdg.ConfigHome, "Claude", "claude_desktop_config.json"), nil
	default:
		return "", fmt.Errorf("unsupported platform: %s", runtime.GOOS)
	}
}

func init() {
	mcpCmd.Flags().String("transport", "stdio", "Transport protocol (stdio or http)")
	mcpCmd.Flags().Int("port", 8080, "Port for HTTP transport (only used with --transport=http)")
	mcpCmd.AddCommand(setupClaudeCmd)
	rootCmd.AddCommand(mcpCmd)
}
