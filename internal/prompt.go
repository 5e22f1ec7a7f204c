package internal

import (
	"bytes"
	"embed"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"text/template"
)

//go:embed prompts/*.tmpl
var promptFS embed.FS

// Prompt template names
const (
	PromptChat    = "chat"
	PromptAnalyze = "analyze"
	PromptReport  = "report"
)

// PromptNames lists every template the application renders
var PromptNames = []string{PromptChat, PromptAnalyze, PromptReport}

// maxPromptVideos bounds how many videos are listed in a chat prompt
const maxPromptVideos = 200

var promptFuncs = template.FuncMap{
	"duration": FormatDuration,
	"count":    FormatCount,
	"truncate": Truncate,
	"percent":  func(f float64) float64 { return f * 100 },
}

// ChatPromptData is the context for the chat system prompt
type ChatPromptData struct {
	Channel ChannelInfo
	Stats   ChannelStats
	Videos  []Video
}

// AnalyzePromptData is the context for a single video analysis
type AnalyzePromptData struct {
	URL     string
	Video   Video
	Channel ChannelInfo
}

// ReportChannel is one channel of a competitive report
type ReportChannel struct {
	Channel ChannelInfo
	Stats   ChannelStats
}

// ReportPromptData is the context for a competitive report
type ReportPromptData struct {
	Channels []ReportChannel
}

// PromptManager loads prompt templates. Files in the prompts directory
// override the embedded defaults by name.
type PromptManager struct {
	promptsDir string
	overrides  map[string]string
}

// NewPromptManager creates a prompt manager reading overrides from configDir/prompts
func NewPromptManager(configDir string) *PromptManager {
	return &PromptManager{
		promptsDir: filepath.Join(configDir, "prompts"),
		overrides:  make(map[string]string),
	}
}

// Dir returns the directory searched for template files
func (pm *PromptManager) Dir() string { return pm.promptsDir }

// SetOverride replaces one template with a file path or a literal template string
func (pm *PromptManager) SetOverride(name, promptSetting string) error {
	if promptSetting == "" {
		return nil
	}
	if IsLikelyFilePath(promptSetting) && FileExists(promptSetting) {
		content, err := os.ReadFile(promptSetting)
		if err != nil {
			return fmt.Errorf("reading prompt file: %w", err)
		}
		promptSetting = string(content)
	}
	pm.overrides[name] = promptSetting
	return nil
}

func (pm *PromptManager) source(name string) (string, error) {
	if s, ok := pm.overrides[name]; ok {
		return s, nil
	}
	custom := filepath.Join(pm.promptsDir, name+".tmpl")
	if FileExists(custom) {
		content, err := os.ReadFile(custom)
		if err != nil {
			return "", fmt.Errorf("reading prompt template: %w", err)
		}
		return string(content), nil
	}
	content, err := promptFS.ReadFile("prompts/" + name + ".tmpl")
	if err != nil {
		return "", fmt.Errorf("unknown prompt template %q", name)
	}
	return string(content), nil
}

// Render executes the named template with data
func (pm *PromptManager) Render(name string, data any) (string, error) {
	src, err := pm.source(name)
	if err != nil {
		return "", err
	}
	tmpl, err := template.New(name).Funcs(promptFuncs).Parse(src)
	if err != nil {
		return "", fmt.Errorf("parsing prompt template: %w", err)
	}
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("executing prompt template: %w", err)
	}
	return strings.TrimSpace(buf.String()), nil
}

// EnsureDefaultPrompts writes the embedded templates to the prompts directory
// so they can be edited. Existing files are left alone.
func (pm *PromptManager) EnsureDefaultPrompts() error {
	if err := os.MkdirAll(pm.promptsDir, 0755); err != nil {
		return fmt.Errorf("creating prompts directory: %w", err)
	}
	for _, name := range PromptNames {
		path := filepath.Join(pm.promptsDir, name+".tmpl")
		if FileExists(path) {
			continue
		}
		content, err := promptFS.ReadFile("prompts/" + name + ".tmpl")
		if err != nil {
			return fmt.Errorf("reading embedded prompt %s: %w", name, err)
		}
		if err := os.WriteFile(path, content, 0644); err != nil {
			return fmt.Errorf("writing prompt %s: %w", name, err)
		}
	}
	return nil
}

// IsLikelyFilePath uses heuristics to determine if a string is likely a file path
func IsLikelyFilePath(s string) bool {
	if strings.Contains(s, "/") || strings.Contains(s, "\\") {
		return true
	}
	if strings.HasSuffix(s, ".txt") || strings.HasSuffix(s, ".md") || strings.HasSuffix(s, ".tmpl") {
		return true
	}
	if len(s) > 200 {
		return false
	}
	return !strings.Contains(s, " ") && !strings.Contains(s, "\n")
}
