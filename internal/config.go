package internal

import (
	"embed"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/adrg/xdg"
	"github.com/gookit/validate"
	"github.com/spf13/viper"
)

const appName = "ytdash"

// Config holds application settings
type Config struct {
	// User configurable settings
	LocalDB         string `validate:"required"`
	RemoteDSN       string
	SyncDelay       time.Duration `validate:"required|min:1"`
	MergeOnLogin    bool
	RequestTimeout  time.Duration `validate:"required|min:1"`
	CacheSizeMB     int           `validate:"min:0|max:4096"`
	YouTubeRPS      float64       `validate:"min:0"`
	LogLevel        string        `validate:"required|in:trace,debug,info,warn,error"`
	MetricsAddr     string
	DefaultProvider string `validate:"required|in:gemini,openai"`
	DefaultModel    string
	Pages           int `validate:"required|min:1|max:20"`
	Verbose         bool

	// First-run provider keys, usually from the environment
	YouTubeAPIKey string
	GeminiAPIKey  string
	OpenAIAPIKey  string

	// Fixed XDG paths (not configurable)
	ConfigDir    string
	DataDir      string
	StateDir     string
	CacheDir     string
	LogFile      string
	IdentityFile string
	ConfigFile   string
}

//go:embed config.toml
var defaultFS embed.FS

// EnsureDefaultConfig writes the embedded config.toml to configDir if it is missing
func EnsureDefaultConfig(configDir string) (bool, error) {
	filePath := filepath.Join(configDir, "config.toml")
	if FileExists(filePath) {
		return false, nil
	}
	if err := os.MkdirAll(configDir, 0755); err != nil {
		return false, fmt.Errorf("creating config directory: %w", err)
	}
	content, err := defaultFS.ReadFile("config.toml")
	if err != nil {
		return false, fmt.Errorf("reading embedded default configuration: %w", err)
	}
	if err := os.WriteFile(filePath, content, 0644); err != nil {
		return false, fmt.Errorf("writing default configuration: %w", err)
	}
	return true, nil
}

// ValidateConfig checks value ranges and enums
func ValidateConfig(c *Config) error {
	v := validate.Struct(c)
	if !v.Validate() {
		return fmt.Errorf("invalid configuration: %w", v.Errors)
	}
	return nil
}

// InitConfig initializes Viper and loads configuration from the XDG config directory
func InitConfig() (*Config, error) {
	configDir := filepath.Join(xdg.ConfigHome, appName)
	return LoadConfig(configDir, filepath.Join(xdg.DataHome, appName), filepath.Join(xdg.StateHome, appName), filepath.Join(xdg.CacheHome, appName))
}

// LoadConfig loads configuration using explicit directories
func LoadConfig(configDir, dataDir, stateDir, cacheDir string) (*Config, error) {
	v := viper.New()

	v.SetDefault("local_db", filepath.Join(dataDir, "ytdash.db"))
	v.SetDefault("remote_dsn", "")
	v.SetDefault("sync_delay", DefaultSyncDelay)
	v.SetDefault("merge_on_login", false)
	v.SetDefault("request_timeout", DefaultRequestTimeout)
	v.SetDefault("cache_size_mb", 16)
	v.SetDefault("youtube_rps", 5.0)
	v.SetDefault("log_level", "info")
	v.SetDefault("metrics_addr", "")
	v.SetDefault("default_provider", string(ProviderGemini))
	v.SetDefault("default_model", "")
	v.SetDefault("pages", 2)
	v.SetDefault("verbose", false)

	v.SetConfigName("config")
	v.SetConfigType("toml")
	v.AddConfigPath(configDir)

	v.SetEnvPrefix("YTDASH")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// provider keys and the database URL use their conventional names
	_ = v.BindEnv("youtube_api_key", "YTDASH_YOUTUBE_API_KEY", "YOUTUBE_API_KEY")
	_ = v.BindEnv("gemini_api_key", "YTDASH_GEMINI_API_KEY", "GEMINI_API_KEY")
	_ = v.BindEnv("openai_api_key", "YTDASH_OPENAI_API_KEY", "OPENAI_API_KEY")
	_ = v.BindEnv("remote_dsn", "YTDASH_REMOTE_DSN", "DATABASE_URL")

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
	}

	config := &Config{
		LocalDB:         expandHome(v.GetString("local_db")),
		RemoteDSN:       v.GetString("remote_dsn"),
		SyncDelay:       v.GetDuration("sync_delay"),
		MergeOnLogin:    v.GetBool("merge_on_login"),
		RequestTimeout:  v.GetDuration("request_timeout"),
		CacheSizeMB:     v.GetInt("cache_size_mb"),
		YouTubeRPS:      v.GetFloat64("youtube_rps"),
		LogLevel:        strings.ToLower(v.GetString("log_level")),
		MetricsAddr:     v.GetString("metrics_addr"),
		DefaultProvider: strings.ToLower(v.GetString("default_provider")),
		DefaultModel:    v.GetString("default_model"),
		Pages:           v.GetInt("pages"),
		Verbose:         v.GetBool("verbose"),

		YouTubeAPIKey: v.GetString("youtube_api_key"),
		GeminiAPIKey:  v.GetString("gemini_api_key"),
		OpenAIAPIKey:  v.GetString("openai_api_key"),

		ConfigDir:    configDir,
		DataDir:      dataDir,
		StateDir:     stateDir,
		CacheDir:     cacheDir,
		LogFile:      filepath.Join(stateDir, "ytdash.log"),
		IdentityFile: filepath.Join(stateDir, "identity.json"),
		ConfigFile:   v.ConfigFileUsed(),
	}

	if err := ValidateConfig(config); err != nil {
		return nil, err
	}
	return config, nil
}

// SeedSettings are the settings of a fresh install, taken from the configuration.
// Keys are not included; environment keys are applied when settings are read.
func (c *Config) SeedSettings() Settings {
	s := DefaultSettings()
	s.Provider = ProviderName(c.DefaultProvider)
	s.Model = c.DefaultModel
	return s.Normalize()
}

func expandHome(path string) string {
	if path == "~" || strings.HasPrefix(path, "~/") {
		return filepath.Join(xdg.Home, strings.TrimPrefix(path, "~"))
	}
	return path
}
