package config

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// Environment variables consulted by ApplyEnv.
const (
	EnvBookmarksPath = "SAFARI_BOOKMARKS_PATH"
	EnvLLMProvider   = "LLM_PROVIDER"
	EnvLLMModel      = "LLM_MODEL"
	EnvLogLevel      = "LECTOR_LOG_LEVEL"
	EnvHome          = "LECTOR_HOME"
	EnvBind          = "LECTOR_BIND"
	EnvPort          = "LECTOR_PORT"
)

// Config holds application configuration.
type Config struct {
	// BookmarksPath overrides the platform default Safari Bookmarks.plist location.
	BookmarksPath string `json:"bookmarks_path,omitempty"`

	// LLMProvider is the default provider name when a request does not name one.
	LLMProvider string `json:"llm_provider,omitempty"`

	// LLMModel is the default model when a request does not name one.
	// Empty means the provider's own default.
	LLMModel string `json:"llm_model,omitempty"`

	// LLMTimeoutSeconds bounds a single provider call.
	LLMTimeoutSeconds int `json:"llm_timeout_seconds"`

	// LLMRequestsPerMinute paces provider calls. 0 disables pacing.
	LLMRequestsPerMinute int `json:"llm_requests_per_minute,omitempty"`

	// ProviderBaseURLs overrides provider endpoints by provider name
	// (e.g. {"openai": "http://localhost:8081"}).
	ProviderBaseURLs map[string]string `json:"provider_base_urls,omitempty"`

	// FetchTimeoutSeconds bounds a single page fetch.
	FetchTimeoutSeconds int `json:"fetch_timeout_seconds"`

	// FetchUserAgent is sent with every page fetch.
	FetchUserAgent string `json:"fetch_user_agent,omitempty"`

	// UseReadability reduces pages to their main article before text extraction.
	UseReadability bool `json:"use_readability,omitempty"`

	// LogLevel is a logrus level name (debug, info, warn, error).
	LogLevel string `json:"log_level,omitempty"`

	// Bind and Port are the web UI listen address.
	Bind string `json:"bind,omitempty"`
	Port int    `json:"port,omitempty"`

	// DBMaxOpenConns limits the maximum number of open database connections.
	// 0 means use sql.DB default.
	DBMaxOpenConns int `json:"db_max_open_conns,omitempty"`

	// DBMaxIdleConns limits the maximum number of idle database connections.
	DBMaxIdleConns int `json:"db_max_idle_conns,omitempty"`

	// DisabledTools is a list of MCP tool names to exclude from registration.
	// Unknown tool names are logged as warnings.
	DisabledTools []string `json:"disabled_tools,omitempty"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		LLMTimeoutSeconds:   120,
		FetchTimeoutSeconds: 10,
		FetchUserAgent:      "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36",
		LogLevel:            "info",
		Bind:                "127.0.0.1",
		Port:                8000,
	}
}

// BaseDir returns the lector home directory: $LECTOR_HOME, else ~/.lector.
func BaseDir() (string, error) {
	if dir := strings.TrimSpace(os.Getenv(EnvHome)); dir != "" {
		return dir, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".lector"), nil
}

// Load loads configuration from baseDir/config.json, then applies the environment.
// A .env file in the working directory is loaded first if present.
// The baseDir parameter allows tests to use t.TempDir() instead of ~/.lector.
func Load(baseDir string) (*Config, error) {
	_ = godotenv.Load()

	cfg, err := loadFile(filepath.Join(baseDir, "config.json"))
	if err != nil {
		return nil, err
	}
	ApplyEnv(cfg)
	return cfg, nil
}

// ApplyEnv overlays environment variables onto cfg. Empty variables are ignored.
func ApplyEnv(cfg *Config) {
	if v := strings.TrimSpace(os.Getenv(EnvBookmarksPath)); v != "" {
		cfg.BookmarksPath = v
	}
	if v := strings.TrimSpace(os.Getenv(EnvLLMProvider)); v != "" {
		cfg.LLMProvider = v
	}
	if v := strings.TrimSpace(os.Getenv(EnvLLMModel)); v != "" {
		cfg.LLMModel = v
	}
	if v := strings.TrimSpace(os.Getenv(EnvLogLevel)); v != "" {
		cfg.LogLevel = v
	}
	if v := strings.TrimSpace(os.Getenv(EnvBind)); v != "" {
		cfg.Bind = v
	}
	if v := strings.TrimSpace(os.Getenv(EnvPort)); v != "" {
		if port, err := strconv.Atoi(v); err == nil && port > 0 {
			cfg.Port = port
		}
	}
}

// loadFileRaw loads configuration from a specific file path.
// Returns zero-valued config if the file doesn't exist (not defaults).
func loadFileRaw(configPath string) (*Config, error) {
	data, err := os.ReadFile(configPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return &Config{}, nil
		}
		return nil, err
	}

	cfg := &Config{}
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// loadFile loads configuration from a specific file path.
// Returns default config if the file doesn't exist.
func loadFile(configPath string) (*Config, error) {
	cfg, err := loadFileRaw(configPath)
	if err != nil {
		return nil, err
	}
	return Merge(DefaultConfig(), cfg), nil
}

// Merge combines base and overlay configs.
// Overlay values take precedence for scalars; arrays are merged and deduplicated.
func Merge(base, overlay *Config) *Config {
	result := &Config{}

	result.BookmarksPath = firstString(overlay.BookmarksPath, base.BookmarksPath)
	result.LLMProvider = firstString(overlay.LLMProvider, base.LLMProvider)
	result.LLMModel = firstString(overlay.LLMModel, base.LLMModel)
	result.FetchUserAgent = firstString(overlay.FetchUserAgent, base.FetchUserAgent)
	result.LogLevel = firstString(overlay.LogLevel, base.LogLevel)
	result.Bind = firstString(overlay.Bind, base.Bind)

	result.LLMTimeoutSeconds = firstInt(overlay.LLMTimeoutSeconds, base.LLMTimeoutSeconds)
	result.LLMRequestsPerMinute = firstInt(overlay.LLMRequestsPerMinute, base.LLMRequestsPerMinute)
	result.FetchTimeoutSeconds = firstInt(overlay.FetchTimeoutSeconds, base.FetchTimeoutSeconds)
	result.Port = firstInt(overlay.Port, base.Port)
	result.DBMaxOpenConns = firstInt(overlay.DBMaxOpenConns, base.DBMaxOpenConns)
	result.DBMaxIdleConns = firstInt(overlay.DBMaxIdleConns, base.DBMaxIdleConns)

	// Booleans: overlay wins if true, else base
	result.UseReadability = base.UseReadability || overlay.UseReadability

	// Maps: overlay keys win
	if len(base.ProviderBaseURLs)+len(overlay.ProviderBaseURLs) > 0 {
		result.ProviderBaseURLs = make(map[string]string)
		for k, v := range base.ProviderBaseURLs {
			result.ProviderBaseURLs[k] = v
		}
		for k, v := range overlay.ProviderBaseURLs {
			if strings.TrimSpace(v) != "" {
				result.ProviderBaseURLs[k] = v
			}
		}
	}

	result.DisabledTools = mergeStringSlice(base.DisabledTools, overlay.DisabledTools)

	return result
}

func firstString(a, b string) string {
	if strings.TrimSpace(a) != "" {
		return a
	}
	return b
}

func firstInt(a, b int) int {
	if a != 0 {
		return a
	}
	return b
}

// mergeStringSlice combines two slices, trims whitespace, and removes duplicates.
func mergeStringSlice(a, b []string) []string {
	seen := make(map[string]bool)
	result := make([]string, 0, len(a)+len(b))

	for _, s := range append(append([]string{}, a...), b...) {
		s = strings.TrimSpace(s)
		if s != "" && !seen[s] {
			seen[s] = true
			result = append(result, s)
		}
	}

	if len(result) == 0 {
		return nil
	}
	return result
}
