// Package config loads plugin configuration from TOML.
//
// A missing config file is not an error: the defaults describe a working
// engine-backed setup. Values from the file override defaults field by
// field.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/pelletier/go-toml/v2"
)

// Config is the root plugin configuration.
type Config struct {
	Provider   ProviderConfig   `toml:"provider"`
	Completion CompletionConfig `toml:"completion"`
	AI         AIConfig         `toml:"ai"`
	Logging    LoggingConfig    `toml:"logging"`
}

// ProviderConfig selects and configures the completion provider.
type ProviderConfig struct {
	// Mode is "engine" (external subprocess) or "ai".
	Mode string `toml:"mode"`
	// Command is the engine executable.
	Command string `toml:"command"`
	// Args are extra engine arguments.
	Args []string `toml:"args"`
	// SearchPath lists extra module search directories handed to the
	// engine at startup, in addition to the plugin's sibling directory.
	SearchPath []string `toml:"search_path"`
	// Timeout is the per-request timeout, as a Go duration string.
	// Empty uses the engine default.
	Timeout string `toml:"timeout"`
}

// CompletionConfig tunes the adapter.
type CompletionConfig struct {
	CaseInsensitive bool `toml:"case_insensitive"`
	AllowDuplicates bool `toml:"allow_duplicates"`
	MaxResults      int  `toml:"max_results"`
}

// AIConfig configures the AI provider.
type AIConfig struct {
	// APIKey overrides the environment credential lookup.
	APIKey    string `toml:"api_key"`
	Model     string `toml:"model"`
	MaxTokens int64  `toml:"max_tokens"`
	// WindowLines bounds the buffer context sent per request.
	WindowLines int `toml:"window_lines"`
}

// LoggingConfig configures the diagnostic logger.
type LoggingConfig struct {
	Level string `toml:"level"`
	// File is the log destination; empty logs to stderr.
	File string `toml:"file"`
}

// Provider modes.
const (
	ModeEngine = "engine"
	ModeAI     = "ai"
)

// Default returns the default configuration.
func Default() Config {
	return Config{
		Provider: ProviderConfig{
			Mode: ModeEngine,
		},
		Completion: CompletionConfig{
			CaseInsensitive: true,
			AllowDuplicates: true,
			MaxResults:      0,
		},
		AI: AIConfig{
			MaxTokens:   1024,
			WindowLines: 60,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// Load reads configuration from path, applied over the defaults.
// A missing file returns the defaults unchanged.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, fmt.Errorf("reading config file %s: %w", path, err)
	}

	if err := toml.Unmarshal(data, &cfg); err != nil {
		return Default(), fmt.Errorf("parsing config file %s: %w", path, err)
	}

	if err := cfg.Validate(); err != nil {
		return Default(), fmt.Errorf("config file %s: %w", path, err)
	}
	return cfg, nil
}

// Validate checks cross-field constraints.
func (c Config) Validate() error {
	switch c.Provider.Mode {
	case ModeEngine, ModeAI:
	default:
		return fmt.Errorf("unknown provider mode %q", c.Provider.Mode)
	}
	// An empty engine command is tolerated here: it may be supplied on the
	// command line instead.
	if c.Provider.Timeout != "" {
		if _, err := time.ParseDuration(c.Provider.Timeout); err != nil {
			return fmt.Errorf("invalid provider timeout %q: %w", c.Provider.Timeout, err)
		}
	}
	if c.Completion.MaxResults < 0 {
		return fmt.Errorf("max_results must not be negative")
	}
	return nil
}

// RequestTimeout returns the parsed provider timeout, or zero when unset.
// Validate has already rejected unparsable values.
func (c Config) RequestTimeout() time.Duration {
	if c.Provider.Timeout == "" {
		return 0
	}
	d, err := time.ParseDuration(c.Provider.Timeout)
	if err != nil {
		return 0
	}
	return d
}
