// Package config loads runtime settings from the environment.
package config

import (
	"fmt"

	"github.com/caarlos0/env/v11"
)

// Config holds everything the binary needs at startup. All values come
// from FABLEFORGE_* environment variables with sensible defaults; only the
// OpenRouter key has no default, and the game degrades to the offline
// generator without it.
type Config struct {
	// DataDir is where the file backend keeps its records.
	DataDir string `env:"FABLEFORGE_DATA_DIR" envDefault:"./data"`

	// Backend selects the persistence backend: "file" or "sqlite".
	Backend string `env:"FABLEFORGE_BACKEND" envDefault:"file"`

	// SQLitePath is the database file used when Backend is "sqlite".
	SQLitePath string `env:"FABLEFORGE_SQLITE_PATH" envDefault:"./fableforge.db"`

	// PackDir points at an optional Lua content pack loaded at startup.
	PackDir string `env:"FABLEFORGE_PACK_DIR"`

	// OpenRouterKey enables live generation; empty means offline mode.
	OpenRouterKey string `env:"OPENROUTER_API_KEY"`

	// OpenRouterModel is the model slug used for generation calls.
	OpenRouterModel string `env:"FABLEFORGE_MODEL" envDefault:"anthropic/claude-3.5-haiku"`

	// OpenRouterBaseURL overrides the API endpoint, mainly for tests.
	OpenRouterBaseURL string `env:"FABLEFORGE_OPENROUTER_URL" envDefault:"https://openrouter.ai/api/v1"`

	// LogLevel is slog's level string: debug, info, warn, error.
	LogLevel string `env:"FABLEFORGE_LOG_LEVEL" envDefault:"info"`

	// LogFile receives structured logs; empty discards them so log lines
	// never tear the terminal UI.
	LogFile string `env:"FABLEFORGE_LOG_FILE"`

	// Plain switches from the full-screen UI to the line-based frontend.
	Plain bool `env:"FABLEFORGE_PLAIN" envDefault:"false"`
}

// Load reads configuration from the environment.
func Load() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parsing environment: %w", err)
	}
	switch cfg.Backend {
	case "file", "sqlite":
	default:
		return Config{}, fmt.Errorf("unknown backend %q (want file or sqlite)", cfg.Backend)
	}
	return cfg, nil
}

// Offline reports whether generation should use the canned offline
// generator instead of the OpenRouter client.
func (c Config) Offline() bool { return c.OpenRouterKey == "" }
