// Package config provides environment-based configuration.
//
// Values load from a .env file when present (godotenv) and the process
// environment, mapped onto the Config struct via go-simpler/env tags.
package config

import (
	"fmt"

	"github.com/joho/godotenv"
	"go-simpler.org/env"
)

// Config holds all runtime configuration.
type Config struct {
	TwitchClientID     string `env:"TWITCH_CLIENT_ID"`
	TwitchClientSecret string `env:"TWITCH_CLIENT_SECRET"`

	// RedisURL enables the enrichment profile cache when set.
	RedisURL string `env:"REDIS_URL"`

	// RateLimit is the request budget per minute.
	RateLimit int `env:"RATE_LIMIT" default:"800"`

	LogLevel  string `env:"LOG_LEVEL" default:"info"`
	LogFormat string `env:"LOG_FORMAT" default:"json"`
}

// Load reads configuration from .env and the environment. A missing
// .env file is not an error.
func Load() (*Config, error) {
	_ = godotenv.Load()

	var cfg Config
	if err := env.Load(&cfg, nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	if err := validate(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func validate(cfg *Config) error {
	required := map[string]string{
		"TWITCH_CLIENT_ID":     cfg.TwitchClientID,
		"TWITCH_CLIENT_SECRET": cfg.TwitchClientSecret,
	}
	for name, value := range required {
		if value == "" {
			return fmt.Errorf("%s is required", name)
		}
	}

	if cfg.RateLimit <= 0 {
		return fmt.Errorf("RATE_LIMIT must be positive, got %d", cfg.RateLimit)
	}

	switch cfg.LogFormat {
	case "json", "console":
	default:
		return fmt.Errorf("LOG_FORMAT must be json or console, got %q", cfg.LogFormat)
	}

	return nil
}
