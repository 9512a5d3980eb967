package config

import (
	"os"

	"github.com/ilyakaznacheev/cleanenv"
	"github.com/maxbolgarin/errm"
	"github.com/maxbolgarin/reviewd/internal/agent"
	"github.com/maxbolgarin/reviewd/internal/notify"
	"github.com/maxbolgarin/reviewd/internal/queue"
	"github.com/maxbolgarin/reviewd/internal/ratelimit"
	"github.com/maxbolgarin/reviewd/internal/review"
	"github.com/maxbolgarin/reviewd/internal/server"
	"github.com/maxbolgarin/reviewd/internal/storage"
)

// Config represents the main application configuration. Every section is
// owned and validated by the component that consumes it.
type Config struct {
	Server    server.Config    `yaml:"server"`
	Database  storage.Config   `yaml:"database"`
	Agent     agent.Config     `yaml:"agent"`
	RateLimit ratelimit.Config `yaml:"rate_limit"`
	Queue     queue.Config     `yaml:"queue"`
	Review    review.Config    `yaml:"review"`
	Notify    notify.Config    `yaml:"notify"`
}

// Load reads configuration from an optional YAML file, then applies
// environment variable overrides.
func Load(path string) (Config, error) {
	var cfg Config

	if path != "" {
		if _, err := os.Stat(path); err != nil {
			return cfg, errm.Wrap(err, "config file is not accessible")
		}
		if err := cleanenv.ReadConfig(path, &cfg); err != nil {
			return cfg, errm.Wrap(err, "failed to read config file")
		}
	} else {
		if err := cleanenv.ReadEnv(&cfg); err != nil {
			return cfg, errm.Wrap(err, "failed to read environment")
		}
	}

	if err := cfg.Validate(); err != nil {
		return cfg, err
	}

	return cfg, nil
}

// Validate checks the cross-component requirements that cannot wait until
// component construction.
func (c *Config) Validate() error {
	if c.Agent.APIKey == "" && c.Agent.GeminiAPIKey == "" {
		return ErrMissingAgentAPIKey
	}
	return nil
}
