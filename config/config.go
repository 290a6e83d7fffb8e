// Package config loads edge runtime settings from EDGE_* environment
// variables. Command line flags override the loaded values.
package config

import (
	"time"

	"github.com/kelseyhightower/envconfig"

	"github.com/wippyai/edge-runtime/engine"
	"github.com/wippyai/edge-runtime/errors"
	"github.com/wippyai/edge-runtime/guest"
	"github.com/wippyai/edge-runtime/httpclient"
	"github.com/wippyai/edge-runtime/runtime"
)

// Prefix is prepended to every variable name.
const Prefix = "EDGE"

// Config holds all runtime configuration. Field names map to variables
// by words: Fetch.FailOnStatus reads EDGE_FETCH_FAIL_ON_STATUS.
type Config struct {
	Log   LogConfig
	Fetch FetchConfig
	Guest GuestConfig

	// EnvPass lists host variables (glob patterns) exposed to handlers.
	EnvPass []string `split_words:"true"`
	Addr    string   `default:":8080"`
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level string `default:"info"`
	Dev   bool   `default:"false"`
}

// FetchConfig holds outbound HTTP configuration.
type FetchConfig struct {
	Timeout      time.Duration `default:"30s"`
	Retries      int           `default:"0"`
	RPS          float64       `default:"0"`
	Burst        int           `default:"1"`
	Allow        []string
	FailOnStatus bool   `split_words:"true" default:"false"`
	MaxRedirects int    `split_words:"true" default:"20"`
	UserAgent    string `split_words:"true" default:"edge-runtime/1.0"`
}

// GuestConfig holds guest module configuration.
type GuestConfig struct {
	Path             string `default:"guest.wasm"`
	Convention       string `default:"packed"`
	MemoryLimitPages uint32 `split_words:"true" default:"0"`
	CacheDir         string `split_words:"true"`
}

// Load reads the configuration from the environment.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(Prefix, &cfg); err != nil {
		return nil, errors.Wrap(errors.PhaseConfig, errors.KindInvalidInput, err, "load environment")
	}
	return &cfg, nil
}

// HTTP converts the fetch settings into a client configuration.
func (f FetchConfig) HTTP() httpclient.Config {
	cfg := httpclient.DefaultConfig()
	cfg.Timeout = f.Timeout
	cfg.Retries = f.Retries
	cfg.RateLimit = f.RPS
	cfg.Burst = f.Burst
	cfg.FailOnStatus = f.FailOnStatus
	cfg.MaxRedirects = f.MaxRedirects
	if f.UserAgent != "" {
		cfg.UserAgent = f.UserAgent
	}
	return cfg
}

// Supervisor builds supervisor options. The logger and hooks are left to the
// caller.
func (c *Config) Supervisor() runtime.Options {
	return runtime.Options{
		Engine: &engine.Config{
			MemoryLimitPages: c.Guest.MemoryLimitPages,
			CacheDir:         c.Guest.CacheDir,
		},
		HTTP:       c.Fetch.HTTP(),
		Allow:      c.Fetch.Allow,
		EnvPass:    c.EnvPass,
		Convention: guest.Convention(c.Guest.Convention),
	}
}
