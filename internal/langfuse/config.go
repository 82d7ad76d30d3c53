package langfuse

import (
	"fmt"
	"strings"
	"time"

	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/v2"

	"github.com/fyrsmithlabs/chattrace/internal/config"
)

// DefaultHost is the Langfuse cloud ingestion endpoint.
const DefaultHost = "https://cloud.langfuse.com"

// Config holds Langfuse tracing configuration.
//
// Loaded once at process start from LANGFUSE_* environment variables and
// immutable afterward. Only Initialize reads it; no operation mutates it.
type Config struct {
	Enabled         bool            `koanf:"enabled"`
	PublicKey       string          `koanf:"public_key"`
	SecretKey       config.Secret   `koanf:"secret_key"`
	Host            string          `koanf:"host"`
	SampleRate      float64         `koanf:"sample_rate"`
	FlushAt         int             `koanf:"flush_at"`
	FlushInterval   config.Duration `koanf:"flush_interval"`
	Debug           bool            `koanf:"debug"`
	FlushOnShutdown bool            `koanf:"flush_on_shutdown"`
	ShutdownTimeout config.Duration `koanf:"shutdown_timeout"`
	Release         string          `koanf:"release"`
	Environment     string          `koanf:"environment"`
}

// NewDefaultConfig returns config defaults. Tracing is disabled by default;
// set LANGFUSE_ENABLED=true plus the key pair to enable.
func NewDefaultConfig() *Config {
	return &Config{
		Enabled:         false,
		Host:            DefaultHost,
		SampleRate:      1.0,
		FlushAt:         1,
		FlushInterval:   config.Duration(time.Second),
		FlushOnShutdown: true,
		ShutdownTimeout: config.Duration(5 * time.Second),
	}
}

// ConfigFromEnv loads tracing configuration from LANGFUSE_* environment
// variables on top of defaults.
//
// Environment variables:
//   - LANGFUSE_ENABLED: enable tracing (default: false)
//   - LANGFUSE_PUBLIC_KEY / LANGFUSE_SECRET_KEY: API key pair
//   - LANGFUSE_HOST: ingestion host (default: https://cloud.langfuse.com)
//   - LANGFUSE_SAMPLE_RATE: fraction of turns traced, 0-1 (default: 1.0)
//   - LANGFUSE_FLUSH_AT: export batch size (default: 1)
//   - LANGFUSE_FLUSH_INTERVAL: export interval (default: 1s)
//   - LANGFUSE_DEBUG: verbose delegate logging (default: false)
//   - LANGFUSE_FLUSH_ON_SHUTDOWN: flush on termination signals (default: true)
//   - LANGFUSE_SHUTDOWN_TIMEOUT: bound on flush/shutdown waits (default: 5s)
//   - LANGFUSE_RELEASE / LANGFUSE_ENVIRONMENT: stamped on every trace
func ConfigFromEnv() (*Config, error) {
	k := koanf.New(".")
	if err := k.Load(env.Provider("LANGFUSE_", ".", func(s string) string {
		return strings.ToLower(strings.TrimPrefix(s, "LANGFUSE_"))
	}), nil); err != nil {
		return nil, fmt.Errorf("loading environment variables: %w", err)
	}

	cfg := NewDefaultConfig()
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling langfuse config: %w", err)
	}

	cfg.Normalize()
	return cfg, nil
}

// Normalize clamps and defaults out-of-range values in place. It is a pure
// function of the config and safe to call repeatedly.
func (c *Config) Normalize() {
	if c.SampleRate < 0 {
		c.SampleRate = 0
	}
	if c.SampleRate > 1 {
		c.SampleRate = 1
	}
	if c.FlushAt < 1 {
		c.FlushAt = 1
	}
	if c.FlushInterval <= 0 {
		c.FlushInterval = config.Duration(time.Second)
	}
	if c.ShutdownTimeout <= 0 {
		c.ShutdownTimeout = config.Duration(5 * time.Second)
	}
	if c.Host == "" {
		c.Host = DefaultHost
	}
	c.Host = strings.TrimRight(c.Host, "/")
}

// HasCredentials reports whether both keys of the pair are present.
func (c *Config) HasCredentials() bool {
	return c.PublicKey != "" && c.SecretKey.IsSet()
}
