// Package config provides configuration loading for chattrace.
//
// Configuration is loaded from environment variables with sensible defaults.
// Environment variables use an underscore separator and map to sections:
//
//	SERVER_PORT             -> server.port
//	SERVER_SHUTDOWN_TIMEOUT -> server.shutdown_timeout
//	CHAT_MODEL              -> chat.model
//	CHAT_API_KEY            -> chat.api_key
//
// Tracing configuration (LANGFUSE_*) is owned by the langfuse package and
// logging configuration (LOG_*) by the logging package; both use the same
// env-driven loading mechanism.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/v2"
)

// Config holds the chattrace daemon configuration.
type Config struct {
	Server ServerConfig `koanf:"server"`
	Chat   ChatConfig   `koanf:"chat"`
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Port            int      `koanf:"port"`
	ShutdownTimeout Duration `koanf:"shutdown_timeout"`
}

// ChatConfig holds model backend configuration for the chat pipeline.
type ChatConfig struct {
	Model          string   `koanf:"model"`
	BaseURL        string   `koanf:"base_url"`
	APIKey         Secret   `koanf:"api_key"`
	Temperature    float64  `koanf:"temperature"`
	MaxTokens      int      `koanf:"max_tokens"`
	SystemPrompt   string   `koanf:"system_prompt"`
	RequestTimeout Duration `koanf:"request_timeout"`
}

// Load loads configuration from environment variables with defaults.
//
// Example:
//
//	cfg, err := config.Load()
//	if err != nil {
//	    log.Fatal(err)
//	}
func Load() (*Config, error) {
	k := koanf.New(".")

	// Environment variables use underscore separator and are uppercased.
	// Split on the first underscore only: SECTION_FIELD_NAME -> section.field_name.
	if err := k.Load(env.Provider("", ".", func(s string) string {
		lower := strings.ToLower(s)
		parts := strings.SplitN(lower, "_", 2)
		if len(parts) == 1 {
			return lower
		}
		return parts[0] + "." + parts[1]
	}), nil); err != nil {
		return nil, fmt.Errorf("loading environment variables: %w", err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	ApplyDefaults(&cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &cfg, nil
}

// ApplyDefaults sets default values for missing configuration fields.
// Exposed separately from Load so defaulting stays testable without the
// process environment.
func ApplyDefaults(cfg *Config) {
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Server.ShutdownTimeout == 0 {
		cfg.Server.ShutdownTimeout = Duration(10 * time.Second)
	}
	if cfg.Chat.Model == "" {
		cfg.Chat.Model = "gpt-4o-mini"
	}
	if cfg.Chat.Temperature == 0 {
		cfg.Chat.Temperature = 0.7
	}
	if cfg.Chat.MaxTokens == 0 {
		cfg.Chat.MaxTokens = 1024
	}
	if cfg.Chat.RequestTimeout == 0 {
		cfg.Chat.RequestTimeout = Duration(60 * time.Second)
	}
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d (must be 1-65535)", c.Server.Port)
	}
	if c.Server.ShutdownTimeout <= 0 {
		return errors.New("shutdown timeout must be positive")
	}
	if c.Chat.Model == "" {
		return errors.New("chat model must not be empty")
	}
	if c.Chat.Temperature < 0 || c.Chat.Temperature > 2 {
		return fmt.Errorf("chat temperature out of range: %f (must be 0-2)", c.Chat.Temperature)
	}
	if c.Chat.MaxTokens < 1 {
		return fmt.Errorf("chat max_tokens must be positive, got %d", c.Chat.MaxTokens)
	}
	if c.Chat.RequestTimeout <= 0 {
		return errors.New("chat request timeout must be positive")
	}
	return nil
}
