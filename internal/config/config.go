// Package config provides application configuration.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
)

// Config holds all application configuration.
type Config struct {
	Port        string   `env:"PORT" envDefault:"8080"`
	DBPath      string   `env:"DB_PATH" envDefault:"./data/honeypot.db"`
	Archive     bool     `env:"ARCHIVE_ENABLED" envDefault:"true"`
	CORSOrigins []string `env:"CORS_ORIGINS" envDefault:"*" envSeparator:","`
	// RulesPath overrides the embedded engine rules when set.
	RulesPath string `env:"RULES_PATH"`
	LogLevel  string `env:"LOG_LEVEL" envDefault:"info"`

	// SessionRetention is how long ended sessions stay in memory once
	// archived. Zero keeps them forever.
	SessionRetention time.Duration `env:"SESSION_RETENTION" envDefault:"1h"`

	Reply           ReplyConfig
	RateLimit       RateLimitConfig
	MaxRequestBytes int64 `env:"MAX_REQUEST_BODY_BYTES" envDefault:"65536"`
	ConversationLog ConversationLogConfig
}

// ReplyConfig controls the optional generative reply agent.
type ReplyConfig struct {
	// Addr is empty when the agent is disabled.
	Addr    string        `env:"REPLY_AGENT_ADDR"`
	Timeout time.Duration `env:"REPLY_TIMEOUT" envDefault:"8s"`
	Persona string        `env:"REPLY_PERSONA" envDefault:"confused_customer"`
}

// RateLimitConfig controls per-client request limiting.
type RateLimitConfig struct {
	RPS   float64 `env:"RATE_LIMIT_RPS" envDefault:"5"`
	Burst int     `env:"RATE_LIMIT_BURST" envDefault:"20"`
}

// ConversationLogConfig controls NDJSON conversation logging.
type ConversationLogConfig struct {
	Enabled   bool   `env:"CONVERSATION_LOG_ENABLED" envDefault:"true"`
	Dir       string `env:"CONVERSATION_LOG_DIR" envDefault:"./data/logs/conversations"`
	QueueSize int    `env:"CONVERSATION_LOG_QUEUE_SIZE" envDefault:"1000"`
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse environment: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// Validate checks that all required configuration fields are set.
func (c *Config) Validate() error {
	if c.Port == "" {
		return errors.New("PORT cannot be empty")
	}
	if c.Archive && c.DBPath == "" {
		return errors.New("DB_PATH cannot be empty when ARCHIVE_ENABLED is set")
	}
	if c.SessionRetention < 0 {
		return errors.New("SESSION_RETENTION cannot be negative")
	}
	if c.Reply.Timeout <= 0 {
		return errors.New("REPLY_TIMEOUT must be > 0")
	}
	if c.RateLimit.RPS < 0 {
		return errors.New("RATE_LIMIT_RPS cannot be negative")
	}
	if c.RateLimit.RPS > 0 && c.RateLimit.Burst <= 0 {
		return errors.New("RATE_LIMIT_BURST must be > 0")
	}
	if c.MaxRequestBytes <= 0 {
		return errors.New("MAX_REQUEST_BODY_BYTES must be > 0")
	}
	if c.ConversationLog.Enabled && c.ConversationLog.Dir == "" {
		return errors.New("CONVERSATION_LOG_DIR cannot be empty")
	}
	if c.ConversationLog.QueueSize <= 0 {
		return errors.New("CONVERSATION_LOG_QUEUE_SIZE must be > 0")
	}
	if _, err := ParseLevel(c.LogLevel); err != nil {
		return err
	}
	return nil
}

// ReplyEnabled reports whether a generative reply agent is configured.
func (c *Config) ReplyEnabled() bool {
	return c.Reply.Addr != ""
}

// Level returns the configured log level, defaulting to info.
func (c *Config) Level() slog.Level {
	level, err := ParseLevel(c.LogLevel)
	if err != nil {
		return slog.LevelInfo
	}
	return level
}

// ParseLevel maps debug, info, warn and error onto slog levels.
func ParseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug, nil
	case "", "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("LOG_LEVEL %q is not one of debug, info, warn, error", s)
	}
}
