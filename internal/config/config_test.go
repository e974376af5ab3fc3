package config

import (
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, "./data/honeypot.db", cfg.DBPath)
	assert.True(t, cfg.Archive)
	assert.Equal(t, time.Hour, cfg.SessionRetention)
	assert.Equal(t, []string{"*"}, cfg.CORSOrigins)
	assert.Equal(t, 8*time.Second, cfg.Reply.Timeout)
	assert.Equal(t, "confused_customer", cfg.Reply.Persona)
	assert.False(t, cfg.ReplyEnabled())
	assert.Equal(t, 1000, cfg.ConversationLog.QueueSize)
	assert.Equal(t, slog.LevelInfo, cfg.Level())
}

func TestLoadFromEnvironment(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("CORS_ORIGINS", "http://a.test,http://b.test")
	t.Setenv("REPLY_AGENT_ADDR", "localhost:50051")
	t.Setenv("REPLY_TIMEOUT", "2s")
	t.Setenv("RATE_LIMIT_RPS", "0")
	t.Setenv("LOG_LEVEL", "debug")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "9090", cfg.Port)
	assert.Equal(t, []string{"http://a.test", "http://b.test"}, cfg.CORSOrigins)
	assert.True(t, cfg.ReplyEnabled())
	assert.Equal(t, 2*time.Second, cfg.Reply.Timeout)
	assert.Zero(t, cfg.RateLimit.RPS)
	assert.Equal(t, slog.LevelDebug, cfg.Level())
}

func TestLoadRejectsInvalid(t *testing.T) {
	tests := []struct {
		name  string
		key   string
		value string
	}{
		{"bad duration", "REPLY_TIMEOUT", "soon"},
		{"zero timeout", "REPLY_TIMEOUT", "0s"},
		{"zero queue", "CONVERSATION_LOG_QUEUE_SIZE", "0"},
		{"zero body limit", "MAX_REQUEST_BODY_BYTES", "0"},
		{"unknown level", "LOG_LEVEL", "loud"},
		{"negative rps", "RATE_LIMIT_RPS", "-1"},
		{"negative retention", "SESSION_RETENTION", "-1m"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(tt.key, tt.value)
			_, err := Load()
			assert.Error(t, err)
		})
	}
}

func TestArchiveDisabledAllowsEmptyDBPath(t *testing.T) {
	t.Setenv("ARCHIVE_ENABLED", "false")
	t.Setenv("DB_PATH", "")

	cfg, err := Load()
	require.NoError(t, err)
	assert.False(t, cfg.Archive)
}
