package config

import (
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig_Defaults(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost/quiz")
	t.Setenv("KAFKA_BROKERS", "")
	t.Setenv("AI_API_KEY", "")

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, slog.LevelInfo, cfg.LogLevel)
	assert.Equal(t, 2*time.Minute, cfg.LeaderboardTTL)
	assert.Equal(t, 30*time.Second, cfg.SubmissionGrace)
	assert.False(t, cfg.Kafka.Enabled())
	assert.False(t, cfg.AI.Enabled())
	assert.Equal(t, 1024, cfg.AI.MaxTokens)
}

func TestLoadConfig_Overrides(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost/quiz")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("KAFKA_BROKERS", "k1:9092, k2:9092,")
	t.Setenv("AI_API_KEY", "secret")
	t.Setenv("AI_TIMEOUT", "15s")
	t.Setenv("AI_AUTO_GENERATE", "true")

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, slog.LevelDebug, cfg.LogLevel)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.Kafka.Brokers)
	assert.True(t, cfg.AI.Enabled())
	assert.True(t, cfg.AI.AutoGenerate)
	assert.Equal(t, 15*time.Second, cfg.AI.Timeout)
}

func TestLoadConfig_Errors(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
	}{
		{name: "missing database", env: map[string]string{"DATABASE_URL": ""}},
		{name: "bad level", env: map[string]string{"DATABASE_URL": "x", "LOG_LEVEL": "loud"}},
		{name: "bad int", env: map[string]string{"DATABASE_URL": "x", "DB_MAX_OPEN_CONNS": "many"}},
		{name: "bad duration", env: map[string]string{"DATABASE_URL": "x", "AI_TIMEOUT": "soon"}},
		{name: "bad provider", env: map[string]string{"DATABASE_URL": "x", "AI_PROVIDER": "oracle"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			_, err := LoadConfig()
			assert.Error(t, err)
		})
	}
}
