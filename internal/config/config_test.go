package config

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/SAP-F-2025/assessment-runner/internal/events"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfigDefaults(t *testing.T) {
	t.Chdir(t.TempDir())
	for _, key := range []string{"PORT", "BACKEND_URL", "REDIS_URL", "SESSION_TTL", "TIME_WARNING_SECONDS", "CORS_ORIGINS", "EVENTS_ENABLED", "EVENTS_PUBLISHER"} {
		t.Setenv(key, "")
	}

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, "http://localhost:3000/api", cfg.BackendURL)
	assert.Empty(t, cfg.RedisURL)
	assert.Equal(t, 6*time.Hour, cfg.SessionTTL)
	assert.Equal(t, 300, cfg.TimeWarningSeconds)
	assert.Equal(t, []string{"http://localhost:3000"}, cfg.CORSOrigins)
	assert.True(t, cfg.Events.Enabled)
	assert.Equal(t, "gochannel", cfg.Events.Publisher)
}

func TestLoadConfigFromEnvironment(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("REQUEST_TIMEOUT", "3s")
	t.Setenv("TIME_WARNING_SECONDS", "not-a-number")
	t.Setenv("CORS_ORIGINS", " https://a.example , ,https://b.example")
	t.Setenv("EVENTS_ENABLED", "false")
	t.Setenv("KAFKA_BROKERS", "k1:9092, k2:9092")

	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "missing.env"))
	require.NoError(t, err)

	assert.Equal(t, "9090", cfg.Port)
	assert.Equal(t, 3*time.Second, cfg.RequestTimeout)
	assert.Equal(t, 300, cfg.TimeWarningSeconds, "invalid numbers fall back to the default")
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.CORSOrigins)
	assert.False(t, cfg.Events.Enabled)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.Events.GetKafkaBrokers())
}

func TestLoadConfigReadsDotenvFile(t *testing.T) {
	t.Setenv("BACKEND_URL", "")
	require.NoError(t, os.Unsetenv("BACKEND_URL"))
	path := filepath.Join(t.TempDir(), "runner.env")
	require.NoError(t, os.WriteFile(path, []byte("BACKEND_URL=https://backend.example/api\n"), 0o600))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "https://backend.example/api", cfg.BackendURL)
}

func TestCreateEventPublisher(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	tests := []struct {
		name   string
		config EventConfig
		check  func(t *testing.T, p events.EventPublisher)
	}{
		{
			name:   "disabled",
			config: EventConfig{Enabled: false, Publisher: "kafka"},
			check: func(t *testing.T, p events.EventPublisher) {
				assert.IsType(t, &events.MockEventPublisher{}, p)
			},
		},
		{
			name:   "gochannel",
			config: EventConfig{Enabled: true, Publisher: "gochannel", RunnerTopic: "runner"},
			check: func(t *testing.T, p events.EventPublisher) {
				assert.IsType(t, &events.GoChannelEventPublisher{}, p)
			},
		},
		{
			name:   "unknown falls back to mock",
			config: EventConfig{Enabled: true, Publisher: "carrier-pigeon"},
			check: func(t *testing.T, p events.EventPublisher) {
				assert.IsType(t, &events.MockEventPublisher{}, p)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := tt.config.CreateEventPublisher(logger)
			require.NoError(t, err)
			defer p.Close()
			tt.check(t, p)
		})
	}
}
