package config_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MrJamesThe3rd/grouper/internal/config"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := config.Load()
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.App.Port)
	assert.Equal(t, "azure", cfg.Queue.Backend)
	assert.Equal(t, "match-requests", cfg.Queue.RequestQueue)
	assert.Equal(t, uint(3), cfg.Matching.UpsertAttempts)
	assert.Equal(t, 30*time.Minute, cfg.Matching.RequestTTL)
	assert.Equal(t, []string{"http://localhost:3000"}, cfg.CORS.AllowedOrigins)
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("QUEUE_BACKEND", "memory")
	t.Setenv("DB_NAME", "other")
	t.Setenv("CORS_ALLOWED_ORIGINS", "https://a.example,https://b.example")

	cfg, err := config.Load()
	require.NoError(t, err)

	assert.Equal(t, "memory", cfg.Queue.Backend)
	assert.Equal(t, "postgres://postgres:@localhost:5432/other?sslmode=disable", cfg.ConnectionString())
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.CORS.AllowedOrigins)
}

func TestLoad_RejectsUnknownBackend(t *testing.T) {
	t.Setenv("QUEUE_BACKEND", "kafka")

	_, err := config.Load()
	assert.Error(t, err)
}
