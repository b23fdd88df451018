package config_test

import (
	"testing"
	"time"

	"github.com/farmdash/farmdash-backend/pkg/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := config.Load("inventory-service")
	require.NoError(t, err)

	assert.Equal(t, 8084, cfg.Server.Port)
	assert.Equal(t, config.EnvDevelopment, cfg.Server.Environment)
	assert.Equal(t, 30*time.Second, cfg.Sync.SyncInterval)
	assert.Equal(t, 60*time.Second, cfg.Sync.AlertInterval)
	assert.Equal(t, 5*time.Minute, cfg.Sync.CacheTTL)
	assert.Equal(t, 30, cfg.Sync.ExpiryWarningDays)
	assert.Equal(t, 180, cfg.Sync.SlowMovingDays)
	assert.Empty(t, cfg.Sync.QueuePath, "queue journal is memory-only by default")
	assert.Empty(t, cfg.RabbitMQ.URL, "messaging is disabled by default")
}

func TestLoad_EnvOverride(t *testing.T) {
	t.Setenv("FARMDASH_SYNC_EXPIRY_WARNING_DAYS", "45")
	t.Setenv("FARMDASH_BACKEND_BASE_URL", "http://api.example.test")

	cfg, err := config.Load("inventory-service")
	require.NoError(t, err)

	assert.Equal(t, 45, cfg.Sync.ExpiryWarningDays)
	assert.Equal(t, "http://api.example.test", cfg.Backend.BaseURL)
}

func TestLoadWithValidation_ProductionRequiresBackendURL(t *testing.T) {
	t.Setenv("FARMDASH_SERVER_ENVIRONMENT", config.EnvProduction)

	_, err := config.LoadWithValidation("inventory-service")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "FARMDASH_BACKEND_BASE_URL")
}

func TestLoadWithValidation_ProductionOK(t *testing.T) {
	t.Setenv("FARMDASH_SERVER_ENVIRONMENT", config.EnvProduction)
	t.Setenv("FARMDASH_BACKEND_BASE_URL", "https://api.farmdash.example")

	cfg, err := config.LoadWithValidation("inventory-service")
	require.NoError(t, err)
	assert.Equal(t, config.EnvProduction, cfg.Server.Environment)
}
