package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig_Defaults(t *testing.T) {
	cfg, err := LoadConfig("nonexistent.env")
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.App.Port)
	assert.Equal(t, "development", cfg.App.Env)
	assert.Equal(t, "https://testsecure.peachpayments.com", cfg.Peach.BaseURL)
	assert.Equal(t, 30*time.Second, cfg.Peach.Timeout)
	assert.Equal(t, time.Hour, cfg.Renewal.Interval)
	assert.Equal(t, 3, cfg.Renewal.GracePeriodDays)
	assert.False(t, cfg.IsProduction())
}

func TestLoadConfig_Environment(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("APP_ENV", "production")
	t.Setenv("RENEWAL_INTERVAL", "15m")
	t.Setenv("PEACH_ENTITY_ID", "entity-test")

	cfg, err := LoadConfig("nonexistent.env")
	require.NoError(t, err)

	assert.Equal(t, "9090", cfg.App.Port)
	assert.Equal(t, 15*time.Minute, cfg.Renewal.Interval)
	assert.Equal(t, "entity-test", cfg.Peach.EntityID)
	assert.True(t, cfg.IsProduction())
}
