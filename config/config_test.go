package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadFromEnvDefaults(t *testing.T) {
	cfg := LoadFromEnv()

	assert.Equal(t, []string{"explosive-swings", "spx-profit-pulse"}, cfg.Rooms)
	assert.Equal(t, 8080, cfg.HTTPPort)
	assert.Equal(t, 10, cfg.Realtime.PerPage)
	assert.Equal(t, 30*time.Second, cfg.Realtime.BadgeWindow)
	assert.Equal(t, 5*time.Second, cfg.Realtime.SweepInterval)
	assert.True(t, cfg.JournalEnabled)
	assert.Empty(t, cfg.Webhooks)
}

func TestLoadFromEnvOverrides(t *testing.T) {
	t.Setenv("ROOMSYNC_ROOMS", "alpha, beta ,,gamma")
	t.Setenv("HTTP_PORT", "9000")
	t.Setenv("BADGE_WINDOW", "45s")
	t.Setenv("JOURNAL_ENABLED", "false")

	cfg := LoadFromEnv()

	assert.Equal(t, []string{"alpha", "beta", "gamma"}, cfg.Rooms)
	assert.Equal(t, 9000, cfg.HTTPPort)
	assert.Equal(t, 45*time.Second, cfg.Realtime.BadgeWindow)
	assert.False(t, cfg.JournalEnabled)
}

func TestLoadFromEnvBadValuesFallBack(t *testing.T) {
	t.Setenv("HTTP_PORT", "not-a-port")
	t.Setenv("BADGE_WINDOW", "soon")

	cfg := LoadFromEnv()

	assert.Equal(t, 8080, cfg.HTTPPort)
	assert.Equal(t, 30*time.Second, cfg.Realtime.BadgeWindow)
}

func TestLoadWebhooks(t *testing.T) {
	t.Setenv("WEBHOOK_1_URL", "https://hooks.example.com/a")
	t.Setenv("WEBHOOK_1_TOKEN", "secret")
	t.Setenv("WEBHOOK_1_ROOMS", "explosive-swings")
	t.Setenv("WEBHOOK_1_TYPES", "ENTRY,EXIT")
	// Gap at 2; slot 3 still loads.
	t.Setenv("WEBHOOK_3_URL", "https://hooks.example.com/c")

	cfg := LoadFromEnv()

	require.Len(t, cfg.Webhooks, 2)
	assert.Equal(t, "https://hooks.example.com/a", cfg.Webhooks[0].URL)
	assert.Equal(t, "secret", cfg.Webhooks[0].AuthToken)
	assert.Equal(t, "ENTRY,EXIT", cfg.Webhooks[0].AlertTypes)
	assert.Equal(t, "https://hooks.example.com/c", cfg.Webhooks[1].URL)
	assert.Empty(t, cfg.Webhooks[1].Rooms)
}
