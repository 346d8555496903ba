package config

import (
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aCatWithSchizophrenia/SRCNotifications/internal/constants"
)

// clearEnv blanks every config variable so ambient environment cannot leak
// into the test.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"DISCORD_BOT_TOKEN",
		"DB_PATH",
		"STATUS_PORT",
		"LOG_LEVEL",
		"SRC_API_BASE_URL",
		"POLL_INTERVAL_SECONDS",
	} {
		t.Setenv(key, "")
	}
}

func TestLoadRequiresToken(t *testing.T) {
	clearEnv(t)

	_, err := Load(zerolog.Nop())
	assert.Error(t, err)
}

func TestLoadDefaults(t *testing.T) {
	clearEnv(t)
	t.Setenv("DISCORD_BOT_TOKEN", "token-123")

	cfg, err := Load(zerolog.Nop())
	require.NoError(t, err)
	assert.Equal(t, "token-123", cfg.DiscordToken)
	assert.Equal(t, "srcnotify.db", cfg.DBPath)
	assert.Equal(t, "8080", cfg.StatusPort)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, "https://www.speedrun.com/api/v1", cfg.SRCAPIBaseURL)
	assert.Equal(t, constants.DefaultPollIntervalSec, cfg.PollIntervalSeconds)
}

func TestLoadOverrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("DISCORD_BOT_TOKEN", "token-123")
	t.Setenv("DB_PATH", "/data/bot.db")
	t.Setenv("STATUS_PORT", "9090")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("SRC_API_BASE_URL", "http://localhost:4000/api/v1")
	t.Setenv("POLL_INTERVAL_SECONDS", "120")

	cfg, err := Load(zerolog.Nop())
	require.NoError(t, err)
	assert.Equal(t, "/data/bot.db", cfg.DBPath)
	assert.Equal(t, "9090", cfg.StatusPort)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, "http://localhost:4000/api/v1", cfg.SRCAPIBaseURL)
	assert.Equal(t, 120, cfg.PollIntervalSeconds)
}

func TestLoadClampsPollInterval(t *testing.T) {
	clearEnv(t)
	t.Setenv("DISCORD_BOT_TOKEN", "token-123")
	t.Setenv("POLL_INTERVAL_SECONDS", "5")

	cfg, err := Load(zerolog.Nop())
	require.NoError(t, err)
	assert.Equal(t, constants.MinPollIntervalSeconds, cfg.PollIntervalSeconds)
}

func TestLoadIgnoresUnparsableInterval(t *testing.T) {
	clearEnv(t)
	t.Setenv("DISCORD_BOT_TOKEN", "token-123")
	t.Setenv("POLL_INTERVAL_SECONDS", "sixty")

	cfg, err := Load(zerolog.Nop())
	require.NoError(t, err)
	assert.Equal(t, constants.DefaultPollIntervalSec, cfg.PollIntervalSeconds)
}
