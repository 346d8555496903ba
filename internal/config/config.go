package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"go.uber.org/fx"

	"github.com/aCatWithSchizophrenia/SRCNotifications/internal/constants"
)

type Config struct {
	DiscordToken        string
	DBPath              string
	StatusPort          string
	LogLevel            string
	SRCAPIBaseURL       string
	PollIntervalSeconds int
}

func Load(logger zerolog.Logger) (*Config, error) {
	if err := godotenv.Load(); err != nil {
		logger.Debug().Msg(".env file not found, using environment variables or defaults")
	}

	cfg := &Config{
		DiscordToken:        getEnv("DISCORD_BOT_TOKEN", ""),
		DBPath:              getEnv("DB_PATH", "srcnotify.db"),
		StatusPort:          getEnv("STATUS_PORT", "8080"),
		LogLevel:            getEnv("LOG_LEVEL", "info"),
		SRCAPIBaseURL:       getEnv("SRC_API_BASE_URL", "https://www.speedrun.com/api/v1"),
		PollIntervalSeconds: getEnvInt("POLL_INTERVAL_SECONDS", constants.DefaultPollIntervalSec),
	}

	if cfg.DiscordToken == "" {
		return nil, fmt.Errorf("DISCORD_BOT_TOKEN is required")
	}
	if cfg.PollIntervalSeconds < constants.MinPollIntervalSeconds {
		logger.Warn().
			Int("requested", cfg.PollIntervalSeconds).
			Int("minimum", constants.MinPollIntervalSeconds).
			Msg("poll interval below minimum, clamping")
		cfg.PollIntervalSeconds = constants.MinPollIntervalSeconds
	}

	logger.Info().
		Str("db_path", cfg.DBPath).
		Str("status_port", cfg.StatusPort).
		Str("log_level", cfg.LogLevel).
		Str("src_api_base_url", cfg.SRCAPIBaseURL).
		Int("poll_interval_seconds", cfg.PollIntervalSeconds).
		Msg("configuration loaded")

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

var Module = fx.Provide(Load)
