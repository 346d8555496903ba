package main

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"

	"github.com/rs/cors"
	"github.com/rs/zerolog"
	"go.uber.org/fx"

	"github.com/aCatWithSchizophrenia/SRCNotifications/internal/config"
	"github.com/aCatWithSchizophrenia/SRCNotifications/internal/constants"
	"github.com/aCatWithSchizophrenia/SRCNotifications/internal/discord"
	fxmodules "github.com/aCatWithSchizophrenia/SRCNotifications/internal/fx"
	"github.com/aCatWithSchizophrenia/SRCNotifications/internal/middleware"
	"github.com/aCatWithSchizophrenia/SRCNotifications/internal/server"
	"github.com/aCatWithSchizophrenia/SRCNotifications/internal/service"
)

func main() {
	fx.New(
		fxmodules.Module,
		fx.Invoke(runBot),
	).Run()
}

func runBot(
	lc fx.Lifecycle,
	bot *discord.Bot,
	watcher *service.WatcherService,
	status *server.StatusServer,
	cfg *config.Config,
	db *sql.DB,
	logger zerolog.Logger,
) {
	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		logger.Warn().Str("log_level", cfg.LogLevel).Msg("unknown log level, keeping default")
	} else {
		zerolog.SetGlobalLevel(level)
	}

	mux := http.NewServeMux()

	c := cors.New(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "OPTIONS"},
		AllowedHeaders: []string{"*"},
	})
	requestIDMiddleware := middleware.RequestID(logger)

	mux.HandleFunc("/healthz", status.Healthz)
	mux.Handle("/api/status", requestIDMiddleware(c.Handler(http.HandlerFunc(status.Status))))

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%s", cfg.StatusPort),
		Handler: mux,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			if err := bot.Start(); err != nil {
				return err
			}
			watcher.Start()

			go func() {
				logger.Info().Str("addr", srv.Addr).Msg("status server starting")
				if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					logger.Fatal().Err(err).Msg("status server failed")
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			logger.Info().Msg("shutting down")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), constants.ShutdownTimeout)
			defer cancel()

			watcher.Stop()
			if err := bot.Stop(); err != nil {
				logger.Warn().Err(err).Msg("error closing discord session")
			}
			if err := db.Close(); err != nil {
				logger.Warn().Err(err).Msg("error closing database connection")
			}
			if err := srv.Shutdown(shutdownCtx); err != nil {
				logger.Error().Err(err).Msg("status server shutdown failed")
				return err
			}
			logger.Info().Msg("stopped gracefully")
			return nil
		},
	})
}
