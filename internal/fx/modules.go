package fx

import (
	"github.com/rs/zerolog"
	"go.uber.org/fx"

	"github.com/aCatWithSchizophrenia/SRCNotifications/internal/api"
	"github.com/aCatWithSchizophrenia/SRCNotifications/internal/config"
	"github.com/aCatWithSchizophrenia/SRCNotifications/internal/database"
	"github.com/aCatWithSchizophrenia/SRCNotifications/internal/discord"
	"github.com/aCatWithSchizophrenia/SRCNotifications/internal/logger"
	"github.com/aCatWithSchizophrenia/SRCNotifications/internal/repository"
	"github.com/aCatWithSchizophrenia/SRCNotifications/internal/server"
	"github.com/aCatWithSchizophrenia/SRCNotifications/internal/service"
)

// The service constructors take narrow interfaces; fx resolves by concrete
// type, so these adapters pin which implementation fills each slot.

func ProvideDirectory(client *api.SRCClient, games *repository.GameRepository, dests *repository.DestinationRepository, logger zerolog.Logger) *service.DirectoryService {
	return service.NewDirectoryService(client, games, dests, logger)
}

func ProvideNotifier(client *api.SRCClient, seen *repository.SeenRunRepository, dests *repository.DestinationRepository, sink *discord.Sink, logger zerolog.Logger) *service.NotifierService {
	return service.NewNotifierService(client, seen, dests, sink, logger)
}

func ProvideWatcher(cfg *config.Config, client *api.SRCClient, dests *repository.DestinationRepository, seen *repository.SeenRunRepository, notifier *service.NotifierService, logger zerolog.Logger) *service.WatcherService {
	return service.NewWatcherService(cfg, client, dests, seen, notifier, logger)
}

var Module = fx.Options(
	fx.Provide(logger.New),
	fx.Provide(config.Load),
	fx.Provide(database.New),
	// repos
	fx.Provide(repository.NewDestinationRepository),
	fx.Provide(repository.NewSeenRunRepository),
	fx.Provide(repository.NewGameRepository),
	// api client
	fx.Provide(api.NewSRCClient),
	// discord transport
	fx.Provide(discord.NewSession),
	fx.Provide(discord.NewSink),
	// svc
	fx.Provide(ProvideDirectory),
	fx.Provide(ProvideNotifier),
	fx.Provide(ProvideWatcher),
	// surfaces
	fx.Provide(discord.NewBot),
	fx.Provide(server.NewStatusServer),
)
