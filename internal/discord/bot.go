package discord

import (
	"context"
	"fmt"

	"github.com/bwmarrin/discordgo"
	"github.com/rs/zerolog"

	"github.com/aCatWithSchizophrenia/SRCNotifications/internal/config"
	"github.com/aCatWithSchizophrenia/SRCNotifications/internal/constants"
	"github.com/aCatWithSchizophrenia/SRCNotifications/internal/repository"
	"github.com/aCatWithSchizophrenia/SRCNotifications/internal/service"
)

// NewSession builds the gateway session. Guild and guild-message intents
// cover everything the bot listens for; interactions arrive regardless.
func NewSession(cfg *config.Config) (*discordgo.Session, error) {
	session, err := discordgo.New("Bot " + cfg.DiscordToken)
	if err != nil {
		return nil, fmt.Errorf("failed to create discord session: %w", err)
	}
	session.Identify.Intents = discordgo.IntentsGuilds | discordgo.IntentsGuildMessages
	return session, nil
}

// Bot is the command surface: it translates slash commands into registry
// and directory operations and keeps the disambiguation sessions that back
// interactive game picks.
type Bot struct {
	session   *discordgo.Session
	dests     *repository.DestinationRepository
	seen      *repository.SeenRunRepository
	games     *repository.GameRepository
	directory *service.DirectoryService
	notifier  *service.NotifierService
	watcher   *service.WatcherService
	logger    zerolog.Logger

	picks    *pickRegistry
	commands []*discordgo.ApplicationCommand
}

func NewBot(
	session *discordgo.Session,
	dests *repository.DestinationRepository,
	seen *repository.SeenRunRepository,
	games *repository.GameRepository,
	directory *service.DirectoryService,
	notifier *service.NotifierService,
	watcher *service.WatcherService,
	logger zerolog.Logger,
) *Bot {
	b := &Bot{
		session:   session,
		dests:     dests,
		seen:      seen,
		games:     games,
		directory: directory,
		notifier:  notifier,
		watcher:   watcher,
		logger:    logger,
	}
	b.picks = newPickRegistry(constants.DisambiguationTimeout, b.expirePick)

	session.AddHandler(b.onReady)
	session.AddHandler(b.onGuildCreate)
	session.AddHandler(b.onGuildDelete)
	session.AddHandler(b.onInteraction)

	return b
}

// Start opens the gateway connection and registers the slash commands.
func (b *Bot) Start() error {
	if err := b.session.Open(); err != nil {
		return fmt.Errorf("failed to open discord session: %w", err)
	}
	if err := b.registerCommands(); err != nil {
		return fmt.Errorf("failed to register commands: %w", err)
	}
	return nil
}

func (b *Bot) Stop() error {
	b.picks.Close()
	return b.session.Close()
}

func (b *Bot) onReady(s *discordgo.Session, r *discordgo.Ready) {
	b.logger.Info().
		Str("user", s.State.User.Username).
		Int("guilds", len(r.Guilds)).
		Msg("speedrun monitor is now online")

	if err := s.UpdateWatchStatus(0, "speedrun.com for new runs"); err != nil {
		b.logger.Debug().Err(err).Msg("failed to set presence")
	}
}

// onGuildCreate registers a destination row the first time a guild shows
// up. The event also fires for every guild on connect, so CreateIfAbsent
// keeps it idempotent.
func (b *Bot) onGuildCreate(_ *discordgo.Session, g *discordgo.GuildCreate) {
	ctx, cancel := context.WithTimeout(context.Background(), constants.DatabaseTimeout)
	defer cancel()

	if _, err := b.dests.CreateIfAbsent(ctx, g.ID, g.Name); err != nil {
		b.logger.Error().Err(err).Str("guild_id", g.ID).Msg("failed to register guild")
	}
}

// onGuildDelete disables the destination when the bot is removed from a
// guild. Rows are never deleted, so rejoining picks the old config back up.
func (b *Bot) onGuildDelete(_ *discordgo.Session, g *discordgo.GuildDelete) {
	if g.Unavailable {
		// outage, not a removal
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), constants.DatabaseTimeout)
	defer cancel()

	if err := b.dests.SetEnabled(ctx, g.ID, false); err != nil {
		b.logger.Warn().Err(err).Str("guild_id", g.ID).Msg("failed to disable removed guild")
		return
	}
	b.logger.Info().Str("guild_id", g.ID).Msg("guild removed bot, destination disabled")
}

func (b *Bot) onInteraction(s *discordgo.Session, i *discordgo.InteractionCreate) {
	switch i.Type {
	case discordgo.InteractionApplicationCommand:
		b.dispatchCommand(s, i)
	case discordgo.InteractionMessageComponent:
		b.dispatchComponent(s, i)
	}
}
