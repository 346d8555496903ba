package discord

import (
	"context"
	"fmt"

	"github.com/bwmarrin/discordgo"

	"github.com/aCatWithSchizophrenia/SRCNotifications/internal/constants"
)

func commandDefinitions() []*discordgo.ApplicationCommand {
	minInterval := float64(constants.MinPollIntervalSeconds)
	minRecent := float64(1)
	maxRecent := float64(constants.RecentRunsKept)

	return []*discordgo.ApplicationCommand{
		{
			Name:        "setchannel",
			Description: "Send run notifications to a channel (defaults to this one)",
			Options: []*discordgo.ApplicationCommandOption{
				{
					Type:        discordgo.ApplicationCommandOptionChannel,
					Name:        "channel",
					Description: "The channel to announce new runs in",
					Required:    false,
					ChannelTypes: []discordgo.ChannelType{
						discordgo.ChannelTypeGuildText,
					},
				},
			},
		},
		{
			Name:        "setping",
			Description: "Ping a role on new runs (omit the role to stop pinging)",
			Options: []*discordgo.ApplicationCommandOption{
				{
					Type:        discordgo.ApplicationCommandOptionRole,
					Name:        "role",
					Description: "The role to ping",
					Required:    false,
				},
			},
		},
		{
			Name:        "games",
			Description: "Manage the games monitored in this server",
			Options: []*discordgo.ApplicationCommandOption{
				{
					Type:        discordgo.ApplicationCommandOptionSubCommand,
					Name:        "add",
					Description: "Monitor one game, with a pick menu when the name is ambiguous",
					Options: []*discordgo.ApplicationCommandOption{
						{
							Type:        discordgo.ApplicationCommandOptionString,
							Name:        "name",
							Description: "Game name as written on speedrun.com",
							Required:    true,
						},
					},
				},
				{
					Type:        discordgo.ApplicationCommandOptionSubCommand,
					Name:        "remove",
					Description: "Stop monitoring one game",
					Options: []*discordgo.ApplicationCommandOption{
						{
							Type:        discordgo.ApplicationCommandOptionString,
							Name:        "name",
							Description: "Game name as it appears in /games list",
							Required:    true,
						},
					},
				},
				{
					Type:        discordgo.ApplicationCommandOptionSubCommand,
					Name:        "set",
					Description: "Replace the whole monitored list (comma separated)",
					Options: []*discordgo.ApplicationCommandOption{
						{
							Type:        discordgo.ApplicationCommandOptionString,
							Name:        "names",
							Description: "Comma separated game names",
							Required:    true,
						},
					},
				},
				{
					Type:        discordgo.ApplicationCommandOptionSubCommand,
					Name:        "list",
					Description: "Show the monitored games and their resolution state",
				},
			},
		},
		{
			Name:        "interval",
			Description: "Set this server's preferred check interval in seconds",
			Options: []*discordgo.ApplicationCommandOption{
				{
					Type:        discordgo.ApplicationCommandOptionInteger,
					Name:        "seconds",
					Description: fmt.Sprintf("Seconds between checks (minimum %d)", constants.MinPollIntervalSeconds),
					Required:    true,
					MinValue:    &minInterval,
				},
			},
		},
		{
			Name:        "enable",
			Description: "Resume run notifications for this server",
		},
		{
			Name:        "disable",
			Description: "Pause run notifications for this server",
		},
		{
			Name:        "status",
			Description: "Show the monitor configuration and poll statistics",
		},
		{
			Name:        "recent",
			Description: "Show recently announced run ids",
			Options: []*discordgo.ApplicationCommandOption{
				{
					Type:        discordgo.ApplicationCommandOptionInteger,
					Name:        "count",
					Description: "How many to show (default 5)",
					Required:    false,
					MinValue:    &minRecent,
					MaxValue:    maxRecent,
				},
			},
		},
		{
			Name:        "resetseen",
			Description: "Clear the seen-run history so pending runs can announce again",
		},
		{
			Name:        "clearcache",
			Description: "Clear the game search cache so names resolve fresh",
		},
		{
			Name:        "checknow",
			Description: "Run a poll cycle immediately",
		},
		{
			Name:        "help",
			Description: "Show every command",
		},
	}
}

func (b *Bot) registerCommands() error {
	b.logger.Info().Msg("registering slash commands")

	definitions := commandDefinitions()
	registered := make([]*discordgo.ApplicationCommand, 0, len(definitions))

	for _, cmd := range definitions {
		created, err := b.session.ApplicationCommandCreate(b.session.State.User.ID, "", cmd)
		if err != nil {
			return fmt.Errorf("failed to register command %s: %w", cmd.Name, err)
		}
		registered = append(registered, created)
		b.logger.Debug().Str("command", cmd.Name).Msg("command registered")
	}

	b.commands = registered
	b.logger.Info().Int("count", len(registered)).Msg("slash commands registered")
	return nil
}

func (b *Bot) dispatchCommand(s *discordgo.Session, i *discordgo.InteractionCreate) {
	if i.GuildID == "" {
		respond(s, i, "This bot only works inside a server.")
		return
	}

	data := i.ApplicationCommandData()
	b.logger.Debug().Str("command", data.Name).Str("guild_id", i.GuildID).Msg("command received")

	b.ensureDestination(s, i)

	switch data.Name {
	case "setchannel":
		if b.requireAdmin(s, i) {
			b.handleSetChannel(s, i)
		}
	case "setping":
		if b.requireAdmin(s, i) {
			b.handleSetPing(s, i)
		}
	case "games":
		b.handleGames(s, i)
	case "interval":
		if b.requireAdmin(s, i) {
			b.handleInterval(s, i)
		}
	case "enable":
		if b.requireAdmin(s, i) {
			b.handleSetEnabled(s, i, true)
		}
	case "disable":
		if b.requireAdmin(s, i) {
			b.handleSetEnabled(s, i, false)
		}
	case "status":
		b.handleStatus(s, i)
	case "recent":
		b.handleRecent(s, i)
	case "resetseen":
		if b.requireAdmin(s, i) {
			b.handleResetSeen(s, i)
		}
	case "clearcache":
		if b.requireAdmin(s, i) {
			b.handleClearCache(s, i)
		}
	case "checknow":
		if b.requireAdmin(s, i) {
			b.handleCheckNow(s, i)
		}
	case "help":
		b.handleHelp(s, i)
	default:
		b.logger.Warn().Str("command", data.Name).Msg("unknown command")
	}
}

// ensureDestination lazily creates the destination row on the guild's first
// interaction, so every handler can assume it exists.
func (b *Bot) ensureDestination(s *discordgo.Session, i *discordgo.InteractionCreate) {
	ctx, cancel := context.WithTimeout(context.Background(), constants.DatabaseTimeout)
	defer cancel()

	name := ""
	if guild, err := s.State.Guild(i.GuildID); err == nil {
		name = guild.Name
	}
	if _, err := b.dests.CreateIfAbsent(ctx, i.GuildID, name); err != nil {
		b.logger.Error().Err(err).Str("guild_id", i.GuildID).Msg("failed to ensure destination")
	}
}

// requireAdmin gates mutating commands on the Administrator permission and
// answers the interaction itself when the caller lacks it.
func (b *Bot) requireAdmin(s *discordgo.Session, i *discordgo.InteractionCreate) bool {
	if i.Member != nil && i.Member.Permissions&discordgo.PermissionAdministrator != 0 {
		return true
	}
	respondEphemeral(s, i, "You need the Administrator permission to use this command.")
	return false
}

func respond(s *discordgo.Session, i *discordgo.InteractionCreate, content string) {
	_ = s.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{Content: content},
	})
}

func respondEphemeral(s *discordgo.Session, i *discordgo.InteractionCreate, content string) {
	_ = s.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{
			Content: content,
			Flags:   discordgo.MessageFlagsEphemeral,
		},
	})
}

func respondDeferred(s *discordgo.Session, i *discordgo.InteractionCreate) {
	_ = s.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseDeferredChannelMessageWithSource,
	})
}

func editResponse(s *discordgo.Session, i *discordgo.InteractionCreate, content string) {
	_, _ = s.InteractionResponseEdit(i.Interaction, &discordgo.WebhookEdit{
		Content: &content,
	})
}
