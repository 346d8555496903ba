package discord

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/bwmarrin/discordgo"

	"github.com/aCatWithSchizophrenia/SRCNotifications/internal/constants"
	"github.com/aCatWithSchizophrenia/SRCNotifications/internal/domain"
	"github.com/aCatWithSchizophrenia/SRCNotifications/internal/service"
)

func (b *Bot) handleSetChannel(s *discordgo.Session, i *discordgo.InteractionCreate) {
	ctx, cancel := context.WithTimeout(context.Background(), constants.DatabaseTimeout)
	defer cancel()

	channelID := i.ChannelID
	if opts := i.ApplicationCommandData().Options; len(opts) > 0 {
		if ch := opts[0].ChannelValue(s); ch != nil {
			channelID = ch.ID
		}
	}

	if err := b.dests.SetChannel(ctx, i.GuildID, channelID); err != nil {
		b.logger.Error().Err(err).Str("guild_id", i.GuildID).Msg("failed to set channel")
		respond(s, i, "Could not save the notification channel. Please try again.")
		return
	}
	respond(s, i, fmt.Sprintf("✅ Run notifications will be sent to <#%s>.", channelID))
}

func (b *Bot) handleSetPing(s *discordgo.Session, i *discordgo.InteractionCreate) {
	ctx, cancel := context.WithTimeout(context.Background(), constants.DatabaseTimeout)
	defer cancel()

	roleID := ""
	if opts := i.ApplicationCommandData().Options; len(opts) > 0 {
		if role := opts[0].RoleValue(s, i.GuildID); role != nil {
			roleID = role.ID
		}
	}

	if err := b.dests.SetPingRole(ctx, i.GuildID, roleID); err != nil {
		b.logger.Error().Err(err).Str("guild_id", i.GuildID).Msg("failed to set ping role")
		respond(s, i, "Could not save the ping role. Please try again.")
		return
	}
	if roleID == "" {
		respond(s, i, "✅ New runs will no longer ping a role.")
		return
	}
	respond(s, i, fmt.Sprintf("✅ <@&%s> will be pinged when a new run is found.", roleID))
}

func (b *Bot) handleGames(s *discordgo.Session, i *discordgo.InteractionCreate) {
	sub := i.ApplicationCommandData().Options[0]

	switch sub.Name {
	case "add":
		if b.requireAdmin(s, i) {
			b.handleGamesAdd(s, i, sub.Options[0].StringValue())
		}
	case "remove":
		if b.requireAdmin(s, i) {
			b.handleGamesRemove(s, i, sub.Options[0].StringValue())
		}
	case "set":
		if b.requireAdmin(s, i) {
			b.handleGamesSet(s, i, sub.Options[0].StringValue())
		}
	case "list":
		b.handleGamesList(s, i)
	}
}

// handleGamesAdd monitors one game. An exact or lone match binds
// immediately; anything ambiguous opens a pick menu. The entry is created
// unresolved first so that a failed or abandoned pick still leaves it
// visible in /games list for another attempt.
func (b *Bot) handleGamesAdd(s *discordgo.Session, i *discordgo.InteractionCreate, name string) {
	respondDeferred(s, i)

	ctx, cancel := context.WithTimeout(context.Background(), constants.InteractionTimeout)
	defer cancel()

	raw := strings.TrimSpace(name)
	normalized := service.NormalizeGameName(raw)
	if normalized == "" {
		editResponse(s, i, "Give me a game name to monitor.")
		return
	}

	entryID, err := b.monitoredEntryID(ctx, i.GuildID, raw, normalized)
	if err != nil {
		if errors.Is(err, domain.ErrAlreadyMonitored) {
			editResponse(s, i, fmt.Sprintf("**%s** is already monitored here. Use `/games remove` first to re-resolve it.", raw))
		} else {
			b.logger.Error().Err(err).Str("guild_id", i.GuildID).Str("name", raw).Msg("failed to add monitored game")
			editResponse(s, i, "Could not save the game. Please try again.")
		}
		return
	}

	candidates, err := b.directory.Candidates(ctx, raw)
	if err != nil {
		editResponse(s, i, fmt.Sprintf("The speedrun.com search failed. **%s** is saved but unresolved; run `/games add` again later.", raw))
		return
	}
	if len(candidates) == 0 {
		editResponse(s, i, fmt.Sprintf("No game on speedrun.com matches **%s**. It stays in your list unresolved; fix the spelling with `/games remove` and `/games add`.", raw))
		return
	}

	if pick := unambiguousCandidate(candidates); pick != nil {
		game, err := b.directory.BindMonitored(ctx, entryID, pick.Game.ID)
		if err != nil {
			editResponse(s, i, fmt.Sprintf("Found **%s** but could not verify it right now. It stays unresolved; run `/games add %s` again later.", pick.Game.Name, raw))
			return
		}
		editResponse(s, i, fmt.Sprintf("✅ Now monitoring **%s** for new runs.", game.Name))
		return
	}

	b.offerPick(s, i, entryID, raw, candidates)
}

// monitoredEntryID returns the id of the guild's entry for the name,
// creating it unresolved when new. A re-add of an unresolved entry reuses
// it so the operator can retry resolution; a resolved one is an error.
func (b *Bot) monitoredEntryID(ctx context.Context, guildID, raw, normalized string) (string, error) {
	entry, err := b.dests.AddMonitoredGame(ctx, guildID, raw, normalized, "")
	if err == nil {
		return entry.ID, nil
	}
	if !errors.Is(err, domain.ErrAlreadyMonitored) {
		return "", err
	}

	existing, listErr := b.dests.ListMonitoredGames(ctx, guildID)
	if listErr != nil {
		return "", listErr
	}
	for _, m := range existing {
		if m.NormalizedName == normalized && m.GameID == "" {
			return m.ID, nil
		}
	}
	return "", domain.ErrAlreadyMonitored
}

// unambiguousCandidate picks a result that needs no operator input: the
// first exact match, or the only result.
func unambiguousCandidate(candidates []domain.GameCandidate) *domain.GameCandidate {
	for idx := range candidates {
		if candidates[idx].Exact {
			return &candidates[idx]
		}
	}
	if len(candidates) == 1 {
		return &candidates[0]
	}
	return nil
}

func (b *Bot) handleGamesRemove(s *discordgo.Session, i *discordgo.InteractionCreate, name string) {
	ctx, cancel := context.WithTimeout(context.Background(), constants.DatabaseTimeout)
	defer cancel()

	raw := strings.TrimSpace(name)
	err := b.dests.RemoveMonitoredGame(ctx, i.GuildID, service.NormalizeGameName(raw))
	if errors.Is(err, domain.ErrNotMonitored) {
		respond(s, i, fmt.Sprintf("**%s** is not in this server's monitored list.", raw))
		return
	}
	if err != nil {
		b.logger.Error().Err(err).Str("guild_id", i.GuildID).Str("name", raw).Msg("failed to remove monitored game")
		respond(s, i, "Could not remove the game. Please try again.")
		return
	}
	respond(s, i, fmt.Sprintf("✅ Stopped monitoring **%s**.", raw))
}

// handleGamesSet replaces the monitored list in one shot, resolving each
// name greedily (exact, then substring, then first result). Names that
// resolve to nothing are kept unresolved rather than dropped.
func (b *Bot) handleGamesSet(s *discordgo.Session, i *discordgo.InteractionCreate, namesArg string) {
	respondDeferred(s, i)

	ctx, cancel := context.WithTimeout(context.Background(), constants.InteractionTimeout)
	defer cancel()

	var names []string
	seenNames := make(map[string]struct{})
	for _, part := range strings.Split(namesArg, ",") {
		raw := strings.TrimSpace(part)
		normalized := service.NormalizeGameName(raw)
		if normalized == "" {
			continue
		}
		if _, dup := seenNames[normalized]; dup {
			continue
		}
		seenNames[normalized] = struct{}{}
		names = append(names, raw)
	}
	if len(names) == 0 {
		editResponse(s, i, "Provide at least one game name, comma separated. The monitored list was not changed.")
		return
	}

	entries := make([]domain.MonitoredGame, 0, len(names))
	lines := make([]string, 0, len(names))
	for _, raw := range names {
		entry := domain.MonitoredGame{
			RawName:        raw,
			NormalizedName: service.NormalizeGameName(raw),
		}
		game, err := b.directory.Resolve(ctx, raw)
		switch {
		case err == nil:
			entry.GameID = game.ID
			lines = append(lines, fmt.Sprintf("• %s → **%s**", raw, game.Name))
		case errors.Is(err, domain.ErrGameNotFound):
			lines = append(lines, fmt.Sprintf("• %s - not found, kept unresolved", raw))
		default:
			lines = append(lines, fmt.Sprintf("• %s - search failed, kept unresolved", raw))
		}
		entries = append(entries, entry)
	}

	if err := b.dests.ReplaceMonitoredGames(ctx, i.GuildID, entries); err != nil {
		b.logger.Error().Err(err).Str("guild_id", i.GuildID).Msg("failed to replace monitored games")
		editResponse(s, i, "Could not save the new list. The previous list is unchanged.")
		return
	}
	editResponse(s, i, fmt.Sprintf("✅ Monitoring %d game(s):\n%s", len(entries), strings.Join(lines, "\n")))
}

func (b *Bot) handleGamesList(s *discordgo.Session, i *discordgo.InteractionCreate) {
	ctx, cancel := context.WithTimeout(context.Background(), constants.DatabaseTimeout)
	defer cancel()

	monitored, err := b.dests.ListMonitoredGames(ctx, i.GuildID)
	if err != nil {
		b.logger.Error().Err(err).Str("guild_id", i.GuildID).Msg("failed to list monitored games")
		respond(s, i, "Could not load the monitored list. Please try again.")
		return
	}
	if len(monitored) == 0 {
		respond(s, i, "No games are monitored yet. Add one with `/games add`.")
		return
	}

	var sb strings.Builder
	sb.WriteString("**Monitored games:**\n")
	for _, m := range monitored {
		if m.GameID == "" {
			sb.WriteString(fmt.Sprintf("• %s *(unresolved)*\n", m.RawName))
			continue
		}
		display := m.RawName
		if game, err := b.games.Get(ctx, m.GameID); err == nil {
			display = game.Name
		}
		sb.WriteString(fmt.Sprintf("• **%s**\n", display))
	}
	respond(s, i, sb.String())
}

// handleInterval stores the per-server preference. Checks still run on the
// shared global cadence; the value is validated and kept for display and a
// future per-server scheduler.
func (b *Bot) handleInterval(s *discordgo.Session, i *discordgo.InteractionCreate) {
	ctx, cancel := context.WithTimeout(context.Background(), constants.DatabaseTimeout)
	defer cancel()

	seconds := int(i.ApplicationCommandData().Options[0].IntValue())
	err := b.dests.SetPollInterval(ctx, i.GuildID, seconds)
	if errors.Is(err, domain.ErrIntervalTooShort) {
		respond(s, i, fmt.Sprintf("❌ The interval must be at least %d seconds. Your setting is unchanged.", constants.MinPollIntervalSeconds))
		return
	}
	if err != nil {
		b.logger.Error().Err(err).Str("guild_id", i.GuildID).Msg("failed to set interval")
		respond(s, i, "Could not save the interval. Please try again.")
		return
	}
	respond(s, i, fmt.Sprintf("✅ Interval preference saved: %ds. Checks currently run every %s for all servers.", seconds, b.watcher.Interval()))
}

func (b *Bot) handleSetEnabled(s *discordgo.Session, i *discordgo.InteractionCreate, enabled bool) {
	ctx, cancel := context.WithTimeout(context.Background(), constants.DatabaseTimeout)
	defer cancel()

	if err := b.dests.SetEnabled(ctx, i.GuildID, enabled); err != nil {
		b.logger.Error().Err(err).Str("guild_id", i.GuildID).Msg("failed to toggle destination")
		respond(s, i, "Could not update the setting. Please try again.")
		return
	}
	if enabled {
		respond(s, i, "✅ Run notifications are enabled for this server.")
		return
	}
	respond(s, i, "⏸️ Run notifications are paused for this server. Use `/enable` to resume.")
}

func (b *Bot) handleStatus(s *discordgo.Session, i *discordgo.InteractionCreate) {
	ctx, cancel := context.WithTimeout(context.Background(), constants.DatabaseTimeout)
	defer cancel()

	dest, err := b.dests.Get(ctx, i.GuildID)
	if err != nil {
		b.logger.Error().Err(err).Str("guild_id", i.GuildID).Msg("failed to load destination")
		respond(s, i, "Could not load this server's configuration.")
		return
	}
	monitored, err := b.dests.ListMonitoredGames(ctx, i.GuildID)
	if err != nil {
		respond(s, i, "Could not load the monitored list.")
		return
	}
	seenCount, err := b.seen.Count(ctx)
	if err != nil {
		seenCount = -1
	}

	resolved := 0
	for _, m := range monitored {
		if m.GameID != "" {
			resolved++
		}
	}

	channel := "not set"
	if dest.ChannelID != "" {
		channel = fmt.Sprintf("<#%s>", dest.ChannelID)
	}
	ping := "none"
	if dest.PingRoleID != "" {
		ping = fmt.Sprintf("<@&%s>", dest.PingRoleID)
	}
	state := "🟢 enabled"
	if !dest.Enabled {
		state = "🔴 disabled"
	}

	last := b.watcher.LastCycle()
	var sb strings.Builder
	sb.WriteString("**Speedrun Monitor Status**\n")
	sb.WriteString(fmt.Sprintf("🔎 Monitoring: %d game(s), %d resolved\n", len(monitored), resolved))
	sb.WriteString(fmt.Sprintf("📢 Channel: %s\n", channel))
	sb.WriteString(fmt.Sprintf("🔔 Ping role: %s\n", ping))
	sb.WriteString(fmt.Sprintf("⏱️ Check cadence: every %s globally (server preference %ds)\n", b.watcher.Interval(), dest.PollIntervalSeconds))
	sb.WriteString(fmt.Sprintf("⚙️ State: %s\n", state))
	sb.WriteString(fmt.Sprintf("👀 Seen runs: %d\n", seenCount))
	if cycles := b.watcher.Cycles(); cycles > 0 {
		sb.WriteString(fmt.Sprintf("♻️ Cycles: %d, last checked %d game(s), announced %d run(s) in %s\n",
			cycles, last.Games, last.Announced, last.Duration.Round(time.Millisecond)))
	}
	respond(s, i, sb.String())
}

func (b *Bot) handleRecent(s *discordgo.Session, i *discordgo.InteractionCreate) {
	n := 5
	if opts := i.ApplicationCommandData().Options; len(opts) > 0 {
		n = int(opts[0].IntValue())
	}

	ids := b.notifier.Recent(n)
	if len(ids) == 0 {
		respond(s, i, "No runs have been announced yet.")
		return
	}

	var sb strings.Builder
	sb.WriteString("**Last announced runs:**\n")
	for _, id := range ids {
		sb.WriteString(fmt.Sprintf("`%s`\n", id))
	}
	respond(s, i, sb.String())
}

func (b *Bot) handleResetSeen(s *discordgo.Session, i *discordgo.InteractionCreate) {
	ctx, cancel := context.WithTimeout(context.Background(), constants.DatabaseTimeout)
	defer cancel()

	n, err := b.seen.Clear(ctx)
	if err != nil {
		b.logger.Error().Err(err).Msg("failed to reset seen runs")
		respond(s, i, "Could not clear the seen-run history. Please try again.")
		return
	}
	respond(s, i, fmt.Sprintf("✅ Seen-run history cleared (%d entries). Every pending run can announce again.", n))
}

func (b *Bot) handleClearCache(s *discordgo.Session, i *discordgo.InteractionCreate) {
	ctx, cancel := context.WithTimeout(context.Background(), constants.DatabaseTimeout)
	defer cancel()

	n, err := b.directory.ClearSearchCache(ctx)
	if err != nil {
		b.logger.Error().Err(err).Msg("failed to clear search cache")
		respond(s, i, "Could not clear the search cache. Please try again.")
		return
	}
	respond(s, i, fmt.Sprintf("✅ Search cache cleared (%d entries). Game names will resolve fresh.", n))
}

func (b *Bot) handleCheckNow(s *discordgo.Session, i *discordgo.InteractionCreate) {
	respondDeferred(s, i)

	stats, err := b.watcher.RunCycle(context.Background())
	if errors.Is(err, domain.ErrCycleInFlight) {
		editResponse(s, i, "A check is already running; its results will arrive shortly.")
		return
	}
	if err != nil {
		b.logger.Error().Err(err).Msg("manual cycle failed")
		editResponse(s, i, "The check failed. See the logs for details.")
		return
	}
	editResponse(s, i, fmt.Sprintf("✅ Checked %d game(s): %d new run(s) found, %d announced.",
		stats.Games, stats.RunsFound, stats.Announced))
}

func (b *Bot) handleHelp(s *discordgo.Session, i *discordgo.InteractionCreate) {
	embed := &discordgo.MessageEmbed{
		Title:       "📖 Speedrun Monitor Help",
		Description: "Watches speedrun.com for newly submitted runs in your monitored games and announces each one once.",
		Color:       helpColor,
		Fields: []*discordgo.MessageEmbedField{
			{Name: "/setchannel [channel]", Value: "Send notifications to a channel. (Admin)", Inline: false},
			{Name: "/setping [role]", Value: "Ping a role on new runs; omit to stop pinging. (Admin)", Inline: false},
			{Name: "/games add <name>", Value: "Monitor a game, with a pick menu for ambiguous names. (Admin)", Inline: false},
			{Name: "/games remove <name>", Value: "Stop monitoring a game. (Admin)", Inline: false},
			{Name: "/games set <names>", Value: "Replace the whole list, comma separated. (Admin)", Inline: false},
			{Name: "/games list", Value: "Show the monitored games.", Inline: false},
			{Name: "/interval <seconds>", Value: fmt.Sprintf("Set this server's check preference (minimum %ds). (Admin)", constants.MinPollIntervalSeconds), Inline: false},
			{Name: "/enable, /disable", Value: "Resume or pause notifications. (Admin)", Inline: false},
			{Name: "/status", Value: "Show configuration and poll statistics.", Inline: false},
			{Name: "/recent [count]", Value: "Show recently announced run ids.", Inline: false},
			{Name: "/resetseen", Value: "Clear the seen-run history. (Admin)", Inline: false},
			{Name: "/clearcache", Value: "Clear the game search cache. (Admin)", Inline: false},
			{Name: "/checknow", Value: "Run a check immediately. (Admin)", Inline: false},
		},
	}

	_ = s.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{Embeds: []*discordgo.MessageEmbed{embed}},
	})
}
