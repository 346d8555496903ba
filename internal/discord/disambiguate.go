package discord

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/bwmarrin/discordgo"
	gonanoid "github.com/matoous/go-nanoid/v2"

	"github.com/aCatWithSchizophrenia/SRCNotifications/internal/constants"
	"github.com/aCatWithSchizophrenia/SRCNotifications/internal/domain"
)

const pickCustomIDPrefix = "gamepick:"

var (
	errPickExpired  = errors.New("pick session expired")
	errPickNotYours = errors.New("pick session belongs to another user")
)

// pickSession is one pending "which game did you mean" question.
type pickSession struct {
	id          string
	guildID     string
	userID      string
	entryID     string
	rawName     string
	interaction *discordgo.Interaction
	timer       *time.Timer
}

// pickRegistry tracks pending disambiguation menus and expires the ones
// nobody answers. Expiry leaves the monitored entry unresolved.
type pickRegistry struct {
	mu       sync.Mutex
	ttl      time.Duration
	onExpire func(*pickSession)
	sessions map[string]*pickSession
	closed   bool
}

func newPickRegistry(ttl time.Duration, onExpire func(*pickSession)) *pickRegistry {
	return &pickRegistry{
		ttl:      ttl,
		onExpire: onExpire,
		sessions: make(map[string]*pickSession),
	}
}

func (r *pickRegistry) Put(sess *pickSession) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return
	}
	r.sessions[sess.id] = sess
	sess.timer = time.AfterFunc(r.ttl, func() { r.expire(sess.id) })
}

func (r *pickRegistry) expire(id string) {
	r.mu.Lock()
	sess, ok := r.sessions[id]
	if ok {
		delete(r.sessions, id)
	}
	r.mu.Unlock()

	if ok && r.onExpire != nil {
		r.onExpire(sess)
	}
}

// Claim removes the session and hands it to the caller. Only the user who
// started the pick may claim it.
func (r *pickRegistry) Claim(id, userID string) (*pickSession, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	sess, ok := r.sessions[id]
	if !ok {
		return nil, errPickExpired
	}
	if sess.userID != userID {
		return nil, errPickNotYours
	}
	sess.timer.Stop()
	delete(r.sessions, id)
	return sess, nil
}

// Close drops every pending session without firing expiry callbacks.
func (r *pickRegistry) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.closed = true
	for id, sess := range r.sessions {
		sess.timer.Stop()
		delete(r.sessions, id)
	}
}

// offerPick edits the deferred reply into a select menu of candidates and
// parks a session waiting for the caller's choice.
func (b *Bot) offerPick(s *discordgo.Session, i *discordgo.InteractionCreate, entryID, rawName string, candidates []domain.GameCandidate) {
	if len(candidates) > constants.DisambiguationCandidates {
		candidates = candidates[:constants.DisambiguationCandidates]
	}

	id, err := gonanoid.New()
	if err != nil {
		editResponse(s, i, "Could not start the game picker. Please try again.")
		return
	}

	options := make([]discordgo.SelectMenuOption, 0, len(candidates))
	for _, c := range candidates {
		options = append(options, discordgo.SelectMenuOption{
			Label:       truncate(c.Game.Name, 100),
			Value:       c.Game.ID,
			Description: candidateDescription(c.Game),
		})
	}

	content := fmt.Sprintf("Several games match **%s**. Pick one within %s:", rawName, constants.DisambiguationTimeout)
	components := []discordgo.MessageComponent{
		discordgo.ActionsRow{
			Components: []discordgo.MessageComponent{
				discordgo.SelectMenu{
					MenuType:    discordgo.StringSelectMenu,
					CustomID:    pickCustomIDPrefix + id,
					Placeholder: "Choose the game to monitor",
					Options:     options,
				},
			},
		},
	}

	if _, err := s.InteractionResponseEdit(i.Interaction, &discordgo.WebhookEdit{
		Content:    &content,
		Components: &components,
	}); err != nil {
		b.logger.Error().Err(err).Str("guild_id", i.GuildID).Msg("failed to present game picker")
		return
	}

	b.picks.Put(&pickSession{
		id:          id,
		guildID:     i.GuildID,
		userID:      interactionUserID(i),
		entryID:     entryID,
		rawName:     rawName,
		interaction: i.Interaction,
	})
}

// dispatchComponent resolves a pick menu choice into a bound game.
func (b *Bot) dispatchComponent(s *discordgo.Session, i *discordgo.InteractionCreate) {
	data := i.MessageComponentData()
	if !strings.HasPrefix(data.CustomID, pickCustomIDPrefix) || len(data.Values) == 0 {
		return
	}

	sess, err := b.picks.Claim(strings.TrimPrefix(data.CustomID, pickCustomIDPrefix), interactionUserID(i))
	if errors.Is(err, errPickNotYours) {
		respondEphemeral(s, i, "This menu belongs to whoever ran the command.")
		return
	}
	if err != nil {
		respondEphemeral(s, i, "This menu has expired. Run `/games add` again.")
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), constants.InteractionTimeout)
	defer cancel()

	game, err := b.directory.BindMonitored(ctx, sess.entryID, data.Values[0])
	if err != nil {
		b.logger.Error().Err(err).Str("game_id", data.Values[0]).Msg("failed to bind picked game")
		updateMessage(s, i, fmt.Sprintf("Could not verify the chosen game. **%s** stays unresolved; run `/games add %s` again.", sess.rawName, sess.rawName))
		return
	}

	b.logger.Info().
		Str("guild_id", sess.guildID).
		Str("game_id", game.ID).
		Str("game", game.Name).
		Msg("ambiguous game resolved by pick")
	updateMessage(s, i, fmt.Sprintf("✅ Now monitoring **%s** for new runs.", game.Name))
}

// expirePick answers an abandoned menu. The monitored entry stays
// unresolved so the operator can try again later.
func (b *Bot) expirePick(sess *pickSession) {
	b.logger.Debug().Str("guild_id", sess.guildID).Str("name", sess.rawName).Msg("game pick timed out")

	content := fmt.Sprintf("⌛ No pick for **%s** within %s. It stays unresolved; run `/games add %s` to try again.",
		sess.rawName, constants.DisambiguationTimeout, sess.rawName)
	empty := []discordgo.MessageComponent{}
	_, _ = b.session.InteractionResponseEdit(sess.interaction, &discordgo.WebhookEdit{
		Content:    &content,
		Components: &empty,
	})
}

// updateMessage replaces the menu message in place and drops its components.
func updateMessage(s *discordgo.Session, i *discordgo.InteractionCreate, content string) {
	_ = s.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseUpdateMessage,
		Data: &discordgo.InteractionResponseData{
			Content:    content,
			Components: []discordgo.MessageComponent{},
		},
	})
}

func interactionUserID(i *discordgo.InteractionCreate) string {
	if i.Member != nil && i.Member.User != nil {
		return i.Member.User.ID
	}
	if i.User != nil {
		return i.User.ID
	}
	return ""
}

func candidateDescription(g domain.Game) string {
	parts := make([]string, 0, 2)
	if g.ReleaseYear > 0 {
		parts = append(parts, fmt.Sprintf("released %d", g.ReleaseYear))
	}
	if g.Abbreviation != "" {
		parts = append(parts, g.Abbreviation)
	}
	return strings.Join(parts, ", ")
}

func truncate(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max-1]) + "…"
}
