package discord

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/bwmarrin/discordgo"
	"github.com/rs/zerolog"

	"github.com/aCatWithSchizophrenia/SRCNotifications/internal/domain"
)

const (
	alertColor = 0xE74C3C
	helpColor  = 0x3498DB
)

// Sink delivers run alerts to Discord channels. It is the only component
// that knows how a RunAlert renders as a message; everything upstream of it
// is channel-agnostic.
type Sink struct {
	session *discordgo.Session
	logger  zerolog.Logger
}

func NewSink(session *discordgo.Session, logger zerolog.Logger) *Sink {
	return &Sink{
		session: session,
		logger:  logger,
	}
}

// SendRunAlert posts one alert to one channel, pinging the role when set.
// Transport failures come back as the domain delivery errors so the
// notifier can tell a permission problem from a deleted channel.
func (s *Sink) SendRunAlert(ctx context.Context, channelID, pingRoleID string, alert *domain.RunAlert) error {
	if channelID == "" {
		return domain.ErrDeliveryNotFound
	}

	msg := &discordgo.MessageSend{
		Embed: buildRunEmbed(alert),
	}
	if pingRoleID != "" {
		msg.Content = fmt.Sprintf("<@&%s>", pingRoleID)
		msg.AllowedMentions = &discordgo.MessageAllowedMentions{
			Roles: []string{pingRoleID},
		}
	}

	if _, err := s.session.ChannelMessageSendComplex(channelID, msg, discordgo.WithContext(ctx)); err != nil {
		return mapDeliveryError(err)
	}

	s.logger.Debug().
		Str("run_id", alert.RunID).
		Str("channel_id", channelID).
		Msg("run alert delivered")
	return nil
}

func buildRunEmbed(alert *domain.RunAlert) *discordgo.MessageEmbed {
	embed := &discordgo.MessageEmbed{
		Title:       fmt.Sprintf("🚨 New %s Speedrun Needs Verification!", alert.GameName),
		URL:         alert.Weblink,
		Description: fmt.Sprintf("A new run for **%s** was submitted and is awaiting verification.", alert.GameName),
		Color:       alertColor,
		Fields: []*discordgo.MessageEmbedField{
			{Name: "🏃 Runner", Value: alert.Runner, Inline: true},
			{Name: "📂 Category", Value: alert.Category, Inline: false},
			{Name: "⏱️ Time", Value: alert.Time, Inline: true},
			{Name: "💻 Platform", Value: alert.Platform, Inline: true},
			{Name: "📅 Submitted", Value: alert.Submitted, Inline: true},
			{Name: "🔗 Link", Value: fmt.Sprintf("[View Run](%s)", alert.Weblink), Inline: false},
		},
	}

	if alert.VideoURL != "" {
		embed.Fields = append(embed.Fields, &discordgo.MessageEmbedField{
			Name:   "▶️ Video",
			Value:  fmt.Sprintf("[Watch Here](%s)", alert.VideoURL),
			Inline: false,
		})
	}
	if alert.ThumbnailURL != "" {
		embed.Thumbnail = &discordgo.MessageEmbedThumbnail{URL: alert.ThumbnailURL}
	}

	return embed
}

// mapDeliveryError translates discordgo REST failures into the domain
// delivery errors. Unknown failures pass through untouched.
func mapDeliveryError(err error) error {
	var rest *discordgo.RESTError
	if !errors.As(err, &rest) {
		return err
	}

	if rest.Message != nil {
		switch rest.Message.Code {
		case discordgo.ErrCodeMissingAccess, discordgo.ErrCodeMissingPermissions:
			return fmt.Errorf("%w: %s", domain.ErrDeliveryForbidden, rest.Message.Message)
		case discordgo.ErrCodeUnknownChannel:
			return fmt.Errorf("%w: %s", domain.ErrDeliveryNotFound, rest.Message.Message)
		}
	}
	if rest.Response != nil {
		switch rest.Response.StatusCode {
		case http.StatusForbidden:
			return fmt.Errorf("%w: status %d", domain.ErrDeliveryForbidden, rest.Response.StatusCode)
		case http.StatusNotFound:
			return fmt.Errorf("%w: status %d", domain.ErrDeliveryNotFound, rest.Response.StatusCode)
		}
	}
	return err
}
