package discord

import (
	"testing"

	"github.com/bwmarrin/discordgo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aCatWithSchizophrenia/SRCNotifications/internal/constants"
)

func TestCommandDefinitions(t *testing.T) {
	defs := commandDefinitions()

	byName := make(map[string]*discordgo.ApplicationCommand, len(defs))
	for _, d := range defs {
		byName[d.Name] = d
	}

	for _, name := range []string{
		"setchannel", "setping", "games", "interval", "enable", "disable",
		"status", "recent", "resetseen", "clearcache", "checknow", "help",
	} {
		assert.Contains(t, byName, name)
	}
	assert.Len(t, defs, 12)

	games := byName["games"]
	require.NotNil(t, games)
	subs := make([]string, 0, len(games.Options))
	for _, opt := range games.Options {
		assert.Equal(t, discordgo.ApplicationCommandOptionSubCommand, opt.Type)
		subs = append(subs, opt.Name)
	}
	assert.ElementsMatch(t, []string{"add", "remove", "set", "list"}, subs)

	interval := byName["interval"]
	require.NotNil(t, interval)
	require.Len(t, interval.Options, 1)
	require.NotNil(t, interval.Options[0].MinValue)
	assert.Equal(t, float64(constants.MinPollIntervalSeconds), *interval.Options[0].MinValue)

	recent := byName["recent"]
	require.NotNil(t, recent)
	require.Len(t, recent.Options, 1)
	assert.False(t, recent.Options[0].Required)
	assert.Equal(t, float64(constants.RecentRunsKept), recent.Options[0].MaxValue)
}
