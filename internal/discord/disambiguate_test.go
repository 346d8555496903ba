package discord

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aCatWithSchizophrenia/SRCNotifications/internal/domain"
)

func TestPickRegistryClaim(t *testing.T) {
	registry := newPickRegistry(time.Minute, nil)
	registry.Put(&pickSession{id: "s1", userID: "u1", entryID: "entry-1"})

	// another user cannot steal the menu, and the session survives the attempt
	_, err := registry.Claim("s1", "u2")
	assert.ErrorIs(t, err, errPickNotYours)

	sess, err := registry.Claim("s1", "u1")
	require.NoError(t, err)
	assert.Equal(t, "entry-1", sess.entryID)

	// a claim is one-shot
	_, err = registry.Claim("s1", "u1")
	assert.ErrorIs(t, err, errPickExpired)

	_, err = registry.Claim("never-existed", "u1")
	assert.ErrorIs(t, err, errPickExpired)
}

func TestPickRegistryExpiry(t *testing.T) {
	expired := make(chan *pickSession, 1)
	registry := newPickRegistry(20*time.Millisecond, func(s *pickSession) { expired <- s })
	registry.Put(&pickSession{id: "s1", userID: "u1", rawName: "celeste"})

	select {
	case sess := <-expired:
		assert.Equal(t, "celeste", sess.rawName)
	case <-time.After(2 * time.Second):
		t.Fatal("expiry callback never fired")
	}

	_, err := registry.Claim("s1", "u1")
	assert.ErrorIs(t, err, errPickExpired)
}

func TestPickRegistryClaimStopsExpiry(t *testing.T) {
	expired := make(chan *pickSession, 1)
	registry := newPickRegistry(30*time.Millisecond, func(s *pickSession) { expired <- s })
	registry.Put(&pickSession{id: "s1", userID: "u1"})

	_, err := registry.Claim("s1", "u1")
	require.NoError(t, err)

	select {
	case <-expired:
		t.Fatal("expiry fired for a claimed session")
	case <-time.After(150 * time.Millisecond):
	}
}

func TestPickRegistryClose(t *testing.T) {
	expired := make(chan *pickSession, 1)
	registry := newPickRegistry(20*time.Millisecond, func(s *pickSession) { expired <- s })
	registry.Put(&pickSession{id: "s1", userID: "u1"})

	registry.Close()

	select {
	case <-expired:
		t.Fatal("expiry fired after close")
	case <-time.After(150 * time.Millisecond):
	}

	// a closed registry silently drops new sessions
	registry.Put(&pickSession{id: "s2", userID: "u1"})
	_, err := registry.Claim("s2", "u1")
	assert.ErrorIs(t, err, errPickExpired)
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "short", truncate("short", 10))
	assert.Equal(t, "exactly10!", truncate("exactly10!", 10))

	long := truncate(strings.Repeat("a", 30), 10)
	assert.Equal(t, 10, len([]rune(long)))
	assert.True(t, strings.HasSuffix(long, "…"))

	wide := truncate(strings.Repeat("セ", 30), 10)
	assert.Equal(t, 10, len([]rune(wide)))
}

func TestCandidateDescription(t *testing.T) {
	tests := []struct {
		name string
		game domain.Game
		want string
	}{
		{"year and abbreviation", domain.Game{ReleaseYear: 2018, Abbreviation: "celeste"}, "released 2018, celeste"},
		{"year only", domain.Game{ReleaseYear: 2018}, "released 2018"},
		{"abbreviation only", domain.Game{Abbreviation: "celeste"}, "celeste"},
		{"neither", domain.Game{}, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, candidateDescription(tt.game))
		})
	}
}

func TestUnambiguousCandidate(t *testing.T) {
	exact := domain.GameCandidate{Game: domain.Game{ID: "exact"}, Exact: true, Substring: true}
	sub := domain.GameCandidate{Game: domain.Game{ID: "sub"}, Substring: true}
	other := domain.GameCandidate{Game: domain.Game{ID: "other"}}

	t.Run("exact match wins", func(t *testing.T) {
		pick := unambiguousCandidate([]domain.GameCandidate{sub, exact, other})
		require.NotNil(t, pick)
		assert.Equal(t, "exact", pick.Game.ID)
	})

	t.Run("single result needs no pick", func(t *testing.T) {
		pick := unambiguousCandidate([]domain.GameCandidate{sub})
		require.NotNil(t, pick)
		assert.Equal(t, "sub", pick.Game.ID)
	})

	t.Run("several inexact results are ambiguous", func(t *testing.T) {
		assert.Nil(t, unambiguousCandidate([]domain.GameCandidate{sub, other}))
	})

	t.Run("empty list", func(t *testing.T) {
		assert.Nil(t, unambiguousCandidate(nil))
	})
}
