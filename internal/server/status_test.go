package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aCatWithSchizophrenia/SRCNotifications/internal/api"
	"github.com/aCatWithSchizophrenia/SRCNotifications/internal/config"
	"github.com/aCatWithSchizophrenia/SRCNotifications/internal/database"
	"github.com/aCatWithSchizophrenia/SRCNotifications/internal/domain"
	"github.com/aCatWithSchizophrenia/SRCNotifications/internal/repository"
	"github.com/aCatWithSchizophrenia/SRCNotifications/internal/service"
)

type noTargets struct{}

func (noTargets) ListActiveGameTargets(context.Context) ([]domain.GameTarget, error) {
	return nil, nil
}

func newTestStatusServer(t *testing.T) (*StatusServer, *service.WatcherService) {
	t.Helper()
	ctx := context.Background()

	db, err := database.New(&config.Config{DBPath: filepath.Join(t.TempDir(), "monitor.db")}, zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	dests := repository.NewDestinationRepository(db, zerolog.Nop())
	seen := repository.NewSeenRunRepository(db, zerolog.Nop())
	games := repository.NewGameRepository(db, zerolog.Nop())

	_, err = dests.CreateIfAbsent(ctx, "guild-1", "Speedrun Hub")
	require.NoError(t, err)
	require.NoError(t, dests.SetChannel(ctx, "guild-1", "chan-1"))
	_, err = dests.AddMonitoredGame(ctx, "guild-1", "Celeste", "celeste", "g1")
	require.NoError(t, err)
	_, err = dests.AddMonitoredGame(ctx, "guild-1", "Hollow Knight", "hollow knight", "")
	require.NoError(t, err)

	require.NoError(t, games.Upsert(ctx, &domain.Game{ID: "g1", Name: "Celeste"}))
	require.NoError(t, games.PutSearch(ctx, &domain.CachedSearch{
		Term:       "celeste",
		Candidates: []domain.GameCandidate{},
		SearchedAt: time.Now().UTC(),
	}))

	for _, id := range []string{"r1", "r2", "r3"} {
		require.NoError(t, seen.MarkSeen(ctx, id, "g1"))
	}

	src := api.NewSRCClient(&config.Config{SRCAPIBaseURL: "http://127.0.0.1:1"})
	watcher := service.NewWatcherService(&config.Config{PollIntervalSeconds: 60}, nil, noTargets{}, nil, nil, zerolog.Nop())

	return NewStatusServer(dests, seen, games, src, watcher, zerolog.Nop()), watcher
}

func TestHealthz(t *testing.T) {
	srv, _ := newTestStatusServer(t)

	rec := httptest.NewRecorder()
	srv.Healthz(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", rec.Body.String())
}

func TestStatusSnapshot(t *testing.T) {
	srv, watcher := newTestStatusServer(t)

	fetch := func() statusPayload {
		rec := httptest.NewRecorder()
		srv.Status(rec, httptest.NewRequest(http.MethodGet, "/api/status", nil))
		require.Equal(t, http.StatusOK, rec.Code)
		require.Equal(t, "application/json", rec.Header().Get("Content-Type"))

		var payload statusPayload
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &payload))
		return payload
	}

	payload := fetch()
	assert.Equal(t, "ok", payload.Status)
	assert.Equal(t, 1, payload.Destinations)
	assert.Equal(t, 2, payload.MonitoredGames)
	assert.Equal(t, 1, payload.VerifiedGames)
	assert.Equal(t, 1, payload.CachedSearches)
	assert.Equal(t, 3, payload.SeenRuns)
	assert.Equal(t, "1m0s", payload.PollInterval)
	assert.Zero(t, payload.Cycles)
	assert.Nil(t, payload.LastCycle, "no cycle summary before the first cycle")
	assert.Zero(t, payload.Upstream.Requests)

	_, err := watcher.RunCycle(context.Background())
	require.NoError(t, err)

	payload = fetch()
	assert.Equal(t, int64(1), payload.Cycles)
	require.NotNil(t, payload.LastCycle)
	assert.NotEmpty(t, payload.LastCycle.CycleID)
	assert.Zero(t, payload.LastCycle.Games)
}
