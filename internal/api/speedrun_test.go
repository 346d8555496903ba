package api

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aCatWithSchizophrenia/SRCNotifications/internal/config"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *SRCClient {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewSRCClient(&config.Config{SRCAPIBaseURL: srv.URL})
}

func TestSearchGames(t *testing.T) {
	var gotPath string
	var gotQuery url.Values
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotQuery = r.URL.Query()
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"data": [
				{
					"id": "o1y9wo6q",
					"names": {"international": "Super Mario 64"},
					"abbreviation": "sm64",
					"weblink": "https://www.speedrun.com/sm64",
					"released": 1996,
					"players": {"value": 105}
				},
				{
					"id": "v1pxjz68",
					"names": {"international": "Super Mario 64 DS"},
					"abbreviation": "sm64ds",
					"released": 2004,
					"players": 2
				}
			],
			"pagination": {"offset": 0, "max": 10, "size": 2}
		}`))
	})

	resp, err := client.SearchGames(context.Background(), "super mario 64", 10)
	require.NoError(t, err)

	assert.Equal(t, "/games", gotPath)
	assert.Equal(t, "super mario 64", gotQuery.Get("name"))
	assert.Equal(t, "10", gotQuery.Get("max"))

	require.Len(t, resp.Data, 2)
	assert.Equal(t, "o1y9wo6q", resp.Data[0].ID)
	assert.Equal(t, "Super Mario 64", resp.Data[0].Names.International)
	assert.Equal(t, 1996, resp.Data[0].Released)
	assert.Equal(t, 105, resp.Data[0].Players.Count, "object player bound")
	assert.Equal(t, 2, resp.Data[1].Players.Count, "bare player bound")
	assert.Equal(t, 2, resp.Pagination.Size)
}

func TestListNewRuns(t *testing.T) {
	var gotQuery url.Values
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.Query()
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"data": [
				{
					"id": "r1",
					"weblink": "https://www.speedrun.com/sm64/runs/r1",
					"game": "o1y9wo6q",
					"category": "c1",
					"level": "l1",
					"platform": "p1",
					"status": {"status": "new"},
					"players": [{"rel": "guest", "name": "anon"}],
					"submitted": "2024-03-01T15:04:05Z",
					"times": {"primary": "PT1M23S", "primary_t": 83.456}
				}
			],
			"pagination": {"offset": 40, "max": 20, "size": 1}
		}`))
	})

	resp, err := client.ListNewRuns(context.Background(), "o1y9wo6q", 40, 20)
	require.NoError(t, err)

	assert.Equal(t, "o1y9wo6q", gotQuery.Get("game"))
	assert.Equal(t, "new", gotQuery.Get("status"))
	assert.Equal(t, "submitted", gotQuery.Get("orderby"))
	assert.Equal(t, "desc", gotQuery.Get("direction"))
	assert.Equal(t, "20", gotQuery.Get("max"))
	assert.Equal(t, "40", gotQuery.Get("offset"))

	require.Len(t, resp.Data, 1)
	run := resp.Data[0]
	assert.Equal(t, "r1", run.ID)
	// without ?embed the related resources come back as bare ids
	assert.Equal(t, "c1", run.Category.ID)
	assert.Nil(t, run.Category.Data)
	assert.Equal(t, "l1", run.Level.ID)
	assert.Equal(t, "p1", run.Platform.ID)
	assert.InDelta(t, 83.456, run.Times.PrimaryT, 0.0001)
}

func TestGetRunParsesEmbeds(t *testing.T) {
	var gotPath string
	var gotQuery url.Values
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotQuery = r.URL.Query()
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"data": {
				"id": "abc123",
				"weblink": "https://www.speedrun.com/celeste/runs/abc123",
				"game": "j1neogy1",
				"category": {"data": {"id": "c1", "name": "Any%"}},
				"level": {"data": []},
				"platform": {"data": {"id": "p1", "name": "PC"}},
				"variables": {"data": [{"id": "v1", "name": "Version", "values": {"values": {"val1": {"label": "1.2.6"}}}}]},
				"videos": {"links": [{"uri": "https://youtu.be/x"}]},
				"status": {"status": "new"},
				"players": [{"rel": "user", "id": "u1"}],
				"submitted": "2024-03-01T15:04:05Z",
				"times": {"primary": "PT1M23S", "primary_t": 83.456},
				"system": {"platform": "p1", "emulated": false},
				"values": {"v1": "val1"}
			}
		}`))
	})

	resp, err := client.GetRun(context.Background(), "abc123")
	require.NoError(t, err)

	assert.Equal(t, "/runs/abc123", gotPath)
	assert.Equal(t, "category,level,variables,platform", gotQuery.Get("embed"))

	run := resp.Data
	require.NotNil(t, run.Category.Data)
	assert.Equal(t, "Any%", run.Category.Data.Name)
	assert.Nil(t, run.Level.Data, "empty level embed decodes to nil")
	require.NotNil(t, run.Platform.Data)
	assert.Equal(t, "PC", run.Platform.Data.Name)
	require.Len(t, run.Variables.Data, 1)
	assert.Equal(t, "1.2.6", run.Variables.Data[0].Values.Values["val1"].Label)
	assert.Equal(t, "val1", run.Values["v1"])
	require.NotNil(t, run.Videos)
	assert.Equal(t, "https://youtu.be/x", run.Videos.Links[0].URI)
}

func TestGetUser(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/users/u1", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"data": {
				"id": "u1",
				"names": {"international": "TGH"},
				"weblink": "https://www.speedrun.com/user/TGH",
				"assets": {"image": {"uri": "https://img/u1.png"}}
			}
		}`))
	})

	resp, err := client.GetUser(context.Background(), "u1")
	require.NoError(t, err)
	assert.Equal(t, "TGH", resp.Data.Names.International)
	assert.Equal(t, "https://img/u1.png", resp.Data.Assets.Image.URI)
}

func TestErrorClassification(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/games/missing":
			w.WriteHeader(http.StatusNotFound)
		case "/games/busy":
			w.WriteHeader(statusThrottled)
		default:
			w.WriteHeader(http.StatusInternalServerError)
		}
	})

	_, err := client.GetGame(context.Background(), "missing")
	require.Error(t, err)
	assert.True(t, IsNotFound(err))
	assert.False(t, IsThrottled(err))

	_, err = client.GetGame(context.Background(), "busy")
	require.Error(t, err)
	assert.True(t, IsThrottled(err))
	assert.False(t, IsNotFound(err))
	assert.EqualError(t, err, "API error: 420")

	_, err = client.GetGame(context.Background(), "broken")
	require.Error(t, err)
	assert.False(t, IsNotFound(err))
	assert.False(t, IsThrottled(err))
}

func TestIsNotFoundRejectsOtherErrors(t *testing.T) {
	assert.False(t, IsNotFound(nil))
	assert.False(t, IsNotFound(context.Canceled))
	assert.False(t, IsThrottled(context.Canceled))
}

func TestRequestStats(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/games/ok":
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"data": {"id": "ok", "names": {"international": "OK Game"}}}`))
		case "/games/missing":
			w.WriteHeader(http.StatusNotFound)
		default:
			w.WriteHeader(statusThrottled)
		}
	})
	ctx := context.Background()

	_, err := client.GetGame(ctx, "ok")
	require.NoError(t, err)
	_, _ = client.GetGame(ctx, "missing")
	_, _ = client.GetGame(ctx, "busy")

	stats := client.GetRequestStats()
	assert.Equal(t, int64(3), stats.Requests)
	assert.Equal(t, int64(2), stats.Errors)
	assert.Equal(t, int64(1), stats.Throttled)
	assert.Equal(t, statusThrottled, stats.LastStatus)
	assert.False(t, stats.LastRequest.IsZero())
}
