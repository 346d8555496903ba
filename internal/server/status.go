package server

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/aCatWithSchizophrenia/SRCNotifications/internal/api"
	"github.com/aCatWithSchizophrenia/SRCNotifications/internal/constants"
	"github.com/aCatWithSchizophrenia/SRCNotifications/internal/repository"
	"github.com/aCatWithSchizophrenia/SRCNotifications/internal/service"
)

// StatusServer answers liveness probes and exposes a JSON snapshot of the
// monitor: registry counts, poll cycle statistics and upstream telemetry.
type StatusServer struct {
	dests     *repository.DestinationRepository
	seen      *repository.SeenRunRepository
	games     *repository.GameRepository
	src       *api.SRCClient
	watcher   *service.WatcherService
	logger    zerolog.Logger
	startedAt time.Time
}

func NewStatusServer(
	dests *repository.DestinationRepository,
	seen *repository.SeenRunRepository,
	games *repository.GameRepository,
	src *api.SRCClient,
	watcher *service.WatcherService,
	logger zerolog.Logger,
) *StatusServer {
	return &StatusServer{
		dests:     dests,
		seen:      seen,
		games:     games,
		src:       src,
		watcher:   watcher,
		logger:    logger,
		startedAt: time.Now(),
	}
}

type statusPayload struct {
	Status         string           `json:"status"`
	UptimeSeconds  int64            `json:"uptime_seconds"`
	Destinations   int              `json:"destinations"`
	MonitoredGames int              `json:"monitored_games"`
	VerifiedGames  int              `json:"verified_games"`
	CachedSearches int              `json:"cached_searches"`
	SeenRuns       int              `json:"seen_runs"`
	PollInterval   string           `json:"poll_interval"`
	Cycles         int64            `json:"cycles"`
	LastCycle      *cycleSummary    `json:"last_cycle,omitempty"`
	Upstream       api.RequestStats `json:"upstream"`
}

type cycleSummary struct {
	CycleID    string    `json:"cycle_id"`
	StartedAt  time.Time `json:"started_at"`
	DurationMS int64     `json:"duration_ms"`
	Games      int       `json:"games"`
	RunsFound  int       `json:"runs_found"`
	Announced  int       `json:"announced"`
	Failures   int       `json:"failures"`
}

// Healthz reports process liveness only; it never touches the database.
func (s *StatusServer) Healthz(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (s *StatusServer) Status(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), constants.DatabaseTimeout)
	defer cancel()

	payload := statusPayload{
		Status:        "ok",
		UptimeSeconds: int64(time.Since(s.startedAt).Seconds()),
		PollInterval:  s.watcher.Interval().String(),
		Cycles:        s.watcher.Cycles(),
		Upstream:      s.src.GetRequestStats(),
	}

	var err error
	if payload.Destinations, err = s.dests.Count(ctx); err != nil {
		s.fail(w, err, "failed to count destinations")
		return
	}
	if payload.MonitoredGames, err = s.dests.CountMonitored(ctx); err != nil {
		s.fail(w, err, "failed to count monitored games")
		return
	}
	if payload.VerifiedGames, err = s.games.Count(ctx); err != nil {
		s.fail(w, err, "failed to count verified games")
		return
	}
	if payload.CachedSearches, err = s.games.CountSearches(ctx); err != nil {
		s.fail(w, err, "failed to count cached searches")
		return
	}
	if payload.SeenRuns, err = s.seen.Count(ctx); err != nil {
		s.fail(w, err, "failed to count seen runs")
		return
	}

	if payload.Cycles > 0 {
		last := s.watcher.LastCycle()
		payload.LastCycle = &cycleSummary{
			CycleID:    last.CycleID,
			StartedAt:  last.StartedAt,
			DurationMS: last.Duration.Milliseconds(),
			Games:      last.Games,
			RunsFound:  last.RunsFound,
			Announced:  last.Announced,
			Failures:   last.Failures,
		}
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.logger.Warn().Err(err).Msg("failed to encode status payload")
	}
}

func (s *StatusServer) fail(w http.ResponseWriter, err error, msg string) {
	s.logger.Error().Err(err).Msg(msg)
	http.Error(w, "status unavailable", http.StatusInternalServerError)
}
