package service

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/aCatWithSchizophrenia/SRCNotifications/internal/api"
	"github.com/aCatWithSchizophrenia/SRCNotifications/internal/config"
	"github.com/aCatWithSchizophrenia/SRCNotifications/internal/constants"
	"github.com/aCatWithSchizophrenia/SRCNotifications/internal/domain"
)

// RunSource pages through a game's pending-verification queue.
type RunSource interface {
	ListNewRuns(ctx context.Context, gameID string, offset, max int) (*api.RunsResponse, error)
}

// TargetSource computes the set of games to poll this cycle.
type TargetSource interface {
	ListActiveGameTargets(ctx context.Context) ([]domain.GameTarget, error)
}

// Announcer hands one new run to the notification pipeline.
type Announcer interface {
	Notify(ctx context.Context, run api.RunResource, gameID, gameName string) (bool, error)
}

// WatcherService is the poll cycle engine: a fixed global ticker that, per
// cycle, unions the monitored game ids across destinations, pages each
// game's pending queue, subtracts the seen registry and announces the rest.
type WatcherService struct {
	src      RunSource
	targets  TargetSource
	seen     SeenStore
	notifier Announcer
	logger   zerolog.Logger
	interval time.Duration

	// held for the whole cycle; TryLock keeps cycles single-flight
	cycleMu sync.Mutex

	statsMu   sync.RWMutex
	lastCycle domain.CycleStats
	cycles    int64

	stopCh chan struct{}
	wg     sync.WaitGroup
}

func NewWatcherService(cfg *config.Config, src RunSource, targets TargetSource, seen SeenStore, notifier Announcer, logger zerolog.Logger) *WatcherService {
	return &WatcherService{
		src:      src,
		targets:  targets,
		seen:     seen,
		notifier: notifier,
		logger:   logger,
		interval: time.Duration(cfg.PollIntervalSeconds) * time.Second,
		stopCh:   make(chan struct{}),
	}
}

// Start launches the ticker loop with an immediate first cycle.
func (s *WatcherService) Start() {
	s.wg.Add(1)
	go s.loop()
	s.logger.Info().Dur("interval", s.interval).Msg("run watcher started")
}

func (s *WatcherService) Stop() {
	close(s.stopCh)
	s.wg.Wait()
	s.logger.Info().Msg("run watcher stopped")
}

func (s *WatcherService) loop() {
	defer s.wg.Done()

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.runScheduled()
	for {
		select {
		case <-s.stopCh:
			return
		case <-ticker.C:
			s.runScheduled()
		}
	}
}

func (s *WatcherService) runScheduled() {
	if _, err := s.RunCycle(context.Background()); err != nil {
		if errors.Is(err, domain.ErrCycleInFlight) {
			s.logger.Warn().Msg("previous cycle still running, tick skipped")
			return
		}
		s.logger.Error().Err(err).Msg("poll cycle failed")
	}
}

// RunCycle executes one poll cycle. A caller arriving while a cycle is in
// flight gets ErrCycleInFlight; two cycles never run concurrently against
// the same seen registry.
func (s *WatcherService) RunCycle(ctx context.Context) (*domain.CycleStats, error) {
	if !s.cycleMu.TryLock() {
		return nil, domain.ErrCycleInFlight
	}
	defer s.cycleMu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, constants.CycleTimeout)
	defer cancel()

	stats := domain.CycleStats{
		CycleID:   uuid.New().String(),
		StartedAt: time.Now(),
	}
	logger := s.logger.With().Str("cycle_id", stats.CycleID).Logger()

	targets, err := s.targets.ListActiveGameTargets(ctx)
	if err != nil {
		logger.Error().Err(err).Msg("failed to list poll targets")
		return nil, err
	}
	stats.Games = len(targets)

	if len(targets) == 0 {
		logger.Debug().Msg("no poll targets, cycle is a no-op")
		stats.Duration = time.Since(stats.StartedAt)
		s.recordCycle(stats)
		return &stats, nil
	}

	logger.Debug().Int("games", len(targets)).Msg("poll cycle started")

	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(constants.GameFetchConcurrency)

	for _, target := range targets {
		target := target
		g.Go(func() error {
			found, announced, failures := s.pollGame(gctx, logger, target)
			mu.Lock()
			stats.RunsFound += found
			stats.Announced += announced
			stats.Failures += failures
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		logger.Error().Err(err).Msg("poll group failed")
	}

	stats.Duration = time.Since(stats.StartedAt)
	s.recordCycle(stats)

	logger.Info().
		Int("games", stats.Games).
		Int("runs_found", stats.RunsFound).
		Int("announced", stats.Announced).
		Int("failures", stats.Failures).
		Dur("duration", stats.Duration).
		Msg("poll cycle completed")
	return &stats, nil
}

// pollGame pages one game's pending queue newest-first and announces every
// unseen run. Paging stops at a page containing an already-seen run (deeper
// pages are strictly older), a short page, or the page cap. All failures
// are isolated to this game and cycle.
func (s *WatcherService) pollGame(ctx context.Context, logger zerolog.Logger, target domain.GameTarget) (found, announced, failures int) {
	var runs []api.RunResource
	unseenSet := make(map[string]struct{})

	offset := 0
	for page := 0; page < constants.MaxRunPages; page++ {
		apiCtx, cancel := context.WithTimeout(ctx, constants.ExternalAPITimeout)
		resp, err := s.src.ListNewRuns(apiCtx, target.GameID, offset, constants.RunPageSize)
		cancel()
		if err != nil {
			logger.Warn().Err(err).
				Str("game_id", target.GameID).
				Str("game", target.Name).
				Msg("failed to list new runs, game skipped this cycle")
			failures++
			break
		}
		if len(resp.Data) == 0 {
			break
		}

		ids := make([]string, len(resp.Data))
		for i, r := range resp.Data {
			ids[i] = r.ID
		}
		unseen, err := s.seen.FilterUnseen(ctx, ids)
		if err != nil {
			logger.Error().Err(err).Str("game_id", target.GameID).Msg("failed to filter seen runs")
			failures++
			break
		}
		for _, id := range unseen {
			unseenSet[id] = struct{}{}
		}
		runs = append(runs, resp.Data...)

		if len(unseen) < len(resp.Data) {
			break
		}
		if len(resp.Data) < constants.RunPageSize {
			break
		}
		offset += len(resp.Data)
	}

	for _, run := range runs {
		if _, ok := unseenSet[run.ID]; !ok {
			continue
		}
		found++

		ok, err := s.notifier.Notify(ctx, run, target.GameID, target.Name)
		if err != nil {
			logger.Error().Err(err).
				Str("run_id", run.ID).
				Str("game_id", target.GameID).
				Msg("failed to notify run")
			failures++
			continue
		}
		if ok {
			announced++
		}
	}
	return found, announced, failures
}

func (s *WatcherService) recordCycle(stats domain.CycleStats) {
	s.statsMu.Lock()
	defer s.statsMu.Unlock()
	s.lastCycle = stats
	s.cycles++
}

// LastCycle returns the most recently completed cycle's stats.
func (s *WatcherService) LastCycle() domain.CycleStats {
	s.statsMu.RLock()
	defer s.statsMu.RUnlock()
	return s.lastCycle
}

// Cycles returns how many cycles have completed since startup.
func (s *WatcherService) Cycles() int64 {
	s.statsMu.RLock()
	defer s.statsMu.RUnlock()
	return s.cycles
}

// Interval returns the global cycle period.
func (s *WatcherService) Interval() time.Duration {
	return s.interval
}
