package service

import (
	"context"
	"errors"
	"sync"

	"github.com/rs/zerolog"

	"github.com/aCatWithSchizophrenia/SRCNotifications/internal/api"
	"github.com/aCatWithSchizophrenia/SRCNotifications/internal/constants"
	"github.com/aCatWithSchizophrenia/SRCNotifications/internal/domain"
)

// Sink delivers a finished alert to one channel. Implementations map their
// transport errors onto domain.ErrDeliveryForbidden / ErrDeliveryNotFound.
type Sink interface {
	SendRunAlert(ctx context.Context, channelID, pingRoleID string, alert *domain.RunAlert) error
}

// SubscriberStore lists the destinations a run must fan out to.
type SubscriberStore interface {
	ListSubscribed(ctx context.Context, gameID string) ([]domain.Destination, error)
}

// SeenStore is the durable dedup registry shared by the notifier and the
// poll cycle engine.
type SeenStore interface {
	IsSeen(ctx context.Context, runID string) (bool, error)
	MarkSeen(ctx context.Context, runID, gameID string) error
	FilterUnseen(ctx context.Context, runIDs []string) ([]string, error)
}

// RunDetailSource is the upstream slice needed to turn a run summary into a
// fully resolved alert.
type RunDetailSource interface {
	GetRun(ctx context.Context, runID string) (*api.RunResponse, error)
	GetUser(ctx context.Context, userID string) (*api.UserResponse, error)
	GetPlatform(ctx context.Context, platformID string) (*api.PlatformResponse, error)
	GetCategory(ctx context.Context, categoryID string) (*api.CategoryResponse, error)
	GetLevel(ctx context.Context, levelID string) (*api.LevelResponse, error)
	ListCategoryVariables(ctx context.Context, categoryID string) (*api.VariablesResponse, error)
}

// NotifierService fans a new run out to every subscribed destination and
// owns the seen-marking policy: a run becomes seen only after at least one
// delivery succeeded, so fully failed runs retry next cycle.
type NotifierService struct {
	src    RunDetailSource
	seen   SeenStore
	subs   SubscriberStore
	sink   Sink
	logger zerolog.Logger

	recentMu sync.Mutex
	recent   []string
}

func NewNotifierService(src RunDetailSource, seen SeenStore, subs SubscriberStore, sink Sink, logger zerolog.Logger) *NotifierService {
	return &NotifierService{
		src:    src,
		seen:   seen,
		subs:   subs,
		sink:   sink,
		logger: logger,
	}
}

// Notify announces one run. It reports whether the run was announced and
// marked seen; benign skips (already seen, nobody subscribed) return
// (false, nil).
func (s *NotifierService) Notify(ctx context.Context, run api.RunResource, gameID, gameName string) (bool, error) {
	if run.ID == "" {
		return false, nil
	}

	// race guard: the same run can surface from two overlapping searches
	seen, err := s.seen.IsSeen(ctx, run.ID)
	if err != nil {
		return false, err
	}
	if seen {
		s.logger.Debug().Str("run_id", run.ID).Msg("run already seen, skipping")
		return false, nil
	}

	dests, err := s.subs.ListSubscribed(ctx, gameID)
	if err != nil {
		return false, err
	}
	if len(dests) == 0 {
		// left unseen so it retries once a destination binds a channel
		s.logger.Debug().Str("run_id", run.ID).Str("game_id", gameID).Msg("no subscribed destinations")
		return false, nil
	}

	full := run
	detailCtx, cancel := context.WithTimeout(ctx, constants.ExternalAPITimeout)
	detail, err := s.src.GetRun(detailCtx, run.ID)
	cancel()
	if err != nil {
		s.logger.Warn().Err(err).Str("run_id", run.ID).Msg("run detail fetch failed, using summary")
	} else {
		full = detail.Data
	}

	alert := s.buildAlert(ctx, &full, gameID, gameName)

	delivered := 0
	for _, dest := range dests {
		err := s.sink.SendRunAlert(ctx, dest.ChannelID, dest.PingRoleID, alert)
		if err != nil {
			switch {
			case errors.Is(err, domain.ErrDeliveryForbidden):
				s.logger.Warn().
					Str("run_id", run.ID).
					Str("guild_id", dest.GuildID).
					Str("channel_id", dest.ChannelID).
					Msg("delivery forbidden, check channel permissions")
			case errors.Is(err, domain.ErrDeliveryNotFound):
				s.logger.Warn().
					Str("run_id", run.ID).
					Str("guild_id", dest.GuildID).
					Str("channel_id", dest.ChannelID).
					Msg("delivery channel missing")
			default:
				s.logger.Error().Err(err).
					Str("run_id", run.ID).
					Str("guild_id", dest.GuildID).
					Msg("delivery failed")
			}
			continue
		}
		delivered++
	}

	if delivered == 0 {
		s.logger.Warn().
			Str("run_id", run.ID).
			Int("destinations", len(dests)).
			Msg("all deliveries failed, run stays unseen for retry")
		return false, nil
	}

	if err := s.seen.MarkSeen(ctx, run.ID, gameID); err != nil {
		// announced but not recorded; the run may be re-announced next cycle
		s.logger.Error().Err(err).Str("run_id", run.ID).Msg("failed to mark run seen after delivery")
		return true, err
	}
	s.recordRecent(run.ID)

	s.logger.Info().
		Str("run_id", run.ID).
		Str("game_id", gameID).
		Str("game", gameName).
		Int("delivered", delivered).
		Int("destinations", len(dests)).
		Msg("run announced")
	return true, nil
}

func (s *NotifierService) recordRecent(runID string) {
	s.recentMu.Lock()
	defer s.recentMu.Unlock()

	s.recent = append(s.recent, runID)
	if len(s.recent) > constants.RecentRunsKept {
		s.recent = s.recent[len(s.recent)-constants.RecentRunsKept:]
	}
}

// Recent returns up to n recently announced run ids, newest first. The ring
// is in-memory only and resets on restart.
func (s *NotifierService) Recent(n int) []string {
	s.recentMu.Lock()
	defer s.recentMu.Unlock()

	if n <= 0 || n > len(s.recent) {
		n = len(s.recent)
	}
	out := make([]string, 0, n)
	for i := len(s.recent) - 1; i >= len(s.recent)-n; i-- {
		out = append(out, s.recent[i])
	}
	return out
}
