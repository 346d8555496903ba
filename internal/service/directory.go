package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/aCatWithSchizophrenia/SRCNotifications/internal/api"
	"github.com/aCatWithSchizophrenia/SRCNotifications/internal/constants"
	"github.com/aCatWithSchizophrenia/SRCNotifications/internal/domain"
)

// GameSearcher is the upstream slice the directory needs.
type GameSearcher interface {
	SearchGames(ctx context.Context, name string, max int) (*api.GamesResponse, error)
	GetGame(ctx context.Context, gameID string) (*api.GameResponse, error)
}

// GameStore persists verified games and the search-result cache.
type GameStore interface {
	Upsert(ctx context.Context, game *domain.Game) error
	Get(ctx context.Context, gameID string) (*domain.Game, error)
	GetSearch(ctx context.Context, term string) (*domain.CachedSearch, error)
	PutSearch(ctx context.Context, search *domain.CachedSearch) error
	ClearSearches(ctx context.Context) (int64, error)
}

// MonitoredBinder completes a disambiguation pick by binding the chosen
// game id to a monitored-game entry.
type MonitoredBinder interface {
	ResolveMonitoredGame(ctx context.Context, id, gameID string) error
}

// DirectoryService resolves operator-entered game names to canonical
// upstream game ids, with a persistent no-TTL search cache in front of the
// upstream search.
type DirectoryService struct {
	src    GameSearcher
	store  GameStore
	binder MonitoredBinder
	logger zerolog.Logger
}

func NewDirectoryService(src GameSearcher, store GameStore, binder MonitoredBinder, logger zerolog.Logger) *DirectoryService {
	return &DirectoryService{
		src:    src,
		store:  store,
		binder: binder,
		logger: logger,
	}
}

// NormalizeGameName case-folds a raw name into the cache/uniqueness key.
func NormalizeGameName(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

// Candidates returns the annotated search results for a name, serving from
// the cache when warm. A warmed cache issues no upstream requests.
func (s *DirectoryService) Candidates(ctx context.Context, name string) ([]domain.GameCandidate, error) {
	term := NormalizeGameName(name)
	if term == "" {
		return nil, domain.ErrGameNotFound
	}

	cached, err := s.store.GetSearch(ctx, term)
	if err != nil {
		return nil, err
	}
	if cached != nil {
		return cached.Candidates, nil
	}

	apiCtx, cancel := context.WithTimeout(ctx, constants.ExternalAPITimeout)
	defer cancel()

	resp, err := s.src.SearchGames(apiCtx, strings.TrimSpace(name), constants.SearchMaxResults)
	if err != nil {
		s.logger.Warn().Err(err).Str("name", name).Msg("game search failed")
		return nil, fmt.Errorf("failed to search games: %w", err)
	}

	candidates := make([]domain.GameCandidate, 0, len(resp.Data))
	for _, g := range resp.Data {
		lower := strings.ToLower(g.Names.International)
		candidates = append(candidates, domain.GameCandidate{
			Game:      mapGameResource(g),
			Exact:     lower == term,
			Substring: strings.Contains(lower, term),
		})
	}

	if err := s.store.PutSearch(ctx, &domain.CachedSearch{
		Term:       term,
		Candidates: candidates,
		SearchedAt: time.Now().UTC(),
	}); err != nil {
		// resolution still works off the fresh results
		s.logger.Warn().Err(err).Str("term", term).Msg("failed to cache search results")
	}

	s.logger.Debug().Str("term", term).Int("candidates", len(candidates)).Msg("search results fetched")
	return candidates, nil
}

// Resolve maps a free-text name to a verified game: exact match first, then
// substring match, then first result. The pick is upserted into the
// verified-game store before returning.
func (s *DirectoryService) Resolve(ctx context.Context, name string) (*domain.Game, error) {
	candidates, err := s.Candidates(ctx, name)
	if err != nil {
		return nil, err
	}

	pick := SelectCandidate(candidates)
	if pick == nil {
		s.logger.Info().Str("name", name).Msg("no games matched")
		return nil, domain.ErrGameNotFound
	}

	game, err := s.VerifyGame(ctx, pick.Game.ID)
	if err != nil {
		// detail fetch is best-effort; the summary already identifies the game
		s.logger.Warn().Err(err).Str("game_id", pick.Game.ID).Msg("game detail fetch failed, keeping search summary")
		game = &pick.Game
		game.VerifiedAt = time.Now().UTC()
		if err := s.store.Upsert(ctx, game); err != nil {
			return nil, err
		}
	}

	s.logger.Info().
		Str("name", name).
		Str("game_id", game.ID).
		Str("canonical", game.Name).
		Msg("game resolved")
	return game, nil
}

// SelectCandidate applies the deterministic pick order over a fixed result
// list: exact, then substring, then first.
func SelectCandidate(candidates []domain.GameCandidate) *domain.GameCandidate {
	for i := range candidates {
		if candidates[i].Exact {
			return &candidates[i]
		}
	}
	for i := range candidates {
		if candidates[i].Substring {
			return &candidates[i]
		}
	}
	if len(candidates) > 0 {
		return &candidates[0]
	}
	return nil
}

// VerifyGame fetches full detail for a known game id and upserts it into
// the verified-game store.
func (s *DirectoryService) VerifyGame(ctx context.Context, gameID string) (*domain.Game, error) {
	apiCtx, cancel := context.WithTimeout(ctx, constants.ExternalAPITimeout)
	defer cancel()

	resp, err := s.src.GetGame(apiCtx, gameID)
	if err != nil {
		if api.IsNotFound(err) {
			return nil, domain.ErrGameNotFound
		}
		return nil, fmt.Errorf("failed to fetch game %s: %w", gameID, err)
	}

	game := mapGameResource(resp.Data)
	game.VerifiedAt = time.Now().UTC()
	if err := s.store.Upsert(ctx, &game); err != nil {
		return nil, err
	}
	return &game, nil
}

// BindMonitored completes an operator's disambiguation pick: verify the
// chosen game and bind its id to the pending monitored-game entry.
func (s *DirectoryService) BindMonitored(ctx context.Context, entryID, gameID string) (*domain.Game, error) {
	game, err := s.VerifyGame(ctx, gameID)
	if err != nil {
		return nil, err
	}
	if err := s.binder.ResolveMonitoredGame(ctx, entryID, gameID); err != nil {
		return nil, err
	}

	s.logger.Info().Str("entry_id", entryID).Str("game_id", gameID).Msg("monitored game bound")
	return game, nil
}

// ClearSearchCache drops every cached search so later lookups refetch from
// upstream.
func (s *DirectoryService) ClearSearchCache(ctx context.Context) (int64, error) {
	return s.store.ClearSearches(ctx)
}

func mapGameResource(g api.GameResource) domain.Game {
	return domain.Game{
		ID:           g.ID,
		Name:         g.Names.International,
		Abbreviation: g.Abbreviation,
		ReleaseYear:  g.Released,
		PlayerCount:  g.Players.Count,
		Weblink:      g.Weblink,
	}
}
