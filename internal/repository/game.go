package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/aCatWithSchizophrenia/SRCNotifications/internal/domain"
)

// GameRepository persists verified game metadata and the search-result
// cache in front of the upstream game directory.
type GameRepository struct {
	db     *sql.DB
	logger zerolog.Logger
}

func NewGameRepository(sqlDB *sql.DB, logger zerolog.Logger) *GameRepository {
	return &GameRepository{
		db:     sqlDB,
		logger: logger,
	}
}

func (r *GameRepository) Upsert(ctx context.Context, game *domain.Game) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO games (id, name, abbreviation, release_year, player_count, weblink, verified_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			abbreviation = excluded.abbreviation,
			release_year = excluded.release_year,
			player_count = excluded.player_count,
			weblink = excluded.weblink,
			verified_at = excluded.verified_at`,
		game.ID, game.Name, game.Abbreviation, game.ReleaseYear, game.PlayerCount, game.Weblink, game.VerifiedAt)
	if err != nil {
		r.logger.Error().Err(err).Str("game_id", game.ID).Msg("failed to upsert game")
		return err
	}

	r.logger.Debug().Str("game_id", game.ID).Str("name", game.Name).Msg("game upserted")
	return nil
}

func (r *GameRepository) Get(ctx context.Context, gameID string) (*domain.Game, error) {
	var g domain.Game
	err := r.db.QueryRowContext(ctx,
		`SELECT id, name, abbreviation, release_year, player_count, weblink, verified_at
		 FROM games WHERE id = ?`, gameID).
		Scan(&g.ID, &g.Name, &g.Abbreviation, &g.ReleaseYear, &g.PlayerCount, &g.Weblink, &g.VerifiedAt)
	if err == sql.ErrNoRows {
		return nil, domain.ErrGameNotFound
	}
	if err != nil {
		return nil, err
	}
	return &g, nil
}

func (r *GameRepository) Count(ctx context.Context) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM games`).Scan(&n)
	return n, err
}

// GetSearch looks up a cached search by case-folded term. A miss is
// (nil, nil), not an error.
func (r *GameRepository) GetSearch(ctx context.Context, term string) (*domain.CachedSearch, error) {
	var blob string
	var searchedAt time.Time
	err := r.db.QueryRowContext(ctx,
		`SELECT results, searched_at FROM game_searches WHERE term = ?`, term).
		Scan(&blob, &searchedAt)
	if err == sql.ErrNoRows {
		r.logger.Debug().Str("term", term).Msg("search cache miss")
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var candidates []domain.GameCandidate
	if err := json.Unmarshal([]byte(blob), &candidates); err != nil {
		return nil, fmt.Errorf("failed to decode cached search %q: %w", term, err)
	}

	r.logger.Debug().Str("term", term).Int("candidates", len(candidates)).Msg("search cache hit")
	return &domain.CachedSearch{
		Term:       term,
		Candidates: candidates,
		SearchedAt: searchedAt,
	}, nil
}

func (r *GameRepository) PutSearch(ctx context.Context, search *domain.CachedSearch) error {
	blob, err := json.Marshal(search.Candidates)
	if err != nil {
		return fmt.Errorf("failed to encode search %q: %w", search.Term, err)
	}

	_, err = r.db.ExecContext(ctx,
		`INSERT INTO game_searches (term, results, searched_at) VALUES (?, ?, ?)
		 ON CONFLICT(term) DO UPDATE SET results = excluded.results, searched_at = excluded.searched_at`,
		search.Term, string(blob), search.SearchedAt)
	if err != nil {
		r.logger.Error().Err(err).Str("term", search.Term).Msg("failed to cache search")
		return err
	}
	return nil
}

// ClearSearches drops the whole search cache, the operator escape hatch for
// a stale upstream record.
func (r *GameRepository) ClearSearches(ctx context.Context) (int64, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM game_searches`)
	if err != nil {
		r.logger.Error().Err(err).Msg("failed to clear search cache")
		return 0, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}

	r.logger.Info().Int64("cleared", n).Msg("search cache cleared")
	return n, nil
}

func (r *GameRepository) CountSearches(ctx context.Context) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM game_searches`).Scan(&n)
	return n, err
}
