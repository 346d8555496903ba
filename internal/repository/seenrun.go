package repository

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// SeenRunRepository is the durable set of already-announced run ids, the
// single source of truth for notification dedup.
type SeenRunRepository struct {
	db     *sql.DB
	logger zerolog.Logger
}

func NewSeenRunRepository(sqlDB *sql.DB, logger zerolog.Logger) *SeenRunRepository {
	return &SeenRunRepository{
		db:     sqlDB,
		logger: logger,
	}
}

func (r *SeenRunRepository) IsSeen(ctx context.Context, runID string) (bool, error) {
	var one int
	err := r.db.QueryRowContext(ctx, `SELECT 1 FROM seen_runs WHERE run_id = ?`, runID).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// MarkSeen is idempotent; re-marking an already-seen id is a no-op.
func (r *SeenRunRepository) MarkSeen(ctx context.Context, runID, gameID string) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO seen_runs (run_id, game_id, seen_at) VALUES (?, ?, ?)`,
		runID, gameID, time.Now().UTC())
	if err != nil {
		r.logger.Error().Err(err).Str("run_id", runID).Msg("failed to mark run seen")
		return err
	}
	return nil
}

// FilterUnseen returns the subset of runIDs not yet in the registry,
// preserving input order.
func (r *SeenRunRepository) FilterUnseen(ctx context.Context, runIDs []string) ([]string, error) {
	if len(runIDs) == 0 {
		return nil, nil
	}

	placeholders := strings.Repeat("?,", len(runIDs)-1) + "?"
	args := make([]any, len(runIDs))
	for i, id := range runIDs {
		args[i] = id
	}

	rows, err := r.db.QueryContext(ctx,
		`SELECT run_id FROM seen_runs WHERE run_id IN (`+placeholders+`)`, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	seen := make(map[string]struct{}, len(runIDs))
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		seen[id] = struct{}{}
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	var unseen []string
	for _, id := range runIDs {
		if _, ok := seen[id]; !ok {
			unseen = append(unseen, id)
		}
	}
	return unseen, nil
}

func (r *SeenRunRepository) Count(ctx context.Context) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM seen_runs`).Scan(&n)
	return n, err
}

// Clear wipes the registry. Explicit admin reset only; every pending run
// upstream becomes announceable again.
func (r *SeenRunRepository) Clear(ctx context.Context) (int64, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM seen_runs`)
	if err != nil {
		r.logger.Error().Err(err).Msg("failed to clear seen runs")
		return 0, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}

	r.logger.Info().Int64("cleared", n).Msg("seen run registry cleared")
	return n, nil
}
