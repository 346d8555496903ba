package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	gonanoid "github.com/matoous/go-nanoid/v2"
	"github.com/rs/zerolog"

	"github.com/aCatWithSchizophrenia/SRCNotifications/internal/constants"
	"github.com/aCatWithSchizophrenia/SRCNotifications/internal/domain"
)

const destinationColumns = "guild_id, display_name, channel_id, ping_role_id, poll_interval_seconds, enabled, created_at, updated_at"

type DestinationRepository struct {
	db     *sql.DB
	logger zerolog.Logger
}

func NewDestinationRepository(sqlDB *sql.DB, logger zerolog.Logger) *DestinationRepository {
	return &DestinationRepository{
		db:     sqlDB,
		logger: logger,
	}
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanDestination(row rowScanner) (*domain.Destination, error) {
	var d domain.Destination
	err := row.Scan(&d.GuildID, &d.DisplayName, &d.ChannelID, &d.PingRoleID, &d.PollIntervalSeconds, &d.Enabled, &d.CreatedAt, &d.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &d, nil
}

func (r *DestinationRepository) Get(ctx context.Context, guildID string) (*domain.Destination, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+destinationColumns+` FROM destinations WHERE guild_id = ?`, guildID)

	d, err := scanDestination(row)
	if err == sql.ErrNoRows {
		return nil, domain.ErrNoDestination
	}
	if err != nil {
		r.logger.Error().Err(err).Str("guild_id", guildID).Msg("failed to get destination")
		return nil, err
	}
	return d, nil
}

// CreateIfAbsent registers a destination row the first time a guild shows up,
// either on a join event or on its first command. Existing rows are untouched.
func (r *DestinationRepository) CreateIfAbsent(ctx context.Context, guildID, displayName string) (*domain.Destination, error) {
	now := time.Now().UTC()
	res, err := r.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO destinations (guild_id, display_name, channel_id, ping_role_id, poll_interval_seconds, enabled, created_at, updated_at)
		 VALUES (?, ?, '', '', ?, 1, ?, ?)`,
		guildID, displayName, constants.DefaultPollIntervalSec, now, now)
	if err != nil {
		r.logger.Error().Err(err).Str("guild_id", guildID).Msg("failed to create destination")
		return nil, err
	}
	if n, err := res.RowsAffected(); err == nil && n > 0 {
		r.logger.Info().
			Str("guild_id", guildID).
			Str("display_name", displayName).
			Msg("destination registered")
	}
	return r.Get(ctx, guildID)
}

func (r *DestinationRepository) SetChannel(ctx context.Context, guildID, channelID string) error {
	return r.updateField(ctx, guildID, "channel_id", channelID)
}

func (r *DestinationRepository) SetPingRole(ctx context.Context, guildID, roleID string) error {
	return r.updateField(ctx, guildID, "ping_role_id", roleID)
}

func (r *DestinationRepository) SetEnabled(ctx context.Context, guildID string, enabled bool) error {
	return r.updateField(ctx, guildID, "enabled", enabled)
}

// SetPollInterval enforces the interval floor; the stored value is left
// unchanged when the requested one is rejected.
func (r *DestinationRepository) SetPollInterval(ctx context.Context, guildID string, seconds int) error {
	if seconds < constants.MinPollIntervalSeconds {
		return domain.ErrIntervalTooShort
	}
	return r.updateField(ctx, guildID, "poll_interval_seconds", seconds)
}

func (r *DestinationRepository) updateField(ctx context.Context, guildID, column string, value any) error {
	res, err := r.db.ExecContext(ctx,
		fmt.Sprintf(`UPDATE destinations SET %s = ?, updated_at = ? WHERE guild_id = ?`, column),
		value, time.Now().UTC(), guildID)
	if err != nil {
		r.logger.Error().Err(err).Str("guild_id", guildID).Str("column", column).Msg("failed to update destination")
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return domain.ErrNoDestination
	}

	r.logger.Debug().Str("guild_id", guildID).Str("column", column).Msg("destination updated")
	return nil
}

// ListNotifiable returns every destination that can currently receive
// alerts: enabled with a bound channel.
func (r *DestinationRepository) ListNotifiable(ctx context.Context) ([]domain.Destination, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+destinationColumns+` FROM destinations WHERE enabled = 1 AND channel_id != ''`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return collectDestinations(rows)
}

// ListSubscribed returns the notifiable destinations monitoring the game.
func (r *DestinationRepository) ListSubscribed(ctx context.Context, gameID string) ([]domain.Destination, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT DISTINCT d.guild_id, d.display_name, d.channel_id, d.ping_role_id, d.poll_interval_seconds, d.enabled, d.created_at, d.updated_at
		 FROM destinations d
		 JOIN monitored_games mg ON mg.guild_id = d.guild_id
		 WHERE mg.game_id = ? AND d.enabled = 1 AND d.channel_id != ''`,
		gameID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return collectDestinations(rows)
}

func collectDestinations(rows *sql.Rows) ([]domain.Destination, error) {
	var result []domain.Destination
	for rows.Next() {
		d, err := scanDestination(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *d)
	}
	return result, rows.Err()
}

func (r *DestinationRepository) Count(ctx context.Context) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM destinations`).Scan(&n)
	return n, err
}

func (r *DestinationRepository) CountMonitored(ctx context.Context) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM monitored_games`).Scan(&n)
	return n, err
}

// AddMonitoredGame records a new monitored name for a guild. gameID may be
// empty when the name has not been resolved yet.
func (r *DestinationRepository) AddMonitoredGame(ctx context.Context, guildID, rawName, normalizedName, gameID string) (*domain.MonitoredGame, error) {
	id, err := gonanoid.New()
	if err != nil {
		return nil, fmt.Errorf("failed to generate nanoid: %w", err)
	}

	now := time.Now().UTC()
	res, err := r.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO monitored_games (id, guild_id, raw_name, normalized_name, game_id, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		id, guildID, rawName, normalizedName, nullableString(gameID), now)
	if err != nil {
		r.logger.Error().Err(err).Str("guild_id", guildID).Str("raw_name", rawName).Msg("failed to add monitored game")
		return nil, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return nil, err
	}
	if n == 0 {
		return nil, domain.ErrAlreadyMonitored
	}

	r.logger.Info().
		Str("guild_id", guildID).
		Str("raw_name", rawName).
		Str("game_id", gameID).
		Msg("monitored game added")

	return &domain.MonitoredGame{
		ID:             id,
		GuildID:        guildID,
		RawName:        rawName,
		NormalizedName: normalizedName,
		GameID:         gameID,
		CreatedAt:      now,
	}, nil
}

// ResolveMonitoredGame binds an upstream game id to a previously
// unresolved entry.
func (r *DestinationRepository) ResolveMonitoredGame(ctx context.Context, id, gameID string) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE monitored_games SET game_id = ? WHERE id = ?`, nullableString(gameID), id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return domain.ErrNotMonitored
	}
	return nil
}

func (r *DestinationRepository) RemoveMonitoredGame(ctx context.Context, guildID, normalizedName string) error {
	res, err := r.db.ExecContext(ctx,
		`DELETE FROM monitored_games WHERE guild_id = ? AND normalized_name = ?`,
		guildID, normalizedName)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return domain.ErrNotMonitored
	}

	r.logger.Info().Str("guild_id", guildID).Str("normalized_name", normalizedName).Msg("monitored game removed")
	return nil
}

// ReplaceMonitoredGames swaps a guild's whole monitored list in one
// transaction, for the batch set-games command.
func (r *DestinationRepository) ReplaceMonitoredGames(ctx context.Context, guildID string, games []domain.MonitoredGame) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM monitored_games WHERE guild_id = ?`, guildID); err != nil {
		return fmt.Errorf("failed to clear monitored games: %w", err)
	}

	now := time.Now().UTC()
	for _, g := range games {
		id, err := gonanoid.New()
		if err != nil {
			return fmt.Errorf("failed to generate nanoid: %w", err)
		}
		_, err = tx.ExecContext(ctx,
			`INSERT INTO monitored_games (id, guild_id, raw_name, normalized_name, game_id, created_at)
			 VALUES (?, ?, ?, ?, ?, ?)`,
			id, guildID, g.RawName, g.NormalizedName, nullableString(g.GameID), now)
		if err != nil {
			return fmt.Errorf("failed to insert monitored game %s: %w", g.RawName, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return err
	}

	r.logger.Info().Str("guild_id", guildID).Int("count", len(games)).Msg("monitored games replaced")
	return nil
}

func (r *DestinationRepository) ListMonitoredGames(ctx context.Context, guildID string) ([]domain.MonitoredGame, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, guild_id, raw_name, normalized_name, game_id, created_at
		 FROM monitored_games WHERE guild_id = ? ORDER BY created_at, raw_name`,
		guildID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.MonitoredGame
	for rows.Next() {
		var m domain.MonitoredGame
		var gameID sql.NullString
		if err := rows.Scan(&m.ID, &m.GuildID, &m.RawName, &m.NormalizedName, &gameID, &m.CreatedAt); err != nil {
			return nil, err
		}
		m.GameID = gameID.String
		result = append(result, m)
	}
	return result, rows.Err()
}

// ListActiveGameTargets computes the union of resolved game ids across all
// notifiable destinations, one row per game.
func (r *DestinationRepository) ListActiveGameTargets(ctx context.Context) ([]domain.GameTarget, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT mg.game_id, COALESCE(MIN(g.name), MIN(mg.raw_name))
		 FROM monitored_games mg
		 JOIN destinations d ON d.guild_id = mg.guild_id
		 LEFT JOIN games g ON g.id = mg.game_id
		 WHERE mg.game_id IS NOT NULL AND d.enabled = 1 AND d.channel_id != ''
		 GROUP BY mg.game_id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var targets []domain.GameTarget
	for rows.Next() {
		var t domain.GameTarget
		if err := rows.Scan(&t.GameID, &t.Name); err != nil {
			return nil, err
		}
		targets = append(targets, t)
	}
	return targets, rows.Err()
}

func nullableString(s string) any {
	if s == "" {
		return nil
	}
	return s
}
