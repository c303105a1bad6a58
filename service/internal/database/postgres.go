package database

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const schema = `
CREATE TABLE IF NOT EXISTS rift_games (
	id          UUID PRIMARY KEY,
	room_code   TEXT NOT NULL,
	white_name  TEXT NOT NULL,
	black_name  TEXT NOT NULL,
	winner      TEXT NOT NULL,
	reason      TEXT NOT NULL,
	turns       INTEGER NOT NULL,
	actions     INTEGER NOT NULL,
	final_fen   TEXT NOT NULL,
	final_state JSONB NOT NULL,
	started_at  TIMESTAMPTZ NOT NULL,
	ended_at    TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS rift_games_ended_at ON rift_games (ended_at DESC);
`

const selectGame = `SELECT id, room_code, white_name, black_name, winner, reason, turns, actions,
	final_fen, final_state, started_at, ended_at FROM rift_games`

// Postgres archives games in a Postgres table.
type Postgres struct {
	pool *pgxpool.Pool
}

// ConnectPostgres opens a pool and creates the schema when missing.
func ConnectPostgres(ctx context.Context, url string) (*Postgres, error) {
	pool, err := pgxpool.New(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	if _, err := pool.Exec(ctx, schema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return &Postgres{pool: pool}, nil
}

// StoreGame inserts or replaces the record.
func (p *Postgres) StoreGame(ctx context.Context, rec GameRecord) error {
	state := rec.FinalState
	if len(state) == 0 {
		state = []byte("{}")
	}
	_, err := p.pool.Exec(ctx, `
		INSERT INTO rift_games (id, room_code, white_name, black_name, winner, reason, turns, actions,
			final_fen, final_state, started_at, ended_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		ON CONFLICT (id) DO UPDATE SET
			winner = EXCLUDED.winner, reason = EXCLUDED.reason, turns = EXCLUDED.turns,
			actions = EXCLUDED.actions, final_fen = EXCLUDED.final_fen,
			final_state = EXCLUDED.final_state, ended_at = EXCLUDED.ended_at`,
		rec.ID, rec.RoomCode, rec.White, rec.Black, rec.Winner, rec.Reason, rec.Turns, rec.Actions,
		rec.FinalFEN, state, rec.StartedAt, rec.EndedAt)
	if err != nil {
		return fmt.Errorf("store game %s: %w", rec.ID, err)
	}
	return nil
}

// GetGame loads one record.
func (p *Postgres) GetGame(ctx context.Context, id uuid.UUID) (*GameRecord, error) {
	row := p.pool.QueryRow(ctx, selectGame+` WHERE id = $1`, id)
	rec, err := scanGame(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrGameNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get game %s: %w", id, err)
	}
	return &rec, nil
}

// RecentGames returns up to limit records, newest first.
func (p *Postgres) RecentGames(ctx context.Context, limit int) ([]GameRecord, error) {
	rows, err := p.pool.Query(ctx, selectGame+` ORDER BY ended_at DESC LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("recent games: %w", err)
	}
	defer rows.Close()

	var out []GameRecord
	for rows.Next() {
		rec, err := scanGame(rows)
		if err != nil {
			return nil, fmt.Errorf("scan game: %w", err)
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// Close releases the pool.
func (p *Postgres) Close() error {
	p.pool.Close()
	return nil
}

func scanGame(row pgx.Row) (GameRecord, error) {
	var rec GameRecord
	err := row.Scan(&rec.ID, &rec.RoomCode, &rec.White, &rec.Black, &rec.Winner, &rec.Reason,
		&rec.Turns, &rec.Actions, &rec.FinalFEN, &rec.FinalState, &rec.StartedAt, &rec.EndedAt)
	return rec, err
}
