package server

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"renju-server/internal/renju"
)

// PGStore persists match aggregates in postgres. One SaveMatch is one
// transaction; a match is always written whole.
type PGStore struct {
	pool *pgxpool.Pool
}

func NewPGStore(pool *pgxpool.Pool) *PGStore {
	return &PGStore{pool: pool}
}

func (s *PGStore) SaveMatch(ctx context.Context, m *renju.Match) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("beginning save: %w", err)
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx, `
		INSERT INTO matches (
			id, state, is_private, board_size, classic_mode, with_myself,
			three_players, time_limit, board, created_at, started_at, finished_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		ON CONFLICT (id) DO UPDATE SET
			state = EXCLUDED.state,
			board = EXCLUDED.board,
			started_at = EXCLUDED.started_at,
			finished_at = EXCLUDED.finished_at`,
		m.ID, m.State, m.IsPrivate, m.Rules.BoardSize, m.Rules.ClassicMode,
		m.Rules.WithMyself, m.Rules.ThreePlayers, m.Rules.TimeLimit,
		m.Grid.Serialize(), m.CreatedAt, m.StartedAt, m.FinishedAt,
	)
	if err != nil {
		return fmt.Errorf("upserting match: %w", err)
	}

	if _, err := tx.Exec(ctx, `DELETE FROM seats WHERE match_id = $1`, m.ID); err != nil {
		return fmt.Errorf("clearing seats: %w", err)
	}
	for ord, seat := range m.Seats {
		var outcome, reason *string
		if seat.Result != nil {
			o, r := string(seat.Result.Outcome), string(seat.Result.Reason)
			outcome, reason = &o, &r
		}
		_, err := tx.Exec(ctx, `
			INSERT INTO seats (match_id, user_id, name, role, ready, can_move, outcome, reason, ord)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
			m.ID, seat.UserID, seat.Name, seat.Role, seat.Ready, seat.CanMove,
			outcome, reason, ord,
		)
		if err != nil {
			return fmt.Errorf("inserting seat: %w", err)
		}
	}

	if _, err := tx.Exec(ctx, `DELETE FROM moves WHERE match_id = $1`, m.ID); err != nil {
		return fmt.Errorf("clearing moves: %w", err)
	}
	for _, mv := range m.Moves {
		_, err := tx.Exec(ctx, `
			INSERT INTO moves (match_id, id, role, x, y)
			VALUES ($1, $2, $3, $4, $5)`,
			m.ID, mv.ID, mv.Role, mv.X, mv.Y,
		)
		if err != nil {
			return fmt.Errorf("inserting move: %w", err)
		}
	}

	return tx.Commit(ctx)
}

func (s *PGStore) LoadMatch(ctx context.Context, id uuid.UUID) (*renju.Match, error) {
	m := &renju.Match{ID: id}
	var board string
	err := s.pool.QueryRow(ctx, `
		SELECT state, is_private, board_size, classic_mode, with_myself,
		       three_players, time_limit, board, created_at, started_at, finished_at
		FROM matches WHERE id = $1`, id,
	).Scan(
		&m.State, &m.IsPrivate, &m.Rules.BoardSize, &m.Rules.ClassicMode,
		&m.Rules.WithMyself, &m.Rules.ThreePlayers, &m.Rules.TimeLimit,
		&board, &m.CreatedAt, &m.StartedAt, &m.FinishedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, renju.ErrNoMatchFound
	}
	if err != nil {
		return nil, fmt.Errorf("loading match: %w", err)
	}

	m.Grid, err = renju.ParseGrid(board)
	if err != nil {
		return nil, fmt.Errorf("loading match %s: %w", id, err)
	}

	if err := s.loadSeats(ctx, m); err != nil {
		return nil, err
	}
	if err := s.loadMoves(ctx, m); err != nil {
		return nil, err
	}
	return m, nil
}

func (s *PGStore) loadSeats(ctx context.Context, m *renju.Match) error {
	rows, err := s.pool.Query(ctx, `
		SELECT user_id, name, role, ready, can_move, outcome, reason
		FROM seats WHERE match_id = $1 ORDER BY ord`, m.ID)
	if err != nil {
		return fmt.Errorf("loading seats: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		seat := &renju.Seat{}
		var outcome, reason *string
		if err := rows.Scan(&seat.UserID, &seat.Name, &seat.Role, &seat.Ready, &seat.CanMove, &outcome, &reason); err != nil {
			return fmt.Errorf("scanning seat: %w", err)
		}
		if outcome != nil && reason != nil {
			seat.Result = &renju.SeatResult{
				Outcome: renju.Outcome(*outcome),
				Reason:  renju.Reason(*reason),
			}
		}
		m.Seats = append(m.Seats, seat)
	}
	return rows.Err()
}

func (s *PGStore) loadMoves(ctx context.Context, m *renju.Match) error {
	rows, err := s.pool.Query(ctx, `
		SELECT id, role, x, y
		FROM moves WHERE match_id = $1 ORDER BY id`, m.ID)
	if err != nil {
		return fmt.Errorf("loading moves: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var mv renju.Move
		if err := rows.Scan(&mv.ID, &mv.Role, &mv.X, &mv.Y); err != nil {
			return fmt.Errorf("scanning move: %w", err)
		}
		m.Moves = append(m.Moves, mv)
	}
	return rows.Err()
}

func (s *PGStore) DeleteMatch(ctx context.Context, id uuid.UUID) error {
	_, err := s.pool.Exec(ctx, `DELETE FROM matches WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("deleting match: %w", err)
	}
	return nil
}

// ListGameModes returns the active modes among the given ids, in no
// particular order. The caller reorders to its own preference.
func (s *PGStore) ListGameModes(ctx context.Context, ids []int) ([]renju.GameMode, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, name, time_limit, board_size, classic_mode, with_myself, three_players, is_active
		FROM game_modes WHERE is_active AND id = ANY($1)`, ids)
	if err != nil {
		return nil, fmt.Errorf("querying game modes: %w", err)
	}
	defer rows.Close()

	var modes []renju.GameMode
	for rows.Next() {
		var mode renju.GameMode
		err := rows.Scan(&mode.ID, &mode.Name, &mode.TimeLimit, &mode.BoardSize,
			&mode.ClassicMode, &mode.WithMyself, &mode.ThreePlayers, &mode.IsActive)
		if err != nil {
			return nil, fmt.Errorf("scanning game mode: %w", err)
		}
		modes = append(modes, mode)
	}
	return modes, rows.Err()
}

func (s *PGStore) ListUnfinishedMatches(ctx context.Context) ([]*renju.Match, error) {
	rows, err := s.pool.Query(ctx, `SELECT id FROM matches WHERE state != $1`, renju.StateFinished)
	if err != nil {
		return nil, fmt.Errorf("querying unfinished matches: %w", err)
	}
	ids := []uuid.UUID{}
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scanning match id: %w", err)
		}
		ids = append(ids, id)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	matches := make([]*renju.Match, 0, len(ids))
	for _, id := range ids {
		m, err := s.LoadMatch(ctx, id)
		if err != nil {
			return nil, err
		}
		matches = append(matches, m)
	}
	return matches, nil
}

// CleanupFinished removes finished matches older than the retention
// window. Seats and moves go with them via cascade.
func (s *PGStore) CleanupFinished(ctx context.Context, olderThan time.Duration) (int64, error) {
	cutoff := time.Now().UTC().Add(-olderThan)
	tag, err := s.pool.Exec(ctx,
		`DELETE FROM matches WHERE state = $1 AND finished_at < $2`,
		renju.StateFinished, cutoff,
	)
	if err != nil {
		return 0, fmt.Errorf("cleaning finished matches: %w", err)
	}
	return tag.RowsAffected(), nil
}
