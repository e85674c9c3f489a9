// Package history persists per-user conversation logs in PostgreSQL as
// one document per user: a row keyed by user_id holding the ordered turn
// array in a JSONB chat_history column.
package history

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/botbridge/chatbridge/internal/model/chat"
)

// PostgresStore implements chat.Store over a pgx pool. The pool is owned
// by the caller; the store must not close it.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore wraps an existing pool.
func NewPostgresStore(pool *pgxpool.Pool) (*PostgresStore, error) {
	if pool == nil {
		return nil, fmt.Errorf("history: nil pool")
	}
	return &PostgresStore{pool: pool}, nil
}

// NewPool builds a pgx pool and validates connectivity.
func NewPool(ctx context.Context, databaseURL string) (*pgxpool.Pool, error) {
	cfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, err
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, err
	}

	if err := pingPool(ctx, pool, 3*time.Second); err != nil {
		pool.Close()
		return nil, err
	}

	return pool, nil
}

func pingPool(parent context.Context, pool *pgxpool.Pool, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(parent, timeout)
	defer cancel()

	conn, err := pool.Acquire(ctx)
	if err != nil {
		return err
	}
	conn.Release()
	return nil
}

// EnsureSchema creates the history table when it does not exist yet.
func (s *PostgresStore) EnsureSchema(ctx context.Context) error {
	_, err := s.pool.Exec(ctx,
		`CREATE TABLE IF NOT EXISTS chat_histories (
		     user_id      text PRIMARY KEY,
		     chat_history jsonb NOT NULL DEFAULT '[]'::jsonb
		   )`,
	)
	return err
}

// FetchRecent returns the chronologically last limit turns for the user.
// An unknown user yields an empty slice.
func (s *PostgresStore) FetchRecent(ctx context.Context, userID string, limit int) ([]chat.Turn, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var raw []byte
	err := s.pool.QueryRow(ctx,
		`SELECT chat_history FROM chat_histories WHERE user_id = $1`,
		userID,
	).Scan(&raw)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return []chat.Turn{}, nil
		}
		return nil, err
	}

	var turns []chat.Turn
	if err := json.Unmarshal(raw, &turns); err != nil {
		return nil, fmt.Errorf("history: decode chat_history for user %s: %w", userID, err)
	}

	if limit > 0 && len(turns) > limit {
		turns = turns[len(turns)-limit:]
	}
	return turns, nil
}

// Append adds one turn to the end of the user's document, creating it on
// first write. The upsert is a single statement, so two back-to-back
// appends for the same user rely only on Postgres's per-row write
// ordering.
func (s *PostgresStore) Append(ctx context.Context, userID string, turn chat.Turn) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	if turn.ID == "" {
		turn.ID = uuid.NewString()
	}
	if turn.CreatedAt.IsZero() {
		turn.CreatedAt = time.Now().UTC()
	}

	encoded, err := json.Marshal(turn)
	if err != nil {
		return fmt.Errorf("history: encode turn: %w", err)
	}

	_, err = s.pool.Exec(ctx,
		`INSERT INTO chat_histories (user_id, chat_history)
		 VALUES ($1, jsonb_build_array($2::jsonb))
		 ON CONFLICT (user_id)
		 DO UPDATE SET chat_history = chat_histories.chat_history || $2::jsonb`,
		userID, encoded,
	)
	return err
}
