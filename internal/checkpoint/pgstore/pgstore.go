// Package pgstore persists checkpoints in Postgres as insert-only rows.
package pgstore

import (
	"context"
	"database/sql"
	"errors"
	"time"

	_ "github.com/lib/pq"

	"github.com/questor-ai/questor/internal/checkpoint"
)

type Store struct {
	db *sql.DB
}

// New opens a Postgres connection with the given DSN and verifies it.
func New(ctx context.Context, dsn string) (*Store, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, err
	}
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &Store{db: db}, nil
}

// NewWithDB wraps an existing connection pool.
func NewWithDB(db *sql.DB) *Store { return &Store{db: db} }

func (s *Store) Close() error { return s.db.Close() }

func (s *Store) Save(ctx context.Context, sessionID string, state []byte, nextNode string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO checkpoints (session_id, state, next_node, created_at) VALUES ($1, $2, $3, $4)`,
		sessionID, state, nextNode, time.Now().UTC())
	return err
}

func (s *Store) Load(ctx context.Context, sessionID string) (checkpoint.Record, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT state, next_node, created_at FROM checkpoints
		 WHERE session_id = $1 ORDER BY id DESC LIMIT 1`, sessionID)
	rec := checkpoint.Record{SessionID: sessionID}
	if err := row.Scan(&rec.State, &rec.NextNode, &rec.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return checkpoint.Record{}, checkpoint.ErrNotFound
		}
		return checkpoint.Record{}, err
	}
	return rec, nil
}

func (s *Store) History(ctx context.Context, sessionID string) ([]checkpoint.Record, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT state, next_node, created_at FROM checkpoints
		 WHERE session_id = $1 ORDER BY id ASC`, sessionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var recs []checkpoint.Record
	for rows.Next() {
		rec := checkpoint.Record{SessionID: sessionID}
		if err := rows.Scan(&rec.State, &rec.NextNode, &rec.CreatedAt); err != nil {
			return nil, err
		}
		recs = append(recs, rec)
	}
	return recs, rows.Err()
}
