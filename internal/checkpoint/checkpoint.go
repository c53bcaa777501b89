// Package checkpoint defines the durable session checkpoint store used
// by the workflow engine. A checkpoint is an immutable snapshot of
// session state plus the name of the next node to execute; each new
// checkpoint supersedes the previous one without deleting it, so the
// full progression of a session is retained.
package checkpoint

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when a session has no checkpoint.
var ErrNotFound = errors.New("checkpoint not found")

// Record is one persisted checkpoint.
type Record struct {
	SessionID string    `json:"session_id"`
	State     []byte    `json:"state"`
	NextNode  string    `json:"next_node"`
	CreatedAt time.Time `json:"created_at"`
}

// Store persists checkpoints keyed by session ID.
type Store interface {
	// Save appends a checkpoint for the session, superseding the
	// latest one.
	Save(ctx context.Context, sessionID string, state []byte, nextNode string) error
	// Load returns the latest checkpoint for the session, or
	// ErrNotFound.
	Load(ctx context.Context, sessionID string) (Record, error)
	// History returns the session's checkpoints oldest first.
	History(ctx context.Context, sessionID string) ([]Record, error)
}
