package session

import (
	"context"
	"time"
)

// Store is the durability boundary for Session documents.
//
// Requirements:
//   - Ensure is idempotent: a second call for the same id observes the same
//     state as after the first, with no error.
//   - Get and Save return ErrSessionNotFound for absent ids; Delete does too
//     (deleting an already-absent session is not a silent success).
//   - Implementations own the timestamps: CreatedAt on first Ensure,
//     UpdatedAt on Ensure and every Save.
//
// Load -> mutate -> Save is NOT an atomic transaction: two concurrent
// writers against the same session id can interleave and the second Save
// wins ("lost update"). That is an accepted tradeoff at human-paced
// contention; callers must not rely on serializability.
type Store interface {
	// Get returns the current document for id.
	Get(ctx context.Context, sessionID string) (Session, error)

	// Ensure creates an empty document for id if none exists and returns
	// the current document either way.
	Ensure(ctx context.Context, sessionID string, now time.Time) (Session, error)

	// Delete removes the document for id.
	Delete(ctx context.Context, sessionID string) error

	// Save persists the full document and refreshes UpdatedAt.
	Save(ctx context.Context, s *Session, now time.Time) error

	Close() error
}
