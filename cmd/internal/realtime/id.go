package realtime

import (
	"time"

	"beacon/cmd/internal/ids"
)

// NewObserverID returns a random hex id for one websocket connection.
// Observer ids are transport-scoped and never persisted.
func NewObserverID() string {
	return NewRandomHex(10)
}

// NewEnvelopeID returns a ULID used as envelope id.
// ULID is preferable to random hex for tracing and ordering in logs.
func NewEnvelopeID(now time.Time) string {
	id, err := ids.NewULID(now)
	if err != nil {
		// ULID generation only fails when the entropy source does; fall
		// back to the same source used for observer ids.
		return NewRandomHex(13)
	}
	return id
}
