package realtime

import (
	"log/slog"
	"sync"

	v1 "beacon/contracts/session/v1"
)

// Room is the set of observers currently subscribed to one session's
// updates. It is an in-memory membership + broadcast fan-out primitive;
// it never stores session state, only relays what the service publishes.
//
// Concurrency guarantees:
// - Join/Leave are safe under concurrent Broadcast.
// - Broadcast never blocks (drops under backpressure).
// - Broadcast is panic-safe because Client.Send is never closed by the server.
type Room struct {
	log *slog.Logger
	ID  string

	mu      sync.RWMutex
	members map[string]*Client
}

// NewRoom constructs a room for one session identity.
func NewRoom(log *slog.Logger, id string) *Room {
	return &Room{
		log:     log,
		ID:      id,
		members: make(map[string]*Client),
	}
}

// Join adds a client to membership.
//
// Joining does not close or replace the client's other room memberships:
// an observer may watch several sessions over one connection.
func (r *Room) Join(client *Client) {
	if r == nil || client == nil || client.ID == "" {
		return
	}

	r.mu.Lock()
	r.members[client.ID] = client
	r.mu.Unlock()

	r.log.Info("room.member.join", "session_id", r.ID, "observer_id", client.ID)
}

// Leave removes a client from membership. It does NOT close the client:
// the connection may still be a member of other rooms, so lifecycle stays
// with the gateway.
func (r *Room) Leave(clientID string) {
	if r == nil || clientID == "" {
		return
	}

	r.mu.Lock()
	_, present := r.members[clientID]
	delete(r.members, clientID)
	r.mu.Unlock()

	if present {
		r.log.Info("room.member.leave", "session_id", r.ID, "observer_id", clientID)
	}
}

// Size returns the current member count.
func (r *Room) Size() int {
	if r == nil {
		return 0
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.members)
}

// Broadcast fans an envelope out to all members, including the member whose
// action triggered the update if it is joined.
// Non-blocking: if a member queue is full or the client is shutting down, it is dropped.
func (r *Room) Broadcast(env v1.Envelope) {
	if r == nil {
		return
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, m := range r.members {
		if m == nil {
			continue
		}

		select {
		case <-m.Done():
			// Skip clients that are shutting down.
			continue
		default:
		}

		select {
		case m.Send <- env:
		default:
			// Drop rather than block the whole room.
		}
	}
}
