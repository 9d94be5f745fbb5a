package realtime

import (
	"log/slog"
	"sync"

	"beacon/cmd/internal/metrics"
	"beacon/cmd/internal/session"
)

// Hub owns the room membership table: one room per session identity,
// created on first join and pruned when the last observer leaves.
//
// The Hub is also the session.Broadcaster: the service hands it full
// updated lists and it relays them to whoever is currently joined. It
// holds no session state of its own.
type Hub struct {
	log *slog.Logger
	met *metrics.Metrics

	mu    sync.RWMutex
	rooms map[string]*Room
}

// NewHub constructs a Hub instance.
func NewHub(log *slog.Logger, met *metrics.Metrics) *Hub {
	return &Hub{
		log:   log,
		met:   met,
		rooms: make(map[string]*Room),
	}
}

// Join adds client to the room for sessionID, creating the room if needed.
//
// The membership add happens under the hub lock: resolving the room and
// joining it must be atomic with respect to Leave's empty-room pruning, or
// a concurrent last-member leave could prune the room between the two steps
// and strand the joiner in a room no publish can reach.
func (h *Hub) Join(sessionID string, client *Client) *Room {
	h.mu.Lock()
	r, ok := h.rooms[sessionID]
	if !ok {
		r = NewRoom(h.log, sessionID)
		h.rooms[sessionID] = r
		if h.met != nil {
			h.met.RoomsActive.Set(float64(len(h.rooms)))
		}
	}
	r.Join(client)
	h.mu.Unlock()

	if h.met != nil {
		h.met.RoomJoinsTotal.Inc()
	}
	return r
}

// Leave removes clientID from the room for sessionID and prunes the room
// once it is empty. Room lifetime is purely observer-driven.
func (h *Hub) Leave(sessionID, clientID string) {
	h.mu.Lock()
	r := h.rooms[sessionID]
	h.mu.Unlock()
	if r == nil {
		return
	}

	r.Leave(clientID)

	h.mu.Lock()
	if cur, ok := h.rooms[sessionID]; ok && cur == r && r.Size() == 0 {
		delete(h.rooms, sessionID)
		if h.met != nil {
			h.met.RoomsActive.Set(float64(len(h.rooms)))
		}
	}
	h.mu.Unlock()
}

// Room returns the current room for sessionID, or nil when no observer is joined.
func (h *Hub) Room(sessionID string) *Room {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.rooms[sessionID]
}

// PublishDevices relays the full updated roster to the session's room.
// No room means no observers: publishing is a no-op, never an error.
func (h *Hub) PublishDevices(sessionID string, devices []session.Device) {
	r := h.Room(sessionID)
	if r == nil {
		return
	}

	env, err := newDeviceUpdates(sessionID, devices)
	if err != nil {
		h.log.Error("hub.publish.devices.encode", "session_id", sessionID, "err", err)
		return
	}

	r.Broadcast(env)
	if h.met != nil {
		h.met.BroadcastsTotal.WithLabelValues("devices").Inc()
	}
}

// PublishMessages relays the full updated log to the session's room.
func (h *Hub) PublishMessages(sessionID string, messages []session.Message) {
	r := h.Room(sessionID)
	if r == nil {
		return
	}

	env, err := newMessageUpdates(sessionID, messages)
	if err != nil {
		h.log.Error("hub.publish.messages.encode", "session_id", sessionID, "err", err)
		return
	}

	r.Broadcast(env)
	if h.met != nil {
		h.met.BroadcastsTotal.WithLabelValues("messages").Inc()
	}
}
