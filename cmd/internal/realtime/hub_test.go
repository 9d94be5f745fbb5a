package realtime

import (
	"encoding/json"
	"testing"
	"time"

	"beacon/cmd/internal/session"
	v1 "beacon/contracts/session/v1"
)

func TestHub_JoinCreatesRoomAndLeavePrunes(t *testing.T) {
	t.Parallel()

	h := NewHub(testLog(), nil)

	c := NewClient("obs-1", 8)
	r := h.Join("s1", c)
	if r == nil {
		t.Fatalf("Join returned nil room")
	}
	if h.Room("s1") != r {
		t.Fatalf("Room must return the joined room")
	}

	h.Leave("s1", "obs-1")
	if h.Room("s1") != nil {
		t.Fatalf("empty room must be pruned")
	}

	// Leaving an unknown room is a no-op.
	h.Leave("nope", "obs-1")
}

func TestHub_MultiRoomMembership(t *testing.T) {
	t.Parallel()

	h := NewHub(testLog(), nil)
	c := NewClient("obs-1", 8)

	h.Join("s1", c)
	h.Join("s2", c)

	if h.Room("s1") == nil || h.Room("s2") == nil {
		t.Fatalf("one observer must be able to watch several sessions")
	}

	h.Leave("s1", "obs-1")
	if h.Room("s1") != nil {
		t.Fatalf("s1 must be pruned")
	}
	if h.Room("s2") == nil {
		t.Fatalf("leaving s1 must not touch s2 membership")
	}
}

func TestHub_PublishDevicesBroadcastsWireRoster(t *testing.T) {
	t.Parallel()

	h := NewHub(testLog(), nil)
	c := NewClient("obs-1", 8)
	h.Join("s1", c)

	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	h.PublishDevices("s1", []session.Device{
		{ID: "d1", UserAgent: "ua", Name: "phone", JoinedAt: now, LastActiveAt: now},
	})

	select {
	case env := <-c.Send:
		if env.Type != v1.TypeDeviceUpdates {
			t.Fatalf("type: got=%q want=%q", env.Type, v1.TypeDeviceUpdates)
		}
		if err := env.Validate(); err != nil {
			t.Fatalf("published envelope invalid: %v", err)
		}
		var p v1.DeviceUpdatesPayload
		if err := json.Unmarshal(env.Payload, &p); err != nil {
			t.Fatalf("unmarshal payload: %v", err)
		}
		if p.SessionID != "s1" || len(p.Devices) != 1 || p.Devices[0].ID != "d1" {
			t.Fatalf("payload mismatch: %+v", p)
		}
	default:
		t.Fatalf("no envelope delivered")
	}
}

func TestHub_PublishMessagesBroadcastsWireLog(t *testing.T) {
	t.Parallel()

	h := NewHub(testLog(), nil)
	c := NewClient("obs-1", 8)
	h.Join("s1", c)

	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	h.PublishMessages("s1", []session.Message{
		{ID: "m1", Type: "text", Sender: "d1", SentAt: now, Text: "hi"},
	})

	select {
	case env := <-c.Send:
		if env.Type != v1.TypeMessageUpdates {
			t.Fatalf("type: got=%q want=%q", env.Type, v1.TypeMessageUpdates)
		}
		var p v1.MessageUpdatesPayload
		if err := json.Unmarshal(env.Payload, &p); err != nil {
			t.Fatalf("unmarshal payload: %v", err)
		}
		if p.SessionID != "s1" || len(p.Messages) != 1 || p.Messages[0].Text != "hi" {
			t.Fatalf("payload mismatch: %+v", p)
		}
	default:
		t.Fatalf("no envelope delivered")
	}
}

func TestHub_JoinSurvivesConcurrentLastLeave(t *testing.T) {
	t.Parallel()

	h := NewHub(testLog(), nil)

	// A join that races the last member's leave (which prunes the room)
	// must still land in the room the hub resolves for the session:
	// otherwise the observer is stranded and publishes never reach it.
	for i := 0; i < 500; i++ {
		a := NewClient("a", 1)
		h.Join("s1", a)

		done := make(chan struct{})
		go func() {
			h.Leave("s1", "a")
			close(done)
		}()

		b := NewClient("b", 8)
		joined := h.Join("s1", b)
		<-done

		if h.Room("s1") != joined {
			t.Fatalf("iteration %d: joined room is not the hub's room for the session", i)
		}

		h.PublishDevices("s1", []session.Device{{ID: "d1"}})
		if got := len(b.Send); got != 1 {
			t.Fatalf("iteration %d: stranded observer: got %d envelopes, want 1", i, got)
		}

		h.Leave("s1", "b")
	}
}

func TestHub_JoinAfterPruneCreatesFreshRoom(t *testing.T) {
	t.Parallel()

	h := NewHub(testLog(), nil)

	a := NewClient("a", 8)
	h.Join("s1", a)
	h.Leave("s1", "a")
	if h.Room("s1") != nil {
		t.Fatalf("room must be pruned after last leave")
	}

	b := NewClient("b", 8)
	h.Join("s1", b)

	h.PublishDevices("s1", []session.Device{{ID: "d1"}})
	if got := len(b.Send); got != 1 {
		t.Fatalf("rejoined observer: got %d envelopes, want 1", got)
	}
}

func TestHub_PublishWithoutRoomIsNoop(t *testing.T) {
	t.Parallel()

	h := NewHub(testLog(), nil)

	// Must not panic or create a room.
	h.PublishDevices("ghost", []session.Device{{ID: "d1"}})
	h.PublishMessages("ghost", []session.Message{{ID: "m1"}})

	if h.Room("ghost") != nil {
		t.Fatalf("publish must not create rooms")
	}
}
