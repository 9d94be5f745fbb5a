package realtime

import (
	"encoding/json"
	"io"
	"log/slog"
	"testing"
	"time"

	v1 "beacon/contracts/session/v1"
)

func testLog() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testEnvelope(t *testing.T, typ string) v1.Envelope {
	t.Helper()

	payload, err := json.Marshal(map[string]string{"sessionId": "s1"})
	if err != nil {
		t.Fatalf("marshal payload: %v", err)
	}
	return v1.Envelope{
		V:       v1.Version,
		Type:    typ,
		ID:      "env-1",
		TS:      time.Now().UTC(),
		Payload: payload,
	}
}

func TestRoom_BroadcastReachesAllMembers(t *testing.T) {
	t.Parallel()

	r := NewRoom(testLog(), "s1")

	a := NewClient("a", 8)
	b := NewClient("b", 8)
	r.Join(a)
	r.Join(b)

	if got := r.Size(); got != 2 {
		t.Fatalf("size: got=%d want=2", got)
	}

	env := testEnvelope(t, v1.TypeDeviceUpdates)
	r.Broadcast(env)

	for _, c := range []*Client{a, b} {
		select {
		case got := <-c.Send:
			if got.Type != v1.TypeDeviceUpdates {
				t.Fatalf("client %s: type=%q", c.ID, got.Type)
			}
		default:
			t.Fatalf("client %s: no envelope delivered", c.ID)
		}
	}
}

func TestRoom_BroadcastDropsOnFullQueue(t *testing.T) {
	t.Parallel()

	r := NewRoom(testLog(), "s1")

	slow := NewClient("slow", 1)
	r.Join(slow)

	env := testEnvelope(t, v1.TypeMessageUpdates)
	r.Broadcast(env)
	// Queue full: must drop without blocking.
	r.Broadcast(env)

	if got := len(slow.Send); got != 1 {
		t.Fatalf("queued envelopes: got=%d want=1", got)
	}
}

func TestRoom_BroadcastSkipsClosedClients(t *testing.T) {
	t.Parallel()

	r := NewRoom(testLog(), "s1")

	closed := NewClient("closed", 8)
	r.Join(closed)
	closed.Close()

	r.Broadcast(testEnvelope(t, v1.TypeDeviceUpdates))

	if got := len(closed.Send); got != 0 {
		t.Fatalf("closed client must not receive: got=%d", got)
	}
}

func TestRoom_LeaveDoesNotCloseClient(t *testing.T) {
	t.Parallel()

	r := NewRoom(testLog(), "s1")

	c := NewClient("c", 8)
	r.Join(c)
	r.Leave("c")

	if got := r.Size(); got != 0 {
		t.Fatalf("size after leave: got=%d want=0", got)
	}
	select {
	case <-c.Done():
		t.Fatalf("leave must not close the client")
	default:
	}
}

func TestRoom_JoinReplacesSameID(t *testing.T) {
	t.Parallel()

	r := NewRoom(testLog(), "s1")

	first := NewClient("dup", 8)
	second := NewClient("dup", 8)
	r.Join(first)
	r.Join(second)

	if got := r.Size(); got != 1 {
		t.Fatalf("size: got=%d want=1", got)
	}

	r.Broadcast(testEnvelope(t, v1.TypeDeviceUpdates))
	if len(second.Send) != 1 {
		t.Fatalf("replacement member must receive the broadcast")
	}
	if len(first.Send) != 0 {
		t.Fatalf("replaced member must not receive the broadcast")
	}
}

func TestClient_CloseIdempotent(t *testing.T) {
	t.Parallel()

	c := NewClient("c", 8)
	c.Close()
	c.Close()

	select {
	case <-c.Done():
	default:
		t.Fatalf("Done must be closed after Close")
	}
}
