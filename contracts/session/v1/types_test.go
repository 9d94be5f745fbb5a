package v1

import (
	"encoding/json"
	"testing"
	"time"
)

func TestEnvelopeValidate(t *testing.T) {
	t.Parallel()

	valid := Envelope{V: Version, Type: TypeSessionJoin, ID: "e1", TS: time.Now().UTC()}
	if err := valid.Validate(); err != nil {
		t.Fatalf("valid envelope rejected: %v", err)
	}

	cases := []struct {
		name string
		env  Envelope
	}{
		{name: "missing v", env: Envelope{Type: TypeSessionJoin}},
		{name: "wrong version", env: Envelope{V: "v2", Type: TypeSessionJoin}},
		{name: "missing type", env: Envelope{V: Version}},
		{name: "unknown type", env: Envelope{V: Version, Type: "selfDestruct"}},
	}
	for _, tc := range cases {
		if err := tc.env.Validate(); err == nil {
			t.Fatalf("%s: expected error", tc.name)
		}
	}
}

func TestEnvelopeValidate_AllKnownTypes(t *testing.T) {
	t.Parallel()

	for _, typ := range []string{TypeSessionJoin, TypeDeviceUpdates, TypeMessageUpdates, TypeError} {
		env := Envelope{V: Version, Type: typ}
		if err := env.Validate(); err != nil {
			t.Fatalf("type %q rejected: %v", typ, err)
		}
	}
}

func TestDeviceUpdatesPayload_WireShape(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	p := DeviceUpdatesPayload{
		SessionID: "s1",
		Devices: []Device{
			{ID: "d1", UserAgent: "ua", JoinedAt: now, LastActiveAt: now},
		},
	}

	b, err := json.Marshal(p)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	// Field names are wire-stable camelCase.
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(b, &raw); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	for _, key := range []string{"sessionId", "devices"} {
		if _, ok := raw[key]; !ok {
			t.Fatalf("missing wire key %q in %s", key, b)
		}
	}

	var dev map[string]json.RawMessage
	var devices []json.RawMessage
	if err := json.Unmarshal(raw["devices"], &devices); err != nil {
		t.Fatalf("unmarshal devices: %v", err)
	}
	if err := json.Unmarshal(devices[0], &dev); err != nil {
		t.Fatalf("unmarshal device: %v", err)
	}
	for _, key := range []string{"id", "userAgent", "joinedAt", "lastActiveAt"} {
		if _, ok := dev[key]; !ok {
			t.Fatalf("missing device wire key %q in %s", key, devices[0])
		}
	}
}

func TestMessageStatus_OmitsEmptyVariantFields(t *testing.T) {
	t.Parallel()

	b, err := json.Marshal(MessageStatus{Type: "loaded"})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if string(b) != `{"type":"loaded"}` {
		t.Fatalf("status shape: %s", b)
	}

	progress := 0.5
	b, err = json.Marshal(MessageStatus{Type: "loading", Progress: &progress})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if string(b) != `{"type":"loading","progress":0.5}` {
		t.Fatalf("status shape: %s", b)
	}
}
