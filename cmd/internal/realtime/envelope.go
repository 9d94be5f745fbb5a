package realtime

import (
	"encoding/json"
	"time"

	"beacon/cmd/internal/session"
	v1 "beacon/contracts/session/v1"
)

// Envelope construction and the domain -> wire conversions. The wire model
// is kept separate from the session package so the contract stays
// dependency-light and the domain types stay free to evolve.

func newEnvelope(typ string, payload json.RawMessage, ts time.Time) v1.Envelope {
	return v1.Envelope{
		V:       v1.Version,
		Type:    typ,
		ID:      NewEnvelopeID(ts),
		TS:      ts,
		Payload: payload,
	}
}

func newDeviceUpdates(sessionID string, devices []session.Device) (v1.Envelope, error) {
	payload, err := json.Marshal(v1.DeviceUpdatesPayload{
		SessionID: sessionID,
		Devices:   toWireDevices(devices),
	})
	if err != nil {
		return v1.Envelope{}, err
	}
	return newEnvelope(v1.TypeDeviceUpdates, payload, time.Now().UTC()), nil
}

func newMessageUpdates(sessionID string, messages []session.Message) (v1.Envelope, error) {
	payload, err := json.Marshal(v1.MessageUpdatesPayload{
		SessionID: sessionID,
		Messages:  toWireMessages(messages),
	})
	if err != nil {
		return v1.Envelope{}, err
	}
	return newEnvelope(v1.TypeMessageUpdates, payload, time.Now().UTC()), nil
}

func toWireDevices(devices []session.Device) []v1.Device {
	out := make([]v1.Device, 0, len(devices))
	for _, d := range devices {
		out = append(out, v1.Device{
			ID:           d.ID,
			UserAgent:    d.UserAgent,
			Name:         d.Name,
			JoinedAt:     d.JoinedAt,
			LastActiveAt: d.LastActiveAt,
		})
	}
	return out
}

func toWireMessages(messages []session.Message) []v1.Message {
	out := make([]v1.Message, 0, len(messages))
	for _, m := range messages {
		out = append(out, v1.Message{
			ID:         m.ID,
			Type:       m.Type,
			Sender:     m.Sender,
			SenderName: m.SenderName,
			SentAt:     m.SentAt,
			Status: v1.MessageStatus{
				Type:     m.Status.Type,
				Progress: m.Status.Progress,
				Error:    m.Status.Error,
			},
			Text:     m.Text,
			Filename: m.Filename,
			FileSize: m.FileSize,
		})
	}
	return out
}
