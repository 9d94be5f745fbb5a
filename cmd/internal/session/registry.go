package session

import "time"

// Mutation rules over a Session document.
//
// These are pure: they operate on a document already loaded by the caller
// and return the mutated list for the caller to persist. "now" is passed
// explicitly so the rules stay deterministic under test.

// defaultUserAgent is recorded when a caller does not report one.
const defaultUserAgent = "unknown"

// DeviceInput carries caller-supplied device fields. Zero values take
// defaults during ResolveDevice.
type DeviceInput struct {
	ID           string    `json:"id"`
	UserAgent    string    `json:"userAgent"`
	Name         string    `json:"name"`
	JoinedAt     time.Time `json:"joinedAt"`
	LastActiveAt time.Time `json:"lastActiveAt"`
}

// ResolveDevice turns caller input into a canonical Device.
//
// ID is required. UserAgent defaults to "unknown"; JoinedAt and
// LastActiveAt default to now when the caller leaves them unset.
func ResolveDevice(in DeviceInput, now time.Time) (Device, error) {
	if in.ID == "" {
		return Device{}, ErrMissingDeviceID
	}

	dev := Device{
		ID:           in.ID,
		UserAgent:    in.UserAgent,
		Name:         in.Name,
		JoinedAt:     in.JoinedAt,
		LastActiveAt: in.LastActiveAt,
	}
	if dev.UserAgent == "" {
		dev.UserAgent = defaultUserAgent
	}
	if dev.JoinedAt.IsZero() {
		dev.JoinedAt = now
	}
	if dev.LastActiveAt.IsZero() {
		dev.LastActiveAt = now
	}
	return dev, nil
}

// UpsertDevice replaces any roster entry sharing dev's ID and appends dev.
//
// Replacement is remove-then-append: a repeated upsert moves the device to
// the end of the roster. Last-write-wins per device identity.
func UpsertDevice(s *Session, dev Device) []Device {
	kept := make([]Device, 0, len(s.Devices)+1)
	for _, d := range s.Devices {
		if d.ID != dev.ID {
			kept = append(kept, d)
		}
	}
	s.Devices = append(kept, dev)
	return s.Devices
}

// AppendMessage appends msg to the session log, defaulting SentAt to now
// when unset. The payload is stored verbatim; no field validation is
// performed here, including the MessageStatus tag/field convention.
func AppendMessage(s *Session, msg Message, now time.Time) []Message {
	if msg.SentAt.IsZero() {
		msg.SentAt = now
	}
	s.Messages = append(s.Messages, msg)
	return s.Messages
}
