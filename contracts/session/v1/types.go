// Package v1 defines the Beacon session protocol v1 contract.
//
// This package is intentionally stable and dependency-light.
// It is shared between server and clients to keep the wire protocol authoritative.
package v1

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

// Version is the protocol version identifier embedded into every envelope.
const Version = "v1"

// Type constants (wire-stable).
//
// The event names are inherited from the pre-v1 socket protocol and must not
// change: deployed clients dispatch on them verbatim.
const (
	// TypeSessionJoin subscribes the connection to a session's updates (client -> server).
	TypeSessionJoin = "joinSession"

	// TypeDeviceUpdates carries the full current device roster (server -> room members).
	TypeDeviceUpdates = "deviceUpdates"

	// TypeMessageUpdates carries the full current message log (server -> room members).
	TypeMessageUpdates = "messageUpdates"

	// TypeError is a generic error envelope (server -> client).
	TypeError = "error"
)

// Envelope is the canonical wire wrapper.
type Envelope struct {
	V       string          `json:"v"`
	Type    string          `json:"type"`
	ID      string          `json:"id,omitempty"`
	TS      time.Time       `json:"ts,omitempty"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// Validate performs strict structural validation for an Envelope.
func (e Envelope) Validate() error {
	if strings.TrimSpace(e.V) == "" {
		return errors.New("missing field: v")
	}
	if e.V != Version {
		return fmt.Errorf("unsupported protocol version: %q", e.V)
	}
	if strings.TrimSpace(e.Type) == "" {
		return errors.New("missing field: type")
	}

	switch e.Type {
	case TypeSessionJoin,
		TypeDeviceUpdates,
		TypeMessageUpdates,
		TypeError:
		return nil
	default:
		return fmt.Errorf("unknown type: %q", e.Type)
	}
}

// ---- Wire model ----

// Device is the wire representation of one roster entry.
type Device struct {
	ID           string    `json:"id"`
	UserAgent    string    `json:"userAgent"`
	Name         string    `json:"name,omitempty"`
	JoinedAt     time.Time `json:"joinedAt"`
	LastActiveAt time.Time `json:"lastActiveAt"`
}

// MessageStatus is a tagged status variant.
//
// Progress is meaningful when Type is "loading" and Error when Type is
// "error"; the correlation is a convention, not enforced on the wire.
type MessageStatus struct {
	Type     string   `json:"type"`
	Progress *float64 `json:"progress,omitempty"`
	Error    string   `json:"error,omitempty"`
}

// Message is the wire representation of one log entry.
type Message struct {
	ID         string        `json:"id,omitempty"`
	Type       string        `json:"type"`
	Sender     string        `json:"sender"`
	SenderName string        `json:"senderName"`
	SentAt     time.Time     `json:"sentAt"`
	Status     MessageStatus `json:"status"`
	Text       string        `json:"text,omitempty"`
	Filename   string        `json:"filename,omitempty"`
	FileSize   *int64        `json:"fileSize,omitempty"`
}

// ---- Payloads ----

// SessionJoinPayload subscribes the connection to a session's room.
type SessionJoinPayload struct {
	SessionID string `json:"sessionId"`
}

// DeviceUpdatesPayload carries the full device roster after a mutation or on join.
type DeviceUpdatesPayload struct {
	SessionID string   `json:"sessionId"`
	Devices   []Device `json:"devices"`
}

// MessageUpdatesPayload carries the full message log after a mutation or on join.
type MessageUpdatesPayload struct {
	SessionID string    `json:"sessionId"`
	Messages  []Message `json:"messages"`
}

// ErrorPayload is a generic error response payload.
type ErrorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}
