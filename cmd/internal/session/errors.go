package session

import "errors"

var (
	// ErrSessionNotFound is returned when an operation targets a session id
	// with no stored document.
	ErrSessionNotFound = errors.New("session not found")

	// ErrMissingSessionID is returned when a caller omits the session id.
	ErrMissingSessionID = errors.New("sessionId required")

	// ErrMissingDeviceID is returned when a device upsert omits the device id.
	ErrMissingDeviceID = errors.New("device id required")
)
