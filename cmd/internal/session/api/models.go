package sessionapi

import "beacon/cmd/internal/session"

// Response message strings are wire-stable: existing clients match on them.

type createSessionRequest struct {
	SessionID string `json:"sessionId"`
}

type statusResponse struct {
	Message string `json:"message"`
}

type deviceResponse struct {
	Message string         `json:"message"`
	Device  session.Device `json:"device"`
}

type messageResponse struct {
	Message    string          `json:"message"`
	MessageObj session.Message `json:"messageObj"`
}

type devicesResponse struct {
	Devices []session.Device `json:"devices"`
}

type messagesResponse struct {
	Messages []session.Message `json:"messages"`
}
