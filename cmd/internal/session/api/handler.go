// Package sessionapi exposes the session operations over HTTP.
//
// It is a thin routing layer: every handler delegates to the session
// service and this package is the only place internal errors are mapped to
// HTTP statuses.
package sessionapi

import (
	"errors"
	"log/slog"
	"net/http"

	"beacon/cmd/internal/session"
)

const maxBodyBytes = 1 << 20 // 1 MiB

// Handler serves the /session HTTP surface.
type Handler struct {
	log *slog.Logger
	svc *session.Service
}

// NewHandler constructs the HTTP handler over the session service.
func NewHandler(log *slog.Logger, svc *session.Service) *Handler {
	return &Handler{log: log, svc: svc}
}

// Register mounts all session routes on mux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("POST /session", h.handleCreate)
	mux.HandleFunc("DELETE /session/{sessionId}", h.handleDelete)
	mux.HandleFunc("POST /session/{sessionId}/device", h.handleDeviceUpsert)
	mux.HandleFunc("POST /session/{sessionId}/message", h.handleMessageAppend)
	mux.HandleFunc("GET /session/{sessionId}/devices", h.handleDevices)
	mux.HandleFunc("GET /session/{sessionId}/messages", h.handleMessages)
}

func (h *Handler) handleCreate(w http.ResponseWriter, r *http.Request) {
	var req createSessionRequest
	if err := decodeJSON(w, r, maxBodyBytes, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}

	if _, err := h.svc.Ensure(r.Context(), req.SessionID); err != nil {
		h.writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, statusResponse{Message: "Session ready"})
}

func (h *Handler) handleDelete(w http.ResponseWriter, r *http.Request) {
	sessionID := r.PathValue("sessionId")

	if err := h.svc.Delete(r.Context(), sessionID); err != nil {
		h.writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, statusResponse{Message: "Session deleted"})
}

func (h *Handler) handleDeviceUpsert(w http.ResponseWriter, r *http.Request) {
	sessionID := r.PathValue("sessionId")

	var in session.DeviceInput
	if err := decodeJSON(w, r, maxBodyBytes, &in); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}

	dev, _, err := h.svc.UpsertDevice(r.Context(), sessionID, in)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, deviceResponse{Message: "Device added", Device: dev})
}

func (h *Handler) handleMessageAppend(w http.ResponseWriter, r *http.Request) {
	sessionID := r.PathValue("sessionId")

	var msg session.Message
	if err := decodeJSON(w, r, maxBodyBytes, &msg); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}

	stored, _, err := h.svc.AppendMessage(r.Context(), sessionID, msg)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, messageResponse{Message: "Message added", MessageObj: stored})
}

func (h *Handler) handleDevices(w http.ResponseWriter, r *http.Request) {
	sessionID := r.PathValue("sessionId")

	devices, err := h.svc.Devices(r.Context(), sessionID)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, devicesResponse{Devices: devices})
}

func (h *Handler) handleMessages(w http.ResponseWriter, r *http.Request) {
	sessionID := r.PathValue("sessionId")

	messages, err := h.svc.Messages(r.Context(), sessionID)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, messagesResponse{Messages: messages})
}

// writeServiceError is the single mapping from service errors to HTTP.
// Validation -> 400, absent session -> 404, everything else (storage
// failures included) -> 500. Storage failures are fatal for the single
// operation only; nothing was broadcast for them.
func (h *Handler) writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, session.ErrMissingSessionID):
		writeError(w, http.StatusBadRequest, "invalid_request", session.ErrMissingSessionID.Error())
	case errors.Is(err, session.ErrMissingDeviceID):
		writeError(w, http.StatusBadRequest, "invalid_request", session.ErrMissingDeviceID.Error())
	case errors.Is(err, session.ErrSessionNotFound):
		writeError(w, http.StatusNotFound, "not_found", "Session not found")
	default:
		h.log.Error("api.internal", "err", err)
		writeError(w, http.StatusInternalServerError, "internal", "internal error")
	}
}
