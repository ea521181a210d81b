package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/Rrens/bi-assistant/internal/api/middleware"
	"github.com/Rrens/bi-assistant/internal/api/response"
	"github.com/Rrens/bi-assistant/internal/domain"
	"github.com/Rrens/bi-assistant/internal/service"
)

type SessionHandler struct {
	chatService *service.ChatService
}

func NewSessionHandler(chatService *service.ChatService) *SessionHandler {
	return &SessionHandler{chatService: chatService}
}

// List returns the caller's live sessions
func (h *SessionHandler) List(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserID(r.Context())
	if !ok {
		response.Unauthorized(w, "unauthorized")
		return
	}

	response.OK(w, h.chatService.ListSessions(userID))
}

// Create starts a new session
func (h *SessionHandler) Create(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserID(r.Context())
	if !ok {
		response.Unauthorized(w, "unauthorized")
		return
	}

	var req domain.CreateSessionRequest
	if !decode(w, r, &req) {
		return
	}

	snapshot, err := h.chatService.CreateSession(userID, req.SessionID, req.Persona)
	if err != nil {
		serviceError(w, err)
		return
	}

	response.Created(w, snapshot)
}

// Get returns the exported view of a session
func (h *SessionHandler) Get(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserID(r.Context())
	if !ok {
		response.Unauthorized(w, "unauthorized")
		return
	}

	snapshot, err := h.chatService.GetSession(userID, chi.URLParam(r, "sessionID"))
	if err != nil {
		serviceError(w, err)
		return
	}

	response.OK(w, snapshot)
}

// Delete removes a session
func (h *SessionHandler) Delete(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserID(r.Context())
	if !ok {
		response.Unauthorized(w, "unauthorized")
		return
	}

	if err := h.chatService.DeleteSession(userID, chi.URLParam(r, "sessionID")); err != nil {
		serviceError(w, err)
		return
	}

	response.NoContent(w)
}

// Clear drops a session's history
func (h *SessionHandler) Clear(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserID(r.Context())
	if !ok {
		response.Unauthorized(w, "unauthorized")
		return
	}

	if err := h.chatService.ClearSession(userID, chi.URLParam(r, "sessionID")); err != nil {
		serviceError(w, err)
		return
	}

	response.NoContent(w)
}

// SwitchPersona changes the persona of a session
func (h *SessionHandler) SwitchPersona(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserID(r.Context())
	if !ok {
		response.Unauthorized(w, "unauthorized")
		return
	}

	var req domain.SwitchPersonaRequest
	if !decode(w, r, &req) {
		return
	}

	snapshot, err := h.chatService.SwitchPersona(userID, chi.URLParam(r, "sessionID"), req.Persona, req.ClearHistory)
	if err != nil {
		serviceError(w, err)
		return
	}

	response.OK(w, snapshot)
}

// Import installs an exported session
func (h *SessionHandler) Import(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserID(r.Context())
	if !ok {
		response.Unauthorized(w, "unauthorized")
		return
	}

	var snapshot domain.SessionSnapshot
	if !decode(w, r, &snapshot) {
		return
	}

	imported, err := h.chatService.ImportSession(userID, &snapshot)
	if err != nil {
		serviceError(w, err)
		return
	}

	response.Created(w, imported)
}

// Persist writes a session to the archive
func (h *SessionHandler) Persist(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserID(r.Context())
	if !ok {
		response.Unauthorized(w, "unauthorized")
		return
	}

	sessionID := chi.URLParam(r, "sessionID")
	if err := h.chatService.PersistSession(r.Context(), userID, sessionID); err != nil {
		serviceError(w, err)
		return
	}

	response.OK(w, map[string]string{
		"session_id": sessionID,
		"status":     "archived",
	})
}

// Restore loads a session back from the archive
func (h *SessionHandler) Restore(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserID(r.Context())
	if !ok {
		response.Unauthorized(w, "unauthorized")
		return
	}

	snapshot, err := h.chatService.RestoreSession(r.Context(), userID, chi.URLParam(r, "sessionID"))
	if err != nil {
		serviceError(w, err)
		return
	}

	response.OK(w, snapshot)
}

// Archived lists the caller's archived session ids
func (h *SessionHandler) Archived(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserID(r.Context())
	if !ok {
		response.Unauthorized(w, "unauthorized")
		return
	}

	ids, err := h.chatService.ArchivedSessions(r.Context(), userID)
	if err != nil {
		serviceError(w, err)
		return
	}

	response.OK(w, map[string]any{"sessions": ids})
}

// Stats returns registry-wide session statistics
func (h *SessionHandler) Stats(w http.ResponseWriter, r *http.Request) {
	response.OK(w, h.chatService.SessionStatistics())
}
