package handler

import (
	"net/http"

	"github.com/Rrens/bi-assistant/internal/api/middleware"
	"github.com/Rrens/bi-assistant/internal/api/response"
	"github.com/Rrens/bi-assistant/internal/domain"
	"github.com/Rrens/bi-assistant/internal/service"
)

// ChatHandler handles conversational turns
type ChatHandler struct {
	chatService *service.ChatService
}

// NewChatHandler creates a new chat handler
func NewChatHandler(chatService *service.ChatService) *ChatHandler {
	return &ChatHandler{chatService: chatService}
}

// Chat answers one question within a session
func (h *ChatHandler) Chat(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserID(r.Context())
	if !ok {
		response.Unauthorized(w, "unauthorized")
		return
	}

	var req domain.ChatRequest
	if !decode(w, r, &req) {
		return
	}

	result, err := h.chatService.Chat(r.Context(), userID, req)
	if err != nil {
		serviceError(w, err)
		return
	}

	response.OK(w, result)
}
