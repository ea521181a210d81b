package handler

import (
	"net/http"

	"github.com/Rrens/bi-assistant/internal/api/response"
	"github.com/Rrens/bi-assistant/internal/cache"
	"github.com/Rrens/bi-assistant/internal/domain"
	"github.com/Rrens/bi-assistant/internal/service"
)

// CacheHandler exposes result cache statistics and management
type CacheHandler struct {
	chatService *service.ChatService
}

// NewCacheHandler creates a new cache handler
func NewCacheHandler(chatService *service.ChatService) *CacheHandler {
	return &CacheHandler{chatService: chatService}
}

// Stats returns the live counters and the tracker aggregate
func (h *CacheHandler) Stats(w http.ResponseWriter, r *http.Request) {
	current := h.chatService.CacheStats()
	response.OK(w, map[string]any{
		"current":    current,
		"aggregated": h.chatService.AggregatedStats(),
		"rating":     cache.Rating(current.HitRate),
	})
}

// Summary returns the human-readable performance report
func (h *CacheHandler) Summary(w http.ResponseWriter, r *http.Request) {
	response.OK(w, map[string]string{
		"summary": h.chatService.PerformanceSummary(),
	})
}

// Invalidate drops cached answers by persona or key pattern
func (h *CacheHandler) Invalidate(w http.ResponseWriter, r *http.Request) {
	var req domain.InvalidateCacheRequest
	if !decode(w, r, &req) {
		return
	}

	var removed int
	if req.Persona != "" {
		n, err := h.chatService.InvalidatePersona(req.Persona)
		if err != nil {
			serviceError(w, err)
			return
		}
		removed = n
	} else {
		removed = h.chatService.InvalidatePattern(req.Pattern)
	}

	response.OK(w, map[string]any{
		"entries_removed": removed,
	})
}

// Flush empties the result cache
func (h *CacheHandler) Flush(w http.ResponseWriter, r *http.Request) {
	h.chatService.FlushCache()
	response.OK(w, map[string]any{
		"message": "cache flushed successfully",
	})
}
