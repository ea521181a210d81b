package handler

import (
	"context"
	"net/http"

	"github.com/Rrens/bi-assistant/internal/api/response"
)

// Pinger is anything the readiness check should ping
type Pinger interface {
	Ping(ctx context.Context) error
}

// HealthCheck returns a simple health check response
func HealthCheck(w http.ResponseWriter, r *http.Request) {
	response.OK(w, map[string]string{
		"status": "ok",
	})
}

// ReadyCheck returns readiness status including archive connectivity
func ReadyCheck(deps Pinger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := deps.Ping(r.Context()); err != nil {
			response.ServiceUnavailable(w, "session archive not ready")
			return
		}

		response.OK(w, map[string]string{
			"status": "ready",
		})
	}
}
