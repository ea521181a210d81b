package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/Rrens/bi-assistant/internal/api/handler"
	customMiddleware "github.com/Rrens/bi-assistant/internal/api/middleware"
	"github.com/Rrens/bi-assistant/internal/security"
	"github.com/Rrens/bi-assistant/internal/service"
)

// RouterConfig carries what the router needs beyond the chat service
type RouterConfig struct {
	JWTManager     *security.JWTManager
	RateLimiter    customMiddleware.Limiter // nil disables rate limiting
	AllowedOrigins []string
	RequestTimeout time.Duration
}

// NewRouter creates and configures the HTTP router
func NewRouter(cfg RouterConfig, chatService *service.ChatService) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(customMiddleware.Logger)
	r.Use(middleware.Recoverer)
	if cfg.RequestTimeout > 0 {
		r.Use(middleware.Timeout(cfg.RequestTimeout))
	}

	// CORS
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"X-Request-ID", "X-RateLimit-Remaining", "X-RateLimit-Reset"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	chatHandler := handler.NewChatHandler(chatService)
	sessionHandler := handler.NewSessionHandler(chatService)
	cacheHandler := handler.NewCacheHandler(chatService)

	authMiddleware := customMiddleware.NewAuthMiddleware(cfg.JWTManager)

	r.Route("/api/v1", func(r chi.Router) {
		// Health check
		r.Get("/health", handler.HealthCheck)
		r.Get("/ready", handler.ReadyCheck(chatService))

		// Protected routes
		r.Group(func(r chi.Router) {
			r.Use(authMiddleware.Authenticate)

			r.Group(func(r chi.Router) {
				if cfg.RateLimiter != nil {
					r.Use(customMiddleware.NewRateLimitMiddleware(cfg.RateLimiter).Limit)
				}
				r.Post("/chat", chatHandler.Chat)
			})

			r.Route("/sessions", func(r chi.Router) {
				r.Get("/", sessionHandler.List)
				r.Post("/", sessionHandler.Create)
				r.Get("/stats", sessionHandler.Stats)
				r.Get("/archived", sessionHandler.Archived)
				r.Post("/import", sessionHandler.Import)

				r.Route("/{sessionID}", func(r chi.Router) {
					r.Get("/", sessionHandler.Get)
					r.Delete("/", sessionHandler.Delete)
					r.Post("/clear", sessionHandler.Clear)
					r.Post("/persona", sessionHandler.SwitchPersona)
					r.Post("/persist", sessionHandler.Persist)
					r.Post("/restore", sessionHandler.Restore)
				})
			})

			r.Route("/cache", func(r chi.Router) {
				r.Get("/stats", cacheHandler.Stats)
				r.Get("/summary", cacheHandler.Summary)
				r.Post("/invalidate", cacheHandler.Invalidate)
				r.Post("/flush", cacheHandler.Flush)
			})
		})
	})

	return r
}
