package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/Rrens/bi-assistant/internal/security"
)

func okHandler(t *testing.T, wantUser string) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userID, ok := GetUserID(r.Context())
		assert.True(t, ok)
		assert.Equal(t, wantUser, userID)
		w.WriteHeader(http.StatusOK)
	})
}

func TestAuthenticate(t *testing.T) {
	manager := security.NewJWTManager("test-secret-key-with-32-chars!!", time.Minute)
	token, err := manager.GenerateAccessToken("u1", "u1@example.com", "field_engineer")
	assert.NoError(t, err)

	h := NewAuthMiddleware(manager).Authenticate(okHandler(t, "u1"))

	tests := []struct {
		name   string
		header string
		want   int
	}{
		{"valid", "Bearer " + token, http.StatusOK},
		{"missing", "", http.StatusUnauthorized},
		{"wrong scheme", "Basic " + token, http.StatusUnauthorized},
		{"garbage", "Bearer nope", http.StatusUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)
			assert.Equal(t, tt.want, rec.Code)
		})
	}
}

type fakeLimiter struct {
	allowed bool
	err     error
}

func (f fakeLimiter) Allow(ctx context.Context, key string) (bool, int, time.Time, error) {
	return f.allowed, 3, time.Date(2024, 3, 1, 9, 31, 0, 0, time.UTC), f.err
}

func (f fakeLimiter) Limit() int { return 70 }

func TestRateLimit(t *testing.T) {
	tests := []struct {
		name    string
		limiter fakeLimiter
		want    int
		headers bool
	}{
		{"allowed", fakeLimiter{allowed: true}, http.StatusOK, true},
		{"exceeded", fakeLimiter{allowed: false}, http.StatusTooManyRequests, true},
		{"limiter down fails open", fakeLimiter{err: errors.New("redis down")}, http.StatusOK, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := NewRateLimitMiddleware(tt.limiter).Limit(okHandler(t, "u1"))
			req := httptest.NewRequest(http.MethodPost, "/chat", nil)
			req = req.WithContext(WithUser(req.Context(), "u1", ""))
			rec := httptest.NewRecorder()

			h.ServeHTTP(rec, req)

			assert.Equal(t, tt.want, rec.Code)
			if tt.headers {
				assert.Equal(t, "70", rec.Header().Get("X-RateLimit-Limit"))
				assert.Equal(t, "3", rec.Header().Get("X-RateLimit-Remaining"))
				assert.Equal(t, "2024-03-01T09:31:00Z", rec.Header().Get("X-RateLimit-Reset"))
			}
		})
	}
}

func TestRateLimit_RequiresUser(t *testing.T) {
	h := NewRateLimitMiddleware(fakeLimiter{allowed: true}).Limit(http.NotFoundHandler())
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/chat", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestLogger_PassesThrough(t *testing.T) {
	h := Logger(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/x", nil))
	assert.Equal(t, http.StatusTeapot, rec.Code)
}
