package domain

import (
	"context"
	"errors"
	"time"
)

// ErrSnapshotNotFound is returned by archives when no snapshot exists for an id
var ErrSnapshotNotFound = errors.New("session snapshot not found")

// SessionSnapshot is the plain, JSON-serializable form of a session used for
// export/import and by the archive backends.
type SessionSnapshot struct {
	SessionID          string                    `json:"session_id"`
	UserID             string                    `json:"user_id,omitempty"`
	Persona            Persona                   `json:"persona"`
	History            []Interaction             `json:"history"`
	ReferencedEntities map[string]map[string]any `json:"referenced_entities"`
	LastQueryTime      time.Time                 `json:"last_query_time"`
	CreatedAt          time.Time                 `json:"created_at"`
}

// SessionSummary is the list view of a live session
type SessionSummary struct {
	SessionID     string    `json:"session_id"`
	Persona       Persona   `json:"persona"`
	Interactions  int       `json:"interactions"`
	LastQueryTime time.Time `json:"last_query_time"`
	CreatedAt     time.Time `json:"created_at"`
}

// SessionStatistics summarises the live session registry
type SessionStatistics struct {
	ActiveSessions            int     `json:"active_sessions"`
	TotalInteractions         int     `json:"total_interactions"`
	AvgInteractionsPerSession float64 `json:"avg_interactions_per_session"`
}

// SessionArchive persists exported sessions outside the process
type SessionArchive interface {
	Save(ctx context.Context, snapshot *SessionSnapshot) error
	Load(ctx context.Context, sessionID string) (*SessionSnapshot, error)
	Delete(ctx context.Context, sessionID string) error
	ListByUser(ctx context.Context, userID string, limit int) ([]string, error)
	Ping(ctx context.Context) error
	Close() error
}

// CreateSessionRequest starts a session explicitly
type CreateSessionRequest struct {
	SessionID string `json:"session_id,omitempty" validate:"omitempty,max=128"`
	Persona   string `json:"persona" validate:"required"`
}

// SwitchPersonaRequest changes the persona of a live session
type SwitchPersonaRequest struct {
	Persona      string `json:"persona" validate:"required"`
	ClearHistory bool   `json:"clear_history"`
}

// InvalidateCacheRequest selects cached answers to drop, by persona or by
// key substring
type InvalidateCacheRequest struct {
	Pattern string `json:"pattern,omitempty" validate:"required_without=Persona"`
	Persona string `json:"persona,omitempty" validate:"required_without=Pattern"`
}
