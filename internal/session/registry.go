// Package session holds per-session conversational state: a bounded
// interaction history, referenced entities and the active persona, with
// idle-timeout expiry.
package session

import (
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/Rrens/bi-assistant/internal/domain"
)

var (
	ErrInvalidMaxHistory  = errors.New("max history must be positive")
	ErrInvalidIdleTimeout = errors.New("idle timeout must be positive")
	ErrInvalidPersona     = errors.New("invalid persona")
)

// Registry maps session ids to their Context.
//
// The registry lock guards the map. Each Context carries its own lock, so
// turns on different sessions only share the registry read lock while turns
// on the same session are serialized. Creating, deleting and reaping take
// the write lock.
type Registry struct {
	mu          sync.RWMutex
	sessions    map[string]*Context
	maxHistory  int
	idleTimeout time.Duration
	clock       clockwork.Clock
}

// NewRegistry creates a registry keeping at most maxHistory interactions per
// session and expiring sessions idle longer than idleTimeout
func NewRegistry(maxHistory int, idleTimeout time.Duration, clock clockwork.Clock) (*Registry, error) {
	if maxHistory <= 0 {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidMaxHistory, maxHistory)
	}
	if idleTimeout <= 0 {
		return nil, fmt.Errorf("%w: got %s", ErrInvalidIdleTimeout, idleTimeout)
	}
	if clock == nil {
		clock = clockwork.NewRealClock()
	}

	return &Registry{
		sessions:    make(map[string]*Context),
		maxHistory:  maxHistory,
		idleTimeout: idleTimeout,
		clock:       clock,
	}, nil
}

// CreateSession starts a fresh session, replacing any existing one with the same id
func (r *Registry) CreateSession(sessionID, userID string, persona domain.Persona) (*Context, error) {
	if !persona.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidPersona, persona)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	ctx := newContext(sessionID, userID, persona, r.maxHistory, r.clock.Now())
	r.sessions[sessionID] = ctx
	return ctx, nil
}

// GetOrCreateSession returns the live session for sessionID or creates one.
// persona and userID only apply when a new session is created, but persona
// must be valid either way.
func (r *Registry) GetOrCreateSession(sessionID, userID string, persona domain.Persona) (*Context, error) {
	if !persona.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidPersona, persona)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.clock.Now()
	if ctx, ok := r.sessions[sessionID]; ok && !ctx.expired(now, r.idleTimeout) {
		return ctx, nil
	}

	ctx := newContext(sessionID, userID, persona, r.maxHistory, now)
	r.sessions[sessionID] = ctx
	return ctx, nil
}

// GetSession returns the session if it exists and is not idle-expired. An
// expired session is removed. Reading does not count as activity.
func (r *Registry) GetSession(sessionID string) (*Context, bool) {
	r.mu.RLock()
	ctx, ok := r.sessions[sessionID]
	r.mu.RUnlock()

	if !ok {
		return nil, false
	}
	if !ctx.expired(r.clock.Now(), r.idleTimeout) {
		return ctx, true
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	cur, ok := r.sessions[sessionID]
	if !ok {
		return nil, false
	}
	if !cur.expired(r.clock.Now(), r.idleTimeout) {
		return cur, true
	}
	delete(r.sessions, sessionID)
	return nil, false
}

// withLive runs fn against a live session while holding the registry read lock
func (r *Registry) withLive(sessionID string, fn func(*Context)) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ctx, ok := r.sessions[sessionID]
	if !ok || ctx.expired(r.clock.Now(), r.idleTimeout) {
		return false
	}
	fn(ctx)
	return true
}

// AddInteraction appends an exchange to the session history, dropping the
// oldest entries beyond the history limit, and marks the session active.
// It returns false when the session does not exist or has expired.
func (r *Registry) AddInteraction(sessionID, query, response, intent string, metadata map[string]any) bool {
	return r.withLive(sessionID, func(ctx *Context) {
		ctx.addInteraction(domain.NewInteraction(query, response, intent, metadata, r.clock.Now()))
	})
}

// SwitchPersona changes the session persona. With clearHistory the history
// and referenced entities are dropped as well; id and creation time survive.
func (r *Registry) SwitchPersona(sessionID string, persona domain.Persona, clearHistory bool) bool {
	if !persona.Valid() {
		return false
	}
	return r.withLive(sessionID, func(ctx *Context) {
		ctx.switchPersona(persona, clearHistory)
	})
}

// AddReferencedEntity records an entity the conversation is about
func (r *Registry) AddReferencedEntity(sessionID, entityType, entityID string, value any) bool {
	return r.withLive(sessionID, func(ctx *Context) {
		ctx.addEntity(entityType, entityID, value)
	})
}

// ClearSession empties history and entities but keeps the session
func (r *Registry) ClearSession(sessionID string) bool {
	return r.withLive(sessionID, func(ctx *Context) {
		ctx.reset()
	})
}

// DeleteSession removes the session and reports whether it existed
func (r *Registry) DeleteSession(sessionID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.sessions[sessionID]; !ok {
		return false
	}
	delete(r.sessions, sessionID)
	return true
}

// CleanupExpiredSessions removes every idle-expired session and returns how
// many were removed
func (r *Registry) CleanupExpiredSessions() int {
	r.mu.RLock()
	now := r.clock.Now()
	var expired []string
	for id, ctx := range r.sessions {
		if ctx.expired(now, r.idleTimeout) {
			expired = append(expired, id)
		}
	}
	r.mu.RUnlock()

	if len(expired) == 0 {
		return 0
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	now = r.clock.Now()
	removed := 0
	for _, id := range expired {
		ctx, ok := r.sessions[id]
		if !ok || !ctx.expired(now, r.idleTimeout) {
			continue
		}
		delete(r.sessions, id)
		removed++
	}
	return removed
}

// live returns the unexpired sessions
func (r *Registry) live() []*Context {
	r.mu.RLock()
	defer r.mu.RUnlock()

	now := r.clock.Now()
	out := make([]*Context, 0, len(r.sessions))
	for _, ctx := range r.sessions {
		if !ctx.expired(now, r.idleTimeout) {
			out = append(out, ctx)
		}
	}
	return out
}

// ActiveSessionCount returns the number of unexpired sessions
func (r *Registry) ActiveSessionCount() int {
	return len(r.live())
}

// UserSessions returns the ids of the user's live sessions, most recently
// active first
func (r *Registry) UserSessions(userID string) []string {
	var owned []*Context
	for _, ctx := range r.live() {
		if ctx.UserID() == userID {
			owned = append(owned, ctx)
		}
	}

	sort.Slice(owned, func(i, j int) bool {
		ai, aj := owned[i].LastActivityAt(), owned[j].LastActivityAt()
		if ai.Equal(aj) {
			return owned[i].ID() < owned[j].ID()
		}
		return ai.After(aj)
	})

	ids := make([]string, len(owned))
	for i, ctx := range owned {
		ids[i] = ctx.ID()
	}
	return ids
}

// Statistics summarises the live sessions
func (r *Registry) Statistics() domain.SessionStatistics {
	sessions := r.live()

	stats := domain.SessionStatistics{ActiveSessions: len(sessions)}
	for _, ctx := range sessions {
		stats.TotalInteractions += ctx.InteractionCount()
	}
	if stats.ActiveSessions > 0 {
		stats.AvgInteractionsPerSession = float64(stats.TotalInteractions) / float64(stats.ActiveSessions)
	}
	return stats
}

// ExportSession returns a serializable copy of the session
func (r *Registry) ExportSession(sessionID string) (*domain.SessionSnapshot, bool) {
	ctx, ok := r.GetSession(sessionID)
	if !ok {
		return nil, false
	}
	return ctx.snapshot(), true
}

// ImportSession installs a session from a snapshot, replacing any session
// with the same id. History beyond the limit keeps the newest entries. The
// last activity time is taken from LastQueryTime (never earlier than
// CreatedAt), so a snapshot older than the idle timeout imports as an
// already expired session. It returns false for snapshots without an id or
// with an unknown persona.
func (r *Registry) ImportSession(snapshot *domain.SessionSnapshot) bool {
	if !importable(snapshot) {
		return false
	}

	lastActivity := snapshot.LastQueryTime
	if snapshot.CreatedAt.After(lastActivity) {
		lastActivity = snapshot.CreatedAt
	}
	if lastActivity.IsZero() {
		lastActivity = r.clock.Now()
	}
	r.install(snapshot, lastActivity)
	return true
}

// RestoreSession installs a session from a snapshot like ImportSession, but
// counts the restore as activity so the session starts a new idle window.
func (r *Registry) RestoreSession(snapshot *domain.SessionSnapshot) bool {
	if !importable(snapshot) {
		return false
	}
	r.install(snapshot, r.clock.Now())
	return true
}

func importable(snapshot *domain.SessionSnapshot) bool {
	return snapshot != nil && snapshot.SessionID != "" && snapshot.Persona.Valid()
}

func (r *Registry) install(snapshot *domain.SessionSnapshot, lastActivity time.Time) {
	ctx := newContext(snapshot.SessionID, snapshot.UserID, snapshot.Persona, r.maxHistory, lastActivity)
	if !snapshot.CreatedAt.IsZero() {
		ctx.createdAt = snapshot.CreatedAt
	}

	history := snapshot.History
	if len(history) > r.maxHistory {
		history = history[len(history)-r.maxHistory:]
	}
	for _, in := range history {
		ctx.history = append(ctx.history, in.Clone())
	}
	ctx.entities = cloneEntities(snapshot.ReferencedEntities)

	r.mu.Lock()
	defer r.mu.Unlock()
	r.sessions[snapshot.SessionID] = ctx
}
