package session

import (
	"fmt"
	"maps"
	"strings"
	"sync"
	"time"

	"github.com/Rrens/bi-assistant/internal/domain"
)

// Context is the conversational state of one chat session. The Registry owns
// every Context; callers may read through the accessors but must not hold a
// Context past a Delete or cleanup.
type Context struct {
	mu sync.Mutex

	id         string
	userID     string
	persona    domain.Persona
	history    []domain.Interaction
	entities   map[string]map[string]any
	maxHistory int

	createdAt      time.Time
	lastActivityAt time.Time
}

func newContext(id, userID string, persona domain.Persona, maxHistory int, now time.Time) *Context {
	return &Context{
		id:             id,
		userID:         userID,
		persona:        persona,
		history:        make([]domain.Interaction, 0, maxHistory),
		entities:       make(map[string]map[string]any),
		maxHistory:     maxHistory,
		createdAt:      now,
		lastActivityAt: now,
	}
}

// ID returns the session id
func (c *Context) ID() string {
	return c.id
}

// UserID returns the owning user, empty for anonymous sessions
func (c *Context) UserID() string {
	return c.userID
}

// Persona returns the current persona
func (c *Context) Persona() domain.Persona {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.persona
}

// CreatedAt returns when the session started
func (c *Context) CreatedAt() time.Time {
	return c.createdAt
}

// LastActivityAt returns when the last interaction was recorded
func (c *Context) LastActivityAt() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastActivityAt
}

// History returns a copy of the interactions, oldest first
func (c *Context) History() []domain.Interaction {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make([]domain.Interaction, len(c.history))
	for i, in := range c.history {
		out[i] = in.Clone()
	}
	return out
}

// InteractionCount returns the number of retained interactions
func (c *Context) InteractionCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.history)
}

// LastInteraction returns the most recent interaction, if any
func (c *Context) LastInteraction() (domain.Interaction, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if len(c.history) == 0 {
		return domain.Interaction{}, false
	}
	return c.history[len(c.history)-1].Clone(), true
}

// ReferencedEntity looks up an entity previously recorded for this session
func (c *Context) ReferencedEntity(entityType, entityID string) (any, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	byID, ok := c.entities[entityType]
	if !ok {
		return nil, false
	}
	v, ok := byID[entityID]
	return v, ok
}

// ReferencedEntities returns a copy of all recorded entities keyed by type, then id
func (c *Context) ReferencedEntities() map[string]map[string]any {
	c.mu.Lock()
	defer c.mu.Unlock()
	return cloneEntities(c.entities)
}

// Transcript renders the last n interactions as a plain conversation
// transcript for the query planner. n <= 0 renders the whole history.
func (c *Context) Transcript(n int) string {
	c.mu.Lock()
	defer c.mu.Unlock()

	recent := c.history
	if n > 0 && len(recent) > n {
		recent = recent[len(recent)-n:]
	}

	var b strings.Builder
	for _, in := range recent {
		fmt.Fprintf(&b, "User: %s\nAssistant: %s\n", in.Query, in.Response)
	}
	return b.String()
}

func (c *Context) addInteraction(in domain.Interaction) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.history = append(c.history, in)
	if over := len(c.history) - c.maxHistory; over > 0 {
		copy(c.history, c.history[over:])
		clear(c.history[len(c.history)-over:])
		c.history = c.history[:len(c.history)-over]
	}
	if len(c.history) > c.maxHistory {
		panic(fmt.Sprintf("session %s: history length %d exceeds %d", c.id, len(c.history), c.maxHistory))
	}

	if in.Timestamp.After(c.lastActivityAt) {
		c.lastActivityAt = in.Timestamp
	}
}

func (c *Context) switchPersona(persona domain.Persona, clearHistory bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.persona = persona
	if clearHistory {
		c.resetLocked()
	}
}

func (c *Context) reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.resetLocked()
}

func (c *Context) resetLocked() {
	c.history = make([]domain.Interaction, 0, c.maxHistory)
	c.entities = make(map[string]map[string]any)
}

func (c *Context) addEntity(entityType, entityID string, value any) {
	c.mu.Lock()
	defer c.mu.Unlock()

	byID, ok := c.entities[entityType]
	if !ok {
		byID = make(map[string]any)
		c.entities[entityType] = byID
	}
	byID[entityID] = value
}

func (c *Context) expired(now time.Time, idleTimeout time.Duration) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return now.Sub(c.lastActivityAt) > idleTimeout
}

func (c *Context) snapshot() *domain.SessionSnapshot {
	c.mu.Lock()
	defer c.mu.Unlock()

	history := make([]domain.Interaction, len(c.history))
	for i, in := range c.history {
		history[i] = in.Clone()
	}

	return &domain.SessionSnapshot{
		SessionID:          c.id,
		UserID:             c.userID,
		Persona:            c.persona,
		History:            history,
		ReferencedEntities: cloneEntities(c.entities),
		LastQueryTime:      c.lastActivityAt,
		CreatedAt:          c.createdAt,
	}
}

func cloneEntities(src map[string]map[string]any) map[string]map[string]any {
	out := make(map[string]map[string]any, len(src))
	for entityType, byID := range src {
		out[entityType] = maps.Clone(byID)
	}
	return out
}
