package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/Rrens/bi-assistant/internal/cache"
	"github.com/Rrens/bi-assistant/internal/domain"
	"github.com/Rrens/bi-assistant/internal/security"
	"github.com/Rrens/bi-assistant/internal/session"
)

var (
	ErrSessionNotFound = errors.New("session not found")
	ErrInvalidPersona  = errors.New("invalid persona")
	ErrInvalidSnapshot = errors.New("invalid session snapshot")
	ErrArchiveDisabled = errors.New("session archive is not configured")
	ErrPlannerAbsent   = errors.New("query planner is not configured")
)

const (
	// transcriptTurns is how many past interactions the planner sees
	transcriptTurns     = 5
	maxListedArchiveIDs = 100
)

// ChatService answers conversational questions on top of the result cache
// and the session registry.
type ChatService struct {
	cache     *cache.ResultCache[domain.QueryResult]
	tracker   *cache.StatsTracker
	sessions  *session.Registry
	planner   domain.QueryPlanner
	archive   domain.SessionArchive
	validator *security.SQLValidator
}

// NewChatService creates a new chat service. archive may be nil.
func NewChatService(
	resultCache *cache.ResultCache[domain.QueryResult],
	tracker *cache.StatsTracker,
	sessions *session.Registry,
	planner domain.QueryPlanner,
	archive domain.SessionArchive,
) *ChatService {
	return &ChatService{
		cache:     resultCache,
		tracker:   tracker,
		sessions:  sessions,
		planner:   planner,
		archive:   archive,
		validator: security.NewSQLValidator(),
	}
}

// Chat runs one conversational turn for userID
func (s *ChatService) Chat(ctx context.Context, userID string, req domain.ChatRequest) (*domain.ChatResponse, error) {
	persona, err := parsePersona(req.Persona)
	if err != nil {
		return nil, err
	}

	sessionID := req.SessionID
	if sessionID == "" {
		sessionID = uuid.New().String()
	} else if existing, ok := s.sessions.GetSession(sessionID); ok && !ownedBy(existing.UserID(), userID) {
		return nil, ErrSessionNotFound
	}

	sess, err := s.sessions.GetOrCreateSession(sessionID, userID, persona)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPersona, err)
	}
	if sess.Persona() != persona {
		s.sessions.SwitchPersona(sessionID, persona, false)
	}

	response := &domain.ChatResponse{
		RequestID: uuid.New().String(),
		SessionID: sessionID,
		Question:  req.Question,
		Persona:   persona,
	}

	key := cache.GenerateKey(req.Question, persona, req.Params)
	if cached, ok := s.cache.Get(key); ok {
		if err := s.record(sessionID, userID, persona, req.Question, cached.Answer, cached.Intent, map[string]any{
			"cached":    true,
			"cache_key": key,
		}); err != nil {
			return nil, err
		}

		log.Debug().
			Str("session_id", sessionID).
			Str("persona", string(persona)).
			Msg("cache hit")

		response.Cached = true
		response.Result = &cached
		return response, nil
	}

	if s.planner == nil {
		return nil, ErrPlannerAbsent
	}

	plan, err := s.planner.Plan(ctx, domain.PlanRequest{
		Question:   req.Question,
		Persona:    persona,
		Params:     req.Params,
		Transcript: sess.Transcript(transcriptTurns),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to plan query: %w", err)
	}

	result := plan.Result
	if s.validator.Cacheable(result.SQL) {
		s.cache.Set(key, result)
	} else {
		log.Debug().
			Str("session_id", sessionID).
			Str("sql", result.SQL).
			Msg("result not cacheable")
	}

	metadata := map[string]any{
		"cached":    false,
		"row_count": result.RowCount,
	}
	if result.SQL != "" {
		metadata["sql"] = result.SQL
	}
	if err := s.record(sessionID, userID, persona, req.Question, result.Answer, result.Intent, metadata); err != nil {
		return nil, err
	}

	for _, entity := range plan.Entities {
		if entity.Type == "" || entity.ID == "" {
			continue
		}
		value := entity.Value
		if value == nil {
			value = entity.ID
		}
		s.sessions.AddReferencedEntity(sessionID, entity.Type, entity.ID, value)
	}

	response.Result = &result
	return response, nil
}

// record appends a turn to the session history. A session that went idle
// while the turn was being answered is started again so the turn is kept.
func (s *ChatService) record(sessionID, userID string, persona domain.Persona, question, answer, intent string, metadata map[string]any) error {
	if s.sessions.AddInteraction(sessionID, question, answer, intent, metadata) {
		return nil
	}

	log.Warn().
		Str("session_id", sessionID).
		Msg("session expired during turn, starting it again")

	if _, err := s.sessions.GetOrCreateSession(sessionID, userID, persona); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidPersona, err)
	}
	if !s.sessions.AddInteraction(sessionID, question, answer, intent, metadata) {
		return ErrSessionNotFound
	}
	return nil
}

// CreateSession starts a fresh session, replacing any session with the same id
func (s *ChatService) CreateSession(userID, sessionID, personaName string) (*domain.SessionSnapshot, error) {
	persona, err := parsePersona(personaName)
	if err != nil {
		return nil, err
	}
	if sessionID == "" {
		sessionID = uuid.New().String()
	} else if existing, ok := s.sessions.GetSession(sessionID); ok && !ownedBy(existing.UserID(), userID) {
		return nil, ErrSessionNotFound
	}

	if _, err := s.sessions.CreateSession(sessionID, userID, persona); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPersona, err)
	}
	return s.GetSession(userID, sessionID)
}

// GetSession returns the exported view of a live session
func (s *ChatService) GetSession(userID, sessionID string) (*domain.SessionSnapshot, error) {
	snapshot, ok := s.sessions.ExportSession(sessionID)
	if !ok || !ownedBy(snapshot.UserID, userID) {
		return nil, ErrSessionNotFound
	}
	return snapshot, nil
}

// ListSessions returns the caller's live sessions, most recent first
func (s *ChatService) ListSessions(userID string) []domain.SessionSummary {
	ids := s.sessions.UserSessions(userID)
	summaries := make([]domain.SessionSummary, 0, len(ids))
	for _, id := range ids {
		sess, ok := s.sessions.GetSession(id)
		if !ok {
			continue
		}
		summaries = append(summaries, domain.SessionSummary{
			SessionID:     sess.ID(),
			Persona:       sess.Persona(),
			Interactions:  sess.InteractionCount(),
			LastQueryTime: sess.LastActivityAt(),
			CreatedAt:     sess.CreatedAt(),
		})
	}
	return summaries
}

// DeleteSession removes a session
func (s *ChatService) DeleteSession(userID, sessionID string) error {
	if err := s.authorize(userID, sessionID); err != nil {
		return err
	}
	if !s.sessions.DeleteSession(sessionID) {
		return ErrSessionNotFound
	}
	return nil
}

// ClearSession drops a session's history and entities
func (s *ChatService) ClearSession(userID, sessionID string) error {
	if err := s.authorize(userID, sessionID); err != nil {
		return err
	}
	if !s.sessions.ClearSession(sessionID) {
		return ErrSessionNotFound
	}
	return nil
}

// SwitchPersona changes the persona of a session
func (s *ChatService) SwitchPersona(userID, sessionID, personaName string, clearHistory bool) (*domain.SessionSnapshot, error) {
	persona, err := parsePersona(personaName)
	if err != nil {
		return nil, err
	}
	if err := s.authorize(userID, sessionID); err != nil {
		return nil, err
	}
	if !s.sessions.SwitchPersona(sessionID, persona, clearHistory) {
		return nil, ErrSessionNotFound
	}

	log.Info().
		Str("session_id", sessionID).
		Str("persona", string(persona)).
		Bool("clear_history", clearHistory).
		Msg("persona switched")

	return s.GetSession(userID, sessionID)
}

// ImportSession loads an exported session on behalf of userID. The import
// counts as activity, so the session starts a new idle window.
func (s *ChatService) ImportSession(userID string, snapshot *domain.SessionSnapshot) (*domain.SessionSnapshot, error) {
	if snapshot == nil {
		return nil, ErrInvalidSnapshot
	}
	if existing, ok := s.sessions.GetSession(snapshot.SessionID); ok && !ownedBy(existing.UserID(), userID) {
		return nil, ErrSessionNotFound
	}

	imported := *snapshot
	imported.UserID = userID
	if !s.sessions.RestoreSession(&imported) {
		return nil, ErrInvalidSnapshot
	}
	return s.GetSession(userID, imported.SessionID)
}

// PersistSession writes a live session to the archive
func (s *ChatService) PersistSession(ctx context.Context, userID, sessionID string) error {
	if s.archive == nil {
		return ErrArchiveDisabled
	}
	snapshot, err := s.GetSession(userID, sessionID)
	if err != nil {
		return err
	}
	if err := s.archive.Save(ctx, snapshot); err != nil {
		return fmt.Errorf("failed to archive session: %w", err)
	}
	return nil
}

// RestoreSession loads an archived session back into the registry
func (s *ChatService) RestoreSession(ctx context.Context, userID, sessionID string) (*domain.SessionSnapshot, error) {
	if s.archive == nil {
		return nil, ErrArchiveDisabled
	}
	snapshot, err := s.archive.Load(ctx, sessionID)
	if err != nil {
		if errors.Is(err, domain.ErrSnapshotNotFound) {
			return nil, ErrSessionNotFound
		}
		return nil, fmt.Errorf("failed to load archived session: %w", err)
	}
	if !ownedBy(snapshot.UserID, userID) {
		return nil, ErrSessionNotFound
	}
	return s.ImportSession(userID, snapshot)
}

// ArchivedSessions lists the caller's archived session ids
func (s *ChatService) ArchivedSessions(ctx context.Context, userID string) ([]string, error) {
	if s.archive == nil {
		return nil, ErrArchiveDisabled
	}
	ids, err := s.archive.ListByUser(ctx, userID, maxListedArchiveIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to list archived sessions: %w", err)
	}
	return ids, nil
}

// SessionStatistics returns registry-wide counters
func (s *ChatService) SessionStatistics() domain.SessionStatistics {
	return s.sessions.Statistics()
}

// CacheStats returns the live cache counters
func (s *ChatService) CacheStats() cache.Stats {
	return s.cache.Stats()
}

// AggregatedStats returns the tracker's view over recorded snapshots
func (s *ChatService) AggregatedStats() cache.AggregatedStats {
	return s.tracker.AggregatedStats()
}

// PerformanceSummary returns the human-readable cache report
func (s *ChatService) PerformanceSummary() string {
	return s.tracker.PerformanceSummary()
}

// InvalidatePersona drops every cached answer computed for persona
func (s *ChatService) InvalidatePersona(personaName string) (int, error) {
	persona, err := parsePersona(personaName)
	if err != nil {
		return 0, err
	}
	return s.cache.Invalidate(cache.KeyPrefix(persona)), nil
}

// InvalidatePattern drops every cached answer whose key contains pattern
func (s *ChatService) InvalidatePattern(pattern string) int {
	return s.cache.Invalidate(pattern)
}

// FlushCache empties the result cache
func (s *ChatService) FlushCache() {
	s.cache.Clear()
	log.Info().Msg("result cache flushed")
}

// Ping checks the archive, when one is configured
func (s *ChatService) Ping(ctx context.Context) error {
	if s.archive == nil {
		return nil
	}
	return s.archive.Ping(ctx)
}

func (s *ChatService) authorize(userID, sessionID string) error {
	sess, ok := s.sessions.GetSession(sessionID)
	if !ok || !ownedBy(sess.UserID(), userID) {
		return ErrSessionNotFound
	}
	return nil
}

// ownedBy treats sessions without an owner as shared
func ownedBy(owner, userID string) bool {
	return owner == "" || owner == userID
}

func parsePersona(name string) (domain.Persona, error) {
	persona, err := domain.ParsePersona(name)
	if err != nil {
		return "", fmt.Errorf("%w: %s", ErrInvalidPersona, name)
	}
	return persona, nil
}
