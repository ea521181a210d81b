package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Rrens/bi-assistant/internal/domain"
)

// SessionArchive implements domain.SessionArchive on a JSONB table
type SessionArchive struct {
	db   *DB
	pool *pgxpool.Pool
}

// NewSessionArchive creates a new session archive. It owns db and closes it
// on Close.
func NewSessionArchive(db *DB) *SessionArchive {
	return &SessionArchive{db: db, pool: db.Pool}
}

func (r *SessionArchive) Save(ctx context.Context, snapshot *domain.SessionSnapshot) error {
	payload, err := json.Marshal(snapshot)
	if err != nil {
		return fmt.Errorf("failed to marshal snapshot: %w", err)
	}

	query := `
		INSERT INTO session_snapshots (session_id, user_id, persona, snapshot, last_query_time, archived_at)
		VALUES ($1, $2, $3, $4, $5, NOW())
		ON CONFLICT (session_id) DO UPDATE SET
			user_id = EXCLUDED.user_id,
			persona = EXCLUDED.persona,
			snapshot = EXCLUDED.snapshot,
			last_query_time = EXCLUDED.last_query_time,
			archived_at = NOW()
	`
	_, err = r.pool.Exec(ctx, query,
		snapshot.SessionID,
		snapshot.UserID,
		string(snapshot.Persona),
		payload,
		snapshot.LastQueryTime,
	)
	if err != nil {
		return fmt.Errorf("failed to save snapshot: %w", err)
	}
	return nil
}

func (r *SessionArchive) Load(ctx context.Context, sessionID string) (*domain.SessionSnapshot, error) {
	query := `SELECT snapshot FROM session_snapshots WHERE session_id = $1`

	var payload []byte
	if err := r.pool.QueryRow(ctx, query, sessionID).Scan(&payload); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrSnapshotNotFound
		}
		return nil, fmt.Errorf("failed to load snapshot: %w", err)
	}

	var snapshot domain.SessionSnapshot
	if err := json.Unmarshal(payload, &snapshot); err != nil {
		return nil, fmt.Errorf("failed to unmarshal snapshot: %w", err)
	}
	return &snapshot, nil
}

func (r *SessionArchive) Delete(ctx context.Context, sessionID string) error {
	_, err := r.pool.Exec(ctx, `DELETE FROM session_snapshots WHERE session_id = $1`, sessionID)
	if err != nil {
		return fmt.Errorf("failed to delete snapshot: %w", err)
	}
	return nil
}

func (r *SessionArchive) ListByUser(ctx context.Context, userID string, limit int) ([]string, error) {
	query := `
		SELECT session_id
		FROM session_snapshots
		WHERE user_id = $1
		ORDER BY last_query_time DESC
		LIMIT $2
	`
	rows, err := r.pool.Query(ctx, query, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list snapshots: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan snapshot id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (r *SessionArchive) Ping(ctx context.Context) error {
	return r.db.Ping(ctx)
}

func (r *SessionArchive) Close() error {
	r.db.Close()
	return nil
}


// PurgeArchivedBefore deletes snapshots archived more than retention ago
func (r *SessionArchive) PurgeArchivedBefore(ctx context.Context, retention time.Duration) (int64, error) {
	tag, err := r.pool.Exec(ctx,
		`DELETE FROM session_snapshots WHERE archived_at < NOW() - make_interval(secs => $1)`,
		retention.Seconds(),
	)
	if err != nil {
		return 0, fmt.Errorf("failed to purge snapshots: %w", err)
	}
	return tag.RowsAffected(), nil
}

var _ domain.SessionArchive = (*SessionArchive)(nil)
