package sqldb

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/Rrens/bi-assistant/internal/domain"
)

// SessionArchive implements domain.SessionArchive over database/sql
type SessionArchive struct {
	db      *sql.DB
	dialect Dialect
	clock   clockwork.Clock
}

// Open connects to dsn with the dialect's driver and creates the snapshot
// table if needed.
func Open(ctx context.Context, dialect Dialect, dsn string, clock clockwork.Clock) (*SessionArchive, error) {
	db, err := sql.Open(dialect.driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s database: %w", dialect.Name, err)
	}

	if dialect.driver == SQLite.driver {
		db.SetMaxOpenConns(1) // SQLite only supports one writer
		db.SetMaxIdleConns(1)
	} else {
		db.SetMaxOpenConns(5)
		db.SetMaxIdleConns(1)
	}

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping %s database: %w", dialect.Name, err)
	}

	for _, stmt := range dialect.schema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to create %s schema: %w", dialect.Name, err)
		}
	}

	return &SessionArchive{db: db, dialect: dialect, clock: clock}, nil
}

func (a *SessionArchive) Save(ctx context.Context, snapshot *domain.SessionSnapshot) error {
	payload, err := json.Marshal(snapshot)
	if err != nil {
		return fmt.Errorf("failed to marshal snapshot: %w", err)
	}

	_, err = a.db.ExecContext(ctx, a.dialect.upsert,
		snapshot.SessionID,
		snapshot.UserID,
		string(snapshot.Persona),
		string(payload),
		snapshot.LastQueryTime.UnixNano(),
		a.clock.Now().UnixNano(),
	)
	if err != nil {
		return fmt.Errorf("failed to save snapshot: %w", err)
	}
	return nil
}

func (a *SessionArchive) Load(ctx context.Context, sessionID string) (*domain.SessionSnapshot, error) {
	var payload string
	err := a.db.QueryRowContext(ctx,
		`SELECT snapshot FROM session_snapshots WHERE session_id = ?`, sessionID,
	).Scan(&payload)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrSnapshotNotFound
		}
		return nil, fmt.Errorf("failed to load snapshot: %w", err)
	}

	var snapshot domain.SessionSnapshot
	if err := json.Unmarshal([]byte(payload), &snapshot); err != nil {
		return nil, fmt.Errorf("failed to unmarshal snapshot: %w", err)
	}
	return &snapshot, nil
}

func (a *SessionArchive) Delete(ctx context.Context, sessionID string) error {
	if _, err := a.db.ExecContext(ctx, `DELETE FROM session_snapshots WHERE session_id = ?`, sessionID); err != nil {
		return fmt.Errorf("failed to delete snapshot: %w", err)
	}
	return nil
}

func (a *SessionArchive) ListByUser(ctx context.Context, userID string, limit int) ([]string, error) {
	rows, err := a.db.QueryContext(ctx, `
		SELECT session_id
		FROM session_snapshots
		WHERE user_id = ?
		ORDER BY last_query_unix DESC, session_id
		LIMIT ?`, userID, limit)
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

// PurgeArchivedBefore deletes snapshots archived more than retention ago
func (a *SessionArchive) PurgeArchivedBefore(ctx context.Context, retention time.Duration) (int64, error) {
	cutoff := a.clock.Now().Add(-retention).UnixNano()
	res, err := a.db.ExecContext(ctx, `DELETE FROM session_snapshots WHERE archived_unix < ?`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to purge snapshots: %w", err)
	}
	return res.RowsAffected()
}

func (a *SessionArchive) Ping(ctx context.Context) error {
	return a.db.PingContext(ctx)
}

func (a *SessionArchive) Close() error {
	return a.db.Close()
}

var _ domain.SessionArchive = (*SessionArchive)(nil)
