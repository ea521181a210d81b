package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/Rrens/bi-assistant/internal/domain"
	"github.com/Rrens/bi-assistant/internal/security"
)

const (
	snapshotPrefix  = "session:snapshot:"
	userIndexPrefix = "session:user:"
)

// SessionArchive stores AES-GCM sealed snapshots with a retention TTL and
// keeps a per-user sorted set of session ids ordered by last query time.
type SessionArchive struct {
	client    *Client
	encryptor *security.Encryptor
	retention time.Duration
}

// NewSessionArchive creates a new archive. A non-positive retention keeps
// snapshots until they are deleted.
func NewSessionArchive(client *Client, encryptor *security.Encryptor, retention time.Duration) *SessionArchive {
	return &SessionArchive{
		client:    client,
		encryptor: encryptor,
		retention: retention,
	}
}

func snapshotKey(sessionID string) string {
	return snapshotPrefix + sessionID
}

func userIndexKey(userID string) string {
	return userIndexPrefix + userID
}

func (a *SessionArchive) Save(ctx context.Context, snapshot *domain.SessionSnapshot) error {
	sealed, err := a.encryptor.EncryptJSON(snapshot)
	if err != nil {
		return fmt.Errorf("failed to seal snapshot: %w", err)
	}

	ttl := a.retention
	if ttl < 0 {
		ttl = 0
	}

	pipe := a.client.rdb.TxPipeline()
	pipe.Set(ctx, snapshotKey(snapshot.SessionID), sealed, ttl)
	if snapshot.UserID != "" {
		index := userIndexKey(snapshot.UserID)
		pipe.ZAdd(ctx, index, redis.Z{
			Score:  float64(snapshot.LastQueryTime.Unix()),
			Member: snapshot.SessionID,
		})
		if ttl > 0 {
			pipe.Expire(ctx, index, ttl)
		}
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to save snapshot: %w", err)
	}
	return nil
}

func (a *SessionArchive) Load(ctx context.Context, sessionID string) (*domain.SessionSnapshot, error) {
	sealed, err := a.client.rdb.Get(ctx, snapshotKey(sessionID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, domain.ErrSnapshotNotFound
		}
		return nil, fmt.Errorf("failed to load snapshot: %w", err)
	}

	var snapshot domain.SessionSnapshot
	if err := a.encryptor.DecryptJSON(sealed, &snapshot); err != nil {
		return nil, fmt.Errorf("failed to open snapshot: %w", err)
	}
	return &snapshot, nil
}

func (a *SessionArchive) Delete(ctx context.Context, sessionID string) error {
	snapshot, err := a.Load(ctx, sessionID)
	if errors.Is(err, domain.ErrSnapshotNotFound) {
		return nil
	}
	if err != nil {
		return err
	}

	pipe := a.client.rdb.TxPipeline()
	pipe.Del(ctx, snapshotKey(sessionID))
	if snapshot.UserID != "" {
		pipe.ZRem(ctx, userIndexKey(snapshot.UserID), sessionID)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to delete snapshot: %w", err)
	}
	return nil
}

// ListByUser returns the user's archived session ids, most recent first.
// Ids whose snapshot already expired are pruned from the index on the way.
func (a *SessionArchive) ListByUser(ctx context.Context, userID string, limit int) ([]string, error) {
	if limit <= 0 {
		return nil, nil
	}

	index := userIndexKey(userID)
	ids, err := a.client.rdb.ZRevRange(ctx, index, 0, int64(limit)-1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list snapshots: %w", err)
	}
	if len(ids) == 0 {
		return nil, nil
	}

	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = snapshotKey(id)
	}
	present, err := a.client.rdb.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to check snapshots: %w", err)
	}

	live := ids[:0]
	var stale []any
	for i, id := range ids {
		if present[i] == nil {
			stale = append(stale, id)
			continue
		}
		live = append(live, id)
	}
	if len(stale) > 0 {
		a.client.rdb.ZRem(ctx, index, stale...)
	}
	return live, nil
}

func (a *SessionArchive) Ping(ctx context.Context) error {
	return a.client.Ping(ctx)
}

// Close is a no-op; the client is shared with the rate limiter and closed
// by its owner.
func (a *SessionArchive) Close() error {
	return nil
}

var _ domain.SessionArchive = (*SessionArchive)(nil)
