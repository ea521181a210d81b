// Package mongo archives session snapshots in a MongoDB collection
package mongo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jonboulle/clockwork"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/Rrens/bi-assistant/internal/domain"
)

const collectionName = "session_snapshots"

// snapshotDocument keeps the snapshot as JSON so metadata and entity values
// come back with the same Go types they were exported with.
type snapshotDocument struct {
	SessionID     string    `bson:"_id"`
	UserID        string    `bson:"user_id"`
	Persona       string    `bson:"persona"`
	Snapshot      string    `bson:"snapshot"`
	LastQueryTime time.Time `bson:"last_query_time"`
	ArchivedAt    time.Time `bson:"archived_at"`
}

// SessionArchive implements domain.SessionArchive
type SessionArchive struct {
	client     *mongo.Client
	collection *mongo.Collection
	clock      clockwork.Clock
}

// Connect opens the client, pings it and ensures the collection indexes.
// A positive retention adds a TTL index on archived_at so the server expires
// old snapshots itself.
func Connect(ctx context.Context, uri, database string, timeout, retention time.Duration, clock clockwork.Clock) (*SessionArchive, error) {
	clientOpts := options.Client().ApplyURI(uri)
	if timeout > 0 {
		clientOpts.SetConnectTimeout(timeout)
	}

	client, err := mongo.Connect(ctx, clientOpts)
	if err != nil {
		return nil, fmt.Errorf("failed to create client: %w", err)
	}

	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("failed to ping: %w", err)
	}

	collection := client.Database(database).Collection(collectionName)

	indexes := []mongo.IndexModel{
		{Keys: bson.D{{Key: "user_id", Value: 1}, {Key: "last_query_time", Value: -1}}},
	}
	if retention > 0 {
		indexes = append(indexes, mongo.IndexModel{
			Keys:    bson.D{{Key: "archived_at", Value: 1}},
			Options: options.Index().SetExpireAfterSeconds(int32(retention.Seconds())),
		})
	}
	if _, err := collection.Indexes().CreateMany(ctx, indexes); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("failed to create indexes: %w", err)
	}

	return &SessionArchive{client: client, collection: collection, clock: clock}, nil
}

func (a *SessionArchive) Save(ctx context.Context, snapshot *domain.SessionSnapshot) error {
	doc, err := toDocument(snapshot, a.clock.Now())
	if err != nil {
		return err
	}

	_, err = a.collection.ReplaceOne(ctx,
		bson.M{"_id": doc.SessionID},
		doc,
		options.Replace().SetUpsert(true),
	)
	if err != nil {
		return fmt.Errorf("failed to save snapshot: %w", err)
	}
	return nil
}

func (a *SessionArchive) Load(ctx context.Context, sessionID string) (*domain.SessionSnapshot, error) {
	var doc snapshotDocument
	if err := a.collection.FindOne(ctx, bson.M{"_id": sessionID}).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, domain.ErrSnapshotNotFound
		}
		return nil, fmt.Errorf("failed to load snapshot: %w", err)
	}
	return fromDocument(doc)
}

func (a *SessionArchive) Delete(ctx context.Context, sessionID string) error {
	if _, err := a.collection.DeleteOne(ctx, bson.M{"_id": sessionID}); err != nil {
		return fmt.Errorf("failed to delete snapshot: %w", err)
	}
	return nil
}

func (a *SessionArchive) ListByUser(ctx context.Context, userID string, limit int) ([]string, error) {
	opts := options.Find().
		SetSort(bson.D{{Key: "last_query_time", Value: -1}, {Key: "_id", Value: 1}}).
		SetLimit(int64(limit)).
		SetProjection(bson.M{"_id": 1})

	cursor, err := a.collection.Find(ctx, bson.M{"user_id": userID}, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to list snapshots: %w", err)
	}
	defer cursor.Close(ctx)

	var ids []string
	for cursor.Next(ctx) {
		var row struct {
			ID string `bson:"_id"`
		}
		if err := cursor.Decode(&row); err != nil {
			return nil, fmt.Errorf("failed to decode snapshot id: %w", err)
		}
		ids = append(ids, row.ID)
	}
	return ids, cursor.Err()
}

func (a *SessionArchive) Ping(ctx context.Context) error {
	return a.client.Ping(ctx, nil)
}

func (a *SessionArchive) Close() error {
	return a.client.Disconnect(context.Background())
}

func toDocument(snapshot *domain.SessionSnapshot, now time.Time) (*snapshotDocument, error) {
	payload, err := json.Marshal(snapshot)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal snapshot: %w", err)
	}
	return &snapshotDocument{
		SessionID:     snapshot.SessionID,
		UserID:        snapshot.UserID,
		Persona:       string(snapshot.Persona),
		Snapshot:      string(payload),
		LastQueryTime: snapshot.LastQueryTime,
		ArchivedAt:    now,
	}, nil
}

func fromDocument(doc snapshotDocument) (*domain.SessionSnapshot, error) {
	var snapshot domain.SessionSnapshot
	if err := json.Unmarshal([]byte(doc.Snapshot), &snapshot); err != nil {
		return nil, fmt.Errorf("failed to unmarshal snapshot: %w", err)
	}
	return &snapshot, nil
}

var _ domain.SessionArchive = (*SessionArchive)(nil)
