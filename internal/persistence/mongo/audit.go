// Package mongo keeps the audit trail in a MongoDB collection. It only
// provides persistence.AuditRepository; every other record stays in the
// primary relational store.
package mongo

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/example/booking-manager/internal/persistence"
)

// DefaultCollection names the collection used when none is configured.
const DefaultCollection = "audit_entries"

// auditDocument is the stored shape of an entry. Seq orders entries that
// share a timestamp by insertion.
type auditDocument struct {
	ID         string             `bson:"_id"`
	Seq        primitive.ObjectID `bson:"seq"`
	ActorID    string             `bson:"actor_id"`
	ActorKind  string             `bson:"actor_kind"`
	Action     string             `bson:"action"`
	EntityType string             `bson:"entity_type"`
	EntityID   string             `bson:"entity_id"`
	Details    map[string]string  `bson:"details,omitempty"`
	CreatedAt  time.Time          `bson:"created_at"`
}

// AuditRepository implements persistence.AuditRepository on a collection.
type AuditRepository struct {
	client     *mongo.Client
	collection *mongo.Collection
}

var _ persistence.AuditRepository = (*AuditRepository)(nil)

// Connect dials uri and returns a repository bound to database.collection.
func Connect(ctx context.Context, uri, database, collection string) (*AuditRepository, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("connect mongo: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("ping mongo: %w", err)
	}
	if collection == "" {
		collection = DefaultCollection
	}
	repo := NewAuditRepository(client.Database(database).Collection(collection))
	repo.client = client
	return repo, nil
}

// NewAuditRepository wraps an existing collection.
func NewAuditRepository(collection *mongo.Collection) *AuditRepository {
	return &AuditRepository{collection: collection}
}

// EnsureIndexes creates the lookup indexes used by ListAuditEntries.
func (r *AuditRepository) EnsureIndexes(ctx context.Context) error {
	_, err := r.collection.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "created_at", Value: -1}, {Key: "seq", Value: -1}}},
		{Keys: bson.D{{Key: "actor_id", Value: 1}}},
		{Keys: bson.D{{Key: "action", Value: 1}}},
	})
	if err != nil {
		return fmt.Errorf("create audit indexes: %w", err)
	}
	return nil
}

// Close disconnects the client when the repository owns it.
func (r *AuditRepository) Close(ctx context.Context) error {
	if r.client == nil {
		return nil
	}
	return r.client.Disconnect(ctx)
}

// AppendAuditEntry inserts one entry.
func (r *AuditRepository) AppendAuditEntry(ctx context.Context, entry persistence.AuditEntry) error {
	if entry.ID == "" || entry.Action == "" {
		return persistence.ErrConstraintViolation
	}
	_, err := r.collection.InsertOne(ctx, toDocument(entry))
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return fmt.Errorf("%w: %v", persistence.ErrDuplicate, err)
		}
		return fmt.Errorf("insert audit entry: %w", err)
	}
	return nil
}

// ListAuditEntries returns matching entries newest first.
func (r *AuditRepository) ListAuditEntries(ctx context.Context, filter persistence.AuditFilter) ([]persistence.AuditEntry, error) {
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}, {Key: "seq", Value: -1}})
	if filter.Limit > 0 {
		opts.SetLimit(int64(filter.Limit))
	}

	cursor, err := r.collection.Find(ctx, filterDocument(filter), opts)
	if err != nil {
		return nil, fmt.Errorf("find audit entries: %w", err)
	}
	defer cursor.Close(ctx)

	out := make([]persistence.AuditEntry, 0)
	for cursor.Next(ctx) {
		var doc auditDocument
		if err := cursor.Decode(&doc); err != nil {
			return nil, fmt.Errorf("decode audit entry: %w", err)
		}
		out = append(out, fromDocument(doc))
	}
	if err := cursor.Err(); err != nil {
		return nil, fmt.Errorf("iterate audit entries: %w", err)
	}
	return out, nil
}

func filterDocument(filter persistence.AuditFilter) bson.M {
	query := bson.M{}
	if filter.ActorID != "" {
		query["actor_id"] = filter.ActorID
	}
	if filter.Action != "" {
		query["action"] = filter.Action
	}
	if filter.EntityType != "" {
		query["entity_type"] = filter.EntityType
	}
	if filter.Since != nil {
		query["created_at"] = bson.M{"$gte": filter.Since.UTC()}
	}
	return query
}

// BSON dates carry milliseconds, so stored timestamps are truncated to match.
func toDocument(entry persistence.AuditEntry) auditDocument {
	return auditDocument{
		ID:         entry.ID,
		Seq:        primitive.NewObjectID(),
		ActorID:    entry.ActorID,
		ActorKind:  entry.ActorKind,
		Action:     entry.Action,
		EntityType: entry.EntityType,
		EntityID:   entry.EntityID,
		Details:    entry.Details,
		CreatedAt:  entry.CreatedAt.UTC().Truncate(time.Millisecond),
	}
}

func fromDocument(doc auditDocument) persistence.AuditEntry {
	var details map[string]string
	if len(doc.Details) > 0 {
		details = make(map[string]string, len(doc.Details))
		for k, v := range doc.Details {
			details[k] = v
		}
	}
	return persistence.AuditEntry{
		ID:         doc.ID,
		ActorID:    doc.ActorID,
		ActorKind:  doc.ActorKind,
		Action:     doc.Action,
		EntityType: doc.EntityType,
		EntityID:   doc.EntityID,
		Details:    details,
		CreatedAt:  doc.CreatedAt.UTC(),
	}
}
