package kv

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

type mongoEntry struct {
	Key       string    `bson:"_id"`
	Value     []byte    `bson:"value"`
	ExpiresAt time.Time `bson:"expires_at"`
}

// Mongo stores entries in a collection with a TTL index on expires_at.
// The server-side TTL monitor only runs periodically, so reads also filter
// out expired documents.
type Mongo struct {
	client *mongo.Client
	coll   *mongo.Collection
	now    func() time.Time
}

func NewMongo(ctx context.Context, uri, database, collection string) (*Mongo, error) {
	const op = "kv.NewMongo"

	client, err := mongo.Connect(options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("%s: connect: %w", op, err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("%s: ping: %w", op, err)
	}

	m := &Mongo{
		client: client,
		coll:   client.Database(database).Collection(collection),
		now:    time.Now,
	}
	if err := m.ensureIndexes(ctx); err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("%s: indexes: %w", op, err)
	}
	return m, nil
}

func (m *Mongo) ensureIndexes(ctx context.Context) error {
	_, err := m.coll.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "expires_at", Value: 1}},
		Options: options.Index().SetExpireAfterSeconds(0),
	})
	return err
}

func (m *Mongo) Get(ctx context.Context, key string) ([]byte, error) {
	const op = "kv.Mongo.Get"

	filter := bson.D{
		{Key: "_id", Value: key},
		{Key: "expires_at", Value: bson.D{{Key: "$gt", Value: m.now()}}},
	}
	var entry mongoEntry
	if err := m.coll.FindOne(ctx, filter).Decode(&entry); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return entry.Value, nil
}

func (m *Mongo) Put(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	const op = "kv.Mongo.Put"

	if ttl <= 0 {
		// documents still need an expiry for the TTL index; a century is "never"
		ttl = 100 * 365 * 24 * time.Hour
	}
	entry := mongoEntry{
		Key:       key,
		Value:     value,
		ExpiresAt: m.now().Add(ttl),
	}
	_, err := m.coll.ReplaceOne(ctx, bson.D{{Key: "_id", Value: key}}, entry, options.Replace().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

func (m *Mongo) Delete(ctx context.Context, key string) error {
	const op = "kv.Mongo.Delete"

	if _, err := m.coll.DeleteOne(ctx, bson.D{{Key: "_id", Value: key}}); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

func (m *Mongo) Ping(ctx context.Context) error {
	return m.client.Ping(ctx, nil)
}

func (m *Mongo) Close(ctx context.Context) error {
	return m.client.Disconnect(ctx)
}
