package storage

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// SlotsCollection holds one document per slot key.
const SlotsCollection = "slots"

// SlotCollection is the subset of *mongo.Collection the slot needs.
type SlotCollection interface {
	FindOne(ctx context.Context, filter interface{}, opts ...*options.FindOneOptions) *mongo.SingleResult
	UpdateOne(ctx context.Context, filter interface{}, update interface{}, opts ...*options.UpdateOptions) (*mongo.UpdateResult, error)
}

type slotDocument struct {
	Key       string    `bson:"_id"`
	Value     string    `bson:"value"`
	UpdatedAt time.Time `bson:"updated_at"`
}

// MongoSlot stores the blob as the value field of a single document.
type MongoSlot struct {
	coll   SlotCollection
	key    string
	client *mongo.Client
}

// NewMongoSlot wraps an existing collection.
func NewMongoSlot(coll SlotCollection, key string) *MongoSlot {
	return &MongoSlot{coll: coll, key: key}
}

// ConnectMongoSlot establishes a connection and returns a slot in the
// given database.
func ConnectMongoSlot(ctx context.Context, logger *slog.Logger, uri, database, key string) (*MongoSlot, error) {
	logger.DebugContext(ctx, "Attempting to connect to MongoDB", "database", database)

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MongoDB: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("failed to ping MongoDB: %w", err)
	}

	logger.InfoContext(ctx, "Successfully established connection to MongoDB", "database", database)
	slot := NewMongoSlot(client.Database(database).Collection(SlotsCollection), key)
	slot.client = client
	return slot, nil
}

func (m *MongoSlot) Read(ctx context.Context) ([]byte, error) {
	var doc slotDocument
	err := m.coll.FindOne(ctx, bson.M{"_id": m.key}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrSlotEmpty
	}
	if err != nil {
		return nil, fmt.Errorf("find slot %s: %w", m.key, err)
	}
	return []byte(doc.Value), nil
}

func (m *MongoSlot) Write(ctx context.Context, data []byte) error {
	update := bson.M{"$set": bson.M{"value": string(data), "updated_at": time.Now().UTC()}}
	_, err := m.coll.UpdateOne(ctx, bson.M{"_id": m.key}, update, options.Update().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("upsert slot %s: %w", m.key, err)
	}
	return nil
}

func (m *MongoSlot) Ping(ctx context.Context) error {
	if m.client == nil {
		return nil
	}
	return m.client.Ping(ctx, nil)
}

func (m *MongoSlot) Close(ctx context.Context) error {
	if m.client == nil {
		return nil
	}
	return m.client.Disconnect(ctx)
}
