package storage

import (
	"context"
	"errors"
	"testing"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// Mock for SlotCollection.
type mockSlotCollection struct {
	findOneFunc   func(ctx context.Context, filter interface{}) *mongo.SingleResult
	updateOneFunc func(ctx context.Context, filter, update interface{}, opts ...*options.UpdateOptions) (*mongo.UpdateResult, error)
}

func (m *mockSlotCollection) FindOne(ctx context.Context, filter interface{}, _ ...*options.FindOneOptions) *mongo.SingleResult {
	return m.findOneFunc(ctx, filter)
}

func (m *mockSlotCollection) UpdateOne(ctx context.Context, filter, update interface{}, opts ...*options.UpdateOptions) (*mongo.UpdateResult, error) {
	return m.updateOneFunc(ctx, filter, update, opts...)
}

func TestMongoSlotReadMissing(t *testing.T) {
	coll := &mockSlotCollection{
		findOneFunc: func(context.Context, interface{}) *mongo.SingleResult {
			return mongo.NewSingleResultFromDocument(bson.D{}, mongo.ErrNoDocuments, nil)
		},
	}
	_, err := NewMongoSlot(coll, "k").Read(context.Background())
	if !errors.Is(err, ErrSlotEmpty) {
		t.Fatalf("expected ErrSlotEmpty, got %v", err)
	}
}

func TestMongoSlotReadFound(t *testing.T) {
	coll := &mockSlotCollection{
		findOneFunc: func(_ context.Context, filter interface{}) *mongo.SingleResult {
			f, ok := filter.(bson.M)
			if !ok || f["_id"] != "budget:tx:v1" {
				t.Errorf("unexpected filter: %#v", filter)
			}
			return mongo.NewSingleResultFromDocument(slotDocument{Key: "budget:tx:v1", Value: `[{"id":"a"}]`}, nil, nil)
		},
	}
	got, err := NewMongoSlot(coll, "budget:tx:v1").Read(context.Background())
	if err != nil || string(got) != `[{"id":"a"}]` {
		t.Fatalf("read = %q, %v", got, err)
	}
}

func TestMongoSlotReadError(t *testing.T) {
	boom := errors.New("connection reset")
	coll := &mockSlotCollection{
		findOneFunc: func(context.Context, interface{}) *mongo.SingleResult {
			return mongo.NewSingleResultFromDocument(bson.D{}, boom, nil)
		},
	}
	_, err := NewMongoSlot(coll, "k").Read(context.Background())
	if !errors.Is(err, boom) || errors.Is(err, ErrSlotEmpty) {
		t.Fatalf("expected wrapped connection error, got %v", err)
	}
}

func TestMongoSlotWriteUpserts(t *testing.T) {
	var called bool
	coll := &mockSlotCollection{
		updateOneFunc: func(_ context.Context, filter, update interface{}, opts ...*options.UpdateOptions) (*mongo.UpdateResult, error) {
			called = true
			if f := filter.(bson.M); f["_id"] != "k" {
				t.Errorf("unexpected filter: %#v", filter)
			}
			set := update.(bson.M)["$set"].(bson.M)
			if set["value"] != `[]` {
				t.Errorf("unexpected value: %#v", set["value"])
			}
			if len(opts) != 1 || opts[0].Upsert == nil || !*opts[0].Upsert {
				t.Errorf("write must upsert")
			}
			return &mongo.UpdateResult{UpsertedCount: 1}, nil
		},
	}
	if err := NewMongoSlot(coll, "k").Write(context.Background(), []byte(`[]`)); err != nil {
		t.Fatalf("write: %v", err)
	}
	if !called {
		t.Fatal("UpdateOne not called")
	}
}

func TestMongoSlotWriteError(t *testing.T) {
	coll := &mockSlotCollection{
		updateOneFunc: func(context.Context, interface{}, interface{}, ...*options.UpdateOptions) (*mongo.UpdateResult, error) {
			return nil, errors.New("not primary")
		},
	}
	if err := NewMongoSlot(coll, "k").Write(context.Background(), []byte(`[]`)); err == nil {
		t.Fatal("expected error")
	}
}
