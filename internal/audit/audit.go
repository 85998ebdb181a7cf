// Package audit keeps a trail of delivered pages so that a leaked image can be matched
// to the reader whose watermark it carries.
package audit

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"docvault/internal/model"
)

// MaxRecent caps the number of views returned by Recent.
const MaxRecent = 500

// Recorder stores and queries page views.
type Recorder interface {
	Record(ctx context.Context, v model.View) error
	Recent(ctx context.Context, documentID string, limit int) ([]model.View, error)
}

// MongoRecorder stores one document per view.
type MongoRecorder struct {
	col *mongo.Collection
}

func NewMongoRecorder(col *mongo.Collection) *MongoRecorder {
	return &MongoRecorder{col: col}
}

var _ Recorder = (*MongoRecorder)(nil)

// EnsureIndexes creates the index used by Recent.
func (r *MongoRecorder) EnsureIndexes(ctx context.Context) error {
	_, err := r.col.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "document_id", Value: 1}, {Key: "viewed_at", Value: -1}},
	})
	if err != nil {
		return fmt.Errorf("create view index: %w", err)
	}
	return nil
}

func (r *MongoRecorder) Record(ctx context.Context, v model.View) error {
	if _, err := r.col.InsertOne(ctx, v); err != nil {
		return fmt.Errorf("record view: %w", err)
	}
	return nil
}

// Recent returns the latest views of a document, newest first.
func (r *MongoRecorder) Recent(ctx context.Context, documentID string, limit int) ([]model.View, error) {
	if limit <= 0 || limit > MaxRecent {
		limit = MaxRecent
	}
	opts := options.Find().
		SetSort(bson.D{{Key: "viewed_at", Value: -1}}).
		SetLimit(int64(limit))
	cur, err := r.col.Find(ctx, bson.M{"document_id": documentID}, opts)
	if err != nil {
		return nil, fmt.Errorf("find views: %w", err)
	}
	defer cur.Close(ctx)

	out := make([]model.View, 0)
	if err := cur.All(ctx, &out); err != nil {
		return nil, fmt.Errorf("decode views: %w", err)
	}
	return out, nil
}

// NopRecorder discards views. It is used when no audit store is configured.
type NopRecorder struct{}

func (NopRecorder) Record(context.Context, model.View) error { return nil }

func (NopRecorder) Recent(context.Context, string, int) ([]model.View, error) {
	return []model.View{}, nil
}
