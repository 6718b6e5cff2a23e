package services

import (
	"context"
	"fmt"
	"time"

	"legal-assistant-platform/models"

	"go.mongodb.org/mongo-driver/mongo"
)

// MongoRecorder writes processing history to the document_processing_logs
// collection.
type MongoRecorder struct {
	collection *mongo.Collection
}

func NewMongoRecorder(db *mongo.Database) *MongoRecorder {
	return &MongoRecorder{collection: db.Collection("document_processing_logs")}
}

func (r *MongoRecorder) Record(ctx context.Context, entry models.ProcessingLog) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if entry.ProcessedAt.IsZero() {
		entry.ProcessedAt = time.Now().UTC()
	}
	if _, err := r.collection.InsertOne(ctx, entry); err != nil {
		return fmt.Errorf("insert processing log: %w", err)
	}
	return nil
}
