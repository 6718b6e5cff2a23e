package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"legal-assistant-platform/internal/logger"
	"legal-assistant-platform/models"
	"legal-assistant-platform/services"

	"github.com/hibiken/asynq"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
)

const (
	TaskIngestDocument = "document:ingest"
	TaskIngestAll      = "document:ingest_all"
)

type IngestDocumentPayload struct {
	DocumentID string `json:"document_id"`
	FileName   string `json:"file_name"`
}

// NewIngestDocumentTask enqueues ingestion of one registered document.
func NewIngestDocumentTask(documentID, fileName string) (*asynq.Task, error) {
	payload, err := json.Marshal(IngestDocumentPayload{
		DocumentID: documentID,
		FileName:   fileName,
	})
	if err != nil {
		return nil, err
	}

	return asynq.NewTask(
		TaskIngestDocument,
		payload,
		asynq.MaxRetry(3),
		asynq.Timeout(10*time.Minute),
		asynq.Queue("critical"),
	), nil
}

// NewIngestAllTask enqueues a full batch run over the storage directory.
func NewIngestAllTask() (*asynq.Task, error) {
	return asynq.NewTask(
		TaskIngestAll,
		nil,
		asynq.MaxRetry(1),
		asynq.Timeout(time.Hour),
		asynq.Queue("low"),
	), nil
}

// TaskProcessor handles queued ingestion work. It owns the document registry
// status transitions (pending -> processing -> completed/failed/skipped);
// the ingestion service itself is registry-agnostic.
type TaskProcessor struct {
	ingestion *services.IngestionService
	storage   *services.DocumentStorage
	documents *mongo.Collection
}

func NewTaskProcessor(ingestion *services.IngestionService, storage *services.DocumentStorage, db *mongo.Database) *TaskProcessor {
	return &TaskProcessor{
		ingestion: ingestion,
		storage:   storage,
		documents: db.Collection("documents"),
	}
}

func (p *TaskProcessor) ProcessDocument(ctx context.Context, t *asynq.Task) error {
	var payload IngestDocumentPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("unmarshal failed: %w", asynq.SkipRetry)
	}

	docID, err := primitive.ObjectIDFromHex(payload.DocumentID)
	if err != nil {
		return fmt.Errorf("bad document id %q: %w", payload.DocumentID, asynq.SkipRetry)
	}

	var doc models.Document
	if err := p.documents.FindOne(ctx, bson.M{"_id": docID}).Decode(&doc); err != nil {
		return fmt.Errorf("load document %s: %w", payload.DocumentID, err)
	}

	logger.Info("Processing queued document", "id", payload.DocumentID, "file", doc.FileName)
	p.updateStatus(ctx, docID, models.StatusProcessing, 0, "")

	text, hash, err := p.storage.FetchText(ctx, doc.FileName)
	if err != nil {
		p.updateStatus(ctx, docID, models.StatusFailed, 0, err.Error())
		return err
	}

	report, err := p.ingestion.Ingest(ctx, services.IngestRequest{
		Title:    doc.Title,
		FileName: doc.FileName,
		FileHash: hash,
		Text:     text,
		Metadata: doc.Metadata,
	})
	if err != nil {
		p.updateStatus(ctx, docID, models.StatusFailed, 0, err.Error())
		return err
	}

	p.updateStatus(ctx, docID, report.Status, report.ChunksCreated, report.Error)
	if report.Status == models.StatusFailed {
		// Pipeline failures (bad text, provider outage) are worth a retry.
		return fmt.Errorf("ingestion failed for %q: %s", doc.Title, report.Error)
	}
	return nil
}

func (p *TaskProcessor) ProcessIngestAll(ctx context.Context, t *asynq.Task) error {
	summary, err := p.ingestion.IngestDirectory(ctx, p.storage)
	if err != nil {
		return err
	}
	logger.Info("Queued batch ingestion done",
		"total", summary.Total, "processed", summary.Processed,
		"skipped", summary.Skipped, "failed", summary.Failed)
	return nil
}

func (p *TaskProcessor) updateStatus(ctx context.Context, id primitive.ObjectID, status string, chunks int, errMsg string) {
	update := bson.M{
		"status":         status,
		"chunks_created": chunks,
		"error_message":  errMsg,
	}
	if status == models.StatusCompleted || status == models.StatusSkipped {
		update["processed_at"] = time.Now().UTC()
	}
	if _, err := p.documents.UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$set": update}); err != nil {
		logger.Error("Failed to update document status", "id", id.Hex(), "status", status, "error", err)
	}
}
