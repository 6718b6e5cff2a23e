package services

import (
	"context"
	"fmt"
	"time"

	"legal-assistant-platform/internal/ai"
	"legal-assistant-platform/internal/logger"
	"legal-assistant-platform/internal/telemetry"
	"legal-assistant-platform/models"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
)

// ProcessingRecorder persists the status history of ingestion runs.
type ProcessingRecorder interface {
	Record(ctx context.Context, log models.ProcessingLog) error
}

// IngestRequest carries one document through the ingestion pipeline. Title is
// the document identity; FileHash is the md5 of the raw file, used as a
// secondary duplicate check.
type IngestRequest struct {
	Title    string
	FileName string
	FileHash string
	Text     string
	Metadata models.DocumentMetadata
}

// IngestionService runs the chunk -> embed -> store pipeline. Ingestion is
// idempotent on title: a title that already has chunks in the store is
// skipped, not re-embedded.
type IngestionService struct {
	chunker   *TextChunker
	embedder  ai.Embedder
	store     VectorStore
	recorder  ProcessingRecorder
	batchSize int
	retries   int
	backoff   time.Duration
}

func NewIngestionService(chunker *TextChunker, embedder ai.Embedder, store VectorStore, recorder ProcessingRecorder, batchSize, retries int, backoff time.Duration) (*IngestionService, error) {
	if chunker == nil || embedder == nil || store == nil {
		return nil, fmt.Errorf("ingestion service requires chunker, embedder, and store")
	}
	if embedder.Dimension() != store.Dimension() {
		return nil, fmt.Errorf("embedder produces %d dimensions but store expects %d",
			embedder.Dimension(), store.Dimension())
	}
	if batchSize <= 0 {
		batchSize = 50
	}
	if retries < 0 {
		retries = 0
	}
	if backoff <= 0 {
		backoff = 500 * time.Millisecond
	}
	return &IngestionService{
		chunker:   chunker,
		embedder:  embedder,
		store:     store,
		recorder:  recorder,
		batchSize: batchSize,
		retries:   retries,
		backoff:   backoff,
	}, nil
}

// Ingest processes one document end to end and returns its report. Pipeline
// errors are reported in the IngestReport with status failed; the returned
// error is reserved for infrastructure failures (lock acquisition, recorder).
func (s *IngestionService) Ingest(ctx context.Context, req IngestRequest) (*models.IngestReport, error) {
	tracer := otel.Tracer("ingestion")
	ctx, span := tracer.Start(ctx, "ingestion.ingest")
	defer span.End()
	span.SetAttributes(
		attribute.String("document.title", req.Title),
		attribute.String("document.file_name", req.FileName),
	)

	start := time.Now()
	report := &models.IngestReport{FileName: req.FileName}

	if req.Title == "" {
		report.Status = models.StatusFailed
		report.Error = "document title is required"
		s.record(ctx, req, report)
		return report, nil
	}

	// The advisory lock serializes concurrent ingestion of the same title,
	// so the exists check and the insert below act as one step.
	err := s.store.WithDocumentLock(ctx, req.Title, func(ctx context.Context) error {
		return s.ingestLocked(ctx, req, report)
	})
	if err != nil {
		return nil, fmt.Errorf("ingest %q: %w", req.Title, err)
	}

	telemetry.RecordIngest(ctx, report.Status, report.ChunksCreated, time.Since(start))
	s.record(ctx, req, report)
	return report, nil
}

func (s *IngestionService) ingestLocked(ctx context.Context, req IngestRequest, report *models.IngestReport) error {
	exists, err := s.store.ExistsByTitle(ctx, req.Title)
	if err != nil {
		return fmt.Errorf("title check: %w", err)
	}
	if exists {
		logger.Info("Document already ingested, skipping", "title", req.Title)
		report.Status = models.StatusSkipped
		return nil
	}

	if req.FileHash != "" {
		sameContent, err := s.store.ExistsByFileHash(ctx, req.FileHash)
		if err != nil {
			return fmt.Errorf("file hash check: %w", err)
		}
		if sameContent {
			logger.Info("Identical file content already ingested, skipping", "title", req.Title, "file_hash", req.FileHash)
			report.Status = models.StatusSkipped
			return nil
		}
	}

	pieces := s.chunker.Split(req.Text)
	if len(pieces) == 0 {
		report.Status = models.StatusFailed
		report.Error = "document has no extractable text"
		return nil
	}

	// One processed_at stamp per run: the dedup job groups chunks by it.
	processedAt := time.Now().UTC().Format(time.RFC3339)
	chunks := make([]models.Chunk, 0, len(pieces))
	for i, content := range pieces {
		vec, err := s.embedWithRetry(ctx, content)
		if err != nil {
			report.Status = models.StatusFailed
			report.Error = fmt.Sprintf("embed chunk %d/%d: %v", i+1, len(pieces), err)
			return nil
		}
		chunks = append(chunks, models.Chunk{
			ID:        uuid.NewString(),
			Content:   content,
			Index:     i,
			Embedding: vec,
			Metadata: models.ChunkMetadata{
				Title:        req.Title,
				Category:     req.Metadata.Category,
				Jurisdiction: req.Metadata.Jurisdiction,
				DocumentType: req.Metadata.DocumentType,
				UploadedBy:   req.Metadata.UploadedBy,
				FileHash:     req.FileHash,
				ChunkIndex:   i,
				TotalChunks:  len(pieces),
				ProcessedAt:  processedAt,
				Extra:        req.Metadata.Extra,
			},
			CreatedAt: time.Now().UTC(),
		})
	}

	for start := 0; start < len(chunks); start += s.batchSize {
		end := start + s.batchSize
		if end > len(chunks) {
			end = len(chunks)
		}
		if err := s.store.UpsertChunks(ctx, chunks[start:end]); err != nil {
			report.Status = models.StatusFailed
			report.Error = fmt.Sprintf("store chunks %d-%d: %v", start, end-1, err)
			return nil
		}
	}

	logger.Info("Document ingested", "title", req.Title, "chunks", len(chunks))
	report.Status = models.StatusCompleted
	report.ChunksCreated = len(chunks)
	return nil
}

// embedWithRetry retries transient embedding failures with linear backoff.
func (s *IngestionService) embedWithRetry(ctx context.Context, text string) ([]float32, error) {
	var lastErr error
	for attempt := 0; attempt <= s.retries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(time.Duration(attempt) * s.backoff):
			}
		}
		vec, err := s.embedder.Embed(ctx, text)
		if err == nil {
			return vec, nil
		}
		lastErr = err
		logger.Warn("Embedding attempt failed", "attempt", attempt+1, "error", err)
	}
	return nil, fmt.Errorf("after %d attempts: %w", s.retries+1, lastErr)
}

func (s *IngestionService) record(ctx context.Context, req IngestRequest, report *models.IngestReport) {
	if s.recorder == nil {
		return
	}
	entry := models.ProcessingLog{
		FileName:         req.FileName,
		Title:            req.Title,
		DocumentType:     req.Metadata.DocumentType,
		Category:         req.Metadata.Category,
		ProcessingStatus: report.Status,
		ChunksCreated:    report.ChunksCreated,
		ErrorMessage:     report.Error,
		FileHash:         req.FileHash,
		ProcessedAt:      time.Now().UTC(),
	}
	if err := s.recorder.Record(ctx, entry); err != nil {
		// The pipeline outcome stands even if the history write fails.
		logger.Error("Failed to record processing log", "title", req.Title, "error", err)
	}
}

// IngestDirectory runs the pipeline over every supported file in storage.
// Per-document failures are isolated: the run always completes and the
// summary reports each outcome.
func (s *IngestionService) IngestDirectory(ctx context.Context, storage *DocumentStorage) (*models.BatchSummary, error) {
	tracer := otel.Tracer("ingestion")
	ctx, span := tracer.Start(ctx, "ingestion.ingest_directory")
	defer span.End()

	files, err := storage.ListDocuments()
	if err != nil {
		return nil, fmt.Errorf("list documents: %w", err)
	}

	summary := &models.BatchSummary{Total: len(files)}
	for _, name := range files {
		if err := ctx.Err(); err != nil {
			return summary, err
		}

		text, hash, err := storage.FetchText(ctx, name)
		if err != nil {
			logger.Error("Failed to extract document text", "file", name, "error", err)
			summary.Failed++
			summary.Reports = append(summary.Reports, models.IngestReport{
				Status:   models.StatusFailed,
				FileName: name,
				Error:    err.Error(),
			})
			continue
		}

		report, err := s.Ingest(ctx, IngestRequest{
			Title:    TitleFromFileName(name),
			FileName: name,
			FileHash: hash,
			Text:     text,
			Metadata: models.DocumentMetadata{DocumentType: DocumentTypeFor(name)},
		})
		if err != nil {
			logger.Error("Ingestion infrastructure error", "file", name, "error", err)
			summary.Failed++
			summary.Reports = append(summary.Reports, models.IngestReport{
				Status:   models.StatusFailed,
				FileName: name,
				Error:    err.Error(),
			})
			continue
		}

		switch report.Status {
		case models.StatusCompleted:
			summary.Processed++
		case models.StatusSkipped:
			summary.Skipped++
		default:
			summary.Failed++
		}
		summary.Reports = append(summary.Reports, *report)
	}

	logger.Info("Batch ingestion finished",
		"total", summary.Total, "processed", summary.Processed,
		"skipped", summary.Skipped, "failed", summary.Failed)
	return summary, nil
}
