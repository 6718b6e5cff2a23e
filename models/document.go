package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Document is a source file registered for ingestion. The title is the
// ingestion identity: re-ingesting a document with an already-stored title is
// a no-op.
type Document struct {
	ID            primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Title         string             `bson:"title" json:"title"`
	FileName      string             `bson:"file_name" json:"file_name"`
	FileHash      string             `bson:"file_hash,omitempty" json:"file_hash,omitempty"`
	Status        string             `bson:"status" json:"status"` // pending, processing, completed, failed, skipped
	ChunksCreated int                `bson:"chunks_created" json:"chunks_created"`
	ErrorMessage  string             `bson:"error_message,omitempty" json:"error_message,omitempty"`
	UploadedAt    time.Time          `bson:"uploaded_at" json:"uploaded_at"`
	ProcessedAt   *time.Time         `bson:"processed_at,omitempty" json:"processed_at,omitempty"`
	Metadata      DocumentMetadata   `bson:"metadata" json:"metadata"`
}

// DocumentMetadata is descriptive metadata attached at upload time and copied
// onto every chunk of the document.
type DocumentMetadata struct {
	Category     string         `bson:"category,omitempty" json:"category,omitempty"`
	Jurisdiction string         `bson:"jurisdiction,omitempty" json:"jurisdiction,omitempty"`
	DocumentType string         `bson:"document_type,omitempty" json:"document_type,omitempty"`
	UploadedBy   string         `bson:"uploaded_by,omitempty" json:"uploaded_by,omitempty"`
	Extra        map[string]any `bson:"extra,omitempty" json:"extra,omitempty"`
}

// ProcessingLog is one entry in a document's status history.
type ProcessingLog struct {
	ID               primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	FileName         string             `bson:"file_name" json:"file_name"`
	Title            string             `bson:"title" json:"title"`
	DocumentType     string             `bson:"document_type,omitempty" json:"document_type,omitempty"`
	Category         string             `bson:"category,omitempty" json:"category,omitempty"`
	ProcessingStatus string             `bson:"processing_status" json:"processing_status"`
	ChunksCreated    int                `bson:"chunks_created" json:"chunks_created"`
	ErrorMessage     string             `bson:"error_message,omitempty" json:"error_message,omitempty"`
	FileHash         string             `bson:"file_hash,omitempty" json:"file_hash,omitempty"`
	ProcessedAt      time.Time          `bson:"processed_at" json:"processed_at"`
}

// IngestReport is the structured per-document outcome returned to ingestion
// callers.
type IngestReport struct {
	Status        string `json:"status"` // completed, skipped, failed
	ChunksCreated int    `json:"chunks_created"`
	FileName      string `json:"file_name"`
	Error         string `json:"error,omitempty"`
}

// BatchSummary aggregates the outcome of one ingestion run over a document
// source. The run always completes; per-document failures are isolated.
type BatchSummary struct {
	Total     int            `json:"total"`
	Processed int            `json:"processed"`
	Skipped   int            `json:"skipped"`
	Failed    int            `json:"failed"`
	Reports   []IngestReport `json:"reports"`
}

// Processing status constants
const (
	StatusPending    = "pending"
	StatusProcessing = "processing"
	StatusCompleted  = "completed"
	StatusFailed     = "failed"
	StatusSkipped    = "skipped"
)
