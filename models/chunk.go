package models

import (
	"fmt"
	"time"
)

// Chunk is a bounded-length slice of a document's text, the unit of embedding
// and retrieval. Chunks are immutable once written to the vector store.
type Chunk struct {
	ID        string        `json:"id"`
	Content   string        `json:"content"`
	Index     int           `json:"index"`
	Embedding []float32     `json:"-"`
	Metadata  ChunkMetadata `json:"metadata"`
	CreatedAt time.Time     `json:"created_at"`
}

// ChunkMetadata is the metadata stored alongside each chunk row. Named fields
// cover the known keys; Extra carries anything else so unknown upstream keys
// survive a round trip through the store.
type ChunkMetadata struct {
	Title        string         `json:"title"`
	Category     string         `json:"category,omitempty"`
	Jurisdiction string         `json:"jurisdiction,omitempty"`
	DocumentType string         `json:"document_type,omitempty"`
	UploadedBy   string         `json:"uploaded_by,omitempty"`
	FileHash     string         `json:"file_hash,omitempty"`
	ChunkIndex   int            `json:"chunk_index"`
	TotalChunks  int            `json:"total_chunks"`
	ProcessedAt  string         `json:"processed_at,omitempty"` // RFC3339
	Extra        map[string]any `json:"-"`
}

// Validate checks the metadata at the ingestion boundary.
func (m ChunkMetadata) Validate() error {
	if m.Title == "" {
		return fmt.Errorf("chunk metadata: title is required")
	}
	if m.ChunkIndex < 0 {
		return fmt.Errorf("chunk metadata: chunk index must not be negative")
	}
	return nil
}

// ToMap flattens the metadata into the key/value form stored in the JSONB
// column. Named fields win over Extra on key collisions.
func (m ChunkMetadata) ToMap() map[string]any {
	out := make(map[string]any, len(m.Extra)+9)
	for k, v := range m.Extra {
		out[k] = v
	}
	out["title"] = m.Title
	out["chunk_index"] = m.ChunkIndex
	out["total_chunks"] = m.TotalChunks
	if m.Category != "" {
		out["category"] = m.Category
	}
	if m.Jurisdiction != "" {
		out["jurisdiction"] = m.Jurisdiction
	}
	if m.DocumentType != "" {
		out["document_type"] = m.DocumentType
	}
	if m.UploadedBy != "" {
		out["uploaded_by"] = m.UploadedBy
	}
	if m.FileHash != "" {
		out["file_hash"] = m.FileHash
	}
	if m.ProcessedAt != "" {
		out["processed_at"] = m.ProcessedAt
	}
	return out
}

// ChunkMetadataFromMap rebuilds typed metadata from a stored key/value map.
// Unknown keys land in Extra.
func ChunkMetadataFromMap(raw map[string]any) ChunkMetadata {
	m := ChunkMetadata{}
	for k, v := range raw {
		switch k {
		case "title":
			m.Title = asString(v)
		case "category":
			m.Category = asString(v)
		case "jurisdiction":
			m.Jurisdiction = asString(v)
		case "document_type":
			m.DocumentType = asString(v)
		case "uploaded_by":
			m.UploadedBy = asString(v)
		case "file_hash":
			m.FileHash = asString(v)
		case "processed_at":
			m.ProcessedAt = asString(v)
		case "chunk_index":
			m.ChunkIndex = asInt(v)
		case "total_chunks":
			m.TotalChunks = asInt(v)
		default:
			if m.Extra == nil {
				m.Extra = make(map[string]any)
			}
			m.Extra[k] = v
		}
	}
	return m
}

// SimilarityResult is a read-only view over one matched chunk, ordered by
// descending similarity in result lists.
type SimilarityResult struct {
	ID         string         `json:"id"`
	Content    string         `json:"content"`
	Metadata   map[string]any `json:"metadata"`
	Similarity float64        `json:"similarity"`
}

func asString(v any) string {
	if s, ok := v.(string); ok {
		return s
	}
	if v == nil {
		return ""
	}
	return fmt.Sprint(v)
}

func asInt(v any) int {
	switch n := v.(type) {
	case int:
		return n
	case int64:
		return int(n)
	case float64:
		return int(n)
	case float32:
		return int(n)
	default:
		return 0
	}
}
