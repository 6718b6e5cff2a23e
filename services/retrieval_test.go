package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"legal-assistant-platform/models"
)

func insertChunk(store *memoryVectorStore, id, title, content string, embedding []float32) {
	store.insert(models.Chunk{
		ID:        id,
		Content:   content,
		Embedding: embedding,
		Metadata: models.ChunkMetadata{
			Title:       title,
			ProcessedAt: time.Now().UTC().Format(time.RFC3339),
		},
	})
}

func TestRetrieveOrdersBySimilarity(t *testing.T) {
	store := newMemoryVectorStore(2)
	embedder := &queryEmbedder{dimension: 2, vector: []float32{1, 0}}
	svc, err := NewRetrievalService(embedder, store, nil, 0, 0, 0)
	if err != nil {
		t.Fatal(err)
	}

	insertChunk(store, "exact", "Doc A", "exact match", []float32{1, 0})
	insertChunk(store, "close", "Doc B", "close match", []float32{0.9, 0.2})
	insertChunk(store, "orthogonal", "Doc C", "unrelated", []float32{0, 1})

	results, err := svc.Retrieve(context.Background(), "query", 0.3, 5)
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 2 {
		t.Fatalf("expected 2 results above threshold, got %d", len(results))
	}
	if results[0].ID != "exact" || results[1].ID != "close" {
		t.Fatalf("wrong order: %s, %s", results[0].ID, results[1].ID)
	}
	for i := 1; i < len(results); i++ {
		if results[i].Similarity > results[i-1].Similarity {
			t.Fatal("results not in descending similarity order")
		}
	}
	for _, r := range results {
		if r.Similarity <= 0.3 || r.Similarity > 1.0001 {
			t.Fatalf("similarity %f outside (threshold, 1]", r.Similarity)
		}
	}
}

func TestRetrieveThresholdIsStrict(t *testing.T) {
	store := newMemoryVectorStore(2)
	embedder := &queryEmbedder{dimension: 2, vector: []float32{1, 0}}
	svc, _ := NewRetrievalService(embedder, store, nil, 0, 0, 0)

	// Exactly at the threshold: cosine of these is 0.5.
	insertChunk(store, "at-threshold", "Doc", "borderline", []float32{1, 1.7320508})

	results, err := svc.Retrieve(context.Background(), "query", 0.5, 5)
	if err != nil {
		t.Fatal(err)
	}
	for _, r := range results {
		if r.ID == "at-threshold" && r.Similarity <= 0.5 {
			t.Fatal("similarity exactly at the threshold must be excluded")
		}
	}
}

func TestRetrieveAppliesLimit(t *testing.T) {
	store := newMemoryVectorStore(2)
	embedder := &queryEmbedder{dimension: 2, vector: []float32{1, 0}}
	svc, _ := NewRetrievalService(embedder, store, nil, 0, 0, 0)

	for i := 0; i < 10; i++ {
		insertChunk(store, string(rune('a'+i)), "Doc", "content", []float32{1, float32(i) * 0.01})
	}

	results, err := svc.Retrieve(context.Background(), "query", 0.3, 3)
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 3 {
		t.Fatalf("limit 3 returned %d results", len(results))
	}

	// Defaults: limit 5 when unset.
	results, err = svc.Retrieve(context.Background(), "query", 0, 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != DefaultMatchCount {
		t.Fatalf("default limit returned %d results, want %d", len(results), DefaultMatchCount)
	}
}

func TestRetrieveUsesConfiguredDefaults(t *testing.T) {
	store := newMemoryVectorStore(2)
	embedder := &queryEmbedder{dimension: 2, vector: []float32{1, 0}}
	svc, err := NewRetrievalService(embedder, store, nil, 0, 0.6, 2)
	if err != nil {
		t.Fatal(err)
	}

	insertChunk(store, "strong", "Doc", "strong match", []float32{1, 0.1})
	insertChunk(store, "strong2", "Doc", "strong match", []float32{1, 0.2})
	insertChunk(store, "strong3", "Doc", "strong match", []float32{1, 0.3})
	insertChunk(store, "weak", "Doc", "weak match", []float32{1, 2}) // cosine ~0.45

	// Unset request values must fall back to the configured 0.6/2, not the
	// package constants 0.3/5.
	results, err := svc.Retrieve(context.Background(), "query", 0, 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 2 {
		t.Fatalf("configured limit 2 returned %d results", len(results))
	}
	for _, r := range results {
		if r.ID == "weak" {
			t.Fatal("configured threshold 0.6 must exclude the weak match")
		}
	}

	// Explicit request values still win over the configured defaults.
	results, err = svc.Retrieve(context.Background(), "query", 0.3, 5)
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 4 {
		t.Fatalf("explicit threshold/limit returned %d results, want 4", len(results))
	}
}

func TestSearchRejectsNonPositiveLimit(t *testing.T) {
	store := newMemoryVectorStore(2)
	insertChunk(store, "a", "Doc", "content", []float32{1, 0})

	if _, err := store.Search(context.Background(), []float32{1, 0}, 0.3, 0); err == nil {
		t.Fatal("store must reject a non-positive limit instead of defaulting it")
	}
}

func TestRetrieveEmptyStoreAndEmptyQuery(t *testing.T) {
	store := newMemoryVectorStore(2)
	embedder := &queryEmbedder{dimension: 2, vector: []float32{1, 0}}
	svc, _ := NewRetrievalService(embedder, store, nil, 0, 0, 0)

	results, err := svc.Retrieve(context.Background(), "anything", 0.3, 5)
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 0 {
		t.Fatalf("empty store returned %d results", len(results))
	}

	if _, err := svc.Retrieve(context.Background(), "   ", 0.3, 5); err == nil {
		t.Fatal("blank query must be rejected")
	}
}

func TestRetrievePropagatesEmbedderErrors(t *testing.T) {
	store := newMemoryVectorStore(2)
	embedder := &queryEmbedder{dimension: 2, err: errors.New("quota exceeded")}
	svc, _ := NewRetrievalService(embedder, store, nil, 0, 0, 0)

	if _, err := svc.Retrieve(context.Background(), "query", 0.3, 5); err == nil {
		t.Fatal("expected embedder error to surface")
	}
}

func TestNewRetrievalServiceRejectsDimensionMismatch(t *testing.T) {
	_, err := NewRetrievalService(&queryEmbedder{dimension: 3}, newMemoryVectorStore(2), nil, 0, 0, 0)
	if err == nil {
		t.Fatal("expected error when embedder and store dimensions differ")
	}
}

// queryEmbedder returns a fixed vector for any input.
type queryEmbedder struct {
	dimension int
	vector    []float32
	err       error
}

func (q *queryEmbedder) Embed(context.Context, string) ([]float32, error) {
	if q.err != nil {
		return nil, q.err
	}
	return q.vector, nil
}

func (q *queryEmbedder) Model() string  { return "query-fake" }
func (q *queryEmbedder) Dimension() int { return q.dimension }
