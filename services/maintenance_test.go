package services

import (
	"context"
	"fmt"
	"testing"
	"time"

	"legal-assistant-platform/models"
)

func insertRun(store *memoryVectorStore, title, stamp string, n int) {
	for i := 0; i < n; i++ {
		store.insert(models.Chunk{
			ID:        fmt.Sprintf("%s-%s-%d", title, stamp, i),
			Content:   "content",
			Embedding: []float32{1, 0},
			Metadata: models.ChunkMetadata{
				Title:       title,
				ChunkIndex:  i,
				ProcessedAt: stamp,
			},
		})
	}
}

func TestRunDedupKeepsNewestRunPerTitle(t *testing.T) {
	store := newMemoryVectorStore(2)
	maintenance := NewMaintenanceService(store)

	older := time.Date(2026, 1, 1, 10, 0, 0, 0, time.UTC).Format(time.RFC3339)
	newer := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC).Format(time.RFC3339)

	insertRun(store, "Contract Act", older, 4)
	insertRun(store, "Contract Act", newer, 3)
	insertRun(store, "Evidence Act", older, 2) // single run, must survive

	deleted, err := maintenance.RunDedup(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if deleted != 4 {
		t.Fatalf("deleted %d chunks, want 4 (the older Contract Act run)", deleted)
	}
	if store.count() != 5 {
		t.Fatalf("store holds %d chunks, want 5", store.count())
	}

	for _, ch := range store.chunks {
		if ch.Metadata.Title == "Contract Act" && ch.Metadata.ProcessedAt != newer {
			t.Fatal("an older Contract Act chunk survived deduplication")
		}
	}
}

func TestRunDedupIsIdempotent(t *testing.T) {
	store := newMemoryVectorStore(2)
	maintenance := NewMaintenanceService(store)

	stamp := time.Now().UTC().Format(time.RFC3339)
	insertRun(store, "Only Doc", stamp, 3)

	for i := 0; i < 2; i++ {
		deleted, err := maintenance.RunDedup(context.Background())
		if err != nil {
			t.Fatal(err)
		}
		if deleted != 0 {
			t.Fatalf("pass %d deleted %d chunks from a store with no duplicates", i+1, deleted)
		}
	}
	if store.count() != 3 {
		t.Fatalf("store holds %d chunks, want 3", store.count())
	}
}
