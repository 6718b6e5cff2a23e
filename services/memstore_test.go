package services

import (
	"context"
	"fmt"
	"math"
	"sort"
	"sync"

	"legal-assistant-platform/models"
)

// memoryVectorStore is an in-memory VectorStore used by the service tests.
// It mirrors the Postgres store's semantics: cosine similarity, strict
// threshold, byte-exact title matching, dedup by processed_at.
type memoryVectorStore struct {
	mu        sync.Mutex
	dimension int
	chunks    map[string]models.Chunk

	upsertErr error
	titleErr  error
}

func newMemoryVectorStore(dimension int) *memoryVectorStore {
	return &memoryVectorStore{
		dimension: dimension,
		chunks:    make(map[string]models.Chunk),
	}
}

func (m *memoryVectorStore) Dimension() int { return m.dimension }

func (m *memoryVectorStore) UpsertChunks(_ context.Context, chunks []models.Chunk) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.upsertErr != nil {
		return m.upsertErr
	}
	for _, ch := range chunks {
		if len(ch.Embedding) != m.dimension {
			return fmt.Errorf("%w: chunk %q has %d dimensions, store is configured for %d",
				ErrDimensionMismatch, ch.ID, len(ch.Embedding), m.dimension)
		}
		if _, exists := m.chunks[ch.ID]; exists {
			continue
		}
		m.chunks[ch.ID] = ch
	}
	return nil
}

func (m *memoryVectorStore) Search(_ context.Context, query []float32, threshold float64, limit int) ([]models.SimilarityResult, error) {
	if len(query) != m.dimension {
		return nil, fmt.Errorf("%w: query has %d dimensions, store is configured for %d",
			ErrDimensionMismatch, len(query), m.dimension)
	}
	if limit <= 0 {
		return nil, fmt.Errorf("search limit must be positive, got %d", limit)
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	var results []models.SimilarityResult
	for _, ch := range m.chunks {
		sim := cosineSimilarity(query, ch.Embedding)
		if sim > threshold {
			results = append(results, models.SimilarityResult{
				ID:         ch.ID,
				Content:    ch.Content,
				Metadata:   ch.Metadata.ToMap(),
				Similarity: sim,
			})
		}
	}
	sort.Slice(results, func(i, j int) bool { return results[i].Similarity > results[j].Similarity })
	if len(results) > limit {
		results = results[:limit]
	}
	return results, nil
}

func (m *memoryVectorStore) ExistsByTitle(_ context.Context, title string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.titleErr != nil {
		return false, m.titleErr
	}
	for _, ch := range m.chunks {
		if ch.Metadata.Title == title {
			return true, nil
		}
	}
	return false, nil
}

func (m *memoryVectorStore) ExistsByFileHash(_ context.Context, hash string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, ch := range m.chunks {
		if ch.Metadata.FileHash == hash {
			return true, nil
		}
	}
	return false, nil
}

func (m *memoryVectorStore) Deduplicate(_ context.Context) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	newest := make(map[string]string)
	for _, ch := range m.chunks {
		if ch.Metadata.ProcessedAt > newest[ch.Metadata.Title] {
			newest[ch.Metadata.Title] = ch.Metadata.ProcessedAt
		}
	}

	var deleted int64
	for id, ch := range m.chunks {
		if ch.Metadata.ProcessedAt < newest[ch.Metadata.Title] {
			delete(m.chunks, id)
			deleted++
		}
	}
	return deleted, nil
}

func (m *memoryVectorStore) WithDocumentLock(ctx context.Context, _ string, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

func (m *memoryVectorStore) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.chunks)
}

func (m *memoryVectorStore) insert(ch models.Chunk) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.chunks[ch.ID] = ch
}

func cosineSimilarity(a, b []float32) float64 {
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
