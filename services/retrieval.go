package services

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"legal-assistant-platform/internal/ai"
	"legal-assistant-platform/internal/logger"
	"legal-assistant-platform/internal/telemetry"
	"legal-assistant-platform/models"

	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
)

const (
	// DefaultMatchThreshold is the minimum cosine similarity for a chunk to
	// count as relevant.
	DefaultMatchThreshold = 0.3
	// DefaultMatchCount caps how many chunks a query returns.
	DefaultMatchCount = 5

	queryCachePrefix = "query_embedding:"
)

// RetrievalService answers natural-language queries with the most similar
// stored chunks. It embeds the query with the same model used at ingestion
// and delegates ranking to the vector store.
type RetrievalService struct {
	embedder  ai.Embedder
	store     VectorStore
	cache     *redis.Client // nil disables caching
	cacheTTL  time.Duration
	threshold float64
	limit     int
}

// NewRetrievalService builds the query path. defaultThreshold and
// defaultLimit are the operator-configured fallbacks applied when a request
// leaves them unset; non-positive values fall back to the package defaults.
func NewRetrievalService(embedder ai.Embedder, store VectorStore, cache *redis.Client, cacheTTL time.Duration, defaultThreshold float64, defaultLimit int) (*RetrievalService, error) {
	if embedder == nil || store == nil {
		return nil, fmt.Errorf("retrieval service requires embedder and store")
	}
	if embedder.Dimension() != store.Dimension() {
		return nil, fmt.Errorf("embedder produces %d dimensions but store expects %d",
			embedder.Dimension(), store.Dimension())
	}
	if defaultThreshold <= 0 {
		defaultThreshold = DefaultMatchThreshold
	}
	if defaultLimit <= 0 {
		defaultLimit = DefaultMatchCount
	}
	return &RetrievalService{
		embedder:  embedder,
		store:     store,
		cache:     cache,
		cacheTTL:  cacheTTL,
		threshold: defaultThreshold,
		limit:     defaultLimit,
	}, nil
}

// Retrieve returns chunks relevant to query, ordered by descending
// similarity. threshold <= 0 and limit <= 0 fall back to the configured
// defaults. An empty result is a normal outcome, not an error.
func (s *RetrievalService) Retrieve(ctx context.Context, query string, threshold float64, limit int) ([]models.SimilarityResult, error) {
	tracer := otel.Tracer("retrieval")
	ctx, span := tracer.Start(ctx, "retrieval.retrieve")
	defer span.End()

	query = strings.TrimSpace(query)
	if query == "" {
		return nil, fmt.Errorf("query must not be empty")
	}
	if threshold <= 0 {
		threshold = s.threshold
	}
	if limit <= 0 {
		limit = s.limit
	}
	span.SetAttributes(
		attribute.Float64("retrieval.threshold", threshold),
		attribute.Int("retrieval.limit", limit),
	)

	start := time.Now()
	vec, err := s.queryEmbedding(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}

	results, err := s.store.Search(ctx, vec, threshold, limit)
	if err != nil {
		return nil, fmt.Errorf("search: %w", err)
	}

	// The store already orders by distance; keep the contract explicit in
	// case a backend returns ties unordered.
	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Similarity > results[j].Similarity
	})

	telemetry.RecordRetrieval(ctx, len(results), time.Since(start))
	span.SetAttributes(attribute.Int("retrieval.results", len(results)))
	return results, nil
}

// queryEmbedding returns the embedding for query, served from Redis when a
// previous identical query cached it. Cache failures fall back to the
// provider; the cache is an optimization, never a dependency.
func (s *RetrievalService) queryEmbedding(ctx context.Context, query string) ([]float32, error) {
	if s.cache == nil || s.cacheTTL <= 0 {
		return s.embedder.Embed(ctx, query)
	}

	key := queryCachePrefix + query
	if raw, err := s.cache.Get(ctx, key).Bytes(); err == nil {
		var vec []float32
		if err := json.Unmarshal(raw, &vec); err == nil && len(vec) == s.embedder.Dimension() {
			return vec, nil
		}
	} else if err != redis.Nil {
		logger.Warn("Query embedding cache read failed", "error", err)
	}

	vec, err := s.embedder.Embed(ctx, query)
	if err != nil {
		return nil, err
	}

	if raw, err := json.Marshal(vec); err == nil {
		if err := s.cache.Set(ctx, key, raw, s.cacheTTL).Err(); err != nil {
			logger.Warn("Query embedding cache write failed", "error", err)
		}
	}
	return vec, nil
}
