package ai

import (
	"context"
	"fmt"

	"legal-assistant-platform/internal/config"
)

// Embedder turns a text span into a fixed-length vector. The embedding model
// is process-wide configuration: ingestion and retrieval must use the same
// model against the same store, or similarity scores are meaningless.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	Model() string
	Dimension() int
}

// NewEmbedder builds the configured embedding provider.
// Default provider is Google Generative AI (text-embedding-004).
func NewEmbedder(cfg *config.Config) (Embedder, error) {
	switch cfg.EmbeddingsProvider {
	case "google", "":
		return NewGoogleEmbedder(cfg)
	case "huggingface":
		return NewHuggingFaceEmbedder(cfg)
	default:
		return nil, fmt.Errorf("unknown embeddings provider: %s", cfg.EmbeddingsProvider)
	}
}

// checkDimension enforces the store-wide dimensionality on every provider
// response. A wrong-sized vector is a configuration error and must never be
// truncated or padded.
func checkDimension(vec []float32, want int, model string) error {
	if len(vec) != want {
		return fmt.Errorf("embedding dimension mismatch: model %s returned %d dimensions, store is configured for %d",
			model, len(vec), want)
	}
	return nil
}
