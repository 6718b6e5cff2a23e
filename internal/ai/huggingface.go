package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"legal-assistant-platform/internal/config"
	"legal-assistant-platform/internal/telemetry"

	"github.com/sony/gobreaker"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/time/rate"
)

// HuggingFaceEmbedder calls the HuggingFace Inference API feature-extraction
// pipeline. The reference deployment uses BAAI/bge-small-en-v1.5 (384 dims).
type HuggingFaceEmbedder struct {
	httpClient  *http.Client
	endpoint    string
	apiKey      string
	model       string
	dimension   int
	breaker     *gobreaker.CircuitBreaker
	rateLimiter *rate.Limiter
}

func NewHuggingFaceEmbedder(cfg *config.Config) (*HuggingFaceEmbedder, error) {
	if cfg.HFAPIKey == "" {
		return nil, fmt.Errorf("missing HF_API_KEY for embeddings")
	}

	return &HuggingFaceEmbedder{
		httpClient:  &http.Client{Timeout: time.Duration(cfg.EmbedTimeout) * time.Second},
		endpoint:    cfg.HFEndpoint,
		apiKey:      cfg.HFAPIKey,
		model:       cfg.HFEmbeddingsModel,
		dimension:   cfg.EmbeddingDimensions,
		breaker:     newEmbeddingBreaker("HuggingFaceEmbeddings"),
		rateLimiter: rate.NewLimiter(rate.Limit(5), 5),
	}, nil
}

func (h *HuggingFaceEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	tracer := otel.Tracer("embeddings")
	ctx, span := tracer.Start(ctx, "embeddings.embed")
	defer span.End()
	span.SetAttributes(
		attribute.String("embeddings.provider", "huggingface"),
		attribute.String("embeddings.model", h.model),
		attribute.Int("embeddings.text_length", len(text)),
	)

	if err := h.rateLimiter.Wait(ctx); err != nil {
		return nil, err
	}

	result, err := h.breaker.Execute(func() (interface{}, error) {
		return h.requestEmbedding(ctx, text)
	})
	telemetry.RecordEmbeddingCall(ctx, "huggingface", err == nil)
	if err != nil {
		span.SetAttributes(attribute.Bool("embeddings.error", true))
		return nil, err
	}

	vec := result.([]float32)
	if err := checkDimension(vec, h.dimension, h.model); err != nil {
		return nil, err
	}
	return vec, nil
}

func (h *HuggingFaceEmbedder) requestEmbedding(ctx context.Context, text string) ([]float32, error) {
	body, err := json.Marshal(map[string]any{"inputs": text})
	if err != nil {
		return nil, err
	}

	url := fmt.Sprintf("%s/pipeline/feature-extraction/%s", h.endpoint, h.model)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+h.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := h.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("huggingface API returned %d: %s", resp.StatusCode, truncate(payload, 200))
	}

	return parseFeatureExtraction(payload)
}

// parseFeatureExtraction accepts both response shapes of the pipeline: a flat
// vector for a single sentence input, or a batch of vectors.
func parseFeatureExtraction(payload []byte) ([]float32, error) {
	var flat []float32
	if err := json.Unmarshal(payload, &flat); err == nil && len(flat) > 0 {
		return flat, nil
	}

	var batch [][]float32
	if err := json.Unmarshal(payload, &batch); err == nil && len(batch) > 0 {
		return batch[0], nil
	}

	return nil, fmt.Errorf("unexpected feature-extraction response: %s", truncate(payload, 200))
}

func (h *HuggingFaceEmbedder) Model() string {
	return h.model
}

func (h *HuggingFaceEmbedder) Dimension() int {
	return h.dimension
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}
