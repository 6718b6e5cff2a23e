package ai

import (
	"context"
	"fmt"
	"time"

	"legal-assistant-platform/internal/config"
	"legal-assistant-platform/internal/logger"
	"legal-assistant-platform/internal/telemetry"

	"github.com/google/generative-ai-go/genai"
	"github.com/sony/gobreaker"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/time/rate"
	"google.golang.org/api/option"
)

// GoogleEmbedder embeds text with the Google Generative AI embedding models.
type GoogleEmbedder struct {
	client      *genai.Client
	model       string
	dimension   int
	breaker     *gobreaker.CircuitBreaker
	rateLimiter *rate.Limiter
	timeout     time.Duration
}

func NewGoogleEmbedder(cfg *config.Config) (*GoogleEmbedder, error) {
	if cfg.GeminiAPIKey == "" {
		return nil, fmt.Errorf("missing GEMINI_API_KEY for embeddings")
	}

	client, err := genai.NewClient(context.Background(), option.WithAPIKey(cfg.GeminiAPIKey))
	if err != nil {
		return nil, err
	}

	return &GoogleEmbedder{
		client:      client,
		model:       cfg.GoogleEmbeddingsModel,
		dimension:   cfg.EmbeddingDimensions,
		breaker:     newEmbeddingBreaker("GoogleEmbeddings"),
		rateLimiter: rate.NewLimiter(rate.Limit(10), 5), // free tier headroom
		timeout:     time.Duration(cfg.EmbedTimeout) * time.Second,
	}, nil
}

func (g *GoogleEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	tracer := otel.Tracer("embeddings")
	ctx, span := tracer.Start(ctx, "embeddings.embed")
	defer span.End()
	span.SetAttributes(
		attribute.String("embeddings.provider", "google"),
		attribute.String("embeddings.model", g.model),
		attribute.Int("embeddings.text_length", len(text)),
	)

	if err := g.rateLimiter.Wait(ctx); err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	result, err := g.breaker.Execute(func() (interface{}, error) {
		model := g.client.EmbeddingModel(g.model)
		resp, err := model.EmbedContent(ctx, genai.Text(text))
		if err != nil {
			return nil, err
		}
		if resp.Embedding == nil {
			return nil, fmt.Errorf("no embedding returned")
		}
		return resp.Embedding.Values, nil
	})
	telemetry.RecordEmbeddingCall(ctx, "google", err == nil)
	if err != nil {
		span.SetAttributes(attribute.Bool("embeddings.error", true))
		return nil, err
	}

	vec := result.([]float32)
	if err := checkDimension(vec, g.dimension, g.model); err != nil {
		return nil, err
	}
	return vec, nil
}

func (g *GoogleEmbedder) Model() string {
	return g.model
}

func (g *GoogleEmbedder) Dimension() int {
	return g.dimension
}

func (g *GoogleEmbedder) Close() error {
	if g.client != nil {
		return g.client.Close()
	}
	return nil
}

// newEmbeddingBreaker builds the circuit breaker shared by embedding
// providers. Opens after repeated failures so a dead provider fails fast
// instead of stalling a whole ingestion run.
func newEmbeddingBreaker(name string) *gobreaker.CircuitBreaker {
	return gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        name,
		MaxRequests: 5,
		Interval:    10 * time.Second,
		Timeout:     60 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return counts.Requests >= 3 && failureRatio >= 0.6
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			logger.Warn("Circuit breaker state change", "breaker", name, "from", from.String(), "to", to.String())
		},
	})
}
