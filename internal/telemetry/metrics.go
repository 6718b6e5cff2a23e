package telemetry

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Metrics holds all application metrics
type Metrics struct {
	RequestCounter    metric.Int64Counter
	RequestDuration   metric.Float64Histogram
	ChunksIngested    metric.Int64Counter
	IngestDuration    metric.Float64Histogram
	RetrievalResults  metric.Int64Counter
	RetrievalDuration metric.Float64Histogram
	EmbeddingCalls    metric.Int64Counter
	ChunksDeleted     metric.Int64Counter
}

// defaultMetrics is the process-wide instance used by the package-level
// record helpers. Nil until InitMetrics runs, in which case recording is a
// no-op (tests never initialize it).
var defaultMetrics *Metrics

// InitMetrics initializes all application metrics
func InitMetrics() (*Metrics, error) {
	meter := otel.Meter("legal-assistant-platform")

	requestCounter, err := meter.Int64Counter(
		"http.requests.total",
		metric.WithDescription("Total HTTP requests"),
	)
	if err != nil {
		return nil, err
	}

	requestDuration, err := meter.Float64Histogram(
		"http.request.duration",
		metric.WithDescription("HTTP request duration in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	chunksIngested, err := meter.Int64Counter(
		"ingestion.chunks.total",
		metric.WithDescription("Total chunks written to the vector store"),
	)
	if err != nil {
		return nil, err
	}

	ingestDuration, err := meter.Float64Histogram(
		"ingestion.document.duration",
		metric.WithDescription("Per-document ingestion duration in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	retrievalResults, err := meter.Int64Counter(
		"retrieval.results.total",
		metric.WithDescription("Total chunks returned by similarity queries"),
	)
	if err != nil {
		return nil, err
	}

	retrievalDuration, err := meter.Float64Histogram(
		"retrieval.query.duration",
		metric.WithDescription("Similarity query duration in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	embeddingCalls, err := meter.Int64Counter(
		"embeddings.calls.total",
		metric.WithDescription("Total embedding provider calls"),
	)
	if err != nil {
		return nil, err
	}

	chunksDeleted, err := meter.Int64Counter(
		"dedup.chunks.deleted",
		metric.WithDescription("Chunks removed by deduplication runs"),
	)
	if err != nil {
		return nil, err
	}

	m := &Metrics{
		RequestCounter:    requestCounter,
		RequestDuration:   requestDuration,
		ChunksIngested:    chunksIngested,
		IngestDuration:    ingestDuration,
		RetrievalResults:  retrievalResults,
		RetrievalDuration: retrievalDuration,
		EmbeddingCalls:    embeddingCalls,
		ChunksDeleted:     chunksDeleted,
	}
	defaultMetrics = m
	return m, nil
}

// RecordRequest records HTTP request metrics
func (m *Metrics) RecordRequest(method, path, status string, duration float64) {
	attrs := []attribute.KeyValue{
		attribute.String("http.method", method),
		attribute.String("http.path", path),
		attribute.String("http.status", status),
	}

	m.RequestCounter.Add(context.Background(), 1, metric.WithAttributes(attrs...))
	m.RequestDuration.Record(context.Background(), duration, metric.WithAttributes(attrs...))
}

// RecordIngest records the outcome of one document ingestion.
func RecordIngest(ctx context.Context, status string, chunks int, duration time.Duration) {
	if defaultMetrics == nil {
		return
	}
	attrs := metric.WithAttributes(attribute.String("ingestion.status", status))
	defaultMetrics.ChunksIngested.Add(ctx, int64(chunks), attrs)
	defaultMetrics.IngestDuration.Record(ctx, duration.Seconds(), attrs)
}

// RecordRetrieval records the outcome of one similarity query.
func RecordRetrieval(ctx context.Context, results int, duration time.Duration) {
	if defaultMetrics == nil {
		return
	}
	defaultMetrics.RetrievalResults.Add(ctx, int64(results))
	defaultMetrics.RetrievalDuration.Record(ctx, duration.Seconds())
}

// RecordEmbeddingCall records one embedding provider call.
func RecordEmbeddingCall(ctx context.Context, provider string, success bool) {
	if defaultMetrics == nil {
		return
	}
	defaultMetrics.EmbeddingCalls.Add(ctx, 1, metric.WithAttributes(
		attribute.String("embeddings.provider", provider),
		attribute.Bool("embeddings.success", success),
	))
}

// RecordDedup records the result of a deduplication run.
func RecordDedup(ctx context.Context, deleted int64) {
	if defaultMetrics == nil {
		return
	}
	defaultMetrics.ChunksDeleted.Add(ctx, deleted)
}
