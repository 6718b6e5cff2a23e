package ai

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"legal-assistant-platform/internal/config"
)

func testConfig(endpoint string, dims int) *config.Config {
	return &config.Config{
		HFAPIKey:            "test-key",
		HFEmbeddingsModel:   "BAAI/bge-small-en-v1.5",
		HFEndpoint:          endpoint,
		EmbeddingDimensions: dims,
		EmbedTimeout:        5,
	}
}

func TestHuggingFaceEmbedFlatResponse(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Bearer test-key" {
			t.Errorf("Authorization = %q", got)
		}
		if !strings.Contains(r.URL.Path, "pipeline/feature-extraction") {
			t.Errorf("unexpected path %q", r.URL.Path)
		}
		json.NewEncoder(w).Encode([]float32{0.1, 0.2, 0.3})
	}))
	defer server.Close()

	embedder, err := NewHuggingFaceEmbedder(testConfig(server.URL, 3))
	if err != nil {
		t.Fatal(err)
	}

	vec, err := embedder.Embed(context.Background(), "hello")
	if err != nil {
		t.Fatal(err)
	}
	if len(vec) != 3 || vec[1] != 0.2 {
		t.Fatalf("vec = %v", vec)
	}
}

func TestHuggingFaceEmbedBatchResponse(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode([][]float32{{1, 2}, {3, 4}})
	}))
	defer server.Close()

	embedder, err := NewHuggingFaceEmbedder(testConfig(server.URL, 2))
	if err != nil {
		t.Fatal(err)
	}

	vec, err := embedder.Embed(context.Background(), "hello")
	if err != nil {
		t.Fatal(err)
	}
	if len(vec) != 2 || vec[0] != 1 {
		t.Fatalf("vec = %v, want first row of the batch", vec)
	}
}

func TestHuggingFaceEmbedDimensionMismatch(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode([]float32{0.1, 0.2})
	}))
	defer server.Close()

	embedder, err := NewHuggingFaceEmbedder(testConfig(server.URL, 384))
	if err != nil {
		t.Fatal(err)
	}

	if _, err := embedder.Embed(context.Background(), "hello"); err == nil {
		t.Fatal("expected error for a wrong-sized vector")
	}
}

func TestHuggingFaceEmbedAPIError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":"model loading"}`, http.StatusServiceUnavailable)
	}))
	defer server.Close()

	embedder, err := NewHuggingFaceEmbedder(testConfig(server.URL, 3))
	if err != nil {
		t.Fatal(err)
	}

	if _, err := embedder.Embed(context.Background(), "hello"); err == nil {
		t.Fatal("expected error for a non-200 response")
	}
}

func TestNewHuggingFaceEmbedderRequiresKey(t *testing.T) {
	cfg := testConfig("http://localhost", 3)
	cfg.HFAPIKey = ""
	if _, err := NewHuggingFaceEmbedder(cfg); err == nil {
		t.Fatal("expected error without an API key")
	}
}

func TestParseFeatureExtractionRejectsGarbage(t *testing.T) {
	if _, err := parseFeatureExtraction([]byte(`{"error":"oops"}`)); err == nil {
		t.Fatal("expected error for an unexpected response shape")
	}
	if _, err := parseFeatureExtraction([]byte(`[]`)); err == nil {
		t.Fatal("expected error for an empty vector")
	}
}
