package main

import (
	"context"
	"flag"
	"log"
	"time"

	"legal-assistant-platform/internal/config"
	"legal-assistant-platform/internal/logger"
	"legal-assistant-platform/services"
)

// migrate prepares both backing stores: the pgvector schema (extension,
// chunk table, HNSW index, match function, model registry) and the MongoDB
// indexes. With -regenerate it also empties the chunk table so a new
// embedding model can be registered; re-ingestion then rebuilds every vector.
func main() {
	regenerate := flag.Bool("regenerate", false, "drop all stored chunks and re-register the configured embedding model")
	flag.Parse()

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal("Failed to load config:", err)
	}
	logger.InitLogger(cfg)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	// Connecting also creates the MongoDB indexes.
	mongoClient, err := config.ConnectMongoDB(cfg)
	if err != nil {
		log.Fatal("Failed to connect to MongoDB:", err)
	}
	defer mongoClient.Disconnect(ctx)
	logger.Info("MongoDB indexes ensured", "database", cfg.DBName)

	pgPool, err := config.ConnectPostgres(cfg)
	if err != nil {
		log.Fatal("Failed to connect to Postgres:", err)
	}
	defer pgPool.Close()

	store, err := services.NewPGVectorStore(pgPool, cfg.EmbeddingDimensions)
	if err != nil {
		log.Fatal("Failed to create vector store:", err)
	}

	if err := store.EnsureSchema(ctx, cfg.HNSWM, cfg.HNSWEfConstruction); err != nil {
		log.Fatal("Failed to ensure schema:", err)
	}
	logger.Info("Vector store schema ensured",
		"dimensions", cfg.EmbeddingDimensions,
		"hnsw_m", cfg.HNSWM, "hnsw_ef_construction", cfg.HNSWEfConstruction)

	model := cfg.GoogleEmbeddingsModel
	if cfg.EmbeddingsProvider == "huggingface" {
		model = cfg.HFEmbeddingsModel
	}

	if *regenerate {
		if err := store.DeleteAllChunks(ctx); err != nil {
			log.Fatal("Failed to drop chunks:", err)
		}
		if err := store.RegisterModel(ctx, model); err != nil {
			log.Fatal("Failed to register embedding model:", err)
		}
		logger.Info("Chunks dropped and model re-registered", "model", model)
		return
	}

	// Register on first run; afterwards refuse to silently switch models.
	if err := store.EnsureModel(ctx, model); err != nil {
		log.Fatal("Failed to register embedding model:", err)
	}
	if err := store.ValidateModel(ctx, model, cfg.EmbeddingDimensions); err != nil {
		log.Fatal("Embedding model mismatch - run with -regenerate to rebuild: ", err)
	}
	logger.Info("Migration complete", "model", model)
}
