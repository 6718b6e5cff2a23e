package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"legal-assistant-platform/internal/ai"
	"legal-assistant-platform/internal/config"
	"legal-assistant-platform/internal/logger"
	"legal-assistant-platform/internal/queue"
	"legal-assistant-platform/internal/telemetry"
	"legal-assistant-platform/services"

	"github.com/hibiken/asynq"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal("Failed to load config:", err)
	}
	logger.InitLogger(cfg)

	shutdownTracer, err := telemetry.InitTracer("legal-assistant-worker", cfg.OTLPEndpoint)
	if err != nil {
		logger.Warn("Tracing disabled", "error", err)
	} else {
		defer shutdownTracer()
	}
	if _, err := telemetry.InitMetrics(); err != nil {
		log.Fatal("Failed to init metrics:", err)
	}

	mongoClient, err := config.ConnectMongoDB(cfg)
	if err != nil {
		log.Fatal("Failed to connect to MongoDB:", err)
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		mongoClient.Disconnect(ctx)
	}()
	db := mongoClient.Database(cfg.DBName)

	pgPool, err := config.ConnectPostgres(cfg)
	if err != nil {
		log.Fatal("Failed to connect to Postgres:", err)
	}
	defer pgPool.Close()

	store, err := services.NewPGVectorStore(pgPool, cfg.EmbeddingDimensions)
	if err != nil {
		log.Fatal("Failed to create vector store:", err)
	}

	embedder, err := ai.NewEmbedder(cfg)
	if err != nil {
		log.Fatal("Failed to create embedder:", err)
	}

	startupCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	if err := store.ValidateModel(startupCtx, embedder.Model(), embedder.Dimension()); err != nil {
		cancel()
		log.Fatal("Vector store validation failed: ", err)
	}
	cancel()

	chunker, err := services.NewTextChunker(cfg.MaxChunkSize, cfg.ChunkOverlap)
	if err != nil {
		log.Fatal("Failed to create chunker:", err)
	}

	storage, err := services.NewDocumentStorage(cfg.StorageDir, cfg.MaxFileSize)
	if err != nil {
		log.Fatal("Failed to open document storage:", err)
	}

	recorder := services.NewMongoRecorder(db)
	ingestion, err := services.NewIngestionService(
		chunker, embedder, store, recorder,
		cfg.InsertBatchSize, cfg.EmbedMaxRetries,
		time.Duration(cfg.EmbedRetryBackoffMS)*time.Millisecond,
	)
	if err != nil {
		log.Fatal("Failed to create ingestion service:", err)
	}

	// Periodic deduplication runs in the worker, next to the queue handlers.
	maintenance := services.NewMaintenanceService(store)
	if err := maintenance.Start(time.Duration(cfg.DedupIntervalHours) * time.Hour); err != nil {
		log.Fatal("Failed to start maintenance scheduler:", err)
	}
	defer maintenance.Stop()

	redisOpt, err := queue.RedisConnOpt(cfg)
	if err != nil {
		log.Fatal("Failed to configure task queue:", err)
	}

	server := asynq.NewServer(
		redisOpt,
		asynq.Config{
			Concurrency: 10,
			Queues: map[string]int{
				"critical": 6,
				"default":  3,
				"low":      1,
			},
			StrictPriority: true,
			ErrorHandler: asynq.ErrorHandlerFunc(func(ctx context.Context, task *asynq.Task, err error) {
				logger.Error("Task failed", "type", task.Type(), "error", err)
			}),
		},
	)

	processor := queue.NewTaskProcessor(ingestion, storage, db)

	mux := asynq.NewServeMux()
	mux.HandleFunc(queue.TaskIngestDocument, processor.ProcessDocument)
	mux.HandleFunc(queue.TaskIngestAll, processor.ProcessIngestAll)

	go func() {
		logger.Info("Starting ingestion worker",
			"concurrency", 10, "queues", "critical(6), default(3), low(1)")
		if err := server.Run(mux); err != nil {
			log.Fatal("Failed to start worker:", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("Shutting down worker...")
	server.Shutdown()
}
