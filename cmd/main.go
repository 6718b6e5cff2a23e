package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"legal-assistant-platform/internal/ai"
	"legal-assistant-platform/internal/config"
	"legal-assistant-platform/internal/logger"
	"legal-assistant-platform/internal/queue"
	"legal-assistant-platform/internal/telemetry"
	"legal-assistant-platform/middleware"
	"legal-assistant-platform/routes"
	"legal-assistant-platform/services"

	"github.com/gin-gonic/gin"
	"github.com/hibiken/asynq"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal("Failed to load config:", err)
	}
	logger.InitLogger(cfg)

	shutdownTracer, err := telemetry.InitTracer("legal-assistant-platform", cfg.OTLPEndpoint)
	if err != nil {
		logger.Warn("Tracing disabled", "error", err)
	} else {
		defer shutdownTracer()
	}
	metrics, err := telemetry.InitMetrics()
	if err != nil {
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

	rdb, err := config.NewRedisClient(cfg)
	if err != nil {
		log.Fatal("Failed to connect to Redis:", err)
	}
	defer rdb.Close()

	store, err := services.NewPGVectorStore(pgPool, cfg.EmbeddingDimensions)
	if err != nil {
		log.Fatal("Failed to create vector store:", err)
	}

	embedder, err := ai.NewEmbedder(cfg)
	if err != nil {
		log.Fatal("Failed to create embedder:", err)
	}

	// Refuse to serve queries against a store built with a different model.
	startupCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	if err := store.ValidateModel(startupCtx, embedder.Model(), embedder.Dimension()); err != nil {
		cancel()
		log.Fatal("Vector store validation failed: ", err)
	}
	cancel()

	retrieval, err := services.NewRetrievalService(embedder, store, rdb,
		time.Duration(cfg.QueryCacheTTL)*time.Second, cfg.MatchThreshold, cfg.MatchCount)
	if err != nil {
		log.Fatal("Failed to create retrieval service:", err)
	}
	maintenance := services.NewMaintenanceService(store)

	redisOpt, err := queue.RedisConnOpt(cfg)
	if err != nil {
		log.Fatal("Failed to configure task queue:", err)
	}
	queueClient := asynq.NewClient(redisOpt)
	defer queueClient.Close()

	if cfg.GinMode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.RequestIDMiddleware())
	router.Use(middleware.CORSMiddleware(cfg.CORSOrigins))
	router.Use(middleware.TracingMiddleware())
	router.Use(middleware.EnrichTrace())
	router.Use(middleware.MetricsMiddleware(metrics))
	router.Use(middleware.RateLimitMiddleware(rdb, cfg))

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "healthy", "timestamp": time.Now()})
	})
	router.GET("/ready", func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()
		if err := pgPool.Ping(ctx); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded", "postgres": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	})

	documentsCol := db.Collection("documents")
	auth := middleware.AuthMiddleware(cfg.JWTSecret)

	api := router.Group("/api", auth)
	{
		api.POST("/query", routes.HandleQuery(retrieval))
		api.POST("/documents", routes.HandleDocumentUpload(cfg, documentsCol, queueClient))
		api.GET("/documents", routes.ListDocuments(documentsCol))
		api.GET("/documents/:id/status", routes.CheckDocumentStatus(documentsCol))

		admin := api.Group("/admin", middleware.RequireAdmin())
		{
			admin.POST("/ingest-all", routes.HandleIngestAll(queueClient))
			admin.POST("/dedup", routes.HandleDedup(maintenance))
		}
	}

	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: router,
	}

	go func() {
		logger.Info("Server starting", "port", cfg.Port, "embeddings_model", embedder.Model())
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Fatal("Server forced to shutdown:", err)
	}

	logger.Info("Server exited")
}
