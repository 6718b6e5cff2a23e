package services

import (
	"context"
	"time"

	"legal-assistant-platform/internal/logger"
	"legal-assistant-platform/internal/telemetry"

	"github.com/go-co-op/gocron"
)

// MaintenanceService runs periodic background jobs against the vector store.
// Currently one job: deduplication, which removes superseded chunk groups
// left behind by re-ingestion.
type MaintenanceService struct {
	scheduler *gocron.Scheduler
	store     VectorStore
}

func NewMaintenanceService(store VectorStore) *MaintenanceService {
	s := gocron.NewScheduler(time.UTC)
	s.TagsUnique()
	return &MaintenanceService{scheduler: s, store: store}
}

// Start schedules the deduplication job and begins running it asynchronously.
func (m *MaintenanceService) Start(interval time.Duration) error {
	_, err := m.scheduler.Every(interval).Tag("dedup").Do(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
		defer cancel()
		if _, err := m.RunDedup(ctx); err != nil {
			logger.Error("Scheduled deduplication failed", "error", err)
		}
	})
	if err != nil {
		return err
	}
	m.scheduler.StartAsync()
	logger.Info("Maintenance scheduler started", "dedup_interval", interval.String())
	return nil
}

// RunDedup executes one deduplication pass and returns the number of chunks
// removed. Also invoked directly by the admin endpoint.
func (m *MaintenanceService) RunDedup(ctx context.Context) (int64, error) {
	deleted, err := m.store.Deduplicate(ctx)
	if err != nil {
		return 0, err
	}
	telemetry.RecordDedup(ctx, deleted)
	logger.Info("Deduplication finished", "chunks_deleted", deleted)
	return deleted, nil
}

func (m *MaintenanceService) Stop() {
	m.scheduler.Stop()
}
