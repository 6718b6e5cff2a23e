package queue

import (
	"strings"

	"legal-assistant-platform/internal/config"

	"github.com/hibiken/asynq"
)

// RedisConnOpt builds the asynq Redis connection from config. Accepts either
// a full redis:// URL or a bare host:port, same as the Redis client.
func RedisConnOpt(cfg *config.Config) (asynq.RedisConnOpt, error) {
	if strings.HasPrefix(cfg.RedisURL, "redis://") || strings.HasPrefix(cfg.RedisURL, "rediss://") {
		return asynq.ParseRedisURI(cfg.RedisURL)
	}
	return asynq.RedisClientOpt{
		Addr:     cfg.RedisURL,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	}, nil
}
