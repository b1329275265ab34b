package services

import (
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/temcen/cardforge/internal/config"
	"github.com/temcen/cardforge/internal/provider"
	"github.com/temcen/cardforge/internal/storage"
)

type Services struct {
	Auth     *AuthService
	Quota    *QuotaService
	Generate *GenerateService
	Health   *HealthService
}

// New wires the service layer. A nil redis client degrades gracefully: quota
// counters move in-process and logout revocation becomes a no-op.
func New(cfg *config.Config, logger *logrus.Logger, redisClient *redis.Client, providerClient provider.Client, store storage.Store) *Services {
	var counters CounterStore
	if redisClient != nil {
		counters = NewRedisCounterStore(redisClient)
	} else {
		logger.Warn("Redis not configured, quota counters are in-process only")
		counters = NewMemoryCounterStore()
	}

	return &Services{
		Auth:     NewAuthService(cfg, logger, redisClient),
		Quota:    NewQuotaService(cfg, logger, counters),
		Generate: NewGenerateService(cfg, logger, providerClient, store),
		Health:   NewHealthService(cfg, logger, redisClient, store),
	}
}
