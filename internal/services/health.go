package services

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/temcen/cardforge/internal/config"
	"github.com/temcen/cardforge/internal/storage"
	"github.com/temcen/cardforge/pkg/models"
)

type HealthService struct {
	config      *config.Config
	logger      *logrus.Logger
	redisClient *redis.Client
	store       storage.Store

	healthCheckStatus *prometheus.GaugeVec
}

type HealthStatus struct {
	Status    string            `json:"status"`
	Timestamp time.Time         `json:"timestamp"`
	Services  map[string]string `json:"services,omitempty"`
}

// StorageCheck is one exercised storage operation and its outcome.
type StorageCheck struct {
	Check  string `json:"check"`
	Passed bool   `json:"passed"`
	Error  string `json:"error,omitempty"`
}

type StorageHealth struct {
	Status    string         `json:"status"`
	Timestamp time.Time      `json:"timestamp"`
	Backend   string         `json:"backend"`
	Checks    []StorageCheck `json:"checks"`
}

func NewHealthService(cfg *config.Config, logger *logrus.Logger, redisClient *redis.Client, store storage.Store) *HealthService {
	hs := &HealthService{
		config:      cfg,
		logger:      logger,
		redisClient: redisClient,
		store:       store,
	}

	hs.healthCheckStatus = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "health_check_status",
		Help: "Health check status (1 = healthy, 0 = unhealthy)",
	}, []string{"service"})

	if err := prometheus.Register(hs.healthCheckStatus); err != nil {
		if existing, ok := err.(prometheus.AlreadyRegisteredError); ok {
			hs.healthCheckStatus = existing.ExistingCollector.(*prometheus.GaugeVec)
		} else {
			logger.WithError(err).Warn("Failed to register health_check_status metric")
		}
	}

	return hs
}

// CheckHealth is the cheap liveness probe. Redis being down degrades the
// status but does not make the process unhealthy: quota falls back to
// fail-open and sessions still verify by signature.
func (s *HealthService) CheckHealth() *HealthStatus {
	status := &HealthStatus{
		Status:    "healthy",
		Timestamp: time.Now().UTC(),
		Services:  make(map[string]string),
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if s.redisClient != nil {
		if err := s.redisClient.Ping(ctx).Err(); err != nil {
			status.Services["redis"] = "unhealthy"
			status.Status = "degraded"
			s.healthCheckStatus.WithLabelValues("redis").Set(0)
			s.logger.WithError(err).Warn("Redis is unhealthy")
		} else {
			status.Services["redis"] = "healthy"
			s.healthCheckStatus.WithLabelValues("redis").Set(1)
		}
	}

	if err := s.store.Ping(ctx); err != nil {
		status.Services["storage"] = "unhealthy"
		status.Status = "degraded"
		s.healthCheckStatus.WithLabelValues("storage").Set(0)
		s.logger.WithError(err).Warn("Storage is unhealthy")
	} else {
		status.Services["storage"] = "healthy"
		s.healthCheckStatus.WithLabelValues("storage").Set(1)
	}

	return status
}

// CheckStorage exercises every storage operation end to end and reports
// per-check pass/fail. Probe artifacts land under the _healthcheck series.
func (s *HealthService) CheckStorage(ctx context.Context) *StorageHealth {
	health := &StorageHealth{
		Status:    "healthy",
		Timestamp: time.Now().UTC(),
		Backend:   s.config.Storage.Backend,
	}

	probeID := "healthcheck-" + uuid.NewString()
	const probeSeries = "_healthcheck"

	checks := []struct {
		name string
		run  func() error
	}{
		{"ping", func() error {
			return s.store.Ping(ctx)
		}},
		{"save_image", func() error {
			_, err := s.store.SaveImage(ctx, probeID, bytes.Repeat([]byte{0xFF}, 2048), probeSeries)
			return err
		}},
		{"save_card", func() error {
			now := time.Now().UTC()
			_, err := s.store.SaveCard(ctx, probeID, &models.CardRecord{
				ID:          probeID,
				Title:       "Health Check",
				Series:      probeSeries,
				Stats:       map[string]int{"probe": 1},
				GeneratedAt: &now,
			})
			return err
		}},
		{"list_cards", func() error {
			_, err := s.store.ListCards(ctx, probeSeries)
			return err
		}},
		{"append_log", func() error {
			return s.store.AppendLog(ctx, "info", "storage health check", map[string]interface{}{
				"probe_id": probeID,
			})
		}},
		{"stats", func() error {
			_, err := s.store.Stats(ctx)
			return err
		}},
		{"signed_url_traversal_guard", func() error {
			if _, err := s.store.SignedImageURL(ctx, "../../etc/passwd"); err == nil {
				return fmt.Errorf("traversal path was not rejected")
			}
			return nil
		}},
	}

	for _, check := range checks {
		result := StorageCheck{Check: check.name, Passed: true}
		if err := check.run(); err != nil {
			result.Passed = false
			result.Error = err.Error()
			health.Status = "unhealthy"
			s.logger.WithError(err).WithField("check", check.name).Error("Storage health check failed")
		}
		health.Checks = append(health.Checks, result)
	}

	return health
}
