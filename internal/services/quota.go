package services

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/temcen/cardforge/internal/config"
	"github.com/temcen/cardforge/pkg/models"
)

// CounterStore is the atomic counter backend behind the quota tracker.
// Incr must be safe under concurrent calls for the same key: two requests
// racing on one identity must never lose or double-count an increment.
type CounterStore interface {
	Incr(ctx context.Context, key string, window time.Duration) (count int64, ttl time.Duration, err error)
}

// Decision is the outcome of one quota check.
type Decision struct {
	Allowed bool
	Delay   time.Duration
	Info    models.QuotaInfo
}

// QuotaService enforces a fixed 24h window per identity-key with a soft
// threshold (requests past it are delayed) and a hard ceiling (requests past
// it are rejected until the window rolls over).
type QuotaService struct {
	config *config.Config
	logger *logrus.Logger
	store  CounterStore

	decisions *prometheus.CounterVec
}

func NewQuotaService(cfg *config.Config, logger *logrus.Logger, store CounterStore) *QuotaService {
	s := &QuotaService{
		config: cfg,
		logger: logger,
		store:  store,
	}

	s.decisions = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "quota_decisions_total",
		Help: "Quota tracker decisions by outcome",
	}, []string{"outcome"})

	if err := prometheus.Register(s.decisions); err != nil {
		if existing, ok := err.(prometheus.AlreadyRegisteredError); ok {
			s.decisions = existing.ExistingCollector.(*prometheus.CounterVec)
		} else {
			logger.WithError(err).Warn("Failed to register quota_decisions_total metric")
		}
	}

	return s
}

// Check increments the identity's counter and classifies the result. The
// increment and the read happen atomically in the store, so concurrent
// requests from one identity serialize on the backend, not here.
func (s *QuotaService) Check(ctx context.Context, identityKey, remoteAddr string) (*Decision, error) {
	window := s.config.Quota.Window
	count, ttl, err := s.store.Incr(ctx, fmt.Sprintf("quota:%s", identityKey), window)
	if err != nil {
		return nil, fmt.Errorf("failed to increment quota counter: %w", err)
	}

	hard := s.config.Quota.HardLimit
	soft := s.config.Quota.SoftLimit

	remaining := hard - int(count)
	if remaining < 0 {
		remaining = 0
	}
	resetTime := time.Now().Add(ttl).Unix()

	decision := &Decision{
		Allowed: int(count) <= hard,
		Info: models.QuotaInfo{
			Limit:     hard,
			Remaining: remaining,
			ResetTime: resetTime,
		},
	}

	outcome := "allowed"
	if !decision.Allowed {
		outcome = "blocked"
	} else if int(count) > soft {
		outcome = "delayed"
		decision.Delay = s.throttleDelay(int(count), soft)
	}
	s.decisions.WithLabelValues(outcome).Inc()

	entry := s.logger.WithFields(logrus.Fields{
		"identity_key": identityKey,
		"remote_addr":  remoteAddr,
		"count":        count,
		"remaining":    remaining,
		"reset_time":   resetTime,
		"outcome":      outcome,
	})
	if decision.Allowed {
		entry.Debug("Quota check")
	} else {
		entry.Warn("Quota exceeded")
	}

	return decision, nil
}

// Window returns the configured quota window.
func (s *QuotaService) Window() time.Duration {
	return s.config.Quota.Window
}

// throttleDelay grows linearly with requests over the soft threshold, capped
// at the configured maximum.
func (s *QuotaService) throttleDelay(count, soft int) time.Duration {
	delay := time.Duration(count-soft) * s.config.Quota.BaseDelay
	if delay > s.config.Quota.MaxDelay {
		delay = s.config.Quota.MaxDelay
	}
	return delay
}

// quotaIncrScript increments the counter and starts the fixed window on the
// first request, atomically. PTTL gives the time left until the hard reset.
var quotaIncrScript = redis.NewScript(`
local count = redis.call("INCR", KEYS[1])
if count == 1 then
  redis.call("PEXPIRE", KEYS[1], ARGV[1])
end
local ttl = redis.call("PTTL", KEYS[1])
return {count, ttl}
`)

// RedisCounterStore backs quota counters with Redis so counts survive
// restarts and stay correct across concurrent requests.
type RedisCounterStore struct {
	client *redis.Client
}

func NewRedisCounterStore(client *redis.Client) *RedisCounterStore {
	return &RedisCounterStore{client: client}
}

func (s *RedisCounterStore) Incr(ctx context.Context, key string, window time.Duration) (int64, time.Duration, error) {
	res, err := quotaIncrScript.Run(ctx, s.client, []string{key}, window.Milliseconds()).Result()
	if err != nil {
		return 0, 0, err
	}

	vals, ok := res.([]interface{})
	if !ok || len(vals) != 2 {
		return 0, 0, fmt.Errorf("unexpected quota script result: %v", res)
	}
	count, _ := vals[0].(int64)
	ttlMillis, _ := vals[1].(int64)
	ttl := time.Duration(ttlMillis) * time.Millisecond
	if ttl < 0 {
		ttl = window
	}

	return count, ttl, nil
}

// MemoryCounterStore is an in-process counter backend for development and
// tests. The clock is injectable so window rollover is testable.
type MemoryCounterStore struct {
	mu      sync.Mutex
	entries map[string]*memoryCounter
	now     func() time.Time
}

type memoryCounter struct {
	count     int64
	expiresAt time.Time
}

func NewMemoryCounterStore() *MemoryCounterStore {
	return &MemoryCounterStore{
		entries: make(map[string]*memoryCounter),
		now:     time.Now,
	}
}

// SetClock replaces the time source. Intended for tests.
func (s *MemoryCounterStore) SetClock(now func() time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.now = now
}

func (s *MemoryCounterStore) Incr(ctx context.Context, key string, window time.Duration) (int64, time.Duration, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	entry, ok := s.entries[key]
	if !ok || !now.Before(entry.expiresAt) {
		entry = &memoryCounter{expiresAt: now.Add(window)}
		s.entries[key] = entry
	}

	entry.count++
	return entry.count, entry.expiresAt.Sub(now), nil
}
