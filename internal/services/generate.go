package services

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"

	"github.com/temcen/cardforge/internal/config"
	"github.com/temcen/cardforge/internal/provider"
	"github.com/temcen/cardforge/internal/storage"
	"github.com/temcen/cardforge/pkg/models"
)

// minImageBytes guards against provider-side failure modes that return a
// token-sized payload instead of an image (safety filters mostly).
const minImageBytes = 1024

// ParseError is an unparseable text-model reply. The raw provider text is
// carried so prompt problems are diagnosable instead of opaque 500s.
type ParseError struct {
	Raw string
	Err error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("failed to parse provider response as JSON: %v", e.Err)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// InvalidImageError is a provider image payload too small to be a real image.
type InvalidImageError struct {
	Bytes int
}

func (e *InvalidImageError) Error() string {
	return fmt.Sprintf("generated image data is invalid (%d bytes)", e.Bytes)
}

// GenerateService proxies prompts to the AI provider and normalizes replies
// into the uniform response envelope. Image persistence is best-effort:
// a storage outage never fails a generation that already succeeded.
type GenerateService struct {
	config *config.Config
	logger *logrus.Logger
	client provider.Client
	store  storage.Store

	duration *prometheus.HistogramVec
	outcomes *prometheus.CounterVec
}

func NewGenerateService(cfg *config.Config, logger *logrus.Logger, client provider.Client, store storage.Store) *GenerateService {
	s := &GenerateService{
		config: cfg,
		logger: logger,
		client: client,
		store:  store,
	}

	s.duration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "generation_duration_seconds",
		Help:    "Provider round-trip duration by model kind",
		Buckets: prometheus.DefBuckets,
	}, []string{"kind"})
	s.outcomes = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "generation_outcomes_total",
		Help: "Generation results by model kind and outcome",
	}, []string{"kind", "outcome"})

	for _, c := range []prometheus.Collector{s.duration, s.outcomes} {
		if err := prometheus.Register(c); err != nil {
			if _, ok := err.(prometheus.AlreadyRegisteredError); !ok {
				logger.WithError(err).Warn("Failed to register generation metric")
			}
		}
	}

	return s
}

// Generate dispatches on the request's model kind and returns the response
// envelope. Prompt content is never logged, only its length.
func (s *GenerateService) Generate(ctx context.Context, req *models.GenerationRequest, playerCode string) (*models.GenerationResponse, error) {
	if req.Prompt == "" || req.ModelKind == "" {
		return nil, fmt.Errorf("prompt and modelKind are required")
	}

	start := time.Now()

	var resp *models.GenerationResponse
	var err error
	switch req.ModelKind {
	case models.ModelKindText:
		resp, err = s.generateText(ctx, req.Prompt)
	case models.ModelKindImage:
		resp, err = s.generateImage(ctx, req)
	default:
		return nil, fmt.Errorf("unknown modelKind %q", req.ModelKind)
	}

	duration := time.Since(start)
	outcome := "success"
	if err != nil {
		outcome = "error"
	}
	s.duration.WithLabelValues(req.ModelKind).Observe(duration.Seconds())
	s.outcomes.WithLabelValues(req.ModelKind, outcome).Inc()

	s.logger.WithFields(logrus.Fields{
		"kind":          req.ModelKind,
		"player_code":   playerCode,
		"prompt_length": len(req.Prompt),
		"duration_ms":   duration.Milliseconds(),
		"outcome":       outcome,
	}).Info("Generation call finished")

	s.auditLog(ctx, req.ModelKind, playerCode, duration, outcome)

	return resp, err
}

func (s *GenerateService) generateText(ctx context.Context, prompt string) (*models.GenerationResponse, error) {
	raw, err := s.client.GenerateText(ctx, prompt)
	if err != nil {
		return nil, fmt.Errorf("text generation failed: %w", err)
	}

	cleaned := stripCodeFences(raw)

	var data interface{}
	if err := json.Unmarshal([]byte(cleaned), &data); err != nil {
		return nil, &ParseError{Raw: raw, Err: err}
	}

	// Arrays of card-idea objects come back under whatever field names the
	// model picked this time; canonicalize them when they fit the shape.
	// Anything else passes through as parsed.
	if ideas, err := NormalizeCardIdeas(data); err == nil {
		data = ideas
	} else if looksLikeCardIdeas(data) {
		s.logger.WithError(err).Debug("Card-idea array failed normalization, returning raw payload")
	}

	return &models.GenerationResponse{
		Kind: models.ResponseKindJSON,
		Data: data,
	}, nil
}

func (s *GenerateService) generateImage(ctx context.Context, req *models.GenerationRequest) (*models.GenerationResponse, error) {
	imageBytes, err := s.client.GenerateImage(ctx, req.Prompt)
	if err != nil {
		return nil, fmt.Errorf("image generation failed: %w", err)
	}

	if len(imageBytes) < minImageBytes {
		return nil, &InvalidImageError{Bytes: len(imageBytes)}
	}

	resp := &models.GenerationResponse{
		Kind: models.ResponseKindImage,
		MIME: "image/jpeg",
		Data: base64.StdEncoding.EncodeToString(imageBytes),
	}

	// Persistence is best-effort: the caller still gets the image when
	// storage is down, just without a durable URL.
	if req.CardID != "" && req.Series != "" {
		url, err := s.store.SaveImage(ctx, req.CardID, imageBytes, req.Series)
		if err != nil {
			s.logger.WithError(err).WithFields(logrus.Fields{
				"card_id": req.CardID,
				"series":  req.Series,
			}).Error("Failed to persist generated image")
		} else {
			resp.PersistentURL = url
		}
	}

	return resp, nil
}

// auditLog appends the generation outcome to the storage-partitioned audit
// log. Failures are logged and swallowed.
func (s *GenerateService) auditLog(ctx context.Context, kind, playerCode string, duration time.Duration, outcome string) {
	err := s.store.AppendLog(ctx, "info", "generation call", map[string]interface{}{
		"kind":        kind,
		"player_code": playerCode,
		"duration_ms": duration.Milliseconds(),
		"outcome":     outcome,
	})
	if err != nil {
		s.logger.WithError(err).Warn("Failed to append audit log entry")
	}
}

// looksLikeCardIdeas reports whether a parsed payload is an array of objects,
// the shape card ideas arrive in. Arrays of scalars (stat-name lists) are
// expected passthrough and not worth a log line.
func looksLikeCardIdeas(data interface{}) bool {
	items, ok := data.([]interface{})
	if !ok || len(items) == 0 {
		return false
	}
	_, ok = items[0].(map[string]interface{})
	return ok
}

// stripCodeFences removes a markdown code fence the text model sometimes
// wraps JSON replies in.
func stripCodeFences(s string) string {
	trimmed := strings.TrimSpace(s)
	if !strings.HasPrefix(trimmed, "```") {
		return trimmed
	}

	trimmed = strings.TrimPrefix(trimmed, "```")
	if idx := strings.Index(trimmed, "\n"); idx >= 0 {
		// Drop the language tag line (```json).
		trimmed = trimmed[idx+1:]
	}
	trimmed = strings.TrimSuffix(strings.TrimSpace(trimmed), "```")
	return strings.TrimSpace(trimmed)
}
