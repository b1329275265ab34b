package app

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/temcen/cardforge/internal/config"
	"github.com/temcen/cardforge/internal/handlers"
	"github.com/temcen/cardforge/internal/middleware"
	"github.com/temcen/cardforge/internal/provider"
	"github.com/temcen/cardforge/internal/services"
	"github.com/temcen/cardforge/internal/storage"
	"github.com/temcen/cardforge/internal/validation"
)

type App struct {
	config      *config.Config
	logger      *logrus.Logger
	redisClient *redis.Client
	store       storage.Store
	services    *services.Services
	handlers    *handlers.Handlers
	router      *gin.Engine
}

func New(cfg *config.Config) (*App, error) {
	// Config validation is the fail-fast gate: no signing secret, no server.
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	app := &App{
		config: cfg,
		logger: setupLogger(cfg),
	}

	if cfg.Redis.Addr != "" {
		app.redisClient = redis.NewClient(&redis.Options{
			Addr:         cfg.Redis.Addr,
			MaxRetries:   cfg.Redis.MaxRetries,
			PoolSize:     cfg.Redis.PoolSize,
			ReadTimeout:  cfg.Redis.Timeout,
			WriteTimeout: cfg.Redis.Timeout,
		})
	}

	store, err := newStore(cfg, app.logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize storage backend: %w", err)
	}
	app.store = store

	providerClient := provider.NewGeminiClient(cfg.Provider, app.logger)
	app.services = services.New(cfg, app.logger, app.redisClient, providerClient, store)

	schemaValidator, err := validation.NewSchemaValidator()
	if err != nil {
		return nil, fmt.Errorf("failed to compile validation schemas: %w", err)
	}

	app.handlers = handlers.New(cfg, app.logger, app.services, store, schemaValidator)

	app.setupRouter()

	return app, nil
}

func (a *App) Router() *gin.Engine {
	return a.router
}

func (a *App) Shutdown(ctx context.Context) error {
	a.logger.Info("Shutting down application...")

	if a.redisClient != nil {
		if err := a.redisClient.Close(); err != nil {
			a.logger.WithError(err).Error("Error closing Redis connection")
		}
	}

	if closer, ok := a.store.(interface{ Close() error }); ok {
		if err := closer.Close(); err != nil {
			a.logger.WithError(err).Error("Error closing storage backend")
			return err
		}
	}

	return nil
}

// newStore resolves the storage backend exactly once; the rest of the
// process only sees the Store interface.
func newStore(cfg *config.Config, logger *logrus.Logger) (storage.Store, error) {
	switch cfg.Storage.Backend {
	case "gcs":
		logger.WithField("bucket", cfg.Storage.Bucket).Info("Using GCS storage backend")
		return storage.NewGCSStore(context.Background(), cfg.Storage.Bucket, cfg.Storage.SignedURLTTL, logger)
	default:
		logger.WithField("dir", cfg.Storage.LocalDir).Info("Using local storage backend")
		return storage.NewLocalStore(cfg.Storage.LocalDir, cfg.Storage.PublicBaseURL, logger)
	}
}

func setupLogger(cfg *config.Config) *logrus.Logger {
	logger := logrus.New()

	level, err := logrus.ParseLevel(cfg.Logging.Level)
	if err != nil {
		level = logrus.InfoLevel
	}
	logger.SetLevel(level)

	if cfg.Logging.Format == "json" {
		logger.SetFormatter(&logrus.JSONFormatter{})
	} else {
		logger.SetFormatter(&logrus.TextFormatter{
			FullTimestamp: true,
		})
	}

	return logger
}

func (a *App) setupRouter() {
	if a.config.Server.Mode == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()

	// Global middleware
	router.Use(middleware.RequestID())
	router.Use(middleware.Logger(a.logger))
	router.Use(middleware.Recovery(a.logger))
	router.Use(middleware.CORS(a.config))

	// Health and metrics endpoints: unauthenticated and never quota-checked.
	router.GET("/health", a.handlers.Health.Check)
	router.GET("/health/storage", a.handlers.Health.Storage)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// Locally stored images are served as static files; the GCS backend
	// hands out signed URLs instead.
	if a.config.Storage.Backend == "local" {
		if local, ok := a.store.(*storage.LocalStore); ok {
			router.Static(a.config.Storage.PublicBaseURL+"/images", filepath.Join(local.Root(), "images"))
		}
	}

	// Auth endpoints are exempt from quota by construction: a locked-out
	// player must still be able to attempt login.
	auth := router.Group("/api/auth")
	{
		auth.POST("/login", a.handlers.Auth.Login)
		auth.GET("/validate",
			middleware.Auth(a.services.Auth, a.config.Auth.CookieName, a.logger),
			a.handlers.Auth.Validate)
		auth.POST("/logout", a.handlers.Auth.Logout)
	}

	// Protected, quota-limited API surface.
	api := router.Group("/api")
	{
		api.Use(middleware.Auth(a.services.Auth, a.config.Auth.CookieName, a.logger))
		api.Use(middleware.Quota(a.services.Quota, a.config.Quota.DevBypass, a.logger))

		api.POST("/generate", a.handlers.Generate.Generate)

		cards := api.Group("/cards")
		{
			cards.POST("", a.handlers.Cards.Save)
			cards.GET("", a.handlers.Cards.List)
		}
	}

	a.router = router
}
