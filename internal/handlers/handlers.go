package handlers

import (
	"github.com/sirupsen/logrus"

	"github.com/temcen/cardforge/internal/config"
	"github.com/temcen/cardforge/internal/services"
	"github.com/temcen/cardforge/internal/storage"
	"github.com/temcen/cardforge/internal/validation"
)

type Handlers struct {
	Health   *HealthHandler
	Auth     *AuthHandler
	Generate *GenerateHandler
	Cards    *CardsHandler
}

func New(cfg *config.Config, logger *logrus.Logger, services *services.Services, store storage.Store, schemaValidator *validation.SchemaValidator) *Handlers {
	return &Handlers{
		Health:   NewHealthHandler(logger, services.Health),
		Auth:     NewAuthHandler(cfg, services.Auth, logger),
		Generate: NewGenerateHandler(services.Generate, logger),
		Cards:    NewCardsHandler(store, schemaValidator, logger),
	}
}
