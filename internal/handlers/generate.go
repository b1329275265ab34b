package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/sirupsen/logrus"

	"github.com/temcen/cardforge/internal/middleware"
	"github.com/temcen/cardforge/internal/provider"
	"github.com/temcen/cardforge/internal/services"
	"github.com/temcen/cardforge/pkg/models"
)

type GenerateHandler struct {
	generateService *services.GenerateService
	validator       *validator.Validate
	logger          *logrus.Logger
}

func NewGenerateHandler(generateService *services.GenerateService, logger *logrus.Logger) *GenerateHandler {
	return &GenerateHandler{
		generateService: generateService,
		validator:       validator.New(),
		logger:          logger,
	}
}

// Generate proxies a prompt to the AI provider and returns the uniform
// response envelope.
func (h *GenerateHandler) Generate(c *gin.Context) {
	var request models.GenerationRequest

	if err := c.ShouldBindJSON(&request); err != nil {
		h.logger.WithError(err).Warn("Invalid JSON in generation request")
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "INVALID_JSON",
			"message": "Invalid JSON format",
			"details": err.Error(),
		})
		return
	}

	if err := h.validator.Struct(&request); err != nil {
		h.logger.WithError(err).Warn("Generation request validation failed")
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "VALIDATION_FAILED",
			"message": "prompt and modelKind are required; modelKind must be \"text\" or \"image\"",
			"details": err.Error(),
		})
		return
	}

	playerCode := middleware.PlayerFromContext(c)
	response, err := h.generateService.Generate(c.Request.Context(), &request, playerCode)
	if err != nil {
		h.respondGenerationError(c, err)
		return
	}

	c.JSON(http.StatusOK, response)
}

// respondGenerationError maps service failures onto the error taxonomy.
// Parse failures carry the raw provider text so bad prompts are diagnosable.
func (h *GenerateHandler) respondGenerationError(c *gin.Context, err error) {
	var parseErr *services.ParseError
	if errors.As(err, &parseErr) {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "AI_RESPONSE_PARSE_FAILED",
			"message": "Failed to parse AI response as JSON",
			"raw":     parseErr.Raw,
		})
		return
	}

	var imageErr *services.InvalidImageError
	if errors.As(err, &imageErr) {
		c.JSON(http.StatusBadGateway, gin.H{
			"error":   "INVALID_IMAGE_DATA",
			"message": "Generated image data is invalid",
		})
		return
	}

	var contentErr *provider.ContentError
	if errors.As(err, &contentErr) {
		c.JSON(http.StatusBadGateway, gin.H{
			"error":   "PROVIDER_CONTENT_FAILURE",
			"message": contentErr.Reason,
		})
		return
	}

	var apiErr *provider.APIError
	if errors.As(err, &apiErr) {
		c.JSON(http.StatusBadGateway, gin.H{
			"error":   "PROVIDER_UNAVAILABLE",
			"message": "AI provider request failed",
		})
		return
	}

	h.logger.WithError(err).Error("Generation failed")
	c.JSON(http.StatusInternalServerError, gin.H{
		"error":   "GENERATION_FAILED",
		"message": "Generation failed",
	})
}
