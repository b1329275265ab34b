package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/temcen/cardforge/internal/storage"
	"github.com/temcen/cardforge/internal/validation"
	"github.com/temcen/cardforge/pkg/models"
)

type CardsHandler struct {
	store     storage.Store
	validator *validation.SchemaValidator
	logger    *logrus.Logger
}

func NewCardsHandler(store storage.Store, validator *validation.SchemaValidator, logger *logrus.Logger) *CardsHandler {
	return &CardsHandler{
		store:     store,
		validator: validator,
		logger:    logger,
	}
}

// Save persists a full card record. Unlike image persistence during
// generation, a storage failure here is the caller's problem: persistence is
// the whole point of this endpoint.
func (h *CardsHandler) Save(c *gin.Context) {
	var record models.CardRecord

	if err := c.ShouldBindJSON(&record); err != nil {
		h.logger.WithError(err).Warn("Invalid JSON in card save request")
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "INVALID_JSON",
			"message": "Invalid JSON format",
			"details": err.Error(),
		})
		return
	}

	if result := h.validator.ValidateCardRecord(&record); !result.Valid {
		h.logger.WithField("errors", result.Errors).Warn("Card record validation failed")
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "VALIDATION_FAILED",
			"message": "Card record failed validation",
			"details": result.Errors,
		})
		return
	}

	path, err := h.store.SaveCard(c.Request.Context(), record.ID, &record)
	if err != nil {
		h.logger.WithError(err).WithFields(logrus.Fields{
			"card_id": record.ID,
			"series":  record.Series,
		}).Error("Failed to save card record")
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "STORAGE_FAILED",
			"message": "Failed to save card record",
		})
		return
	}

	h.logger.WithFields(logrus.Fields{
		"card_id":      record.ID,
		"series":       record.Series,
		"storage_path": path,
		"recreatable":  record.FullyRecreatable(),
	}).Info("Card record saved")

	c.JSON(http.StatusOK, models.SaveCardResponse{
		Success:     true,
		CardID:      record.ID,
		StoragePath: path,
		Message:     "Card saved successfully",
	})
}

// List enumerates stored card records, optionally filtered by series,
// newest-first.
func (h *CardsHandler) List(c *gin.Context) {
	series := c.Query("series")

	cards, err := h.store.ListCards(c.Request.Context(), series)
	if err != nil {
		h.logger.WithError(err).WithField("series", series).Error("Failed to list cards")
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "STORAGE_FAILED",
			"message": "Failed to list card records",
		})
		return
	}

	c.JSON(http.StatusOK, models.ListCardsResponse{
		Success: true,
		Cards:   cards,
		Total:   len(cards),
		Series:  series,
	})
}
