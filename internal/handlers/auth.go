package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/sirupsen/logrus"

	"github.com/temcen/cardforge/internal/config"
	"github.com/temcen/cardforge/internal/middleware"
	"github.com/temcen/cardforge/internal/services"
	"github.com/temcen/cardforge/pkg/models"
)

type AuthHandler struct {
	config      *config.Config
	authService *services.AuthService
	validator   *validator.Validate
	logger      *logrus.Logger
}

func NewAuthHandler(cfg *config.Config, authService *services.AuthService, logger *logrus.Logger) *AuthHandler {
	return &AuthHandler{
		config:      cfg,
		authService: authService,
		validator:   validator.New(),
		logger:      logger,
	}
}

// Login validates a player code and issues the session credential, both as
// an HttpOnly cookie and inline for clients that cannot store cookies.
func (h *AuthHandler) Login(c *gin.Context) {
	var request models.LoginRequest

	if err := c.ShouldBindJSON(&request); err != nil {
		h.logger.WithError(err).Warn("Invalid JSON in login request")
		c.JSON(http.StatusBadRequest, models.LoginResponse{
			Success: false,
			Error:   "Invalid request body",
		})
		return
	}

	if err := h.validator.Struct(&request); err != nil {
		c.JSON(http.StatusBadRequest, models.LoginResponse{
			Success: false,
			Error:   "playerCode is required",
		})
		return
	}

	token, player, err := h.authService.Login(c.Request.Context(), request.PlayerCode, c.ClientIP())
	if err != nil {
		c.JSON(http.StatusUnauthorized, models.LoginResponse{
			Success: false,
			Error:   "Invalid player code",
		})
		return
	}

	maxAge := int(h.config.Auth.TokenTTL.Seconds())
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(h.config.Auth.CookieName, token, maxAge, "/", "", h.config.Auth.SecureCookie, true)

	expiresAt := player.LastActive.Add(h.config.Auth.TokenTTL)
	c.JSON(http.StatusOK, models.LoginResponse{
		Success:    true,
		Token:      token,
		ExpiresAt:  &expiresAt,
		PlayerData: player,
	})
}

// Validate reports whether the attached credential is still good. It runs
// behind the auth middleware, so reaching the handler means the credential
// verified.
func (h *AuthHandler) Validate(c *gin.Context) {
	playerCode := middleware.PlayerFromContext(c)
	c.JSON(http.StatusOK, models.ValidateResponse{
		Success:    true,
		PlayerData: h.authService.PlayerData(c.Request.Context(), playerCode),
	})
}

// Logout clears the session cookie and revokes the session server-side when
// a valid credential accompanies the request. An already-expired session
// still gets its cookie cleared.
func (h *AuthHandler) Logout(c *gin.Context) {
	if cookie, err := c.Cookie(h.config.Auth.CookieName); err == nil && cookie != "" {
		if claims, err := h.authService.ValidateToken(c.Request.Context(), cookie); err == nil {
			if err := h.authService.Revoke(c.Request.Context(), claims); err != nil {
				h.logger.WithError(err).Warn("Failed to revoke session on logout")
			}
		}
	}

	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(h.config.Auth.CookieName, "", -1, "/", "", h.config.Auth.SecureCookie, true)
	c.JSON(http.StatusOK, gin.H{"success": true})
}
