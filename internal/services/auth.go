package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/temcen/cardforge/internal/config"
	"github.com/temcen/cardforge/pkg/models"
)

// AuthService issues and verifies signed session credentials for player
// codes. Codes are matched against a configured allow-list after
// trim+uppercase normalization.
type AuthService struct {
	config      *config.Config
	logger      *logrus.Logger
	redisClient *redis.Client
	jwtSecret   []byte
	validCodes  map[string]struct{}
}

func NewAuthService(cfg *config.Config, logger *logrus.Logger, redisClient *redis.Client) *AuthService {
	validCodes := make(map[string]struct{}, len(cfg.Auth.PlayerCodes))
	for _, code := range cfg.Auth.PlayerCodes {
		validCodes[NormalizePlayerCode(code)] = struct{}{}
	}

	return &AuthService{
		config:      cfg,
		logger:      logger,
		redisClient: redisClient,
		jwtSecret:   []byte(cfg.Auth.SessionSecret),
		validCodes:  validCodes,
	}
}

// NormalizePlayerCode applies the canonical trim+uppercase normalization.
func NormalizePlayerCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// Login validates a player code and issues a signed credential. The failure
// message never reveals how close the submitted code was to a valid one.
func (s *AuthService) Login(ctx context.Context, playerCode, remoteAddr string) (string, *models.PlayerData, error) {
	code := NormalizePlayerCode(playerCode)

	if _, ok := s.validCodes[code]; !ok {
		s.logger.WithFields(logrus.Fields{
			"player_code": code,
			"remote_addr": remoteAddr,
			"outcome":     "denied",
		}).Warn("Login attempt failed")
		return "", nil, fmt.Errorf("invalid player code")
	}

	now := time.Now()
	claims := &models.SessionClaims{
		PlayerCode: code,
		SessionID:  uuid.NewString(),
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.config.Auth.TokenTTL)),
			NotBefore: jwt.NewNumericDate(now),
			Issuer:    "github.com/temcen/cardforge",
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, err := token.SignedString(s.jwtSecret)
	if err != nil {
		return "", nil, fmt.Errorf("failed to sign token: %w", err)
	}

	player := s.touchPlayer(ctx, code)

	s.logger.WithFields(logrus.Fields{
		"player_code": code,
		"remote_addr": remoteAddr,
		"session_id":  claims.SessionID,
		"expires_at":  claims.ExpiresAt.Time,
		"outcome":     "issued",
	}).Info("Login attempt succeeded")

	return tokenString, player, nil
}

// ValidateToken verifies signature and expiry and returns the decoded claims.
// Revoked sessions are rejected even before their expiry.
func (s *AuthService) ValidateToken(ctx context.Context, tokenString string) (*models.SessionClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &models.SessionClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return s.jwtSecret, nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to parse token: %w", err)
	}

	claims, ok := token.Claims.(*models.SessionClaims)
	if !ok || !token.Valid {
		return nil, fmt.Errorf("invalid token claims")
	}

	if s.redisClient != nil && claims.SessionID != "" {
		revoked, err := s.redisClient.Exists(ctx, revocationKey(claims.SessionID)).Result()
		if err != nil {
			s.logger.WithError(err).Warn("Failed to check session revocation")
			// Continue validation even if Redis is down
		} else if revoked > 0 {
			return nil, fmt.Errorf("session revoked")
		}
	}

	return claims, nil
}

// Revoke makes the server forget a session before its natural expiry. The
// revocation entry only needs to outlive the token itself.
func (s *AuthService) Revoke(ctx context.Context, claims *models.SessionClaims) error {
	if s.redisClient == nil || claims.SessionID == "" {
		return nil
	}

	ttl := time.Until(claims.ExpiresAt.Time)
	if ttl <= 0 {
		return nil
	}

	if err := s.redisClient.Set(ctx, revocationKey(claims.SessionID), "1", ttl).Err(); err != nil {
		return fmt.Errorf("failed to revoke session: %w", err)
	}
	return nil
}

// PlayerData returns the profile for a verified player code.
func (s *AuthService) PlayerData(ctx context.Context, playerCode string) *models.PlayerData {
	return s.touchPlayer(ctx, NormalizePlayerCode(playerCode))
}

// touchPlayer updates last-active bookkeeping in Redis and returns the
// profile. Redis being down degrades to a profile stamped with the current
// time rather than an error.
func (s *AuthService) touchPlayer(ctx context.Context, code string) *models.PlayerData {
	now := time.Now().UTC()
	player := &models.PlayerData{
		PlayerCode: code,
		CreatedAt:  now,
		LastActive: now,
	}

	if s.redisClient == nil {
		return player
	}

	key := fmt.Sprintf("player:%s:created_at", code)
	created, err := s.redisClient.Get(ctx, key).Result()
	switch {
	case err == redis.Nil:
		if err := s.redisClient.Set(ctx, key, now.Format(time.RFC3339), 0).Err(); err != nil {
			s.logger.WithError(err).Warn("Failed to store player creation time")
		}
	case err != nil:
		s.logger.WithError(err).Warn("Failed to read player creation time")
	default:
		if t, parseErr := time.Parse(time.RFC3339, created); parseErr == nil {
			player.CreatedAt = t
		}
	}

	if err := s.redisClient.Set(ctx, fmt.Sprintf("player:%s:last_active", code), now.Format(time.RFC3339), 0).Err(); err != nil {
		s.logger.WithError(err).Warn("Failed to store player last-active time")
	}

	return player
}

func revocationKey(sessionID string) string {
	return fmt.Sprintf("session:revoked:%s", sessionID)
}
