package models

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

type SessionClaims struct {
	PlayerCode string `json:"player_code"`
	SessionID  string `json:"session_id"`
	jwt.RegisteredClaims
}

type LoginRequest struct {
	PlayerCode string `json:"playerCode" validate:"required,min=1,max=32"`
}

type PlayerData struct {
	PlayerCode string    `json:"playerCode"`
	CreatedAt  time.Time `json:"createdAt"`
	LastActive time.Time `json:"lastActive"`
}

type LoginResponse struct {
	Success    bool        `json:"success"`
	Token      string      `json:"token,omitempty"`
	ExpiresAt  *time.Time  `json:"expiresAt,omitempty"`
	PlayerData *PlayerData `json:"playerData,omitempty"`
	Error      string      `json:"error,omitempty"`
}

type ValidateResponse struct {
	Success    bool        `json:"success"`
	PlayerData *PlayerData `json:"playerData,omitempty"`
}

type QuotaInfo struct {
	Limit     int   `json:"limit"`
	Remaining int   `json:"remaining"`
	ResetTime int64 `json:"resetTime"`
}
