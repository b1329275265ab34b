package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func validConfig() *Config {
	return &Config{
		Server: ServerConfig{Port: "8080", Mode: "production"},
		Auth: AuthConfig{
			SessionSecret: "secret",
			PlayerCodes:   []string{"TIGER34"},
			TokenTTL:      24 * time.Hour,
		},
		Quota: QuotaConfig{
			SoftLimit: 50,
			HardLimit: 100,
			Window:    24 * time.Hour,
		},
		Storage: StorageConfig{Backend: "local", LocalDir: "./data"},
	}
}

func TestValidateAcceptsCompleteConfig(t *testing.T) {
	assert.NoError(t, validConfig().Validate())
}

func TestValidateRequiresSessionSecret(t *testing.T) {
	cfg := validConfig()
	cfg.Auth.SessionSecret = ""
	assert.Error(t, cfg.Validate())
}

func TestValidateRequiresPlayerCodes(t *testing.T) {
	cfg := validConfig()
	cfg.Auth.PlayerCodes = nil
	assert.Error(t, cfg.Validate())
}

func TestValidateRejectsInvertedQuotaLimits(t *testing.T) {
	cfg := validConfig()
	cfg.Quota.SoftLimit = 100
	cfg.Quota.HardLimit = 50
	assert.Error(t, cfg.Validate())
}

func TestValidateRejectsBypassOutsideDevelopment(t *testing.T) {
	cfg := validConfig()
	cfg.Quota.DevBypass = true
	assert.Error(t, cfg.Validate())

	cfg.Server.Mode = "development"
	assert.NoError(t, cfg.Validate())
}

func TestValidateRejectsUnknownStorageBackend(t *testing.T) {
	cfg := validConfig()
	cfg.Storage.Backend = "s3"
	assert.Error(t, cfg.Validate())
}

func TestValidateRequiresBucketForGCS(t *testing.T) {
	cfg := validConfig()
	cfg.Storage.Backend = "gcs"
	assert.Error(t, cfg.Validate())

	cfg.Storage.Bucket = "cards-bucket"
	assert.NoError(t, cfg.Validate())
}
