package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Auth     AuthConfig     `mapstructure:"auth"`
	Quota    QuotaConfig    `mapstructure:"quota"`
	Provider ProviderConfig `mapstructure:"provider"`
	Storage  StorageConfig  `mapstructure:"storage"`
	Redis    RedisConfig    `mapstructure:"redis"`
	Logging  LoggingConfig  `mapstructure:"logging"`
	Security SecurityConfig `mapstructure:"security"`
}

type ServerConfig struct {
	Port string `mapstructure:"port"`
	Mode string `mapstructure:"mode"`
}

type AuthConfig struct {
	SessionSecret string        `mapstructure:"session_secret"`
	PlayerCodes   []string      `mapstructure:"player_codes"`
	TokenTTL      time.Duration `mapstructure:"token_ttl"`
	CookieName    string        `mapstructure:"cookie_name"`
	SecureCookie  bool          `mapstructure:"secure_cookie"`
}

type QuotaConfig struct {
	SoftLimit int           `mapstructure:"soft_limit"`
	HardLimit int           `mapstructure:"hard_limit"`
	Window    time.Duration `mapstructure:"window"`
	BaseDelay time.Duration `mapstructure:"base_delay"`
	MaxDelay  time.Duration `mapstructure:"max_delay"`
	DevBypass bool          `mapstructure:"dev_bypass"`
}

type ProviderConfig struct {
	APIKey         string        `mapstructure:"api_key"`
	BaseURL        string        `mapstructure:"base_url"`
	TextModel      string        `mapstructure:"text_model"`
	ImageModel     string        `mapstructure:"image_model"`
	TextTimeout    time.Duration `mapstructure:"text_timeout"`
	ImageTimeout   time.Duration `mapstructure:"image_timeout"`
	RetryAttempts  int           `mapstructure:"retry_attempts"`
	RetryBaseDelay time.Duration `mapstructure:"retry_base_delay"`
}

type StorageConfig struct {
	Backend      string        `mapstructure:"backend"`
	LocalDir     string        `mapstructure:"local_dir"`
	Bucket       string        `mapstructure:"bucket"`
	SignedURLTTL time.Duration `mapstructure:"signed_url_ttl"`
	// PublicBaseURL prefixes locator URLs returned by the local backend.
	PublicBaseURL string `mapstructure:"public_base_url"`
}

type RedisConfig struct {
	Addr       string        `mapstructure:"addr"`
	MaxRetries int           `mapstructure:"max_retries"`
	PoolSize   int           `mapstructure:"pool_size"`
	Timeout    time.Duration `mapstructure:"timeout"`
}

type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

type SecurityConfig struct {
	CORS CORSConfig `mapstructure:"cors"`
}

type CORSConfig struct {
	AllowedOrigins []string `mapstructure:"allowed_origins"`
	AllowedMethods []string `mapstructure:"allowed_methods"`
	AllowedHeaders []string `mapstructure:"allowed_headers"`
}

func Load() (*Config, error) {
	viper.SetConfigName("app")
	viper.SetConfigType("yaml")
	viper.AddConfigPath("./config")
	viper.AddConfigPath(".")

	setDefaults()

	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := viper.ReadInConfig(); err != nil {
		// Config file is optional, continue with env vars and defaults
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, err
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return &config, nil
}

// Validate enforces the fail-fast constraints. A server without a signing
// secret must not start; a quota bypass must never be honored outside
// development mode.
func (c *Config) Validate() error {
	if c.Auth.SessionSecret == "" {
		return fmt.Errorf("auth.session_secret is required")
	}
	if len(c.Auth.PlayerCodes) == 0 {
		return fmt.Errorf("auth.player_codes must contain at least one code")
	}
	if c.Quota.HardLimit < c.Quota.SoftLimit {
		return fmt.Errorf("quota.hard_limit (%d) must be >= quota.soft_limit (%d)",
			c.Quota.HardLimit, c.Quota.SoftLimit)
	}
	if c.Quota.DevBypass && c.Server.Mode != "development" {
		return fmt.Errorf("quota.dev_bypass is only allowed in development mode (mode=%q)", c.Server.Mode)
	}
	switch c.Storage.Backend {
	case "local":
	case "gcs":
		if c.Storage.Bucket == "" {
			return fmt.Errorf("storage.bucket is required for the gcs backend")
		}
	default:
		return fmt.Errorf("storage.backend must be \"local\" or \"gcs\", got %q", c.Storage.Backend)
	}
	return nil
}

func setDefaults() {
	// Server defaults
	viper.SetDefault("server.port", "8080")
	viper.SetDefault("server.mode", "development")

	// Auth defaults
	viper.SetDefault("auth.token_ttl", "24h")
	viper.SetDefault("auth.cookie_name", "cardforge_session")
	viper.SetDefault("auth.secure_cookie", true)

	// Quota defaults
	viper.SetDefault("quota.soft_limit", 50)
	viper.SetDefault("quota.hard_limit", 100)
	viper.SetDefault("quota.window", "24h")
	viper.SetDefault("quota.base_delay", "500ms")
	viper.SetDefault("quota.max_delay", "10s")
	viper.SetDefault("quota.dev_bypass", false)

	// Provider defaults
	viper.SetDefault("provider.base_url", "https://generativelanguage.googleapis.com/v1beta")
	viper.SetDefault("provider.text_model", "gemini-2.0-flash")
	viper.SetDefault("provider.image_model", "gemini-2.0-flash-preview-image-generation")
	viper.SetDefault("provider.text_timeout", "15s")
	viper.SetDefault("provider.image_timeout", "30s")
	viper.SetDefault("provider.retry_attempts", 3)
	viper.SetDefault("provider.retry_base_delay", "1s")

	// Storage defaults
	viper.SetDefault("storage.backend", "local")
	viper.SetDefault("storage.local_dir", "./data")
	viper.SetDefault("storage.signed_url_ttl", "15m")
	viper.SetDefault("storage.public_base_url", "/files")

	// Redis defaults
	viper.SetDefault("redis.addr", "localhost:6379")
	viper.SetDefault("redis.max_retries", 3)
	viper.SetDefault("redis.pool_size", 10)
	viper.SetDefault("redis.timeout", "5s")

	// Logging defaults
	viper.SetDefault("logging.level", "info")
	viper.SetDefault("logging.format", "text")

	// Security defaults
	viper.SetDefault("security.cors.allowed_origins", []string{"http://localhost:5173"})
	viper.SetDefault("security.cors.allowed_methods", []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"})
	viper.SetDefault("security.cors.allowed_headers", []string{"Origin", "Content-Type", "Authorization"})
}
