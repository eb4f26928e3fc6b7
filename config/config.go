package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds all configuration for the application
type Config struct {
	Server     ServerConfig
	Vision     VisionConfig
	Cache      CacheConfig
	RateLimit  RateLimitConfig
	Tracking   TrackingConfig
	Matching   MatchingConfig
	Classifier ClassifierConfig
	Spam       SpamConfig
	Pagination PaginationConfig
	Session    SessionConfig
}

// ServerConfig holds server-related configuration
type ServerConfig struct {
	Port           string   `mapstructure:"port"`
	Environment    string   `mapstructure:"environment"`
	AllowedOrigins []string `mapstructure:"allowed_origins"`
	MaxUploadBytes int64    `mapstructure:"max_upload_bytes"`
}

// VisionConfig holds web-detection API configuration
type VisionConfig struct {
	APIKey     string        `mapstructure:"api_key"`
	BaseURL    string        `mapstructure:"base_url"`
	MaxResults int           `mapstructure:"max_results"`
	Timeout    time.Duration `mapstructure:"timeout"`
}

// CacheConfig holds cache-related configuration
type CacheConfig struct {
	Type     string        `mapstructure:"type"` // "memory" or "redis"
	RedisURL string        `mapstructure:"redis_url"`
	TTL      time.Duration `mapstructure:"ttl"`
}

// RateLimitConfig holds rate limiting configuration
type RateLimitConfig struct {
	PerIP  int `mapstructure:"per_ip"` // requests per minute
	Vision int `mapstructure:"vision"` // requests per minute
}

// TrackingConfig holds search tracking store configuration
type TrackingConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	DSN     string `mapstructure:"dsn"`
}

// MatchingConfig holds the confidence tier boundaries (0..1)
type MatchingConfig struct {
	ExactThreshold   float64 `mapstructure:"exact_threshold"`
	PartialThreshold float64 `mapstructure:"partial_threshold"`
	SimilarThreshold float64 `mapstructure:"similar_threshold"`
	EnableSimilar    bool    `mapstructure:"enable_similar"`
	PageFloor        float64 `mapstructure:"page_floor"`
}

// ClassifierConfig holds optional overrides for the site lists.
// Empty lists keep the built-in defaults.
type ClassifierConfig struct {
	Marketplaces []string          `mapstructure:"marketplaces"`
	Social       []string          `mapstructure:"social"`
	Ecommerce    []string          `mapstructure:"ecommerce"`
	CDNs         map[string]string `mapstructure:"cdns"`
}

// SpamConfig selects which spam heuristic the enricher applies
type SpamConfig struct {
	Mode string `mapstructure:"mode"` // "heuristic", "scored" or "combined"
}

// PaginationConfig holds incremental-reveal configuration
type PaginationConfig struct {
	PageSize int `mapstructure:"page_size"`
}

// SessionConfig holds analysis session configuration
type SessionConfig struct {
	TTL time.Duration `mapstructure:"ttl"`
}

// Load loads configuration from .env, environment variables and config files
func Load() (*Config, error) {
	if err := loadEnvFile(); err != nil {
		return nil, fmt.Errorf("error reading .env file: %w", err)
	}

	v := viper.New()

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.AddConfigPath("/etc/imagetrace/")

	v.SetEnvPrefix("IMAGETRACE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}

	if err := validate(&config); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &config, nil
}

// loadEnvFile loads .env from the working directory if present.
// Variables already set in the environment are not overridden.
func loadEnvFile() error {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return nil
}

// setDefaults sets default configuration values
func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", "8080")
	v.SetDefault("server.environment", "development")
	v.SetDefault("server.allowed_origins", []string{"http://localhost:3000"})
	v.SetDefault("server.max_upload_bytes", 10<<20) // 10 MiB

	// Keys without a real default still need registering so AutomaticEnv sees them
	v.SetDefault("vision.api_key", "")
	v.SetDefault("vision.base_url", "https://vision.googleapis.com")
	v.SetDefault("vision.max_results", 50)
	v.SetDefault("vision.timeout", "30s")

	v.SetDefault("cache.type", "memory")
	v.SetDefault("cache.redis_url", "")
	v.SetDefault("cache.ttl", "24h")

	v.SetDefault("ratelimit.per_ip", 60)
	v.SetDefault("ratelimit.vision", 600)

	v.SetDefault("tracking.enabled", true)
	v.SetDefault("tracking.dsn", "imagetrace.db")

	v.SetDefault("matching.exact_threshold", 0.90)
	v.SetDefault("matching.partial_threshold", 0.70)
	v.SetDefault("matching.similar_threshold", 0.65)
	v.SetDefault("matching.enable_similar", true)
	v.SetDefault("matching.page_floor", 0.60)

	v.SetDefault("spam.mode", "heuristic")

	v.SetDefault("pagination.page_size", 20)

	v.SetDefault("session.ttl", "1h")
}

// validate validates the configuration
func validate(config *Config) error {
	if config.Vision.APIKey == "" {
		return fmt.Errorf("vision API key is required (set IMAGETRACE_VISION_API_KEY)")
	}

	if config.Cache.Type != "memory" && config.Cache.Type != "redis" {
		return fmt.Errorf("cache type must be 'memory' or 'redis', got: %s", config.Cache.Type)
	}

	if config.Cache.Type == "redis" && config.Cache.RedisURL == "" {
		return fmt.Errorf("Redis URL is required when cache type is 'redis'")
	}

	m := config.Matching
	for _, t := range []float64{m.ExactThreshold, m.PartialThreshold, m.SimilarThreshold, m.PageFloor} {
		if t < 0 || t > 1 {
			return fmt.Errorf("matching thresholds must lie in [0,1]")
		}
	}
	if m.PartialThreshold > m.ExactThreshold {
		return fmt.Errorf("partial threshold %.2f exceeds exact threshold %.2f", m.PartialThreshold, m.ExactThreshold)
	}
	if m.EnableSimilar && m.SimilarThreshold > m.PartialThreshold {
		return fmt.Errorf("similar threshold %.2f exceeds partial threshold %.2f", m.SimilarThreshold, m.PartialThreshold)
	}

	switch config.Spam.Mode {
	case "heuristic", "scored", "combined":
	default:
		return fmt.Errorf("spam mode must be 'heuristic', 'scored' or 'combined', got: %s", config.Spam.Mode)
	}

	if config.Pagination.PageSize <= 0 {
		return fmt.Errorf("pagination page size must be positive, got: %d", config.Pagination.PageSize)
	}

	return nil
}
