package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/docker/go-units"
	"github.com/joho/godotenv"
)

type Config struct {
	// Database
	DatabaseURL string

	// Kafka (empty brokers means updates are applied in-process)
	KafkaBrokers string
	KafkaTopic   string
	KafkaGroupID string

	// API Configuration
	APIPort     string
	APIHost     string
	CORSOrigins string

	// Gate
	AppPassword     string
	AppPasswordHash string
	SessionTTL      time.Duration

	// Shopify
	ShopifyShopDomain  string
	ShopifyAccessToken string
	ShopifyAPIVersion  string

	// Snapshot storage
	StorageDriver    string
	LocalSnapshotDir string
	S3Region         string
	S3Bucket         string
	S3Prefix         string

	// Uploads
	MaxUploadSize      string
	maxUploadSizeBytes int64

	// Environment
	Env      string
	LogLevel string
}

func Load() (*Config, error) {
	// Load .env file
	godotenv.Load()

	cfg := &Config{
		DatabaseURL:        getEnv("DATABASE_URL", "sqlite://imageupdater.db"),
		KafkaBrokers:       getEnv("KAFKA_BROKERS", ""),
		KafkaTopic:         getEnv("KAFKA_TOPIC", "image-update-events"),
		KafkaGroupID:       getEnv("KAFKA_GROUP_ID", "imageupdater-worker"),
		APIPort:            getEnv("API_PORT", "8080"),
		APIHost:            getEnv("API_HOST", "0.0.0.0"),
		CORSOrigins:        getEnv("CORS_ORIGINS", "*"),
		AppPassword:        getEnv("APP_PASSWORD", ""),
		AppPasswordHash:    getEnv("APP_PASSWORD_HASH", ""),
		SessionTTL:         getEnvAsDuration("SESSION_TTL", 12*time.Hour),
		ShopifyShopDomain:  getEnv("SHOPIFY_SHOP_DOMAIN", ""),
		ShopifyAccessToken: getEnv("SHOPIFY_ACCESS_TOKEN", ""),
		ShopifyAPIVersion:  getEnv("SHOPIFY_API_VERSION", "2024-07"),
		StorageDriver:      getEnv("STORAGE_DRIVER", "local"),
		LocalSnapshotDir:   getEnv("LOCAL_SNAPSHOT_DIR", "./storage/snapshots"),
		S3Region:           getEnv("S3_REGION", ""),
		S3Bucket:           getEnv("S3_BUCKET", ""),
		S3Prefix:           getEnv("S3_PREFIX", "snapshots"),
		MaxUploadSize:      getEnv("MAX_UPLOAD_SIZE", "5MB"),
		Env:                getEnv("ENV", "development"),
		LogLevel:           getEnv("LOG_LEVEL", "info"),
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	size, err := units.FromHumanSize(c.MaxUploadSize)
	if err != nil {
		return fmt.Errorf("invalid MAX_UPLOAD_SIZE: %w", err)
	}
	if size <= 0 {
		return fmt.Errorf("MAX_UPLOAD_SIZE must be positive")
	}
	c.maxUploadSizeBytes = size

	switch c.StorageDriver {
	case "local", "s3":
	default:
		return fmt.Errorf("unknown STORAGE_DRIVER: %s", c.StorageDriver)
	}
	return nil
}

func (c *Config) MaxUploadSizeBytes() int64 {
	return c.maxUploadSizeBytes
}

// Brokers splits KAFKA_BROKERS on commas.
func (c *Config) Brokers() []string {
	return splitList(c.KafkaBrokers)
}

func (c *Config) AllowedOrigins() []string {
	return splitList(c.CORSOrigins)
}

func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
