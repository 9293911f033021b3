package internal

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config is the process configuration, loaded from the environment.
type Config struct {
	Env         string
	Port        int
	LogLevel    string
	DatabaseUrl string

	// Access token signing
	JWTSecret string
	TokenTTL  time.Duration

	// Snapshot archive
	SnapshotsEnabled bool
	StorageProvider  string // "local" or "r2"

	// Local storage (development)
	LocalStoragePath string

	// R2 storage (production)
	R2AccountID       string
	R2AccessKeyID     string
	R2SecretAccessKey string
	R2BucketName      string

	// Places provider
	PlacesProvider string // "overpass" or "mock"
	NominatimURL   string
	OverpassURL    string
	PlacesTimeout  time.Duration

	// Maintenance worker
	WorkerEnabled        bool
	WorkerInterval       time.Duration
	WorkerRunTimeout     time.Duration
	WorkerDailyRetention time.Duration

	// Metrics endpoint authentication.
	// If both are empty, /metrics is unprotected (not recommended).
	MetricsUsername string
	MetricsPassword string
}

// NewConfig loads configuration from the environment, reading a .env file
// first if one exists.
func NewConfig() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		Env:      getEnv("ENV", "development"),
		Port:     getEnvInt("PORT", 8080),
		LogLevel: getEnv("LOG_LEVEL", "debug"),

		JWTSecret: getEnv("JWT_SECRET", ""),
		TokenTTL:  getEnvDuration("TOKEN_TTL", time.Hour),

		SnapshotsEnabled: getEnvBool("SNAPSHOTS_ENABLED", true),
		StorageProvider:  getEnv("STORAGE_PROVIDER", "local"),
		LocalStoragePath: getEnv("LOCAL_STORAGE_PATH", "./storage"),

		R2AccountID:       getEnv("R2_ACCOUNT_ID", ""),
		R2AccessKeyID:     getEnv("R2_ACCESS_KEY_ID", ""),
		R2SecretAccessKey: getEnv("R2_SECRET_ACCESS_KEY", ""),
		R2BucketName:      getEnv("R2_BUCKET_NAME", ""),

		PlacesProvider: getEnv("PLACES_PROVIDER", "mock"),
		NominatimURL:   getEnv("NOMINATIM_URL", ""),
		OverpassURL:    getEnv("OVERPASS_URL", ""),
		PlacesTimeout:  getEnvDuration("PLACES_TIMEOUT", 30*time.Second),

		WorkerEnabled:        getEnvBool("WORKER_ENABLED", true),
		WorkerInterval:       getEnvDuration("WORKER_INTERVAL", time.Hour),
		WorkerRunTimeout:     getEnvDuration("WORKER_RUN_TIMEOUT", time.Minute),
		WorkerDailyRetention: getEnvDuration("WORKER_DAILY_RETENTION", 90*24*time.Hour),

		MetricsUsername: getEnv("METRICS_USERNAME", ""),
		MetricsPassword: getEnv("METRICS_PASSWORD", ""),
	}

	// Required
	cfg.DatabaseUrl = os.Getenv("DATABASE_URL")
	if cfg.DatabaseUrl == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}

	if cfg.JWTSecret == "" {
		if cfg.Env != "development" {
			return nil, fmt.Errorf("JWT_SECRET is required outside development")
		}
		// Development convenience only. Tokens stop working across restarts
		// in any deployment that relies on this.
		cfg.JWTSecret = "scrapegate-dev-secret"
	}

	if cfg.StorageProvider == "r2" {
		if cfg.R2AccountID == "" {
			return nil, fmt.Errorf("R2_ACCOUNT_ID is required when STORAGE_PROVIDER is 'r2'")
		}
		if cfg.R2AccessKeyID == "" {
			return nil, fmt.Errorf("R2_ACCESS_KEY_ID is required when STORAGE_PROVIDER is 'r2'")
		}
		if cfg.R2SecretAccessKey == "" {
			return nil, fmt.Errorf("R2_SECRET_ACCESS_KEY is required when STORAGE_PROVIDER is 'r2'")
		}
		if cfg.R2BucketName == "" {
			return nil, fmt.Errorf("R2_BUCKET_NAME is required when STORAGE_PROVIDER is 'r2'")
		}
	} else if cfg.StorageProvider != "local" {
		return nil, fmt.Errorf("STORAGE_PROVIDER must be either 'local' or 'r2', got: %s", cfg.StorageProvider)
	}

	if cfg.PlacesProvider != "overpass" && cfg.PlacesProvider != "mock" {
		return nil, fmt.Errorf("PLACES_PROVIDER must be either 'overpass' or 'mock', got: %s", cfg.PlacesProvider)
	}

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return fallback
}
