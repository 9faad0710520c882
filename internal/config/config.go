package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"evade-competitive/internal/logger"

	"github.com/joho/godotenv"
)

// Config holds all configuration for the application
type Config struct {
	Database DatabaseConfig
	Redis    RedisConfig
	Server   ServerConfig
	Storage  StorageConfig
	Auth     AuthConfig
	Jobs     JobsConfig
	Worker   WorkerConfig
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	URL      string
	Host     string
	Port     int
	User     string
	Password string
	DBName   string
	SSLMode  string
}

// RedisConfig holds Redis configuration
type RedisConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	DB       int
}

// ServerConfig holds server configuration
type ServerConfig struct {
	Port           int
	AllowedOrigins string
}

// StorageConfig holds S3-compatible object storage configuration
type StorageConfig struct {
	Endpoint        string
	Region          string
	AccessKeyID     string
	AccessKeySecret string
	PublicBaseURL   string
	DefaultBucket   string
}

// AuthConfig holds session settings
type AuthConfig struct {
	SessionTTL time.Duration
}

// JobsConfig holds scheduler intervals
type JobsConfig struct {
	ReconcileInterval    time.Duration
	AnnouncementInterval time.Duration
	ChatResyncInterval   time.Duration
}

// WorkerConfig sizes the change-event worker pool
type WorkerConfig struct {
	Count     int
	QueueSize int
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	if err := godotenv.Load("../.env"); err != nil {
		if err := godotenv.Load(); err != nil {
			logger.Warning("No .env file found, using environment variables")
		}
	}

	cfg := &Config{
		Database: DatabaseConfig{
			URL:      getEnv("DATABASE_URL", ""),
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnvAsInt("DB_PORT", 5432),
			User:     getEnv("DB_USER", "postgres"),
			Password: getEnv("DB_PASSWORD", ""),
			DBName:   getEnv("DB_NAME", "evade"),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),
		},
		Redis: RedisConfig{
			Host:     getEnv("REDIS_HOST", "localhost"),
			Port:     getEnvAsInt("REDIS_PORT", 6379),
			Username: getEnv("REDIS_USERNAME", ""),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvAsInt("REDIS_DB", 0),
		},
		Server: ServerConfig{
			Port:           getEnvAsInt("BACKEND_PORT", 8000),
			AllowedOrigins: getEnv("ALLOWED_ORIGINS", "*"),
		},
		Storage: StorageConfig{
			Endpoint:        getEnv("S3_ENDPOINT", ""),
			Region:          getEnv("S3_REGION", "auto"),
			AccessKeyID:     getEnv("S3_ACCESS_KEY_ID", ""),
			AccessKeySecret: getEnv("S3_ACCESS_KEY_SECRET", ""),
			PublicBaseURL:   getEnv("S3_PUBLIC_BASE_URL", ""),
			DefaultBucket:   getEnv("S3_BUCKET", "evade-uploads"),
		},
		Auth: AuthConfig{
			SessionTTL: getEnvAsDuration("SESSION_TTL", 7*24*time.Hour),
		},
		Jobs: JobsConfig{
			ReconcileInterval:    getEnvAsDuration("RANKING_RECONCILE_INTERVAL", 5*time.Minute),
			AnnouncementInterval: getEnvAsDuration("ANNOUNCEMENT_INTERVAL", time.Minute),
			ChatResyncInterval:   getEnvAsDuration("CHAT_RESYNC_INTERVAL", time.Minute),
		},
		Worker: WorkerConfig{
			Count:     getEnvAsInt("EVENT_WORKERS", 4),
			QueueSize: getEnvAsInt("EVENT_QUEUE_SIZE", 1000),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate rejects settings the server cannot start with
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid BACKEND_PORT %d", c.Server.Port)
	}
	if c.Worker.Count <= 0 {
		return fmt.Errorf("EVENT_WORKERS must be positive, got %d", c.Worker.Count)
	}
	if c.Worker.QueueSize <= 0 {
		return fmt.Errorf("EVENT_QUEUE_SIZE must be positive, got %d", c.Worker.QueueSize)
	}
	if c.Auth.SessionTTL <= 0 {
		return fmt.Errorf("SESSION_TTL must be positive")
	}
	return nil
}

// GetDSN returns the PostgreSQL DSN
func (c *Config) GetDSN() string {
	if c.Database.URL != "" {
		return c.Database.URL
	}
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Database.Host,
		c.Database.Port,
		c.Database.User,
		c.Database.Password,
		c.Database.DBName,
		c.Database.SSLMode,
	)
}

// GetRedisAddr returns the Redis address
func (c *Config) GetRedisAddr() string {
	return fmt.Sprintf("%s:%d", c.Redis.Host, c.Redis.Port)
}

// getEnv retrieves an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvAsInt retrieves an environment variable as an integer or returns a default value
func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}

// getEnvAsDuration parses values such as "5m" or "168h"
func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := os.Getenv(key)
	if value, err := time.ParseDuration(valueStr); err == nil {
		return value
	}
	return defaultValue
}
