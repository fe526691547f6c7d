package config

import (
	"fmt"
	"log"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// Config holds application configuration
type Config struct {
	Environment string `envconfig:"ENVIRONMENT" default:"development"`

	Auth       AuthConfig
	Database   DatabaseConfig
	Redis      RedisConfig
	Storage    StorageConfig
	Capture    CaptureConfig
	Import     ImportConfig
	Processing ProcessingConfig
}

// AuthConfig identifies the recording user and bounds the session lifetime
type AuthConfig struct {
	UserID     string        `envconfig:"AUTH_USER_ID"`
	SessionTTL time.Duration `envconfig:"AUTH_SESSION_TTL" default:"1h"`
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Host        string `envconfig:"DB_HOST" default:"localhost"`
	Port        string `envconfig:"DB_PORT" default:"5432"`
	User        string `envconfig:"DB_USER" default:"postgres"`
	Password    string `envconfig:"DB_PASSWORD" default:"postgres"`
	Name        string `envconfig:"DB_NAME" default:"sermon_engine"`
	SSLMode     string `envconfig:"DB_SSLMODE" default:"disable"`
	MaxConns    int    `envconfig:"DB_MAX_CONNS" default:"25"`
	MinConns    int    `envconfig:"DB_MIN_CONNS" default:"5"`
	AutoMigrate bool   `envconfig:"DB_AUTO_MIGRATE" default:"false"`
}

// RedisConfig holds Redis configuration for the processing job queue
type RedisConfig struct {
	Host     string `envconfig:"REDIS_HOST" default:"localhost"`
	Port     string `envconfig:"REDIS_PORT" default:"6379"`
	Password string `envconfig:"REDIS_PASSWORD" default:""`
	DB       int    `envconfig:"REDIS_DB" default:"0"`
}

// StorageConfig holds object storage configuration for uploaded chunks
type StorageConfig struct {
	Endpoint        string `envconfig:"STORAGE_ENDPOINT" default:"localhost:9000"`
	AccessKeyID     string `envconfig:"STORAGE_ACCESS_KEY" default:"minioadmin"`
	SecretAccessKey string `envconfig:"STORAGE_SECRET_KEY" default:"minioadmin"`
	BucketName      string `envconfig:"STORAGE_BUCKET" default:"sermon-audio"`
	UseSSL          bool   `envconfig:"STORAGE_USE_SSL" default:"false"`
}

// CaptureConfig holds microphone capture configuration
type CaptureConfig struct {
	Device           string        `envconfig:"CAPTURE_DEVICE" default:"default"`
	ChunkDuration    time.Duration `envconfig:"CAPTURE_CHUNK_DURATION" default:"600s"`
	MinimumDuration  time.Duration `envconfig:"CAPTURE_MINIMUM_DURATION" default:"30s"`
	LocalDir         string        `envconfig:"CAPTURE_LOCAL_DIR" default:"/var/lib/sermon-engine/audio"`
	LevelHistorySize int           `envconfig:"CAPTURE_LEVEL_HISTORY" default:"100"`
}

// ImportConfig holds audio file import configuration
type ImportConfig struct {
	MaxSizeMB int64 `envconfig:"IMPORT_MAX_SIZE_MB" default:"500"`
}

// ProcessingConfig holds remote processing configuration
type ProcessingConfig struct {
	Timeout time.Duration `envconfig:"PROCESSING_TIMEOUT" default:"30m"`
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	// Load .env file if exists (ignore error if file doesn't exist)
	if err := godotenv.Load(); err != nil {
		log.Printf("Warning: .env file not found, using environment variables or defaults")
	}

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to process environment: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Capture.ChunkDuration <= 0 {
		return fmt.Errorf("CAPTURE_CHUNK_DURATION must be positive")
	}
	if c.Capture.MinimumDuration < 0 {
		return fmt.Errorf("CAPTURE_MINIMUM_DURATION must not be negative")
	}
	if c.Import.MaxSizeMB <= 0 {
		return fmt.Errorf("IMPORT_MAX_SIZE_MB must be positive")
	}
	if c.Processing.Timeout <= 0 {
		return fmt.Errorf("PROCESSING_TIMEOUT must be positive")
	}
	if c.Auth.SessionTTL <= 0 {
		return fmt.Errorf("AUTH_SESSION_TTL must be positive")
	}
	return nil
}

// GetDatabaseDSN returns the database connection string
func (c *Config) GetDatabaseDSN() string {
	return fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		c.Database.Host,
		c.Database.Port,
		c.Database.User,
		c.Database.Password,
		c.Database.Name,
		c.Database.SSLMode,
	)
}

// GetRedisAddr returns the Redis address
func (c *Config) GetRedisAddr() string {
	return fmt.Sprintf("%s:%s", c.Redis.Host, c.Redis.Port)
}

// MaxImportBytes returns the import size cap in bytes.
func (c *Config) MaxImportBytes() int64 {
	return c.Import.MaxSizeMB * 1024 * 1024
}
