/**
 * Configuration for the textscan OCR server
 *
 * Loads configuration from environment variables (optionally seeded from .env)
 */

package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config holds server configuration
type Config struct {
	// HTTP server
	ListenAddr string

	// PostgreSQL configuration (result cache + history log)
	DatabaseURL string

	// Redis configuration (async ingest queue; empty disables the queue)
	RedisURL string

	// Artifact storage
	UploadDir    string
	ProcessedDir string

	// Retention policy
	RetentionMaxAge time.Duration
	SweepInterval   time.Duration

	// OCR defaults
	MinConfidence float64 // default confidence filter in [0,1]
	LineThreshold float64 // vertical pixel tolerance for line grouping
	Profile       string  // "quick" or "accurate"
	Languages     string  // tesseract language codes, "+"-separated
	OCRTimeout    time.Duration

	// Upload limits
	MaxUploadSize int64
	ChunkSize     int64 // fingerprint block size

	// Async worker configuration
	WorkerConcurrency int
}

// LoadConfig loads configuration from environment variables
func LoadConfig() (*Config, error) {
	cfg := &Config{
		ListenAddr:        getEnvOrDefault("LISTEN_ADDR", ":8080"),
		DatabaseURL:       getEnvOrDefault("DATABASE_URL", ""),
		RedisURL:          getEnvOrDefault("REDIS_URL", ""),
		UploadDir:         getEnvOrDefault("UPLOAD_DIR", "uploads"),
		ProcessedDir:      getEnvOrDefault("PROCESSED_DIR", "processed"),
		RetentionMaxAge:   getEnvAsDurationOrDefault("RETENTION_MAX_AGE", 24*time.Hour),
		SweepInterval:     getEnvAsDurationOrDefault("SWEEP_INTERVAL", 30*time.Minute),
		MinConfidence:     getEnvAsFloatOrDefault("MIN_CONFIDENCE", 0.3),
		LineThreshold:     getEnvAsFloatOrDefault("LINE_THRESHOLD", 15),
		Profile:           getEnvOrDefault("OCR_PROFILE", "accurate"),
		Languages:         getEnvOrDefault("OCR_LANGUAGES", "eng+fra"),
		OCRTimeout:        getEnvAsDurationOrDefault("OCR_TIMEOUT", 60*time.Second),
		MaxUploadSize:     getEnvAsInt64OrDefault("MAX_UPLOAD_SIZE", 33554432), // 32MB
		ChunkSize:         getEnvAsInt64OrDefault("CHUNK_SIZE", 65536),         // 64KB
		WorkerConcurrency: getEnvAsIntOrDefault("WORKER_CONCURRENCY", 4),
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// Validate checks if configuration is valid
func (c *Config) Validate() error {
	if c.DatabaseURL == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}

	if c.UploadDir == "" || c.ProcessedDir == "" {
		return fmt.Errorf("UPLOAD_DIR and PROCESSED_DIR are required")
	}

	if c.MinConfidence < 0 || c.MinConfidence > 1 {
		return fmt.Errorf("MIN_CONFIDENCE must be in [0,1], got %f", c.MinConfidence)
	}

	if c.LineThreshold <= 0 {
		return fmt.Errorf("LINE_THRESHOLD must be positive, got %f", c.LineThreshold)
	}

	if c.Profile != "quick" && c.Profile != "accurate" {
		return fmt.Errorf("OCR_PROFILE must be \"quick\" or \"accurate\", got %q", c.Profile)
	}

	if c.RetentionMaxAge <= 0 {
		return fmt.Errorf("RETENTION_MAX_AGE must be positive, got %v", c.RetentionMaxAge)
	}

	if c.SweepInterval <= 0 {
		return fmt.Errorf("SWEEP_INTERVAL must be positive, got %v", c.SweepInterval)
	}

	if c.ChunkSize < 1024 || c.ChunkSize > 1048576 { // 1KB to 1MB
		return fmt.Errorf("CHUNK_SIZE must be between 1KB and 1MB, got %d", c.ChunkSize)
	}

	if c.WorkerConcurrency < 1 || c.WorkerConcurrency > 100 {
		return fmt.Errorf("WORKER_CONCURRENCY must be between 1 and 100, got %d", c.WorkerConcurrency)
	}

	return nil
}

// getEnvOrDefault gets environment variable or returns default
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvAsIntOrDefault gets environment variable as int or returns default
func getEnvAsIntOrDefault(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}

	return value
}

// getEnvAsInt64OrDefault gets environment variable as int64 or returns default
func getEnvAsInt64OrDefault(key string, defaultValue int64) int64 {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.ParseInt(valueStr, 10, 64)
	if err != nil {
		return defaultValue
	}

	return value
}

// getEnvAsFloatOrDefault gets environment variable as float64 or returns default
func getEnvAsFloatOrDefault(key string, defaultValue float64) float64 {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.ParseFloat(valueStr, 64)
	if err != nil {
		return defaultValue
	}

	return value
}

// getEnvAsDurationOrDefault gets environment variable as a duration or returns default.
// Accepts Go duration syntax ("30m", "24h").
func getEnvAsDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	value, err := time.ParseDuration(valueStr)
	if err != nil {
		return defaultValue
	}

	return value
}
