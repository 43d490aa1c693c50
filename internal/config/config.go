/**
 * Configuration for the telemetry extraction worker
 *
 * Loads configuration from environment variables matching .env.telemetry
 */

package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/dashtrail/telemetry-worker/internal/telemetry"
)

// Config holds worker configuration
type Config struct {
	// Redis configuration (queue worker mode)
	RedisURL string

	// PostgreSQL configuration, empty disables the archive
	DatabaseURL string

	// Queue configuration
	QueueName         string
	WorkerConcurrency int

	// ProcessingTimeout bounds one whole video run, in milliseconds
	ProcessingTimeout int

	// Sampling configuration
	FrameRate  float64
	BandHeight int

	// Reconciliation configuration
	SpeedJumpPercent  float64
	FallbackDate      string
	FallbackLatitude  string
	FallbackLongitude string

	// External tool paths
	FFmpegPath   string
	IdentifyPath string
	ConvertPath  string

	// ToolTimeout bounds one subprocess invocation, in milliseconds
	ToolTimeout int

	// Tesseract configuration
	TesseractLang string

	// Temporary directory for frame output
	TempDir string
}

// LoadConfig loads configuration from environment variables
func LoadConfig() (*Config, error) {
	cfg := &Config{
		RedisURL:          getEnvOrDefault("REDIS_URL", "redis://localhost:6379"),
		DatabaseURL:       getEnvOrDefault("DATABASE_URL", ""),
		QueueName:         getEnvOrDefault("QUEUE_NAME", "telemetry"),
		WorkerConcurrency: getEnvAsIntOrDefault("WORKER_CONCURRENCY", 2),
		ProcessingTimeout: getEnvAsIntOrDefault("PROCESSING_TIMEOUT", 1800000), // 30 minutes
		FrameRate:         getEnvAsFloatOrDefault("FRAME_RATE", 1),
		BandHeight:        getEnvAsIntOrDefault("BAND_HEIGHT", 60),
		SpeedJumpPercent:  getEnvAsFloatOrDefault("SPEED_JUMP_PERCENT", telemetry.DefaultMaxSpeedJumpPercent),
		FallbackDate:      os.Getenv("FALLBACK_DATE"),
		FallbackLatitude:  os.Getenv("FALLBACK_LATITUDE"),
		FallbackLongitude: os.Getenv("FALLBACK_LONGITUDE"),
		FFmpegPath:        getEnvOrDefault("FFMPEG_PATH", "ffmpeg"),
		IdentifyPath:      getEnvOrDefault("IDENTIFY_PATH", "identify"),
		ConvertPath:       getEnvOrDefault("CONVERT_PATH", "convert"),
		ToolTimeout:       getEnvAsIntOrDefault("TOOL_TIMEOUT", 30000), // 30 seconds
		TesseractLang:     getEnvOrDefault("TESSERACT_LANG", "eng"),
		TempDir:           getEnvOrDefault("TEMP_DIR", "/tmp/telemetry"),
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// Validate checks if configuration is valid. The fallback fields are
// required: reconciliation substitutes them when the first frames are
// unreadable, and there is no sane built-in value for a recording's
// date or position.
func (c *Config) Validate() error {
	if c.RedisURL == "" {
		return fmt.Errorf("REDIS_URL is required")
	}

	if c.FallbackDate == "" {
		return fmt.Errorf("FALLBACK_DATE is required")
	}
	if _, err := time.Parse("2006-01-02", c.FallbackDate); err != nil {
		return fmt.Errorf("FALLBACK_DATE must be YYYY-MM-DD, got %q", c.FallbackDate)
	}

	if c.FallbackLatitude == "" {
		return fmt.Errorf("FALLBACK_LATITUDE is required")
	}
	if _, err := telemetry.ParseDMS(c.FallbackLatitude); err != nil {
		return fmt.Errorf("FALLBACK_LATITUDE must be a DMS coordinate: %w", err)
	}

	if c.FallbackLongitude == "" {
		return fmt.Errorf("FALLBACK_LONGITUDE is required")
	}
	if _, err := telemetry.ParseDMS(c.FallbackLongitude); err != nil {
		return fmt.Errorf("FALLBACK_LONGITUDE must be a DMS coordinate: %w", err)
	}

	if c.WorkerConcurrency < 1 || c.WorkerConcurrency > 100 {
		return fmt.Errorf("WORKER_CONCURRENCY must be between 1 and 100, got %d", c.WorkerConcurrency)
	}

	if c.FrameRate <= 0 || c.FrameRate > 60 {
		return fmt.Errorf("FRAME_RATE must be between 0 and 60, got %g", c.FrameRate)
	}

	if c.BandHeight < 1 || c.BandHeight > 2160 {
		return fmt.Errorf("BAND_HEIGHT must be between 1 and 2160, got %d", c.BandHeight)
	}

	if c.SpeedJumpPercent <= 0 {
		return fmt.Errorf("SPEED_JUMP_PERCENT must be positive, got %g", c.SpeedJumpPercent)
	}

	if c.ProcessingTimeout < 1000 {
		return fmt.Errorf("PROCESSING_TIMEOUT must be at least 1000ms, got %d", c.ProcessingTimeout)
	}

	return nil
}

// Defaults bundles the fallback seeds for the reconciler.
func (c *Config) Defaults() telemetry.Defaults {
	return telemetry.Defaults{
		Date:      c.FallbackDate,
		Latitude:  c.FallbackLatitude,
		Longitude: c.FallbackLongitude,
	}
}

// ProcessingTimeoutDuration returns the run timeout as a duration.
func (c *Config) ProcessingTimeoutDuration() time.Duration {
	return time.Duration(c.ProcessingTimeout) * time.Millisecond
}

// ToolTimeoutDuration returns the per-subprocess timeout as a duration.
func (c *Config) ToolTimeoutDuration() time.Duration {
	return time.Duration(c.ToolTimeout) * time.Millisecond
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
