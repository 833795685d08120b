// Package config provides configuration loading from environment variables.
package config

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/sethvargo/go-envconfig"
)

// Static errors for configuration validation.
var (
	// ErrS3ConfigIncomplete is returned when only one of S3_BUCKET and
	// S3_REGION is set.
	ErrS3ConfigIncomplete = errors.New("config: S3_BUCKET and S3_REGION must be set together")
	// ErrHeartbeatTooShort is returned when HEARTBEAT_INTERVAL is below one second.
	ErrHeartbeatTooShort = errors.New("config: HEARTBEAT_INTERVAL must be at least 1s")
)

// Config holds all configuration for the application.
type Config struct {
	// Server settings
	Port int `env:"PORT, default=8080" json:"port"`

	// Storage settings
	UploadsDir string `env:"UPLOADS_DIR, default=./uploads" json:"uploads_dir"`
	BaseURL    string `env:"BASE_URL" json:"base_url,omitempty"`

	// Optional S3 settings; when bucket and region are both set the
	// object-store backend is used instead of local disk.
	S3Bucket           string        `env:"S3_BUCKET" json:"s3_bucket,omitempty"`
	S3Region           string        `env:"S3_REGION" json:"s3_region,omitempty"`
	S3Endpoint         string        `env:"S3_ENDPOINT" json:"s3_endpoint,omitempty"`
	AWSAccessKeyID     string        `env:"AWS_ACCESS_KEY_ID" json:"-"`     // Masked in JSON
	AWSSecretAccessKey string        `env:"AWS_SECRET_ACCESS_KEY" json:"-"` // Masked in JSON
	SignedURLTTL       time.Duration `env:"SIGNED_URL_TTL, default=1h" json:"signed_url_ttl"`

	// Streaming settings
	HeartbeatInterval time.Duration `env:"HEARTBEAT_INTERVAL, default=30s" json:"heartbeat_interval"`
	SendTimeout       time.Duration `env:"SEND_TIMEOUT, default=5s" json:"send_timeout"`

	// Upload settings
	MaxUploadMB       int `env:"MAX_UPLOAD_MB, default=25" json:"max_upload_mb"`
	ThumbnailMaxWidth int `env:"THUMBNAIL_MAX_WIDTH, default=1600" json:"thumbnail_max_width"`

	// Logging settings
	LogFormat string `env:"LOG_FORMAT, default=text" json:"log_format"` // "json" or "text"
	LogLevel  string `env:"LOG_LEVEL, default=info" json:"log_level"`   // "debug", "info", "warn", "error"
}

// S3Enabled returns true if S3 configuration is provided.
func (c *Config) S3Enabled() bool {
	return c.S3Bucket != "" && c.S3Region != ""
}

// Load reads configuration from environment variables using go-envconfig.
// It returns an error if the resulting configuration is invalid.
func Load() (*Config, error) {
	cfg := &Config{}

	if err := envconfig.Process(context.Background(), cfg); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks that the configuration is internally consistent.
func (c *Config) Validate() error {
	if (c.S3Bucket == "") != (c.S3Region == "") {
		return ErrS3ConfigIncomplete
	}
	if c.HeartbeatInterval < time.Second {
		return ErrHeartbeatTooShort
	}
	return nil
}

// NewLogger creates a structured logger based on the configuration.
// When LogFormat is "json", it outputs JSON logs suitable for production.
// Otherwise, it outputs human-readable text logs.
func (c *Config) NewLogger() *slog.Logger {
	level := parseLogLevel(c.LogLevel)

	var handler slog.Handler
	if strings.ToLower(c.LogFormat) == "json" {
		handler = slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
			Level: level,
		})
	} else {
		handler = slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
			Level: level,
		})
	}

	return slog.New(handler)
}

// String returns a string representation of the config with sensitive values masked.
func (c *Config) String() string {
	return fmt.Sprintf(
		"Config{Port: %d, UploadsDir: %s, BaseURL: %s, S3Bucket: %s, S3Region: %s, SignedURLTTL: %s, HeartbeatInterval: %s, SendTimeout: %s, MaxUploadMB: %d, ThumbnailMaxWidth: %d, LogFormat: %s, LogLevel: %s}",
		c.Port,
		c.UploadsDir,
		c.BaseURL,
		c.S3Bucket,
		c.S3Region,
		c.SignedURLTTL,
		c.HeartbeatInterval,
		c.SendTimeout,
		c.MaxUploadMB,
		c.ThumbnailMaxWidth,
		c.LogFormat,
		c.LogLevel,
	)
}

// parseLogLevel converts a string log level to slog.Level.
func parseLogLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
