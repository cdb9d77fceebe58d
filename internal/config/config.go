package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v10"
)

// Frame storage providers.
const (
	FrameStorageS3    = "s3"
	FrameStorageLocal = "local"
	FrameStorageNone  = "none"
)

// Config holds the environment driven configuration for the vision service.
type Config struct {
	// Service settings
	ServiceName     string        `env:"SERVICE_NAME" envDefault:"vision-api"`
	Environment     string        `env:"ENVIRONMENT" envDefault:"development"`
	HTTPPort        int           `env:"VISION_API_PORT" envDefault:"8190"`
	LogLevel        string        `env:"LOG_LEVEL" envDefault:"info"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"15s"`

	// OpenTelemetry
	EnableTracing bool   `env:"OTEL_ENABLED" envDefault:"false"`
	OTLPEndpoint  string `env:"OTEL_EXPORTER_OTLP_ENDPOINT" envDefault:""`

	// Auth (Keycloak)
	AuthEnabled  bool   `env:"AUTH_ENABLED" envDefault:"false"`
	AuthIssuer   string `env:"ISSUER"`
	AuthAudience string `env:"AUDIENCE"`
	AuthJWKSURL  string `env:"JWKS_URL"`

	// Crossing event persistence. An empty DSN keeps events in memory.
	DatabaseURL    string        `env:"DB_POSTGRESQL_WRITE_DSN" envDefault:""`
	DBMaxIdleConns int           `env:"DB_MAX_IDLE_CONNS" envDefault:"5"`
	DBMaxOpenConns int           `env:"DB_MAX_OPEN_CONNS" envDefault:"15"`
	DBConnLifetime time.Duration `env:"DB_CONN_MAX_LIFETIME" envDefault:"30m"`

	// Recent captures cache. Empty disables it.
	RedisURL           string `env:"REDIS_URL" envDefault:""`
	RecentCapturesSize int    `env:"RECENT_CAPTURES_SIZE" envDefault:"100"`

	// Frame storage
	FrameStorageProvider string `env:"FRAME_STORAGE_PROVIDER" envDefault:"local"`
	S3Endpoint           string `env:"FRAME_S3_ENDPOINT"`
	S3Region             string `env:"FRAME_S3_REGION" envDefault:"us-east-1"`
	S3Bucket             string `env:"FRAME_S3_BUCKET" envDefault:"frames"`
	S3AccessKeyID        string `env:"FRAME_S3_ACCESS_KEY_ID"`
	S3SecretKey          string `env:"FRAME_S3_SECRET_ACCESS_KEY"`
	S3UsePathStyle       bool   `env:"FRAME_S3_USE_PATH_STYLE" envDefault:"true"`
	LocalStoragePath     string `env:"FRAME_LOCAL_STORAGE_PATH" envDefault:"./data/frames"`

	// Detector / tracker sidecar
	DetectorURL        string        `env:"DETECTOR_URL" envDefault:"http://localhost:8500"`
	DetectorTimeout    time.Duration `env:"DETECTOR_TIMEOUT" envDefault:"10s"`
	DetectorConfidence float64       `env:"DETECTOR_CONFIDENCE" envDefault:"0.5"`
	DetectorClasses    []int         `env:"DETECTOR_CLASSES" envDefault:"2,3,4,5,6,7,8" envSeparator:","`

	// Video sources
	FFmpegPath        string        `env:"FFMPEG_PATH" envDefault:"ffmpeg"`
	SourceOpenTimeout time.Duration `env:"SOURCE_OPEN_TIMEOUT" envDefault:"15s"`
	SourceFrameRate   int           `env:"SOURCE_FRAME_RATE" envDefault:"0"`

	// Pipelines
	PipelineStopTimeout   time.Duration `env:"PIPELINE_STOP_TIMEOUT" envDefault:"10s"`
	PipelineTrackIdleSpan uint64        `env:"PIPELINE_TRACK_IDLE_FRAMES" envDefault:"0"`
	LiveFeedClientBuffer  int           `env:"LIVE_FEED_CLIENT_BUFFER" envDefault:"64"`

	// Devices
	DevicesFile       string `env:"DEVICES_FILE" envDefault:"devices.yaml"`
	DevicesVaultDir   string `env:"DEVICES_VAULT_DIR" envDefault:"instances"`
	DeviceServerURL   string `env:"URL_SERVER"`
	DeviceServerToken string `env:"DEVICE_SERVER_TOKEN"`
	AutostartSessions bool   `env:"AUTOSTART_SESSIONS" envDefault:"false"`
}

// Load parses environment variables into Config.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if c.AuthEnabled {
		if strings.TrimSpace(c.AuthIssuer) == "" {
			return fmt.Errorf("ISSUER is required when AUTH_ENABLED is true")
		}
		if strings.TrimSpace(c.AuthAudience) == "" {
			return fmt.Errorf("AUDIENCE is required when AUTH_ENABLED is true")
		}
		if strings.TrimSpace(c.AuthJWKSURL) == "" {
			return fmt.Errorf("JWKS_URL is required when AUTH_ENABLED is true")
		}
	}

	c.FrameStorageProvider = strings.ToLower(strings.TrimSpace(c.FrameStorageProvider))
	switch c.FrameStorageProvider {
	case FrameStorageS3:
		if strings.TrimSpace(c.S3Bucket) == "" {
			return fmt.Errorf("FRAME_S3_BUCKET is required when FRAME_STORAGE_PROVIDER is s3")
		}
	case FrameStorageLocal:
		if strings.TrimSpace(c.LocalStoragePath) == "" {
			return fmt.Errorf("FRAME_LOCAL_STORAGE_PATH is required when FRAME_STORAGE_PROVIDER is local")
		}
	case FrameStorageNone:
	default:
		return fmt.Errorf("unknown FRAME_STORAGE_PROVIDER %q", c.FrameStorageProvider)
	}

	if c.PipelineStopTimeout <= 0 {
		return fmt.Errorf("PIPELINE_STOP_TIMEOUT must be positive")
	}
	if c.SourceOpenTimeout <= 0 {
		return fmt.Errorf("SOURCE_OPEN_TIMEOUT must be positive")
	}
	if c.DetectorConfidence < 0 || c.DetectorConfidence > 1 {
		return fmt.Errorf("DETECTOR_CONFIDENCE must be within [0, 1]")
	}
	if c.LiveFeedClientBuffer <= 0 {
		c.LiveFeedClientBuffer = 64
	}
	if c.RecentCapturesSize <= 0 {
		c.RecentCapturesSize = 100
	}
	return nil
}

// Addr returns the HTTP listen address.
func (c *Config) Addr() string {
	return fmt.Sprintf(":%d", c.HTTPPort)
}
