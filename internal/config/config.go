package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"

	"github.com/bobarin/leadreel/internal/filtergraph"
	"github.com/bobarin/leadreel/internal/storage"
)

type Config struct {
	// Server
	APIPort            string
	WorkerEnabled      bool
	BackendAPIKey      string // API key for authenticating requests (empty = no auth, dev mode)
	CorsAllowedOrigins string // Comma-separated allowed origins (empty = *, dev mode)

	// Database
	DatabaseURL string
	AutoMigrate bool

	// Redis (optional, status events only)
	RedisURL string

	// Media tools
	DataDir     string
	FFmpegPath  string
	FFprobePath string
	ChromePath  string // empty = let chromedp find a browser

	// Rendering
	ScrollMode             filtergraph.ScrollMode
	ScrollStepSeconds      float64
	PreviewSeconds         float64
	ThumbnailOffsetSeconds float64

	// Retention
	VideoTTL          time.Duration
	StorageCapBytes   int64
	RetentionSchedule string

	// S3-compatible mirror (optional)
	S3 storage.S3Config

	// Logging
	LogLevel  string
	LogFormat string
}

// Load reads the environment and validates it for a full server.
func Load() (*Config, error) {
	cfg := Read()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Read reads the environment without validating it.
func Read() *Config {
	// Load .env file if it exists (ignore error in production)
	_ = godotenv.Load()

	return &Config{
		APIPort:                getEnv("API_PORT", "8080"),
		WorkerEnabled:          getEnvBool("WORKER_ENABLED", true),
		BackendAPIKey:          getEnv("BACKEND_API_KEY", ""),
		CorsAllowedOrigins:     getEnv("CORS_ALLOWED_ORIGINS", ""),
		DatabaseURL:            getEnv("DATABASE_URL", ""),
		AutoMigrate:            getEnvBool("AUTO_MIGRATE", true),
		RedisURL:               getEnv("REDIS_URL", ""),
		DataDir:                getEnv("DATA_DIR", "./data"),
		FFmpegPath:             getEnv("FFMPEG_PATH", "ffmpeg"),
		FFprobePath:            getEnv("FFPROBE_PATH", "ffprobe"),
		ChromePath:             getEnv("CHROME_PATH", ""),
		ScrollMode:             filtergraph.ScrollMode(getEnv("SCROLL_MODE", string(filtergraph.ScrollStepped))),
		ScrollStepSeconds:      getEnvFloat("SCROLL_STEP_SECONDS", 3),
		PreviewSeconds:         getEnvFloat("PREVIEW_SECONDS", 8),
		ThumbnailOffsetSeconds: getEnvFloat("THUMBNAIL_OFFSET_SECONDS", 3),
		VideoTTL:               getEnvDuration("VIDEO_TTL", 30*24*time.Hour),
		StorageCapBytes:        getEnvInt64("STORAGE_CAP_MB", 10240) * 1024 * 1024,
		RetentionSchedule:      getEnv("RETENTION_SCHEDULE", "@every 1h"),
		S3: storage.S3Config{
			Endpoint:  getEnv("S3_ENDPOINT", ""),
			Region:    getEnv("S3_REGION", "us-east-1"),
			Bucket:    getEnv("S3_BUCKET", ""),
			AccessKey: getEnv("S3_ACCESS_KEY", ""),
			SecretKey: getEnv("S3_SECRET_KEY", ""),
			Prefix:    getEnv("S3_PREFIX", ""),
		},
		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogFormat: getEnv("LOG_FORMAT", "json"),
	}
}

// Validate checks required fields and value ranges.
func (c *Config) Validate() error {
	if c.DatabaseURL == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}
	return c.ValidateRendering()
}

// ValidateRendering checks the settings a database-less render needs.
func (c *Config) ValidateRendering() error {
	switch c.ScrollMode {
	case filtergraph.ScrollStepped, filtergraph.ScrollSmooth:
	default:
		return fmt.Errorf("SCROLL_MODE must be %q or %q, got %q", filtergraph.ScrollStepped, filtergraph.ScrollSmooth, c.ScrollMode)
	}

	if c.ScrollStepSeconds <= 0 {
		return fmt.Errorf("SCROLL_STEP_SECONDS must be positive")
	}
	if c.PreviewSeconds <= 0 {
		return fmt.Errorf("PREVIEW_SECONDS must be positive")
	}
	if c.ThumbnailOffsetSeconds < 0 {
		return fmt.Errorf("THUMBNAIL_OFFSET_SECONDS must not be negative")
	}
	if c.VideoTTL <= 0 {
		return fmt.Errorf("VIDEO_TTL must be positive")
	}
	if c.StorageCapBytes < 0 {
		return fmt.Errorf("STORAGE_CAP_MB must not be negative")
	}

	// Partial S3 settings are almost always a mistake.
	if c.S3.Bucket != "" && (c.S3.AccessKey == "") != (c.S3.SecretKey == "") {
		return fmt.Errorf("S3_ACCESS_KEY and S3_SECRET_KEY must be set together")
	}

	return nil
}

// MirrorEnabled reports whether artifacts are copied to S3.
func (c *Config) MirrorEnabled() bool {
	return c.S3.Bucket != ""
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		b, err := strconv.ParseBool(value)
		if err == nil {
			return b
		}
	}
	return defaultValue
}

func getEnvInt64(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		i, err := strconv.ParseInt(value, 10, 64)
		if err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		f, err := strconv.ParseFloat(value, 64)
		if err == nil {
			return f
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		d, err := time.ParseDuration(value)
		if err == nil {
			return d
		}
	}
	return defaultValue
}
