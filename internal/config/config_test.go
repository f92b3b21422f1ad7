package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bobarin/leadreel/internal/filtergraph"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost/leadreel?sslmode=disable")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.APIPort)
	assert.True(t, cfg.WorkerEnabled)
	assert.Equal(t, filtergraph.ScrollStepped, cfg.ScrollMode)
	assert.Equal(t, 3.0, cfg.ScrollStepSeconds)
	assert.Equal(t, 8.0, cfg.PreviewSeconds)
	assert.Equal(t, 720*time.Hour, cfg.VideoTTL)
	assert.Equal(t, int64(10240)*1024*1024, cfg.StorageCapBytes)
	assert.Equal(t, "@every 1h", cfg.RetentionSchedule)
	assert.False(t, cfg.MirrorEnabled())
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost/leadreel")
	t.Setenv("SCROLL_MODE", "smooth")
	t.Setenv("VIDEO_TTL", "48h")
	t.Setenv("STORAGE_CAP_MB", "100")
	t.Setenv("PREVIEW_SECONDS", "5.5")
	t.Setenv("WORKER_ENABLED", "false")
	t.Setenv("S3_BUCKET", "reels")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, filtergraph.ScrollSmooth, cfg.ScrollMode)
	assert.Equal(t, 48*time.Hour, cfg.VideoTTL)
	assert.Equal(t, int64(100*1024*1024), cfg.StorageCapBytes)
	assert.Equal(t, 5.5, cfg.PreviewSeconds)
	assert.False(t, cfg.WorkerEnabled)
	assert.True(t, cfg.MirrorEnabled())
}

func TestLoadMalformedValuesFallBack(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost/leadreel")
	t.Setenv("VIDEO_TTL", "thirty days")
	t.Setenv("SCROLL_STEP_SECONDS", "abc")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 720*time.Hour, cfg.VideoTTL)
	assert.Equal(t, 3.0, cfg.ScrollStepSeconds)
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		return &Config{
			DatabaseURL:       "postgres://localhost/leadreel",
			ScrollMode:        filtergraph.ScrollStepped,
			ScrollStepSeconds: 3,
			PreviewSeconds:    8,
			VideoTTL:          time.Hour,
		}
	}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"valid", func(*Config) {}, ""},
		{"missing database", func(c *Config) { c.DatabaseURL = "" }, "DATABASE_URL"},
		{"unknown scroll mode", func(c *Config) { c.ScrollMode = "bouncy" }, "SCROLL_MODE"},
		{"zero step", func(c *Config) { c.ScrollStepSeconds = 0 }, "SCROLL_STEP_SECONDS"},
		{"zero preview", func(c *Config) { c.PreviewSeconds = 0 }, "PREVIEW_SECONDS"},
		{"negative ttl", func(c *Config) { c.VideoTTL = -time.Hour }, "VIDEO_TTL"},
		{"half s3 credentials", func(c *Config) {
			c.S3.Bucket = "reels"
			c.S3.AccessKey = "key"
		}, "S3_SECRET_KEY"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestValidateRenderingSkipsDatabase(t *testing.T) {
	cfg := &Config{
		ScrollMode:        filtergraph.ScrollSmooth,
		ScrollStepSeconds: 3,
		PreviewSeconds:    8,
		VideoTTL:          time.Hour,
	}
	assert.NoError(t, cfg.ValidateRendering())
	assert.Error(t, cfg.Validate())
}
