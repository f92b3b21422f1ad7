package main

import (
	"testing"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bobarin/leadreel/internal/config"
	"github.com/bobarin/leadreel/internal/filtergraph"
	"github.com/bobarin/leadreel/internal/style"
)

func TestSubcommandsRegistered(t *testing.T) {
	names := map[string]bool{}
	for _, c := range rootCmd.Commands() {
		names[c.Name()] = true
	}
	for _, want := range []string{"serve", "render", "sweep"} {
		assert.True(t, names[want], "missing %s command", want)
	}
}

func TestPipelineOptionsFromConfig(t *testing.T) {
	cfg := &config.Config{
		ScrollMode:             filtergraph.ScrollSmooth,
		ScrollStepSeconds:      2,
		PreviewSeconds:         6,
		ThumbnailOffsetSeconds: 1.5,
		ChromePath:             "/usr/bin/chromium",
	}

	opts := pipelineOptions(cfg)
	assert.Equal(t, filtergraph.ScrollSmooth, opts.ScrollMode)
	assert.Equal(t, 2.0, opts.ScrollStep)
	assert.Equal(t, 6.0, opts.PreviewSeconds)
	assert.Equal(t, 1.5, opts.ThumbnailOffset)

	bopts := browserOptions(cfg)
	assert.Equal(t, "/usr/bin/chromium", bopts.ExecPath)
	assert.Equal(t, 30*time.Second, bopts.NavigationTimeout)
}

func TestRenderRequiresURLAndIntro(t *testing.T) {
	for _, name := range []string{"url", "intro"} {
		f := renderCmd.Flags().Lookup(name)
		if assert.NotNil(t, f) {
			assert.Equal(t, []string{"true"}, f.Annotations[cobra.BashCompOneRequiredFlag])
		}
	}
}

func setRenderFlags(t *testing.T, values map[string]string) {
	t.Helper()
	t.Cleanup(func() {
		renderCmd.Flags().VisitAll(func(f *pflag.Flag) {
			_ = f.Value.Set(f.DefValue)
			f.Changed = false
		})
	})
	for name, v := range values {
		require.NoError(t, renderCmd.Flags().Set(name, v))
	}
}

func TestRenderSettingsUsesStyleDelayDefault(t *testing.T) {
	setRenderFlags(t, map[string]string{"style": "full_screen"})

	s, err := renderSettings(renderCmd)
	require.NoError(t, err)
	assert.Equal(t, style.DefaultDisplayDelay(style.StyleFullScreen), s.DisplayDelaySeconds)
}

func TestRenderSettingsExplicitDelay(t *testing.T) {
	setRenderFlags(t, map[string]string{"style": "full_screen", "display-delay": "0"})

	s, err := renderSettings(renderCmd)
	require.NoError(t, err)
	assert.Equal(t, 0.0, s.DisplayDelaySeconds)
}
