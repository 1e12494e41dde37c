package app

import (
	"context"
	"testing"
	"time"

	"postit-mirror/internal/config"
	"postit-mirror/internal/frame"
	"postit-mirror/internal/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func headlessConfig() *config.Config {
	cfg := config.Default()
	cfg.Display.Headless = true
	cfg.Stream.Width = 80
	cfg.Stream.Height = 60
	cfg.Stream.FPS = 100
	cfg.Memory.MonitorInterval = 0
	cfg.Stats.LogInterval = 0
	cfg.Overlay.Interval = config.Duration(time.Hour)
	cfg.Overlay.PreDelay = 0
	cfg.Overlay.StepDelay = 0
	cfg.Overlay.HoldDelay = config.Duration(10 * time.Millisecond)
	return cfg
}

func runAsync(t *testing.T, a *Application) <-chan error {
	t.Helper()
	errc := make(chan error, 1)
	go func() { errc <- a.Run() }()
	return errc
}

func shutdown(t *testing.T, a *Application, errc <-chan error) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, a.Shutdown(ctx))

	select {
	case err := <-errc:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after shutdown")
	}
}

func TestHeadlessDepthMirror(t *testing.T) {
	a, err := NewApplication(headlessConfig(), logger.Nop{})
	require.NoError(t, err)
	require.NotNil(t, a.sink)

	errc := runAsync(t, a)

	assert.Eventually(t, func() bool {
		return a.Stats().Rendered >= 3
	}, 5*time.Second, 10*time.Millisecond)
	assert.Positive(t, a.sink.Writes())

	shutdown(t, a, errc)

	// Repeated shutdown is a no-op.
	require.NoError(t, a.Shutdown(context.Background()))
}

func TestHeadlessColorMirror(t *testing.T) {
	cfg := headlessConfig()
	cfg.Stream.Kind = string(frame.StreamColor)
	cfg.Overlay.Enabled = false

	a, err := NewApplication(cfg, logger.Nop{})
	require.NoError(t, err)
	assert.Nil(t, a.components.overlay)

	errc := runAsync(t, a)

	assert.Eventually(t, func() bool {
		return a.Stats().Rendered >= 3
	}, 5*time.Second, 10*time.Millisecond)

	shutdown(t, a, errc)
}

func TestHeadlessOverlaySuppressesMirror(t *testing.T) {
	a, err := NewApplication(headlessConfig(), logger.Nop{})
	require.NoError(t, err)
	require.NotNil(t, a.components.overlay)

	errc := runAsync(t, a)

	assert.Eventually(t, func() bool {
		return a.Stats().Rendered >= 1
	}, 5*time.Second, 10*time.Millisecond)

	require.True(t, a.components.overlay.Trigger())
	assert.Eventually(t, func() bool {
		return a.Stats().OverlayRuns == 1
	}, 10*time.Second, 10*time.Millisecond)
	assert.Eventually(t, func() bool {
		return a.components.overlay.Draws() == 101
	}, 5*time.Second, 10*time.Millisecond)

	shutdown(t, a, errc)
}

func TestNewApplicationRejectsInvalidConfig(t *testing.T) {
	cfg := headlessConfig()
	cfg.Stream.Source = "kinect"

	_, err := NewApplication(cfg, logger.Nop{})
	assert.ErrorIs(t, err, config.ErrInvalidConfig)
}

func TestDescribe(t *testing.T) {
	cfg := headlessConfig()
	format, err := cfg.Format()
	require.NoError(t, err)

	settings := describe(cfg, format)
	names := make([]string, 0, len(settings))
	for _, s := range settings {
		names = append(names, s.Name)
	}
	assert.Equal(t, []string{"Stream", "Source", "Valid depth", "Morphology", "Mosaic", "Overlay"}, names)
}
