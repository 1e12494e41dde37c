package config

import (
	"image/color"
	"os"
	"path/filepath"
	"testing"
	"time"

	"postit-mirror/internal/algorithms/depthmask"
	"postit-mirror/internal/algorithms/morph"
	"postit-mirror/internal/algorithms/mosaic"
	"postit-mirror/internal/frame"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestDefault(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())

	band, err := cfg.DepthBand()
	require.NoError(t, err)
	assert.Equal(t, depthmask.Band{Low: 96, High: 256, Polarity: depthmask.Outside}, band)

	f, err := cfg.Format()
	require.NoError(t, err)
	assert.Equal(t, frame.Format{Kind: frame.StreamDepth, Width: 640, Height: 480, FPS: 30}, f)

	assert.Equal(t, morph.Params{KernelSize: 9, Close: true}, cfg.MorphParams(frame.StreamDepth))
	assert.Equal(t, morph.Params{KernelSize: 9, Close: true, ErodeIterations: 3, ErodeKernelSize: 3}, cfg.MorphParams(frame.StreamColor))

	assert.Equal(t, mosaic.Geometry{Cell: 10, Fill: 8, Offset: 5}, cfg.MosaicGeometry())

	accent, background, err := cfg.MosaicColors()
	require.NoError(t, err)
	assert.Equal(t, color.RGBA{R: 255, G: 255, A: 255}, accent)
	assert.Equal(t, color.RGBA{A: 255}, background)

	ov, err := cfg.OverlaySettings()
	require.NoError(t, err)
	assert.Equal(t, 6*time.Second, ov.Interval)
	assert.Equal(t, 101, ov.Steps())
	assert.Len(t, ov.Lines, 3)
}

func TestLoad_MissingFileGivesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	assert.Empty(t, cmp.Diff(Default(), cfg))

	cfg, err = Load("")
	require.NoError(t, err)
	assert.Empty(t, cmp.Diff(Default(), cfg))
}

func TestLoad_YAML(t *testing.T) {
	path := writeFile(t, "mirror.yaml", `
log_level: debug
stream:
  kind: color
  layout: rgb
  width: 320
  height: 240
depth:
  low: 64
  high: 128
  polarity: inside
overlay:
  interval: 3s
  step_delay: 5ms
  lines:
    - text: HELLO
      x: 20
      y: 200
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "debug", cfg.LogLevel)
	f, err := cfg.Format()
	require.NoError(t, err)
	assert.Equal(t, frame.Format{Kind: frame.StreamColor, Width: 320, Height: 240, FPS: 30, Layout: frame.LayoutRGB}, f)

	band, err := cfg.DepthBand()
	require.NoError(t, err)
	assert.Equal(t, depthmask.Inside, band.Polarity)

	ov, err := cfg.OverlaySettings()
	require.NoError(t, err)
	assert.Equal(t, 3*time.Second, ov.Interval)
	assert.Equal(t, 5*time.Millisecond, ov.StepDelay)
	assert.Equal(t, 50*time.Millisecond, ov.PreDelay, "unset keys keep defaults")
	require.Len(t, ov.Lines, 1)
	assert.Equal(t, "HELLO", ov.Lines[0].Text)
}

func TestLoad_TOML(t *testing.T) {
	path := writeFile(t, "mirror.toml", `
log_level = "warn"

[stream]
kind = "color"
source = "capture"
device = 1

[color]
history = 500
output = "intensity"

[mosaic]
accent = "#ff00ff"

[overlay]
enabled = false
hold_delay = "1s"
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, SourceCapture, cfg.Stream.Source)
	assert.Equal(t, 1, cfg.Stream.Device)
	assert.False(t, cfg.Overlay.Enabled)
	assert.Equal(t, Duration(time.Second), cfg.Overlay.HoldDelay)

	p, err := cfg.BackgroundParams()
	require.NoError(t, err)
	assert.Equal(t, 500, p.History)
	assert.Equal(t, float32(70), p.DistThreshold)

	accent, _, err := cfg.MosaicColors()
	require.NoError(t, err)
	assert.Equal(t, color.RGBA{R: 255, B: 255, A: 255}, accent)
}

func TestLoad_Rejects(t *testing.T) {
	cases := map[string]string{
		"unknown.yaml":  "stream:\n  kind: depth\n  colour: red\n",
		"kernel.yaml":   "depth:\n  morphology:\n    kernel_size: 8\n",
		"polarity.yaml": "depth:\n  polarity: sideways\n",
		"band.toml":     "[depth]\nlow = 200\nhigh = 100\n",
		"duration.yaml": "overlay:\n  interval: soon\n",
		"mosaic.yaml":   "mosaic:\n  fill: 12\n",
		"layout.yaml":   "stream:\n  kind: color\n  layout: yuv\n",
		"unknown.toml":  "[stream]\nresolution = \"720p\"\n",
		"config.json":   "{}",
	}

	for name, content := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Load(writeFile(t, name, content))
			assert.Error(t, err)
		})
	}

	_, err := Load(writeFile(t, "k.yaml", "depth:\n  morphology:\n    kernel_size: 4\n"))
	assert.ErrorIs(t, err, morph.ErrInvalidKernel)
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	for _, ext := range []string{".yaml", ".toml"} {
		t.Run(ext, func(t *testing.T) {
			data, err := Encode(Default(), ext)
			require.NoError(t, err)

			got := &Config{}
			require.NoError(t, Decode(got, ext, data))

			if diff := cmp.Diff(Default(), got); diff != "" {
				t.Errorf("round trip mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestParseColor(t *testing.T) {
	c, err := ParseColor("#0a0B0c")
	require.NoError(t, err)
	assert.Equal(t, color.RGBA{R: 10, G: 11, B: 12, A: 255}, c)

	c, err = ParseColor("ffffff")
	require.NoError(t, err)
	assert.Equal(t, color.RGBA{R: 255, G: 255, B: 255, A: 255}, c)

	for _, bad := range []string{"", "#fff", "#gggggg", "#1234567"} {
		_, err := ParseColor(bad)
		assert.ErrorIs(t, err, ErrInvalidConfig, bad)
	}
}
