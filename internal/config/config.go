// Package config holds the installation settings and converts them into the
// parameter types of the processing packages.
package config

import (
	"errors"
	"fmt"
	"image/color"
	"strconv"
	"strings"
	"time"

	"postit-mirror/internal/algorithms/bgsub"
	"postit-mirror/internal/algorithms/depthmask"
	"postit-mirror/internal/algorithms/morph"
	"postit-mirror/internal/algorithms/mosaic"
	"postit-mirror/internal/frame"
	"postit-mirror/internal/overlay"

	"gopkg.in/yaml.v3"
)

var ErrInvalidConfig = errors.New("invalid configuration")

const (
	SourceSynthetic = "synthetic"
	SourceCapture   = "capture"
)

type Config struct {
	LogLevel string `yaml:"log_level" toml:"log_level"`

	Stream  StreamConfig  `yaml:"stream" toml:"stream"`
	Depth   DepthConfig   `yaml:"depth" toml:"depth"`
	Color   ColorConfig   `yaml:"color" toml:"color"`
	Mosaic  MosaicConfig  `yaml:"mosaic" toml:"mosaic"`
	Overlay OverlayConfig `yaml:"overlay" toml:"overlay"`
	Display DisplayConfig `yaml:"display" toml:"display"`
	Memory  MemoryConfig  `yaml:"memory" toml:"memory"`
	Stats   StatsConfig   `yaml:"stats" toml:"stats"`
}

type StreamConfig struct {
	Kind   string `yaml:"kind" toml:"kind"`     // depth, color
	Source string `yaml:"source" toml:"source"` // synthetic, capture
	Device int    `yaml:"device" toml:"device"`
	Width  int    `yaml:"width" toml:"width"`
	Height int    `yaml:"height" toml:"height"`
	FPS    int    `yaml:"fps" toml:"fps"`
	Layout string `yaml:"layout" toml:"layout"` // bgr, bgra, rgb, rgba
}

type DepthConfig struct {
	Low        int              `yaml:"low" toml:"low"`
	High       int              `yaml:"high" toml:"high"`
	Polarity   string           `yaml:"polarity" toml:"polarity"` // inside, outside
	Morphology MorphologyConfig `yaml:"morphology" toml:"morphology"`
}

type ColorConfig struct {
	History       int              `yaml:"history" toml:"history"`
	DistThreshold float64          `yaml:"dist_threshold" toml:"dist_threshold"`
	DetectShadows bool             `yaml:"detect_shadows" toml:"detect_shadows"`
	Output        string           `yaml:"output" toml:"output"` // binary, intensity
	Morphology    MorphologyConfig `yaml:"morphology" toml:"morphology"`
}

type MorphologyConfig struct {
	KernelSize      int  `yaml:"kernel_size" toml:"kernel_size"`
	Close           bool `yaml:"close" toml:"close"`
	ErodeIterations int  `yaml:"erode_iterations" toml:"erode_iterations"`
	ErodeKernelSize int  `yaml:"erode_kernel_size" toml:"erode_kernel_size"`
}

type MosaicConfig struct {
	Enabled    bool   `yaml:"enabled" toml:"enabled"`
	Cell       int    `yaml:"cell" toml:"cell"`
	Fill       int    `yaml:"fill" toml:"fill"`
	Offset     int    `yaml:"offset" toml:"offset"`
	Accent     string `yaml:"accent" toml:"accent"`
	Background string `yaml:"background" toml:"background"`
}

type TextLineConfig struct {
	Text string `yaml:"text" toml:"text"`
	X    int    `yaml:"x" toml:"x"`
	Y    int    `yaml:"y" toml:"y"`
}

type OverlayConfig struct {
	Enabled     bool             `yaml:"enabled" toml:"enabled"`
	Interval    Duration         `yaml:"interval" toml:"interval"`
	StartOffset int              `yaml:"start_offset" toml:"start_offset"`
	EndOffset   int              `yaml:"end_offset" toml:"end_offset"`
	Step        int              `yaml:"step" toml:"step"`
	PreDelay    Duration         `yaml:"pre_delay" toml:"pre_delay"`
	StepDelay   Duration         `yaml:"step_delay" toml:"step_delay"`
	HoldDelay   Duration         `yaml:"hold_delay" toml:"hold_delay"`
	Lines       []TextLineConfig `yaml:"lines" toml:"lines"`
	FontScale   float64          `yaml:"font_scale" toml:"font_scale"`
	Thickness   int              `yaml:"thickness" toml:"thickness"`
	Accent      string           `yaml:"accent" toml:"accent"`
}

type DisplayConfig struct {
	Title      string `yaml:"title" toml:"title"`
	Fullscreen bool   `yaml:"fullscreen" toml:"fullscreen"`
	Headless   bool   `yaml:"headless" toml:"headless"`
}

type MemoryConfig struct {
	MaxMB           int      `yaml:"max_mb" toml:"max_mb"`
	MonitorInterval Duration `yaml:"monitor_interval" toml:"monitor_interval"`
}

type StatsConfig struct {
	LogInterval Duration `yaml:"log_interval" toml:"log_interval"`
}

// Default matches the installed mirror: 640x480 depth at 30fps, objects
// closer than intensity 96 are valid, yellow tiles.
func Default() *Config {
	ov := overlay.DefaultConfig()
	geom := mosaic.DefaultGeometry()
	lines := make([]TextLineConfig, 0, len(ov.Lines))
	for _, l := range ov.Lines {
		lines = append(lines, TextLineConfig{Text: l.Text, X: l.X, Y: l.Y})
	}

	return &Config{
		LogLevel: "info",
		Stream: StreamConfig{
			Kind:   string(frame.StreamDepth),
			Source: SourceSynthetic,
			Width:  640,
			Height: 480,
			FPS:    30,
			Layout: string(frame.LayoutBGRA),
		},
		Depth: DepthConfig{
			Low:      96,
			High:     256,
			Polarity: string(depthmask.Outside),
			Morphology: MorphologyConfig{
				KernelSize: 9,
				Close:      true,
			},
		},
		Color: ColorConfig{
			History:       200,
			DistThreshold: 70,
			Output:        string(bgsub.Binary),
			Morphology: MorphologyConfig{
				KernelSize:      9,
				Close:           true,
				ErodeIterations: 3,
				ErodeKernelSize: 3,
			},
		},
		Mosaic: MosaicConfig{
			Enabled:    true,
			Cell:       geom.Cell,
			Fill:       geom.Fill,
			Offset:     geom.Offset,
			Accent:     "#ffff00",
			Background: "#000000",
		},
		Overlay: OverlayConfig{
			Enabled:     true,
			Interval:    Duration(ov.Interval),
			StartOffset: ov.StartOffset,
			EndOffset:   ov.EndOffset,
			Step:        ov.Step,
			PreDelay:    Duration(ov.PreDelay),
			StepDelay:   Duration(ov.StepDelay),
			HoldDelay:   Duration(ov.HoldDelay),
			Lines:       lines,
			FontScale:   ov.FontScale,
			Thickness:   ov.Thickness,
			Accent:      "#ffff00",
		},
		Display: DisplayConfig{
			Title:      "Post-it Mirror",
			Fullscreen: true,
		},
		Memory: MemoryConfig{
			MaxMB:           512,
			MonitorInterval: Duration(30 * time.Second),
		},
		Stats: StatsConfig{
			LogInterval: Duration(10 * time.Second),
		},
	}
}

// Validate checks every section and fails on the first invalid one.
func (c *Config) Validate() error {
	if _, err := c.Format(); err != nil {
		return err
	}
	if c.Stream.Source != SourceSynthetic && c.Stream.Source != SourceCapture {
		return fmt.Errorf("%w: unknown source %q", ErrInvalidConfig, c.Stream.Source)
	}
	if c.Stream.Device < 0 {
		return fmt.Errorf("%w: device index must not be negative", ErrInvalidConfig)
	}
	if _, err := c.DepthBand(); err != nil {
		return err
	}
	if _, err := c.BackgroundParams(); err != nil {
		return err
	}
	for _, kind := range []frame.StreamKind{frame.StreamDepth, frame.StreamColor} {
		if err := c.MorphParams(kind).Validate(); err != nil {
			return fmt.Errorf("%s morphology: %w", kind, err)
		}
	}
	if err := c.MosaicGeometry().Validate(); err != nil {
		return err
	}
	if _, err := c.MosaicColors(); err != nil {
		return err
	}
	if _, err := c.OverlaySettings(); err != nil {
		return err
	}
	if c.Memory.MaxMB <= 0 {
		return fmt.Errorf("%w: memory.max_mb must be positive", ErrInvalidConfig)
	}
	if c.Memory.MonitorInterval < 0 || c.Stats.LogInterval < 0 {
		return fmt.Errorf("%w: intervals must not be negative", ErrInvalidConfig)
	}
	return nil
}

func (c *Config) Kind() (frame.StreamKind, error) {
	return frame.ParseStreamKind(c.Stream.Kind)
}

// Format is the stream format a session is configured for.
func (c *Config) Format() (frame.Format, error) {
	kind, err := c.Kind()
	if err != nil {
		return frame.Format{}, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}

	f := frame.Format{
		Kind:   kind,
		Width:  c.Stream.Width,
		Height: c.Stream.Height,
		FPS:    c.Stream.FPS,
	}
	if kind == frame.StreamColor {
		f.Layout = frame.Layout(strings.ToLower(c.Stream.Layout))
	}

	if err := f.Validate(); err != nil {
		return frame.Format{}, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	return f, nil
}

func (c *Config) DepthBand() (depthmask.Band, error) {
	polarity, err := depthmask.ParsePolarity(c.Depth.Polarity)
	if err != nil {
		return depthmask.Band{}, err
	}

	band := depthmask.Band{Low: c.Depth.Low, High: c.Depth.High, Polarity: polarity}
	if err := band.Validate(); err != nil {
		return depthmask.Band{}, err
	}
	return band, nil
}

func (c *Config) BackgroundParams() (bgsub.Params, error) {
	mode, err := bgsub.ParseOutputMode(c.Color.Output)
	if err != nil {
		return bgsub.Params{}, err
	}

	p := bgsub.Params{
		History:       c.Color.History,
		DistThreshold: float32(c.Color.DistThreshold),
		DetectShadows: c.Color.DetectShadows,
		Mode:          mode,
	}
	if err := p.Validate(); err != nil {
		return bgsub.Params{}, err
	}
	return p, nil
}

func (c *Config) MorphParams(kind frame.StreamKind) morph.Params {
	m := c.Depth.Morphology
	if kind == frame.StreamColor {
		m = c.Color.Morphology
	}
	return morph.Params{
		KernelSize:      m.KernelSize,
		Close:           m.Close,
		ErodeIterations: m.ErodeIterations,
		ErodeKernelSize: m.ErodeKernelSize,
	}
}

func (c *Config) MosaicGeometry() mosaic.Geometry {
	return mosaic.Geometry{Cell: c.Mosaic.Cell, Fill: c.Mosaic.Fill, Offset: c.Mosaic.Offset}
}

// MosaicColors returns the accent and background colors.
func (c *Config) MosaicColors() (accent, background color.RGBA, err error) {
	if accent, err = ParseColor(c.Mosaic.Accent); err != nil {
		return accent, background, fmt.Errorf("mosaic.accent: %w", err)
	}
	if background, err = ParseColor(c.Mosaic.Background); err != nil {
		return accent, background, fmt.Errorf("mosaic.background: %w", err)
	}
	return accent, background, nil
}

func (c *Config) OverlaySettings() (overlay.Config, error) {
	accent, err := ParseColor(c.Overlay.Accent)
	if err != nil {
		return overlay.Config{}, fmt.Errorf("overlay.accent: %w", err)
	}

	lines := make([]overlay.TextLine, 0, len(c.Overlay.Lines))
	for _, l := range c.Overlay.Lines {
		lines = append(lines, overlay.TextLine{Text: l.Text, X: l.X, Y: l.Y})
	}

	oc := overlay.Config{
		Interval:    time.Duration(c.Overlay.Interval),
		StartOffset: c.Overlay.StartOffset,
		EndOffset:   c.Overlay.EndOffset,
		Step:        c.Overlay.Step,
		PreDelay:    time.Duration(c.Overlay.PreDelay),
		StepDelay:   time.Duration(c.Overlay.StepDelay),
		HoldDelay:   time.Duration(c.Overlay.HoldDelay),
		Lines:       lines,
		FontScale:   c.Overlay.FontScale,
		Thickness:   c.Overlay.Thickness,
		Accent:      accent,
	}
	if err := oc.Validate(); err != nil {
		return overlay.Config{}, err
	}
	return oc, nil
}

// ParseColor reads "#rrggbb" or "rrggbb" into an opaque color.
func ParseColor(s string) (color.RGBA, error) {
	hex := strings.TrimPrefix(strings.TrimSpace(s), "#")
	if len(hex) != 6 {
		return color.RGBA{}, fmt.Errorf("%w: color %q must be #rrggbb", ErrInvalidConfig, s)
	}

	v, err := strconv.ParseUint(hex, 16, 32)
	if err != nil {
		return color.RGBA{}, fmt.Errorf("%w: color %q: %v", ErrInvalidConfig, s, err)
	}

	return color.RGBA{R: uint8(v >> 16), G: uint8(v >> 8), B: uint8(v), A: 255}, nil
}

// Duration reads and writes Go duration strings such as "6s" or "50ms".
type Duration time.Duration

func (d Duration) Duration() time.Duration {
	return time.Duration(d)
}

func (d Duration) String() string {
	return time.Duration(d).String()
}

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(strings.TrimSpace(string(text)))
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	*d = Duration(v)
	return nil
}

func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	return d.UnmarshalText([]byte(node.Value))
}
