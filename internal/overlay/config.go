// Package overlay runs the periodic full-screen text animation that
// temporarily replaces the live mirror image.
package overlay

import (
	"errors"
	"fmt"
	"image/color"
	"time"
)

var ErrInvalidConfig = errors.New("invalid overlay configuration")

// TextLine is drawn with its baseline origin at (X, Y+offset).
type TextLine struct {
	Text string
	X    int
	Y    int
}

type Config struct {
	Interval time.Duration

	// The sweep moves every line from StartOffset to EndOffset inclusive.
	StartOffset int
	EndOffset   int
	Step        int

	PreDelay  time.Duration
	StepDelay time.Duration
	HoldDelay time.Duration

	Lines     []TextLine
	FontScale float64
	Thickness int
	Accent    color.RGBA
}

func DefaultLines() []TextLine {
	return []TextLine{
		{Text: "HAPPY", X: 100, Y: 100},
		{Text: "BIRTHDAY", X: 10, Y: 240},
		{Text: "POST-IT", X: 40, Y: 380},
	}
}

func DefaultConfig() Config {
	return Config{
		Interval:    6 * time.Second,
		StartOffset: -400,
		EndOffset:   0,
		Step:        4,
		PreDelay:    50 * time.Millisecond,
		StepDelay:   10 * time.Millisecond,
		HoldDelay:   2 * time.Second,
		Lines:       DefaultLines(),
		FontScale:   8,
		Thickness:   15,
		Accent:      color.RGBA{R: 255, G: 255, B: 0, A: 255},
	}
}

func (c Config) Validate() error {
	if c.Interval <= 0 {
		return fmt.Errorf("%w: interval must be positive, got %s", ErrInvalidConfig, c.Interval)
	}
	if c.Step <= 0 {
		return fmt.Errorf("%w: step must be positive, got %d", ErrInvalidConfig, c.Step)
	}
	if c.StartOffset > c.EndOffset {
		return fmt.Errorf("%w: start offset %d is after end offset %d", ErrInvalidConfig, c.StartOffset, c.EndOffset)
	}
	if c.PreDelay < 0 || c.StepDelay < 0 || c.HoldDelay < 0 {
		return fmt.Errorf("%w: delays must not be negative", ErrInvalidConfig)
	}
	if c.FontScale <= 0 {
		return fmt.Errorf("%w: font scale must be positive, got %g", ErrInvalidConfig, c.FontScale)
	}
	if c.Thickness <= 0 {
		return fmt.Errorf("%w: thickness must be positive, got %d", ErrInvalidConfig, c.Thickness)
	}
	return nil
}

// Steps is the number of frames drawn per run.
func (c Config) Steps() int {
	return (c.EndOffset-c.StartOffset)/c.Step + 1
}

// Duration estimates how long one run holds the display.
func (c Config) Duration() time.Duration {
	return c.PreDelay + time.Duration(c.Steps())*c.StepDelay + c.HoldDelay
}
