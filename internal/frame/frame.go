// Package frame defines the raw sensor frames handed to a session and the
// stream format a source declares when its stream is enabled.
package frame

import (
	"errors"
	"fmt"
	"strings"
)

// StreamKind selects which sensor stream a session processes.
type StreamKind string

const (
	StreamDepth StreamKind = "depth"
	StreamColor StreamKind = "color"
)

// ParseStreamKind accepts "depth" or "color" in any case.
func ParseStreamKind(s string) (StreamKind, error) {
	switch StreamKind(strings.ToLower(strings.TrimSpace(s))) {
	case StreamDepth:
		return StreamDepth, nil
	case StreamColor:
		return StreamColor, nil
	}
	return "", fmt.Errorf("unknown stream kind %q", s)
}

// Layout is the channel order of a packed color frame.
type Layout string

const (
	LayoutBGR  Layout = "bgr"
	LayoutBGRA Layout = "bgra"
	LayoutRGB  Layout = "rgb"
	LayoutRGBA Layout = "rgba"
)

// Channels returns the bytes per pixel of the layout, or 0 for unknown layouts.
func (l Layout) Channels() int {
	switch l {
	case LayoutBGR, LayoutRGB:
		return 3
	case LayoutBGRA, LayoutRGBA:
		return 4
	default:
		return 0
	}
}

var ErrDimensionMismatch = errors.New("frame dimensions do not match the configured stream")

// Format describes a stream once it is enabled. It does not change for the
// lifetime of a session.
type Format struct {
	Kind   StreamKind
	Width  int
	Height int
	FPS    int
	Layout Layout // color streams only
}

func (f Format) Pixels() int {
	return f.Width * f.Height
}

func (f Format) String() string {
	if f.Kind == StreamColor {
		return fmt.Sprintf("%s %dx%d@%d %s", f.Kind, f.Width, f.Height, f.FPS, f.Layout)
	}
	return fmt.Sprintf("%s %dx%d@%d", f.Kind, f.Width, f.Height, f.FPS)
}

// Validate reports structural problems with the format itself.
func (f Format) Validate() error {
	if f.Width <= 0 || f.Height <= 0 {
		return fmt.Errorf("invalid frame size %dx%d", f.Width, f.Height)
	}
	if f.Width > 32768 || f.Height > 32768 {
		return fmt.Errorf("frame size %dx%d exceeds maximum", f.Width, f.Height)
	}
	switch f.Kind {
	case StreamDepth:
	case StreamColor:
		if f.Layout.Channels() == 0 {
			return fmt.Errorf("unknown color layout %q", f.Layout)
		}
	default:
		return fmt.Errorf("unknown stream kind %q", f.Kind)
	}
	return nil
}

// Matches checks that a source format is compatible with the configured one.
func (f Format) Matches(other Format) error {
	if f.Kind != other.Kind {
		return fmt.Errorf("%w: stream kind %s, source delivers %s", ErrDimensionMismatch, f.Kind, other.Kind)
	}
	if f.Width != other.Width || f.Height != other.Height {
		return fmt.Errorf("%w: configured %dx%d, source delivers %dx%d",
			ErrDimensionMismatch, f.Width, f.Height, other.Width, other.Height)
	}
	if f.Kind == StreamColor && f.Layout != other.Layout {
		return fmt.Errorf("%w: configured layout %s, source delivers %s", ErrDimensionMismatch, f.Layout, other.Layout)
	}
	return nil
}

// Depth is one raw depth frame. Samples are row-major; a session owns its
// own copy.
type Depth struct {
	Width   int
	Height  int
	Samples []int16
	// MinValid and MaxValid are the sensor's reported range in raw units.
	// They are informational; masking uses the configured band.
	MinValid int
	MaxValid int
	Seq      uint64
}

// Check verifies the sample count against the frame size.
func (d *Depth) Check(width, height int) error {
	if d == nil {
		return errors.New("nil depth frame")
	}
	if d.Width != width || d.Height != height || len(d.Samples) != width*height {
		return fmt.Errorf("%w: depth frame %dx%d with %d samples, expected %dx%d",
			ErrDimensionMismatch, d.Width, d.Height, len(d.Samples), width, height)
	}
	return nil
}

// Color is one raw packed color frame.
type Color struct {
	Width  int
	Height int
	Layout Layout
	Pix    []byte
	Seq    uint64
}

// Check verifies the buffer length against the frame size and layout.
func (c *Color) Check(width, height int, layout Layout) error {
	if c == nil {
		return errors.New("nil color frame")
	}
	if c.Width != width || c.Height != height || c.Layout != layout {
		return fmt.Errorf("%w: color frame %dx%d %s, expected %dx%d %s",
			ErrDimensionMismatch, c.Width, c.Height, c.Layout, width, height, layout)
	}
	if want := width * height * layout.Channels(); len(c.Pix) != want {
		return fmt.Errorf("%w: color frame has %d bytes, expected %d", ErrDimensionMismatch, len(c.Pix), want)
	}
	return nil
}
