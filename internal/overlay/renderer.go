package overlay

import (
	"fmt"
	"image"
	"image/color"

	"postit-mirror/internal/algorithms/mosaic"
	"postit-mirror/internal/opencv/bridge"
	"postit-mirror/internal/opencv/safe"

	"gocv.io/x/gocv"
)

// Renderer produces one RGBA overlay frame for a sweep offset.
type Renderer interface {
	Render(offset int) (buf []byte, stride int, err error)
}

var textColor = color.RGBA{R: 255, G: 255, B: 255, A: 255}

// TextRenderer draws the text lines in white on a black single-channel canvas
// and passes the result through the mosaic.
type TextRenderer struct {
	width     int
	height    int
	lines     []TextLine
	scale     float64
	thickness int
	accent    color.RGBA
	tiles     *mosaic.Renderer
	alloc     safe.Allocator
}

func NewTextRenderer(width, height int, cfg Config, tiles *mosaic.Renderer, alloc safe.Allocator) (*TextRenderer, error) {
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("%w: canvas %dx%d", ErrInvalidConfig, width, height)
	}
	if tiles == nil {
		return nil, fmt.Errorf("%w: mosaic renderer is required", ErrInvalidConfig)
	}

	lines := make([]TextLine, len(cfg.Lines))
	copy(lines, cfg.Lines)

	return &TextRenderer{
		width:     width,
		height:    height,
		lines:     lines,
		scale:     cfg.FontScale,
		thickness: cfg.Thickness,
		accent:    cfg.Accent,
		tiles:     tiles,
		alloc:     safe.OrUntracked(alloc),
	}, nil
}

func (r *TextRenderer) Render(offset int) ([]byte, int, error) {
	canvas, err := r.alloc.GetMat(r.height, r.width, gocv.MatTypeCV8UC1, gocv.NewScalar(0, 0, 0, 0), "overlay_canvas")
	if err != nil {
		return nil, 0, fmt.Errorf("failed to allocate overlay canvas: %w", err)
	}
	defer canvas.Close()

	dst := canvas.GetMat()
	for _, line := range r.lines {
		if err := gocv.PutText(&dst, line.Text, image.Pt(line.X, line.Y+offset), gocv.FontHersheyPlain, r.scale, textColor, r.thickness); err != nil {
			return nil, 0, fmt.Errorf("failed to draw %q: %w", line.Text, err)
		}
	}

	tiled, err := r.tiles.Render(canvas, r.accent)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to tile overlay text: %w", err)
	}
	defer tiled.Close()

	return bridge.ToRGBA(tiled)
}
