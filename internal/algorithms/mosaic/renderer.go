// Package mosaic redraws a binary mask as a coarse grid of solid tiles.
package mosaic

import (
	"errors"
	"fmt"
	"image"
	"image/color"

	"postit-mirror/internal/opencv/safe"

	"gocv.io/x/gocv"
)

var ErrInvalidGeometry = errors.New("invalid mosaic geometry")

var (
	// Yellow in BGR is (0,255,255).
	DefaultAccent     = color.RGBA{R: 255, G: 255, B: 0, A: 255}
	DefaultBackground = color.RGBA{A: 255}
)

// Geometry describes the tile grid. Cells are Cell pixels apart, each drawn
// tile is Fill pixels square, and a cell is lit when the mask pixel at
// (x+Offset, y+Offset) is non-zero.
type Geometry struct {
	Cell   int
	Fill   int
	Offset int
}

func DefaultGeometry() Geometry {
	return Geometry{Cell: 10, Fill: 8, Offset: 5}
}

func (g Geometry) Validate() error {
	if g.Cell < 1 {
		return fmt.Errorf("%w: cell size must be positive, got %d", ErrInvalidGeometry, g.Cell)
	}
	if g.Fill < 1 || g.Fill > g.Cell {
		return fmt.Errorf("%w: fill size must be in [1,%d], got %d", ErrInvalidGeometry, g.Cell, g.Fill)
	}
	if g.Offset < 0 || g.Offset >= g.Cell {
		return fmt.Errorf("%w: sample offset must be in [0,%d), got %d", ErrInvalidGeometry, g.Cell, g.Offset)
	}
	return nil
}

// Cells reports how many complete cells fit a width x height image.
func (g Geometry) Cells(width, height int) (cols, rows int) {
	return width / g.Cell, height / g.Cell
}

type Renderer struct {
	geometry   Geometry
	accent     color.RGBA
	background color.RGBA
	alloc      safe.Allocator
}

func NewRenderer(geometry Geometry, accent, background color.RGBA, alloc safe.Allocator) (*Renderer, error) {
	if err := geometry.Validate(); err != nil {
		return nil, err
	}
	return &Renderer{
		geometry:   geometry,
		accent:     accent,
		background: background,
		alloc:      safe.OrUntracked(alloc),
	}, nil
}

func (r *Renderer) Name() string {
	return "mosaic"
}

func (r *Renderer) Geometry() Geometry {
	return r.geometry
}

func (r *Renderer) Accent() color.RGBA {
	return r.accent
}

func (r *Renderer) Process(input *safe.Mat) (*safe.Mat, error) {
	return r.Render(input, r.accent)
}

// Render draws mask with the given accent onto a fresh BGR image of the same
// size. Trailing partial cells are left as background.
func (r *Renderer) Render(mask *safe.Mat, accent color.RGBA) (*safe.Mat, error) {
	if err := safe.ValidateMask(mask, "Mosaic"); err != nil {
		return nil, err
	}

	width, height := mask.Cols(), mask.Rows()
	out, err := r.alloc.GetMat(height, width, gocv.MatTypeCV8UC3, toScalar(r.background), "mosaic")
	if err != nil {
		return nil, fmt.Errorf("failed to allocate mosaic output: %w", err)
	}

	g := r.geometry
	pix := mask.Bytes()
	dst := out.GetMat()

	for y := 0; y+g.Cell <= height; y += g.Cell {
		row := (y + g.Offset) * width
		for x := 0; x+g.Cell <= width; x += g.Cell {
			if pix[row+x+g.Offset] == 0 {
				continue
			}
			if err := gocv.Rectangle(&dst, image.Rect(x, y, x+g.Fill, y+g.Fill), accent, -1); err != nil {
				out.Close()
				return nil, fmt.Errorf("failed to draw cell at (%d,%d): %w", x, y, err)
			}
		}
	}

	return out, nil
}

func toScalar(c color.RGBA) gocv.Scalar {
	return gocv.NewScalar(float64(c.B), float64(c.G), float64(c.R), float64(c.A))
}
