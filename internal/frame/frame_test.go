package frame

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseStreamKind(t *testing.T) {
	kind, err := ParseStreamKind(" Depth ")
	require.NoError(t, err)
	assert.Equal(t, StreamDepth, kind)

	kind, err = ParseStreamKind("color")
	require.NoError(t, err)
	assert.Equal(t, StreamColor, kind)

	_, err = ParseStreamKind("infrared")
	assert.Error(t, err)
}

func TestFormatValidate(t *testing.T) {
	assert.NoError(t, Format{Kind: StreamDepth, Width: 640, Height: 480, FPS: 30}.Validate())
	assert.NoError(t, Format{Kind: StreamColor, Width: 640, Height: 480, Layout: LayoutBGRA}.Validate())

	assert.Error(t, Format{Kind: StreamDepth, Width: 0, Height: 480}.Validate())
	assert.Error(t, Format{Kind: StreamColor, Width: 640, Height: 480, Layout: "yuv"}.Validate())
	assert.Error(t, Format{Kind: "thermal", Width: 640, Height: 480}.Validate())
}

func TestFormatMatches(t *testing.T) {
	cfg := Format{Kind: StreamColor, Width: 640, Height: 480, Layout: LayoutBGRA}

	assert.NoError(t, cfg.Matches(Format{Kind: StreamColor, Width: 640, Height: 480, Layout: LayoutBGRA, FPS: 15}))
	assert.ErrorIs(t, cfg.Matches(Format{Kind: StreamColor, Width: 320, Height: 240, Layout: LayoutBGRA}), ErrDimensionMismatch)
	assert.ErrorIs(t, cfg.Matches(Format{Kind: StreamColor, Width: 640, Height: 480, Layout: LayoutRGB}), ErrDimensionMismatch)
	assert.ErrorIs(t, cfg.Matches(Format{Kind: StreamDepth, Width: 640, Height: 480}), ErrDimensionMismatch)
}

func TestDepthCheck(t *testing.T) {
	d := &Depth{Width: 4, Height: 2, Samples: make([]int16, 8)}
	assert.NoError(t, d.Check(4, 2))

	d.Samples = d.Samples[:7]
	assert.ErrorIs(t, d.Check(4, 2), ErrDimensionMismatch)

	var nilFrame *Depth
	assert.Error(t, nilFrame.Check(4, 2))
}

func TestColorCheck(t *testing.T) {
	c := &Color{Width: 4, Height: 2, Layout: LayoutBGR, Pix: make([]byte, 24)}
	assert.NoError(t, c.Check(4, 2, LayoutBGR))
	assert.ErrorIs(t, c.Check(4, 2, LayoutBGRA), ErrDimensionMismatch)

	c.Pix = c.Pix[:20]
	assert.ErrorIs(t, c.Check(4, 2, LayoutBGR), ErrDimensionMismatch)
}
