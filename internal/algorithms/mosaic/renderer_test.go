package mosaic

import (
	"image/color"
	"math/rand/v2"
	"testing"

	"postit-mirror/internal/opencv/safe"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gocv.io/x/gocv"
)

var (
	yellowBGR = []byte{0, 255, 255}
	blackBGR  = []byte{0, 0, 0}
)

func mask(t *testing.T, w, h int, set func(x, y int) bool) *safe.Mat {
	t.Helper()
	pix := make([]byte, w*h)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			if set(x, y) {
				pix[y*w+x] = 255
			}
		}
	}
	m, err := safe.Untracked{}.FromBytes(h, w, gocv.MatTypeCV8UC1, pix, "mask")
	require.NoError(t, err)
	t.Cleanup(m.Close)
	return m
}

func at(pix []byte, w, x, y int) []byte {
	i := (y*w + x) * 3
	return pix[i : i+3]
}

func renderer(t *testing.T) *Renderer {
	t.Helper()
	r, err := NewRenderer(DefaultGeometry(), DefaultAccent, DefaultBackground, nil)
	require.NoError(t, err)
	return r
}

func TestRender_FillGeometry(t *testing.T) {
	r := renderer(t)
	out, err := r.Process(mask(t, 20, 20, func(x, y int) bool { return true }))
	require.NoError(t, err)
	defer out.Close()

	require.Equal(t, 3, out.Channels())
	pix := out.Bytes()

	for _, origin := range [][2]int{{0, 0}, {10, 0}, {0, 10}, {10, 10}} {
		x, y := origin[0], origin[1]
		assert.Equal(t, yellowBGR, at(pix, 20, x, y), "cell origin %v", origin)
		assert.Equal(t, yellowBGR, at(pix, 20, x+7, y+7), "last filled pixel %v", origin)
		assert.Equal(t, blackBGR, at(pix, 20, x+8, y), "gap column %v", origin)
		assert.Equal(t, blackBGR, at(pix, 20, x, y+9), "gap row %v", origin)
	}
}

func TestRender_TrailingCellsNeverDrawn(t *testing.T) {
	r := renderer(t)
	out, err := r.Process(mask(t, 25, 25, func(x, y int) bool { return true }))
	require.NoError(t, err)
	defer out.Close()

	pix := out.Bytes()
	assert.Equal(t, yellowBGR, at(pix, 25, 10, 10))
	for y := 0; y < 25; y++ {
		for x := 20; x < 25; x++ {
			require.Equal(t, blackBGR, at(pix, 25, x, y), "(%d,%d)", x, y)
			require.Equal(t, blackBGR, at(pix, 25, y, x), "(%d,%d)", y, x)
		}
	}

	cols, rows := r.Geometry().Cells(25, 25)
	assert.Equal(t, 2, cols)
	assert.Equal(t, 2, rows)
}

func TestRender_SamplesCellCentre(t *testing.T) {
	r := renderer(t)
	out, err := r.Process(mask(t, 30, 20, func(x, y int) bool {
		return (x == 15 && y == 5) || (x == 1 && y == 1)
	}))
	require.NoError(t, err)
	defer out.Close()

	pix := out.Bytes()
	lit := 0
	for i := 0; i < len(pix); i += 3 {
		if pix[i+1] == 255 {
			lit++
		}
	}
	assert.Equal(t, 64, lit, "exactly one 8x8 tile")
	assert.Equal(t, yellowBGR, at(pix, 30, 10, 0))
	assert.Equal(t, blackBGR, at(pix, 30, 0, 0), "off-centre pixel does not light its cell")
}

func TestRender_Deterministic(t *testing.T) {
	rng := rand.New(rand.NewPCG(1, 2))
	src := mask(t, 64, 48, func(x, y int) bool { return rng.IntN(2) == 0 })
	r := renderer(t)

	first, err := r.Process(src)
	require.NoError(t, err)
	defer first.Close()

	second, err := r.Process(src)
	require.NoError(t, err)
	defer second.Close()

	if diff := cmp.Diff(first.Bytes(), second.Bytes()); diff != "" {
		t.Errorf("mosaic output differs between calls (-first +second):\n%s", diff)
	}
}

func TestRender_AccentAndBackground(t *testing.T) {
	magenta := color.RGBA{R: 255, B: 255, A: 255}
	gray := color.RGBA{R: 40, G: 40, B: 40, A: 255}
	r, err := NewRenderer(DefaultGeometry(), DefaultAccent, gray, nil)
	require.NoError(t, err)

	out, err := r.Render(mask(t, 10, 10, func(x, y int) bool { return true }), magenta)
	require.NoError(t, err)
	defer out.Close()

	pix := out.Bytes()
	assert.Equal(t, []byte{255, 0, 255}, at(pix, 10, 3, 3))
	assert.Equal(t, []byte{40, 40, 40}, at(pix, 10, 9, 9))
}

func TestRender_RejectsColorInput(t *testing.T) {
	bgr, err := safe.NewMat(10, 10, gocv.MatTypeCV8UC3)
	require.NoError(t, err)
	defer bgr.Close()

	_, err = renderer(t).Process(bgr)
	assert.Error(t, err)
}

func TestGeometryValidate(t *testing.T) {
	assert.NoError(t, DefaultGeometry().Validate())

	bad := []Geometry{
		{Cell: 0, Fill: 1, Offset: 0},
		{Cell: 10, Fill: 0, Offset: 5},
		{Cell: 10, Fill: 11, Offset: 5},
		{Cell: 10, Fill: 8, Offset: 10},
		{Cell: 10, Fill: 8, Offset: -1},
	}
	for _, g := range bad {
		assert.ErrorIs(t, g.Validate(), ErrInvalidGeometry, "%+v", g)
	}

	_, err := NewRenderer(Geometry{Cell: 4, Fill: 8}, DefaultAccent, DefaultBackground, nil)
	assert.ErrorIs(t, err, ErrInvalidGeometry)
}
