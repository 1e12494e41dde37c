package morph

import (
	"math/rand/v2"
	"testing"

	"postit-mirror/internal/opencv/safe"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gocv.io/x/gocv"
)

func maskFrom(t *testing.T, w, h int, set func(x, y int) bool) *safe.Mat {
	t.Helper()
	pix := make([]byte, w*h)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			if set(x, y) {
				pix[y*w+x] = 255
			}
		}
	}
	m, err := safe.Untracked{}.FromBytes(h, w, gocv.MatTypeCV8UC1, pix, "test_mask")
	require.NoError(t, err)
	t.Cleanup(m.Close)
	return m
}

func count(m *safe.Mat) int {
	n := 0
	for _, b := range m.Bytes() {
		if b != 0 {
			n++
		}
	}
	return n
}

func kernel(t *testing.T, size int) *Kernel {
	t.Helper()
	k, err := NewKernel(size)
	require.NoError(t, err)
	t.Cleanup(k.Close)
	return k
}

func TestNewKernel_RejectsEvenAndNonPositive(t *testing.T) {
	for _, size := range []int{0, -1, -3, 2, 4, 10} {
		_, err := NewKernel(size)
		assert.ErrorIs(t, err, ErrInvalidKernel, "size %d", size)
	}

	k := kernel(t, 9)
	assert.Equal(t, 9, k.Size())
	k.Close()
}

func TestClosing_IsIdempotent(t *testing.T) {
	rng := rand.New(rand.NewPCG(7, 11))
	src := maskFrom(t, 64, 48, func(x, y int) bool { return rng.IntN(100) < 30 })
	k := kernel(t, 9)

	once, err := Closing(nil, src, k)
	require.NoError(t, err)
	defer once.Close()

	twice, err := Closing(nil, once, k)
	require.NoError(t, err)
	defer twice.Close()

	assert.Equal(t, once.Bytes(), twice.Bytes())
}

func TestClosing_IsExtensive(t *testing.T) {
	rng := rand.New(rand.NewPCG(3, 5))
	src := maskFrom(t, 40, 30, func(x, y int) bool { return rng.IntN(100) < 10 })
	k := kernel(t, 5)

	out, err := Closing(nil, src, k)
	require.NoError(t, err)
	defer out.Close()

	in := src.Bytes()
	for i, b := range out.Bytes() {
		if in[i] == 255 {
			require.Equal(t, byte(255), b, "closing removed pixel %d", i)
		}
	}
}

func TestClosing_FillsGapInBar(t *testing.T) {
	src := maskFrom(t, 21, 21, func(x, y int) bool {
		return y == 10 && x >= 2 && x <= 18 && x != 10
	})
	before := src.Bytes()

	out, err := Closing(nil, src, kernel(t, 9))
	require.NoError(t, err)
	defer out.Close()

	pix := out.Bytes()
	assert.Equal(t, byte(255), pix[10*21+10], "hole must be filled")
	assert.Equal(t, byte(0), pix[0], "far corner stays empty")
	assert.Equal(t, before, src.Bytes(), "input must not change")
}

func TestClosing_IsolatedPixelKeepsFootprint(t *testing.T) {
	src := maskFrom(t, 21, 21, func(x, y int) bool { return x == 10 && y == 10 })

	out, err := Closing(nil, src, kernel(t, 9))
	require.NoError(t, err)
	defer out.Close()

	assert.Equal(t, 1, count(out))

	grown, err := Dilate(nil, src, kernel(t, 9))
	require.NoError(t, err)
	defer grown.Close()

	assert.Equal(t, 81, count(grown))
}

func TestErode_RemovesSpeckle(t *testing.T) {
	src := maskFrom(t, 30, 30, func(x, y int) bool {
		speck := x == 3 && y == 3
		block := x >= 12 && x < 18 && y >= 12 && y < 18
		return speck || block
	})

	out, err := Erode(nil, src, kernel(t, 3), 1)
	require.NoError(t, err)
	defer out.Close()

	pix := out.Bytes()
	assert.Equal(t, byte(0), pix[3*30+3])
	assert.Equal(t, 16, count(out), "6x6 block shrinks to 4x4")
}

func TestErode_BorderIsReplicated(t *testing.T) {
	src := maskFrom(t, 12, 9, func(x, y int) bool { return true })

	out, err := Erode(nil, src, kernel(t, 3), 3)
	require.NoError(t, err)
	defer out.Close()

	assert.Equal(t, 12*9, count(out))
}

func TestErode_ZeroIterationsCopies(t *testing.T) {
	src := maskFrom(t, 8, 8, func(x, y int) bool { return x == y })

	out, err := Erode(nil, src, kernel(t, 3), 0)
	require.NoError(t, err)
	defer out.Close()

	assert.Equal(t, src.Bytes(), out.Bytes())
	assert.NotEqual(t, src.ID(), out.ID())

	_, err = Erode(nil, src, kernel(t, 3), MaxErodeIterations+1)
	assert.Error(t, err)
}

func TestOperations_RejectColorInput(t *testing.T) {
	bgr, err := safe.NewMat(4, 4, gocv.MatTypeCV8UC3)
	require.NoError(t, err)
	defer bgr.Close()

	_, err = Closing(nil, bgr, kernel(t, 3))
	assert.Error(t, err)

	_, err = Closing(nil, maskFrom(t, 4, 4, func(x, y int) bool { return false }), nil)
	assert.ErrorIs(t, err, ErrInvalidKernel)
}

func TestCleanup_ErodeThenClose(t *testing.T) {
	c, err := NewCleanup(Params{KernelSize: 9, Close: true, ErodeIterations: 1, ErodeKernelSize: 3}, nil)
	require.NoError(t, err)
	defer c.Close()

	src := maskFrom(t, 30, 30, func(x, y int) bool {
		speck := x == 3 && y == 3
		block := x >= 10 && x < 20 && y >= 10 && y < 20 && x != 15
		return speck || block
	})

	out, err := c.Process(src)
	require.NoError(t, err)
	defer out.Close()

	pix := out.Bytes()
	assert.Equal(t, "morphology", c.Name())
	assert.Equal(t, byte(0), pix[3*30+3], "speck removed")
	assert.Equal(t, byte(255), pix[15*30+15], "slot closed")
}

func TestCleanup_CloseOnly(t *testing.T) {
	c, err := NewCleanup(Params{KernelSize: 9, Close: true}, nil)
	require.NoError(t, err)
	defer c.Close()

	src := maskFrom(t, 21, 21, func(x, y int) bool { return x == 10 && y == 10 })

	out, err := c.Process(src)
	require.NoError(t, err)
	defer out.Close()

	assert.Equal(t, 1, count(out))
}

func TestParamsValidate(t *testing.T) {
	assert.NoError(t, Params{KernelSize: 9, Close: true}.Validate())
	assert.NoError(t, Params{KernelSize: 9, ErodeIterations: 3, ErodeKernelSize: 3}.Validate())

	bad := []Params{
		{KernelSize: 8},
		{KernelSize: 9, ErodeKernelSize: 2},
		{KernelSize: 9, ErodeIterations: -1},
		{KernelSize: 9, ErodeIterations: 11},
	}
	for _, p := range bad {
		assert.Error(t, p.Validate(), "%+v", p)
	}

	_, err := NewCleanup(Params{KernelSize: 4}, nil)
	assert.ErrorIs(t, err, ErrInvalidKernel)
}
