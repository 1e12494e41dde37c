package bridge

import (
	"testing"

	"postit-mirror/internal/opencv/safe"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gocv.io/x/gocv"
)

func TestToRGBA_FromBGR(t *testing.T) {
	src, err := safe.Untracked{}.FromBytes(1, 2, gocv.MatTypeCV8UC3, []byte{0, 255, 255, 10, 20, 30}, "bgr")
	require.NoError(t, err)
	defer src.Close()

	pix, stride, err := ToRGBA(src)
	require.NoError(t, err)
	assert.Equal(t, 8, stride)
	assert.Equal(t, []byte{255, 255, 0, 255, 30, 20, 10, 255}, pix)
}

func TestToRGBA_FromGray(t *testing.T) {
	src, err := safe.Untracked{}.FromBytes(1, 2, gocv.MatTypeCV8UC1, []byte{0, 255}, "gray")
	require.NoError(t, err)
	defer src.Close()

	pix, stride, err := ToRGBA(src)
	require.NoError(t, err)
	assert.Equal(t, 8, stride)
	assert.Equal(t, []byte{0, 0, 0, 255, 255, 255, 255, 255}, pix)
}

func TestToRGBA_RejectsNil(t *testing.T) {
	_, _, err := ToRGBA(nil)
	assert.Error(t, err)
}
