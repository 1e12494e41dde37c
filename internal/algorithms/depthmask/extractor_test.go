package depthmask

import (
	"testing"

	"postit-mirror/internal/frame"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// rawFor returns a raw sample whose reduced intensity is exactly v, with
// the flag bits set to flags.
func rawFor(v uint8, flags uint16) int16 {
	base := (uint16(v)*Divisor + flagMask) &^ flagMask
	return int16(base | flags&flagMask)
}

func uniformFrame(w, h int, v uint8) *frame.Depth {
	samples := make([]int16, w*h)
	for i := range samples {
		samples[i] = rawFor(v, uint16(i))
	}
	return &frame.Depth{Width: w, Height: h, Samples: samples}
}

func TestRawForReducesExactly(t *testing.T) {
	for v := 0; v <= 253; v++ {
		for flags := uint16(0); flags <= flagMask; flags++ {
			require.Equal(t, uint8(v), Reduce(rawFor(uint8(v), flags)), "v=%d flags=%d", v, flags)
		}
	}
}

func TestReduce_IgnoresFlagBits(t *testing.T) {
	for flags := int16(0); flags <= flagMask; flags++ {
		assert.Equal(t, Reduce(12896), Reduce(12896|flags))
	}
	assert.Equal(t, uint8(0), Reduce(7))
	assert.Equal(t, uint8(253), Reduce(-1))
}

func TestFill_OutputIsAlwaysBinary(t *testing.T) {
	samples := make([]int16, 1<<16)
	for i := range samples {
		samples[i] = int16(uint16(i))
	}
	dst := make([]byte, len(samples))

	for _, band := range []Band{
		{Low: 64, High: 128, Polarity: Inside},
		{Low: 96, High: 256, Polarity: Outside},
		{Low: 0, High: 0, Polarity: Inside},
	} {
		band.Fill(samples, dst)
		for i, b := range dst {
			if b != Valid && b != Invalid {
				t.Fatalf("%s: sample %d produced %d", band, i, b)
			}
		}
	}
}

func TestExtract_UniformBandMembership(t *testing.T) {
	bands := []Band{
		{Low: 64, High: 128, Polarity: Inside},
		{Low: 64, High: 128, Polarity: Outside},
	}

	for _, band := range bands {
		ex, err := NewExtractor(8, 6, band, nil)
		require.NoError(t, err)

		for _, v := range []uint8{0, 50, 63, 64, 100, 127, 128, 200, 253} {
			mask, err := ex.Extract(uniformFrame(8, 6, v))
			require.NoError(t, err)

			want := byte(Invalid)
			if band.Contains(v) {
				want = Valid
			}
			for i, got := range mask.Bytes() {
				require.Equal(t, want, got, "%s v=%d pixel %d", band, v, i)
			}
			mask.Close()
		}
	}
}

func TestBandContains_Edges(t *testing.T) {
	inside := Band{Low: 64, High: 128, Polarity: Inside}
	assert.False(t, inside.Contains(63))
	assert.True(t, inside.Contains(64))
	assert.True(t, inside.Contains(127))
	assert.False(t, inside.Contains(128))

	outside := Band{Low: 96, High: 256, Polarity: Outside}
	assert.True(t, outside.Contains(95))
	assert.False(t, outside.Contains(96))
	assert.False(t, outside.Contains(254))
}

func TestExtract_Scenario50(t *testing.T) {
	in, err := NewExtractor(16, 12, Band{Low: 64, High: 128, Polarity: Inside}, nil)
	require.NoError(t, err)
	out, err := NewExtractor(16, 12, Band{Low: 96, High: 256, Polarity: Outside}, nil)
	require.NoError(t, err)

	f := uniformFrame(16, 12, 50)

	insideMask, err := in.Extract(f)
	require.NoError(t, err)
	defer insideMask.Close()
	assert.Equal(t, make([]byte, 16*12), insideMask.Bytes())

	outsideMask, err := out.Extract(f)
	require.NoError(t, err)
	defer outsideMask.Close()
	for _, b := range outsideMask.Bytes() {
		require.Equal(t, byte(Valid), b)
	}
}

func TestExtract_RejectsWrongSize(t *testing.T) {
	ex, err := NewExtractor(4, 4, Band{Low: 0, High: 96, Polarity: Inside}, nil)
	require.NoError(t, err)

	_, err = ex.Extract(uniformFrame(4, 3, 10))
	assert.ErrorIs(t, err, frame.ErrDimensionMismatch)
}

func TestBandValidate(t *testing.T) {
	assert.NoError(t, Band{Low: 0, High: 256, Polarity: Inside}.Validate())
	assert.ErrorIs(t, Band{Low: 128, High: 64, Polarity: Inside}.Validate(), ErrInvalidBand)
	assert.ErrorIs(t, Band{Low: -1, High: 64, Polarity: Inside}.Validate(), ErrInvalidBand)
	assert.ErrorIs(t, Band{Low: 0, High: 300, Polarity: Outside}.Validate(), ErrInvalidBand)
	assert.ErrorIs(t, Band{Low: 0, High: 64, Polarity: "between"}.Validate(), ErrInvalidBand)

	_, err := NewExtractor(4, 4, Band{Low: 10, High: 5, Polarity: Inside}, nil)
	assert.ErrorIs(t, err, ErrInvalidBand)
}

func TestParsePolarity(t *testing.T) {
	p, err := ParsePolarity("OUTSIDE")
	require.NoError(t, err)
	assert.Equal(t, Outside, p)

	_, err = ParsePolarity("around")
	assert.ErrorIs(t, err, ErrInvalidBand)
}
