// Package depthmask turns raw depth samples into a binary foreground mask.
//
// Each 16-bit sample carries the player index in its low FlagBits bits.
// Those bits are cleared, the remaining value is read as unsigned and
// divided by Divisor, giving an 8-bit intensity in 0..254. The intensity
// is then tested against a Band.
package depthmask

import (
	"errors"
	"fmt"
	"strings"

	"postit-mirror/internal/frame"
	"postit-mirror/internal/opencv/safe"

	"gocv.io/x/gocv"
)

const (
	FlagBits = 3
	Divisor  = 258

	flagMask = 1<<FlagBits - 1

	Valid   = 255
	Invalid = 0
)

var ErrInvalidBand = errors.New("invalid depth band")

// Polarity decides whether the inside or the outside of [Low, High) is valid.
type Polarity string

const (
	Inside  Polarity = "inside"
	Outside Polarity = "outside"
)

func ParsePolarity(s string) (Polarity, error) {
	switch Polarity(strings.ToLower(strings.TrimSpace(s))) {
	case Inside:
		return Inside, nil
	case Outside:
		return Outside, nil
	}
	return "", fmt.Errorf("%w: unknown polarity %q", ErrInvalidBand, s)
}

// Band is a half-open intensity range [Low, High) plus its polarity.
type Band struct {
	Low      int
	High     int
	Polarity Polarity
}

func (b Band) Validate() error {
	if b.Low < 0 || b.High > 256 || b.Low > b.High {
		return fmt.Errorf("%w: [%d,%d) must satisfy 0 <= low <= high <= 256", ErrInvalidBand, b.Low, b.High)
	}
	if b.Polarity != Inside && b.Polarity != Outside {
		return fmt.Errorf("%w: unknown polarity %q", ErrInvalidBand, b.Polarity)
	}
	return nil
}

// Contains reports whether intensity v is a valid depth under b.
func (b Band) Contains(v uint8) bool {
	in := int(v) >= b.Low && int(v) < b.High
	if b.Polarity == Outside {
		return !in
	}
	return in
}

func (b Band) String() string {
	if b.Polarity == Outside {
		return fmt.Sprintf("outside [%d,%d)", b.Low, b.High)
	}
	return fmt.Sprintf("inside [%d,%d)", b.Low, b.High)
}

// Reduce maps a raw sample to its 8-bit intensity.
func Reduce(raw int16) uint8 {
	return uint8((uint16(raw) &^ flagMask) / Divisor)
}

// Fill writes the mask for samples into dst. dst must be at least as long as
// samples.
func (b Band) Fill(samples []int16, dst []byte) {
	var lut [256]byte
	for v := 0; v < 256; v++ {
		if b.Contains(uint8(v)) {
			lut[v] = Valid
		}
	}

	for i, raw := range samples {
		dst[i] = lut[Reduce(raw)]
	}
}

// Extractor converts depth frames of one fixed size. It reuses its scratch
// buffer and must only be used from the session's processing goroutine.
type Extractor struct {
	band   Band
	width  int
	height int
	alloc  safe.Allocator
	buf    []byte
}

func NewExtractor(width, height int, band Band, alloc safe.Allocator) (*Extractor, error) {
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("%w: invalid extractor size %dx%d", frame.ErrDimensionMismatch, width, height)
	}
	if err := band.Validate(); err != nil {
		return nil, err
	}

	return &Extractor{
		band:   band,
		width:  width,
		height: height,
		alloc:  safe.OrUntracked(alloc),
		buf:    make([]byte, width*height),
	}, nil
}

func (e *Extractor) Band() Band {
	return e.band
}

// Extract returns a single-channel mask with 255 for valid depths.
func (e *Extractor) Extract(f *frame.Depth) (*safe.Mat, error) {
	if err := f.Check(e.width, e.height); err != nil {
		return nil, err
	}

	e.band.Fill(f.Samples, e.buf)

	return e.alloc.FromBytes(e.height, e.width, gocv.MatTypeCV8UC1, e.buf, "depth_mask")
}
