// Package display defines where finished frames go and the single context
// that is allowed to write them.
package display

import (
	"errors"
	"fmt"
	"sync"
)

// BytesPerPixel of the RGBA buffers accepted by every Sink.
const BytesPerPixel = 4

var ErrBufferMismatch = errors.New("pixel buffer does not match display surface")

// Sink accepts finished RGBA pixel buffers. WritePixels is only called from
// the Dispatcher's context.
type Sink interface {
	WritePixels(buf []byte, stride int) error
	Size() (width, height int)
}

// CheckBuffer verifies buf is a tightly packed RGBA image of width x height.
func CheckBuffer(buf []byte, stride, width, height int) error {
	if stride != width*BytesPerPixel {
		return fmt.Errorf("%w: stride %d, surface needs %d", ErrBufferMismatch, stride, width*BytesPerPixel)
	}
	if len(buf) != stride*height {
		return fmt.Errorf("%w: %d bytes, surface %dx%d needs %d", ErrBufferMismatch, len(buf), width, height, stride*height)
	}
	return nil
}

// MemorySink keeps the last written frame in memory.
type MemorySink struct {
	mu     sync.Mutex
	width  int
	height int
	pix    []byte
	writes uint64
}

func NewMemorySink(width, height int) *MemorySink {
	return &MemorySink{
		width:  width,
		height: height,
		pix:    make([]byte, width*height*BytesPerPixel),
	}
}

func (s *MemorySink) Size() (int, int) {
	return s.width, s.height
}

func (s *MemorySink) WritePixels(buf []byte, stride int) error {
	if err := CheckBuffer(buf, stride, s.width, s.height); err != nil {
		return err
	}

	s.mu.Lock()
	copy(s.pix, buf)
	s.writes++
	s.mu.Unlock()
	return nil
}

// Snapshot returns a copy of the current surface contents.
func (s *MemorySink) Snapshot() []byte {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]byte, len(s.pix))
	copy(out, s.pix)
	return out
}

func (s *MemorySink) Writes() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.writes
}
