// Package source provides the frame producers a session can be fed from.
package source

import (
	"context"
	"errors"

	"postit-mirror/internal/frame"
)

var (
	ErrAlreadyStarted = errors.New("source already started")
	ErrUnsupported    = errors.New("stream kind not supported by source")
)

// Handler receives frames. Slices passed to it are not touched by the source
// afterwards.
type Handler interface {
	OnDepthFrameReady(samples []int16, minValid, maxValid int) error
	OnColorFrameReady(pix []byte) error
}

// Adapter pushes frames of a fixed Format to a Handler between Start and
// Stop.
type Adapter interface {
	Format() frame.Format
	Start(ctx context.Context, h Handler) error
	Stop() error
}
