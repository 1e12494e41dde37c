package source

import (
	"context"
	"fmt"
	"sync"
	"time"

	"postit-mirror/internal/frame"
	"postit-mirror/internal/logger"
)

const (
	// Reduced 8-bit intensities of the synthetic scene.
	SyntheticFar  = 200
	SyntheticNear = 50

	syntheticPlayer = 1
	syntheticSpeed  = 4

	// Reported sensor range in millimetres.
	syntheticMinValid = 800
	syntheticMaxValid = 4000
)

// Synthetic produces a deterministic scene: a disc moving left to right in
// front of a static background. Frame n depends only on n.
type Synthetic struct {
	format frame.Format
	logger logger.Logger

	mu      sync.Mutex
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	seq     uint64
	errors  uint64
	started bool
}

func NewSynthetic(format frame.Format, log logger.Logger) (*Synthetic, error) {
	if err := format.Validate(); err != nil {
		return nil, err
	}
	if format.FPS <= 0 {
		return nil, fmt.Errorf("synthetic source needs a positive frame rate, got %d", format.FPS)
	}
	return &Synthetic{format: format, logger: logger.OrNop(log)}, nil
}

func (s *Synthetic) Format() frame.Format {
	return s.format
}

// inDisc reports whether (x, y) is covered by the disc in frame n.
func (s *Synthetic) inDisc(n uint64, x, y int) bool {
	w, h := s.format.Width, s.format.Height
	r := h / 6
	if r < 1 {
		r = 1
	}
	cx := int(n*syntheticSpeed) % w
	cy := h / 2
	dx, dy := x-cx, y-cy
	return dx*dx+dy*dy <= r*r
}

// rawDepth encodes an 8-bit intensity as a raw sample whose reduction
// yields v again, with the player index in the flag bits. Valid for v < 254.
func rawDepth(v uint8, player uint16) int16 {
	raw := (uint32(v)*258 + 7) &^ 7
	return int16(uint16(raw) | player&7)
}

func (s *Synthetic) DepthFrame(n uint64) []int16 {
	w, h := s.format.Width, s.format.Height
	far := rawDepth(SyntheticFar, 0)
	near := rawDepth(SyntheticNear, syntheticPlayer)

	samples := make([]int16, w*h)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			if s.inDisc(n, x, y) {
				samples[y*w+x] = near
			} else {
				samples[y*w+x] = far
			}
		}
	}
	return samples
}

// ColorFrame returns frame n packed in the source layout. The background is
// a horizontal gray ramp and the disc is saturated orange.
func (s *Synthetic) ColorFrame(n uint64) []byte {
	w, h := s.format.Width, s.format.Height
	ch := s.format.Layout.Channels()
	rgbOrder := s.format.Layout == frame.LayoutRGB || s.format.Layout == frame.LayoutRGBA

	pix := make([]byte, w*h*ch)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			r, g, b := byte(40+x*160/w), byte(40+x*160/w), byte(40+x*160/w)
			if s.inDisc(n, x, y) {
				r, g, b = 250, 140, 20
			}
			i := (y*w + x) * ch
			if rgbOrder {
				pix[i], pix[i+1], pix[i+2] = r, g, b
			} else {
				pix[i], pix[i+1], pix[i+2] = b, g, r
			}
			if ch == 4 {
				pix[i+3] = 255
			}
		}
	}
	return pix
}

func (s *Synthetic) Start(ctx context.Context, h Handler) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return ErrAlreadyStarted
	}
	s.started = true

	ctx, s.cancel = context.WithCancel(ctx)
	s.wg.Add(1)
	go s.run(ctx, h)

	s.logger.Info("SyntheticSource", "started", map[string]interface{}{
		"format": s.format.String(),
	})
	return nil
}

func (s *Synthetic) run(ctx context.Context, h Handler) {
	defer s.wg.Done()

	ticker := time.NewTicker(time.Second / time.Duration(s.format.FPS))
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.emit(h)
		}
	}
}

func (s *Synthetic) emit(h Handler) {
	s.mu.Lock()
	n := s.seq
	s.seq++
	s.mu.Unlock()

	var err error
	if s.format.Kind == frame.StreamDepth {
		err = h.OnDepthFrameReady(s.DepthFrame(n), syntheticMinValid, syntheticMaxValid)
	} else {
		err = h.OnColorFrameReady(s.ColorFrame(n))
	}

	if err != nil {
		s.mu.Lock()
		s.errors++
		s.mu.Unlock()
		s.logger.Debug("SyntheticSource", "handler rejected frame", map[string]interface{}{
			"seq":   n,
			"error": err.Error(),
		})
	}
}

// Emitted returns the number of frames produced so far.
func (s *Synthetic) Emitted() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.seq
}

func (s *Synthetic) Stop() error {
	s.mu.Lock()
	cancel := s.cancel
	s.cancel = nil
	s.mu.Unlock()

	if cancel == nil {
		return nil
	}
	cancel()
	s.wg.Wait()

	s.logger.Info("SyntheticSource", "stopped", map[string]interface{}{
		"frames":          s.Emitted(),
		"rejected_frames": s.errors,
	})
	return nil
}
