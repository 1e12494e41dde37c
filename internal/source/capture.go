package source

import (
	"context"
	"fmt"
	"image"
	"sync"
	"time"

	"postit-mirror/internal/frame"
	"postit-mirror/internal/logger"

	"gocv.io/x/gocv"
)

const maxConsecutiveReadFailures = 30

// Capture reads color frames from a camera through OpenCV and delivers them
// in the configured layout and size.
type Capture struct {
	device int
	format frame.Format
	logger logger.Logger

	mu      sync.Mutex
	webcam  *gocv.VideoCapture
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	frames  uint64
	started bool
}

func NewCapture(device int, format frame.Format, log logger.Logger) (*Capture, error) {
	if err := format.Validate(); err != nil {
		return nil, err
	}
	if format.Kind != frame.StreamColor {
		return nil, fmt.Errorf("%w: camera capture delivers color frames, not %s", ErrUnsupported, format.Kind)
	}
	return &Capture{device: device, format: format, logger: logger.OrNop(log)}, nil
}

func (c *Capture) Format() frame.Format {
	return c.format
}

func (c *Capture) Start(ctx context.Context, h Handler) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.started {
		return ErrAlreadyStarted
	}

	webcam, err := gocv.OpenVideoCapture(c.device)
	if err != nil {
		return fmt.Errorf("failed to open capture device %d: %w", c.device, err)
	}
	if !webcam.IsOpened() {
		webcam.Close()
		return fmt.Errorf("capture device %d is not available", c.device)
	}

	webcam.Set(gocv.VideoCaptureFrameWidth, float64(c.format.Width))
	webcam.Set(gocv.VideoCaptureFrameHeight, float64(c.format.Height))
	if c.format.FPS > 0 {
		webcam.Set(gocv.VideoCaptureFPS, float64(c.format.FPS))
	}
	webcam.Set(gocv.VideoCaptureBufferSize, 1)

	c.webcam = webcam
	c.started = true
	ctx, c.cancel = context.WithCancel(ctx)

	c.wg.Add(1)
	go c.run(ctx, h)

	c.logger.Info("CaptureSource", "started", map[string]interface{}{
		"device": c.device,
		"format": c.format.String(),
	})
	return nil
}

func (c *Capture) run(ctx context.Context, h Handler) {
	defer c.wg.Done()

	img := gocv.NewMat()
	defer img.Close()

	retry := time.Second / 30
	if c.format.FPS > 0 {
		retry = time.Second / time.Duration(c.format.FPS)
	}

	failures := 0
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		if ok := c.webcam.Read(&img); !ok || img.Empty() {
			failures++
			if failures == maxConsecutiveReadFailures {
				c.logger.Warning("CaptureSource", "camera is not delivering frames", map[string]interface{}{
					"device":   c.device,
					"failures": failures,
				})
			}
			time.Sleep(retry)
			continue
		}
		failures = 0

		pix, err := c.pack(img)
		if err != nil {
			c.logger.Debug("CaptureSource", "frame conversion failed", map[string]interface{}{
				"error": err.Error(),
			})
			continue
		}

		c.mu.Lock()
		c.frames++
		c.mu.Unlock()

		if err := h.OnColorFrameReady(pix); err != nil {
			c.logger.Debug("CaptureSource", "handler rejected frame", map[string]interface{}{
				"error": err.Error(),
			})
		}
	}
}

// pack resizes a BGR camera frame to the configured size and reorders it to
// the configured layout.
func (c *Capture) pack(img gocv.Mat) ([]byte, error) {
	src := img
	if img.Cols() != c.format.Width || img.Rows() != c.format.Height {
		resized := gocv.NewMat()
		defer resized.Close()
		gocv.Resize(img, &resized, image.Pt(c.format.Width, c.format.Height), 0, 0, gocv.InterpolationLinear)
		src = resized
	}

	if src.Channels() != 3 {
		return nil, fmt.Errorf("camera delivered %d channels, expected 3", src.Channels())
	}

	var code gocv.ColorConversionCode
	switch c.format.Layout {
	case frame.LayoutBGR:
		return src.ToBytes(), nil
	case frame.LayoutBGRA:
		code = gocv.ColorBGRToBGRA
	case frame.LayoutRGB:
		code = gocv.ColorBGRToRGB
	case frame.LayoutRGBA:
		code = gocv.ColorBGRToRGBA
	default:
		return nil, fmt.Errorf("unsupported layout %q", c.format.Layout)
	}

	out := gocv.NewMat()
	defer out.Close()
	gocv.CvtColor(src, &out, code)
	if out.Empty() {
		return nil, fmt.Errorf("layout conversion produced no output")
	}
	return out.ToBytes(), nil
}

func (c *Capture) Frames() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.frames
}

func (c *Capture) Stop() error {
	c.mu.Lock()
	cancel := c.cancel
	c.cancel = nil
	c.mu.Unlock()

	if cancel == nil {
		return nil
	}
	cancel()
	c.wg.Wait()

	c.mu.Lock()
	defer c.mu.Unlock()

	var err error
	if c.webcam != nil {
		err = c.webcam.Close()
		c.webcam = nil
	}

	c.logger.Info("CaptureSource", "stopped", map[string]interface{}{
		"device": c.device,
		"frames": c.frames,
	})
	return err
}
