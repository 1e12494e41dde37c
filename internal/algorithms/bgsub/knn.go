// Package bgsub isolates moving foreground in color frames with an adaptive
// K-nearest-neighbour background model.
package bgsub

import (
	"errors"
	"fmt"
	"strings"

	"postit-mirror/internal/frame"
	"postit-mirror/internal/opencv/conversion"
	"postit-mirror/internal/opencv/safe"

	"gocv.io/x/gocv"
)

// Raw model output values.
const (
	Foreground = 255
	Shadow     = 127
	Background = 0

	// Anything above this in the raw model output is foreground; shadows sit below it.
	foregroundCut = 200
)

var ErrInvalidParams = errors.New("invalid background model parameters")

// OutputMode selects how foreground pixels are written to the mask.
type OutputMode string

const (
	// Binary marks foreground 255; background and shadow are 0.
	Binary OutputMode = "binary"
	// Intensity keeps the input's gray level on foreground pixels and
	// writes Shadow on shadow pixels when shadow detection is on.
	Intensity OutputMode = "intensity"
)

func ParseOutputMode(s string) (OutputMode, error) {
	switch OutputMode(strings.ToLower(strings.TrimSpace(s))) {
	case Binary:
		return Binary, nil
	case Intensity:
		return Intensity, nil
	}
	return "", fmt.Errorf("%w: unknown output mode %q", ErrInvalidParams, s)
}

type Params struct {
	History       int
	DistThreshold float32
	DetectShadows bool
	Mode          OutputMode
}

// DefaultParams are the values of the deployed color installation.
func DefaultParams() Params {
	return Params{
		History:       200,
		DistThreshold: 70,
		DetectShadows: false,
		Mode:          Binary,
	}
}

func (p Params) Validate() error {
	if p.History < 1 || p.History > 100000 {
		return fmt.Errorf("%w: history must be between 1 and 100000, got %d", ErrInvalidParams, p.History)
	}
	if p.DistThreshold <= 0 {
		return fmt.Errorf("%w: distance threshold must be positive, got %f", ErrInvalidParams, p.DistThreshold)
	}
	if p.Mode != Binary && p.Mode != Intensity {
		return fmt.Errorf("%w: unknown output mode %q", ErrInvalidParams, p.Mode)
	}
	return nil
}

// KNN wraps an OpenCV KNN background subtractor bound to one frame size.
// It is not safe for concurrent use; the owning session calls it from a
// single goroutine.
type KNN struct {
	model  gocv.BackgroundSubtractorKNN
	params Params
	width  int
	height int
	alloc  safe.Allocator
	frames uint64
	closed bool
}

func NewKNN(width, height int, params Params, alloc safe.Allocator) (*KNN, error) {
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("%w: invalid model size %dx%d", frame.ErrDimensionMismatch, width, height)
	}
	if err := params.Validate(); err != nil {
		return nil, err
	}

	return &KNN{
		model:  gocv.NewBackgroundSubtractorKNNWithParams(params.History, params.DistThreshold, params.DetectShadows),
		params: params,
		width:  width,
		height: height,
		alloc:  safe.OrUntracked(alloc),
	}, nil
}

func (k *KNN) Name() string {
	return "knn_background"
}

func (k *KNN) Params() Params {
	return k.params
}

// Frames returns how many frames the model has learned from.
func (k *KNN) Frames() uint64 {
	return k.frames
}

func (k *KNN) Process(input *safe.Mat) (*safe.Mat, error) {
	return k.Apply(input)
}

// Apply classifies a BGR frame and updates the model with it.
func (k *KNN) Apply(input *safe.Mat) (*safe.Mat, error) {
	if k.closed {
		return nil, errors.New("background model is closed")
	}
	if err := safe.ValidateMatForOperation(input, "KNN.Apply"); err != nil {
		return nil, err
	}
	if input.Cols() != k.width || input.Rows() != k.height {
		return nil, fmt.Errorf("%w: model is %dx%d, frame is %dx%d",
			frame.ErrDimensionMismatch, k.width, k.height, input.Cols(), input.Rows())
	}
	if input.Channels() != 3 {
		return nil, fmt.Errorf("KNN.Apply requires a BGR frame, got %d channels", input.Channels())
	}

	raw := gocv.NewMat()
	defer raw.Close()

	if err := k.model.Apply(input.GetMat(), &raw); err != nil {
		return nil, fmt.Errorf("background model update failed: %w", err)
	}
	k.frames++

	fg := gocv.NewMat()
	gocv.Threshold(raw, &fg, foregroundCut, Foreground, gocv.ThresholdBinary)

	if k.params.Mode == Binary {
		return k.alloc.Adopt(fg, "foreground_mask")
	}
	defer fg.Close()

	return k.intensity(input, raw, fg)
}

func (k *KNN) intensity(input *safe.Mat, raw, fg gocv.Mat) (*safe.Mat, error) {
	gray, err := conversion.ConvertToGrayscale(k.alloc, input)
	if err != nil {
		return nil, fmt.Errorf("failed to convert frame to gray: %w", err)
	}
	defer gray.Close()

	out := gocv.NewMat()
	gocv.BitwiseAnd(gray.GetMat(), fg, &out)

	if k.params.DetectShadows {
		shadows := gocv.NewMat()
		defer shadows.Close()
		gocv.InRangeWithScalar(raw, gocv.NewScalar(Shadow, 0, 0, 0), gocv.NewScalar(Shadow, 0, 0, 0), &shadows)

		fill := gocv.NewMatWithSizeFromScalar(gocv.NewScalar(Shadow, 0, 0, 0), k.height, k.width, gocv.MatTypeCV8UC1)
		defer fill.Close()
		if err := fill.CopyToWithMask(&out, shadows); err != nil {
			out.Close()
			return nil, fmt.Errorf("failed to mark shadows: %w", err)
		}
	}

	return k.alloc.Adopt(out, "foreground_intensity")
}

// Close releases the native model. Further Apply calls fail.
func (k *KNN) Close() error {
	if k.closed {
		return nil
	}
	k.closed = true
	return k.model.Close()
}
