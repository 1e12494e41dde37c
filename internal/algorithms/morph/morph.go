// Package morph removes speckle and fills gaps in binary masks.
//
// All operations replicate edge pixels outward, so the first and last
// size/2 rows and columns see the same neighbourhood shape as the interior.
package morph

import (
	"errors"
	"fmt"
	"image"
	"sync"

	"postit-mirror/internal/opencv/safe"

	"gocv.io/x/gocv"
)

const MaxErodeIterations = 10

var ErrInvalidKernel = errors.New("invalid structuring element")

// Kernel is an immutable square structuring element of uniform weight.
// One Kernel may be shared by every operation of a session.
type Kernel struct {
	mat  gocv.Mat
	size int
	once sync.Once
}

func NewKernel(size int) (*Kernel, error) {
	if size < 1 || size%2 == 0 {
		return nil, fmt.Errorf("%w: size must be odd and positive, got %d", ErrInvalidKernel, size)
	}

	return &Kernel{
		mat:  gocv.GetStructuringElement(gocv.MorphRect, image.Point{X: size, Y: size}),
		size: size,
	}, nil
}

func (k *Kernel) Size() int {
	return k.size
}

func (k *Kernel) Close() {
	k.once.Do(func() {
		k.mat.Close()
	})
}

// Closing dilates then erodes mask with k. mask is not modified.
func Closing(alloc safe.Allocator, mask *safe.Mat, k *Kernel) (*safe.Mat, error) {
	return apply(alloc, mask, k, gocv.MorphClose, 1, "closed_mask")
}

// Erode shrinks bright regions iterations times. Zero iterations returns a copy.
func Erode(alloc safe.Allocator, mask *safe.Mat, k *Kernel, iterations int) (*safe.Mat, error) {
	if iterations < 0 || iterations > MaxErodeIterations {
		return nil, fmt.Errorf("erode iterations must be between 0 and %d, got %d", MaxErodeIterations, iterations)
	}
	if iterations == 0 {
		if err := safe.ValidateMask(mask, "Erode"); err != nil {
			return nil, err
		}
		return mask.Clone()
	}
	return apply(alloc, mask, k, gocv.MorphErode, iterations, "eroded_mask")
}

// Dilate grows bright regions once.
func Dilate(alloc safe.Allocator, mask *safe.Mat, k *Kernel) (*safe.Mat, error) {
	return apply(alloc, mask, k, gocv.MorphDilate, 1, "dilated_mask")
}

func apply(alloc safe.Allocator, mask *safe.Mat, k *Kernel, op gocv.MorphType, iterations int, tag string) (*safe.Mat, error) {
	if k == nil {
		return nil, fmt.Errorf("%w: nil kernel", ErrInvalidKernel)
	}
	if err := safe.ValidateMask(mask, tag); err != nil {
		return nil, err
	}

	dst := gocv.NewMat()
	gocv.MorphologyExWithParams(mask.GetMat(), &dst, op, k.mat, iterations, gocv.BorderReplicate)

	out, err := safe.OrUntracked(alloc).Adopt(dst, tag)
	if err != nil {
		return nil, fmt.Errorf("morphology produced no output: %w", err)
	}
	return out, nil
}

type Params struct {
	KernelSize      int
	Close           bool
	ErodeIterations int
	// ErodeKernelSize overrides the shared kernel for erosion; 0 uses it.
	ErodeKernelSize int
}

func (p Params) Validate() error {
	if p.KernelSize < 1 || p.KernelSize%2 == 0 {
		return fmt.Errorf("%w: kernel size must be odd and positive, got %d", ErrInvalidKernel, p.KernelSize)
	}
	if p.ErodeKernelSize != 0 && (p.ErodeKernelSize < 1 || p.ErodeKernelSize%2 == 0) {
		return fmt.Errorf("%w: erode kernel size must be 0 or odd and positive, got %d", ErrInvalidKernel, p.ErodeKernelSize)
	}
	if p.ErodeIterations < 0 || p.ErodeIterations > MaxErodeIterations {
		return fmt.Errorf("erode iterations must be between 0 and %d, got %d", MaxErodeIterations, p.ErodeIterations)
	}
	return nil
}

// Cleanup is the morphology stage: optional erosion followed by optional closing.
type Cleanup struct {
	params      Params
	kernel      *Kernel
	erodeKernel *Kernel
	alloc       safe.Allocator
}

func NewCleanup(params Params, alloc safe.Allocator) (*Cleanup, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}

	kernel, err := NewKernel(params.KernelSize)
	if err != nil {
		return nil, err
	}

	erodeKernel := kernel
	if params.ErodeKernelSize != 0 && params.ErodeKernelSize != params.KernelSize {
		erodeKernel, err = NewKernel(params.ErodeKernelSize)
		if err != nil {
			kernel.Close()
			return nil, err
		}
	}

	return &Cleanup{
		params:      params,
		kernel:      kernel,
		erodeKernel: erodeKernel,
		alloc:       safe.OrUntracked(alloc),
	}, nil
}

func (c *Cleanup) Name() string {
	return "morphology"
}

func (c *Cleanup) Params() Params {
	return c.params
}

func (c *Cleanup) Process(input *safe.Mat) (*safe.Mat, error) {
	current, err := Erode(c.alloc, input, c.erodeKernel, c.params.ErodeIterations)
	if err != nil {
		return nil, err
	}

	if !c.params.Close {
		return current, nil
	}
	defer current.Close()

	return Closing(c.alloc, current, c.kernel)
}

func (c *Cleanup) Close() {
	if c.erodeKernel != c.kernel {
		c.erodeKernel.Close()
	}
	c.kernel.Close()
}
