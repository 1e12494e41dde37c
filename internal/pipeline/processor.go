package pipeline

import (
	"errors"
	"fmt"

	"postit-mirror/internal/algorithms"
	"postit-mirror/internal/algorithms/depthmask"
	"postit-mirror/internal/opencv/bridge"
	"postit-mirror/internal/opencv/conversion"
	"postit-mirror/internal/opencv/safe"
)

// processor runs one frame from raw samples to display-ready RGBA bytes.
// It is only used from the session's processing goroutine.
type processor struct {
	depth *depthmask.Extractor
	alloc safe.Allocator
	chain algorithms.Chain
}

func (p *processor) process(it *item) ([]byte, int, error) {
	input, err := p.load(it)
	if err != nil {
		return nil, 0, err
	}
	defer input.Close()

	result, err := p.chain.Process(input)
	if err != nil {
		return nil, 0, fmt.Errorf("frame processing failed: %w", err)
	}
	if result == nil {
		return nil, 0, errors.New("frame processing returned nil result")
	}
	defer result.Close()

	buf, stride, err := bridge.ToRGBA(result)
	if err != nil {
		return nil, 0, fmt.Errorf("display conversion failed: %w", err)
	}
	return buf, stride, nil
}

func (p *processor) load(it *item) (*safe.Mat, error) {
	switch {
	case it.depth != nil && p.depth != nil:
		return p.depth.Extract(it.depth)
	case it.color != nil && p.depth == nil:
		return conversion.ColorFrameToBGR(p.alloc, it.color)
	default:
		return nil, ErrWrongStream
	}
}
