package algorithms

import (
	"fmt"

	"postit-mirror/internal/opencv/safe"
)

// Stage is one per-frame image transform. Process never mutates input and
// returns a new Mat owned by the caller.
type Stage interface {
	Name() string
	Process(input *safe.Mat) (*safe.Mat, error)
}

// Chain runs stages in order. Intermediate results are closed; the input is
// left to the caller.
type Chain []Stage

func (c Chain) Name() string {
	return "chain"
}

func (c Chain) Process(input *safe.Mat) (*safe.Mat, error) {
	if err := safe.ValidateMatForOperation(input, "Chain"); err != nil {
		return nil, err
	}

	if len(c) == 0 {
		return input.Clone()
	}

	current := input
	for i, stage := range c {
		next, err := stage.Process(current)
		if current != input {
			current.Close()
		}
		if err != nil {
			return nil, fmt.Errorf("stage %d (%s) failed: %w", i, stage.Name(), err)
		}
		if next == nil {
			return nil, fmt.Errorf("stage %d (%s) returned nil result", i, stage.Name())
		}
		current = next
	}

	return current, nil
}

// Names lists the stage names for logging.
func (c Chain) Names() []string {
	names := make([]string, len(c))
	for i, stage := range c {
		names[i] = stage.Name()
	}
	return names
}
