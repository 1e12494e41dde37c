package safe

import "gocv.io/x/gocv"

// Allocator creates Mats. memory.Manager implements it with accounting;
// Untracked allocates without it.
type Allocator interface {
	GetMat(rows, cols int, matType gocv.MatType, fill gocv.Scalar, tag string) (*Mat, error)
	FromBytes(rows, cols int, matType gocv.MatType, data []byte, tag string) (*Mat, error)
	Adopt(mat gocv.Mat, tag string) (*Mat, error)
}

type Untracked struct{}

func (Untracked) GetMat(rows, cols int, matType gocv.MatType, fill gocv.Scalar, tag string) (*Mat, error) {
	return NewMatFilledWithTracker(rows, cols, matType, fill, nil, tag)
}

func (Untracked) FromBytes(rows, cols int, matType gocv.MatType, data []byte, tag string) (*Mat, error) {
	return NewMatFromBytes(rows, cols, matType, data, nil, tag)
}

func (Untracked) Adopt(mat gocv.Mat, tag string) (*Mat, error) {
	return Wrap(mat, nil, tag)
}

// OrUntracked returns alloc, or Untracked when alloc is nil.
func OrUntracked(alloc Allocator) Allocator {
	if alloc == nil {
		return Untracked{}
	}
	return alloc
}
