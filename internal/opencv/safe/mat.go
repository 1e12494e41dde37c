package safe

import (
	"fmt"
	"runtime"
	"sync"
	"sync/atomic"

	"gocv.io/x/gocv"
)

// MemoryTracker receives allocation events for tracked Mats.
type MemoryTracker interface {
	TrackAllocation(id uint64, size int64, tag string)
	TrackDeallocation(id uint64, tag string)
}

// Mat owns a gocv.Mat and guarantees it is closed exactly once, either by
// Close or by the finalizer.
type Mat struct {
	mat        gocv.Mat
	isValid    int32
	mu         sync.RWMutex
	id         uint64
	memTracker MemoryTracker
	tag        string
}

var nextMatID uint64

// NewMat allocates a zero-filled Mat.
func NewMat(rows, cols int, matType gocv.MatType) (*Mat, error) {
	return NewMatFilledWithTracker(rows, cols, matType, gocv.NewScalar(0, 0, 0, 0), nil, "")
}

func NewMatFilledWithTracker(rows, cols int, matType gocv.MatType, fill gocv.Scalar, memTracker MemoryTracker, tag string) (*Mat, error) {
	if err := validateDimensions(rows, cols); err != nil {
		return nil, err
	}

	mat := gocv.NewMatWithSizeFromScalar(fill, rows, cols, matType)
	if mat.Empty() {
		mat.Close()
		return nil, fmt.Errorf("failed to create Mat with size %dx%d", cols, rows)
	}

	return adopt(mat, memTracker, tag), nil
}

// NewMatFromBytes copies data into a new Mat of the given geometry.
func NewMatFromBytes(rows, cols int, matType gocv.MatType, data []byte, memTracker MemoryTracker, tag string) (*Mat, error) {
	if err := validateDimensions(rows, cols); err != nil {
		return nil, err
	}

	if want := rows * cols * getMatTypeSize(matType); len(data) != want {
		return nil, fmt.Errorf("buffer has %d bytes, %dx%d Mat needs %d", len(data), cols, rows, want)
	}

	mat, err := gocv.NewMatFromBytes(rows, cols, matType, data)
	if err != nil {
		return nil, fmt.Errorf("failed to create Mat from bytes: %w", err)
	}

	// NewMatFromBytes shares the Go slice; clone so the Mat owns its pixels.
	owned := mat.Clone()
	mat.Close()
	if owned.Empty() {
		owned.Close()
		return nil, fmt.Errorf("failed to copy %dx%d Mat", cols, rows)
	}

	return adopt(owned, memTracker, tag), nil
}

// Wrap takes ownership of mat. The caller must not close mat afterwards.
func Wrap(mat gocv.Mat, memTracker MemoryTracker, tag string) (*Mat, error) {
	if err := validateSourceMat(mat); err != nil {
		mat.Close()
		return nil, err
	}
	return adopt(mat, memTracker, tag), nil
}

func adopt(mat gocv.Mat, memTracker MemoryTracker, tag string) *Mat {
	safeMat := &Mat{
		mat:        mat,
		isValid:    1,
		id:         atomic.AddUint64(&nextMatID, 1),
		memTracker: memTracker,
		tag:        tag,
	}

	if memTracker != nil {
		size := int64(mat.Rows() * mat.Cols() * getMatTypeSize(mat.Type()))
		memTracker.TrackAllocation(safeMat.id, size, tag)
	}

	runtime.SetFinalizer(safeMat, (*Mat).finalize)
	return safeMat
}

func (sm *Mat) IsValid() bool {
	return atomic.LoadInt32(&sm.isValid) == 1
}

func (sm *Mat) Empty() bool {
	sm.mu.RLock()
	defer sm.mu.RUnlock()

	if !sm.IsValid() {
		return true
	}
	return sm.mat.Empty()
}

func (sm *Mat) Rows() int {
	sm.mu.RLock()
	defer sm.mu.RUnlock()

	if !sm.IsValid() {
		return 0
	}
	return sm.mat.Rows()
}

func (sm *Mat) Cols() int {
	sm.mu.RLock()
	defer sm.mu.RUnlock()

	if !sm.IsValid() {
		return 0
	}
	return sm.mat.Cols()
}

func (sm *Mat) Channels() int {
	sm.mu.RLock()
	defer sm.mu.RUnlock()

	if !sm.IsValid() {
		return 0
	}
	return sm.mat.Channels()
}

func (sm *Mat) Type() gocv.MatType {
	sm.mu.RLock()
	defer sm.mu.RUnlock()

	if !sm.IsValid() {
		return gocv.MatTypeCV8UC1
	}
	return sm.mat.Type()
}

func (sm *Mat) Clone() (*Mat, error) {
	sm.mu.RLock()
	defer sm.mu.RUnlock()

	if !sm.IsValid() {
		return nil, fmt.Errorf("cannot clone invalid Mat")
	}

	if sm.mat.Empty() {
		return nil, fmt.Errorf("cannot clone empty Mat")
	}

	return adopt(sm.mat.Clone(), sm.memTracker, sm.tag+"_clone"), nil
}

// Bytes returns a copy of the pixel data in row-major, channel-interleaved order.
func (sm *Mat) Bytes() []byte {
	sm.mu.RLock()
	defer sm.mu.RUnlock()

	if !sm.IsValid() {
		return nil
	}
	return sm.mat.ToBytes()
}

// GetMat exposes the underlying Mat for gocv calls. It stays owned by sm.
func (sm *Mat) GetMat() gocv.Mat {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	return sm.mat
}

func (sm *Mat) ID() uint64 {
	return sm.id
}

func (sm *Mat) Tag() string {
	return sm.tag
}

func (sm *Mat) Close() {
	if sm == nil || !atomic.CompareAndSwapInt32(&sm.isValid, 1, 0) {
		return
	}

	sm.mu.Lock()
	defer sm.mu.Unlock()

	if sm.memTracker != nil {
		sm.memTracker.TrackDeallocation(sm.id, sm.tag)
	}

	sm.mat.Close()

	runtime.SetFinalizer(sm, nil)
	sm.mat = gocv.Mat{}
	sm.memTracker = nil
}

func (sm *Mat) finalize() {
	if atomic.LoadInt32(&sm.isValid) == 1 {
		sm.Close()
	}
}

func validateDimensions(rows, cols int) error {
	if rows <= 0 || cols <= 0 {
		return fmt.Errorf("invalid dimensions: %dx%d", cols, rows)
	}

	if rows > 32768 || cols > 32768 {
		return fmt.Errorf("dimensions %dx%d exceed maximum size", cols, rows)
	}

	return nil
}

func validateSourceMat(srcMat gocv.Mat) error {
	if srcMat.Empty() {
		return fmt.Errorf("source Mat is empty")
	}

	if srcMat.Rows() <= 0 || srcMat.Cols() <= 0 {
		return fmt.Errorf("source Mat has invalid dimensions: %dx%d", srcMat.Cols(), srcMat.Rows())
	}

	return nil
}

func ValidateMatForOperation(mat *Mat, operation string) error {
	if mat == nil {
		return fmt.Errorf("Mat is nil for operation: %s", operation)
	}

	if !mat.IsValid() {
		return fmt.Errorf("Mat is invalid for operation: %s", operation)
	}

	if mat.Empty() {
		return fmt.Errorf("Mat is empty for operation: %s", operation)
	}

	if mat.Rows() <= 0 || mat.Cols() <= 0 {
		return fmt.Errorf("Mat has invalid dimensions %dx%d for operation: %s",
			mat.Cols(), mat.Rows(), operation)
	}

	return nil
}

// ValidateMask checks that mat is a single-channel 8-bit image.
func ValidateMask(mat *Mat, operation string) error {
	if err := ValidateMatForOperation(mat, operation); err != nil {
		return err
	}

	if mat.Type() != gocv.MatTypeCV8UC1 {
		return fmt.Errorf("%s requires a single-channel 8-bit mask, got %d channels", operation, mat.Channels())
	}

	return nil
}

func ValidateColorConversion(src *Mat, code gocv.ColorConversionCode) error {
	if err := ValidateMatForOperation(src, "CvtColor"); err != nil {
		return err
	}

	channels := src.Channels()

	switch code {
	case gocv.ColorBGRToGray, gocv.ColorRGBToBGR, gocv.ColorBGRToRGBA:
		if channels != 3 {
			return fmt.Errorf("conversion %d requires 3 channels, got %d", code, channels)
		}
	case gocv.ColorGrayToBGR:
		if channels != 1 {
			return fmt.Errorf("Gray to BGR conversion requires 1 channel, got %d", channels)
		}
	case gocv.ColorBGRAToBGR, gocv.ColorRGBAToBGR:
		if channels != 4 {
			return fmt.Errorf("conversion %d requires 4 channels, got %d", code, channels)
		}
	}

	return nil
}

func getMatTypeSize(matType gocv.MatType) int {
	switch matType {
	case gocv.MatTypeCV8UC1:
		return 1
	case gocv.MatTypeCV8UC3:
		return 3
	case gocv.MatTypeCV8UC4:
		return 4
	case gocv.MatTypeCV16SC1, gocv.MatTypeCV16UC1:
		return 2
	case gocv.MatTypeCV32FC1:
		return 4
	default:
		return 1
	}
}
