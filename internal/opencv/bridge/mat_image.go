package bridge

import (
	"fmt"

	"postit-mirror/internal/opencv/safe"

	"gocv.io/x/gocv"
)

// ToRGBA converts a 1, 3 or 4 channel Mat into tightly packed RGBA bytes,
// the pixel format of the display buffer. It returns the bytes and the row
// stride.
func ToRGBA(mat *safe.Mat) ([]byte, int, error) {
	if err := safe.ValidateMatForOperation(mat, "ToRGBA"); err != nil {
		return nil, 0, err
	}

	var code gocv.ColorConversionCode
	switch mat.Channels() {
	case 1:
		code = gocv.ColorGrayToRGBA
	case 3:
		code = gocv.ColorBGRToRGBA
	case 4:
		code = gocv.ColorBGRAToRGBA
	default:
		return nil, 0, fmt.Errorf("unsupported number of channels: %d", mat.Channels())
	}

	rgba := gocv.NewMat()
	defer rgba.Close()

	gocv.CvtColor(mat.GetMat(), &rgba, code)
	if rgba.Empty() {
		return nil, 0, fmt.Errorf("RGBA conversion of %dx%d Mat produced no output", mat.Cols(), mat.Rows())
	}

	return rgba.ToBytes(), rgba.Cols() * 4, nil
}
