package conversion

import (
	"fmt"

	"postit-mirror/internal/frame"
	"postit-mirror/internal/opencv/safe"

	"gocv.io/x/gocv"
)

// Convert applies a color conversion into a newly allocated Mat.
func Convert(alloc safe.Allocator, src *safe.Mat, code gocv.ColorConversionCode, tag string) (*safe.Mat, error) {
	if err := safe.ValidateColorConversion(src, code); err != nil {
		return nil, fmt.Errorf("color conversion validation failed: %w", err)
	}

	dst := gocv.NewMat()
	gocv.CvtColor(src.GetMat(), &dst, code)

	out, err := safe.OrUntracked(alloc).Adopt(dst, tag)
	if err != nil {
		return nil, fmt.Errorf("color conversion produced no output: %w", err)
	}
	return out, nil
}

// ColorFrameToBGR copies a packed sensor frame into a 3-channel BGR Mat,
// dropping the padding channel and swapping channel order as needed.
func ColorFrameToBGR(alloc safe.Allocator, f *frame.Color) (*safe.Mat, error) {
	alloc = safe.OrUntracked(alloc)

	var (
		matType gocv.MatType
		code    gocv.ColorConversionCode
		convert = true
	)

	switch f.Layout {
	case frame.LayoutBGR:
		matType, convert = gocv.MatTypeCV8UC3, false
	case frame.LayoutRGB:
		matType, code = gocv.MatTypeCV8UC3, gocv.ColorRGBToBGR
	case frame.LayoutBGRA:
		matType, code = gocv.MatTypeCV8UC4, gocv.ColorBGRAToBGR
	case frame.LayoutRGBA:
		matType, code = gocv.MatTypeCV8UC4, gocv.ColorRGBAToBGR
	default:
		return nil, fmt.Errorf("unsupported color layout %q", f.Layout)
	}

	raw, err := alloc.FromBytes(f.Height, f.Width, matType, f.Pix, "color_frame")
	if err != nil {
		return nil, fmt.Errorf("failed to load color frame: %w", err)
	}

	if !convert {
		return raw, nil
	}
	defer raw.Close()

	return Convert(alloc, raw, code, "color_frame_bgr")
}

func ConvertToGrayscale(alloc safe.Allocator, src *safe.Mat) (*safe.Mat, error) {
	if err := safe.ValidateMatForOperation(src, "ConvertToGrayscale"); err != nil {
		return nil, err
	}

	switch src.Channels() {
	case 1:
		return src.Clone()
	case 3:
		return Convert(alloc, src, gocv.ColorBGRToGray, "gray")
	case 4:
		bgr, err := Convert(alloc, src, gocv.ColorBGRAToBGR, "gray_bgr")
		if err != nil {
			return nil, fmt.Errorf("BGRA to BGR conversion failed: %w", err)
		}
		defer bgr.Close()
		return Convert(alloc, bgr, gocv.ColorBGRToGray, "gray")
	default:
		return nil, fmt.Errorf("unsupported channel count for grayscale conversion: %d", src.Channels())
	}
}
