package widgets

import (
	"image"
	"sync"

	"postit-mirror/internal/display"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/canvas"
)

// MirrorDisplay is the on-screen surface. It implements display.Sink and
// must only be written from the fyne UI goroutine.
type MirrorDisplay struct {
	mu     sync.Mutex
	frame  *image.RGBA
	image  *canvas.Image
	writes uint64
}

func NewMirrorDisplay(width, height int) *MirrorDisplay {
	md := &MirrorDisplay{
		frame: image.NewRGBA(image.Rect(0, 0, width, height)),
	}

	for i := 3; i < len(md.frame.Pix); i += 4 {
		md.frame.Pix[i] = 0xff
	}

	md.image = canvas.NewImageFromImage(md.frame)
	md.image.FillMode = canvas.ImageFillContain
	md.image.ScaleMode = canvas.ImageScalePixels
	md.image.SetMinSize(fyne.NewSize(float32(width), float32(height)))
	return md
}

func (md *MirrorDisplay) GetContainer() fyne.CanvasObject {
	return md.image
}

func (md *MirrorDisplay) Size() (int, int) {
	b := md.frame.Bounds()
	return b.Dx(), b.Dy()
}

func (md *MirrorDisplay) WritePixels(buf []byte, stride int) error {
	w, h := md.Size()
	if err := display.CheckBuffer(buf, stride, w, h); err != nil {
		return err
	}

	md.mu.Lock()
	copy(md.frame.Pix, buf)
	md.writes++
	md.mu.Unlock()

	md.image.Refresh()
	return nil
}

func (md *MirrorDisplay) Writes() uint64 {
	md.mu.Lock()
	defer md.mu.Unlock()
	return md.writes
}
