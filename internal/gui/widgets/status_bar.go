package widgets

import (
	"fmt"
	"image/color"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/canvas"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/widget"
)

// FrameCounters is what the status bar shows about the live session.
type FrameCounters struct {
	Received      uint64
	Rendered      uint64
	Suppressed    uint64
	InboxDrops    uint64
	Errors        uint64
	OverlayRuns   uint64
	LatencyMeanMS float64
}

func FormatCounters(c FrameCounters) string {
	return fmt.Sprintf("Frames: %d in | %d shown | %d hidden | %d dropped | %d errors | Overlays: %d | %.1f ms",
		c.Received, c.Rendered, c.Suppressed, c.InboxDrops, c.Errors, c.OverlayRuns, c.LatencyMeanMS)
}

type StatusBar struct {
	container     *fyne.Container
	overlayButton *widget.Button
	streamLabel   *widget.Label
	statusLabel   *widget.Label
	countersLabel *widget.Label

	overlayHandler func()
}

func NewStatusBar() *StatusBar {
	bar := &StatusBar{}
	bar.createComponents()
	bar.buildLayout()
	return bar
}

func (sb *StatusBar) createComponents() {
	sb.overlayButton = widget.NewButton("Play Overlay", sb.onOverlayClicked)
	sb.overlayButton.Importance = widget.HighImportance

	sb.streamLabel = widget.NewLabel("No stream")
	sb.statusLabel = widget.NewLabel("Starting")
	sb.countersLabel = widget.NewLabel(FormatCounters(FrameCounters{}))
}

func (sb *StatusBar) buildLayout() {
	background := canvas.NewRectangle(color.RGBA{R: 250, G: 249, B: 245, A: 255})
	border := canvas.NewRectangle(color.Transparent)
	border.StrokeWidth = 1.0
	border.StrokeColor = color.RGBA{R: 231, G: 231, B: 231, A: 255}

	content := container.NewBorder(
		nil, nil,
		container.NewHBox(sb.overlayButton, widget.NewSeparator(), sb.streamLabel),
		sb.countersLabel,
		container.NewHBox(widget.NewSeparator(), sb.statusLabel),
	)

	sb.container = container.NewStack(
		border,
		container.NewPadded(
			container.NewStack(background, container.NewPadded(content)),
		),
	)
}

func (sb *StatusBar) onOverlayClicked() {
	if sb.overlayHandler != nil {
		sb.overlayHandler()
	}
}

func (sb *StatusBar) GetContainer() *fyne.Container {
	return sb.container
}

func (sb *StatusBar) SetOverlayHandler(handler func()) {
	sb.overlayHandler = handler
	if handler == nil {
		sb.overlayButton.Disable()
	} else {
		sb.overlayButton.Enable()
	}
}

func (sb *StatusBar) SetStream(text string) {
	sb.streamLabel.SetText(text)
}

func (sb *StatusBar) SetStatus(status string) {
	sb.statusLabel.SetText(status)
}

func (sb *StatusBar) SetCounters(c FrameCounters) {
	sb.countersLabel.SetText(FormatCounters(c))
}
