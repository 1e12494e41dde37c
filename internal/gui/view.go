package gui

import (
	"postit-mirror/internal/gui/widgets"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/dialog"
)

type View struct {
	window     fyne.Window
	controller *Controller

	mirror        *widgets.MirrorDisplay
	statusBar     *widgets.StatusBar
	settingsPanel *widgets.SettingsPanel
	mainContainer *fyne.Container
	chromeVisible bool
}

func NewView(window fyne.Window, width, height int) *View {
	view := &View{
		window:        window,
		chromeVisible: true,
	}

	view.setupComponents(width, height)
	view.setupLayout()

	return view
}

func (v *View) SetController(controller *Controller) {
	v.controller = controller
	v.setupEventHandlers()
}

func (v *View) setupComponents(width, height int) {
	v.mirror = widgets.NewMirrorDisplay(width, height)
	v.statusBar = widgets.NewStatusBar()
	v.settingsPanel = widgets.NewSettingsPanel()
}

func (v *View) setupLayout() {
	v.mainContainer = container.NewBorder(
		nil,
		v.statusBar.GetContainer(),
		nil,
		v.settingsPanel.GetContainer(),
		v.mirror.GetContainer(),
	)
}

func (v *View) setupEventHandlers() {
	if v.controller == nil {
		return
	}

	v.statusBar.SetOverlayHandler(v.controller.TriggerOverlay)

	v.window.Canvas().SetOnTypedKey(func(ev *fyne.KeyEvent) {
		switch ev.Name {
		case fyne.KeyTab:
			v.SetChromeVisible(!v.chromeVisible)
		case fyne.KeySpace:
			v.controller.TriggerOverlay()
		case fyne.KeyEscape:
			v.window.SetFullScreen(false)
		}
	})
}

func (v *View) Mirror() *widgets.MirrorDisplay {
	return v.mirror
}

// SetChromeVisible shows or hides everything except the mirror image.
func (v *View) SetChromeVisible(visible bool) {
	v.chromeVisible = visible
	if visible {
		v.statusBar.GetContainer().Show()
		v.settingsPanel.GetContainer().Show()
	} else {
		v.statusBar.GetContainer().Hide()
		v.settingsPanel.GetContainer().Hide()
	}
	v.mainContainer.Refresh()
}

func (v *View) SetStream(text string) {
	v.statusBar.SetStream(text)
}

func (v *View) SetStatus(status string) {
	v.statusBar.SetStatus(status)
}

func (v *View) SetCounters(c widgets.FrameCounters) {
	v.statusBar.SetCounters(c)
}

func (v *View) SetSettings(settings []widgets.Setting) {
	v.settingsPanel.SetSettings(settings)
}

func (v *View) ShowError(title string, err error) {
	dialog.ShowError(err, v.window)
}

func (v *View) Show(fullscreen bool) {
	v.window.SetContent(v.mainContainer)
	if fullscreen {
		v.SetChromeVisible(false)
		v.window.SetFullScreen(true)
	}
	v.window.Show()
}
