package widgets

import (
	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/widget"
)

// Setting is one read-only row of the settings panel.
type Setting struct {
	Name  string
	Value string
}

type SettingsPanel struct {
	container *fyne.Container
	rows      *fyne.Container
}

func NewSettingsPanel() *SettingsPanel {
	sp := &SettingsPanel{
		rows: container.NewGridWithColumns(2),
	}
	sp.container = container.NewVBox(
		widget.NewRichTextFromMarkdown("**Session**"),
		sp.rows,
	)
	return sp
}

func (sp *SettingsPanel) GetContainer() *fyne.Container {
	return sp.container
}

func (sp *SettingsPanel) SetSettings(settings []Setting) {
	objects := make([]fyne.CanvasObject, 0, 2*len(settings))
	for _, s := range settings {
		name := widget.NewLabel(s.Name + ":")
		name.TextStyle = fyne.TextStyle{Bold: true}
		objects = append(objects, name, widget.NewLabel(s.Value))
	}
	sp.rows.Objects = objects
	sp.rows.Refresh()
}
