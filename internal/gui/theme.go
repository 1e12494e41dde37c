package gui

import (
	"image/color"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/theme"
)

// MirrorTheme keeps the chrome dark around the mirror, with the mosaic
// accent as the primary color.
type MirrorTheme struct {
	accent color.Color
}

func NewMirrorTheme(accent color.Color) fyne.Theme {
	if accent == nil {
		accent = color.RGBA{R: 255, G: 255, A: 255}
	}
	return &MirrorTheme{accent: accent}
}

func (t *MirrorTheme) Color(name fyne.ThemeColorName, variant fyne.ThemeVariant) color.Color {
	switch name {
	case theme.ColorNameBackground:
		return color.Black
	case theme.ColorNameButton:
		return color.RGBA{R: 40, G: 40, B: 40, A: 255}
	case theme.ColorNameForeground:
		return color.RGBA{R: 230, G: 230, B: 230, A: 255}
	case theme.ColorNamePrimary, theme.ColorNameFocus:
		return t.accent
	case theme.ColorNameHover:
		return color.RGBA{R: 255, G: 255, B: 255, A: 25}
	default:
		return theme.DefaultTheme().Color(name, theme.VariantDark)
	}
}

func (t *MirrorTheme) Font(style fyne.TextStyle) fyne.Resource {
	return theme.DefaultTheme().Font(style)
}

func (t *MirrorTheme) Icon(name fyne.ThemeIconName) fyne.Resource {
	return theme.DefaultTheme().Icon(name)
}

func (t *MirrorTheme) Size(name fyne.ThemeSizeName) float32 {
	return theme.DefaultTheme().Size(name)
}
