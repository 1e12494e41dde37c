package gui

import (
	"image/color"
	"testing"

	"fyne.io/fyne/v2/theme"
	"github.com/stretchr/testify/assert"
)

func TestMirrorTheme(t *testing.T) {
	accent := color.RGBA{R: 255, G: 255, A: 255}
	th := NewMirrorTheme(accent)

	assert.Equal(t, color.Black, th.Color(theme.ColorNameBackground, theme.VariantLight))
	assert.Equal(t, accent, th.Color(theme.ColorNamePrimary, theme.VariantDark))
	assert.Equal(t, accent, th.Color(theme.ColorNameFocus, theme.VariantLight))
}

func TestMirrorThemeDefaultsAccent(t *testing.T) {
	th := NewMirrorTheme(nil)
	assert.Equal(t, color.RGBA{R: 255, G: 255, A: 255}, th.Color(theme.ColorNamePrimary, theme.VariantDark))
}
