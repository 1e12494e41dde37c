// Package gui hosts the mirror surface in a fyne window.
package gui

import (
	"context"

	"postit-mirror/internal/display"
	"postit-mirror/internal/gui/widgets"
	"postit-mirror/internal/logger"

	"fyne.io/fyne/v2"
)

type Manager struct {
	window     fyne.Window
	controller *Controller
	view       *View
	logger     logger.Logger
	isShutdown bool
}

func NewManager(window fyne.Window, width, height int, log logger.Logger) *Manager {
	manager := &Manager{
		window: window,
		logger: logger.OrNop(log),
	}

	manager.view = NewView(window, width, height)
	manager.controller = NewController(manager.logger)
	manager.view.SetController(manager.controller)
	manager.controller.SetView(manager.view)

	manager.logger.Info("GUIManager", "initialized", map[string]interface{}{
		"window_title": window.Title(),
		"surface":      [2]int{width, height},
	})

	return manager
}

// Sink is the mirror surface. Writes must go through Dispatcher.
func (m *Manager) Sink() display.Sink {
	return m.view.Mirror()
}

// Dispatcher runs work on the fyne UI goroutine.
func (m *Manager) Dispatcher() display.Dispatcher {
	return display.DispatcherFunc(fyne.Do)
}

// Attach connects the running session and overlay to the status bar.
func (m *Manager) Attach(stream string, settings []widgets.Setting, stats StatsSource, overlay OverlayTrigger) {
	m.controller.Attach(stats, overlay)
	fyne.Do(func() {
		m.view.SetStream(stream)
		m.view.SetSettings(settings)
		m.view.SetStatus("Running")
	})
	m.controller.Start(context.Background())
}

func (m *Manager) Show(fullscreen bool) {
	m.view.Show(fullscreen)
	m.logger.Info("GUIManager", "GUI displayed", map[string]interface{}{
		"fullscreen": fullscreen,
	})
}

func (m *Manager) ShowError(title string, err error) {
	fyne.Do(func() {
		m.view.ShowError(title, err)
	})
}

func (m *Manager) Shutdown() {
	if m.isShutdown {
		return
	}

	m.isShutdown = true
	m.logger.Info("GUIManager", "shutdown initiated", nil)

	m.controller.Shutdown()

	m.logger.Info("GUIManager", "shutdown completed", nil)
}
