package app

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"runtime"
	"sync"
	"syscall"
	"time"

	"postit-mirror/internal/config"
	"postit-mirror/internal/display"
	"postit-mirror/internal/gui"
	"postit-mirror/internal/logger"
	"postit-mirror/internal/opencv/memory"
	"postit-mirror/internal/pipeline"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/app"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/dialog"
	"fyne.io/fyne/v2/widget"
)

const (
	AppName    = "Post-it Mirror"
	AppID      = "com.imageprocessing.postit-mirror"
	AppVersion = "1.0.0"
)

const componentShutdownTimeout = 10 * time.Second

type shutdownHandler interface {
	Shutdown()
}

type shutdownFunc func()

func (f shutdownFunc) Shutdown() { f() }

type Application struct {
	cfg           *config.Config
	fyneApp       fyne.App
	window        fyne.Window
	guiManager    *gui.Manager
	queue         *display.Queue
	sink          *display.MemorySink
	memoryManager *memory.Manager
	components    *components
	logger        logger.Logger
	shutdownables []shutdownHandler
	ctx           context.Context
	cancel        context.CancelFunc
	shutdown      chan struct{}
	done          chan struct{}
	shutdownOnce  sync.Once
	menuSetup     bool
}

// NewApplication builds the frame path for cfg. With Display.Headless set
// no window is created and frames land in an in-memory surface.
func NewApplication(cfg *config.Config, log logger.Logger) (*Application, error) {
	if cfg == nil {
		cfg = config.Default()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	log = logger.OrNop(log)

	format, err := cfg.Format()
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithCancel(context.Background())
	a := &Application{
		cfg:      cfg,
		logger:   log,
		ctx:      ctx,
		cancel:   cancel,
		shutdown: make(chan struct{}),
		done:     make(chan struct{}),
	}

	log.Info("Application", "starting application", map[string]interface{}{
		"version":  AppVersion,
		"stream":   format.String(),
		"source":   cfg.Stream.Source,
		"headless": cfg.Display.Headless,
	})

	a.memoryManager = memory.NewManager(log, int64(cfg.Memory.MaxMB)<<20, cfg.Memory.MonitorInterval.Duration())
	a.shutdownables = append(a.shutdownables, a.memoryManager)

	var (
		dispatcher display.Dispatcher
		sink       display.Sink
	)
	if cfg.Display.Headless {
		a.queue = display.NewQueue(display.DefaultQueueSize, log)
		a.sink = display.NewMemorySink(format.Width, format.Height)
		dispatcher, sink = a.queue, a.sink
		a.shutdownables = append(a.shutdownables, shutdownFunc(a.queue.Close))
	} else {
		app.SetMetadata(fyne.AppMetadata{
			ID:      AppID,
			Name:    AppName,
			Version: AppVersion,
			Build:   1,
		})

		a.fyneApp = app.NewWithID(AppID)
		if accent, _, err := cfg.MosaicColors(); err == nil {
			a.fyneApp.Settings().SetTheme(gui.NewMirrorTheme(accent))
		}
		a.window = a.fyneApp.NewWindow(cfg.Display.Title)
		a.window.Resize(windowSize(format.Width, format.Height))
		a.window.SetPadded(false)
		a.window.CenterOnScreen()
		a.window.SetMaster()

		a.guiManager = gui.NewManager(a.window, format.Width, format.Height, log)
		dispatcher, sink = a.guiManager.Dispatcher(), a.guiManager.Sink()
		a.shutdownables = append(a.shutdownables, a.guiManager)
	}

	a.components, err = buildComponents(cfg, a.memoryManager, dispatcher, sink, log)
	if err != nil {
		a.initiateShutdown()
		return nil, err
	}

	c := a.components
	a.shutdownables = append(a.shutdownables, shutdownFunc(func() {
		if err := c.session.Close(); err != nil {
			log.Error("Application", err, map[string]interface{}{"stage": "session_close"})
		}
	}))
	if c.overlay != nil {
		a.shutdownables = append(a.shutdownables, shutdownFunc(c.overlay.Stop))
	}
	a.shutdownables = append(a.shutdownables, shutdownFunc(func() {
		if err := c.source.Stop(); err != nil {
			log.Error("Application", err, map[string]interface{}{"stage": "source_stop"})
		}
	}))

	a.setupSignalHandling()
	log.Info("Application", "initialization complete", map[string]interface{}{
		"session_id": c.session.ID(),
	})
	return a, nil
}

// Stats reports the live session counters.
func (a *Application) Stats() pipeline.Snapshot {
	return a.components.session.Stats()
}

func (a *Application) setupMenu() {
	aboutAction := func() {
		fyne.Do(func() {
			a.showAbout()
		})
	}

	fileMenu := fyne.NewMenu("File",
		fyne.NewMenuItem("Play Overlay", func() {
			if a.components.overlay != nil {
				a.components.overlay.Trigger()
			}
		}),
	)
	helpMenu := fyne.NewMenu("Help",
		fyne.NewMenuItem("About", aboutAction),
	)

	a.window.SetMainMenu(fyne.NewMainMenu(fileMenu, helpMenu))
}

func (a *Application) showAbout() {
	metadata := a.fyneApp.Metadata()

	name := metadata.Name
	if name == "" {
		name = AppName
	}
	version := metadata.Version
	if version == "" {
		version = AppVersion
	}

	aboutContent := container.NewVBox(
		widget.NewLabel(name),
		widget.NewLabel(fmt.Sprintf("Version: %s", version)),
		widget.NewLabel(fmt.Sprintf("Stream: %s", a.components.format)),
		widget.NewLabel(""),
		widget.NewLabel("Runtime Info:"),
		widget.NewLabel(fmt.Sprintf("Go: %s", runtime.Version())),
		widget.NewLabel(fmt.Sprintf("Platform: %s/%s", runtime.GOOS, runtime.GOARCH)),
		widget.NewLabel("OpenCV: 4.11.0+"),
	)

	dialog.ShowCustom("About", "Close", aboutContent, a.window)
}

// windowSize leaves room for the status bar and settings panel.
func windowSize(width, height int) fyne.Size {
	return fyne.NewSize(float32(width)+240, float32(height)+80)
}

func (a *Application) setupSignalHandling() {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		defer signal.Stop(sigChan)
		select {
		case sig := <-sigChan:
			a.logger.Info("Application", "shutdown signal received", map[string]interface{}{
				"signal": sig.String(),
			})
			a.initiateShutdown()
		case <-a.ctx.Done():
			return
		}
	}()
}

func (a *Application) start() error {
	c := a.components
	if err := c.source.Start(a.ctx, c.session); err != nil {
		return fmt.Errorf("failed to start source: %w", err)
	}
	if c.overlay != nil {
		c.overlay.Start(a.ctx)
	}
	return nil
}

// Run blocks until the application shuts down.
func (a *Application) Run() error {
	if a.fyneApp == nil {
		return a.runHeadless()
	}

	if !a.menuSetup {
		a.setupMenu()
		a.menuSetup = true
	}

	a.window.SetCloseIntercept(func() {
		a.logger.Info("Application", "shutdown requested via window close", nil)
		a.initiateShutdown()
		a.window.Close()
	})

	c := a.components
	var trigger gui.OverlayTrigger
	if c.overlay != nil {
		trigger = c.overlay
	}
	a.guiManager.Attach(c.format.String(), c.settings, c.session, trigger)

	fyne.Do(func() {
		a.guiManager.Show(a.cfg.Display.Fullscreen)
	})

	if err := a.start(); err != nil {
		a.logger.Error("Application", err, nil)
		a.guiManager.ShowError("Stream unavailable", err)
	}

	go func() {
		<-a.shutdown
		fyne.Do(func() {
			a.fyneApp.Quit()
		})
	}()

	a.fyneApp.Run()
	a.initiateShutdown()
	<-a.done
	return nil
}

func (a *Application) runHeadless() error {
	if err := a.start(); err != nil {
		a.initiateShutdown()
		<-a.done
		return err
	}
	a.logger.Info("Application", "running headless", nil)
	<-a.done
	return nil
}

func (a *Application) initiateShutdown() {
	a.shutdownOnce.Do(func() {
		close(a.shutdown)
		defer close(a.done)

		a.logger.Info("Application", "shutdown sequence initiated", map[string]interface{}{
			"components": len(a.shutdownables),
		})

		a.cancel()

		for i := len(a.shutdownables) - 1; i >= 0; i-- {
			component := a.shutdownables[i]

			done := make(chan struct{})
			go func() {
				defer close(done)
				component.Shutdown()
			}()

			select {
			case <-done:
			case <-time.After(componentShutdownTimeout):
				a.logger.Warning("Application", "component shutdown timeout", map[string]interface{}{
					"component_index": i,
				})
			}
		}

		if a.components != nil {
			fields := a.components.session.Stats().Fields()
			if ov := a.components.overlay; ov != nil {
				fields["overlay_draws"] = ov.Draws()
				fields["overlay_skipped"] = ov.Skipped()
				fields["overlay_ignored_triggers"] = ov.IgnoredTriggers()
			}
			a.logger.Info("Application", "final statistics", fields)
		}
		a.logger.Info("Application", "shutdown sequence completed", nil)
	})
}

// Shutdown stops every component, waiting at most until ctx is done.
func (a *Application) Shutdown(ctx context.Context) error {
	go a.initiateShutdown()

	select {
	case <-a.done:
		return nil
	case <-ctx.Done():
		return errors.Join(errors.New("shutdown incomplete"), ctx.Err())
	}
}
