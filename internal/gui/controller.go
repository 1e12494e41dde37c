package gui

import (
	"context"
	"sync"
	"time"

	"postit-mirror/internal/gui/widgets"
	"postit-mirror/internal/logger"
	"postit-mirror/internal/pipeline"

	"fyne.io/fyne/v2"
)

const statusRefreshInterval = time.Second

// StatsSource is the live session as seen by the UI.
type StatsSource interface {
	Stats() pipeline.Snapshot
}

// OverlayTrigger starts an overlay run if none is active.
type OverlayTrigger interface {
	Trigger() bool
}

type Controller struct {
	view   *View
	logger logger.Logger

	mu      sync.RWMutex
	stats   StatsSource
	overlay OverlayTrigger

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewController(log logger.Logger) *Controller {
	return &Controller{
		logger: logger.OrNop(log),
	}
}

func (c *Controller) SetView(view *View) {
	c.view = view
}

func (c *Controller) Attach(stats StatsSource, overlay OverlayTrigger) {
	c.mu.Lock()
	c.stats = stats
	c.overlay = overlay
	c.mu.Unlock()
}

// TriggerOverlay runs on the UI goroutine from the button and keyboard.
func (c *Controller) TriggerOverlay() {
	c.mu.RLock()
	overlay := c.overlay
	c.mu.RUnlock()

	if overlay == nil {
		c.updateStatus("Overlay disabled")
		return
	}

	if overlay.Trigger() {
		c.logger.Info("GUIController", "overlay triggered manually", nil)
		c.updateStatus("Overlay playing")
	} else {
		c.updateStatus("Overlay already playing")
	}
}

// Start refreshes the counters once per second until Shutdown.
func (c *Controller) Start(ctx context.Context) {
	ctx, c.cancel = context.WithCancel(ctx)

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()

		ticker := time.NewTicker(statusRefreshInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				c.refresh()
			}
		}
	}()
}

func (c *Controller) refresh() {
	c.mu.RLock()
	stats := c.stats
	c.mu.RUnlock()

	if stats == nil {
		return
	}

	snap := stats.Stats()
	counters := widgets.FrameCounters{
		Received:      snap.Received,
		Rendered:      snap.Rendered,
		Suppressed:    snap.Suppressed,
		InboxDrops:    snap.InboxDrops,
		Errors:        snap.Errors,
		OverlayRuns:   snap.OverlayRuns,
		LatencyMeanMS: snap.LatencyMeanMS,
	}

	fyne.Do(func() {
		c.view.SetCounters(counters)
	})
}

func (c *Controller) updateStatus(status string) {
	if c.view != nil {
		c.view.SetStatus(status)
	}
}

func (c *Controller) Shutdown() {
	if c.cancel != nil {
		c.cancel()
	}
	c.wg.Wait()
}
