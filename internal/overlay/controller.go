package overlay

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"postit-mirror/internal/display"
	"postit-mirror/internal/logger"

	"github.com/google/uuid"
)

// Controller owns the Idle -> Running -> Idle cycle. While Running it sets
// the suppression flag that the frame pipeline reads before every render.
type Controller struct {
	cfg        Config
	renderer   Renderer
	dispatcher display.Dispatcher
	sink       display.Sink
	logger     logger.Logger

	running    atomic.Bool
	suppressed atomic.Bool

	runs    atomic.Uint64
	ignored atomic.Uint64
	draws   atomic.Uint64
	skipped atomic.Uint64

	mu       sync.Mutex
	closed   bool
	cancel   context.CancelFunc
	runWg    sync.WaitGroup
	tickerWg sync.WaitGroup
}

func NewController(cfg Config, renderer Renderer, dispatcher display.Dispatcher, sink display.Sink, log logger.Logger) (*Controller, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if renderer == nil || dispatcher == nil {
		return nil, fmt.Errorf("%w: renderer and dispatcher are required", ErrInvalidConfig)
	}

	return &Controller{
		cfg:        cfg,
		renderer:   renderer,
		dispatcher: dispatcher,
		sink:       sink,
		logger:     logger.OrNop(log),
	}, nil
}

func (c *Controller) Suppressed() bool {
	return c.suppressed.Load()
}

func (c *Controller) Running() bool {
	return c.running.Load()
}

func (c *Controller) Runs() uint64 {
	return c.runs.Load()
}

// IgnoredTriggers counts triggers that arrived while a run was active.
func (c *Controller) IgnoredTriggers() uint64 {
	return c.ignored.Load()
}

func (c *Controller) Config() Config {
	return c.cfg
}

// Start fires Trigger every Interval until ctx is done or Stop is called.
func (c *Controller) Start(ctx context.Context) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed || c.cancel != nil {
		return
	}

	ctx, c.cancel = context.WithCancel(ctx)
	c.tickerWg.Add(1)
	go c.tick(ctx)

	c.logger.Info("Overlay", "timer started", map[string]interface{}{
		"interval": c.cfg.Interval.String(),
		"steps":    c.cfg.Steps(),
	})
}

func (c *Controller) tick(ctx context.Context) {
	defer c.tickerWg.Done()

	ticker := time.NewTicker(c.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.Trigger()
		}
	}
}

// Trigger starts a run on its own goroutine when Idle. It reports whether a
// run was started; triggers while Running are no-ops.
func (c *Controller) Trigger() bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return false
	}

	if !c.running.CompareAndSwap(false, true) {
		c.ignored.Add(1)
		c.logger.Debug("Overlay", "trigger ignored, run in progress", nil)
		return false
	}

	c.runWg.Add(1)
	go func() {
		defer c.runWg.Done()
		c.run()
	}()
	return true
}

func (c *Controller) run() {
	runID := uuid.NewString()
	start := time.Now()

	c.suppressed.Store(true)
	defer func() {
		c.suppressed.Store(false)
		c.running.Store(false)
	}()

	c.logger.Debug("Overlay", "run started", map[string]interface{}{
		"run_id": runID,
	})

	time.Sleep(c.cfg.PreDelay)

	drawn := 0
	for offset := c.cfg.StartOffset; offset <= c.cfg.EndOffset; offset += c.cfg.Step {
		if c.step(runID, offset) {
			drawn++
		}
		time.Sleep(c.cfg.StepDelay)
	}

	time.Sleep(c.cfg.HoldDelay)
	c.runs.Add(1)

	c.logger.Info("Overlay", "run completed", map[string]interface{}{
		"run_id":      runID,
		"steps_drawn": drawn,
		"duration_ms": time.Since(start).Milliseconds(),
	})
}

// step renders one offset and submits the write. A step that cannot be
// rendered or has no sink is skipped.
func (c *Controller) step(runID string, offset int) bool {
	if c.sink == nil {
		c.skipped.Add(1)
		return false
	}

	buf, stride, err := c.renderer.Render(offset)
	if err != nil {
		c.skipped.Add(1)
		c.logger.Debug("Overlay", "step skipped", map[string]interface{}{
			"run_id": runID,
			"offset": offset,
			"error":  err.Error(),
		})
		return false
	}

	sink := c.sink
	c.dispatcher.Do(func() {
		if err := sink.WritePixels(buf, stride); err != nil {
			c.skipped.Add(1)
			c.logger.Debug("Overlay", "display rejected overlay frame", map[string]interface{}{
				"run_id": runID,
				"offset": offset,
				"error":  err.Error(),
			})
			return
		}
		c.draws.Add(1)
	})
	return true
}

// Draws counts overlay frames accepted by the sink.
func (c *Controller) Draws() uint64 {
	return c.draws.Load()
}

func (c *Controller) Skipped() uint64 {
	return c.skipped.Load()
}

// Stop halts the timer and waits for an active run to finish. No run starts
// after Stop.
func (c *Controller) Stop() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	cancel := c.cancel
	c.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	c.tickerWg.Wait()

	if c.running.Load() {
		c.logger.Info("Overlay", "waiting for active run to finish", nil)
	}
	c.runWg.Wait()

	c.logger.Info("Overlay", "stopped", map[string]interface{}{
		"runs":             c.runs.Load(),
		"ignored_triggers": c.ignored.Load(),
	})
}
