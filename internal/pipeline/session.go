// Package pipeline turns sensor frames into display writes. A Session serves
// one stream kind for its whole life and owns all per-stream state.
package pipeline

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"postit-mirror/internal/algorithms"
	"postit-mirror/internal/algorithms/bgsub"
	"postit-mirror/internal/algorithms/depthmask"
	"postit-mirror/internal/algorithms/morph"
	"postit-mirror/internal/algorithms/mosaic"
	"postit-mirror/internal/display"
	"postit-mirror/internal/frame"
	"postit-mirror/internal/logger"
	"postit-mirror/internal/opencv/safe"

	"github.com/google/uuid"
)

var (
	ErrSessionClosed = errors.New("session closed")
	ErrWrongStream   = errors.New("frame does not belong to the session's stream")
)

// Suppressor reports whether live rendering is currently preempted.
type Suppressor interface {
	Suppressed() bool
}

type runCounter interface {
	Runs() uint64
}

// Options configures a Session. Format is the configured stream; the
// source's own format must match it.
type Options struct {
	Format     frame.Format
	Band       depthmask.Band // depth sessions
	Background bgsub.Params   // color sessions
	Morph      morph.Params
	// Mosaic renders the cleaned mask; nil shows the mask itself.
	Mosaic *mosaic.Renderer

	Alloc      safe.Allocator
	Dispatcher display.Dispatcher
	Sink       display.Sink
	Suppressor Suppressor
	Logger     logger.Logger

	// StatsInterval enables periodic statistics logging when positive.
	StatsInterval time.Duration
}

type Session struct {
	id        string
	format    frame.Format
	component string

	processor *processor
	closers   []func()

	inbox      *inbox
	dispatcher display.Dispatcher
	sink       display.Sink
	suppressor Suppressor
	logger     logger.Logger
	stats      *Stats

	depthBufs *bufferPool[int16]
	colorBufs *bufferPool[byte]
	// sensorRange is the last reported depth range; run goroutine only.
	sensorRange [2]int

	seq       atomic.Uint64
	closed    atomic.Bool
	closeOnce sync.Once
	done      chan struct{}
	wg        sync.WaitGroup
}

// NewDepthSession builds a session for raw depth frames.
func NewDepthSession(source frame.Format, opts Options) (*Session, error) {
	if err := checkSetup(frame.StreamDepth, source, opts); err != nil {
		return nil, err
	}

	extractor, err := depthmask.NewExtractor(opts.Format.Width, opts.Format.Height, opts.Band, opts.Alloc)
	if err != nil {
		return nil, err
	}

	cleanup, err := morph.NewCleanup(opts.Morph, opts.Alloc)
	if err != nil {
		return nil, err
	}

	s := newSession("DepthSession", opts)
	s.depthBufs = newBufferPool[int16](opts.Format.Pixels())
	s.processor = &processor{
		depth: extractor,
		chain: withMosaic(algorithms.Chain{cleanup}, opts.Mosaic),
	}
	s.closers = append(s.closers, cleanup.Close)

	s.logger.Info(s.component, "session started", map[string]interface{}{
		"session_id": s.id,
		"format":     s.format.String(),
		"band":       extractor.Band().String(),
		"stages":     s.processor.chain.Names(),
	})

	s.start(opts.StatsInterval)
	return s, nil
}

// NewColorSession builds a session for packed color frames. The background
// model lives as long as the session.
func NewColorSession(source frame.Format, opts Options) (*Session, error) {
	if err := checkSetup(frame.StreamColor, source, opts); err != nil {
		return nil, err
	}

	model, err := bgsub.NewKNN(opts.Format.Width, opts.Format.Height, opts.Background, opts.Alloc)
	if err != nil {
		return nil, err
	}

	cleanup, err := morph.NewCleanup(opts.Morph, opts.Alloc)
	if err != nil {
		model.Close()
		return nil, err
	}

	s := newSession("ColorSession", opts)
	s.colorBufs = newBufferPool[byte](opts.Format.Pixels() * opts.Format.Layout.Channels())
	s.processor = &processor{
		alloc: safe.OrUntracked(opts.Alloc),
		chain: withMosaic(algorithms.Chain{model, cleanup}, opts.Mosaic),
	}
	s.closers = append(s.closers, cleanup.Close, func() { model.Close() })

	s.logger.Info(s.component, "session started", map[string]interface{}{
		"session_id": s.id,
		"format":     s.format.String(),
		"history":    opts.Background.History,
		"threshold":  opts.Background.DistThreshold,
		"shadows":    opts.Background.DetectShadows,
		"output":     string(opts.Background.Mode),
		"stages":     s.processor.chain.Names(),
	})

	s.start(opts.StatsInterval)
	return s, nil
}

func checkSetup(kind frame.StreamKind, source frame.Format, opts Options) error {
	if opts.Format.Kind != kind {
		return fmt.Errorf("%w: %s session configured for %s", ErrWrongStream, kind, opts.Format.Kind)
	}
	if err := opts.Format.Validate(); err != nil {
		return fmt.Errorf("%w: %v", frame.ErrDimensionMismatch, err)
	}
	if err := opts.Format.Matches(source); err != nil {
		return err
	}
	if opts.Dispatcher == nil || opts.Sink == nil {
		return errors.New("session needs a dispatcher and a sink")
	}
	if w, h := opts.Sink.Size(); w != opts.Format.Width || h != opts.Format.Height {
		return fmt.Errorf("%w: display is %dx%d, stream is %dx%d",
			frame.ErrDimensionMismatch, w, h, opts.Format.Width, opts.Format.Height)
	}
	return nil
}

func withMosaic(chain algorithms.Chain, tiles *mosaic.Renderer) algorithms.Chain {
	if tiles == nil {
		return chain
	}
	return append(chain, tiles)
}

func newSession(component string, opts Options) *Session {
	return &Session{
		id:         uuid.NewString(),
		format:     opts.Format,
		component:  component,
		inbox:      newInbox(),
		dispatcher: opts.Dispatcher,
		sink:       opts.Sink,
		suppressor: opts.Suppressor,
		logger:     logger.OrNop(opts.Logger),
		stats:      newStats(),
		done:       make(chan struct{}),
	}
}

func (s *Session) start(statsInterval time.Duration) {
	s.wg.Add(1)
	go s.run()

	if statsInterval > 0 {
		s.wg.Add(1)
		go s.reportStats(statsInterval)
	}
}

func (s *Session) ID() string {
	return s.id
}

func (s *Session) Format() frame.Format {
	return s.format
}

// OnDepthFrameReady hands a depth frame to the processing goroutine. It never
// blocks; an unconsumed earlier frame is replaced. samples is copied before
// return, so the caller may reuse its buffer for the next frame.
//
// minValid and maxValid are the sensor's reported range in raw units. They
// are logged when they change; the mask itself always uses the configured
// band.
func (s *Session) OnDepthFrameReady(samples []int16, minValid, maxValid int) error {
	if s.closed.Load() {
		return ErrSessionClosed
	}
	if s.format.Kind != frame.StreamDepth {
		return fmt.Errorf("%w: depth frame sent to %s session", ErrWrongStream, s.format.Kind)
	}
	if samples == nil {
		return nil
	}

	s.stats.received.Add(1)
	f := &frame.Depth{
		Width:    s.format.Width,
		Height:   s.format.Height,
		Samples:  samples,
		MinValid: minValid,
		MaxValid: maxValid,
		Seq:      s.seq.Add(1),
	}
	if err := f.Check(s.format.Width, s.format.Height); err != nil {
		return s.reject(err)
	}

	buf := s.depthBufs.copyOf(samples)
	f.Samples = *buf
	if !s.inbox.put(&item{depth: f, release: func() { s.depthBufs.recycle(buf) }}) {
		return ErrSessionClosed
	}
	return nil
}

// OnColorFrameReady hands a packed color frame in the configured layout to
// the processing goroutine. pix is copied before return.
func (s *Session) OnColorFrameReady(pix []byte) error {
	if s.closed.Load() {
		return ErrSessionClosed
	}
	if s.format.Kind != frame.StreamColor {
		return fmt.Errorf("%w: color frame sent to %s session", ErrWrongStream, s.format.Kind)
	}
	if pix == nil {
		return nil
	}

	s.stats.received.Add(1)
	f := &frame.Color{
		Width:  s.format.Width,
		Height: s.format.Height,
		Layout: s.format.Layout,
		Pix:    pix,
		Seq:    s.seq.Add(1),
	}
	if err := f.Check(s.format.Width, s.format.Height, s.format.Layout); err != nil {
		return s.reject(err)
	}

	buf := s.colorBufs.copyOf(pix)
	f.Pix = *buf
	if !s.inbox.put(&item{color: f, release: func() { s.colorBufs.recycle(buf) }}) {
		return ErrSessionClosed
	}
	return nil
}

func (s *Session) reject(err error) error {
	s.stats.errors.Add(1)
	s.logger.Error(s.component, err, map[string]interface{}{
		"session_id": s.id,
		"operation":  "frame_ready",
	})
	return err
}

func (s *Session) run() {
	defer s.wg.Done()

	for {
		it := s.inbox.take()
		if it == nil {
			return
		}
		s.handle(it)
	}
}

func (s *Session) handle(it *item) {
	defer it.done()

	if it.depth != nil {
		s.noteSensorRange(it.depth)
	}
	if s.isSuppressed() {
		s.stats.suppressed.Add(1)
		return
	}

	start := time.Now()
	buf, stride, err := s.processor.process(it)
	if err != nil {
		s.stats.errors.Add(1)
		s.logger.Error(s.component, err, map[string]interface{}{
			"session_id": s.id,
			"operation":  "process_frame",
		})
		return
	}
	s.stats.processed.Add(1)
	s.stats.observe(time.Since(start))

	s.dispatcher.Do(func() {
		if s.isSuppressed() {
			s.stats.suppressed.Add(1)
			return
		}
		if err := s.sink.WritePixels(buf, stride); err != nil {
			s.stats.errors.Add(1)
			s.logger.Debug(s.component, "display rejected frame", map[string]interface{}{
				"error": err.Error(),
			})
			return
		}
		s.stats.rendered.Add(1)
	})
}

func (s *Session) noteSensorRange(f *frame.Depth) {
	r := [2]int{f.MinValid, f.MaxValid}
	if r == s.sensorRange {
		return
	}
	s.sensorRange = r
	s.logger.Debug(s.component, "sensor depth range changed", map[string]interface{}{
		"session_id": s.id,
		"min_valid":  f.MinValid,
		"max_valid":  f.MaxValid,
		"seq":        f.Seq,
	})
}

func (s *Session) isSuppressed() bool {
	return s.suppressor != nil && s.suppressor.Suppressed()
}

// Stats returns the current counters.
func (s *Session) Stats() Snapshot {
	snap := s.stats.snapshot()
	snap.InboxDrops = s.inbox.dropped()
	if rc, ok := s.suppressor.(runCounter); ok {
		snap.OverlayRuns = rc.Runs()
	}
	return snap
}

func (s *Session) reportStats(interval time.Duration) {
	defer s.wg.Done()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.done:
			return
		case <-ticker.C:
			s.logger.Info(s.component, "frame statistics", s.Stats().Fields())
		}
	}
}

// Close stops processing and releases the background model and kernels.
// Frames arriving afterwards are rejected with ErrSessionClosed.
func (s *Session) Close() error {
	s.closeOnce.Do(func() {
		s.closed.Store(true)
		s.inbox.close()
		close(s.done)
		s.wg.Wait()

		for _, closer := range s.closers {
			closer()
		}

		fields := s.Stats().Fields()
		fields["session_id"] = s.id
		s.logger.Info(s.component, "session closed", fields)
	})
	return nil
}
