package pipeline

import (
	"sync"
	"sync/atomic"
	"time"

	"gonum.org/v1/gonum/stat"
)

const latencyWindow = 512

// Stats counts what happened to the frames of one session.
type Stats struct {
	received   atomic.Uint64
	processed  atomic.Uint64
	rendered   atomic.Uint64
	suppressed atomic.Uint64
	errors     atomic.Uint64

	mu        sync.Mutex
	latencies []float64
	next      int
}

// Snapshot is a point-in-time copy of Stats. Latencies cover the most recent
// processed frames, in milliseconds.
type Snapshot struct {
	Received      uint64
	Processed     uint64
	Rendered      uint64
	Suppressed    uint64
	InboxDrops    uint64
	Errors        uint64
	OverlayRuns   uint64
	LatencyMeanMS float64
	LatencyStdMS  float64
}

func newStats() *Stats {
	return &Stats{latencies: make([]float64, 0, latencyWindow)}
}

func (s *Stats) observe(d time.Duration) {
	ms := float64(d) / float64(time.Millisecond)

	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.latencies) < latencyWindow {
		s.latencies = append(s.latencies, ms)
		return
	}
	s.latencies[s.next] = ms
	s.next = (s.next + 1) % latencyWindow
}

func (s *Stats) snapshot() Snapshot {
	snap := Snapshot{
		Received:   s.received.Load(),
		Processed:  s.processed.Load(),
		Rendered:   s.rendered.Load(),
		Suppressed: s.suppressed.Load(),
		Errors:     s.errors.Load(),
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	switch len(s.latencies) {
	case 0:
	case 1:
		snap.LatencyMeanMS = s.latencies[0]
	default:
		snap.LatencyMeanMS, snap.LatencyStdMS = stat.MeanStdDev(s.latencies, nil)
	}
	return snap
}

func (s Snapshot) Fields() map[string]interface{} {
	return map[string]interface{}{
		"received":        s.Received,
		"processed":       s.Processed,
		"rendered":        s.Rendered,
		"suppressed":      s.Suppressed,
		"inbox_drops":     s.InboxDrops,
		"errors":          s.Errors,
		"overlay_runs":    s.OverlayRuns,
		"latency_mean_ms": s.LatencyMeanMS,
		"latency_std_ms":  s.LatencyStdMS,
	}
}
