package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"postit-mirror/internal/logger"
	"postit-mirror/internal/opencv/safe"

	"gocv.io/x/gocv"
)

const (
	DefaultMaxMemory       = 512 * 1024 * 1024
	DefaultMonitorInterval = 30 * time.Second

	// A frame pipeline holds a handful of Mats at once; more than this many
	// live Mats means a stage is leaking.
	leakWarningThreshold = 64
)

// Manager accounts for every Mat allocated through it. Mats report back on
// Close, so callers only need to close what they allocate.
type Manager struct {
	mu           sync.RWMutex
	logger       logger.Logger
	maxMemory    int64
	usedMemory   int64
	peakMemory   int64
	allocCount   int64
	deallocCount int64
	activeMats   map[uint64]*MatInfo
	interval     time.Duration
	ctx          context.Context
	cancel       context.CancelFunc
	done         chan struct{}
}

type MatInfo struct {
	ID        uint64
	Tag       string
	Size      int64
	Timestamp time.Time
}

type Stats struct {
	Allocations   int64
	Deallocations int64
	UsedBytes     int64
	PeakBytes     int64
	ActiveMats    int
}

// NewManager starts the periodic monitor. A non-positive interval disables it.
func NewManager(log logger.Logger, maxMemory int64, interval time.Duration) *Manager {
	ctx, cancel := context.WithCancel(context.Background())

	if maxMemory <= 0 {
		maxMemory = DefaultMaxMemory
	}

	manager := &Manager{
		logger:     logger.OrNop(log),
		maxMemory:  maxMemory,
		activeMats: make(map[uint64]*MatInfo),
		interval:   interval,
		ctx:        ctx,
		cancel:     cancel,
		done:       make(chan struct{}),
	}

	if interval > 0 {
		go manager.monitorMemory()
	} else {
		close(manager.done)
	}
	return manager
}

// GetMat allocates a tracked Mat filled with fill.
func (m *Manager) GetMat(rows, cols int, matType gocv.MatType, fill gocv.Scalar, tag string) (*safe.Mat, error) {
	if err := m.reserve(int64(rows * cols * matTypeSize(matType))); err != nil {
		return nil, err
	}
	return safe.NewMatFilledWithTracker(rows, cols, matType, fill, m, tag)
}

// FromBytes copies data into a tracked Mat.
func (m *Manager) FromBytes(rows, cols int, matType gocv.MatType, data []byte, tag string) (*safe.Mat, error) {
	if err := m.reserve(int64(len(data))); err != nil {
		return nil, err
	}
	return safe.NewMatFromBytes(rows, cols, matType, data, m, tag)
}

// Adopt takes ownership of a Mat produced by a gocv call.
func (m *Manager) Adopt(mat gocv.Mat, tag string) (*safe.Mat, error) {
	return safe.Wrap(mat, m, tag)
}

func (m *Manager) reserve(size int64) error {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.usedMemory+size > m.maxMemory {
		return fmt.Errorf("memory limit exceeded: would use %d bytes, limit is %d",
			m.usedMemory+size, m.maxMemory)
	}
	return nil
}

func (m *Manager) TrackAllocation(id uint64, size int64, tag string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.usedMemory += size
	if m.usedMemory > m.peakMemory {
		m.peakMemory = m.usedMemory
	}
	m.allocCount++
	m.activeMats[id] = &MatInfo{
		ID:        id,
		Tag:       tag,
		Size:      size,
		Timestamp: time.Now(),
	}
}

func (m *Manager) TrackDeallocation(id uint64, tag string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if info, exists := m.activeMats[id]; exists {
		delete(m.activeMats, id)
		m.usedMemory -= info.Size
	}
	m.deallocCount++
}

func (m *Manager) Stats() Stats {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return Stats{
		Allocations:   m.allocCount,
		Deallocations: m.deallocCount,
		UsedBytes:     m.usedMemory,
		PeakBytes:     m.peakMemory,
		ActiveMats:    len(m.activeMats),
	}
}

func (m *Manager) monitorMemory() {
	defer close(m.done)

	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			m.performMonitoringCheck()
		case <-m.ctx.Done():
			return
		}
	}
}

func (m *Manager) performMonitoringCheck() {
	stats := m.Stats()

	m.logger.Debug("MemoryManager", "memory statistics", map[string]interface{}{
		"allocations":   stats.Allocations,
		"deallocations": stats.Deallocations,
		"used_bytes":    stats.UsedBytes,
		"peak_bytes":    stats.PeakBytes,
		"active_mats":   stats.ActiveMats,
	})

	if stats.ActiveMats > leakWarningThreshold {
		m.logOldestMats(5)
	}
}

func (m *Manager) logOldestMats(count int) {
	for _, info := range m.oldest(count) {
		m.logger.Warning("MemoryManager", "long-lived Mat detected", map[string]interface{}{
			"tag":  info.Tag,
			"size": info.Size,
			"age":  time.Since(info.Timestamp).String(),
		})
	}
}

func (m *Manager) oldest(count int) []MatInfo {
	m.mu.RLock()
	infos := make([]MatInfo, 0, len(m.activeMats))
	for _, info := range m.activeMats {
		infos = append(infos, *info)
	}
	m.mu.RUnlock()

	sort.Slice(infos, func(i, j int) bool {
		return infos[i].Timestamp.Before(infos[j].Timestamp)
	})

	if len(infos) > count {
		infos = infos[:count]
	}
	return infos
}

// Shutdown stops the monitor and reports Mats that were never closed.
func (m *Manager) Shutdown() {
	m.cancel()
	<-m.done

	leaked := m.oldest(leakWarningThreshold)
	for _, info := range leaked {
		m.logger.Warning("MemoryManager", "unreleased Mat at shutdown", map[string]interface{}{
			"tag":  info.Tag,
			"size": info.Size,
		})
	}

	stats := m.Stats()
	m.logger.Info("MemoryManager", "shutdown completed", map[string]interface{}{
		"allocations": stats.Allocations,
		"peak_bytes":  stats.PeakBytes,
		"leaked_mats": stats.ActiveMats,
	})
}

func matTypeSize(matType gocv.MatType) int {
	switch matType {
	case gocv.MatTypeCV8UC1:
		return 1
	case gocv.MatTypeCV8UC3:
		return 3
	case gocv.MatTypeCV8UC4:
		return 4
	case gocv.MatTypeCV16SC1, gocv.MatTypeCV16UC1:
		return 2
	default:
		return 1
	}
}
