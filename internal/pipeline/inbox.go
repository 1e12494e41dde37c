package pipeline

import (
	"sync"

	"postit-mirror/internal/frame"
)

// item carries exactly one of depth or color. release, when set, returns
// the frame's pooled buffer once processing is done.
type item struct {
	depth   *frame.Depth
	color   *frame.Color
	release func()
}

func (it *item) done() {
	if it.release != nil {
		it.release()
	}
}

// inbox is a single-slot mailbox between the sensor callback and the
// processing goroutine. A new frame replaces an unconsumed one.
type inbox struct {
	mu     sync.Mutex
	cond   *sync.Cond
	item   *item
	closed bool
	drops  uint64
}

func newInbox() *inbox {
	b := &inbox{}
	b.cond = sync.NewCond(&b.mu)
	return b
}

// put stores it, returning false once the inbox is closed.
func (b *inbox) put(it *item) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return false
	}
	if b.item != nil {
		b.drops++
	}
	b.item = it
	b.cond.Signal()
	return true
}

// take blocks until a frame is available. It returns nil after close.
func (b *inbox) take() *item {
	b.mu.Lock()
	defer b.mu.Unlock()

	for b.item == nil && !b.closed {
		b.cond.Wait()
	}
	if b.closed {
		return nil
	}

	it := b.item
	b.item = nil
	return it
}

func (b *inbox) close() {
	b.mu.Lock()
	b.closed = true
	b.item = nil
	b.cond.Broadcast()
	b.mu.Unlock()
}

func (b *inbox) dropped() uint64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.drops
}
