package display

import (
	"errors"
	"sync"

	"postit-mirror/internal/logger"
)

// Dispatcher runs display work on the context that owns the surface.
type Dispatcher interface {
	Do(fn func())
}

// DispatcherFunc adapts a function such as fyne.Do to Dispatcher.
type DispatcherFunc func(func())

func (f DispatcherFunc) Do(fn func()) {
	f(fn)
}

const DefaultQueueSize = 16

// Queue is a Dispatcher backed by one worker goroutine. Work submitted after
// Close is discarded.
type Queue struct {
	work   chan func()
	done   chan struct{}
	wg     sync.WaitGroup
	once   sync.Once
	logger logger.Logger

	mu        sync.Mutex
	discarded uint64
}

func NewQueue(size int, log logger.Logger) *Queue {
	if size <= 0 {
		size = DefaultQueueSize
	}

	q := &Queue{
		work:   make(chan func(), size),
		done:   make(chan struct{}),
		logger: logger.OrNop(log),
	}

	q.wg.Add(1)
	go q.run()
	return q
}

func (q *Queue) run() {
	defer q.wg.Done()

	for {
		select {
		case fn := <-q.work:
			q.invoke(fn)
		case <-q.done:
			return
		}
	}
}

func (q *Queue) invoke(fn func()) {
	defer func() {
		if r := recover(); r != nil {
			q.logger.Error("DisplayQueue", errors.New("display task panicked"), map[string]interface{}{
				"panic": r,
			})
		}
	}()
	fn()
}

// Do blocks until fn is queued or the queue is closed.
func (q *Queue) Do(fn func()) {
	select {
	case <-q.done:
		q.discard()
		return
	default:
	}

	select {
	case q.work <- fn:
	case <-q.done:
		q.discard()
	}
}

func (q *Queue) discard() {
	q.mu.Lock()
	q.discarded++
	q.mu.Unlock()
}

// Discarded counts work rejected because the queue was closed.
func (q *Queue) Discarded() uint64 {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.discarded
}

// Close stops the worker after the task it is currently running. Pending
// tasks are dropped.
func (q *Queue) Close() {
	q.once.Do(func() {
		close(q.done)
		q.wg.Wait()

		pending := len(q.work)
		if pending > 0 {
			q.logger.Debug("DisplayQueue", "dropped pending display tasks", map[string]interface{}{
				"pending": pending,
			})
		}
	})
}
