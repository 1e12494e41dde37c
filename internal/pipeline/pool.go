package pipeline

import "sync"

// bufferPool recycles frame-sized buffers so a frame callback can copy the
// caller's samples and return. Buffers that are never recycled (inbox drops,
// shutdown) are left to the garbage collector.
type bufferPool[T int16 | byte] struct {
	size int
	pool sync.Pool // stores *[]T
}

func newBufferPool[T int16 | byte](size int) *bufferPool[T] {
	p := &bufferPool[T]{size: size}
	p.pool.New = func() any {
		buf := make([]T, size)
		return &buf
	}
	return p
}

// copyOf returns a pooled copy of src. src must hold exactly size elements.
func (p *bufferPool[T]) copyOf(src []T) *[]T {
	buf := p.pool.Get().(*[]T)
	copy(*buf, src)
	return buf
}

// recycle returns buf to the pool. buf must not be used afterwards.
func (p *bufferPool[T]) recycle(buf *[]T) {
	if buf == nil || len(*buf) != p.size {
		return
	}
	p.pool.Put(buf)
}
