package frame

import (
	"errors"
	"sync"
)

// DefaultPoolDepth matches the two buffers the platform keeps in flight.
const DefaultPoolDepth = 2

var ErrPoolExhausted = errors.New("frame buffer pool exhausted")

// Pool hands out at most Depth buffers at a time. Buffers come back when the
// frame built on them is released.
type Pool struct {
	mu       sync.Mutex
	depth    int
	free     [][]byte
	inFlight int
}

func NewPool(depth int) *Pool {
	if depth <= 0 {
		depth = DefaultPoolDepth
	}
	return &Pool{depth: depth}
}

func (p *Pool) Depth() int {
	return p.depth
}

func (p *Pool) InFlight() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.inFlight
}

// Get returns a buffer of exactly size bytes, or ErrPoolExhausted when every
// buffer is in use.
func (p *Pool) Get(size int) ([]byte, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.inFlight >= p.depth {
		return nil, ErrPoolExhausted
	}
	p.inFlight++

	if n := len(p.free); n > 0 {
		buf := p.free[n-1]
		p.free = p.free[:n-1]
		if cap(buf) >= size {
			return buf[:size], nil
		}
	}
	return make([]byte, size), nil
}

// Put returns a buffer obtained from Get.
func (p *Pool) Put(buf []byte) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.inFlight == 0 {
		return
	}
	p.inFlight--
	if buf != nil && len(p.free) < p.depth {
		p.free = append(p.free, buf[:0])
	}
}

// NewFrame wraps a pool buffer as a single-plane frame that returns the buffer
// to the pool on Release.
func (p *Pool) NewFrame(buf []byte, width, height, rowStride int, format PixelFormat) *Frame {
	planes := []Plane{{
		Data:        buf,
		RowStride:   rowStride,
		PixelStride: format.BytesPerPixel(),
	}}
	return New(width, height, format, planes, func() { p.Put(buf) })
}
