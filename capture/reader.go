package capture

import (
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"go2tv.app/gamevision/frame"
	"go2tv.app/gamevision/internal/logging"
)

var (
	ErrNoImage      = errors.New("no image available")
	ErrReaderClosed = errors.New("image reader closed")
)

// Acquirer hands out the newest captured image.
type Acquirer interface {
	AcquireLatest() (*frame.Frame, error)
}

// Listener is told when a new image may be acquired. It is called on the
// capture goroutine and must not block.
type Listener interface {
	OnImageAvailable(src Acquirer)
}

// ReaderStats counts what happened to queued images.
type ReaderStats struct {
	Queued     uint64
	Superseded uint64
	Acquired   uint64
	Invalid    uint64
}

// Reader sits between a capture backend and the app. Backends queue raw
// images; the app acquires at most MaxImages of them at a time.
type Reader struct {
	pool     *frame.Pool
	listener Listener
	override frame.PixelFormat
	log      *slog.Logger

	mu         sync.Mutex
	staging    []byte
	pending    bool
	width      int
	height     int
	rowStride  int
	format     frame.PixelFormat
	stamp      time.Time
	seq        uint64
	closed     bool
	readyOnce  sync.Once
	ready      chan struct{}
	lastBadLog atomic.Int64

	queued     atomic.Uint64
	superseded atomic.Uint64
	acquired   atomic.Uint64
	invalid    atomic.Uint64
}

// NewReader builds a reader allowing maxImages acquired images. A non-zero
// override replaces the format reported by the backend.
func NewReader(maxImages int, override frame.PixelFormat, listener Listener) *Reader {
	return &Reader{
		pool:     frame.NewPool(maxImages),
		listener: listener,
		override: override,
		log:      logging.For("capture"),
		ready:    make(chan struct{}),
	}
}

// MaxImages is the number of images the app may hold at once.
func (r *Reader) MaxImages() int {
	return r.pool.Depth()
}

// Format is the pixel format of the last queued image, zero before the first.
func (r *Reader) Format() frame.PixelFormat {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.format
}

// Ready is closed once the first image was queued.
func (r *Reader) Ready() <-chan struct{} {
	return r.ready
}

// Queue copies one image into the reader and notifies the listener. data may
// be reused by the caller once Queue returns.
func (r *Reader) Queue(data []byte, width, height, rowStride int, format frame.PixelFormat) bool {
	if r.override != 0 {
		format = r.override
	}
	if !validImage(data, width, height, rowStride, format) {
		total := r.invalid.Add(1)
		if logging.Every(&r.lastBadLog, time.Second) {
			r.log.Debug("invalid image dropped",
				"width", width, "height", height, "row_stride", rowStride,
				"format", format, "bytes", len(data), "total", total)
		}
		return false
	}

	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return false
	}
	if r.pending {
		r.superseded.Add(1)
	}
	if cap(r.staging) < len(data) {
		r.staging = make([]byte, len(data))
	}
	r.staging = r.staging[:len(data)]
	copy(r.staging, data)
	r.width, r.height, r.rowStride, r.format = width, height, rowStride, format
	r.stamp = time.Now()
	r.seq++
	r.pending = true
	r.mu.Unlock()

	r.queued.Add(1)
	r.readyOnce.Do(func() { close(r.ready) })

	if r.listener != nil {
		r.listener.OnImageAvailable(r)
	}
	return true
}

// AcquireLatest returns the newest queued image. It fails with ErrNoImage when
// nothing new was queued and with frame.ErrPoolExhausted while the app already
// holds MaxImages images; in both cases the pending image, if any, stays.
func (r *Reader) AcquireLatest() (*frame.Frame, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return nil, ErrReaderClosed
	}
	if !r.pending {
		return nil, ErrNoImage
	}
	spare, err := r.pool.Get(0)
	if err != nil {
		return nil, err
	}

	data := r.staging
	r.staging = spare
	r.pending = false

	f := r.pool.NewFrame(data, r.width, r.height, r.rowStride, r.format)
	f.Timestamp = r.stamp
	f.Seq = r.seq
	r.acquired.Add(1)
	return f, nil
}

// Close drops the pending image. Images already acquired stay valid until
// released.
func (r *Reader) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.closed = true
	r.pending = false
	r.staging = nil
}

func (r *Reader) Stats() ReaderStats {
	return ReaderStats{
		Queued:     r.queued.Load(),
		Superseded: r.superseded.Load(),
		Acquired:   r.acquired.Load(),
		Invalid:    r.invalid.Load(),
	}
}

func validImage(data []byte, width, height, rowStride int, format frame.PixelFormat) bool {
	bpp := format.BytesPerPixel()
	if bpp == 0 || width <= 0 || height <= 0 || rowStride < width*bpp {
		return false
	}
	return len(data) >= rowStride*(height-1)+width*bpp
}
