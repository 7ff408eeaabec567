package frame

import (
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"time"
)

// PixelFormat describes the byte order of a 4-byte-per-pixel plane.
type PixelFormat uint8

const (
	RGBA8888 PixelFormat = iota + 1
	BGRA8888
	RGBX8888
	BGRX8888
)

var ErrUnknownFormat = errors.New("unknown pixel format")

func (f PixelFormat) String() string {
	switch f {
	case RGBA8888:
		return "RGBA"
	case BGRA8888:
		return "BGRA"
	case RGBX8888:
		return "RGBX"
	case BGRX8888:
		return "BGRX"
	default:
		return fmt.Sprintf("PixelFormat(%d)", uint8(f))
	}
}

// BytesPerPixel is 4 for every supported format and 0 otherwise.
func (f PixelFormat) BytesPerPixel() int {
	switch f {
	case RGBA8888, BGRA8888, RGBX8888, BGRX8888:
		return 4
	default:
		return 0
	}
}

// HasAlpha reports whether the fourth byte carries alpha rather than padding.
func (f PixelFormat) HasAlpha() bool {
	return f == RGBA8888 || f == BGRA8888
}

func ParsePixelFormat(s string) (PixelFormat, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "RGBA", "RGBA8888":
		return RGBA8888, nil
	case "BGRA", "BGRA8888":
		return BGRA8888, nil
	case "RGBX", "RGBX8888":
		return RGBX8888, nil
	case "BGRX", "BGRX8888":
		return BGRX8888, nil
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownFormat, s)
}

// Plane is one memory region of a captured image.
type Plane struct {
	Data        []byte
	RowStride   int
	PixelStride int
}

// Frame is a captured image backed by a native buffer. It is owned by exactly
// one component at a time and must be released exactly once; the data must
// not be touched after Release.
type Frame struct {
	Width     int
	Height    int
	Planes    []Plane
	Format    PixelFormat
	Timestamp time.Time
	Seq       uint64

	release  func()
	released atomic.Bool
}

// New returns a frame whose release hook runs on the first Release call.
func New(width, height int, format PixelFormat, planes []Plane, release func()) *Frame {
	return &Frame{
		Width:     width,
		Height:    height,
		Planes:    planes,
		Format:    format,
		Timestamp: time.Now(),
		release:   release,
	}
}

// Release returns the frame's native resources. Extra calls are no-ops.
func (f *Frame) Release() {
	if f == nil {
		return
	}
	if !f.released.CompareAndSwap(false, true) {
		return
	}
	if f.release != nil {
		f.release()
	}
}

func (f *Frame) Released() bool {
	return f != nil && f.released.Load()
}
