// Package pipewire reads video frames from a PipeWire node, normally one
// granted by the screen-cast portal. libpipewire is loaded at runtime so the
// binary still starts on systems without it.
package pipewire

import "errors"

// Format is the negotiated pixel layout of a stream. Every format is four
// bytes per pixel.
type Format int

const (
	FormatUnknown Format = iota
	FormatRGBA
	FormatBGRA
	FormatRGBx
	FormatBGRx
)

func (f Format) String() string {
	switch f {
	case FormatRGBA:
		return "RGBA"
	case FormatBGRA:
		return "BGRA"
	case FormatRGBx:
		return "RGBx"
	case FormatBGRx:
		return "BGRx"
	}
	return "unknown"
}

// Handler receives every buffer the stream produces. data is only valid for
// the duration of the call; the handler copies what it keeps.
type Handler func(data []byte, width, height, stride int, format Format)

// RowStride returns the row pitch of a buffer. Some producers leave the
// chunk stride at zero (or negative for bottom-up layouts); the pitch is then
// derived from the chunk size, and failing that from the tight width.
func RowStride(stride, size, width, height int) int {
	if stride > 0 {
		return stride
	}
	tight := width * 4
	if height > 0 {
		if s := size / height; s >= tight {
			return s
		}
	}
	return tight
}

var ErrStreamFailed = errors.New("pipewire stream failed")
