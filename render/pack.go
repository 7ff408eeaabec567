package render

import (
	"errors"
	"fmt"
	"math"

	"go2tv.app/gamevision/frame"
)

var (
	ErrEmptyFrame        = errors.New("frame has no pixels")
	ErrNoPlanes          = errors.New("frame has no planes")
	ErrUnsupportedFormat = errors.New("unsupported pixel format")
	ErrBadStride         = errors.New("invalid plane stride")
	ErrShortBuffer       = errors.New("plane buffer shorter than its layout")
)

// Pack returns the first plane of f as tightly packed RGBA, width*height*4
// bytes. A tight RGBA plane is returned as is and aliases the frame memory,
// so the result must not outlive the frame. Anything else is copied row by
// row, honouring row and pixel strides and converting the channel order.
func Pack(f *frame.Frame) ([]byte, error) {
	if f.Width <= 0 || f.Height <= 0 {
		return nil, fmt.Errorf("%w: %dx%d", ErrEmptyFrame, f.Width, f.Height)
	}
	if len(f.Planes) == 0 {
		return nil, ErrNoPlanes
	}
	if f.Format.BytesPerPixel() != 4 {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, f.Format)
	}

	p := f.Planes[0]
	need, ok := planeSpan(f.Width, f.Height, p.RowStride, p.PixelStride)
	if !ok {
		return nil, fmt.Errorf("%w: row=%d pixel=%d width=%d", ErrBadStride, p.RowStride, p.PixelStride, f.Width)
	}
	if len(p.Data) < need {
		return nil, fmt.Errorf("%w: have %d need %d", ErrShortBuffer, len(p.Data), need)
	}

	if isTight(f, p) {
		return packTight(p, f.Width, f.Height), nil
	}
	out := make([]byte, f.Width*f.Height*4)
	packStrided(out, p, f.Width, f.Height, f.Format)
	return out, nil
}

// planeSpan returns the bytes a plane must hold, from the first pixel to the
// end of the last one. It reports false when the strides cannot describe
// the image or the span does not fit in an int.
func planeSpan(width, height, rowStride, pixelStride int) (int, bool) {
	if pixelStride < 4 || width-1 > (math.MaxInt-4)/pixelStride {
		return 0, false
	}
	rowBytes := (width-1)*pixelStride + 4
	if rowStride < rowBytes {
		return 0, false
	}
	if height > 1 && rowStride > (math.MaxInt-rowBytes)/(height-1) {
		return 0, false
	}
	return (height-1)*rowStride + rowBytes, true
}

func isTight(f *frame.Frame, p frame.Plane) bool {
	return f.Format == frame.RGBA8888 && p.PixelStride == 4 && p.RowStride == f.Width*4
}

func packTight(p frame.Plane, width, height int) []byte {
	return p.Data[:width*height*4]
}

// packStrided writes width*height pixels from p into dst in row-major order.
func packStrided(dst []byte, p frame.Plane, width, height int, format frame.PixelFormat) {
	tight := width * 4
	for y := 0; y < height; y++ {
		src := p.Data[y*p.RowStride:]
		row := dst[y*tight : (y+1)*tight]

		if format == frame.RGBA8888 && p.PixelStride == 4 {
			copy(row, src[:tight])
			continue
		}

		for x := 0; x < width; x++ {
			s := src[x*p.PixelStride : x*p.PixelStride+4]
			d := row[x*4 : x*4+4]
			switch format {
			case frame.RGBA8888:
				copy(d, s)
			case frame.BGRA8888:
				d[0], d[1], d[2], d[3] = s[2], s[1], s[0], s[3]
			case frame.RGBX8888:
				d[0], d[1], d[2], d[3] = s[0], s[1], s[2], 0xff
			case frame.BGRX8888:
				d[0], d[1], d[2], d[3] = s[2], s[1], s[0], 0xff
			}
		}
	}
}
