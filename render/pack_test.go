package render

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go2tv.app/gamevision/frame"
)

func sequentialBytes(n int) []byte {
	b := make([]byte, n)
	for i := range b {
		b[i] = byte(i)
	}
	return b
}

func planeFrame(width, height, rowStride, pixelStride int, format frame.PixelFormat, data []byte) *frame.Frame {
	return frame.New(width, height, format, []frame.Plane{{
		Data:        data,
		RowStride:   rowStride,
		PixelStride: pixelStride,
	}}, nil)
}

// For a tight RGBA plane both paths produce the same bytes.
func TestPackTightMatchesStrided(t *testing.T) {
	const w, h = 5, 3
	data := sequentialBytes(w * h * 4)
	plane := frame.Plane{Data: data, RowStride: w * 4, PixelStride: 4}

	fast := packTight(plane, w, h)
	slow := make([]byte, w*h*4)
	packStrided(slow, plane, w, h, frame.RGBA8888)

	assert.Equal(t, fast, slow)

	got, err := Pack(planeFrame(w, h, w*4, 4, frame.RGBA8888, data))
	require.NoError(t, err)
	assert.Equal(t, fast, got)
	assert.Same(t, &data[0], &got[0], "tight frames are uploaded without a copy")
}

// Padded rows keep exactly the first width*4 bytes of every row.
func TestPackPaddedRows(t *testing.T) {
	const w, h, stride = 3, 4, 20
	data := sequentialBytes(stride * h)

	got, err := Pack(planeFrame(w, h, stride, 4, frame.RGBA8888, data))
	require.NoError(t, err)
	require.Len(t, got, w*h*4)

	var want []byte
	for y := 0; y < h; y++ {
		want = append(want, data[y*stride:y*stride+w*4]...)
	}
	assert.Equal(t, want, got)
}

// Trailing padding after the last row is optional.
func TestPackPaddedRowsWithoutTrailingPadding(t *testing.T) {
	const w, h, stride = 2, 2, 12
	data := sequentialBytes(stride + w*4)

	got, err := Pack(planeFrame(w, h, stride, 4, frame.RGBA8888, data))
	require.NoError(t, err)
	assert.Equal(t, append(append([]byte{}, data[0:8]...), data[12:20]...), got)
}

func TestPackWidePixelStride(t *testing.T) {
	// Two pixels per row, 6 bytes apart, 2 bytes of padding after each.
	data := []byte{
		1, 2, 3, 4, 0, 0, 5, 6, 7, 8, 0, 0,
		9, 10, 11, 12, 0, 0, 13, 14, 15, 16, 0, 0,
	}
	got, err := Pack(planeFrame(2, 2, 12, 6, frame.RGBA8888, data))
	require.NoError(t, err)
	assert.Equal(t, sequentialBytes(17)[1:], got)
}

func TestPackConvertsChannelOrder(t *testing.T) {
	data := []byte{10, 20, 30, 40, 50, 60, 70, 80}

	bgra, err := Pack(planeFrame(2, 1, 8, 4, frame.BGRA8888, data))
	require.NoError(t, err)
	assert.Equal(t, []byte{30, 20, 10, 40, 70, 60, 50, 80}, bgra)

	rgbx, err := Pack(planeFrame(2, 1, 8, 4, frame.RGBX8888, data))
	require.NoError(t, err)
	assert.Equal(t, []byte{10, 20, 30, 255, 50, 60, 70, 255}, rgbx)

	bgrx, err := Pack(planeFrame(2, 1, 8, 4, frame.BGRX8888, data))
	require.NoError(t, err)
	assert.Equal(t, []byte{30, 20, 10, 255, 70, 60, 50, 255}, bgrx)

	assert.Equal(t, []byte{10, 20, 30, 40, 50, 60, 70, 80}, data, "source is never modified")
}

func TestPackRejectsMalformedFrames(t *testing.T) {
	cases := []struct {
		name  string
		frame *frame.Frame
		want  error
	}{
		{"empty", planeFrame(0, 4, 0, 4, frame.RGBA8888, nil), ErrEmptyFrame},
		{"no planes", frame.New(2, 2, frame.RGBA8888, nil, nil), ErrNoPlanes},
		{"format", planeFrame(1, 1, 4, 4, frame.PixelFormat(0), make([]byte, 4)), ErrUnsupportedFormat},
		{"pixel stride", planeFrame(2, 1, 8, 3, frame.RGBA8888, make([]byte, 8)), ErrBadStride},
		{"row stride", planeFrame(2, 2, 4, 4, frame.RGBA8888, make([]byte, 16)), ErrBadStride},
		{"short", planeFrame(2, 2, 8, 4, frame.RGBA8888, make([]byte, 15)), ErrShortBuffer},
		{"row stride overflow", planeFrame(2, 3, 1<<62+4, 4, frame.RGBA8888, make([]byte, 64)), ErrBadStride},
		{"pixel stride overflow", planeFrame(3, 1, 12, 1<<62, frame.RGBA8888, make([]byte, 64)), ErrBadStride},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Pack(tc.frame)
			assert.ErrorIs(t, err, tc.want)
		})
	}
}

func TestPlaneSpan(t *testing.T) {
	n, ok := planeSpan(2, 2, 12, 4)
	require.True(t, ok)
	assert.Equal(t, 20, n)

	_, ok = planeSpan(2, 3, math.MaxInt/2+1, 4)
	assert.False(t, ok)
	_, ok = planeSpan(math.MaxInt/4, 1, math.MaxInt, 8)
	assert.False(t, ok)
}
