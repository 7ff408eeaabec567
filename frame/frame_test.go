package frame

import (
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func countingFrame(releases *atomic.Int32) *Frame {
	return New(1, 1, RGBA8888, []Plane{{Data: make([]byte, 4), RowStride: 4, PixelStride: 4}}, func() {
		releases.Add(1)
	})
}

func TestFrameReleaseRunsOnce(t *testing.T) {
	var releases atomic.Int32
	f := countingFrame(&releases)

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			f.Release()
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), releases.Load())
	assert.True(t, f.Released())
}

func TestNilFrameRelease(t *testing.T) {
	var f *Frame
	assert.NotPanics(t, f.Release)
	assert.False(t, f.Released())
}

func TestParsePixelFormat(t *testing.T) {
	cases := map[string]PixelFormat{
		"rgba":     RGBA8888,
		" BGRA ":   BGRA8888,
		"rgbx8888": RGBX8888,
		"BGRX":     BGRX8888,
	}
	for in, want := range cases {
		got, err := ParsePixelFormat(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}

	_, err := ParsePixelFormat("yuv420")
	assert.ErrorIs(t, err, ErrUnknownFormat)
}

func TestPixelFormatProperties(t *testing.T) {
	assert.Equal(t, 4, BGRA8888.BytesPerPixel())
	assert.Equal(t, 0, PixelFormat(0).BytesPerPixel())
	assert.True(t, RGBA8888.HasAlpha())
	assert.False(t, RGBX8888.HasAlpha())
	assert.Equal(t, "BGRX", BGRX8888.String())
}
