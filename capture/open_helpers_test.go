package capture

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go2tv.app/gamevision/frame"
	"go2tv.app/gamevision/internal/pipewire"
)

func TestValidateOpenOptions(t *testing.T) {
	o, err := validateOpenOptions(nil)
	require.NoError(t, err)
	assert.Equal(t, BackendAuto, o.Backend)
	assert.Equal(t, defaultPollInterval, o.PollInterval)

	for _, bad := range []*Options{
		{StreamIndex: -1},
		{Display: -1},
		{MaxImages: -1},
		{Backend: "vnc"},
	} {
		_, err := validateOpenOptions(bad)
		assert.ErrorIs(t, err, ErrInvalidOptions, "%+v", bad)
	}

	in := &Options{Backend: BackendScreenshot}
	out, err := validateOpenOptions(in)
	require.NoError(t, err)
	assert.Zero(t, in.PollInterval, "caller options must not be modified")
	assert.Equal(t, BackendScreenshot, out.Backend)
}

func TestWaitForFirstFrame(t *testing.T) {
	ready := make(chan struct{})
	close(ready)
	assert.NoError(t, waitForFirstFrame(context.Background(), "test", ready, time.Second, nil))

	closed := false
	err := waitForFirstFrame(context.Background(), "test", make(chan struct{}), time.Millisecond, func() error {
		closed = true
		return nil
	})
	assert.ErrorContains(t, err, "timed out")
	assert.True(t, closed)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err = waitForFirstFrame(ctx, "test", make(chan struct{}), time.Minute, nil)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestStreamRange(t *testing.T) {
	assert.ErrorIs(t, streamRange(0, 0), ErrNoStreams)
	assert.ErrorIs(t, streamRange(2, 2), ErrInvalidOptions)
	assert.NoError(t, streamRange(1, 2))
}

func TestPixelFormat(t *testing.T) {
	assert.Equal(t, frame.RGBA8888, pixelFormat(pipewire.FormatRGBA))
	assert.Equal(t, frame.BGRX8888, pixelFormat(pipewire.FormatBGRx))
	assert.Zero(t, pixelFormat(pipewire.FormatUnknown))
}

func TestStreamCloseIsIdempotent(t *testing.T) {
	calls := 0
	s := &Stream{Reader: NewReader(2, 0, nil), closeFn: func() error {
		calls++
		return nil
	}}
	require.NoError(t, s.Close())
	require.NoError(t, s.Close())
	assert.Equal(t, 1, calls)
}

func TestStreamFormatFromFirstImage(t *testing.T) {
	r := NewReader(2, 0, nil)
	assert.Zero(t, r.Format())
	require.True(t, r.Queue(make([]byte, 16), 2, 2, 8, frame.BGRX8888))

	s := &Stream{Backend: BackendPortal, Reader: r}
	s.settleFormat()
	assert.Equal(t, frame.BGRX8888, s.Format)

	// A format known at open time is kept.
	s = &Stream{Format: frame.RGBA8888, Reader: r}
	s.settleFormat()
	assert.Equal(t, frame.RGBA8888, s.Format)
}
