package capture

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go2tv.app/gamevision/frame"
)

type countingListener struct {
	calls int
}

func (l *countingListener) OnImageAvailable(Acquirer) { l.calls++ }

func image2x2(fill byte) []byte {
	buf := make([]byte, 2*2*4)
	for i := range buf {
		buf[i] = fill
	}
	return buf
}

func TestReaderAcquireLatest(t *testing.T) {
	l := &countingListener{}
	r := NewReader(2, 0, l)

	_, err := r.AcquireLatest()
	assert.ErrorIs(t, err, ErrNoImage)

	require.True(t, r.Queue(image2x2(1), 2, 2, 8, frame.BGRA8888))
	require.True(t, r.Queue(image2x2(2), 2, 2, 8, frame.BGRA8888))
	assert.Equal(t, 2, l.calls)

	f, err := r.AcquireLatest()
	require.NoError(t, err)
	assert.Equal(t, byte(2), f.Planes[0].Data[0])
	assert.Equal(t, 8, f.Planes[0].RowStride)
	assert.Equal(t, 4, f.Planes[0].PixelStride)
	assert.Equal(t, frame.BGRA8888, f.Format)
	assert.Equal(t, uint64(2), f.Seq)

	_, err = r.AcquireLatest()
	assert.ErrorIs(t, err, ErrNoImage)

	stats := r.Stats()
	assert.Equal(t, uint64(2), stats.Queued)
	assert.Equal(t, uint64(1), stats.Superseded)
	assert.Equal(t, uint64(1), stats.Acquired)
	f.Release()
}

func TestReaderCopiesCallerData(t *testing.T) {
	r := NewReader(2, 0, nil)
	data := image2x2(7)
	require.True(t, r.Queue(data, 2, 2, 8, frame.RGBA8888))
	data[0] = 99

	f, err := r.AcquireLatest()
	require.NoError(t, err)
	assert.Equal(t, byte(7), f.Planes[0].Data[0])
	f.Release()
}

func TestReaderPoolExhaustedKeepsPending(t *testing.T) {
	r := NewReader(2, 0, nil)

	var held []*frame.Frame
	for i := 0; i < 2; i++ {
		require.True(t, r.Queue(image2x2(byte(i)), 2, 2, 8, frame.RGBA8888))
		f, err := r.AcquireLatest()
		require.NoError(t, err)
		held = append(held, f)
	}

	require.True(t, r.Queue(image2x2(5), 2, 2, 8, frame.RGBA8888))
	_, err := r.AcquireLatest()
	assert.ErrorIs(t, err, frame.ErrPoolExhausted)

	held[0].Release()
	f, err := r.AcquireLatest()
	require.NoError(t, err)
	assert.Equal(t, byte(5), f.Planes[0].Data[0])

	f.Release()
	held[1].Release()
}

func TestReaderReleasedBufferIsNotReused(t *testing.T) {
	r := NewReader(1, 0, nil)

	require.True(t, r.Queue(image2x2(1), 2, 2, 8, frame.RGBA8888))
	first, err := r.AcquireLatest()
	require.NoError(t, err)

	// The next image lands in staging, not in the acquired frame.
	require.True(t, r.Queue(image2x2(2), 2, 2, 8, frame.RGBA8888))
	assert.Equal(t, byte(1), first.Planes[0].Data[0])
	first.Release()

	second, err := r.AcquireLatest()
	require.NoError(t, err)
	assert.Equal(t, byte(2), second.Planes[0].Data[0])
	second.Release()
}

func TestReaderFormatOverride(t *testing.T) {
	r := NewReader(2, frame.BGRA8888, nil)
	require.True(t, r.Queue(image2x2(0), 2, 2, 8, frame.RGBA8888))

	f, err := r.AcquireLatest()
	require.NoError(t, err)
	assert.Equal(t, frame.BGRA8888, f.Format)
	f.Release()
}

func TestReaderRejectsInvalidImages(t *testing.T) {
	r := NewReader(2, 0, nil)

	assert.False(t, r.Queue(image2x2(0), 0, 2, 8, frame.RGBA8888))
	assert.False(t, r.Queue(image2x2(0), 2, 2, 4, frame.RGBA8888))
	assert.False(t, r.Queue(make([]byte, 10), 2, 2, 8, frame.RGBA8888))
	assert.False(t, r.Queue(image2x2(0), 2, 2, 8, 0))
	assert.Equal(t, uint64(4), r.Stats().Invalid)

	// The last row may omit its padding.
	assert.True(t, r.Queue(make([]byte, 16+8), 2, 2, 16, frame.RGBA8888))
}

func TestReaderClose(t *testing.T) {
	r := NewReader(2, 0, nil)
	require.True(t, r.Queue(image2x2(0), 2, 2, 8, frame.RGBA8888))

	select {
	case <-r.Ready():
	default:
		t.Fatal("reader not ready after first image")
	}

	r.Close()
	_, err := r.AcquireLatest()
	assert.ErrorIs(t, err, ErrReaderClosed)
	assert.False(t, r.Queue(image2x2(0), 2, 2, 8, frame.RGBA8888))
}
