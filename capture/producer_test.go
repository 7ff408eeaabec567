package capture

import (
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go2tv.app/gamevision/frame"
)

type countingInvalidator struct {
	calls atomic.Int32
}

func (c *countingInvalidator) Invalidate() { c.calls.Add(1) }

type failingAcquirer struct {
	err error
}

func (a failingAcquirer) AcquireLatest() (*frame.Frame, error) { return nil, a.err }

func TestProducerPublishesAndInvalidates(t *testing.T) {
	var slot frame.Slot
	inv := &countingInvalidator{}
	p := NewProducer(&slot, inv)
	r := NewReader(2, 0, p)

	require.True(t, r.Queue(image2x2(3), 2, 2, 8, frame.RGBA8888))
	assert.Equal(t, int32(1), inv.calls.Load())

	f := slot.Take()
	require.NotNil(t, f)
	assert.Equal(t, byte(3), f.Planes[0].Data[0])
	f.Release()

	assert.Equal(t, ProducerStats{Delivered: 1}, p.Stats())
}

func TestProducerSupersededFramesReturnToPool(t *testing.T) {
	var slot frame.Slot
	p := NewProducer(&slot, nil)
	r := NewReader(2, 0, p)

	// Without a consumer the slot keeps replacing its frame, so buffers keep
	// flowing back and no acquisition is ever missed.
	for i := 0; i < 10; i++ {
		require.True(t, r.Queue(image2x2(byte(i)), 2, 2, 8, frame.RGBA8888))
	}

	stats := p.Stats()
	assert.Equal(t, uint64(10), stats.Delivered)
	assert.Equal(t, uint64(9), stats.Dropped)
	assert.Zero(t, stats.Missed)

	f := slot.Take()
	require.NotNil(t, f)
	assert.Equal(t, byte(9), f.Planes[0].Data[0])
	f.Release()
}

// A failed acquisition neither changes the slot nor invalidates.
func TestProducerFailedAcquireLeavesSlot(t *testing.T) {
	var slot frame.Slot
	inv := &countingInvalidator{}
	p := NewProducer(&slot, inv)

	var released atomic.Int32
	held := frame.New(1, 1, frame.RGBA8888, nil, func() { released.Add(1) })
	require.False(t, slot.Publish(held))

	p.OnImageAvailable(failingAcquirer{err: frame.ErrPoolExhausted})
	p.OnImageAvailable(failingAcquirer{err: errors.New("boom")})

	assert.Zero(t, inv.calls.Load())
	assert.Zero(t, released.Load())
	assert.Equal(t, uint64(2), p.Stats().Missed)
	assert.Same(t, held, slot.Take())
}

func TestProducerConcurrentDeliveries(t *testing.T) {
	var slot frame.Slot
	inv := &countingInvalidator{}
	p := NewProducer(&slot, inv)

	var released atomic.Int32
	const workers, perWorker = 4, 100

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < perWorker; i++ {
				p.OnFrameAvailable(frame.New(1, 1, frame.RGBA8888, nil, func() { released.Add(1) }))
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(workers*perWorker), inv.calls.Load())
	assert.Equal(t, int32(workers*perWorker-1), released.Load())

	slot.Close()
	assert.Equal(t, int32(workers*perWorker), released.Load())
}
