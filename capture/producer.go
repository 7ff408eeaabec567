package capture

import (
	"log/slog"
	"sync/atomic"
	"time"

	"go2tv.app/gamevision/frame"
	"go2tv.app/gamevision/internal/logging"
)

// Invalidator schedules a redraw. It must be safe to call from any goroutine.
type Invalidator interface {
	Invalidate()
}

// ProducerStats counts frame deliveries.
type ProducerStats struct {
	Delivered uint64
	Missed    uint64
	Dropped   uint64
}

// Producer moves captured frames into the slot and requests a redraw for each.
type Producer struct {
	slot *frame.Slot
	inv  Invalidator
	log  *slog.Logger

	delivered   atomic.Uint64
	missed      atomic.Uint64
	dropped     atomic.Uint64
	lastMissLog atomic.Int64
}

func NewProducer(slot *frame.Slot, inv Invalidator) *Producer {
	return &Producer{
		slot: slot,
		inv:  inv,
		log:  logging.For("capture"),
	}
}

// OnImageAvailable acquires the newest image from src and hands it off. A
// failed acquisition skips this frame and leaves the slot untouched.
func (p *Producer) OnImageAvailable(src Acquirer) {
	f, err := src.AcquireLatest()
	if err != nil || f == nil {
		total := p.missed.Add(1)
		if logging.Every(&p.lastMissLog, time.Second) {
			p.log.Debug("frame acquisition skipped", "error", err, "total", total)
		}
		return
	}
	p.OnFrameAvailable(f)
}

// OnFrameAvailable publishes f, which the slot then owns, and invalidates.
func (p *Producer) OnFrameAvailable(f *frame.Frame) {
	if p.slot.Publish(f) {
		p.dropped.Add(1)
	}
	p.delivered.Add(1)
	if p.inv != nil {
		p.inv.Invalidate()
	}
}

func (p *Producer) Stats() ProducerStats {
	return ProducerStats{
		Delivered: p.delivered.Load(),
		Missed:    p.missed.Load(),
		Dropped:   p.dropped.Load(),
	}
}
