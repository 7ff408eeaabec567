package frame

import "sync/atomic"

// SlotStats is a snapshot of slot counters.
type SlotStats struct {
	Published uint64
	Dropped   uint64
	Taken     uint64
	Empty     uint64
}

// Slot holds the newest unconsumed frame. One side publishes, the other
// takes; neither ever waits. Replacing an unconsumed frame releases it.
type Slot struct {
	latest atomic.Pointer[Frame]
	closed atomic.Bool

	published atomic.Uint64
	dropped   atomic.Uint64
	taken     atomic.Uint64
	empty     atomic.Uint64
}

// Publish stores f as the latest frame and releases the frame it replaced.
// It reports whether an unconsumed frame was dropped. After Close the
// incoming frame is released immediately.
func (s *Slot) Publish(f *Frame) bool {
	if f == nil {
		return false
	}
	if s.closed.Load() {
		f.Release()
		return false
	}
	s.published.Add(1)

	prev := s.latest.Swap(f)

	// Close may have drained the slot between the check above and the swap.
	if s.closed.Load() {
		if cur := s.latest.Swap(nil); cur != nil {
			cur.Release()
		}
	}

	if prev == nil {
		return false
	}
	s.dropped.Add(1)
	prev.Release()
	return true
}

// Take empties the slot and transfers ownership of its frame to the caller.
// It returns nil when no frame is waiting.
func (s *Slot) Take() *Frame {
	f := s.latest.Swap(nil)
	if f == nil {
		s.empty.Add(1)
		return nil
	}
	s.taken.Add(1)
	return f
}

// Close releases any waiting frame. Publish calls after Close release their
// frame straight away.
func (s *Slot) Close() {
	s.closed.Store(true)
	if f := s.latest.Swap(nil); f != nil {
		f.Release()
	}
}

func (s *Slot) Closed() bool {
	return s.closed.Load()
}

func (s *Slot) Stats() SlotStats {
	return SlotStats{
		Published: s.published.Load(),
		Dropped:   s.dropped.Load(),
		Taken:     s.taken.Load(),
		Empty:     s.empty.Load(),
	}
}
