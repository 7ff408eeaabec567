package render

import (
	"context"
	"fmt"
	"runtime"
	"sync/atomic"
)

// Surface is the host's render target and its GPU context.
type Surface interface {
	// MakeCurrent binds the context to the calling thread.
	MakeCurrent() error
	SwapBuffers() error
	// Release detaches the context from the thread.
	Release()
}

// Loop runs a Compositor on a dedicated OS thread and redraws on demand.
// Invalidate and Resize may be called from any goroutine.
type Loop struct {
	comp    *Compositor
	surface Surface

	requests chan struct{}
	wake     func()

	size    atomic.Uint64
	resized atomic.Bool

	running atomic.Bool
}

// NewLoop returns a loop for comp drawing to surface. wake, if not nil, is
// called after each invalidation so a host event loop can be nudged too.
func NewLoop(comp *Compositor, surface Surface, wake func()) *Loop {
	return &Loop{
		comp:     comp,
		surface:  surface,
		requests: make(chan struct{}, 1),
		wake:     wake,
	}
}

// Invalidate requests a redraw. Requests made before the loop gets to them
// collapse into a single draw; Invalidate never blocks.
func (l *Loop) Invalidate() {
	select {
	case l.requests <- struct{}{}:
	default:
	}
	if l.wake != nil {
		l.wake()
	}
}

// Resize records the new surface size and requests a redraw. Only the last
// size before the draw is applied.
func (l *Loop) Resize(width, height int) {
	l.size.Store(uint64(uint32(width))<<32 | uint64(uint32(height)))
	l.resized.Store(true)
	l.Invalidate()
}

// Run owns the render thread until ctx is done. It creates the compositor
// state, draws once, then draws on every invalidation. The compositor is torn
// down before Run returns.
func (l *Loop) Run(ctx context.Context) error {
	if !l.running.CompareAndSwap(false, true) {
		return fmt.Errorf("render loop already running")
	}

	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	if err := l.surface.MakeCurrent(); err != nil {
		return fmt.Errorf("make surface current: %w", err)
	}
	defer l.surface.Release()
	defer l.comp.Destroy()

	if err := l.comp.SurfaceCreated(); err != nil {
		return err
	}
	if err := l.redraw(); err != nil {
		return err
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-l.requests:
			if err := l.redraw(); err != nil {
				return err
			}
		}
	}
}

func (l *Loop) redraw() error {
	if l.resized.Swap(false) {
		size := l.size.Load()
		l.comp.SurfaceChanged(int(uint32(size>>32)), int(uint32(size)))
	}
	if err := l.comp.DrawFrame(); err != nil {
		return fmt.Errorf("draw frame: %w", err)
	}
	return l.surface.SwapBuffers()
}
