package render

import (
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"go2tv.app/gamevision/effect"
	"go2tv.app/gamevision/frame"
	"go2tv.app/gamevision/internal/logging"
)

var (
	ErrProgram  = errors.New("highlight program unavailable")
	ErrTexture  = errors.New("frame texture unavailable")
	ErrNotReady = errors.New("compositor is not ready")
)

// State is the compositor's position in the rendering context lifetime.
type State int32

const (
	StateUninitialized State = iota
	StateReady
	StateTornDown
)

func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateReady:
		return "ready"
	case StateTornDown:
		return "torn-down"
	default:
		return fmt.Sprintf("State(%d)", int32(s))
	}
}

// Options configures a Compositor.
type Options struct {
	Effect effect.Highlight
	Filter Filter
	Logger *slog.Logger
}

// CompositorStats is a snapshot of compositor counters.
type CompositorStats struct {
	Draws        uint64
	EmptyDraws   uint64
	Uploads      uint64
	UploadErrors uint64
	DrawErrors   uint64
	// TextureWidth and TextureHeight are the size of the last upload.
	TextureWidth  int
	TextureHeight int
}

// Compositor owns the texture, the highlight program and the quad of one
// rendering context. It pulls the latest frame from the slot on every draw.
// Apart from Stats, every method must run on the render thread.
type Compositor struct {
	dev    Device
	slot   *frame.Slot
	effect effect.Highlight
	filter Filter
	log    *slog.Logger

	state   atomic.Int32
	program Program
	texture Texture
	quad    Quad

	draws         atomic.Uint64
	emptyDraws    atomic.Uint64
	uploads       atomic.Uint64
	uploadErrors  atomic.Uint64
	drawErrors    atomic.Uint64
	textureWidth  atomic.Int64
	textureHeight atomic.Int64

	lastUploadLog atomic.Int64
	lastDrawLog   atomic.Int64
}

func NewCompositor(dev Device, slot *frame.Slot, options *Options) *Compositor {
	if options == nil {
		options = &Options{Effect: effect.Default}
	}
	fx := options.Effect
	if fx == (effect.Highlight{}) {
		fx = effect.Default
	}
	log := options.Logger
	if log == nil {
		log = logging.For("render")
	}
	return &Compositor{
		dev:    dev,
		slot:   slot,
		effect: fx,
		filter: options.Filter,
		log:    log,
		quad:   FullScreen,
	}
}

func (c *Compositor) State() State {
	return State(c.state.Load())
}

// SurfaceCreated builds the program and the texture. Failure leaves the
// compositor unusable; the caller is expected to give up on the context.
func (c *Compositor) SurfaceCreated() error {
	if c.State() != StateUninitialized {
		return fmt.Errorf("%w: surface created in state %s", ErrNotReady, c.State())
	}

	program, err := c.dev.CompileProgram(effect.VertexSource(), c.effect.FragmentSource())
	if err != nil {
		c.log.Error("highlight program failed to build", "error", err)
		return fmt.Errorf("%w: %w", ErrProgram, err)
	}
	if program == 0 {
		return fmt.Errorf("%w: device returned a zero handle", ErrProgram)
	}

	texture, err := c.dev.NewTexture(c.filter)
	if err != nil {
		c.log.Error("frame texture allocation failed", "error", err)
		return fmt.Errorf("%w: %w", ErrTexture, err)
	}
	if texture == 0 {
		return fmt.Errorf("%w: device returned a zero handle", ErrTexture)
	}

	c.program = program
	c.texture = texture
	c.state.Store(int32(StateReady))
	c.log.Debug("compositor ready", "program", program, "texture", texture, "filter", c.filter)
	return nil
}

// SurfaceChanged only moves the viewport.
func (c *Compositor) SurfaceChanged(width, height int) {
	if c.State() != StateReady {
		return
	}
	c.dev.Viewport(width, height)
	c.log.Debug("viewport changed", "width", width, "height", height)
}

// DrawFrame uploads the newest frame, if one is waiting, and draws the quad.
// Without a new frame the previous texture is drawn again. A frame that
// cannot be uploaded is still released and the draw goes ahead with the
// texture as it was. Upload and draw failures are counted and logged; only
// drawing outside the Ready state is returned as an error.
func (c *Compositor) DrawFrame() error {
	if c.State() != StateReady {
		return ErrNotReady
	}

	if f := c.slot.Take(); f != nil {
		if err := c.upload(f); err != nil {
			c.uploadErrors.Add(1)
			if logging.Every(&c.lastUploadLog, time.Second) {
				c.log.Warn("frame upload failed, keeping previous texture",
					"error", err,
					"failures", c.uploadErrors.Load(),
				)
			}
		}
	} else {
		c.emptyDraws.Add(1)
	}

	c.draws.Add(1)
	err := c.dev.Draw(DrawCall{
		Program: c.program,
		Texture: c.texture,
		Unit:    0,
		Boost:   c.effect.Boost,
		Quad:    &c.quad,
	})
	if err != nil {
		c.drawErrors.Add(1)
		if logging.Every(&c.lastDrawLog, time.Second) {
			c.log.Warn("draw failed", "error", err, "failures", c.drawErrors.Load())
		}
	}
	return nil
}

func (c *Compositor) upload(f *frame.Frame) error {
	defer f.Release()

	pix, err := Pack(f)
	if err != nil {
		return err
	}
	if err := c.dev.Upload(c.texture, f.Width, f.Height, pix); err != nil {
		return err
	}

	c.uploads.Add(1)
	c.textureWidth.Store(int64(f.Width))
	c.textureHeight.Store(int64(f.Height))
	return nil
}

// Destroy releases any frame still waiting in the slot and the device state.
// It is safe to call more than once.
func (c *Compositor) Destroy() {
	prev := State(c.state.Swap(int32(StateTornDown)))
	if prev == StateTornDown {
		return
	}
	c.slot.Close()
	c.dev.Destroy()
	c.program = 0
	c.texture = 0
	c.log.Debug("compositor torn down", "draws", c.draws.Load(), "uploads", c.uploads.Load())
}

func (c *Compositor) Stats() CompositorStats {
	return CompositorStats{
		Draws:         c.draws.Load(),
		EmptyDraws:    c.emptyDraws.Load(),
		Uploads:       c.uploads.Load(),
		UploadErrors:  c.uploadErrors.Load(),
		DrawErrors:    c.drawErrors.Load(),
		TextureWidth:  int(c.textureWidth.Load()),
		TextureHeight: int(c.textureHeight.Load()),
	}
}
