// Package softdevice renders the overlay on the CPU. It backs headless runs,
// snapshots and tests, and mirrors what the GL program does per pixel.
package softdevice

import (
	"errors"
	"fmt"
	"image"
	"strings"
	"sync"

	"golang.org/x/image/draw"

	"go2tv.app/gamevision/effect"
	"go2tv.app/gamevision/render"
)

var (
	ErrUnknownHandle = errors.New("unknown device handle")
	ErrBadProgram    = errors.New("program source rejected")
	ErrBadUpload     = errors.New("upload size mismatch")
)

type texture struct {
	filter render.Filter
	img    *image.RGBA
}

// Device implements render.Device on an in-memory RGBA target.
type Device struct {
	mu sync.Mutex

	effect   effect.Highlight
	next     uint32
	programs map[render.Program]struct{}
	textures map[render.Texture]*texture

	width, height int
	target        *image.RGBA
}

var _ render.Device = (*Device)(nil)

// New returns a device that applies h's colour target and radius; the
// boost comes from each draw call.
func New(h effect.Highlight) *Device {
	return &Device{
		effect:   h,
		programs: make(map[render.Program]struct{}),
		textures: make(map[render.Texture]*texture),
	}
}

func (d *Device) handle() uint32 {
	d.next++
	return d.next
}

// CompileProgram accepts any source pair that declares the inputs the
// compositor feeds.
func (d *Device) CompileProgram(vertex, fragment string) (render.Program, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	for _, name := range []string{effect.AttribPosition, effect.AttribTexCoord} {
		if !strings.Contains(vertex, name) {
			return 0, fmt.Errorf("%w: vertex shader lacks %s", ErrBadProgram, name)
		}
	}
	for _, name := range []string{effect.UniformTexture, effect.UniformBoost} {
		if !strings.Contains(fragment, name) {
			return 0, fmt.Errorf("%w: fragment shader lacks %s", ErrBadProgram, name)
		}
	}

	p := render.Program(d.handle())
	d.programs[p] = struct{}{}
	return p, nil
}

func (d *Device) NewTexture(filter render.Filter) (render.Texture, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	t := render.Texture(d.handle())
	d.textures[t] = &texture{filter: filter}
	return t, nil
}

// Upload copies rgba; the caller may release the frame memory afterwards.
func (d *Device) Upload(tex render.Texture, width, height int, rgba []byte) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	t, ok := d.textures[tex]
	if !ok {
		return fmt.Errorf("%w: texture %d", ErrUnknownHandle, tex)
	}
	if len(rgba) != width*height*4 {
		return fmt.Errorf("%w: %dx%d with %d bytes", ErrBadUpload, width, height, len(rgba))
	}

	if t.img == nil || t.img.Rect.Dx() != width || t.img.Rect.Dy() != height {
		t.img = image.NewRGBA(image.Rect(0, 0, width, height))
	}
	copy(t.img.Pix, rgba)
	return nil
}

func (d *Device) Viewport(width, height int) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.width, d.height = width, height
}

// Draw clears the target and fills it with the highlighted texture. Without
// a viewport the target takes the texture size.
func (d *Device) Draw(call render.DrawCall) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if _, ok := d.programs[call.Program]; !ok {
		return fmt.Errorf("%w: program %d", ErrUnknownHandle, call.Program)
	}
	t, ok := d.textures[call.Texture]
	if !ok {
		return fmt.Errorf("%w: texture %d", ErrUnknownHandle, call.Texture)
	}

	w, h := d.width, d.height
	if (w <= 0 || h <= 0) && t.img != nil {
		w, h = t.img.Rect.Dx(), t.img.Rect.Dy()
	}
	if w <= 0 || h <= 0 {
		return nil
	}
	if d.target == nil || d.target.Rect.Dx() != w || d.target.Rect.Dy() != h {
		d.target = image.NewRGBA(image.Rect(0, 0, w, h))
	} else {
		clear(d.target.Pix)
	}
	if t.img == nil {
		return nil
	}

	if t.img.Rect.Eq(d.target.Rect) {
		copy(d.target.Pix, t.img.Pix)
	} else {
		// RGBA to RGBA with Src interpolates each channel alone, so straight
		// alpha survives like it does under GL filtering.
		scaler(t.filter).Scale(d.target, d.target.Rect, t.img, t.img.Rect, draw.Src, nil)
	}

	fx := d.effect
	fx.Boost = call.Boost
	fx.ApplyRGBA8(d.target.Pix)
	return nil
}

func scaler(f render.Filter) draw.Scaler {
	if f == render.FilterNearest {
		return draw.NearestNeighbor
	}
	return draw.BiLinear
}

// Target returns a copy of the last drawn image, or nil before the first
// draw.
func (d *Device) Target() *image.RGBA {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.target == nil {
		return nil
	}
	out := image.NewRGBA(d.target.Rect)
	copy(out.Pix, d.target.Pix)
	return out
}

func (d *Device) Destroy() {
	d.mu.Lock()
	defer d.mu.Unlock()

	clear(d.programs)
	clear(d.textures)
	d.target = nil
}
