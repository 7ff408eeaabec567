package render

import (
	"errors"
	"sync"
)

type fakeUpload struct {
	texture       Texture
	width, height int
	pix           []byte
}

// fakeDevice records every call made by the compositor.
type fakeDevice struct {
	mu sync.Mutex

	compileErr error
	textureErr error
	uploadErr  error
	drawErr    error

	vertex, fragment string
	filter           Filter
	bound            Texture
	uploads          []fakeUpload
	draws            []DrawCall
	viewports        [][2]int
	destroyed        int
}

var (
	errFakeUpload = errors.New("fake upload failure")
	errFakeDraw   = errors.New("fake draw failure")
)

func (d *fakeDevice) CompileProgram(vertex, fragment string) (Program, error) {
	if d.compileErr != nil {
		return 0, d.compileErr
	}
	d.vertex, d.fragment = vertex, fragment
	return 3, nil
}

func (d *fakeDevice) NewTexture(filter Filter) (Texture, error) {
	if d.textureErr != nil {
		return 0, d.textureErr
	}
	d.filter = filter
	return 7, nil
}

func (d *fakeDevice) Upload(tex Texture, width, height int, rgba []byte) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.uploadErr != nil {
		return d.uploadErr
	}
	d.uploads = append(d.uploads, fakeUpload{
		texture: tex,
		width:   width,
		height:  height,
		pix:     append([]byte(nil), rgba...),
	})
	d.bound = tex
	return nil
}

func (d *fakeDevice) Viewport(width, height int) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.viewports = append(d.viewports, [2]int{width, height})
}

func (d *fakeDevice) Draw(call DrawCall) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.draws = append(d.draws, call)
	return d.drawErr
}

func (d *fakeDevice) Destroy() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.destroyed++
}

func (d *fakeDevice) snapshot() (uploads []fakeUpload, draws []DrawCall, viewports [][2]int) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]fakeUpload(nil), d.uploads...),
		append([]DrawCall(nil), d.draws...),
		append([][2]int(nil), d.viewports...)
}
