// Package gldevice implements render.Device on OpenGL 3.3 core.
//
// A Device belongs to one GL context. Every method must run on the thread
// the context is current on.
package gldevice

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-gl/gl/v3.3-core/gl"

	"go2tv.app/gamevision/effect"
	"go2tv.app/gamevision/render"
)

var (
	ErrCompile = errors.New("shader compile failed")
	ErrLink    = errors.New("program link failed")
)

type uniforms struct {
	texture int32
	boost   int32
}

type Device struct {
	initialized bool

	vao, vbo uint32
	quad     *render.Quad

	programs map[render.Program]uniforms
	textures map[render.Texture]struct{}
}

var _ render.Device = (*Device)(nil)

func New() *Device {
	return &Device{
		programs: make(map[render.Program]uniforms),
		textures: make(map[render.Texture]struct{}),
	}
}

func (d *Device) init() error {
	if d.initialized {
		return nil
	}
	if err := gl.Init(); err != nil {
		return fmt.Errorf("init OpenGL: %w", err)
	}
	d.initialized = true
	gl.Disable(gl.DEPTH_TEST)
	return nil
}

// Version returns the driver's GL_VERSION string.
func (d *Device) Version() string {
	if !d.initialized {
		return ""
	}
	return gl.GoStr(gl.GetString(gl.VERSION))
}

func (d *Device) CompileProgram(vertex, fragment string) (render.Program, error) {
	if err := d.init(); err != nil {
		return 0, err
	}

	vs, err := compileShader(vertex, gl.VERTEX_SHADER)
	if err != nil {
		return 0, fmt.Errorf("vertex: %w", err)
	}
	defer gl.DeleteShader(vs)

	fs, err := compileShader(fragment, gl.FRAGMENT_SHADER)
	if err != nil {
		return 0, fmt.Errorf("fragment: %w", err)
	}
	defer gl.DeleteShader(fs)

	program := gl.CreateProgram()
	gl.AttachShader(program, vs)
	gl.AttachShader(program, fs)
	gl.LinkProgram(program)

	var status int32
	gl.GetProgramiv(program, gl.LINK_STATUS, &status)
	if status == gl.FALSE {
		var logLength int32
		gl.GetProgramiv(program, gl.INFO_LOG_LENGTH, &logLength)
		log := infoLog(logLength, func(buf *uint8) {
			gl.GetProgramInfoLog(program, logLength, nil, buf)
		})
		gl.DeleteProgram(program)
		return 0, fmt.Errorf("%w: %s", ErrLink, log)
	}

	d.programs[render.Program(program)] = uniforms{
		texture: gl.GetUniformLocation(program, gl.Str(effect.UniformTexture+"\x00")),
		boost:   gl.GetUniformLocation(program, gl.Str(effect.UniformBoost+"\x00")),
	}
	return render.Program(program), nil
}

func compileShader(source string, shaderType uint32) (uint32, error) {
	shader := gl.CreateShader(shaderType)
	csources, free := gl.Strs(source + "\x00")
	gl.ShaderSource(shader, 1, csources, nil)
	free()
	gl.CompileShader(shader)

	var status int32
	gl.GetShaderiv(shader, gl.COMPILE_STATUS, &status)
	if status == gl.FALSE {
		var logLength int32
		gl.GetShaderiv(shader, gl.INFO_LOG_LENGTH, &logLength)
		log := infoLog(logLength, func(buf *uint8) {
			gl.GetShaderInfoLog(shader, logLength, nil, buf)
		})
		gl.DeleteShader(shader)
		return 0, fmt.Errorf("%w: %s", ErrCompile, log)
	}
	return shader, nil
}

func infoLog(length int32, read func(*uint8)) string {
	if length <= 0 {
		return "no info log"
	}
	buf := make([]uint8, length+1)
	read(&buf[0])
	return strings.TrimRight(string(buf), "\x00\n ")
}

func (d *Device) NewTexture(filter render.Filter) (render.Texture, error) {
	if err := d.init(); err != nil {
		return 0, err
	}

	mode := int32(gl.LINEAR)
	if filter == render.FilterNearest {
		mode = gl.NEAREST
	}

	var tex uint32
	gl.GenTextures(1, &tex)
	gl.BindTexture(gl.TEXTURE_2D, tex)
	gl.TexParameteri(gl.TEXTURE_2D, gl.TEXTURE_MIN_FILTER, mode)
	gl.TexParameteri(gl.TEXTURE_2D, gl.TEXTURE_MAG_FILTER, mode)
	gl.TexParameteri(gl.TEXTURE_2D, gl.TEXTURE_WRAP_S, gl.CLAMP_TO_EDGE)
	gl.TexParameteri(gl.TEXTURE_2D, gl.TEXTURE_WRAP_T, gl.CLAMP_TO_EDGE)
	gl.BindTexture(gl.TEXTURE_2D, 0)

	if err := checkError("create texture"); err != nil {
		gl.DeleteTextures(1, &tex)
		return 0, err
	}
	d.textures[render.Texture(tex)] = struct{}{}
	return render.Texture(tex), nil
}

// Upload re-specifies the whole texture image; GL copies rgba before
// returning.
func (d *Device) Upload(tex render.Texture, width, height int, rgba []byte) error {
	if _, ok := d.textures[tex]; !ok {
		return fmt.Errorf("upload: unknown texture %d", tex)
	}
	if width <= 0 || height <= 0 || len(rgba) < width*height*4 {
		return fmt.Errorf("upload: %dx%d needs %d bytes, have %d", width, height, width*height*4, len(rgba))
	}

	gl.BindTexture(gl.TEXTURE_2D, uint32(tex))
	gl.PixelStorei(gl.UNPACK_ALIGNMENT, 1)
	gl.TexImage2D(gl.TEXTURE_2D, 0, gl.RGBA8, int32(width), int32(height), 0, gl.RGBA, gl.UNSIGNED_BYTE, gl.Ptr(rgba))
	gl.BindTexture(gl.TEXTURE_2D, 0)
	return checkError("upload")
}

func (d *Device) Viewport(width, height int) {
	gl.Viewport(0, 0, int32(width), int32(height))
}

func (d *Device) Draw(call render.DrawCall) error {
	u, ok := d.programs[call.Program]
	if !ok {
		return fmt.Errorf("draw: unknown program %d", call.Program)
	}
	if err := d.bindQuad(call.Quad); err != nil {
		return err
	}

	gl.ClearColor(0, 0, 0, 0)
	gl.Clear(gl.COLOR_BUFFER_BIT)

	gl.UseProgram(uint32(call.Program))
	gl.BindVertexArray(d.vao)
	gl.ActiveTexture(gl.TEXTURE0 + uint32(call.Unit))
	gl.BindTexture(gl.TEXTURE_2D, uint32(call.Texture))
	gl.Uniform1i(u.texture, int32(call.Unit))
	gl.Uniform1f(u.boost, call.Boost)

	gl.DrawArrays(gl.TRIANGLE_STRIP, 0, render.QuadVertices)

	gl.BindTexture(gl.TEXTURE_2D, 0)
	gl.BindVertexArray(0)
	gl.UseProgram(0)
	return checkError("draw")
}

// bindQuad uploads the quad the first time it is seen. The geometry is
// static, so later draws reuse the buffer.
func (d *Device) bindQuad(q *render.Quad) error {
	if q == nil {
		return errors.New("draw: no geometry")
	}
	if d.vao != 0 && d.quad == q {
		return nil
	}
	if d.vao == 0 {
		gl.GenVertexArrays(1, &d.vao)
		gl.GenBuffers(1, &d.vbo)
	}
	d.quad = q

	gl.BindVertexArray(d.vao)
	gl.BindBuffer(gl.ARRAY_BUFFER, d.vbo)
	gl.BufferData(gl.ARRAY_BUFFER, len(q)*4, gl.Ptr(&q[0]), gl.STATIC_DRAW)

	// position
	gl.VertexAttribPointer(0, 2, gl.FLOAT, false, render.VertexStride, gl.PtrOffset(0))
	gl.EnableVertexAttribArray(0)
	// texcoord
	gl.VertexAttribPointer(1, 2, gl.FLOAT, false, render.VertexStride, gl.PtrOffset(2*4))
	gl.EnableVertexAttribArray(1)

	gl.BindBuffer(gl.ARRAY_BUFFER, 0)
	gl.BindVertexArray(0)
	return checkError("bind quad")
}

func (d *Device) Destroy() {
	if !d.initialized {
		return
	}
	for p := range d.programs {
		gl.DeleteProgram(uint32(p))
	}
	for t := range d.textures {
		tex := uint32(t)
		gl.DeleteTextures(1, &tex)
	}
	if d.vbo != 0 {
		gl.DeleteBuffers(1, &d.vbo)
	}
	if d.vao != 0 {
		gl.DeleteVertexArrays(1, &d.vao)
	}
	clear(d.programs)
	clear(d.textures)
	d.vao, d.vbo, d.quad = 0, 0, nil
}

// checkError drains the GL error queue so a stale error is reported once
// and does not fail later calls.
func checkError(op string) error {
	first := gl.GetError()
	if first == gl.NO_ERROR {
		return nil
	}
	for i := 0; i < 16; i++ {
		if gl.GetError() == gl.NO_ERROR {
			break
		}
	}
	return fmt.Errorf("%s: %s", op, errorName(first))
}

func errorName(code uint32) string {
	switch code {
	case gl.INVALID_ENUM:
		return "GL_INVALID_ENUM"
	case gl.INVALID_VALUE:
		return "GL_INVALID_VALUE"
	case gl.INVALID_OPERATION:
		return "GL_INVALID_OPERATION"
	case gl.INVALID_FRAMEBUFFER_OPERATION:
		return "GL_INVALID_FRAMEBUFFER_OPERATION"
	case gl.OUT_OF_MEMORY:
		return "GL_OUT_OF_MEMORY"
	default:
		return fmt.Sprintf("GL error 0x%04x", code)
	}
}
