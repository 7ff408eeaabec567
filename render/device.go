package render

// Program and Texture are device handles. Zero is never a valid handle.
type (
	Program uint32
	Texture uint32
)

// Filter selects texture sampling.
type Filter uint8

const (
	FilterLinear Filter = iota
	FilterNearest
)

func (f Filter) String() string {
	if f == FilterNearest {
		return "nearest"
	}
	return "linear"
}

// ParseFilter maps a config value to a Filter; anything but "nearest" is
// linear.
func ParseFilter(s string) Filter {
	if s == "nearest" {
		return FilterNearest
	}
	return FilterLinear
}

// DrawCall is one full-viewport pass of the highlight program.
type DrawCall struct {
	Program Program
	Texture Texture
	// Unit is the texture unit the sampler reads from.
	Unit  int
	Boost float32
	Quad  *Quad
}

// Device is the GPU state of one rendering context. All methods are called
// from the render thread only.
type Device interface {
	// CompileProgram compiles and links a vertex/fragment pair.
	CompileProgram(vertex, fragment string) (Program, error)
	// NewTexture allocates a 2D texture without mipmaps.
	NewTexture(filter Filter) (Texture, error)
	// Upload re-specifies the full image of tex from tightly packed RGBA.
	Upload(tex Texture, width, height int, rgba []byte) error
	Viewport(width, height int)
	// Draw clears the target to transparent and draws call.Quad.
	Draw(call DrawCall) error
	// Destroy frees every handle the device created.
	Destroy()
}
