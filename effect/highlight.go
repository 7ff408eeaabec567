// Package effect defines the green highlight applied to every captured frame.
//
// The same parameters drive the GLSL program run by the GPU device and the
// CPU implementation used by the software device and by tests.
package effect

import "github.com/chewxy/math32"

// Highlight boosts the green channel of colours close to Target.
type Highlight struct {
	// Boost is added to green at full mask strength.
	Boost float32
	// Target is the emphasised colour in normalized RGB.
	Target [3]float32
	// Radius is the RGB distance at which the mask reaches zero.
	Radius float32
}

// Default is the only effect the overlay renders.
var Default = Highlight{
	Boost:  0.5,
	Target: [3]float32{0.3, 0.8, 0.2},
	Radius: 0.25,
}

// Distance is the Euclidean RGB distance between c and the target colour.
func (h Highlight) Distance(r, g, b float32) float32 {
	dr := r - h.Target[0]
	dg := g - h.Target[1]
	db := b - h.Target[2]
	return math32.Sqrt(dr*dr + dg*dg + db*db)
}

// Mask is 1 - smoothstep(0, Radius, distance): 1 on the target, 0 at Radius
// and beyond. The edges stay ascending because GLSL leaves smoothstep
// undefined otherwise.
func (h Highlight) Mask(r, g, b float32) float32 {
	return 1 - smoothstep(0, h.Radius, h.Distance(r, g, b))
}

// Apply returns the highlighted colour. Alpha passes through untouched.
func (h Highlight) Apply(c [4]float32) [4]float32 {
	mask := h.Mask(c[0], c[1], c[2])
	if mask == 0 {
		return c
	}
	boosted := clamp01(c[1] + h.Boost*mask)
	c[1] = mix(c[1], boosted, mask)
	return c
}

// ApplyRGBA8 runs Apply over tightly packed 8-bit RGBA pixels in place.
func (h Highlight) ApplyRGBA8(pix []byte) {
	for i := 0; i+3 < len(pix); i += 4 {
		in := [4]float32{
			float32(pix[i]) / 255,
			float32(pix[i+1]) / 255,
			float32(pix[i+2]) / 255,
			float32(pix[i+3]) / 255,
		}
		out := h.Apply(in)
		pix[i+1] = toByte(out[1])
	}
}

// smoothstep follows the GLSL definition for edge0 < edge1. Equal edges
// give a step at edge0.
func smoothstep(edge0, edge1, x float32) float32 {
	if edge0 >= edge1 {
		if x < edge0 {
			return 0
		}
		return 1
	}
	t := clamp01((x - edge0) / (edge1 - edge0))
	return t * t * (3 - 2*t)
}

func mix(a, b, t float32) float32 {
	return a*(1-t) + b*t
}

func clamp01(v float32) float32 {
	return min(max(v, 0), 1)
}

func toByte(v float32) byte {
	return byte(clamp01(v)*255 + 0.5)
}
