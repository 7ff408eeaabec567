package effect

import (
	"fmt"
	"strconv"
	"strings"
)

// Attribute and uniform names shared by the program and the devices.
const (
	AttribPosition = "aPos"
	AttribTexCoord = "aTex"
	UniformTexture = "uTex"
	UniformBoost   = "uBoost"
)

const vertexSource = `#version 330 core
layout(location = 0) in vec2 aPos;
layout(location = 1) in vec2 aTex;
out vec2 vTex;
void main() {
    vTex = aTex;
    gl_Position = vec4(aPos, 0.0, 1.0);
}
`

const fragmentTemplate = `#version 330 core
in vec2 vTex;
uniform sampler2D uTex;
uniform float uBoost;
out vec4 fragColor;
const vec3 targetColor = vec3(%s, %s, %s);
const float radius = %s;
void main() {
    vec4 c = texture(uTex, vTex);
    float d = distance(c.rgb, targetColor);
    float mask = 1.0 - smoothstep(0.0, radius, d);
    vec3 boosted = c.rgb;
    boosted.g = clamp(boosted.g + uBoost * mask, 0.0, 1.0);
    fragColor = vec4(mix(c.rgb, boosted, mask), c.a);
}
`

// VertexSource passes position and texture coordinate straight through.
func VertexSource() string {
	return vertexSource
}

// FragmentSource returns the GLSL fragment shader with the target colour and
// radius of h baked in. Boost is set per draw through uBoost.
func (h Highlight) FragmentSource() string {
	return fmt.Sprintf(fragmentTemplate,
		glslFloat(h.Target[0]),
		glslFloat(h.Target[1]),
		glslFloat(h.Target[2]),
		glslFloat(h.Radius),
	)
}

func glslFloat(v float32) string {
	s := strconv.FormatFloat(float64(v), 'f', -1, 32)
	if !strings.ContainsAny(s, ".e") {
		s += ".0"
	}
	return s
}
