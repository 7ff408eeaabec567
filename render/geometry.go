package render

// FloatsPerVertex is the interleaved layout: x, y, u, v.
const FloatsPerVertex = 4

// VertexStride is the byte distance between two vertices.
const VertexStride = FloatsPerVertex * 4

// QuadVertices is drawn as a triangle strip.
const QuadVertices = 4

// Quad holds four interleaved position/texcoord vertices.
type Quad [QuadVertices * FloatsPerVertex]float32

// FullScreen spans clip space. Texture row 0 is the top of the captured
// screen, so v grows downwards.
var FullScreen = Quad{
	-1, -1, 0, 1,
	1, -1, 1, 1,
	-1, 1, 0, 0,
	1, 1, 1, 0,
}

// Vertex returns position and texture coordinate of vertex i.
func (q *Quad) Vertex(i int) (x, y, u, v float32) {
	o := i * FloatsPerVertex
	return q[o], q[o+1], q[o+2], q[o+3]
}
