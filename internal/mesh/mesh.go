// Package mesh holds the vertex layout and the fixed geometry drawn by the
// session, and packs it into one upload blob.
package mesh

import (
	"bytes"
	"encoding/binary"

	"github.com/cockroachdb/errors"
	"github.com/go-gl/mathgl/mgl32"
)

type Vertex struct {
	Position mgl32.Vec3
	Color    mgl32.Vec3
	TexCoord mgl32.Vec2
}

// VertexStride is the packed size of a Vertex in bytes.
const VertexStride = 32

// Attribute describes one float vector inside a vertex.
type Attribute struct {
	Location   int
	Components int
	Offset     int
}

// VertexAttributes matches the vertex shader's inputs.
var VertexAttributes = []Attribute{
	{Location: 0, Components: 3, Offset: 0},
	{Location: 1, Components: 3, Offset: 12},
	{Location: 2, Components: 2, Offset: 24},
}

// Mesh is an indexed triangle list.
type Mesh struct {
	Vertices []Vertex
	Indices  []uint32
}

// Triangle is the single vertex-colored triangle the session draws.
func Triangle() Mesh {
	return Mesh{
		Vertices: []Vertex{
			{Position: mgl32.Vec3{-1, -1, 0}, Color: mgl32.Vec3{1, 1, 0}},
			{Position: mgl32.Vec3{1, -1, 0}, Color: mgl32.Vec3{1, 0, 1}},
			{Position: mgl32.Vec3{0, 1, 0}, Color: mgl32.Vec3{0, 1, 1}},
		},
		Indices: []uint32{0, 1, 2},
	}
}

func (m Mesh) VertexBytes() int { return len(m.Vertices) * VertexStride }
func (m Mesh) IndexBytes() int  { return len(m.Indices) * 4 }

// IndexOffset is where the index data starts inside Encode's output.
func (m Mesh) IndexOffset() int { return m.VertexBytes() }

func (m Mesh) Size() int { return m.VertexBytes() + m.IndexBytes() }

func (m Mesh) Validate() error {
	if len(m.Vertices) == 0 {
		return errors.New("mesh has no vertices")
	}
	if len(m.Indices) == 0 || len(m.Indices)%3 != 0 {
		return errors.Newf("mesh has %d indices, want a non-zero multiple of 3", len(m.Indices))
	}
	for i, index := range m.Indices {
		if int(index) >= len(m.Vertices) {
			return errors.Newf("index %d refers to vertex %d of %d", i, index, len(m.Vertices))
		}
	}
	return nil
}

// Encode writes the vertices followed by the indices in order.
func (m Mesh) Encode(order binary.ByteOrder) ([]byte, error) {
	if err := m.Validate(); err != nil {
		return nil, err
	}

	buf := bytes.NewBuffer(make([]byte, 0, m.Size()))
	if err := binary.Write(buf, order, m.Vertices); err != nil {
		return nil, errors.Wrap(err, "encode vertices")
	}
	if err := binary.Write(buf, order, m.Indices); err != nil {
		return nil, errors.Wrap(err, "encode indices")
	}
	return buf.Bytes(), nil
}
