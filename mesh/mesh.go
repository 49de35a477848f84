// Package mesh implements an indexed triangle mesh along with the topology
// and geometry queries used by the reconstruction and repair pipeline.
package mesh

import (
	"math"

	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
)

// ErrInvalidMesh is returned when a mesh fails validation, for example when
// its index buffer is malformed or references vertices that do not exist.
var ErrInvalidMesh = errors.New("invalid mesh")

// Mesh is an indexed triangle mesh. Vertices holds distinct vertex positions
// in meters and Indices references them in counterclockwise triples, one
// triple per triangle.
type Mesh struct {
	Vertices []r3.Vector
	Indices  []uint32
}

// New returns a mesh over the given vertex and index buffers. It returns an
// error if the buffers do not describe a well formed triangle list.
func New(vertices []r3.Vector, indices []uint32) (*Mesh, error) {
	m := &Mesh{Vertices: vertices, Indices: indices}
	if err := m.Validate(); err != nil {
		return nil, err
	}
	return m, nil
}

// NewEmpty returns a mesh with no vertices or triangles.
func NewEmpty() *Mesh {
	return &Mesh{}
}

// VertexCount returns the number of vertices in the mesh.
func (m *Mesh) VertexCount() int {
	return len(m.Vertices)
}

// TriangleCount returns the number of triangles in the mesh.
func (m *Mesh) TriangleCount() int {
	return len(m.Indices) / 3
}

// Triangle materializes the i-th triangle of the mesh.
func (m *Mesh) Triangle(i int) *Triangle {
	return NewTriangle(
		m.Vertices[m.Indices[3*i]],
		m.Vertices[m.Indices[3*i+1]],
		m.Vertices[m.Indices[3*i+2]],
	)
}

// Triangles materializes every triangle of the mesh.
func (m *Mesh) Triangles() []*Triangle {
	triangles := make([]*Triangle, 0, m.TriangleCount())
	for i := 0; i < m.TriangleCount(); i++ {
		triangles = append(triangles, m.Triangle(i))
	}
	return triangles
}

// Clone returns a deep copy of the mesh.
func (m *Mesh) Clone() *Mesh {
	vertices := make([]r3.Vector, len(m.Vertices))
	copy(vertices, m.Vertices)
	indices := make([]uint32, len(m.Indices))
	copy(indices, m.Indices)
	return &Mesh{Vertices: vertices, Indices: indices}
}

// Validate checks that the index buffer length is a multiple of three, that
// every index references an existing vertex, and that every vertex coordinate
// is finite. Errors are wrapped around ErrInvalidMesh.
func (m *Mesh) Validate() error {
	if len(m.Indices)%3 != 0 {
		return errors.Wrapf(ErrInvalidMesh, "index count %d is not a multiple of 3", len(m.Indices))
	}
	for i, idx := range m.Indices {
		if int(idx) >= len(m.Vertices) {
			return errors.Wrapf(ErrInvalidMesh, "index %d at position %d out of range for %d vertices",
				idx, i, len(m.Vertices))
		}
	}
	for i, v := range m.Vertices {
		if math.IsNaN(v.X) || math.IsNaN(v.Y) || math.IsNaN(v.Z) ||
			math.IsInf(v.X, 0) || math.IsInf(v.Y, 0) || math.IsInf(v.Z, 0) {
			return errors.Wrapf(ErrInvalidMesh, "vertex %d has a non-finite coordinate", i)
		}
	}
	return nil
}

// Centroid returns the arithmetic mean of the vertex positions, or the zero
// vector for an empty mesh.
func (m *Mesh) Centroid() r3.Vector {
	if len(m.Vertices) == 0 {
		return r3.Vector{}
	}
	sum := r3.Vector{}
	for _, v := range m.Vertices {
		sum = sum.Add(v)
	}
	return sum.Mul(1. / float64(len(m.Vertices)))
}

// BoundingBox returns the axis aligned bounds of the vertex positions. For an
// empty mesh both corners are the zero vector.
func (m *Mesh) BoundingBox() (r3.Vector, r3.Vector) {
	if len(m.Vertices) == 0 {
		return r3.Vector{}, r3.Vector{}
	}
	min := m.Vertices[0]
	max := m.Vertices[0]
	for _, v := range m.Vertices[1:] {
		min.X = math.Min(min.X, v.X)
		min.Y = math.Min(min.Y, v.Y)
		min.Z = math.Min(min.Z, v.Z)
		max.X = math.Max(max.X, v.X)
		max.Y = math.Max(max.Y, v.Y)
		max.Z = math.Max(max.Z, v.Z)
	}
	return min, max
}

// Scale multiplies every vertex position by the given factor about the
// origin. It is how a calibrated metric scale is applied to reconstructed
// geometry.
func (m *Mesh) Scale(factor float64) {
	for i := range m.Vertices {
		m.Vertices[i] = m.Vertices[i].Mul(factor)
	}
}

// VertexNormals returns a unit normal per vertex, the area weighted average
// of the normals of the triangles sharing it. Vertices no triangle
// references get the zero vector.
func (m *Mesh) VertexNormals() []r3.Vector {
	normals := make([]r3.Vector, len(m.Vertices))
	for i := 0; i < m.TriangleCount(); i++ {
		p0 := m.Vertices[m.Indices[3*i]]
		p1 := m.Vertices[m.Indices[3*i+1]]
		p2 := m.Vertices[m.Indices[3*i+2]]
		// the raw cross product carries twice the triangle's area, which is
		// exactly the weight wanted
		cross := p1.Sub(p0).Cross(p2.Sub(p0))
		for _, idx := range m.Indices[3*i : 3*i+3] {
			normals[idx] = normals[idx].Add(cross)
		}
	}
	for i, n := range normals {
		if n.Norm2() > 0 {
			normals[i] = n.Normalize()
		}
	}
	return normals
}

// Compact drops vertices that no triangle references and rewrites the index
// buffer accordingly. Surviving vertices are kept in order of first
// reference. Repair passes that remove triangles call this so the buffers
// stay tight.
func (m *Mesh) Compact() {
	remap := make(map[uint32]uint32, len(m.Vertices))
	vertices := make([]r3.Vector, 0, len(m.Vertices))
	for _, idx := range m.Indices {
		if _, ok := remap[idx]; !ok {
			remap[idx] = uint32(len(vertices))
			vertices = append(vertices, m.Vertices[idx])
		}
	}
	for i, idx := range m.Indices {
		m.Indices[i] = remap[idx]
	}
	m.Vertices = vertices
}
