package mesh

import (
	"github.com/golang/geo/r3"
)

// MakeCubeMesh creates a watertight axis aligned cube of the given edge
// length centered at center, triangulated with outward facing windings.
func MakeCubeMesh(center r3.Vector, size float64) *Mesh {
	h := size / 2
	vertices := []r3.Vector{
		{X: -h, Y: -h, Z: -h},
		{X: h, Y: -h, Z: -h},
		{X: h, Y: h, Z: -h},
		{X: -h, Y: h, Z: -h},
		{X: -h, Y: -h, Z: h},
		{X: h, Y: -h, Z: h},
		{X: h, Y: h, Z: h},
		{X: -h, Y: h, Z: h},
	}
	for i := range vertices {
		vertices[i] = vertices[i].Add(center)
	}
	indices := []uint32{
		0, 3, 2, 0, 2, 1, // bottom
		4, 5, 6, 4, 6, 7, // top
		0, 1, 5, 0, 5, 4, // front
		3, 7, 6, 3, 6, 2, // back
		0, 4, 7, 0, 7, 3, // left
		1, 2, 6, 1, 6, 5, // right
	}
	return &Mesh{Vertices: vertices, Indices: indices}
}

// MakeTetrahedronMesh creates a watertight tetrahedron with one corner at
// origin and legs of the given length along each axis.
func MakeTetrahedronMesh(origin r3.Vector, leg float64) *Mesh {
	vertices := []r3.Vector{
		origin,
		origin.Add(r3.Vector{X: leg}),
		origin.Add(r3.Vector{Y: leg}),
		origin.Add(r3.Vector{Z: leg}),
	}
	indices := []uint32{
		0, 2, 1,
		0, 3, 2,
		0, 1, 3,
		1, 2, 3,
	}
	return &Mesh{Vertices: vertices, Indices: indices}
}
