package mesh

import "math"

// Volume returns the enclosed volume of the mesh in cubic meters, computed
// as the magnitude of the summed signed tetrahedron volumes of each triangle
// against the origin. The result is only meaningful for closed surfaces.
func (m *Mesh) Volume() float64 {
	var signed float64
	for i := 0; i < len(m.Indices); i += 3 {
		p0 := m.Vertices[m.Indices[i]]
		p1 := m.Vertices[m.Indices[i+1]]
		p2 := m.Vertices[m.Indices[i+2]]
		signed += p0.Dot(p1.Cross(p2)) / 6
	}
	return math.Abs(signed)
}

// SurfaceArea returns the total area of the mesh's triangles in square
// meters.
func (m *Mesh) SurfaceArea() float64 {
	var area float64
	for i := 0; i < m.TriangleCount(); i++ {
		area += m.Triangle(i).Area()
	}
	return area
}

// AverageTriangleQuality returns the mean shape quality of the mesh's
// triangles, or 0 for an empty mesh.
func (m *Mesh) AverageTriangleQuality() float64 {
	n := m.TriangleCount()
	if n == 0 {
		return 0
	}
	var sum float64
	for i := 0; i < n; i++ {
		sum += m.Triangle(i).Quality()
	}
	return sum / float64(n)
}

// CountDegenerateTriangles returns how many triangles have an area below
// eps.
func (m *Mesh) CountDegenerateTriangles(eps float64) int {
	var n int
	for i := 0; i < m.TriangleCount(); i++ {
		if m.Triangle(i).Degenerate(eps) {
			n++
		}
	}
	return n
}
