package mesh

import (
	"math"

	"github.com/golang/geo/r3"
)

// Triangle is a single triangle in 3D space, with its unit normal cached at
// construction time.
type Triangle struct {
	p0 r3.Vector
	p1 r3.Vector
	p2 r3.Vector

	normal r3.Vector
}

// NewTriangle creates a triangle from its three corner points, ordered
// counterclockwise when viewed from the outside.
func NewTriangle(p0, p1, p2 r3.Vector) *Triangle {
	return &Triangle{
		p0:     p0,
		p1:     p1,
		p2:     p2,
		normal: PlaneNormal(p0, p1, p2),
	}
}

// PlaneNormal returns the unit normal of the plane through three points. The
// zero vector is returned for collinear points.
func PlaneNormal(p0, p1, p2 r3.Vector) r3.Vector {
	cross := p1.Sub(p0).Cross(p2.Sub(p0))
	if cross.Norm2() == 0 {
		return r3.Vector{}
	}
	return cross.Normalize()
}

// Points returns the three corner points of the triangle.
func (t *Triangle) Points() []r3.Vector {
	return []r3.Vector{t.p0, t.p1, t.p2}
}

// Normal returns the cached unit normal of the triangle.
func (t *Triangle) Normal() r3.Vector {
	return t.normal
}

// Centroid returns the mean of the triangle's corner points.
func (t *Triangle) Centroid() r3.Vector {
	return t.p0.Add(t.p1).Add(t.p2).Mul(1. / 3.)
}

// Area returns the area of the triangle.
func (t *Triangle) Area() float64 {
	return t.p1.Sub(t.p0).Cross(t.p2.Sub(t.p0)).Norm() / 2
}

// Quality returns a shape measure in [0,1], where an equilateral triangle
// scores 1 and a degenerate sliver scores 0. It is the triangle's area
// normalized by the sum of its squared edge lengths.
func (t *Triangle) Quality() float64 {
	edgeSum := t.p1.Sub(t.p0).Norm2() + t.p2.Sub(t.p1).Norm2() + t.p0.Sub(t.p2).Norm2()
	if edgeSum == 0 {
		return 0
	}
	return 4 * math.Sqrt(3) * t.Area() / edgeSum
}

// Degenerate reports whether the triangle's area falls below eps, which
// covers repeated corner points and collinear corners.
func (t *Triangle) Degenerate(eps float64) bool {
	return t.Area() < eps
}
