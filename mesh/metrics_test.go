package mesh

import (
	"testing"

	"github.com/golang/geo/r3"
	"go.viam.com/test"
)

func TestVolume(t *testing.T) {
	cube := MakeCubeMesh(r3.Vector{}, 2)
	test.That(t, cube.Volume(), test.ShouldAlmostEqual, 8)

	tetra := MakeTetrahedronMesh(r3.Vector{}, 1)
	test.That(t, tetra.Volume(), test.ShouldAlmostEqual, 1./6.)

	t.Run("translation invariant for closed surfaces", func(t *testing.T) {
		far := MakeCubeMesh(r3.Vector{X: 100, Y: -30, Z: 7}, 2)
		test.That(t, far.Volume(), test.ShouldAlmostEqual, 8, 1e-9)
	})

	test.That(t, NewEmpty().Volume(), test.ShouldEqual, 0)
}

func TestSurfaceArea(t *testing.T) {
	cube := MakeCubeMesh(r3.Vector{}, 2)
	test.That(t, cube.SurfaceArea(), test.ShouldAlmostEqual, 24)

	single := makeSingleTriangleMesh()
	test.That(t, single.SurfaceArea(), test.ShouldAlmostEqual, 0.5)
}

func TestAverageTriangleQuality(t *testing.T) {
	test.That(t, NewEmpty().AverageTriangleQuality(), test.ShouldEqual, 0)

	cube := MakeCubeMesh(r3.Vector{}, 1)
	quality := cube.AverageTriangleQuality()
	test.That(t, quality, test.ShouldBeGreaterThan, 0.5)
	test.That(t, quality, test.ShouldBeLessThanOrEqualTo, 1)
}

func TestCountDegenerateTriangles(t *testing.T) {
	cube := MakeCubeMesh(r3.Vector{}, 1)
	test.That(t, cube.CountDegenerateTriangles(1e-10), test.ShouldEqual, 0)

	bad := cube.Clone()
	bad.Indices = append(bad.Indices, 0, 0, 1)
	bad.Indices = append(bad.Indices, 2, 2, 2)
	test.That(t, bad.CountDegenerateTriangles(1e-10), test.ShouldEqual, 2)
}
