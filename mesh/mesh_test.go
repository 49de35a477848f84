package mesh

import (
	"math"
	"testing"

	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
	"go.viam.com/test"
)

func makeSingleTriangleMesh() *Mesh {
	return &Mesh{
		Vertices: []r3.Vector{
			{X: 0, Y: 0, Z: 0},
			{X: 1, Y: 0, Z: 0},
			{X: 0, Y: 1, Z: 0},
		},
		Indices: []uint32{0, 1, 2},
	}
}

func TestNewMesh(t *testing.T) {
	m, err := New(
		[]r3.Vector{{X: 0, Y: 0, Z: 0}, {X: 1, Y: 0, Z: 0}, {X: 0, Y: 1, Z: 0}},
		[]uint32{0, 1, 2},
	)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, m.VertexCount(), test.ShouldEqual, 3)
	test.That(t, m.TriangleCount(), test.ShouldEqual, 1)

	empty := NewEmpty()
	test.That(t, empty.VertexCount(), test.ShouldEqual, 0)
	test.That(t, empty.TriangleCount(), test.ShouldEqual, 0)
	test.That(t, empty.Validate(), test.ShouldBeNil)
}

func TestValidate(t *testing.T) {
	t.Run("index count not a multiple of three", func(t *testing.T) {
		m := makeSingleTriangleMesh()
		m.Indices = append(m.Indices, 0)
		err := m.Validate()
		test.That(t, err, test.ShouldNotBeNil)
		test.That(t, errors.Is(err, ErrInvalidMesh), test.ShouldBeTrue)
		test.That(t, err.Error(), test.ShouldContainSubstring, "multiple of 3")
	})

	t.Run("index out of range", func(t *testing.T) {
		_, err := New(
			[]r3.Vector{{X: 0, Y: 0, Z: 0}, {X: 1, Y: 0, Z: 0}, {X: 0, Y: 1, Z: 0}},
			[]uint32{0, 1, 7},
		)
		test.That(t, err, test.ShouldNotBeNil)
		test.That(t, errors.Is(err, ErrInvalidMesh), test.ShouldBeTrue)
		test.That(t, err.Error(), test.ShouldContainSubstring, "out of range")
	})

	t.Run("non-finite vertex", func(t *testing.T) {
		m := makeSingleTriangleMesh()
		m.Vertices[1].Y = math.NaN()
		err := m.Validate()
		test.That(t, errors.Is(err, ErrInvalidMesh), test.ShouldBeTrue)

		m = makeSingleTriangleMesh()
		m.Vertices[2].Z = math.Inf(1)
		err = m.Validate()
		test.That(t, errors.Is(err, ErrInvalidMesh), test.ShouldBeTrue)
	})
}

func TestTriangleAccess(t *testing.T) {
	cube := MakeCubeMesh(r3.Vector{}, 2)
	test.That(t, cube.TriangleCount(), test.ShouldEqual, 12)
	test.That(t, len(cube.Triangles()), test.ShouldEqual, 12)

	tri := cube.Triangle(0)
	test.That(t, len(tri.Points()), test.ShouldEqual, 3)
	// first listed face is the bottom of the cube
	test.That(t, tri.Normal().Z, test.ShouldAlmostEqual, -1)
}

func TestClone(t *testing.T) {
	original := MakeTetrahedronMesh(r3.Vector{}, 1)
	clone := original.Clone()

	clone.Vertices[0] = r3.Vector{X: 100, Y: 100, Z: 100}
	clone.Indices[0] = 3

	test.That(t, original.Vertices[0], test.ShouldResemble, r3.Vector{})
	test.That(t, original.Indices[0], test.ShouldEqual, uint32(0))
}

func TestCentroidAndBounds(t *testing.T) {
	center := r3.Vector{X: 1, Y: 2, Z: 3}
	cube := MakeCubeMesh(center, 2)

	centroid := cube.Centroid()
	test.That(t, centroid.X, test.ShouldAlmostEqual, center.X)
	test.That(t, centroid.Y, test.ShouldAlmostEqual, center.Y)
	test.That(t, centroid.Z, test.ShouldAlmostEqual, center.Z)

	min, max := cube.BoundingBox()
	test.That(t, min.X, test.ShouldAlmostEqual, 0)
	test.That(t, max.X, test.ShouldAlmostEqual, 2)
	test.That(t, min.Z, test.ShouldAlmostEqual, 2)
	test.That(t, max.Z, test.ShouldAlmostEqual, 4)

	emptyMin, emptyMax := NewEmpty().BoundingBox()
	test.That(t, emptyMin, test.ShouldResemble, r3.Vector{})
	test.That(t, emptyMax, test.ShouldResemble, r3.Vector{})
}

func TestScale(t *testing.T) {
	cube := MakeCubeMesh(r3.Vector{}, 1)
	test.That(t, cube.Volume(), test.ShouldAlmostEqual, 1)

	cube.Scale(2)
	test.That(t, cube.Volume(), test.ShouldAlmostEqual, 8)
	test.That(t, cube.IsWatertight(), test.ShouldBeTrue)
}

func TestVertexNormals(t *testing.T) {
	t.Run("single triangle", func(t *testing.T) {
		m := makeSingleTriangleMesh()
		m.Vertices = append(m.Vertices, r3.Vector{X: 9, Y: 9, Z: 9})

		normals := m.VertexNormals()
		test.That(t, len(normals), test.ShouldEqual, 4)
		for _, n := range normals[:3] {
			test.That(t, n, test.ShouldResemble, r3.Vector{Z: 1})
		}
		// the stray vertex has no triangle to take a normal from
		test.That(t, normals[3], test.ShouldResemble, r3.Vector{})
	})

	t.Run("cube normals point outward", func(t *testing.T) {
		cube := MakeCubeMesh(r3.Vector{}, 2)
		for i, n := range cube.VertexNormals() {
			test.That(t, n.Norm(), test.ShouldAlmostEqual, 1)
			test.That(t, n.Dot(cube.Vertices[i]), test.ShouldBeGreaterThan, 0)
		}
	})

	t.Run("tetrahedron normals point outward", func(t *testing.T) {
		tet := MakeTetrahedronMesh(r3.Vector{}, 1)
		centroid := tet.Centroid()
		for i, n := range tet.VertexNormals() {
			test.That(t, n.Norm(), test.ShouldAlmostEqual, 1)
			test.That(t, n.Dot(tet.Vertices[i].Sub(centroid)), test.ShouldBeGreaterThan, 0)
		}
	})
}

func TestCompact(t *testing.T) {
	m := makeSingleTriangleMesh()
	// two stray vertices nothing references
	m.Vertices = append(m.Vertices, r3.Vector{X: 9, Y: 9, Z: 9}, r3.Vector{X: 8, Y: 8, Z: 8})

	m.Compact()
	test.That(t, m.VertexCount(), test.ShouldEqual, 3)
	test.That(t, m.TriangleCount(), test.ShouldEqual, 1)
	test.That(t, m.Validate(), test.ShouldBeNil)

	t.Run("compact preserves geometry", func(t *testing.T) {
		cube := MakeCubeMesh(r3.Vector{}, 2)
		volumeBefore := cube.Volume()
		cube.Vertices = append(cube.Vertices, r3.Vector{X: 50, Y: 0, Z: 0})
		cube.Compact()
		test.That(t, cube.VertexCount(), test.ShouldEqual, 8)
		test.That(t, cube.Volume(), test.ShouldAlmostEqual, volumeBefore)
	})
}
