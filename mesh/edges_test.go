package mesh

import (
	"testing"

	"github.com/golang/geo/r3"
	"go.viam.com/test"
)

func TestNewEdge(t *testing.T) {
	test.That(t, NewEdge(5, 2), test.ShouldResemble, Edge{A: 2, B: 5})
	test.That(t, NewEdge(2, 5), test.ShouldResemble, Edge{A: 2, B: 5})
	test.That(t, NewEdge(3, 3), test.ShouldResemble, Edge{A: 3, B: 3})
}

func TestEdgeCounts(t *testing.T) {
	tetra := MakeTetrahedronMesh(r3.Vector{}, 1)
	counts := tetra.EdgeCounts()

	// a tetrahedron has 6 edges, each shared by exactly 2 faces
	test.That(t, len(counts), test.ShouldEqual, 6)
	for _, n := range counts {
		test.That(t, n, test.ShouldEqual, 2)
	}
}

func TestBoundaryEdges(t *testing.T) {
	tetra := MakeTetrahedronMesh(r3.Vector{}, 1)
	test.That(t, tetra.BoundaryEdges(), test.ShouldBeEmpty)

	// drop the slanted face, leaving a triangular hole rimmed by 3 edges
	open := tetra.Clone()
	open.Indices = open.Indices[:9]
	boundary := open.BoundaryEdges()
	test.That(t, len(boundary), test.ShouldEqual, 3)
	test.That(t, boundary[0], test.ShouldResemble, Edge{A: 1, B: 2})
	test.That(t, boundary[1], test.ShouldResemble, Edge{A: 1, B: 3})
	test.That(t, boundary[2], test.ShouldResemble, Edge{A: 2, B: 3})
}

func TestNonManifoldEdges(t *testing.T) {
	cube := MakeCubeMesh(r3.Vector{}, 2)
	test.That(t, cube.NonManifoldEdges(), test.ShouldBeEmpty)

	// attach a fin to an existing edge so three faces share it
	fin := cube.Clone()
	fin.Vertices = append(fin.Vertices, r3.Vector{X: 5, Y: 5, Z: 5})
	fin.Indices = append(fin.Indices, 0, 1, uint32(len(fin.Vertices)-1))

	nonManifold := fin.NonManifoldEdges()
	test.That(t, len(nonManifold), test.ShouldEqual, 1)
	test.That(t, nonManifold[0], test.ShouldResemble, Edge{A: 0, B: 1})
}

func TestBoundaryLoops(t *testing.T) {
	test.That(t, MakeTetrahedronMesh(r3.Vector{}, 1).BoundaryLoops(), test.ShouldBeEmpty)

	t.Run("triangular hole", func(t *testing.T) {
		open := MakeTetrahedronMesh(r3.Vector{}, 1)
		open.Indices = open.Indices[:9]
		loops := open.BoundaryLoops()
		test.That(t, len(loops), test.ShouldEqual, 1)
		test.That(t, loops[0], test.ShouldResemble, []uint32{1, 2, 3})
	})

	t.Run("quad hole", func(t *testing.T) {
		open := MakeCubeMesh(r3.Vector{}, 1)
		open.Indices = append(open.Indices[:6], open.Indices[12:]...)
		loops := open.BoundaryLoops()
		test.That(t, len(loops), test.ShouldEqual, 1)
		test.That(t, loops[0], test.ShouldResemble, []uint32{4, 5, 6, 7})
	})

	t.Run("two holes", func(t *testing.T) {
		open := MakeTetrahedronMesh(r3.Vector{}, 1)
		open.Indices = open.Indices[:9]
		far := MakeTetrahedronMesh(r3.Vector{X: 10}, 1)
		for _, idx := range far.Indices[:9] {
			open.Indices = append(open.Indices, idx+4)
		}
		open.Vertices = append(open.Vertices, far.Vertices...)

		loops := open.BoundaryLoops()
		test.That(t, len(loops), test.ShouldEqual, 2)
		test.That(t, loops[0], test.ShouldResemble, []uint32{1, 2, 3})
		test.That(t, loops[1], test.ShouldResemble, []uint32{5, 6, 7})
	})
}

func TestIsWatertight(t *testing.T) {
	test.That(t, MakeCubeMesh(r3.Vector{}, 1).IsWatertight(), test.ShouldBeTrue)
	test.That(t, MakeTetrahedronMesh(r3.Vector{}, 1).IsWatertight(), test.ShouldBeTrue)

	test.That(t, NewEmpty().IsWatertight(), test.ShouldBeFalse)

	open := MakeTetrahedronMesh(r3.Vector{}, 1)
	open.Indices = open.Indices[:9]
	test.That(t, open.IsWatertight(), test.ShouldBeFalse)
}
