package meshrepair

import (
	"testing"

	"github.com/edaniels/golog"
	"github.com/golang/geo/r3"
	"go.viam.com/test"

	"github.com/volumetriclabs/scancore/mesh"
	"github.com/volumetriclabs/scancore/pointcloud"
	"github.com/volumetriclabs/scancore/reconstruct"
)

func TestSmoothConfigValidate(t *testing.T) {
	test.That(t, DefaultSmoothConfig().Validate(), test.ShouldBeNil)

	for _, tc := range []struct {
		name   string
		mutate func(*SmoothConfig)
		substr string
	}{
		{"zero iterations", func(c *SmoothConfig) { c.Iterations = 0 }, "iterations"},
		{"zero lambda", func(c *SmoothConfig) { c.Lambda = 0 }, "lambda"},
		{"negative lambda", func(c *SmoothConfig) { c.Lambda = -0.3 }, "lambda"},
		{"positive mu", func(c *SmoothConfig) { c.Mu = 0.53 }, "mu"},
		{"zero mu", func(c *SmoothConfig) { c.Mu = 0 }, "mu"},
		{"mu magnitude below lambda", func(c *SmoothConfig) { c.Mu = -0.4 }, "magnitude"},
	} {
		t.Run(tc.name, func(t *testing.T) {
			cfg := DefaultSmoothConfig()
			tc.mutate(&cfg)
			err := cfg.Validate()
			test.That(t, err, test.ShouldNotBeNil)
			test.That(t, err.Error(), test.ShouldContainSubstring, tc.substr)
		})
	}
}

func TestSmoothTaubinRejectsConfig(t *testing.T) {
	cfg := DefaultSmoothConfig()
	cfg.Iterations = 0
	out, err := SmoothTaubin(mesh.MakeCubeMesh(r3.Vector{}, 1), cfg)
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, out, test.ShouldBeNil)
}

func TestSmoothTaubinEmptyMesh(t *testing.T) {
	out, err := SmoothTaubin(mesh.NewEmpty(), DefaultSmoothConfig())
	test.That(t, err, test.ShouldBeNil)
	test.That(t, out.VertexCount(), test.ShouldEqual, 0)
	test.That(t, out.TriangleCount(), test.ShouldEqual, 0)
}

func TestSmoothTaubinFlatSheetStaysFlat(t *testing.T) {
	quad, err := mesh.New(
		[]r3.Vector{{}, {X: 1}, {X: 1, Y: 1}, {Y: 1}},
		[]uint32{0, 1, 2, 0, 2, 3},
	)
	test.That(t, err, test.ShouldBeNil)

	out, err := SmoothTaubin(quad, DefaultSmoothConfig())
	test.That(t, err, test.ShouldBeNil)
	// neighbor centroids of coplanar vertices stay in the plane, so the
	// sheet may shrink but never bends
	for _, v := range out.Vertices {
		test.That(t, v.Z, test.ShouldEqual, 0)
	}
	test.That(t, out.Vertices, test.ShouldNotResemble, quad.Vertices)
}

func TestSmoothTaubinOrphanVertexUnmoved(t *testing.T) {
	tetra := mesh.MakeTetrahedronMesh(r3.Vector{}, 1)
	vertices := append(append([]r3.Vector(nil), tetra.Vertices...), r3.Vector{X: 5, Y: 5, Z: 5})
	m, err := mesh.New(vertices, tetra.Indices)
	test.That(t, err, test.ShouldBeNil)

	out, err := SmoothTaubin(m, DefaultSmoothConfig())
	test.That(t, err, test.ShouldBeNil)
	test.That(t, out.Vertices[4], test.ShouldResemble, r3.Vector{X: 5, Y: 5, Z: 5})
	test.That(t, out.Vertices[0], test.ShouldNotResemble, m.Vertices[0])
}

func TestSmoothTaubinPreservesVolume(t *testing.T) {
	logger := golog.NewTestLogger(t)

	// a blocky voxel surface is the worst case for shrinkage, making it a
	// good probe for the lambda/mu volume guarantee
	cloud := pointcloud.MakeSolidBlockCloud(32, r3.Vector{}, 1.0)
	blocky, err := reconstruct.ReconstructVoxel(cloud, reconstruct.VoxelConfig{
		Resolution:         16,
		OccupancyThreshold: 0.5,
		PaddingCells:       2,
	}, logger)
	test.That(t, err, test.ShouldBeNil)
	// sample planes spill past the max faces and dilation pads the min
	// faces, so the stepped surface encloses 5400 sixteenth-size cells
	test.That(t, blocky.Volume(), test.ShouldAlmostEqual, 1.318359375, 1e-9)
	test.That(t, blocky.IsWatertight(), test.ShouldBeTrue)

	smoothed, err := SmoothTaubin(blocky, DefaultSmoothConfig())
	test.That(t, err, test.ShouldBeNil)

	test.That(t, smoothed.VertexCount(), test.ShouldEqual, blocky.VertexCount())
	test.That(t, smoothed.Indices, test.ShouldResemble, blocky.Indices)
	test.That(t, smoothed.Vertices, test.ShouldNotResemble, blocky.Vertices)
	test.That(t, smoothed.IsWatertight(), test.ShouldBeTrue)
	// within two percent of the blocky volume
	test.That(t, smoothed.Volume(), test.ShouldAlmostEqual, blocky.Volume(), 0.0264)
}

func TestSmoothTaubinConvergesWithIterations(t *testing.T) {
	logger := golog.NewTestLogger(t)
	cloud := pointcloud.MakeSolidBlockCloud(16, r3.Vector{}, 1.0)
	blocky, err := reconstruct.ReconstructVoxel(cloud, reconstruct.VoxelConfig{
		Resolution:         8,
		OccupancyThreshold: 0.5,
		PaddingCells:       2,
	}, logger)
	test.That(t, err, test.ShouldBeNil)

	one, err := SmoothTaubin(blocky, SmoothConfig{Iterations: 1, Lambda: 0.5, Mu: -0.53})
	test.That(t, err, test.ShouldBeNil)
	five, err := SmoothTaubin(blocky, SmoothConfig{Iterations: 5, Lambda: 0.5, Mu: -0.53})
	test.That(t, err, test.ShouldBeNil)

	test.That(t, one.Vertices, test.ShouldNotResemble, five.Vertices)
	test.That(t, five.IsWatertight(), test.ShouldBeTrue)
}
