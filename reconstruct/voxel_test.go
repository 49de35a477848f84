package reconstruct

import (
	"path/filepath"
	"testing"

	"github.com/edaniels/golog"
	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
	"go.viam.com/test"

	"github.com/volumetriclabs/scancore/mesh"
	"github.com/volumetriclabs/scancore/pointcloud"
)

func TestVoxelConfigValidate(t *testing.T) {
	test.That(t, DefaultVoxelConfig().Validate(), test.ShouldBeNil)

	for _, tc := range []struct {
		name   string
		mutate func(*VoxelConfig)
		substr string
	}{
		{"resolution too small", func(c *VoxelConfig) { c.Resolution = 1 }, "resolution"},
		{"resolution too large", func(c *VoxelConfig) { c.Resolution = 1024 }, "resolution"},
		{"threshold zero", func(c *VoxelConfig) { c.OccupancyThreshold = 0 }, "threshold"},
		{"threshold one", func(c *VoxelConfig) { c.OccupancyThreshold = 1 }, "threshold"},
		{"negative padding", func(c *VoxelConfig) { c.PaddingCells = -1 }, "padding"},
	} {
		t.Run(tc.name, func(t *testing.T) {
			cfg := DefaultVoxelConfig()
			tc.mutate(&cfg)
			err := cfg.Validate()
			test.That(t, err, test.ShouldNotBeNil)
			test.That(t, err.Error(), test.ShouldContainSubstring, tc.substr)
		})
	}
}

func TestReconstructVoxelEmptyCloud(t *testing.T) {
	logger := golog.NewTestLogger(t)
	_, err := ReconstructVoxel(pointcloud.New(), DefaultVoxelConfig(), logger)
	test.That(t, errors.Is(err, pointcloud.ErrEmptyCloud), test.ShouldBeTrue)
}

func TestReconstructVoxelSolidBlock(t *testing.T) {
	logger := golog.NewTestLogger(t)
	// 32 samples per axis drop 8,8,8,7 planes into the four block cells and
	// the max-face plane one cell past them. Every block cell normalizes well
	// above the threshold, so the dilation pass grows exactly one plate of
	// cells on each face.
	cloud := pointcloud.MakeSolidBlockCloud(32, r3.Vector{}, 1.0)
	cfg := VoxelConfig{Resolution: 4, OccupancyThreshold: 0.5, PaddingCells: 2}

	out, err := ReconstructVoxel(cloud, cfg, logger)
	test.That(t, err, test.ShouldBeNil)

	// 4^3 core plus 6 dilated 4x4 face plates is 160 cells with 384
	// adjacencies, leaving 192 exposed quads.
	test.That(t, out.TriangleCount(), test.ShouldEqual, 384)
	test.That(t, out.IsWatertight(), test.ShouldBeTrue)
	test.That(t, out.Volume(), test.ShouldAlmostEqual, 160*0.25*0.25*0.25, 1e-9)
}

func TestReconstructVoxelDilation(t *testing.T) {
	logger := golog.NewTestLogger(t)
	// two dense clusters four cells apart: dilation must grow each into a
	// seven cell cross without cascading further or merging them
	cloud := pointcloud.New()
	for i := 0; i < 9; i++ {
		cloud.Add(r3.Vector{X: 0.1, Y: 0.1, Z: 0.1})
		cloud.Add(r3.Vector{X: 0.9, Y: 0.1, Z: 0.1})
	}
	cfg := VoxelConfig{Resolution: 4, OccupancyThreshold: 0.5, PaddingCells: 2}

	out, err := ReconstructVoxel(cloud, cfg, logger)
	test.That(t, err, test.ShouldBeNil)

	// each cross exposes 30 quads
	test.That(t, out.TriangleCount(), test.ShouldEqual, 120)
	test.That(t, out.IsWatertight(), test.ShouldBeTrue)
	voxelVolume := 0.2 * 0.2 * 0.2
	test.That(t, out.Volume(), test.ShouldAlmostEqual, 14*voxelVolume, 1e-9)
}

func TestReconstructVoxelCoincidentPoints(t *testing.T) {
	logger := golog.NewTestLogger(t)
	cloud := pointcloud.New()
	for i := 0; i < 50; i++ {
		cloud.Add(r3.Vector{X: 0.3, Y: 0.3, Z: 0.3})
	}
	cfg := VoxelConfig{Resolution: 4, OccupancyThreshold: 0.5, PaddingCells: 1}

	out, err := ReconstructVoxel(cloud, cfg, logger)
	test.That(t, err, test.ShouldBeNil)

	// the degenerate bounding box falls back to the minimum cell size: one
	// occupied cell dilated into a cross
	test.That(t, out.TriangleCount(), test.ShouldEqual, 60)
	test.That(t, out.IsWatertight(), test.ShouldBeTrue)
	voxelVolume := minVoxelSize * minVoxelSize * minVoxelSize
	test.That(t, out.Volume(), test.ShouldAlmostEqual, 7*voxelVolume, 1e-15)
}

func TestReconstructVoxelSphere(t *testing.T) {
	logger := golog.NewTestLogger(t)
	center := r3.Vector{X: 1, Y: -2, Z: 0.5}
	cloud := pointcloud.MakeSphereCloud(4000, center, 0.3)
	cfg := VoxelConfig{Resolution: 8, OccupancyThreshold: 0.2, PaddingCells: 2}

	out, err := ReconstructVoxel(cloud, cfg, logger)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, out.TriangleCount(), test.ShouldBeGreaterThan, 100)
	test.That(t, out.Validate(), test.ShouldBeNil)

	// every surface vertex stays within a couple of cells of the shell
	for _, v := range out.Vertices {
		dist := v.Sub(center).Norm()
		test.That(t, dist, test.ShouldBeBetween, 0.1, 0.5)
	}

	fn := filepath.Join(t.TempDir(), "shell.ply")
	test.That(t, out.WriteToFile(fn), test.ShouldBeNil)
	got, err := mesh.NewFromFile(fn, logger)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, got.VertexCount(), test.ShouldEqual, out.VertexCount())
	test.That(t, got.TriangleCount(), test.ShouldEqual, out.TriangleCount())
	test.That(t, got.Volume(), test.ShouldAlmostEqual, out.Volume(), 1e-4)
}

func TestReconstructVoxelDeterministic(t *testing.T) {
	logger := golog.NewTestLogger(t)
	cloud := pointcloud.MakeSphereCloud(500, r3.Vector{}, 0.25)
	cfg := VoxelConfig{Resolution: 6, OccupancyThreshold: 0.3, PaddingCells: 1}

	first, err := ReconstructVoxel(cloud, cfg, logger)
	test.That(t, err, test.ShouldBeNil)
	second, err := ReconstructVoxel(cloud, cfg, logger)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, second, test.ShouldResemble, first)
}
