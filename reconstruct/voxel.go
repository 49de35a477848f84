package reconstruct

import (
	"math"

	"github.com/edaniels/golog"
	"github.com/golang/geo/r3"
	"github.com/pkg/errors"

	"github.com/volumetriclabs/scancore/mesh"
	"github.com/volumetriclabs/scancore/pointcloud"
)

// minVoxelSize is substituted when every input point is coincident and the
// bounding box has no extent.
const minVoxelSize = 1e-3

// VoxelConfig configures occupancy-grid reconstruction.
type VoxelConfig struct {
	// Resolution is the number of grid cells along the longest bounding box
	// axis.
	Resolution int
	// OccupancyThreshold is the normalized cell value at or above which a cell
	// counts as solid. Must be in (0, 1).
	OccupancyThreshold float64
	// PaddingCells is how many empty cells surround the bounding box so the
	// extracted surface never touches the grid boundary.
	PaddingCells int
	// EnableSmoothing asks the caller to run a smoothing pass on the blocky
	// result. Voxelization itself never smooths.
	EnableSmoothing bool
}

// DefaultVoxelConfig returns the voxel settings used by the scanning pipeline
// when nothing is overridden.
func DefaultVoxelConfig() VoxelConfig {
	return VoxelConfig{
		Resolution:         64,
		OccupancyThreshold: 0.5,
		PaddingCells:       2,
		EnableSmoothing:    true,
	}
}

// Validate checks the configuration for values that can never work.
func (cfg VoxelConfig) Validate() error {
	if cfg.Resolution < 2 || cfg.Resolution > 512 {
		return errors.Errorf("voxel resolution must be in [2, 512], got %d", cfg.Resolution)
	}
	if cfg.OccupancyThreshold <= 0 || cfg.OccupancyThreshold >= 1 {
		return errors.Errorf("occupancy threshold must be in (0, 1), got %f", cfg.OccupancyThreshold)
	}
	if cfg.PaddingCells < 0 {
		return errors.Errorf("padding cells must be non-negative, got %d", cfg.PaddingCells)
	}
	return nil
}

// voxelGrid is a dense cubic occupancy grid. Cell (i, j, k) spans
// [origin + i*size, origin + (i+1)*size) along each axis.
type voxelGrid struct {
	values    []float64
	cellsPer  int
	origin    r3.Vector
	voxelSize float64
}

func newVoxelGrid(cellsPer int, origin r3.Vector, voxelSize float64) *voxelGrid {
	return &voxelGrid{
		values:    make([]float64, cellsPer*cellsPer*cellsPer),
		cellsPer:  cellsPer,
		origin:    origin,
		voxelSize: voxelSize,
	}
}

func (vg *voxelGrid) index(i, j, k int) int {
	return i + vg.cellsPer*(j+vg.cellsPer*k)
}

func (vg *voxelGrid) contains(i, j, k int) bool {
	return i >= 0 && j >= 0 && k >= 0 && i < vg.cellsPer && j < vg.cellsPer && k < vg.cellsPer
}

func (vg *voxelGrid) at(i, j, k int) float64 {
	if !vg.contains(i, j, k) {
		return 0
	}
	return vg.values[vg.index(i, j, k)]
}

// cellForPoint clamps so points exactly on the max bound land in the last cell.
func (vg *voxelGrid) cellForPoint(p r3.Vector) (int, int, int) {
	clampCell := func(v float64) int {
		c := int(math.Floor(v))
		if c < 0 {
			c = 0
		}
		if c >= vg.cellsPer {
			c = vg.cellsPer - 1
		}
		return c
	}
	return clampCell((p.X - vg.origin.X) / vg.voxelSize),
		clampCell((p.Y - vg.origin.Y) / vg.voxelSize),
		clampCell((p.Z - vg.origin.Z) / vg.voxelSize)
}

var sixNeighborOffsets = [6][3]int{
	{1, 0, 0}, {-1, 0, 0},
	{0, 1, 0}, {0, -1, 0},
	{0, 0, 1}, {0, 0, -1},
}

// voxelFaceCorners lists, per neighbor direction above, the four cell-corner
// offsets of the exposed face in counterclockwise order seen from outside.
var voxelFaceCorners = [6][4][3]int{
	{{1, 0, 0}, {1, 1, 0}, {1, 1, 1}, {1, 0, 1}}, // +X
	{{0, 0, 0}, {0, 0, 1}, {0, 1, 1}, {0, 1, 0}}, // -X
	{{0, 1, 0}, {0, 1, 1}, {1, 1, 1}, {1, 1, 0}}, // +Y
	{{0, 0, 0}, {1, 0, 0}, {1, 0, 1}, {0, 0, 1}}, // -Y
	{{0, 0, 1}, {1, 0, 1}, {1, 1, 1}, {0, 1, 1}}, // +Z
	{{0, 0, 0}, {0, 1, 0}, {1, 1, 0}, {1, 0, 0}}, // -Z
}

// ReconstructVoxel rasterizes the cloud into an occupancy grid, closes small
// gaps with one dilation pass, and extracts the boundary between solid and
// empty cells as a triangle mesh. The result is closed by construction: every
// emitted face separates exactly one solid cell from one non-solid cell, and
// faces share lattice vertices with their neighbors.
func ReconstructVoxel(cloud *pointcloud.PointCloud, cfg VoxelConfig, logger golog.Logger) (*mesh.Mesh, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if cloud.Size() == 0 {
		return nil, errors.Wrap(pointcloud.ErrEmptyCloud, "voxel reconstruction")
	}

	meta := cloud.MetaData()
	extents := meta.Extents()
	span := math.Max(extents.X, math.Max(extents.Y, extents.Z))
	voxelSize := span / float64(cfg.Resolution)
	if voxelSize <= 0 {
		voxelSize = minVoxelSize
	}

	cellsPer := cfg.Resolution + 2*cfg.PaddingCells
	origin := r3.Vector{
		X: meta.MinX - float64(cfg.PaddingCells)*voxelSize,
		Y: meta.MinY - float64(cfg.PaddingCells)*voxelSize,
		Z: meta.MinZ - float64(cfg.PaddingCells)*voxelSize,
	}
	grid := newVoxelGrid(cellsPer, origin, voxelSize)

	occupied := 0
	for n := 0; n < cloud.Size(); n++ {
		i, j, k := grid.cellForPoint(cloud.At(n))
		idx := grid.index(i, j, k)
		if grid.values[idx] == 0 {
			occupied++
		}
		grid.values[idx]++
	}

	maxCount := 0.0
	for _, v := range grid.values {
		if v > maxCount {
			maxCount = v
		}
	}
	for i := range grid.values {
		grid.values[i] /= maxCount
	}

	dilateOccupancy(grid)

	out, err := extractBoundaryFaces(grid, cfg.OccupancyThreshold)
	if err != nil {
		return nil, err
	}
	logger.Debugf("voxelized %d points into %d occupied cells, extracted %d triangles",
		cloud.Size(), occupied, out.TriangleCount())
	return out, nil
}

// dilateOccupancy runs one 6-connected morphological pass: a cell next to a
// solid cell valued at least 0.5 takes on 0.9 of the strongest such neighbor.
// Reads come from a snapshot so the pass cannot cascade.
func dilateOccupancy(grid *voxelGrid) {
	snapshot := make([]float64, len(grid.values))
	copy(snapshot, grid.values)
	readAt := func(i, j, k int) float64 {
		if !grid.contains(i, j, k) {
			return 0
		}
		return snapshot[grid.index(i, j, k)]
	}

	for k := 0; k < grid.cellsPer; k++ {
		for j := 0; j < grid.cellsPer; j++ {
			for i := 0; i < grid.cellsPer; i++ {
				best := 0.0
				for _, off := range sixNeighborOffsets {
					v := readAt(i+off[0], j+off[1], k+off[2])
					if v >= 0.5 && v > best {
						best = v
					}
				}
				if best > 0 {
					idx := grid.index(i, j, k)
					if dilated := 0.9 * best; dilated > grid.values[idx] {
						grid.values[idx] = dilated
					}
				}
			}
		}
	}
}

// extractBoundaryFaces emits two triangles for every cell face between a solid
// cell and a non-solid or out-of-grid cell. Lattice corners are shared between
// faces so neighboring quads stitch into a closed surface.
func extractBoundaryFaces(grid *voxelGrid, threshold float64) (*mesh.Mesh, error) {
	type corner struct{ i, j, k int }
	cornerIndex := make(map[corner]uint32)
	var vertices []r3.Vector
	var indices []uint32

	vertexAt := func(c corner) uint32 {
		if idx, ok := cornerIndex[c]; ok {
			return idx
		}
		idx := uint32(len(vertices))
		vertices = append(vertices, r3.Vector{
			X: grid.origin.X + float64(c.i)*grid.voxelSize,
			Y: grid.origin.Y + float64(c.j)*grid.voxelSize,
			Z: grid.origin.Z + float64(c.k)*grid.voxelSize,
		})
		cornerIndex[c] = idx
		return idx
	}

	for k := 0; k < grid.cellsPer; k++ {
		for j := 0; j < grid.cellsPer; j++ {
			for i := 0; i < grid.cellsPer; i++ {
				if grid.at(i, j, k) < threshold {
					continue
				}
				for dir, off := range sixNeighborOffsets {
					ni, nj, nk := i+off[0], j+off[1], k+off[2]
					if grid.contains(ni, nj, nk) && grid.at(ni, nj, nk) >= threshold {
						continue
					}
					var quad [4]uint32
					for c, cornerOff := range voxelFaceCorners[dir] {
						quad[c] = vertexAt(corner{i + cornerOff[0], j + cornerOff[1], k + cornerOff[2]})
					}
					indices = append(indices, quad[0], quad[1], quad[2], quad[0], quad[2], quad[3])
				}
			}
		}
	}

	if len(indices) == 0 {
		return nil, errors.New("no cells reached the occupancy threshold")
	}
	return mesh.New(vertices, indices)
}
