package reconstruct

import (
	"sort"

	"github.com/edaniels/golog"
	"github.com/golang/geo/r3"
	"github.com/montanaflynn/stats"
	"github.com/pkg/errors"

	"github.com/volumetriclabs/scancore/mesh"
	"github.com/volumetriclabs/scancore/pointcloud"
)

// MinPoissonPoints is the smallest cloud implicit reconstruction accepts.
// Below this the implicit field is underconstrained everywhere.
const MinPoissonPoints = 100

// PoissonConfig configures implicit-surface reconstruction.
type PoissonConfig struct {
	// Depth is the octree depth. The finest lattice has 2^Depth cells per
	// axis, so each extra level costs roughly eight times the memory.
	Depth int
	// SamplesPerNode is the sample budget a leaf holds before splitting.
	SamplesPerNode float64
	// Scale grows the bounding cube beyond the cloud extents so the surface
	// never touches the lattice boundary.
	Scale float64
	// Verbose promotes the reconstruction summary to info level logging.
	Verbose bool
	// EnableDensityTrim drops triangles supported by unusually few samples.
	// The holes it opens are expected to be closed again by topology repair.
	EnableDensityTrim bool
	// TrimPercentile is the density percentile below which triangles are
	// trimmed.
	TrimPercentile float64
}

// DefaultPoissonConfig returns the implicit reconstruction settings used when
// nothing is overridden.
func DefaultPoissonConfig() PoissonConfig {
	return PoissonConfig{
		Depth:             8,
		SamplesPerNode:    1.5,
		Scale:             1.25,
		Verbose:           false,
		EnableDensityTrim: false,
		TrimPercentile:    0.05,
	}
}

// Validate checks the configuration for values that can never work.
func (cfg PoissonConfig) Validate() error {
	if cfg.Depth < 2 || cfg.Depth > 12 {
		return errors.Errorf("octree depth must be in [2, 12], got %d", cfg.Depth)
	}
	if cfg.SamplesPerNode < 1 {
		return errors.Errorf("samples per node must be at least 1, got %f", cfg.SamplesPerNode)
	}
	if cfg.Scale < 1 || cfg.Scale > 4 {
		return errors.Errorf("bounding cube scale must be in [1, 4], got %f", cfg.Scale)
	}
	if cfg.TrimPercentile < 0 || cfg.TrimPercentile > 0.5 {
		return errors.Errorf("trim percentile must be in [0, 0.5], got %f", cfg.TrimPercentile)
	}
	return nil
}

// ReconstructPoisson fits an implicit surface to an oriented point cloud and
// extracts its zero level set as a triangle mesh. The field is solved
// hierarchically on an octree over the scaled bounding cube: sample tangent
// planes are splatted level by level, coarse levels fill in where samples are
// sparse, and the finest lattice is marched cell by cell. The output carries
// positions and triangles only, and is not guaranteed to be watertight.
func ReconstructPoisson(cloud *pointcloud.PointCloud, cfg PoissonConfig, logger golog.Logger) (*mesh.Mesh, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if cloud.Size() < MinPoissonPoints {
		return nil, errors.Wrapf(ErrInsufficientPoints, "have %d points, need at least %d", cloud.Size(), MinPoissonPoints)
	}
	if !cloud.HasNormals() {
		return nil, ErrMissingNormals
	}

	meta := cloud.MetaData()
	extents := meta.Extents()
	span := extents.X
	if extents.Y > span {
		span = extents.Y
	}
	if extents.Z > span {
		span = extents.Z
	}
	if span <= 0 {
		return nil, ErrDegenerateCloud
	}

	center := r3.Vector{
		X: (meta.MinX + meta.MaxX) / 2,
		Y: (meta.MinY + meta.MaxY) / 2,
		Z: (meta.MinZ + meta.MaxZ) / 2,
	}
	sideLength := span * cfg.Scale

	tree, err := newSampleOctree(center, sideLength, cfg.Depth, cfg.SamplesPerNode, logger)
	if err != nil {
		return nil, err
	}
	for i := 0; i < cloud.Size(); i++ {
		if err := tree.Insert(cloud.At(i), cloud.NormalAt(i)); err != nil {
			return nil, errors.Wrap(err, "building sample octree")
		}
	}

	cubeMin := center.Sub(r3.Vector{X: sideLength / 2, Y: sideLength / 2, Z: sideLength / 2})
	field := newImplicitField(cubeMin, sideLength, cfg.Depth)
	cellCounts := map[cellKey]int{}
	tree.IterateSamples(func(p, normal r3.Vector) bool {
		field.splat(p, normal)
		i, j, k, _, _, _ := field.cellAt(cfg.Depth, p)
		cellCounts[cellKey{i: i, j: j, k: k}]++
		return true
	})

	cells := marchableCells(cellCounts, cfg.Depth)
	m := newMarcher(field)
	for _, cell := range cells {
		m.marchCell(cell)
	}
	if len(m.indices) == 0 {
		return nil, ErrNoSurface
	}

	indices := m.indices
	if cfg.EnableDensityTrim && cfg.TrimPercentile > 0 {
		indices = trimLowDensity(m, cellCounts, cfg.TrimPercentile, logger)
		if len(indices) == 0 {
			return nil, errors.Wrap(ErrNoSurface, "density trim removed every triangle")
		}
	}

	out, err := mesh.New(m.vertices, indices)
	if err != nil {
		return nil, err
	}
	out.Compact()

	summary := "implicit reconstruction: %d samples, %d octree nodes, %d marched cells, %d triangles"
	if cfg.Verbose {
		logger.Infof(summary, tree.Size(), tree.NodeCount(), len(cells), out.TriangleCount())
	} else {
		logger.Debugf(summary, tree.Size(), tree.NodeCount(), len(cells), out.TriangleCount())
	}
	return out, nil
}

// marchableCells returns every sample-bearing cell plus its full neighborhood
// in deterministic order. The isosurface always lies within a cell of the
// samples that define it.
func marchableCells(cellCounts map[cellKey]int, depth int) []cellKey {
	cells := int(1) << depth
	include := map[cellKey]struct{}{}
	for cell := range cellCounts {
		for di := -1; di <= 1; di++ {
			for dj := -1; dj <= 1; dj++ {
				for dk := -1; dk <= 1; dk++ {
					n := cellKey{i: cell.i + di, j: cell.j + dj, k: cell.k + dk}
					if n.i < 0 || n.j < 0 || n.k < 0 || n.i >= cells || n.j >= cells || n.k >= cells {
						continue
					}
					include[n] = struct{}{}
				}
			}
		}
	}

	out := make([]cellKey, 0, len(include))
	for cell := range include {
		out = append(out, cell)
	}
	sort.Slice(out, func(a, b int) bool {
		if out[a].k != out[b].k {
			return out[a].k < out[b].k
		}
		if out[a].j != out[b].j {
			return out[a].j < out[b].j
		}
		return out[a].i < out[b].i
	})
	return out
}

// trimLowDensity drops triangles whose supporting cells saw fewer samples than
// the configured percentile of the density distribution.
func trimLowDensity(m *marcher, cellCounts map[cellKey]int, percentile float64, logger golog.Logger) []uint32 {
	densities := make([]float64, len(m.triangleCells))
	for t, cell := range m.triangleCells {
		densities[t] = float64(triangleDensity(cell, cellCounts))
	}

	threshold, err := stats.Percentile(densities, percentile*100)
	if err != nil {
		logger.Debugf("density trim skipped: %v", err)
		return m.indices
	}

	kept := make([]uint32, 0, len(m.indices))
	dropped := 0
	for t := range m.triangleCells {
		if densities[t] < threshold {
			dropped++
			continue
		}
		kept = append(kept, m.indices[3*t], m.indices[3*t+1], m.indices[3*t+2])
	}
	logger.Debugf("density trim dropped %d of %d triangles below density %.1f",
		dropped, len(m.triangleCells), threshold)
	return kept
}

// triangleDensity is the sample count of the triangle's cell, or of the
// densest nearby cell when the triangle sits in an empty shell cell.
func triangleDensity(cell cellKey, cellCounts map[cellKey]int) int {
	if count := cellCounts[cell]; count > 0 {
		return count
	}
	best := 0
	for di := -1; di <= 1; di++ {
		for dj := -1; dj <= 1; dj++ {
			for dk := -1; dk <= 1; dk++ {
				if count := cellCounts[cellKey{i: cell.i + di, j: cell.j + dj, k: cell.k + dk}]; count > best {
					best = count
				}
			}
		}
	}
	return best
}
