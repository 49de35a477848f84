package meshrepair

import (
	"math"

	"github.com/golang/geo/r3"

	"github.com/volumetriclabs/scancore/pointcloud"
)

// Grid resolutions for the capture heuristics. The occupancy grid feeds the
// noise and thin feature estimates, the angular grid the gap estimate.
const (
	analyzeGridSize = 8
	angularGridSize = 4
)

// Selection thresholds. A capture below all of them is the simple, clean,
// small case that the high resolution voxel pass handles best.
const (
	smallObjectExtent = 0.5  // meters
	minCleanCoverage  = 0.75 // fraction of view octants seen
	maxCleanNoise     = 0.08 // off-plane spread per occupancy cell
	minCleanDensity   = 5e4  // points per cubic meter

	thinSpanRatio        = 0.05 // flattest span over longest span
	thinCellFraction     = 0.4  // wire-like share of occupied cells
	largeGapFillFraction = 0.6  // angular cells seen over total
)

// Characteristics summarizes a captured point cloud for method selection.
type Characteristics struct {
	PointCount int
	// Density is points per cubic meter of bounding volume.
	Density float64
	// Coverage is the fraction of view octants around the bounding box
	// center that contain points, 1 meaning the capture saw every side.
	Coverage float64
	// Noise is the mean off-plane spread of points within an occupancy
	// grid cell, as a fraction of the cell size.
	Noise float64
	// MaxExtent is the longest bounding box span in meters.
	MaxExtent float64
	// HasThinFeatures flags sheet or wire like geometry that a coarse
	// voxel pass would merge or break apart.
	HasThinFeatures bool
	// HasLargeGaps flags captures whose angular coverage leaves holes too
	// big for hole filling to close credibly.
	HasLargeGaps bool
}

// SelectMethod picks a concrete repair method for a cloud with the given
// characteristics. Simple, clean, small captures take the high resolution
// voxel pass; everything else goes through the implicit surface path, with
// neural refinement layered on when a model is available.
func SelectMethod(ch Characteristics, hasRefiner bool) Method {
	simple := !ch.HasThinFeatures && !ch.HasLargeGaps
	clean := ch.Noise < maxCleanNoise &&
		ch.Coverage >= minCleanCoverage &&
		ch.Density >= minCleanDensity
	small := ch.MaxExtent > 0 && ch.MaxExtent <= smallObjectExtent
	if simple && clean && small {
		return MethodVoxel
	}
	if hasRefiner {
		return MethodHybrid
	}
	return MethodPoisson
}

// Analyze computes the characteristics of a cloud in two sweeps: one to
// fill the occupancy, octant, and angular grids, and one to measure each
// point's distance from its cell's fitted plane.
func Analyze(cloud *pointcloud.PointCloud) Characteristics {
	ch := Characteristics{PointCount: cloud.Size()}
	if cloud.Size() == 0 {
		return ch
	}

	meta := cloud.MetaData()
	extents := meta.Extents()
	maxSpan := math.Max(extents.X, math.Max(extents.Y, extents.Z))
	minSpan := math.Min(extents.X, math.Min(extents.Y, extents.Z))
	ch.MaxExtent = maxSpan
	if volume := extents.X * extents.Y * extents.Z; volume > 0 {
		ch.Density = float64(cloud.Size()) / volume
	}
	if maxSpan <= 0 {
		// all points coincident, nothing else to measure
		return ch
	}

	min := r3.Vector{X: meta.MinX, Y: meta.MinY, Z: meta.MinZ}
	center := min.Add(extents.Mul(0.5))
	cellSize := maxSpan / analyzeGridSize

	grid := newAnalyzeGrid(min, cellSize)
	var octants [8]bool
	angular := make(map[int]bool)
	cloud.Iterate(0, 0, func(i int, p r3.Vector) bool {
		grid.accumulate(p)
		octants[octantOf(p, center)] = true
		if cell, ok := angularCellOf(p, center); ok {
			angular[cell] = true
		}
		return true
	})

	seen := 0
	for _, hit := range octants {
		if hit {
			seen++
		}
	}
	ch.Coverage = float64(seen) / 8

	totalAngular := 6 * angularGridSize * angularGridSize
	ch.HasLargeGaps = float64(len(angular))/float64(totalAngular) < largeGapFillFraction

	grid.fitPlanes()
	var distSum float64
	var distCount int
	cloud.Iterate(0, 0, func(i int, p r3.Vector) bool {
		if d, ok := grid.planeDistance(p); ok {
			distSum += d
			distCount++
		}
		return true
	})
	if distCount > 0 {
		ch.Noise = distSum / float64(distCount) / cellSize
	}

	ch.HasThinFeatures = minSpan/maxSpan < thinSpanRatio ||
		grid.wireCellFraction() > thinCellFraction
	return ch
}

// octantOf maps a point to one of the eight regions around center.
func octantOf(p, center r3.Vector) int {
	oct := 0
	if p.X > center.X {
		oct |= 1
	}
	if p.Y > center.Y {
		oct |= 2
	}
	if p.Z > center.Z {
		oct |= 4
	}
	return oct
}

// angularCellOf buckets the direction from center to p onto a cube face
// subdivided angularGridSize by angularGridSize, cube map style. Points at
// the center itself have no direction and report false.
func angularCellOf(p, center r3.Vector) (int, bool) {
	d := p.Sub(center)
	ax, ay, az := math.Abs(d.X), math.Abs(d.Y), math.Abs(d.Z)
	if ax == 0 && ay == 0 && az == 0 {
		return 0, false
	}

	var face int
	var u, v float64
	switch {
	case ax >= ay && ax >= az:
		face = 0
		if d.X < 0 {
			face = 1
		}
		u, v = d.Y/ax, d.Z/ax
	case ay >= ax && ay >= az:
		face = 2
		if d.Y < 0 {
			face = 3
		}
		u, v = d.X/ay, d.Z/ay
	default:
		face = 4
		if d.Z < 0 {
			face = 5
		}
		u, v = d.X/az, d.Y/az
	}

	ui := clampIndex(int((u+1)/2*angularGridSize), angularGridSize)
	vi := clampIndex(int((v+1)/2*angularGridSize), angularGridSize)
	return face*angularGridSize*angularGridSize + vi*angularGridSize + ui, true
}

func clampIndex(i, n int) int {
	if i < 0 {
		return 0
	}
	if i >= n {
		return n - 1
	}
	return i
}

// analyzeGrid is a coarse occupancy grid holding per-cell point moments so
// a plane can be fitted to each cell after one sweep.
type analyzeGrid struct {
	origin   r3.Vector
	cellSize float64
	count    []int
	sum      []r3.Vector
	// raw second moments per cell: xx, xy, xz, yy, yz, zz
	moments [][6]float64
	mean    []r3.Vector
	normal  []r3.Vector
	fitted  []bool
}

func newAnalyzeGrid(origin r3.Vector, cellSize float64) *analyzeGrid {
	cells := analyzeGridSize * analyzeGridSize * analyzeGridSize
	return &analyzeGrid{
		origin:   origin,
		cellSize: cellSize,
		count:    make([]int, cells),
		sum:      make([]r3.Vector, cells),
		moments:  make([][6]float64, cells),
		mean:     make([]r3.Vector, cells),
		normal:   make([]r3.Vector, cells),
		fitted:   make([]bool, cells),
	}
}

func (g *analyzeGrid) cellIndex(p r3.Vector) int {
	i := clampIndex(int((p.X-g.origin.X)/g.cellSize), analyzeGridSize)
	j := clampIndex(int((p.Y-g.origin.Y)/g.cellSize), analyzeGridSize)
	k := clampIndex(int((p.Z-g.origin.Z)/g.cellSize), analyzeGridSize)
	return i + analyzeGridSize*(j+analyzeGridSize*k)
}

func (g *analyzeGrid) accumulate(p r3.Vector) {
	idx := g.cellIndex(p)
	g.count[idx]++
	g.sum[idx] = g.sum[idx].Add(p)
	m := &g.moments[idx]
	m[0] += p.X * p.X
	m[1] += p.X * p.Y
	m[2] += p.X * p.Z
	m[3] += p.Y * p.Y
	m[4] += p.Y * p.Z
	m[5] += p.Z * p.Z
}

// fitPlanes derives each occupied cell's covariance from the accumulated
// moments and approximates its smallest-eigenvalue direction by the largest
// cross product of two covariance columns, the same shortcut normal
// estimation uses.
func (g *analyzeGrid) fitPlanes() {
	for idx, count := range g.count {
		if count < 4 {
			continue
		}
		n := float64(count)
		mean := g.sum[idx].Mul(1 / n)
		g.mean[idx] = mean
		m := g.moments[idx]
		xx := m[0]/n - mean.X*mean.X
		xy := m[1]/n - mean.X*mean.Y
		xz := m[2]/n - mean.X*mean.Z
		yy := m[3]/n - mean.Y*mean.Y
		yz := m[4]/n - mean.Y*mean.Z
		zz := m[5]/n - mean.Z*mean.Z

		col0 := r3.Vector{X: xx, Y: xy, Z: xz}
		col1 := r3.Vector{X: xy, Y: yy, Z: yz}
		col2 := r3.Vector{X: xz, Y: yz, Z: zz}
		normal := col0.Cross(col1)
		if alt := col0.Cross(col2); alt.Norm2() > normal.Norm2() {
			normal = alt
		}
		if alt := col1.Cross(col2); alt.Norm2() > normal.Norm2() {
			normal = alt
		}
		if normal.Norm2() == 0 {
			continue
		}
		g.normal[idx] = normal.Normalize()
		g.fitted[idx] = true
	}
}

// planeDistance reports how far p sits off its cell's fitted plane. Points
// in cells too sparse or degenerate for a fit report false.
func (g *analyzeGrid) planeDistance(p r3.Vector) (float64, bool) {
	idx := g.cellIndex(p)
	if !g.fitted[idx] {
		return 0, false
	}
	return math.Abs(p.Sub(g.mean[idx]).Dot(g.normal[idx])), true
}

// wireCellFraction is the share of occupied cells with at most two occupied
// face neighbors. Surface patches run three or more; strings of cells along
// a wire or sheet edge run fewer.
func (g *analyzeGrid) wireCellFraction() float64 {
	occupied := 0
	wire := 0
	for k := 0; k < analyzeGridSize; k++ {
		for j := 0; j < analyzeGridSize; j++ {
			for i := 0; i < analyzeGridSize; i++ {
				if g.count[i+analyzeGridSize*(j+analyzeGridSize*k)] == 0 {
					continue
				}
				occupied++
				if g.occupiedNeighbors(i, j, k) <= 2 {
					wire++
				}
			}
		}
	}
	if occupied == 0 {
		return 0
	}
	return float64(wire) / float64(occupied)
}

func (g *analyzeGrid) occupiedNeighbors(i, j, k int) int {
	offsets := [6][3]int{{1, 0, 0}, {-1, 0, 0}, {0, 1, 0}, {0, -1, 0}, {0, 0, 1}, {0, 0, -1}}
	n := 0
	for _, off := range offsets {
		ni, nj, nk := i+off[0], j+off[1], k+off[2]
		if ni < 0 || ni >= analyzeGridSize || nj < 0 || nj >= analyzeGridSize || nk < 0 || nk >= analyzeGridSize {
			continue
		}
		if g.count[ni+analyzeGridSize*(nj+analyzeGridSize*nk)] > 0 {
			n++
		}
	}
	return n
}
