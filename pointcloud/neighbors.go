package pointcloud

import (
	"math"
	"sort"

	"github.com/golang/geo/r3"

	"github.com/volumetriclabs/scancore/utils"
)

// bucketKey addresses one cell of the coarse grid used for neighbor lookups.
type bucketKey struct {
	I, J, K int
}

// pointBuckets indexes cloud points by coarse grid cell so nearest neighbor
// queries only visit points in nearby cells instead of the whole cloud.
type pointBuckets struct {
	cloud    *PointCloud
	cellSize float64
	cells    map[bucketKey][]int
	maxRing  int
}

// newPointBuckets builds the cell index for the given cloud. cellSize should
// be on the order of the expected neighbor distance.
func newPointBuckets(cloud *PointCloud, cellSize float64) *pointBuckets {
	b := &pointBuckets{
		cloud:    cloud,
		cellSize: cellSize,
		cells:    make(map[bucketKey][]int, cloud.Size()),
	}
	cloud.Iterate(0, 0, func(i int, p r3.Vector) bool {
		key := b.key(p)
		b.cells[key] = append(b.cells[key], i)
		return true
	})
	ext := cloud.MetaData().Extents()
	span := math.Max(ext.X, math.Max(ext.Y, ext.Z))
	b.maxRing = int(math.Ceil(span/cellSize)) + 1
	return b
}

// estimateCellSize picks a neighbor search cell size from the cloud's bounds,
// roughly twice the mean point spacing.
func estimateCellSize(cloud *PointCloud) float64 {
	ext := cloud.MetaData().Extents()
	n := float64(cloud.Size())
	volume := ext.X * ext.Y * ext.Z
	if volume > 0 {
		return 2 * utils.CubeRoot(volume/n)
	}
	// planar or degenerate bounds
	span := math.Max(ext.X, math.Max(ext.Y, ext.Z))
	if span > 0 {
		return 2 * span / utils.CubeRoot(n)
	}
	return 1
}

func (b *pointBuckets) key(p r3.Vector) bucketKey {
	return bucketKey{
		I: int(math.Floor(p.X / b.cellSize)),
		J: int(math.Floor(p.Y / b.cellSize)),
		K: int(math.Floor(p.Z / b.cellSize)),
	}
}

// KNearest returns the indices of up to k points nearest to p, closest
// first, excluding the point at index self. Pass self = -1 to exclude
// nothing.
func (b *pointBuckets) KNearest(p r3.Vector, self, k int) []int {
	center := b.key(p)
	var candidates []int
	// once enough candidates are in hand, one extra ring guarantees no
	// closer point hides in a diagonal cell
	ringsAfterFull := -1
	for ring := 0; ring <= b.maxRing; ring++ {
		candidates = append(candidates, b.ringMembers(center, ring, self)...)
		if len(candidates) >= k {
			ringsAfterFull++
			if ringsAfterFull >= 1 {
				break
			}
		}
	}
	sort.Slice(candidates, func(i, j int) bool {
		return p.Sub(b.cloud.At(candidates[i])).Norm2() < p.Sub(b.cloud.At(candidates[j])).Norm2()
	})
	if len(candidates) > k {
		candidates = candidates[:k]
	}
	return candidates
}

// ringMembers collects the point indices of every cell at exactly the given
// Chebyshev distance from the center cell.
func (b *pointBuckets) ringMembers(center bucketKey, ring, self int) []int {
	var members []int
	for di := -ring; di <= ring; di++ {
		for dj := -ring; dj <= ring; dj++ {
			for dk := -ring; dk <= ring; dk++ {
				if utils.MaxInt(utils.AbsInt(di), utils.MaxInt(utils.AbsInt(dj), utils.AbsInt(dk))) != ring {
					continue
				}
				cell := bucketKey{I: center.I + di, J: center.J + dj, K: center.K + dk}
				for _, idx := range b.cells[cell] {
					if idx == self {
						continue
					}
					members = append(members, idx)
				}
			}
		}
	}
	return members
}
