package pointcloud

import (
	"context"
	"runtime"

	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"
)

// DefaultNormalNeighborhood is the number of nearest neighbors used to fit
// the local surface around each point.
const DefaultNormalNeighborhood = 12

// ParallelFactor controls how many batches normal estimation splits the
// cloud into. This might be useful to lower in tests where too much
// parallelism slows tests down in aggregate.
var ParallelFactor = runtime.GOMAXPROCS(0)

// defaultNormal stands in when a neighborhood is too small or too degenerate
// for a plane fit.
var defaultNormal = r3.Vector{Z: 1}

// EstimateNormals fits a plane to the neighborhood of every point and stores
// the resulting unit normals on the cloud, oriented away from the cloud
// centroid. Clouds smaller than the neighborhood get the default +Z normal
// on every point. The work is split into parallel batches and stops early if
// the context is canceled.
func EstimateNormals(ctx context.Context, cloud *PointCloud, k int) error {
	if cloud.Size() == 0 {
		return ErrEmptyCloud
	}
	if k < 3 {
		return errors.Errorf("neighborhood size %d is too small, need at least 3", k)
	}

	normals := make([]r3.Vector, cloud.Size())
	if cloud.Size() < k {
		for i := range normals {
			normals[i] = defaultNormal
		}
		cloud.normals = normals
		cloud.meta.HasNormals = true
		return nil
	}

	buckets := newPointBuckets(cloud, estimateCellSize(cloud))
	centroid := cloud.Centroid()

	numBatches := ParallelFactor
	if numBatches < 1 {
		numBatches = 1
	}
	group, groupCtx := errgroup.WithContext(ctx)
	for batch := 0; batch < numBatches; batch++ {
		batch := batch
		group.Go(func() error {
			cloud.Iterate(numBatches, batch, func(i int, p r3.Vector) bool {
				if groupCtx.Err() != nil {
					return false
				}
				normals[i] = estimateNormalAt(p, i, k, buckets, centroid)
				return true
			})
			return groupCtx.Err()
		})
	}
	if err := group.Wait(); err != nil {
		return err
	}

	cloud.normals = normals
	cloud.meta.HasNormals = true
	return nil
}

// estimateNormalAt approximates the smallest-eigenvalue direction of the
// neighborhood covariance, which is the local surface normal. For a locally
// flat neighborhood the covariance columns all lie in the surface plane, so
// the cross product of two columns recovers the normal without a full
// eigendecomposition. The cross with the largest magnitude of the three
// column pairings is the numerically safest.
func estimateNormalAt(p r3.Vector, self, k int, buckets *pointBuckets, centroid r3.Vector) r3.Vector {
	neighbors := buckets.KNearest(p, self, k)
	if len(neighbors) < 2 {
		return defaultNormal
	}

	neighborhood := make([]r3.Vector, 0, len(neighbors)+1)
	neighborhood = append(neighborhood, p)
	for _, idx := range neighbors {
		neighborhood = append(neighborhood, buckets.cloud.At(idx))
	}

	mean := r3.Vector{}
	for _, q := range neighborhood {
		mean = mean.Add(q)
	}
	mean = mean.Mul(1. / float64(len(neighborhood)))

	var xx, xy, xz, yy, yz, zz float64
	for _, q := range neighborhood {
		d := q.Sub(mean)
		xx += d.X * d.X
		xy += d.X * d.Y
		xz += d.X * d.Z
		yy += d.Y * d.Y
		yz += d.Y * d.Z
		zz += d.Z * d.Z
	}
	n := float64(len(neighborhood))
	col0 := r3.Vector{X: xx, Y: xy, Z: xz}.Mul(1 / n)
	col1 := r3.Vector{X: xy, Y: yy, Z: yz}.Mul(1 / n)
	col2 := r3.Vector{X: xz, Y: yz, Z: zz}.Mul(1 / n)

	normal := col0.Cross(col1)
	if alt := col0.Cross(col2); alt.Norm2() > normal.Norm2() {
		normal = alt
	}
	if alt := col1.Cross(col2); alt.Norm2() > normal.Norm2() {
		normal = alt
	}
	if normal.Norm2() == 0 {
		return defaultNormal
	}
	normal = normal.Normalize()

	// orient away from the cloud centroid; an exactly tangent normal keeps
	// the computed direction
	if normal.Dot(p.Sub(centroid)) < 0 {
		normal = normal.Mul(-1)
	}
	return normal
}
