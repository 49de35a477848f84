// Package pointcloud defines a point cloud with optional per point normals
// and the operations the reconstruction pipeline runs on one, such as
// neighbor lookups and normal estimation.
package pointcloud

import (
	"math"

	"github.com/golang/geo/r3"
	"github.com/pkg/errors"

	"github.com/volumetriclabs/scancore/mesh"
)

// ErrEmptyCloud is returned by operations that need at least one point.
var ErrEmptyCloud = errors.New("point cloud is empty")

// MetaData is data about what's stored in the point cloud.
type MetaData struct {
	HasNormals bool

	MinX, MaxX float64
	MinY, MaxY float64
	MinZ, MaxZ float64
}

// NewMetaData returns a new point cloud metadata struct with bounds ready to
// merge points into.
func NewMetaData() MetaData {
	return MetaData{
		MinX: math.MaxFloat64,
		MinY: math.MaxFloat64,
		MinZ: math.MaxFloat64,
		MaxX: -math.MaxFloat64,
		MaxY: -math.MaxFloat64,
		MaxZ: -math.MaxFloat64,
	}
}

// Merge updates the bounds to include the given point.
func (meta *MetaData) Merge(p r3.Vector) {
	if p.X > meta.MaxX {
		meta.MaxX = p.X
	}
	if p.Y > meta.MaxY {
		meta.MaxY = p.Y
	}
	if p.Z > meta.MaxZ {
		meta.MaxZ = p.Z
	}
	if p.X < meta.MinX {
		meta.MinX = p.X
	}
	if p.Y < meta.MinY {
		meta.MinY = p.Y
	}
	if p.Z < meta.MinZ {
		meta.MinZ = p.Z
	}
}

// Extents returns the size of the bounding box along each axis.
func (meta MetaData) Extents() r3.Vector {
	return r3.Vector{
		X: meta.MaxX - meta.MinX,
		Y: meta.MaxY - meta.MinY,
		Z: meta.MaxZ - meta.MinZ,
	}
}

// PointCloud is a slice backed container of points. Normals are parallel to
// the positions and are either absent or present for every point.
type PointCloud struct {
	positions []r3.Vector
	normals   []r3.Vector
	meta      MetaData
}

// New returns an empty PointCloud.
func New() *PointCloud {
	return NewWithPrealloc(0)
}

// NewWithPrealloc returns an empty PointCloud with capacity for the given
// number of points.
func NewWithPrealloc(size int) *PointCloud {
	return &PointCloud{
		positions: make([]r3.Vector, 0, size),
		meta:      NewMetaData(),
	}
}

// FromMesh extracts a mesh's vertices into a point cloud. A mesh with
// connectivity contributes area weighted vertex normals and sheds its
// unreferenced vertices; a mesh with no triangles converts to a plain
// unoriented cloud.
func FromMesh(m *mesh.Mesh) (*PointCloud, error) {
	if m == nil || m.VertexCount() == 0 {
		return nil, ErrEmptyCloud
	}
	if err := m.Validate(); err != nil {
		return nil, err
	}
	cloud := NewWithPrealloc(m.VertexCount())
	if m.TriangleCount() == 0 {
		// a point soup has no connectivity to take normals from
		for _, v := range m.Vertices {
			cloud.Add(v)
		}
		return cloud, nil
	}
	src := m.Clone()
	src.Compact()
	for i, n := range src.VertexNormals() {
		cloud.AddWithNormal(src.Vertices[i], n)
	}
	return cloud, nil
}

// Size returns the number of points in the cloud.
func (cloud *PointCloud) Size() int {
	return len(cloud.positions)
}

// MetaData returns the cloud's bounds and normal availability.
func (cloud *PointCloud) MetaData() MetaData {
	return cloud.meta
}

// HasNormals reports whether every point in the cloud carries a normal.
func (cloud *PointCloud) HasNormals() bool {
	return cloud.meta.HasNormals
}

// Add appends a point to the cloud. If the cloud carries normals the new
// point gets the zero normal until one is estimated for it.
func (cloud *PointCloud) Add(p r3.Vector) {
	cloud.positions = append(cloud.positions, p)
	if cloud.normals != nil {
		cloud.normals = append(cloud.normals, r3.Vector{})
	}
	cloud.meta.Merge(p)
}

// AddWithNormal appends a point and its normal to the cloud. Points added
// before any normal was known get the zero normal.
func (cloud *PointCloud) AddWithNormal(p, n r3.Vector) {
	if cloud.normals == nil {
		cloud.normals = make([]r3.Vector, len(cloud.positions))
	}
	cloud.positions = append(cloud.positions, p)
	cloud.normals = append(cloud.normals, n)
	cloud.meta.Merge(p)
	cloud.meta.HasNormals = true
}

// At returns the position of the i-th point.
func (cloud *PointCloud) At(i int) r3.Vector {
	return cloud.positions[i]
}

// NormalAt returns the normal of the i-th point, or the zero vector when the
// cloud has no normals.
func (cloud *PointCloud) NormalAt(i int) r3.Vector {
	if cloud.normals == nil {
		return r3.Vector{}
	}
	return cloud.normals[i]
}

func (cloud *PointCloud) setNormalAt(i int, n r3.Vector) {
	if cloud.normals == nil {
		cloud.normals = make([]r3.Vector, len(cloud.positions))
	}
	cloud.normals[i] = n
	cloud.meta.HasNormals = true
}

// Iterate calls the given function for each point in the cloud. If the
// function returns false, iteration stops early. numBatches lets you divide
// up the work; 0 means don't divide. myBatch is used iff numBatches > 0 and
// is which contiguous batch of points to visit.
func (cloud *PointCloud) Iterate(numBatches, myBatch int, fn func(i int, p r3.Vector) bool) {
	lo, hi := 0, len(cloud.positions)
	if numBatches > 0 {
		batchSize := (len(cloud.positions) + numBatches - 1) / numBatches
		lo = myBatch * batchSize
		hi = lo + batchSize
		if hi > len(cloud.positions) {
			hi = len(cloud.positions)
		}
	}
	for i := lo; i < hi; i++ {
		if !fn(i, cloud.positions[i]) {
			return
		}
	}
}

// Centroid returns the mean position of the cloud's points, or the zero
// vector for an empty cloud.
func (cloud *PointCloud) Centroid() r3.Vector {
	if len(cloud.positions) == 0 {
		return r3.Vector{}
	}
	sum := r3.Vector{}
	for _, p := range cloud.positions {
		sum = sum.Add(p)
	}
	return sum.Mul(1. / float64(len(cloud.positions)))
}

// Clone returns a deep copy of the cloud.
func (cloud *PointCloud) Clone() *PointCloud {
	clone := &PointCloud{
		positions: make([]r3.Vector, len(cloud.positions)),
		meta:      cloud.meta,
	}
	copy(clone.positions, cloud.positions)
	if cloud.normals != nil {
		clone.normals = make([]r3.Vector, len(cloud.normals))
		copy(clone.normals, cloud.normals)
	}
	return clone
}

// MergeClouds concatenates the given clouds into one. Normals survive the
// merge only when every input cloud carries them.
func MergeClouds(clouds ...*PointCloud) *PointCloud {
	total := 0
	keepNormals := len(clouds) > 0
	for _, c := range clouds {
		total += c.Size()
		if !c.HasNormals() {
			keepNormals = false
		}
	}
	merged := NewWithPrealloc(total)
	for _, c := range clouds {
		for i := 0; i < c.Size(); i++ {
			if keepNormals {
				merged.AddWithNormal(c.At(i), c.NormalAt(i))
			} else {
				merged.Add(c.At(i))
			}
		}
	}
	return merged
}
