// Package reconstruct turns scanned point clouds into triangle meshes, either
// through a fast occupancy-grid voxelization or a higher quality implicit
// surface solve over an octree.
package reconstruct

import "github.com/pkg/errors"

// ErrInsufficientPoints is when a cloud is too sparse for implicit
// reconstruction to produce anything meaningful.
var ErrInsufficientPoints = errors.New("insufficient points for reconstruction")

// ErrMissingNormals is when implicit reconstruction is handed a cloud without
// oriented normals.
var ErrMissingNormals = errors.New("point cloud has no normals")

// ErrDegenerateCloud is when every point is coincident so no bounding volume
// can be built.
var ErrDegenerateCloud = errors.New("point cloud bounding volume is degenerate")

// ErrNoSurface is when the implicit field contains no zero crossing to
// extract.
var ErrNoSurface = errors.New("no surface extracted from implicit field")
