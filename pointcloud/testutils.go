package pointcloud

import (
	"math"

	"github.com/golang/geo/r3"
)

// MakeSphereCloud creates a deterministic point cloud of n points spread
// evenly over a sphere's surface using a golden spiral.
func MakeSphereCloud(n int, center r3.Vector, radius float64) *PointCloud {
	cloud := NewWithPrealloc(n)
	golden := math.Pi * (3 - math.Sqrt(5))
	for i := 0; i < n; i++ {
		z := 1 - 2*(float64(i)+0.5)/float64(n)
		r := math.Sqrt(1 - z*z)
		phi := float64(i) * golden
		p := r3.Vector{X: r * math.Cos(phi), Y: r * math.Sin(phi), Z: z}
		cloud.Add(p.Mul(radius).Add(center))
	}
	return cloud
}

// MakeOrientedSphereCloud is MakeSphereCloud with exact outward normals
// attached to every point.
func MakeOrientedSphereCloud(n int, center r3.Vector, radius float64) *PointCloud {
	surface := MakeSphereCloud(n, center, radius)
	cloud := NewWithPrealloc(n)
	for i := 0; i < surface.Size(); i++ {
		p := surface.At(i)
		cloud.AddWithNormal(p, p.Sub(center).Normalize())
	}
	return cloud
}

// MakeSolidBlockCloud fills an axis aligned cube with a perEdge by perEdge by
// perEdge grid of points, corners included.
func MakeSolidBlockCloud(perEdge int, center r3.Vector, size float64) *PointCloud {
	cloud := NewWithPrealloc(perEdge * perEdge * perEdge)
	h := size / 2
	step := size / float64(perEdge-1)
	for a := 0; a < perEdge; a++ {
		for b := 0; b < perEdge; b++ {
			for c := 0; c < perEdge; c++ {
				cloud.Add(r3.Vector{
					X: -h + float64(a)*step,
					Y: -h + float64(b)*step,
					Z: -h + float64(c)*step,
				}.Add(center))
			}
		}
	}
	return cloud
}

// MakeCubeCloud creates a point cloud sampling each face of an axis aligned
// cube with a perEdge by perEdge grid, for 6*perEdge*perEdge points total.
// Samples are offset half a step inward so no two faces share a point.
func MakeCubeCloud(perEdge int, center r3.Vector, size float64) *PointCloud {
	cloud := NewWithPrealloc(6 * perEdge * perEdge)
	h := size / 2
	step := size / float64(perEdge)
	for a := 0; a < perEdge; a++ {
		for b := 0; b < perEdge; b++ {
			u := -h + (float64(a)+0.5)*step
			v := -h + (float64(b)+0.5)*step
			for _, p := range []r3.Vector{
				{X: u, Y: v, Z: -h},
				{X: u, Y: v, Z: h},
				{X: u, Y: -h, Z: v},
				{X: u, Y: h, Z: v},
				{X: -h, Y: u, Z: v},
				{X: h, Y: u, Z: v},
			} {
				cloud.Add(p.Add(center))
			}
		}
	}
	return cloud
}

// MakePlaneCloud creates a perEdge by perEdge grid of points on the plane
// through center with the given unit normal, spanning extent along each
// direction.
func MakePlaneCloud(perEdge int, center, normal r3.Vector, extent float64) *PointCloud {
	u := normal.Cross(r3.Vector{X: 1})
	if u.Norm2() < 1e-12 {
		u = normal.Cross(r3.Vector{Y: 1})
	}
	u = u.Normalize()
	v := normal.Cross(u).Normalize()

	cloud := NewWithPrealloc(perEdge * perEdge)
	step := extent / float64(perEdge-1)
	for a := 0; a < perEdge; a++ {
		for b := 0; b < perEdge; b++ {
			du := -extent/2 + float64(a)*step
			dv := -extent/2 + float64(b)*step
			cloud.Add(center.Add(u.Mul(du)).Add(v.Mul(dv)))
		}
	}
	return cloud
}
