package reconstruct

import (
	"math"

	"github.com/golang/geo/r3"
)

// minSplatWeight is the accumulated kernel weight below which a lattice corner
// is considered unobserved.
const minSplatWeight = 1e-9

// smoothingBlend is how much of the parent level's interpolated value mixes
// into a corner that has direct observations. Unobserved corners take the
// parent value outright, which propagates the field from coarse levels into
// regions the samples never touched.
const smoothingBlend = 0.25

type cornerKey struct {
	level   int
	i, j, k int
}

// implicitField carries oriented-plane flux splatted onto the corner lattices
// of every octree level. The evaluated scalar is approximately the signed
// distance to the scanned surface: negative inside, positive outside, zero on
// the surface.
type implicitField struct {
	cubeMin    r3.Vector
	sideLength float64
	depth      int
	flux       map[cornerKey]float64
	weight     map[cornerKey]float64
	resolved   map[cornerKey]float64
}

func newImplicitField(cubeMin r3.Vector, sideLength float64, depth int) *implicitField {
	return &implicitField{
		cubeMin:    cubeMin,
		sideLength: sideLength,
		depth:      depth,
		flux:       map[cornerKey]float64{},
		weight:     map[cornerKey]float64{},
		resolved:   map[cornerKey]float64{},
	}
}

func (f *implicitField) cellSize(level int) float64 {
	return f.sideLength / float64(int(1)<<level)
}

func (f *implicitField) cornerPos(key cornerKey) r3.Vector {
	size := f.cellSize(key.level)
	return r3.Vector{
		X: f.cubeMin.X + float64(key.i)*size,
		Y: f.cubeMin.Y + float64(key.j)*size,
		Z: f.cubeMin.Z + float64(key.k)*size,
	}
}

// cellAt returns the lattice cell containing p at the given level along with
// the fractional position inside it, clamping points on the cube boundary
// into the outermost cells.
func (f *implicitField) cellAt(level int, p r3.Vector) (i, j, k int, fx, fy, fz float64) {
	cells := int(1) << level
	size := f.cellSize(level)
	locate := func(v, minV float64) (int, float64) {
		local := (v - minV) / size
		c := int(math.Floor(local))
		if c < 0 {
			c = 0
		}
		if c >= cells {
			c = cells - 1
		}
		frac := local - float64(c)
		if frac < 0 {
			frac = 0
		}
		if frac > 1 {
			frac = 1
		}
		return c, frac
	}
	i, fx = locate(p.X, f.cubeMin.X)
	j, fy = locate(p.Y, f.cubeMin.Y)
	k, fz = locate(p.Z, f.cubeMin.Z)
	return
}

// splat distributes one oriented sample's plane flux to the eight corners of
// its containing cell at every level, weighted trilinearly. Each corner
// accumulates the signed distance from the sample's tangent plane to the
// corner, so dividing flux by weight later recovers a signed-distance-like
// field whose gradient follows the sample normals.
func (f *implicitField) splat(p, normal r3.Vector) {
	for level := 0; level <= f.depth; level++ {
		i, j, k, fx, fy, fz := f.cellAt(level, p)
		for di := 0; di <= 1; di++ {
			wx := 1 - fx
			if di == 1 {
				wx = fx
			}
			for dj := 0; dj <= 1; dj++ {
				wy := 1 - fy
				if dj == 1 {
					wy = fy
				}
				for dk := 0; dk <= 1; dk++ {
					wz := 1 - fz
					if dk == 1 {
						wz = fz
					}
					w := wx * wy * wz
					if w < minSplatWeight {
						continue
					}
					key := cornerKey{level: level, i: i + di, j: j + dj, k: k + dk}
					f.flux[key] += w * normal.Dot(f.cornerPos(key).Sub(p))
					f.weight[key] += w
				}
			}
		}
	}
}

// valueAtCorner evaluates the field at a lattice corner, blending the corner's
// own observations with the interpolated parent level. Corners far from every
// sample fall back level by level until the root lattice, which every sample
// touches.
func (f *implicitField) valueAtCorner(key cornerKey) float64 {
	if v, ok := f.resolved[key]; ok {
		return v
	}

	var value float64
	weight, observed := f.weight[key]
	observed = observed && weight > minSplatWeight
	switch {
	case key.level == 0 && observed:
		value = f.flux[key] / weight
	case key.level == 0:
		value = 0
	case observed:
		fine := f.flux[key] / weight
		coarse := f.interpolateAt(key.level-1, f.cornerPos(key))
		value = (1-smoothingBlend)*fine + smoothingBlend*coarse
	default:
		value = f.interpolateAt(key.level-1, f.cornerPos(key))
	}

	f.resolved[key] = value
	return value
}

// interpolateAt trilinearly interpolates the field at an arbitrary position
// using the corner lattice of the given level.
func (f *implicitField) interpolateAt(level int, p r3.Vector) float64 {
	i, j, k, fx, fy, fz := f.cellAt(level, p)
	var sum float64
	for di := 0; di <= 1; di++ {
		wx := 1 - fx
		if di == 1 {
			wx = fx
		}
		for dj := 0; dj <= 1; dj++ {
			wy := 1 - fy
			if dj == 1 {
				wy = fy
			}
			for dk := 0; dk <= 1; dk++ {
				wz := 1 - fz
				if dk == 1 {
					wz = fz
				}
				w := wx * wy * wz
				if w == 0 {
					continue
				}
				sum += w * f.valueAtCorner(cornerKey{level: level, i: i + di, j: j + dj, k: k + dk})
			}
		}
	}
	return sum
}
