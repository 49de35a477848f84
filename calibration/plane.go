package calibration

import (
	"math"

	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
)

// ErrDegenerateCorners is when the detected corners are coincident or
// collinear, so no plane can be fitted through them.
var ErrDegenerateCorners = errors.New("detected corners are degenerate")

// Plane is the flat surface fitted to one frame's back-projected corner
// points, in the camera frame that produced it. Points p on the plane
// satisfy dot(normal, p) + offset == 0. A plane is valid only for the frame
// it was fitted from and is recomputed every frame, never cached.
type Plane struct {
	normal   r3.Vector
	offset   float64
	centroid r3.Vector
}

// FitCornerPlane fits a plane to four corner points in the camera frame.
// The normal comes from the cross product of the two edges leaving the
// first corner and is oriented toward the camera at the origin; the plane
// itself passes through the corner centroid. It returns
// ErrDegenerateCorners when the corners are coincident or collinear.
func FitCornerPlane(corners [4]r3.Vector) (*Plane, error) {
	edge1 := corners[1].Sub(corners[0])
	edge2 := corners[3].Sub(corners[0])
	cross := edge1.Cross(edge2)
	if cross.Norm2() == 0 {
		return nil, errors.Wrapf(ErrDegenerateCorners, "corner edges %v and %v are parallel", edge1, edge2)
	}
	normal := cross.Normalize()
	// the camera sits at the origin looking down +Z, so a normal facing it
	// has a negative Z component
	if normal.Z > 0 {
		normal = normal.Mul(-1)
	}

	centroid := corners[0].Add(corners[1]).Add(corners[2]).Add(corners[3]).Mul(0.25)
	return &Plane{
		normal:   normal,
		offset:   -normal.Dot(centroid),
		centroid: centroid,
	}, nil
}

// Normal returns the unit normal, oriented toward the camera.
func (p *Plane) Normal() r3.Vector {
	return p.normal
}

// Offset returns the signed plane offset.
func (p *Plane) Offset() float64 {
	return p.offset
}

// Centroid returns the corner centroid the plane passes through.
func (p *Plane) Centroid() r3.Vector {
	return p.centroid
}

// Distance returns the signed perpendicular distance from pt to the plane,
// positive on the normal's side.
func (p *Plane) Distance(pt r3.Vector) float64 {
	return p.normal.Dot(pt) + p.offset
}

// MeanResidual returns the mean absolute distance of the given points to
// the plane, the flatness measure the residual gate checks.
func (p *Plane) MeanResidual(points []r3.Vector) float64 {
	if len(points) == 0 {
		return 0
	}
	var sum float64
	for _, pt := range points {
		sum += math.Abs(p.Distance(pt))
	}
	return sum / float64(len(points))
}
