package camera

import (
	"math"

	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"
)

// Pose is a rigid camera-to-world transform.
type Pose struct {
	rotation    *mat.Dense
	translation r3.Vector
}

// NewPose creates a pose from a 3x3 rotation matrix and a translation. The
// matrix must be a proper rotation, reflections are rejected.
func NewPose(rotation *mat.Dense, translation r3.Vector) (*Pose, error) {
	nRows, nCols := rotation.Dims()
	if nRows != 3 || nCols != 3 {
		return nil, errors.Errorf("rotation matrix must be 3x3, got %dx%d", nRows, nCols)
	}
	if det := mat.Det(rotation); math.Abs(det-1.) > 1e-6 {
		return nil, errors.Errorf("rotation matrix determinant must be 1, got %f", det)
	}
	return &Pose{rotation: mat.DenseCopyOf(rotation), translation: translation}, nil
}

// NewPoseFromMat creates a pose from a 3x4 [R|t] matrix.
func NewPoseFromMat(poseMat *mat.Dense) (*Pose, error) {
	nRows, nCols := poseMat.Dims()
	if nRows != 3 || nCols != 4 {
		return nil, errors.Errorf("pose matrix must be 3x4, got %dx%d", nRows, nCols)
	}
	rotation := mat.DenseCopyOf(poseMat.Slice(0, 3, 0, 3))
	translation := r3.Vector{X: poseMat.At(0, 3), Y: poseMat.At(1, 3), Z: poseMat.At(2, 3)}
	return NewPose(rotation, translation)
}

// IdentityPose returns the pose of a camera sitting at the world origin looking
// down the +Z axis.
func IdentityPose() *Pose {
	rotation := mat.NewDense(3, 3, []float64{
		1, 0, 0,
		0, 1, 0,
		0, 0, 1,
	})
	return &Pose{rotation: rotation}
}

// Rotation returns a copy of the 3x3 rotation matrix.
func (p *Pose) Rotation() *mat.Dense {
	return mat.DenseCopyOf(p.rotation)
}

// Translation returns the camera position in the world frame.
func (p *Pose) Translation() r3.Vector {
	return p.translation
}

// TransformPoint maps a camera-frame point into the world frame.
func (p *Pose) TransformPoint(v r3.Vector) r3.Vector {
	return p.TransformDirection(v).Add(p.translation)
}

// TransformDirection rotates a camera-frame direction into the world frame
// without translating it.
func (p *Pose) TransformDirection(v r3.Vector) r3.Vector {
	return r3.Vector{
		X: p.rotation.At(0, 0)*v.X + p.rotation.At(0, 1)*v.Y + p.rotation.At(0, 2)*v.Z,
		Y: p.rotation.At(1, 0)*v.X + p.rotation.At(1, 1)*v.Y + p.rotation.At(1, 2)*v.Z,
		Z: p.rotation.At(2, 0)*v.X + p.rotation.At(2, 1)*v.Y + p.rotation.At(2, 2)*v.Z,
	}
}

// Forward returns the camera viewing direction in the world frame. Depth
// increases along +Z in the camera frame.
func (p *Pose) Forward() r3.Vector {
	return p.TransformDirection(r3.Vector{Z: 1})
}
