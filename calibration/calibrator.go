// Package calibration derives the physical scale of a scan by repeatedly
// observing a flat reference object of known size. A Calibrator turns one
// camera frame into at most one scale sample, gating hard on geometric
// consistency, and an Aggregator folds many accepted samples into a single
// robust calibration result.
package calibration

import (
	"math"

	"github.com/benbjohnson/clock"
	"github.com/edaniels/golog"
	"github.com/golang/geo/r2"
	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
	"gonum.org/v1/gonum/stat"

	"github.com/volumetriclabs/scancore/camera"
	"github.com/volumetriclabs/scancore/utils"
)

// cornerWindowRadius is the half width of the square depth window sampled
// around each corner, radius 1 meaning a 3x3 neighborhood.
const cornerWindowRadius = 1

// recentDepthWindow is how many recent frames feed the average depth a
// capture UI uses to steer the operator.
const recentDepthWindow = 10

// Confidence blend weights. Flatness evidence dominates because a bad plane
// fit corrupts the measured width directly; the factor term only rewards
// landing near the expected scale.
const (
	residualConfidenceWeight = 0.30
	angleConfidenceWeight    = 0.25
	varianceConfidenceWeight = 0.20
	distanceConfidenceWeight = 0.15
	factorConfidenceWeight   = 0.10
)

// Frame is one captured observation of the reference object: the detected
// rectangle plus the depth data and camera geometry needed to lift it into
// 3D.
type Frame struct {
	// Corners are the detected rectangle corners in normalized image
	// coordinates with a bottom-left origin, ordered top-left, top-right,
	// bottom-right, bottom-left. The top edge is the reference width.
	Corners [4]r2.Point
	// Depth is the depth image co-registered with the detection.
	Depth *camera.DepthMap
	// Intrinsics describe the camera that produced Depth.
	Intrinsics *camera.PinholeCameraIntrinsics
	// Pose is the camera to world transform at capture time.
	Pose *camera.Pose
}

func (f Frame) validate() error {
	if err := f.Intrinsics.CheckValid(); err != nil {
		return err
	}
	if f.Depth == nil || !f.Depth.HasData() {
		return errors.New("frame has no depth data")
	}
	if f.Pose == nil {
		return errors.New("frame has no camera pose")
	}
	return nil
}

// Calibrator turns frames into calibration samples. It is built per
// session and expects to be driven from a single capture loop, one call per
// camera frame.
type Calibrator struct {
	cfg         Config
	ref         ReferenceObject
	clock       clock.Clock
	logger      golog.Logger
	recentDepth *utils.RollingAverage
}

// NewCalibrator returns a calibrator measuring against the given reference
// object.
func NewCalibrator(cfg Config, ref ReferenceObject, logger golog.Logger) (*Calibrator, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if err := ref.Validate(); err != nil {
		return nil, err
	}
	return &Calibrator{
		cfg:         cfg,
		ref:         ref,
		clock:       clock.New(),
		logger:      logger,
		recentDepth: utils.NewRollingAverage(recentDepthWindow),
	}, nil
}

// Reference returns the object the calibrator measures against.
func (c *Calibrator) Reference() ReferenceObject {
	return c.ref
}

// RecentAverageDepth reports the mean corner depth over the last few
// frames whose corners could be depth sampled, accepted or not. A capture
// UI compares it against the ideal distance to tell the operator to move
// closer or farther. The second return is false until any frame has been
// sampled.
func (c *Calibrator) RecentAverageDepth() (float64, bool) {
	if c.recentDepth.NumSamples() == 0 {
		return 0, false
	}
	return c.recentDepth.Average(), true
}

// ProcessFrame derives one calibration sample from a frame, or rejects the
// frame. Rejections are either input errors, such as a corner outside the
// depth image, or a *GateError naming the first acceptance gate the frame
// failed.
func (c *Calibrator) ProcessFrame(frame Frame) (*Sample, error) {
	if err := frame.validate(); err != nil {
		return nil, err
	}

	depths, points, err := c.sampleCorners(frame)
	if err != nil {
		return nil, err
	}
	avgDepth := stat.Mean(depths[:], nil)
	c.recentDepth.Add(avgDepth)

	variance := stat.Variance(depths[:], nil)
	if variance > c.cfg.MaxCornerDepthVariance {
		return nil, newGateError(GateDepthVariance, variance, c.cfg.MaxCornerDepthVariance)
	}

	plane, err := FitCornerPlane(points)
	if err != nil {
		return nil, err
	}
	residual := plane.MeanResidual(points[:])
	if residual > c.cfg.MaxPlaneResidual {
		return nil, newGateError(GatePlaneResidual, residual, c.cfg.MaxPlaneResidual)
	}

	deviation := angleDeviationDeg(plane, frame.Pose)
	if deviation > c.cfg.MaxAngleDeviationDeg {
		return nil, newGateError(GateAngle, deviation, c.cfg.MaxAngleDeviationDeg)
	}

	if low := c.cfg.IdealDistance - c.cfg.DistanceTolerance; avgDepth < low {
		return nil, newGateError(GateDistance, avgDepth, low)
	}
	if high := c.cfg.IdealDistance + c.cfg.DistanceTolerance; avgDepth > high {
		return nil, newGateError(GateDistance, avgDepth, high)
	}

	width := points[1].Sub(points[0]).Norm()
	height := points[2].Sub(points[1]).Norm()
	factor := c.ref.WidthM / width
	if factor < c.cfg.MinFactor {
		return nil, newGateError(GateFactor, factor, c.cfg.MinFactor)
	}
	if factor > c.cfg.MaxFactor {
		return nil, newGateError(GateFactor, factor, c.cfg.MaxFactor)
	}

	confidence := c.confidence(residual, deviation, variance, avgDepth, factor)
	if confidence < c.cfg.MinSampleConfidence {
		return nil, newGateError(GateConfidence, confidence, c.cfg.MinSampleConfidence)
	}

	c.logger.Debugf("accepted calibration sample: factor %.4f, width %.4f m at %.3f m, confidence %.2f",
		factor, width, avgDepth, confidence)
	return &Sample{
		Factor:         factor,
		MeasuredWidth:  width,
		MeasuredHeight: height,
		CornerDepths:   depths,
		AverageDepth:   avgDepth,
		PlaneNormal:    plane.Normal(),
		PlaneResidual:  residual,
		AngleDeviation: deviation,
		DepthVariance:  variance,
		Confidence:     confidence,
		Timestamp:      c.clock.Now(),
	}, nil
}

// sampleCorners maps each detected corner onto the depth image, takes the
// median depth of its 3x3 neighborhood, and back-projects the corner into
// the camera frame through the pinhole model.
func (c *Calibrator) sampleCorners(frame Frame) ([4]float64, [4]r3.Vector, error) {
	var depths [4]float64
	var points [4]r3.Vector
	for i, corner := range frame.Corners {
		px, err := frame.Intrinsics.NormalizedToPixel(corner)
		if err != nil {
			return depths, points, errors.Wrapf(err, "corner %d", i)
		}
		z, err := frame.Depth.MedianOfWindow(px.X, px.Y, cornerWindowRadius)
		if err != nil {
			return depths, points, errors.Wrapf(err, "corner %d", i)
		}
		depths[i] = z
		x, y, z := frame.Intrinsics.PixelToPoint(float64(px.X), float64(px.Y), z)
		points[i] = r3.Vector{X: x, Y: y, Z: z}
	}
	return depths, points, nil
}

// angleDeviationDeg measures how far the reference surface is from facing
// the camera square on. The plane normal is moved into the world frame and
// compared against the camera viewing direction; a frontal surface has the
// two exactly opposed, 180 degrees apart.
func angleDeviationDeg(plane *Plane, pose *camera.Pose) float64 {
	worldNormal := pose.TransformDirection(plane.Normal())
	cos := utils.Clamp(worldNormal.Dot(pose.Forward()), -1, 1)
	return math.Abs(180 - utils.RadToDeg(math.Acos(cos)))
}

// confidence blends how comfortably the frame cleared each gate into one
// [0, 1] score. Every component is 1 at a perfect reading and falls to 0 as
// the measurement approaches its limit.
func (c *Calibrator) confidence(residual, deviation, variance, avgDepth, factor float64) float64 {
	factorSpan := math.Max(c.cfg.MaxFactor-1, 1-c.cfg.MinFactor)
	score := residualConfidenceWeight*marginScore(residual, c.cfg.MaxPlaneResidual) +
		angleConfidenceWeight*marginScore(deviation, c.cfg.MaxAngleDeviationDeg) +
		varianceConfidenceWeight*marginScore(variance, c.cfg.MaxCornerDepthVariance) +
		distanceConfidenceWeight*marginScore(math.Abs(avgDepth-c.cfg.IdealDistance), c.cfg.DistanceTolerance) +
		factorConfidenceWeight*marginScore(math.Abs(factor-1), factorSpan)
	return utils.Clamp(score, 0, 1)
}

// marginScore maps a measured value onto [0, 1] against its limit, 1 for a
// perfect zero reading and 0 at or beyond the limit.
func marginScore(value, limit float64) float64 {
	if limit <= 0 {
		return 0
	}
	return utils.Clamp(1-value/limit, 0, 1)
}
