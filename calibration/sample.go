package calibration

import (
	"time"

	"github.com/golang/geo/r3"
)

// Sample is one frame's contribution to a calibration: the derived scale
// factor plus the measurements it was judged on. Samples are immutable once
// created; the Aggregator owns accepted ones and may discard the lowest
// confidence samples when its buffer fills.
type Sample struct {
	// Factor converts a sensor space length into a physical length.
	Factor float64
	// MeasuredWidth and MeasuredHeight are the reference object's edge
	// lengths in meters as reconstructed from this frame.
	MeasuredWidth  float64
	MeasuredHeight float64
	// CornerDepths holds the median sampled depth at each corner, in the
	// corner order of the frame.
	CornerDepths [4]float64
	// AverageDepth is the mean of the corner depths, the capture distance.
	AverageDepth float64
	// PlaneNormal is the fitted plane normal in the camera frame.
	PlaneNormal r3.Vector
	// PlaneResidual is the mean distance in meters of the corner points to
	// the fitted plane.
	PlaneResidual float64
	// AngleDeviation is how far in degrees the surface was from facing the
	// camera square on.
	AngleDeviation float64
	// DepthVariance is the variance in square meters across the corner
	// depths.
	DepthVariance float64
	// Confidence grades the sample in [0, 1].
	Confidence float64
	Timestamp  time.Time
}
