package calibration

import (
	"fmt"

	"github.com/pkg/errors"
)

// Gate identifies one of the ordered acceptance checks a frame must pass
// before it yields a calibration sample.
type Gate string

// The gates, in the order they are checked. Earlier gates are cheaper and
// catch grosser problems, so a rejection names the first thing wrong with
// the frame.
const (
	// GateDepthVariance rejects frames whose four corner depths disagree,
	// which is what a tilted or curved surface looks like to the sensor.
	GateDepthVariance Gate = "corner_depth_variance"
	// GatePlaneResidual rejects frames whose corners do not lie on a common
	// plane, such as a bent card.
	GatePlaneResidual Gate = "plane_residual"
	// GateAngle rejects frames where the reference surface is not facing
	// the camera square on.
	GateAngle Gate = "viewing_angle"
	// GateDistance rejects frames captured outside the working distance
	// band around the ideal capture distance.
	GateDistance Gate = "capture_distance"
	// GateFactor rejects frames whose derived scale factor falls outside
	// the plausible sensor error range.
	GateFactor Gate = "factor_range"
	// GateConfidence rejects frames whose blended quality score is too low
	// even though every hard gate passed.
	GateConfidence Gate = "sample_confidence"
)

// GateError reports a frame rejected by one of the calibration gates. It
// carries the measured value and the configured limit it violated so a
// capture UI can tell the operator what to fix and an integrator can tune
// the threshold.
type GateError struct {
	Gate  Gate
	Value float64
	Limit float64
}

func (e *GateError) Error() string {
	return fmt.Sprintf("calibration frame rejected by %s gate: measured %v, limit %v", e.Gate, e.Value, e.Limit)
}

func newGateError(gate Gate, value, limit float64) *GateError {
	return &GateError{Gate: gate, Value: value, Limit: limit}
}

// IsGate reports whether err is a rejection by the given gate.
func IsGate(err error, gate Gate) bool {
	var gateErr *GateError
	return errors.As(err, &gateErr) && gateErr.Gate == gate
}
