package calibration

import (
	"time"

	"github.com/google/uuid"
)

// Result is a finished calibration: the scale factor to apply to every
// reconstructed mesh from the session, with enough provenance to audit it
// later.
type Result struct {
	// ID uniquely names this calibration run.
	ID uuid.UUID `json:"id"`
	// Factor converts reconstructed units to meters. Multiply every vertex
	// by it.
	Factor float64 `json:"factor"`
	// Confidence in [0.6, 1] reflects how tightly the accepted samples
	// agreed.
	Confidence float64 `json:"confidence"`
	// CreatedAt is when the aggregation ran.
	CreatedAt time.Time `json:"created_at"`
	// Reference is the object the session measured against.
	Reference ReferenceObject `json:"reference"`
	// SampleCount is how many accepted samples fed the aggregation,
	// including any later trimmed as outliers.
	SampleCount int `json:"sample_count"`
	// AverageDepths records the mean corner depth of each contributing
	// sample, in acceptance order.
	AverageDepths []float64 `json:"average_depths"`
}
