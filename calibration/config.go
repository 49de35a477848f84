package calibration

import (
	"github.com/pkg/errors"
)

// Config carries every calibration threshold. All of them are independently
// tunable; the defaults suit a handheld depth sensor observing a card sized
// reference at arm's length.
type Config struct {
	// IdealDistance is the capture distance in meters the thresholds are
	// tuned for.
	IdealDistance float64 `json:"ideal_distance_m"`
	// DistanceTolerance is how far in meters the average corner depth may
	// stray from IdealDistance.
	DistanceTolerance float64 `json:"distance_tolerance_m"`
	// MaxAngleDeviationDeg bounds how far in degrees the reference surface
	// may turn away from facing the camera.
	MaxAngleDeviationDeg float64 `json:"max_angle_deviation_deg"`
	// MaxPlaneResidual bounds the mean distance in meters of the corner
	// points to their fitted plane.
	MaxPlaneResidual float64 `json:"max_plane_residual_m"`
	// MaxCornerDepthVariance bounds the variance in square meters across
	// the four corner depths.
	MaxCornerDepthVariance float64 `json:"max_corner_depth_variance_m2"`
	// MinFactor and MaxFactor bound the plausible scale factor. A factor
	// outside them means the detection or the depth data is wrong, not the
	// sensor scale.
	MinFactor float64 `json:"min_factor"`
	MaxFactor float64 `json:"max_factor"`
	// MinSampleConfidence is the lowest blended quality score a frame may
	// have and still be accepted.
	MinSampleConfidence float64 `json:"min_sample_confidence"`
	// MinSamples is how many accepted samples aggregation needs.
	MinSamples int `json:"min_samples"`
	// MaxSamples caps the sample buffer; the lowest confidence samples are
	// discarded beyond it.
	MaxSamples int `json:"max_samples"`
	// TrimFraction is the share of sorted factors dropped from each end
	// before taking the median.
	TrimFraction float64 `json:"trim_fraction"`
}

// DefaultConfig returns the thresholds used when nothing is overridden.
func DefaultConfig() Config {
	return Config{
		IdealDistance:          0.30,
		DistanceTolerance:      0.10,
		MaxAngleDeviationDeg:   25,
		MaxPlaneResidual:       0.005,
		MaxCornerDepthVariance: 8e-6,
		MinFactor:              0.85,
		MaxFactor:              1.15,
		MinSampleConfidence:    0.6,
		MinSamples:             10,
		MaxSamples:             20,
		TrimFraction:           0.15,
	}
}

// Validate returns an error if the thresholds cannot drive a calibration
// session.
func (cfg Config) Validate() error {
	if cfg.IdealDistance <= 0 {
		return errors.Errorf("ideal distance must be positive, got %v", cfg.IdealDistance)
	}
	if cfg.DistanceTolerance <= 0 {
		return errors.Errorf("distance tolerance must be positive, got %v", cfg.DistanceTolerance)
	}
	if cfg.MaxAngleDeviationDeg <= 0 || cfg.MaxAngleDeviationDeg > 90 {
		return errors.Errorf("max angle deviation must be in (0, 90] degrees, got %v", cfg.MaxAngleDeviationDeg)
	}
	if cfg.MaxPlaneResidual <= 0 {
		return errors.Errorf("max plane residual must be positive, got %v", cfg.MaxPlaneResidual)
	}
	if cfg.MaxCornerDepthVariance <= 0 {
		return errors.Errorf("max corner depth variance must be positive, got %v", cfg.MaxCornerDepthVariance)
	}
	if cfg.MinFactor <= 0 || cfg.MinFactor >= cfg.MaxFactor {
		return errors.Errorf("factor range [%v, %v] must be positive and ordered", cfg.MinFactor, cfg.MaxFactor)
	}
	if cfg.MinSampleConfidence < 0 || cfg.MinSampleConfidence >= 1 {
		return errors.Errorf("min sample confidence must be in [0, 1), got %v", cfg.MinSampleConfidence)
	}
	if cfg.MinSamples < minTrimmedSamples {
		return errors.Errorf("min samples must be at least %d, got %d", minTrimmedSamples, cfg.MinSamples)
	}
	if cfg.MaxSamples < cfg.MinSamples {
		return errors.Errorf("max samples (%d) must not be below min samples (%d)", cfg.MaxSamples, cfg.MinSamples)
	}
	if cfg.TrimFraction < 0 || cfg.TrimFraction >= 0.5 {
		return errors.Errorf("trim fraction must be in [0, 0.5), got %v", cfg.TrimFraction)
	}
	return nil
}
