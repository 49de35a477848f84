package calibration

import (
	"sort"
	"sync"

	"github.com/benbjohnson/clock"
	"github.com/edaniels/golog"
	"github.com/google/uuid"
	"github.com/montanaflynn/stats"
	"github.com/pkg/errors"

	"github.com/volumetriclabs/scancore/utils"
)

// ErrNotEnoughSamples is when aggregation is requested before the session
// collected its minimum number of accepted samples.
var ErrNotEnoughSamples = errors.New("not enough calibration samples")

// minTrimmedSamples is the fewest samples allowed to survive outlier
// trimming. Trim amounts are clamped so a median is never taken over fewer
// values than this.
const minTrimmedSamples = 3

// Aggregation confidence falls linearly with the spread of the trimmed
// factors and never drops below the floor: by the time samples pass the
// per-frame gates, even a noisy session carries real signal.
const (
	spreadConfidenceSlope = 10.0
	confidenceFloor       = 0.6
)

// Aggregator folds accepted samples into one calibration result. It is
// safe for concurrent use; capture pipelines often accept samples from a
// camera goroutine while a UI goroutine polls Len.
type Aggregator struct {
	cfg    Config
	ref    ReferenceObject
	clock  clock.Clock
	logger golog.Logger

	mu      sync.Mutex
	samples []*Sample
}

// NewAggregator returns an aggregator for one calibration session.
func NewAggregator(cfg Config, ref ReferenceObject, logger golog.Logger) (*Aggregator, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if err := ref.Validate(); err != nil {
		return nil, err
	}
	return &Aggregator{
		cfg:    cfg,
		ref:    ref,
		clock:  clock.New(),
		logger: logger,
	}, nil
}

// Add records an accepted sample. Once the session holds its maximum, the
// lowest-confidence samples are evicted first, so a long capture keeps its
// best observations rather than its earliest.
func (a *Aggregator) Add(sample *Sample) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.samples = append(a.samples, sample)
	if len(a.samples) <= a.cfg.MaxSamples {
		return
	}
	sort.SliceStable(a.samples, func(i, j int) bool {
		return a.samples[i].Confidence > a.samples[j].Confidence
	})
	a.samples = a.samples[:a.cfg.MaxSamples]
}

// Len reports how many samples the session currently holds.
func (a *Aggregator) Len() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.samples)
}

// HasEnoughSamples reports whether Aggregate would run.
func (a *Aggregator) HasEnoughSamples() bool {
	return a.Len() >= a.cfg.MinSamples
}

// Reset discards all collected samples, starting the session over.
func (a *Aggregator) Reset() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.samples = nil
}

// Aggregate reduces the collected samples to a single scale factor: sort
// the per-sample factors, trim the configured fraction from both ends, and
// take the median of what remains. The trim is clamped so at least
// minTrimmedSamples values survive. Returns ErrNotEnoughSamples until the
// session has collected its configured minimum.
func (a *Aggregator) Aggregate() (*Result, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	n := len(a.samples)
	if n < a.cfg.MinSamples {
		return nil, errors.Wrapf(ErrNotEnoughSamples, "have %d, need %d", n, a.cfg.MinSamples)
	}

	factors := make([]float64, n)
	avgDepths := make([]float64, n)
	for i, s := range a.samples {
		factors[i] = s.Factor
		avgDepths[i] = s.AverageDepth
	}
	sort.Float64s(factors)

	trim := int(float64(n) * a.cfg.TrimFraction)
	if n-2*trim < minTrimmedSamples {
		trim = (n - minTrimmedSamples) / 2
	}
	trimmed := factors[trim : n-trim]

	median, err := stats.Median(trimmed)
	if err != nil {
		return nil, errors.Wrap(err, "median of trimmed factors")
	}
	spread, err := stats.StandardDeviation(trimmed)
	if err != nil {
		return nil, errors.Wrap(err, "spread of trimmed factors")
	}
	confidence := utils.Clamp(1-spreadConfidenceSlope*spread, confidenceFloor, 1)

	result := &Result{
		ID:            uuid.New(),
		Factor:        median,
		Confidence:    confidence,
		CreatedAt:     a.clock.Now(),
		Reference:     a.ref,
		SampleCount:   n,
		AverageDepths: avgDepths,
	}
	a.logger.Infof("calibration aggregated: factor %.4f from %d samples (%d trimmed per end), confidence %.2f",
		median, n, trim, confidence)
	return result, nil
}
