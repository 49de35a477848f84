package calibration

import (
	"testing"
	"time"

	clk "github.com/benbjohnson/clock"
	"github.com/edaniels/golog"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"go.viam.com/test"
	"golang.org/x/sync/errgroup"
)

func makeSample(factor, confidence float64) *Sample {
	return &Sample{
		Factor:       factor,
		AverageDepth: 0.30,
		Confidence:   confidence,
	}
}

func TestNewAggregator(t *testing.T) {
	logger := golog.NewTestLogger(t)

	agg, err := NewAggregator(DefaultConfig(), DefaultReferenceCard(), logger)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, agg.Len(), test.ShouldEqual, 0)
	test.That(t, agg.HasEnoughSamples(), test.ShouldBeFalse)

	badCfg := DefaultConfig()
	badCfg.TrimFraction = 0.5
	agg, err = NewAggregator(badCfg, DefaultReferenceCard(), logger)
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, agg, test.ShouldBeNil)

	agg, err = NewAggregator(DefaultConfig(), ReferenceObject{}, logger)
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, agg, test.ShouldBeNil)
}

func TestAggregateTightSession(t *testing.T) {
	logger := golog.NewTestLogger(t)
	agg, err := NewAggregator(DefaultConfig(), DefaultReferenceCard(), logger)
	test.That(t, err, test.ShouldBeNil)
	mock := clk.NewMock()
	mock.Add(time.Hour)
	agg.clock = mock

	for _, f := range []float64{0.997, 0.998, 0.999, 1.0, 1.0, 1.0, 1.001, 1.001, 1.002, 1.003} {
		agg.Add(makeSample(f, 0.95))
	}
	test.That(t, agg.HasEnoughSamples(), test.ShouldBeTrue)

	res, err := agg.Aggregate()
	test.That(t, err, test.ShouldBeNil)
	test.That(t, res.ID, test.ShouldNotEqual, uuid.Nil)
	test.That(t, res.Factor, test.ShouldAlmostEqual, 1.0, 1e-9)
	test.That(t, res.Confidence, test.ShouldBeGreaterThanOrEqualTo, 0.95)
	test.That(t, res.CreatedAt, test.ShouldResemble, mock.Now())
	test.That(t, res.Reference.Name, test.ShouldEqual, "iso-id1-card")
	test.That(t, res.SampleCount, test.ShouldEqual, 10)
	test.That(t, len(res.AverageDepths), test.ShouldEqual, 10)
	test.That(t, res.AverageDepths[0], test.ShouldAlmostEqual, 0.30)
}

func TestAggregateRejectsOutliers(t *testing.T) {
	logger := golog.NewTestLogger(t)
	agg, err := NewAggregator(DefaultConfig(), DefaultReferenceCard(), logger)
	test.That(t, err, test.ShouldBeNil)

	// 17 honest readings around 1.0 and 3 wild ones from a glare flash
	sum := 0.0
	for i := 0; i < 17; i++ {
		f := 0.992 + 0.001*float64(i)
		sum += f
		agg.Add(makeSample(f, 0.9))
	}
	for _, f := range []float64{1.9, 2.0, 2.1} {
		sum += f
		agg.Add(makeSample(f, 0.9))
	}

	res, err := agg.Aggregate()
	test.That(t, err, test.ShouldBeNil)
	test.That(t, res.Factor, test.ShouldAlmostEqual, 1.0, 0.01)

	// a plain mean would have been dragged well past 10% off
	mean := sum / 20
	test.That(t, mean, test.ShouldBeGreaterThan, res.Factor*1.10)
}

func TestAggregateNotEnoughSamples(t *testing.T) {
	logger := golog.NewTestLogger(t)
	agg, err := NewAggregator(DefaultConfig(), DefaultReferenceCard(), logger)
	test.That(t, err, test.ShouldBeNil)

	for i := 0; i < 9; i++ {
		agg.Add(makeSample(1.0, 0.9))
	}
	res, err := agg.Aggregate()
	test.That(t, res, test.ShouldBeNil)
	test.That(t, errors.Is(err, ErrNotEnoughSamples), test.ShouldBeTrue)
	test.That(t, err.Error(), test.ShouldContainSubstring, "have 9, need 10")
}

func TestAddEvictsLowestConfidence(t *testing.T) {
	logger := golog.NewTestLogger(t)
	cfg := DefaultConfig()
	cfg.MinSamples = 5
	cfg.MaxSamples = 5
	cfg.TrimFraction = 0
	agg, err := NewAggregator(cfg, DefaultReferenceCard(), logger)
	test.That(t, err, test.ShouldBeNil)

	for i := 0; i < 5; i++ {
		agg.Add(makeSample(2.0, 0.6))
	}
	for i := 0; i < 3; i++ {
		agg.Add(makeSample(1.0, 0.95))
	}
	test.That(t, agg.Len(), test.ShouldEqual, 5)

	// the three late high-confidence samples displaced three early ones,
	// leaving factors [1, 1, 1, 2, 2]
	res, err := agg.Aggregate()
	test.That(t, err, test.ShouldBeNil)
	test.That(t, res.Factor, test.ShouldAlmostEqual, 1.0, 1e-9)
	// such a wide spread pins confidence to its floor
	test.That(t, res.Confidence, test.ShouldAlmostEqual, 0.6, 1e-9)
}

func TestAggregateTrimClamped(t *testing.T) {
	logger := golog.NewTestLogger(t)
	cfg := DefaultConfig()
	cfg.MinSamples = 5
	cfg.TrimFraction = 0.45
	agg, err := NewAggregator(cfg, DefaultReferenceCard(), logger)
	test.That(t, err, test.ShouldBeNil)

	for _, f := range []float64{0.7, 0.8, 0.9, 1.0, 1.3, 1.5, 1.6} {
		agg.Add(makeSample(f, 0.9))
	}

	// a naive trim of floor(7*0.45) per end would leave a single sample
	// and a perfect confidence; the clamp keeps three, whose spread lands
	// on the confidence floor
	res, err := agg.Aggregate()
	test.That(t, err, test.ShouldBeNil)
	test.That(t, res.Factor, test.ShouldAlmostEqual, 1.0, 1e-9)
	test.That(t, res.Confidence, test.ShouldAlmostEqual, 0.6, 1e-9)
}

func TestAggregatorReset(t *testing.T) {
	logger := golog.NewTestLogger(t)
	agg, err := NewAggregator(DefaultConfig(), DefaultReferenceCard(), logger)
	test.That(t, err, test.ShouldBeNil)

	for i := 0; i < 10; i++ {
		agg.Add(makeSample(1.0, 0.9))
	}
	test.That(t, agg.HasEnoughSamples(), test.ShouldBeTrue)

	agg.Reset()
	test.That(t, agg.Len(), test.ShouldEqual, 0)
	test.That(t, agg.HasEnoughSamples(), test.ShouldBeFalse)
	_, err = agg.Aggregate()
	test.That(t, errors.Is(err, ErrNotEnoughSamples), test.ShouldBeTrue)
}

func TestAggregatorConcurrentAdds(t *testing.T) {
	logger := golog.NewTestLogger(t)
	agg, err := NewAggregator(DefaultConfig(), DefaultReferenceCard(), logger)
	test.That(t, err, test.ShouldBeNil)

	var group errgroup.Group
	for i := 0; i < 4; i++ {
		group.Go(func() error {
			for j := 0; j < 10; j++ {
				agg.Add(makeSample(1.0, 0.9))
				agg.Len()
			}
			return nil
		})
	}
	test.That(t, group.Wait(), test.ShouldBeNil)
	test.That(t, agg.Len(), test.ShouldEqual, DefaultConfig().MaxSamples)

	res, err := agg.Aggregate()
	test.That(t, err, test.ShouldBeNil)
	test.That(t, res.Factor, test.ShouldAlmostEqual, 1.0, 1e-9)
	test.That(t, res.Confidence, test.ShouldAlmostEqual, 1.0, 1e-9)
}
