package camera

import (
	"math"
	"testing"

	"github.com/pkg/errors"
	"go.viam.com/test"
)

func TestDepthMapBasic(t *testing.T) {
	dm := NewEmptyDepthMap(4, 3)
	test.That(t, dm.Width(), test.ShouldEqual, 4)
	test.That(t, dm.Height(), test.ShouldEqual, 3)
	test.That(t, dm.HasData(), test.ShouldBeTrue)

	dm.Set(2, 1, 0.75)
	test.That(t, dm.GetDepth(2, 1), test.ShouldEqual, 0.75)
	test.That(t, dm.GetDepth(1, 2), test.ShouldEqual, 0)

	test.That(t, dm.Contains(0, 0), test.ShouldBeTrue)
	test.That(t, dm.Contains(3, 2), test.ShouldBeTrue)
	test.That(t, dm.Contains(4, 0), test.ShouldBeFalse)
	test.That(t, dm.Contains(0, 3), test.ShouldBeFalse)
	test.That(t, dm.Contains(-1, 1), test.ShouldBeFalse)
}

func TestNewDepthMapFromData(t *testing.T) {
	dm, err := NewDepthMapFromData(2, 2, []float64{0.5, 0.6, 0.7, 0.8})
	test.That(t, err, test.ShouldBeNil)
	test.That(t, dm.GetDepth(1, 0), test.ShouldEqual, 0.6)
	test.That(t, dm.GetDepth(0, 1), test.ShouldEqual, 0.7)

	_, err = NewDepthMapFromData(2, 2, []float64{0.5})
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldContainSubstring, "expected 4 depth values")
}

func TestValidDepth(t *testing.T) {
	for _, tc := range []struct {
		z     float64
		valid bool
	}{
		{0, false},
		{0.1, false},
		{0.1001, true},
		{1.0, true},
		{1.999, true},
		{2.0, false},
		{5.0, false},
		{math.NaN(), false},
	} {
		test.That(t, ValidDepth(tc.z), test.ShouldEqual, tc.valid)
	}
}

func TestMedianOfWindow(t *testing.T) {
	dm := NewEmptyDepthMap(5, 5)
	// a 3x3 block of valid depths centered at (2, 2), everything else is dropout
	vals := []float64{0.5, 0.6, 0.7, 0.8, 0.9, 1.0, 1.1, 1.2, 1.3}
	i := 0
	for dy := -1; dy <= 1; dy++ {
		for dx := -1; dx <= 1; dx++ {
			dm.Set(2+dx, 2+dy, vals[i])
			i++
		}
	}

	t.Run("full window", func(t *testing.T) {
		z, err := dm.MedianOfWindow(2, 2, 1)
		test.That(t, err, test.ShouldBeNil)
		test.That(t, z, test.ShouldEqual, 0.9)
	})

	t.Run("clipped at image corner", func(t *testing.T) {
		// only (1, 1) of the window falls on valid data
		z, err := dm.MedianOfWindow(0, 0, 1)
		test.That(t, err, test.ShouldBeNil)
		test.That(t, z, test.ShouldEqual, 0.5)
	})

	t.Run("invalid readings skipped", func(t *testing.T) {
		dm.Set(2, 2, 0) // dropout at the center
		z, err := dm.MedianOfWindow(2, 2, 1)
		test.That(t, err, test.ShouldBeNil)
		// 8 samples remain, the median picks the upper middle one
		test.That(t, z, test.ShouldEqual, 1.0)
		dm.Set(2, 2, 0.9)
	})

	t.Run("no valid depth", func(t *testing.T) {
		_, err := dm.MedianOfWindow(4, 4, 0)
		test.That(t, errors.Is(err, ErrNoValidDepth), test.ShouldBeTrue)
	})
}

func TestDepthMinMax(t *testing.T) {
	dm := NewEmptyDepthMap(3, 1)
	minZ, maxZ := dm.MinMax()
	test.That(t, minZ, test.ShouldEqual, 0)
	test.That(t, maxZ, test.ShouldEqual, 0)

	dm.Set(0, 0, 0.4)
	dm.Set(1, 0, 1.6)
	dm.Set(2, 0, 9.0) // out of range, ignored
	minZ, maxZ = dm.MinMax()
	test.That(t, minZ, test.ShouldEqual, 0.4)
	test.That(t, maxZ, test.ShouldEqual, 1.6)
}
