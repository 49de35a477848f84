package camera

import (
	"math"

	"github.com/pkg/errors"

	"github.com/volumetriclabs/scancore/utils"
)

// Depth readings outside this range are sensor dropout or noise and are never
// used for measurement.
const (
	MinValidDepthMeters = 0.1
	MaxValidDepthMeters = 2.0
)

// ErrNoValidDepth is when a sampled depth window contains no usable readings.
var ErrNoValidDepth = errors.New("no valid depth in sampled window")

// DepthMap is a dense depth image with depths in meters, indexed from the
// top-left corner.
type DepthMap struct {
	width  int
	height int
	data   []float64
}

// NewEmptyDepthMap returns an unset depth map of the given dimensions.
func NewEmptyDepthMap(width, height int) *DepthMap {
	return &DepthMap{
		width:  width,
		height: height,
		data:   make([]float64, width*height),
	}
}

// NewDepthMapFromData wraps a row-major slice of depths in meters.
func NewDepthMapFromData(width, height int, data []float64) (*DepthMap, error) {
	if len(data) != width*height {
		return nil, errors.Errorf("expected %d depth values for a %dx%d map, got %d",
			width*height, width, height, len(data))
	}
	return &DepthMap{width: width, height: height, data: data}, nil
}

// Width returns the width of the depth map.
func (dm *DepthMap) Width() int {
	return dm.width
}

// Height returns the height of the depth map.
func (dm *DepthMap) Height() int {
	return dm.height
}

// HasData returns whether the depth map has any data.
func (dm *DepthMap) HasData() bool {
	return dm.width > 0 && dm.data != nil
}

// Contains returns whether the given coordinates are in the map.
func (dm *DepthMap) Contains(x, y int) bool {
	return x >= 0 && y >= 0 && x < dm.width && y < dm.height
}

// GetDepth returns the depth in meters at the given coordinates.
func (dm *DepthMap) GetDepth(x, y int) float64 {
	return dm.data[y*dm.width+x]
}

// Set sets the depth in meters at the given coordinates.
func (dm *DepthMap) Set(x, y int, z float64) {
	dm.data[y*dm.width+x] = z
}

// ValidDepth reports whether a depth reading is usable for measurement. The
// range bounds are exclusive.
func ValidDepth(z float64) bool {
	return !math.IsNaN(z) && z > MinValidDepthMeters && z < MaxValidDepthMeters
}

// MedianOfWindow returns the median of the valid depths in a square window of
// the given radius centered at (x, y), clipped to the image bounds. It returns
// ErrNoValidDepth when every reading in the window is invalid.
func (dm *DepthMap) MedianOfWindow(x, y, radius int) (float64, error) {
	valid := make([]float64, 0, (2*radius+1)*(2*radius+1))
	for dy := -radius; dy <= radius; dy++ {
		for dx := -radius; dx <= radius; dx++ {
			if !dm.Contains(x+dx, y+dy) {
				continue
			}
			z := dm.GetDepth(x+dx, y+dy)
			if ValidDepth(z) {
				valid = append(valid, z)
			}
		}
	}
	if len(valid) == 0 {
		return 0, errors.Wrapf(ErrNoValidDepth, "window radius %d at (%d, %d)", radius, x, y)
	}
	return utils.Median(valid...), nil
}

// MinMax returns the minimum and maximum valid depths in the map, or zeros if
// there are none.
func (dm *DepthMap) MinMax() (float64, float64) {
	minZ := math.MaxFloat64
	maxZ := 0.0
	found := false
	for _, z := range dm.data {
		if !ValidDepth(z) {
			continue
		}
		found = true
		if z < minZ {
			minZ = z
		}
		if z > maxZ {
			maxZ = z
		}
	}
	if !found {
		return 0, 0
	}
	return minZ, maxZ
}
