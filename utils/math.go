// Package utils contains math helpers shared across the scanning pipeline.
package utils

import (
	"math"
	"sort"
)

func DegToRad(degrees float64) float64 {
	return degrees * math.Pi / 180
}

func RadToDeg(radians float64) float64 {
	return radians * 180 / math.Pi
}

// Median returns the median of the given values. It returns NaN when no
// values are given. The input slice is sorted in place.
func Median(values ...float64) float64 {
	if len(values) == 0 {
		return math.NaN()
	}
	sort.Float64s(values)

	return values[int(math.Floor(float64(len(values))/2))]
}

// Clamp returns min if value is lesser than min, max if value is greater them max, else value.
func Clamp(value, min, max float64) float64 {
	if value < min {
		return min
	}
	if value > max {
		return max
	}
	return value
}

func AbsInt(n int) int {
	if n < 0 {
		return -1 * n
	}
	return n
}

func MaxInt(a, b int) int {
	if a < b {
		return b
	}
	return a
}

func MinInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}

func CubeRoot(x float64) float64 {
	p := 1.0 / 3.0
	return math.Pow(x, p)
}
