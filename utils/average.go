package utils

// RollingAverage keeps a running mean over a fixed window of samples.
type RollingAverage struct {
	data []float64
	pos  int
	n    int
}

// NewRollingAverage returns a rolling average over the given window size.
func NewRollingAverage(windowSize int) *RollingAverage {
	return &RollingAverage{data: make([]float64, windowSize), pos: 0}
}

// WindowSize returns the fixed capacity of the window.
func (ra *RollingAverage) WindowSize() int {
	return len(ra.data)
}

// NumSamples returns how many samples the window currently holds.
func (ra *RollingAverage) NumSamples() int {
	return ra.n
}

// Add records a sample, displacing the oldest once the window is full.
func (ra *RollingAverage) Add(x float64) {
	ra.data[ra.pos] = x
	ra.pos++
	if ra.pos >= len(ra.data) {
		ra.pos = 0
	}
	if ra.n < len(ra.data) {
		ra.n++
	}
}

// Average returns the mean of the held samples, or 0 when none were added.
func (ra *RollingAverage) Average() float64 {
	if ra.n == 0 {
		return 0
	}
	sum := 0.0
	for _, d := range ra.data[:ra.n] {
		sum += d
	}
	return sum / float64(ra.n)
}
