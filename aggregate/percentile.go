package aggregate

import (
	"math"
	"sort"
)

// Percentile returns the p-th percentile of the samples using the nearest
// rank formula: sort ascending, index = ceil(p/100 * n) - 1, clamped to
// [0, n-1]. p = 50 is the median and averages the two middle elements on an
// even count. The second return is false when there are no samples; the
// value is then NaN, never a division by zero.
func Percentile(samples []float64, p float64) (float64, bool) {
	n := len(samples)
	if n == 0 {
		return math.NaN(), false
	}

	sorted := make([]float64, n)
	copy(sorted, samples)
	sort.Float64s(sorted)

	if p == 50 {
		return medianSorted(sorted), true
	}

	idx := int(math.Ceil(p/100*float64(n))) - 1
	if idx < 0 {
		idx = 0
	}
	if idx > n-1 {
		idx = n - 1
	}
	return sorted[idx], true
}

// Median is the p50 case with even-count averaging.
func Median(samples []float64) (float64, bool) {
	return Percentile(samples, 50)
}

func medianSorted(sorted []float64) float64 {
	n := len(sorted)
	if n%2 == 1 {
		return sorted[n/2]
	}
	return (sorted[n/2-1] + sorted[n/2]) / 2
}

// Mean averages the samples; false when empty.
func Mean(samples []float64) (float64, bool) {
	if len(samples) == 0 {
		return math.NaN(), false
	}
	var sum float64
	for _, v := range samples {
		sum += v
	}
	return sum / float64(len(samples)), true
}
