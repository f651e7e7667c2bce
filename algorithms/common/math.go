package common

import (
	"math"
	"slices"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// Mean calculates the arithmetic mean of a slice using gonum
func Mean(data []float64) float64 {
	if len(data) == 0 {
		return 0.0
	}
	return stat.Mean(data, nil)
}

// Variance calculates the sample variance of a slice using gonum
func Variance(data []float64) float64 {
	if len(data) < 2 {
		return 0.0
	}
	return stat.Variance(data, nil)
}

// StandardDeviation calculates the sample standard deviation
func StandardDeviation(data []float64) float64 {
	if len(data) < 2 {
		return 0.0
	}
	return math.Sqrt(Variance(data))
}

// RMS calculates root mean square
func RMS(data []float64) float64 {
	if len(data) == 0 {
		return 0.0
	}
	return floats.Norm(data, 2) / math.Sqrt(float64(len(data)))
}

// Median returns the middle value of data, averaging the two middle values
// for even lengths. data is not modified.
func Median(data []float64) float64 {
	if len(data) == 0 {
		return math.NaN()
	}
	sorted := slices.Clone(data)
	slices.Sort(sorted)
	return medianSorted(sorted)
}

func medianSorted(sorted []float64) float64 {
	n := len(sorted)
	if n%2 == 1 {
		return sorted[n/2]
	}
	return (sorted[n/2-1] + sorted[n/2]) / 2
}

// reflectIndex maps j into [0, n) mirroring about the sample edges
// (d c b a | a b c d | d c b a).
func reflectIndex(j, n int) int {
	period := 2 * n
	m := j % period
	if m < 0 {
		m += period
	}
	if m >= n {
		m = period - 1 - m
	}
	return m
}

// MedianFilter applies a centred running median of windowSize samples with
// reflected boundaries. Even window sizes are rounded up.
func MedianFilter(data []float64, windowSize int) []float64 {
	out := make([]float64, len(data))
	if len(data) == 0 {
		return out
	}
	if windowSize <= 1 {
		copy(out, data)
		return out
	}
	if windowSize%2 == 0 {
		windowSize++
	}

	half := windowSize / 2
	buf := make([]float64, windowSize)
	for i := range data {
		for k := range windowSize {
			buf[k] = data[reflectIndex(i+k-half, len(data))]
		}
		slices.Sort(buf)
		out[i] = buf[half]
	}
	return out
}

// ConvolveSame convolves data with kernel and returns the central
// len(data) samples (numpy "same" mode).
func ConvolveSame(data, kernel []float64) []float64 {
	n, m := len(data), len(kernel)
	if n == 0 || m == 0 {
		return make([]float64, n)
	}

	full := make([]float64, n+m-1)
	for i, x := range data {
		if x == 0 {
			continue
		}
		for j, k := range kernel {
			full[i+j] += x * k
		}
	}

	start := (m - 1) / 2
	return full[start : start+n]
}

// LocalMax marks x[i] > x[i-1] && x[i] >= x[i+1] with edge values repeated,
// so the first sample is never a maximum and the last one can be.
func LocalMax(x []float64) []bool {
	out := make([]bool, len(x))
	for i := range x {
		prev := x[max(i-1, 0)]
		next := x[min(i+1, len(x)-1)]
		out[i] = x[i] > prev && x[i] >= next
	}
	return out
}

// NextPowerOfTwo returns the smallest power of two >= n
func NextPowerOfTwo(n int) int {
	if n <= 1 {
		return 1
	}
	p := 1
	for p < n {
		p <<= 1
	}
	return p
}
