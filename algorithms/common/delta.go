package common

import "fmt"

// Delta estimates the first derivative of every row of a time-major matrix
// (frames x dims) along time with a Savitzky-Golay filter of the given odd
// width and polynomial order 1. The first and last width/2 frames use the
// slope of a line fitted to the first and last width frames.
func Delta(frames [][]float64, width int) ([][]float64, error) {
	if width < 3 || width%2 == 0 {
		return nil, fmt.Errorf("delta width must be an odd integer >= 3, got %d", width)
	}
	n := len(frames)
	if n < width {
		return nil, fmt.Errorf("delta width %d exceeds %d frames", width, n)
	}

	half := width / 2
	denom := 0.0
	for k := -half; k <= half; k++ {
		denom += float64(k * k)
	}

	dims := len(frames[0])
	slope := func(center, d int) float64 {
		sum := 0.0
		for k := -half; k <= half; k++ {
			sum += float64(k) * frames[center+k][d]
		}
		return sum / denom
	}

	out := make([][]float64, n)
	for t := range n {
		out[t] = make([]float64, dims)
		center := min(max(t, half), n-1-half)
		for d := range dims {
			out[t][d] = slope(center, d)
		}
	}
	return out, nil
}
