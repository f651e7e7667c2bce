package common

import (
	"fmt"
	"slices"
)

// FixFrames clips frame indices to [0, numFrames], adds both bounds and
// returns the sorted unique boundaries.
func FixFrames(frames []int, numFrames int) []int {
	out := make([]int, 0, len(frames)+2)
	out = append(out, 0, numFrames)
	for _, f := range frames {
		out = append(out, min(max(f, 0), numFrames))
	}
	slices.Sort(out)
	return slices.Compact(out)
}

// Sync aggregates a time-major matrix (frames x dims) between consecutive
// boundaries, producing one column per segment. Segment i covers frames
// [b_i, b_{i+1}) where b are the fixed boundaries of the given indices.
func Sync(frames [][]float64, boundaries []int, aggregate func([]float64) float64) ([][]float64, error) {
	if len(boundaries) == 0 {
		return nil, fmt.Errorf("no boundaries to synchronise to")
	}
	if len(frames) == 0 {
		return nil, fmt.Errorf("empty input")
	}

	idx := FixFrames(boundaries, len(frames))
	dims := len(frames[0])

	out := make([][]float64, 0, len(idx)-1)
	buf := make([]float64, 0, len(frames))
	for s := 0; s+1 < len(idx); s++ {
		lo, hi := idx[s], idx[s+1]
		segment := make([]float64, dims)
		for d := range dims {
			buf = buf[:0]
			for t := lo; t < hi; t++ {
				buf = append(buf, frames[t][d])
			}
			segment[d] = aggregate(buf)
		}
		out = append(out, segment)
	}
	return out, nil
}

// Transpose swaps the axes of a rectangular matrix.
func Transpose(m [][]float64) [][]float64 {
	if len(m) == 0 {
		return nil
	}
	out := make([][]float64, len(m[0]))
	for i := range out {
		out[i] = make([]float64, len(m))
		for j := range m {
			out[i][j] = m[j][i]
		}
	}
	return out
}
