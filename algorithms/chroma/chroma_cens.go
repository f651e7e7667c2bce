package chroma

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"

	"github.com/proxemy/muse/algorithms/windowing"
)

// CENSParams configures chroma energy normalised statistics.
type CENSParams struct {
	// Thresholds in descending order; each exceeded threshold adds Weight.
	Thresholds   []float64 `json:"thresholds"`
	Weight       float64   `json:"weight"`
	SmoothFrames int       `json:"smooth_frames"`
}

// DefaultCENSParams returns the standard quantisation and a 41 frame window.
func DefaultCENSParams() CENSParams {
	return CENSParams{
		Thresholds:   []float64{0.4, 0.2, 0.1, 0.05},
		Weight:       0.25,
		SmoothFrames: 41,
	}
}

// CENS turns a time x 12 chromagram into CENS features: L1 normalisation,
// logarithmic-like quantisation, Hann smoothing along time, then L2
// normalisation per frame.
func CENS(chromagram [][]float64, params CENSParams) ([][]float64, error) {
	if len(chromagram) == 0 {
		return nil, fmt.Errorf("empty chromagram")
	}
	if params.SmoothFrames < 1 {
		return nil, fmt.Errorf("smoothing window must be at least 1 frame")
	}

	numFrames := len(chromagram)
	bins := len(chromagram[0])

	quantized := make([][]float64, numFrames)
	for t, frame := range chromagram {
		quantized[t] = make([]float64, bins)
		sum := 0.0
		for _, v := range frame {
			sum += math.Abs(v)
		}
		if sum < 1e-10 {
			continue
		}
		for c, v := range frame {
			norm := math.Abs(v) / sum
			for _, th := range params.Thresholds {
				if norm > th {
					quantized[t][c] += params.Weight
				}
			}
		}
	}

	win := windowing.NewHann(params.SmoothFrames+2, true).Coefficients()
	win = win[1 : len(win)-1]
	floats.Scale(1/floats.Sum(win), win)
	half := len(win) / 2

	out := make([][]float64, numFrames)
	for t := range numFrames {
		out[t] = make([]float64, bins)
		for k, w := range win {
			src := t + k - half
			if src < 0 || src >= numFrames {
				continue
			}
			for c := range bins {
				out[t][c] += w * quantized[src][c]
			}
		}
		if n := floats.Norm(out[t], 2); n > 1e-10 {
			floats.Scale(1/n, out[t])
		}
	}
	return out, nil
}
