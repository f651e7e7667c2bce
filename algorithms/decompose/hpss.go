package decompose

import (
	"fmt"
	"math"
	"math/cmplx"
	"runtime"
	"sync"

	"github.com/proxemy/muse/algorithms/common"
)

// HPSSParams configures median-filtering harmonic/percussive separation.
type HPSSParams struct {
	KernelHarmonic   int     `json:"kernel_harmonic"`   // frames, along time
	KernelPercussive int     `json:"kernel_percussive"` // bins, along frequency
	Power            float64 `json:"power"`             // soft mask exponent
	Margin           float64 `json:"margin"`
}

// DefaultHPSSParams uses 31 point kernels and Wiener-style masks.
func DefaultHPSSParams() HPSSParams {
	return HPSSParams{
		KernelHarmonic:   31,
		KernelPercussive: 31,
		Power:            2.0,
		Margin:           1.0,
	}
}

// HPSS splits a complex spectrogram (time x frequency) into harmonic and
// percussive components. Harmonic energy is smooth along time and
// percussive energy is smooth along frequency, so each is estimated with a
// median filter in its direction and turned into a soft mask.
func HPSS(spectrogram [][]complex128, params HPSSParams) (harmonic, percussive [][]complex128, err error) {
	if len(spectrogram) == 0 || len(spectrogram[0]) == 0 {
		return nil, nil, fmt.Errorf("empty spectrogram")
	}
	if params.Power <= 0 || params.Margin < 1 {
		return nil, nil, fmt.Errorf("invalid HPSS parameters: power=%f margin=%f", params.Power, params.Margin)
	}

	frames, bins := len(spectrogram), len(spectrogram[0])
	mag := make([][]float64, frames)
	for t, frame := range spectrogram {
		mag[t] = make([]float64, bins)
		for f, c := range frame {
			mag[t][f] = cmplx.Abs(c)
		}
	}

	harm := filterAlongTime(mag, params.KernelHarmonic)
	perc := make([][]float64, frames)
	parallelRows(frames, func(t int) {
		perc[t] = common.MedianFilter(mag[t], params.KernelPercussive)
	})

	harmonic = make([][]complex128, frames)
	percussive = make([][]complex128, frames)
	for t := range frames {
		harmonic[t] = make([]complex128, bins)
		percussive[t] = make([]complex128, bins)
		for f := range bins {
			mh := SoftMask(harm[t][f], perc[t][f]*params.Margin, params.Power)
			mp := SoftMask(perc[t][f], harm[t][f]*params.Margin, params.Power)
			harmonic[t][f] = spectrogram[t][f] * complex(mh, 0)
			percussive[t][f] = spectrogram[t][f] * complex(mp, 0)
		}
	}
	return harmonic, percussive, nil
}

// tinyNormal is the smallest positive normal float64.
const tinyNormal = 2.2250738585072014e-308

// SoftMask returns x^p / (x^p + ref^p), computed relative to max(x, ref)
// for stability. Cells where both are numerically zero get 0.
func SoftMask(x, ref, power float64) float64 {
	z := math.Max(x, ref)
	if z < tinyNormal {
		return 0
	}
	mask := math.Pow(x/z, power)
	refMask := math.Pow(ref/z, power)
	return mask / (mask + refMask)
}

func filterAlongTime(mag [][]float64, kernel int) [][]float64 {
	frames, bins := len(mag), len(mag[0])
	out := make([][]float64, frames)
	for t := range out {
		out[t] = make([]float64, bins)
	}

	parallelRows(bins, func(f int) {
		column := make([]float64, frames)
		for t := range frames {
			column[t] = mag[t][f]
		}
		filtered := common.MedianFilter(column, kernel)
		for t := range frames {
			out[t][f] = filtered[t]
		}
	})
	return out
}

// parallelRows runs fn for every index in [0, n) on a bounded set of
// workers. fn must only write state owned by its index.
func parallelRows(n int, fn func(i int)) {
	workers := max(min(runtime.NumCPU(), n), 1)
	jobs := make(chan int, n)
	for i := range n {
		jobs <- i
	}
	close(jobs)

	var wg sync.WaitGroup
	for range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				fn(i)
			}
		}()
	}
	wg.Wait()
}
