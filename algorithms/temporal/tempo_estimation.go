package temporal

import (
	"fmt"
	"math"
)

// TempoEstimation picks the dominant tempo of an onset envelope from the
// time-averaged autocorrelation tempogram, weighted by a log-normal prior.
type TempoEstimation struct {
	StartBPM float64 // prior centre
	StdBPM   float64 // prior width in octaves
	MaxTempo float64 // tempi above are excluded
	ACSize   float64 // autocorrelation window in seconds
}

// NewTempoEstimation centres the prior at 120 BPM.
func NewTempoEstimation() *TempoEstimation {
	return &TempoEstimation{
		StartBPM: 120,
		StdBPM:   1.0,
		MaxTempo: 320,
		ACSize:   8.0,
	}
}

// TempoFrequencies returns the tempo in BPM of every autocorrelation lag;
// lag 0 maps to +Inf.
func TempoFrequencies(numLags, sampleRate, hopSize int) []float64 {
	bpms := make([]float64, numLags)
	bpms[0] = math.Inf(1)
	for lag := 1; lag < numLags; lag++ {
		bpms[lag] = 60.0 * float64(sampleRate) / (float64(hopSize) * float64(lag))
	}
	return bpms
}

// Estimate returns the tempo in BPM.
func (te *TempoEstimation) Estimate(envelope []float64, sampleRate, hopSize int) (float64, error) {
	if len(envelope) == 0 {
		return 0, fmt.Errorf("empty onset envelope")
	}
	if te.StartBPM <= 0 || te.StdBPM <= 0 {
		return 0, fmt.Errorf("invalid tempo prior: start=%f std=%f", te.StartBPM, te.StdBPM)
	}

	winLength := int(math.Floor(te.ACSize * float64(sampleRate) / float64(hopSize)))
	if winLength < 2 {
		return 0, fmt.Errorf("autocorrelation window of %d frames is too short", winLength)
	}

	tg, err := NewTempogram(winLength).Autocorrelation(envelope)
	if err != nil {
		return 0, err
	}

	mean := make([]float64, winLength)
	for _, frame := range tg {
		for lag, v := range frame {
			mean[lag] += v
		}
	}
	for lag := range mean {
		mean[lag] /= float64(len(tg))
	}

	bpms := TempoFrequencies(winLength, sampleRate, hopSize)
	best, bestScore := -1, math.Inf(-1)
	for lag := 1; lag < winLength; lag++ {
		if te.MaxTempo > 0 && bpms[lag] > te.MaxTempo {
			continue
		}
		z := (math.Log2(bpms[lag]) - math.Log2(te.StartBPM)) / te.StdBPM
		score := math.Log1p(1e6*mean[lag]) - 0.5*z*z
		if score > bestScore {
			best, bestScore = lag, score
		}
	}
	if best < 0 {
		return 0, fmt.Errorf("no admissible tempo below %.0f BPM", te.MaxTempo)
	}
	return bpms[best], nil
}
