package temporal

import (
	"fmt"
	"math"

	"github.com/proxemy/muse/algorithms/common"
	"github.com/proxemy/muse/algorithms/spectral"
	"github.com/proxemy/muse/algorithms/windowing"
)

// Aggregate reduces one frame of positive spectral differences to a scalar.
type Aggregate func([]float64) float64

// OnsetStrength computes a spectral-flux onset envelope from the
// log-power mel spectrogram: the positive difference between each frame and
// the frame Lag before it, aggregated over mel bands.
type OnsetStrength struct {
	NFFT      int
	NMels     int
	FMax      float64 // <= 0 means Nyquist
	Lag       int
	Aggregate Aggregate

	stft     *spectral.STFT
	melScale *spectral.MelScale
}

// NewOnsetStrength uses a 2048 point transform, 128 mel bands, lag 1 and the
// mean over bands.
func NewOnsetStrength() *OnsetStrength {
	return &OnsetStrength{
		NFFT:      2048,
		NMels:     128,
		Lag:       1,
		Aggregate: common.Mean,
		stft:      spectral.NewSTFT(),
		melScale:  spectral.NewMelScale(),
	}
}

// Compute returns one onset value per centred STFT frame. The envelope is
// shifted right by Lag + NFFT/(2*hop) frames so values line up with the
// frame in which the change occurs.
func (o *OnsetStrength) Compute(signal []float64, sampleRate, hopSize int) ([]float64, error) {
	if len(signal) == 0 {
		return nil, fmt.Errorf("empty signal")
	}
	if o.Lag < 1 {
		return nil, fmt.Errorf("lag must be positive")
	}

	stftResult, err := o.stft.ComputeCentered(signal, o.NFFT, hopSize, sampleRate, windowing.NewHann(o.NFFT, false))
	if err != nil {
		return nil, fmt.Errorf("failed to compute STFT: %w", err)
	}

	power := spectral.NewPowerSpectrum().FromMagnitude(stftResult.Magnitude)
	mel, err := o.melScale.MelSpectrogram(power, o.NMels, sampleRate, 0, o.FMax)
	if err != nil {
		return nil, fmt.Errorf("failed to compute mel spectrogram: %w", err)
	}
	return o.FromLogMel(spectral.PowerToDB(mel, 1.0), hopSize), nil
}

// FromLogMel computes the envelope from time x band decibel frames.
func (o *OnsetStrength) FromLogMel(logMel [][]float64, hopSize int) []float64 {
	numFrames := len(logMel)
	envelope := make([]float64, numFrames)

	aggregate := o.Aggregate
	if aggregate == nil {
		aggregate = common.Mean
	}

	pad := o.Lag + o.NFFT/(2*hopSize)
	diff := make([]float64, 0, o.NMels)
	for t := o.Lag; t < numFrames; t++ {
		out := t - o.Lag + pad
		if out >= numFrames {
			break
		}
		diff = diff[:0]
		for b := range logMel[t] {
			diff = append(diff, math.Max(0, logMel[t][b]-logMel[t-o.Lag][b]))
		}
		envelope[out] = aggregate(diff)
	}
	return envelope
}
