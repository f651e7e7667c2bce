package chroma

import (
	"fmt"
	"math"

	"github.com/proxemy/muse/algorithms/spectral"
	"github.com/proxemy/muse/algorithms/windowing"
)

// NumChroma is the number of pitch classes, C first.
const NumChroma = 12

// Labels returns the pitch class names in bin order.
func Labels() []string {
	return []string{"C", "C#", "D", "D#", "E", "F", "F#", "G", "G#", "A", "A#", "B"}
}

// ChromaSTFT folds a power spectrogram onto the 12 pitch classes.
//
// Each FFT bin is assigned to its nearest semitone and weighted by a
// Gaussian over octaves centred at OctaveCenter (in octaves above A0) so
// that very low and very high bins contribute little.
type ChromaSTFT struct {
	sampleRate   int
	stft         *spectral.STFT
	tuningFreq   float64 // A4 frequency
	OctaveCenter float64
	OctaveWidth  float64 // <= 0 disables octave weighting
}

// NewChromaSTFT creates a new STFT-based chromagram calculator
func NewChromaSTFT(sampleRate int, tuningFreq float64) *ChromaSTFT {
	return &ChromaSTFT{
		sampleRate:   sampleRate,
		stft:         spectral.NewSTFT(),
		tuningFreq:   tuningFreq,
		OctaveCenter: 5.0,
		OctaveWidth:  2.0,
	}
}

// NewChromaSTFTDefault creates chromagram with standard A4=440Hz tuning
func NewChromaSTFTDefault(sampleRate int) *ChromaSTFT {
	return NewChromaSTFT(sampleRate, 440.0)
}

// ComputeChroma returns a time x 12 chromagram. Every frame is scaled so its
// largest pitch class is 1; silent frames stay zero.
func (cs *ChromaSTFT) ComputeChroma(signal []float64, windowSize, hopSize int) ([][]float64, error) {
	if len(signal) == 0 {
		return nil, fmt.Errorf("empty signal")
	}

	stftResult, err := cs.stft.ComputeCentered(signal, windowSize, hopSize, cs.sampleRate, windowing.NewHann(windowSize, false))
	if err != nil {
		return nil, fmt.Errorf("failed to compute STFT: %w", err)
	}

	power := spectral.NewPowerSpectrum().FromMagnitude(stftResult.Magnitude)
	return cs.FromPower(power, windowSize), nil
}

// FromPower folds time x bin power frames computed with an fftSize-point
// transform.
func (cs *ChromaSTFT) FromPower(power [][]float64, fftSize int) [][]float64 {
	if len(power) == 0 {
		return nil
	}
	bins, weights := cs.chromaMapping(len(power[0]), fftSize)

	chromagram := make([][]float64, len(power))
	for t, frame := range power {
		chromagram[t] = make([]float64, NumChroma)
		for f, p := range frame {
			if bins[f] >= 0 {
				chromagram[t][bins[f]] += p * weights[f]
			}
		}
		NormalizeMax(chromagram[t])
	}
	return chromagram
}

func (cs *ChromaSTFT) chromaMapping(freqBins, fftSize int) ([]int, []float64) {
	mapping := make([]int, freqBins)
	weights := make([]float64, freqBins)
	a0 := cs.tuningFreq / 16

	for f := range freqBins {
		frequency := float64(f) * float64(cs.sampleRate) / float64(fftSize)
		// DC carries no pitch
		if f == 0 || frequency <= 0 {
			mapping[f] = -1
			continue
		}

		midi := cs.frequencyToMIDI(frequency)
		mapping[f] = ((int(math.Round(midi)) % NumChroma) + NumChroma) % NumChroma

		weights[f] = 1
		if cs.OctaveWidth > 0 {
			octs := math.Log2(frequency / a0)
			z := (octs - cs.OctaveCenter) / cs.OctaveWidth
			weights[f] = math.Exp(-0.5 * z * z)
		}
	}

	return mapping, weights
}

// frequencyToMIDI converts frequency to MIDI note number (A4 = 69)
func (cs *ChromaSTFT) frequencyToMIDI(frequency float64) float64 {
	return 69.0 + 12.0*math.Log2(frequency/cs.tuningFreq)
}

// NormalizeMax scales v so its largest absolute value is 1.
func NormalizeMax(v []float64) {
	peak := 0.0
	for _, x := range v {
		peak = math.Max(peak, math.Abs(x))
	}
	if peak < 1e-10 {
		return
	}
	for i := range v {
		v[i] /= peak
	}
}
