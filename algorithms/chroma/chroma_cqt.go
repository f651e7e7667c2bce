package chroma

import (
	"fmt"
	"math"

	"github.com/proxemy/muse/algorithms/spectral"
	"github.com/proxemy/muse/algorithms/windowing"
)

// cqEnvThresh drops kernel weights that contribute nothing to a band.
const cqEnvThresh = 0.001

// ChromaCQT computes a chromagram from a constant-Q spectrum.
//
// The constant-Q bands are formed by a sparse matrix of Gaussian weights
// over the bins of a long FFT, one row per band, with band centres
// f_k = MinFreq * 2^(k/BinsPerOctave) and bandwidths growing with frequency.
type ChromaCQT struct {
	sampleRate    int
	fftSize       int
	minFreq       float64
	numOctaves    int
	binsPerOctave int

	kernel  [][]float64
	cqStart []int
	cqStop  []int
	stft    *spectral.STFT
}

// NewChromaCQT creates a CQT chromagram calculator. binsPerOctave must be a
// multiple of 12.
func NewChromaCQT(sampleRate, fftSize int, minFreq float64, numOctaves, binsPerOctave int) (*ChromaCQT, error) {
	if binsPerOctave <= 0 || binsPerOctave%NumChroma != 0 {
		return nil, fmt.Errorf("bins per octave must be a positive multiple of %d, got %d", NumChroma, binsPerOctave)
	}
	if sampleRate <= 0 || fftSize <= 0 || minFreq <= 0 || numOctaves <= 0 {
		return nil, fmt.Errorf("invalid CQT parameters")
	}

	cqt := &ChromaCQT{
		sampleRate:    sampleRate,
		fftSize:       fftSize,
		minFreq:       minFreq,
		numOctaves:    numOctaves,
		binsPerOctave: binsPerOctave,
		stft:          spectral.NewSTFT(),
	}
	cqt.makeLogFreqMap()
	return cqt, nil
}

// NewChromaCQTDefault starts at C1 and spans 7 octaves at 36 bins per octave.
func NewChromaCQTDefault(sampleRate int) (*ChromaCQT, error) {
	return NewChromaCQT(sampleRate, 4096, 32.703195662574764, 7, 36)
}

// NumBands returns the number of constant-Q bands actually kept (bands above
// Nyquist are dropped).
func (cqt *ChromaCQT) NumBands() int {
	return len(cqt.kernel)
}

func (cqt *ChromaCQT) makeLogFreqMap() {
	fratio := math.Pow(2.0, 1.0/float64(cqt.binsPerOctave))
	fftOutN := cqt.fftSize/2 + 1
	nyquist := float64(cqt.sampleRate) / 2
	fftfrqs := spectral.FFTFrequencies(cqt.sampleRate, cqt.fftSize)

	// normalisation constant so the kernel is close to orthonormal
	const ovfctr = 0.5475

	total := cqt.numOctaves * cqt.binsPerOctave
	for i := range total {
		logfrq := cqt.minFreq * math.Pow(2.0, float64(i)/float64(cqt.binsPerOctave))
		if logfrq >= nyquist {
			break
		}
		logfbw := math.Max(logfrq*(fratio-1.0), float64(cqt.sampleRate)/float64(cqt.fftSize))

		row := make([]float64, fftOutN)
		norm := 0.0
		scale := 1.0 / (ovfctr * logfbw)
		for j := range fftOutN {
			d := (logfrq - fftfrqs[j]) * scale
			row[j] = math.Exp(-0.5 * d * d)
			norm += row[j] * row[j]
		}
		norm = 2.0 * math.Sqrt(norm)

		start, stop := -1, fftOutN
		for j := range row {
			row[j] /= norm
			if start < 0 && row[j] > cqEnvThresh {
				start = j
			} else if start >= 0 && stop == fftOutN && row[j] < cqEnvThresh {
				stop = j
			}
		}
		if start < 0 {
			start, stop = 0, 0
		}

		cqt.kernel = append(cqt.kernel, row)
		cqt.cqStart = append(cqt.cqStart, start)
		cqt.cqStop = append(cqt.cqStop, stop)
	}
}

// Spectrum returns time x band constant-Q magnitudes of the signal.
func (cqt *ChromaCQT) Spectrum(signal []float64, hopSize int) ([][]float64, error) {
	if len(signal) == 0 {
		return nil, fmt.Errorf("empty signal")
	}

	stftResult, err := cqt.stft.ComputeCentered(signal, cqt.fftSize, hopSize, cqt.sampleRate, windowing.NewHann(cqt.fftSize, false))
	if err != nil {
		return nil, fmt.Errorf("failed to compute STFT: %w", err)
	}

	out := make([][]float64, stftResult.TimeFrames)
	for t, frame := range stftResult.Magnitude {
		out[t] = make([]float64, len(cqt.kernel))
		for i, row := range cqt.kernel {
			sum := 0.0
			for j := cqt.cqStart[i]; j < cqt.cqStop[i]; j++ {
				sum += row[j] * frame[j]
			}
			out[t][i] = sum
		}
	}
	return out, nil
}

// Fold sums constant-Q bands into pitch classes. With 3 bands per semitone
// the centre band of each group sits on the semitone.
func (cqt *ChromaCQT) Fold(cq [][]float64) [][]float64 {
	perSemitone := cqt.binsPerOctave / NumChroma

	chromagram := make([][]float64, len(cq))
	for t, frame := range cq {
		chromagram[t] = make([]float64, NumChroma)
		for k, v := range frame {
			semitone := int(math.Round(float64(k) / float64(perSemitone)))
			chromagram[t][semitone%NumChroma] += v
		}
	}
	return chromagram
}

// ComputeChroma returns a time x 12 chromagram normalised per frame by its
// maximum.
func (cqt *ChromaCQT) ComputeChroma(signal []float64, hopSize int) ([][]float64, error) {
	chromagram, err := cqt.ComputeChromaUnnormalized(signal, hopSize)
	if err != nil {
		return nil, err
	}
	for _, frame := range chromagram {
		NormalizeMax(frame)
	}
	return chromagram, nil
}

// ComputeChromaUnnormalized folds the constant-Q spectrum without scaling.
func (cqt *ChromaCQT) ComputeChromaUnnormalized(signal []float64, hopSize int) ([][]float64, error) {
	cq, err := cqt.Spectrum(signal, hopSize)
	if err != nil {
		return nil, err
	}
	return cqt.Fold(cq), nil
}
