package spectral

import (
	"fmt"
	"math"
)

// MelScale converts between Hz and mel and builds triangular filter banks.
// The default is the Slaney scale (linear below 1 kHz, logarithmic above)
// with area-normalised filters; HTK selects the 2595*log10 formula.
type MelScale struct {
	HTK bool
}

// NewMelScale creates a Slaney mel scale converter
func NewMelScale() *MelScale {
	return &MelScale{}
}

const (
	slaneyFSp      = 200.0 / 3
	slaneyMinLogHz = 1000.0
)

var (
	slaneyMinLogMel = slaneyMinLogHz / slaneyFSp
	slaneyLogStep   = math.Log(6.4) / 27.0
)

// HzToMel converts frequency in Hz to mel scale
func (ms *MelScale) HzToMel(hz float64) float64 {
	if ms.HTK {
		return 2595.0 * math.Log10(1.0+hz/700.0)
	}
	if hz < slaneyMinLogHz {
		return hz / slaneyFSp
	}
	return slaneyMinLogMel + math.Log(hz/slaneyMinLogHz)/slaneyLogStep
}

// MelToHz converts mel scale to frequency in Hz
func (ms *MelScale) MelToHz(mel float64) float64 {
	if ms.HTK {
		return 700.0 * (math.Pow(10.0, mel/2595.0) - 1.0)
	}
	if mel < slaneyMinLogMel {
		return mel * slaneyFSp
	}
	return slaneyMinLogHz * math.Exp(slaneyLogStep*(mel-slaneyMinLogMel))
}

// MelFrequencies returns n frequencies evenly spaced on the mel axis between
// lowFreq and highFreq inclusive.
func (ms *MelScale) MelFrequencies(n int, lowFreq, highFreq float64) []float64 {
	lowMel := ms.HzToMel(lowFreq)
	highMel := ms.HzToMel(highFreq)

	freqs := make([]float64, n)
	if n == 1 {
		freqs[0] = lowFreq
		return freqs
	}
	step := (highMel - lowMel) / float64(n-1)
	for i := range freqs {
		freqs[i] = ms.MelToHz(lowMel + float64(i)*step)
	}
	return freqs
}

// CreateMelFilterBank creates a numFilters x (fftSize/2+1) filter bank.
// Filters are built on continuous bin frequencies so narrow low bands still
// get weight at small FFT sizes.
func (ms *MelScale) CreateMelFilterBank(numFilters int, fftSize int, sampleRate int, lowFreq, highFreq float64) ([][]float64, error) {
	if numFilters <= 0 || fftSize <= 0 || sampleRate <= 0 {
		return nil, fmt.Errorf("invalid filter bank parameters: filters=%d fft=%d sr=%d", numFilters, fftSize, sampleRate)
	}
	nyquist := float64(sampleRate) / 2
	if highFreq <= 0 || highFreq > nyquist {
		highFreq = nyquist
	}
	if lowFreq < 0 || lowFreq >= highFreq {
		return nil, fmt.Errorf("invalid frequency range [%.1f, %.1f]", lowFreq, highFreq)
	}

	fftFreqs := FFTFrequencies(sampleRate, fftSize)
	melF := ms.MelFrequencies(numFilters+2, lowFreq, highFreq)

	filterBank := make([][]float64, numFilters)
	for m := range numFilters {
		filterBank[m] = make([]float64, len(fftFreqs))
		lower := melF[m+1] - melF[m]
		upper := melF[m+2] - melF[m+1]
		enorm := 1.0
		if !ms.HTK {
			enorm = 2.0 / (melF[m+2] - melF[m])
		}

		for k, f := range fftFreqs {
			rise := (f - melF[m]) / lower
			fall := (melF[m+2] - f) / upper
			w := math.Min(rise, fall)
			if w > 0 {
				filterBank[m][k] = w * enorm
			}
		}
	}

	return filterBank, nil
}

// ApplyFilterBank applies the filter bank to one power spectrum frame.
func (ms *MelScale) ApplyFilterBank(powerSpectrum []float64, filterBank [][]float64) []float64 {
	if len(filterBank) == 0 || len(powerSpectrum) == 0 {
		return []float64{}
	}

	melSpectrum := make([]float64, len(filterBank))
	for i, filter := range filterBank {
		sum := 0.0
		for j := 0; j < len(filter) && j < len(powerSpectrum); j++ {
			sum += powerSpectrum[j] * filter[j]
		}
		melSpectrum[i] = sum
	}

	return melSpectrum
}

// MelSpectrogram maps power spectrogram frames (time x bins) onto the mel
// filter bank, returning time x mel frames.
func (ms *MelScale) MelSpectrogram(powerFrames [][]float64, numFilters, sampleRate int, lowFreq, highFreq float64) ([][]float64, error) {
	if len(powerFrames) == 0 {
		return nil, fmt.Errorf("empty spectrogram")
	}
	fftSize := (len(powerFrames[0]) - 1) * 2
	filterBank, err := ms.CreateMelFilterBank(numFilters, fftSize, sampleRate, lowFreq, highFreq)
	if err != nil {
		return nil, err
	}

	mel := make([][]float64, len(powerFrames))
	for t, frame := range powerFrames {
		mel[t] = ms.ApplyFilterBank(frame, filterBank)
	}
	return mel, nil
}
