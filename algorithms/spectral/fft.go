package spectral

import (
	"github.com/mjibson/go-dsp/fft"
)

// FFT wraps mjibson/go-dsp for the transforms the feature graph needs.
type FFT struct{}

// NewFFT creates a new FFT calculator
func NewFFT() *FFT {
	return &FFT{}
}

// Compute computes the FFT of a real signal. go-dsp handles sizes that are
// not a power of two.
func (f *FFT) Compute(x []float64) []complex128 {
	if len(x) == 0 {
		return []complex128{}
	}
	return fft.FFTReal(x)
}

// ComputeInverse computes inverse FFT
func (f *FFT) ComputeInverse(x []complex128) []complex128 {
	if len(x) == 0 {
		return []complex128{}
	}
	return fft.IFFT(x)
}

// ComputeInverseReal computes inverse FFT and returns real part only
func (f *FFT) ComputeInverseReal(x []complex128) []float64 {
	if len(x) == 0 {
		return []float64{}
	}

	result := fft.IFFT(x)
	realResult := make([]float64, len(result))
	for i, val := range result {
		realResult[i] = real(val)
	}
	return realResult
}

// InverseHalfSpectrum rebuilds the conjugate-symmetric spectrum of length n
// from its n/2+1 non-negative bins and returns the real inverse transform.
func (f *FFT) InverseHalfSpectrum(half []complex128, n int) []float64 {
	full := make([]complex128, n)
	for k := 0; k < len(half) && k < n; k++ {
		full[k] = half[k]
	}
	for k := 1; k < (n+1)/2; k++ {
		if k < len(half) {
			re, im := real(half[k]), imag(half[k])
			full[n-k] = complex(re, -im)
		}
	}
	return f.ComputeInverseReal(full)
}

// FFTFrequencies returns the centre frequency of each of the n/2+1 bins.
func FFTFrequencies(sampleRate, n int) []float64 {
	bins := n/2 + 1
	freqs := make([]float64, bins)
	for i := range bins {
		freqs[i] = float64(i) * float64(sampleRate) / float64(n)
	}
	return freqs
}
