package temporal

import (
	"fmt"
	"math/cmplx"

	"github.com/proxemy/muse/algorithms/common"
	"github.com/proxemy/muse/algorithms/spectral"
	"github.com/proxemy/muse/algorithms/windowing"
)

// DefaultTempogramWindow is the onset-envelope window length in frames.
const DefaultTempogramWindow = 384

// Tempogram computes local periodicity of an onset envelope.
type Tempogram struct {
	WinLength int
	fft       *spectral.FFT
	stft      *spectral.STFT
}

// NewTempogram creates a tempogram calculator with the given window length.
func NewTempogram(winLength int) *Tempogram {
	if winLength <= 0 {
		winLength = DefaultTempogramWindow
	}
	return &Tempogram{
		WinLength: winLength,
		fft:       spectral.NewFFT(),
		stft:      spectral.NewSTFT(),
	}
}

// Autocorrelation returns a time x lag matrix: for every onset frame, the
// autocorrelation of the Hann-windowed envelope segment centred on it, up to
// WinLength lags. The envelope is padded with linear ramps to zero so every
// frame has a full segment. The result is not normalised.
func (tg *Tempogram) Autocorrelation(envelope []float64) ([][]float64, error) {
	n := len(envelope)
	if n == 0 {
		return nil, fmt.Errorf("empty onset envelope")
	}

	win := tg.WinLength
	half := win / 2
	padded := linearRampPad(envelope, half)
	window := windowing.NewHann(win, false)
	fftSize := common.NextPowerOfTwo(2 * win)

	out := make([][]float64, n)
	segment := make([]float64, fftSize)
	for t := range n {
		clear(segment)
		copy(segment, padded[t:t+win])
		if err := window.ApplyInPlace(segment[:win]); err != nil {
			return nil, err
		}
		out[t] = tg.autocorrelate(segment, win)
	}
	return out, nil
}

// autocorrelate returns the first maxLag autocorrelation values of a
// zero-padded segment via the power spectrum.
func (tg *Tempogram) autocorrelate(segment []float64, maxLag int) []float64 {
	spectrum := tg.fft.Compute(segment)
	for i, c := range spectrum {
		a := cmplx.Abs(c)
		spectrum[i] = complex(a*a, 0)
	}
	ac := tg.fft.ComputeInverseReal(spectrum)
	return ac[:maxLag]
}

// Fourier returns the time x (WinLength/2+1) magnitude of the centred STFT
// of the onset envelope with a hop of one frame.
func (tg *Tempogram) Fourier(envelope []float64, frameRate int) ([][]float64, error) {
	if len(envelope) == 0 {
		return nil, fmt.Errorf("empty onset envelope")
	}
	res, err := tg.stft.ComputeCentered(envelope, tg.WinLength, 1, frameRate, windowing.NewHann(tg.WinLength, false))
	if err != nil {
		return nil, fmt.Errorf("failed to compute fourier tempogram: %w", err)
	}
	return res.Magnitude, nil
}

// linearRampPad pads x by width samples on each side, ramping linearly from
// zero at the outer edge towards the edge sample.
func linearRampPad(x []float64, width int) []float64 {
	out := make([]float64, len(x)+2*width)
	copy(out[width:], x)
	first, last := x[0], x[len(x)-1]
	for i := range width {
		out[i] = first * float64(i) / float64(width)
		out[len(out)-1-i] = last * float64(i) / float64(width)
	}
	return out
}
