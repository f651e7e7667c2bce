package spectral

import (
	"fmt"
	"math"
)

// MFCC computes Mel-Frequency Cepstral Coefficients from a mel power
// spectrogram: decibel scaling followed by an orthonormal DCT-II.
type MFCC struct {
	numCoefficients int
	lifterCoeff     float64

	dctMatrix [][]float64
	dctInputs int
}

// MFCCParams contains parameters for MFCC computation
type MFCCParams struct {
	NumCoefficients int     `json:"num_coefficients"` // default 13
	LifterCoeff     float64 `json:"lifter_coeff"`     // 0 disables liftering
}

// NewMFCC creates an MFCC computer without liftering.
func NewMFCC(numCoefficients int) *MFCC {
	return NewMFCCWithParams(MFCCParams{NumCoefficients: numCoefficients})
}

// NewMFCCWithParams creates a new MFCC computer with custom parameters
func NewMFCCWithParams(params MFCCParams) *MFCC {
	if params.NumCoefficients <= 0 {
		params.NumCoefficients = 13
	}
	return &MFCC{
		numCoefficients: params.NumCoefficients,
		lifterCoeff:     math.Max(params.LifterCoeff, 0),
	}
}

// ComputeFrames converts mel power frames (time x mel) into time x
// coefficient frames.
func (mfcc *MFCC) ComputeFrames(melPower [][]float64) ([][]float64, error) {
	if len(melPower) == 0 {
		return nil, fmt.Errorf("empty mel spectrogram")
	}
	numMels := len(melPower[0])
	if numMels < mfcc.numCoefficients {
		return nil, fmt.Errorf("%d coefficients requested from %d mel bands", mfcc.numCoefficients, numMels)
	}
	if mfcc.dctInputs != numMels {
		mfcc.createDCTMatrix(numMels)
	}

	logMel := NewPowerSpectrum().ToDB(melPower, 1.0)

	out := make([][]float64, len(logMel))
	for t, frame := range logMel {
		coeffs := mfcc.applyDCT(frame)
		if mfcc.lifterCoeff > 0 {
			coeffs = mfcc.applyLiftering(coeffs)
		}
		out[t] = coeffs
	}
	return out, nil
}

func (mfcc *MFCC) createDCTMatrix(numMels int) {
	mfcc.dctInputs = numMels
	mfcc.dctMatrix = make([][]float64, mfcc.numCoefficients)

	for k := range mfcc.numCoefficients {
		mfcc.dctMatrix[k] = make([]float64, numMels)
		scale := math.Sqrt(2.0 / float64(numMels))
		if k == 0 {
			scale = math.Sqrt(1.0 / float64(numMels))
		}
		for n := range numMels {
			mfcc.dctMatrix[k][n] = scale * math.Cos(math.Pi*float64(k)*(float64(n)+0.5)/float64(numMels))
		}
	}
}

func (mfcc *MFCC) applyDCT(logMelSpectrum []float64) []float64 {
	coeffs := make([]float64, mfcc.numCoefficients)
	for k := range mfcc.numCoefficients {
		sum := 0.0
		for n, v := range logMelSpectrum {
			sum += v * mfcc.dctMatrix[k][n]
		}
		coeffs[k] = sum
	}
	return coeffs
}

// applyLiftering applies sinusoidal liftering to every coefficient
func (mfcc *MFCC) applyLiftering(coeffs []float64) []float64 {
	liftered := make([]float64, len(coeffs))
	for i, c := range coeffs {
		lifter := 1.0 + (mfcc.lifterCoeff/2.0)*math.Sin(math.Pi*float64(i+1)/mfcc.lifterCoeff)
		liftered[i] = c * lifter
	}
	return liftered
}

// DCTMatrix returns the DCT basis in use, nil before the first call.
func (mfcc *MFCC) DCTMatrix() [][]float64 {
	return mfcc.dctMatrix
}
