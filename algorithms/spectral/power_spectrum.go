package spectral

import (
	"math"
	"math/cmplx"

	"gonum.org/v1/gonum/floats"
)

// Decibel conversion defaults.
const (
	DefaultPowerAmin     = 1e-10
	DefaultAmplitudeAmin = 1e-5
	DefaultTopDB         = 80.0
)

// RefMax asks ToDB to use the spectrogram maximum as the 0 dB reference.
const RefMax = -1.0

// PowerSpectrum computes power spectrograms and their decibel scaling.
type PowerSpectrum struct {
	Amin  float64
	TopDB float64 // <= 0 disables clipping
}

// NewPowerSpectrum creates a new power spectrum calculator
func NewPowerSpectrum() *PowerSpectrum {
	return &PowerSpectrum{Amin: DefaultPowerAmin, TopDB: DefaultTopDB}
}

// FromComplex returns |X|^power for every cell of a time x frequency matrix.
func (ps *PowerSpectrum) FromComplex(frames [][]complex128, power float64) [][]float64 {
	out := make([][]float64, len(frames))
	for t, frame := range frames {
		out[t] = make([]float64, len(frame))
		for f, c := range frame {
			mag := cmplx.Abs(c)
			if power == 1 {
				out[t][f] = mag
			} else if power == 2 {
				out[t][f] = mag * mag
			} else {
				out[t][f] = math.Pow(mag, power)
			}
		}
	}
	return out
}

// FromMagnitude squares every cell.
func (ps *PowerSpectrum) FromMagnitude(frames [][]float64) [][]float64 {
	out := make([][]float64, len(frames))
	for t, frame := range frames {
		out[t] = make([]float64, len(frame))
		for f, mag := range frame {
			out[t][f] = mag * mag
		}
	}
	return out
}

// ToDB converts a power spectrogram to decibels relative to ref
// (RefMax = spectrogram maximum). Values are floored at Amin and, when TopDB
// is positive, clipped to TopDB below the peak.
func (ps *PowerSpectrum) ToDB(power [][]float64, ref float64) [][]float64 {
	amin := ps.Amin
	if amin <= 0 {
		amin = DefaultPowerAmin
	}
	if ref == RefMax {
		ref = MaxValue(power)
	}
	offset := 10 * math.Log10(math.Max(amin, math.Abs(ref)))

	out := make([][]float64, len(power))
	peak := math.Inf(-1)
	for t, frame := range power {
		out[t] = make([]float64, len(frame))
		for f, p := range frame {
			v := 10*math.Log10(math.Max(amin, p)) - offset
			out[t][f] = v
			peak = math.Max(peak, v)
		}
	}

	if ps.TopDB > 0 {
		floor := peak - ps.TopDB
		for _, frame := range out {
			for f, v := range frame {
				if v < floor {
					frame[f] = floor
				}
			}
		}
	}
	return out
}

// AmplitudeToDB converts a magnitude spectrogram to decibels. ref is an
// amplitude (RefMax = magnitude maximum).
func AmplitudeToDB(magnitude [][]float64, ref float64) [][]float64 {
	if ref == RefMax {
		ref = MaxValue(magnitude)
	}
	ps := &PowerSpectrum{Amin: DefaultAmplitudeAmin * DefaultAmplitudeAmin, TopDB: DefaultTopDB}
	return ps.ToDB(ps.FromMagnitude(magnitude), ref*ref)
}

// PowerToDB is ToDB with the default amin and top_db.
func PowerToDB(power [][]float64, ref float64) [][]float64 {
	return NewPowerSpectrum().ToDB(power, ref)
}

// MaxValue returns the largest cell, or 0 for an empty matrix.
func MaxValue(frames [][]float64) float64 {
	peak := math.Inf(-1)
	for _, frame := range frames {
		if len(frame) > 0 {
			peak = math.Max(peak, floats.Max(frame))
		}
	}
	if math.IsInf(peak, -1) {
		return 0
	}
	return peak
}
