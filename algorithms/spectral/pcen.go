package spectral

import (
	"fmt"
	"math"
)

// PCENParams configures per-channel energy normalisation.
type PCENParams struct {
	Gain         float64 `json:"gain"`
	Bias         float64 `json:"bias"`
	Power        float64 `json:"power"`
	TimeConstant float64 `json:"time_constant"` // seconds
	Eps          float64 `json:"eps"`
}

// DefaultPCENParams returns the usual PCEN settings.
func DefaultPCENParams() PCENParams {
	return PCENParams{
		Gain:         0.98,
		Bias:         2.0,
		Power:        0.5,
		TimeConstant: 0.4,
		Eps:          1e-6,
	}
}

// PCEN applies automatic gain control followed by root compression to a
// magnitude spectrogram (time x frequency). Each frequency channel is
// smoothed by a first-order IIR filter whose initial state equals the first
// frame.
func PCEN(magnitude [][]float64, sampleRate, hopLength int, params PCENParams) ([][]float64, error) {
	if len(magnitude) == 0 {
		return nil, fmt.Errorf("empty spectrogram")
	}
	if params.Power < 0 {
		return nil, fmt.Errorf("power must be non-negative, got %f", params.Power)
	}
	if params.Gain < 0 || params.Bias < 0 || params.Eps <= 0 || params.TimeConstant <= 0 {
		return nil, fmt.Errorf("invalid PCEN parameters: %+v", params)
	}
	if sampleRate <= 0 || hopLength <= 0 {
		return nil, fmt.Errorf("invalid framing: sr=%d hop=%d", sampleRate, hopLength)
	}

	tFrames := params.TimeConstant * float64(sampleRate) / float64(hopLength)
	b := (math.Sqrt(1+4*tFrames*tFrames) - 1) / (2 * tFrames * tFrames)

	bins := len(magnitude[0])
	smooth := make([]float64, bins)
	copy(smooth, magnitude[0])

	logEps := math.Log(params.Eps)
	out := make([][]float64, len(magnitude))
	for t, frame := range magnitude {
		out[t] = make([]float64, bins)
		for f, s := range frame {
			if t > 0 {
				smooth[f] = b*s + (1-b)*smooth[f]
			}
			agc := math.Exp(-params.Gain * (logEps + math.Log1p(smooth[f]/params.Eps)))
			switch {
			case params.Power == 0:
				out[t][f] = math.Log1p(s * agc)
			case params.Bias == 0:
				out[t][f] = math.Exp(params.Power * (math.Log(s) + math.Log(agc)))
			default:
				out[t][f] = math.Pow(params.Bias, params.Power) * math.Expm1(params.Power*math.Log1p(s*agc/params.Bias))
			}
		}
	}
	return out, nil
}
