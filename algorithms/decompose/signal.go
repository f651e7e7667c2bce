package decompose

import (
	"fmt"

	"github.com/r9y9/gossp/stft"

	"github.com/proxemy/muse/algorithms/spectral"
	"github.com/proxemy/muse/logging"
)

// SignalSeparator splits a waveform into harmonic and percussive waveforms:
// centred STFT, spectrogram HPSS, then weighted overlap-add back to the
// original length.
type SignalSeparator struct {
	NFFT   int
	Hop    int
	Params HPSSParams

	synth  *spectral.STFT
	logger logging.Logger
}

// NewSignalSeparator uses a 2048 point transform with hop 512.
func NewSignalSeparator() *SignalSeparator {
	return &SignalSeparator{
		NFFT:   2048,
		Hop:    512,
		Params: DefaultHPSSParams(),
		synth:  spectral.NewSTFT(),
		logger: logging.WithFields(logging.Fields{
			"component": "signal_separator",
		}),
	}
}

// Separate returns harmonic and percussive signals of the same length as
// signal. Their sum approximates the input.
func (s *SignalSeparator) Separate(signal []float64) (harmonic, percussive []float64, err error) {
	if len(signal) == 0 {
		return nil, nil, fmt.Errorf("empty signal")
	}
	if s.NFFT <= 0 || s.Hop <= 0 {
		return nil, nil, fmt.Errorf("invalid framing: nfft=%d hop=%d", s.NFFT, s.Hop)
	}

	pad := s.NFFT / 2
	padded := make([]float64, len(signal)+2*pad)
	copy(padded[pad:], signal)

	analyzer := stft.New(s.Hop, s.NFFT)
	full := analyzer.STFT(padded)
	if len(full) == 0 {
		return nil, nil, fmt.Errorf("signal produced no frames")
	}

	bins := s.NFFT/2 + 1
	half := make([][]complex128, len(full))
	for t, frame := range full {
		half[t] = frame[:bins]
	}

	h, p, err := HPSS(half, s.Params)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to separate spectrogram: %w", err)
	}

	// synthesis weights by the same window the analyzer applied
	window := analyzer.Window
	harmonic, err = s.synth.Inverse(h, s.NFFT, s.Hop, window, true, len(signal))
	if err != nil {
		return nil, nil, fmt.Errorf("failed to invert harmonic part: %w", err)
	}
	percussive, err = s.synth.Inverse(p, s.NFFT, s.Hop, window, true, len(signal))
	if err != nil {
		return nil, nil, fmt.Errorf("failed to invert percussive part: %w", err)
	}

	s.logger.Debug("signal separated", logging.Fields{
		"samples": len(signal),
		"frames":  len(full),
	})
	return harmonic, percussive, nil
}
