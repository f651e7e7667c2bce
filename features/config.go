package features

import (
	"fmt"
	"math"
)

// Config parameterizes an Extractor. Zero SampleRate keeps the source's
// native rate; zero HopLength derives the hop from FrameRate and the
// resolved sample rate.
type Config struct {
	SampleRate int     `json:"sample_rate" toml:"sample_rate"`
	HopLength  int     `json:"hop_length" toml:"hop_length"`
	FrameRate  float64 `json:"frame_rate" toml:"frame_rate"`
	NFFT       int     `json:"n_fft" toml:"n_fft"`
	NMFCC      int     `json:"n_mfcc" toml:"n_mfcc"`
	NMels      int     `json:"n_mels" toml:"n_mels"`
	FMax       float64 `json:"fmax" toml:"fmax"`
}

// Defaults.
const (
	DefaultSampleRate = 22050
	DefaultHopLength  = 512
	DefaultFrameRate  = 200.0
	DefaultNFFT       = 2048
	DefaultNMFCC      = 13
	DefaultNMels      = 128
	DefaultFMax       = 8000.0
)

// DefaultConfig returns 22050 Hz, hop 512, 2048 point transforms, 13 MFCCs
// and 128 mel bands up to 8 kHz.
func DefaultConfig() Config {
	return Config{
		SampleRate: DefaultSampleRate,
		HopLength:  DefaultHopLength,
		FrameRate:  DefaultFrameRate,
		NFFT:       DefaultNFFT,
		NMFCC:      DefaultNMFCC,
		NMels:      DefaultNMels,
		FMax:       DefaultFMax,
	}
}

// Validate reports the first invalid field as ErrInvalidConfig.
func (c Config) Validate() error {
	switch {
	case c.SampleRate < 0:
		return fmt.Errorf("%w: sample_rate %d is negative", ErrInvalidConfig, c.SampleRate)
	case c.HopLength < 0:
		return fmt.Errorf("%w: hop_length %d is negative", ErrInvalidConfig, c.HopLength)
	case c.HopLength == 0 && !(c.FrameRate > 0):
		return fmt.Errorf("%w: frame_rate must be positive when hop_length is derived", ErrInvalidConfig)
	case c.NFFT < 16:
		return fmt.Errorf("%w: n_fft %d is too small", ErrInvalidConfig, c.NFFT)
	case c.NMels < 1:
		return fmt.Errorf("%w: n_mels must be positive", ErrInvalidConfig)
	case c.NMFCC < 1 || c.NMFCC > c.NMels:
		return fmt.Errorf("%w: n_mfcc must be in [1, n_mels], got %d", ErrInvalidConfig, c.NMFCC)
	case c.FMax < 0 || math.IsNaN(c.FMax):
		return fmt.Errorf("%w: fmax must not be negative", ErrInvalidConfig)
	}
	return nil
}

// resolveHop returns HopLength, or round(sampleRate / FrameRate) when it is
// unset.
func (c Config) resolveHop(sampleRate int) int {
	if c.HopLength > 0 {
		return c.HopLength
	}
	return max(1, int(math.Round(float64(sampleRate)/c.FrameRate)))
}
