package config

import "github.com/proxemy/muse/features"

const (
	defaultOutputDir       = "muse-output"
	defaultLayout          = "per_source"
	defaultColormap        = "magma"
	defaultMinHeight       = 128
	defaultTimeoutSeconds  = 30
	defaultResampleQuality = 4
	defaultJobs            = 1
	defaultLogLevel        = "info"
	defaultLogColor        = "auto"
)

// Default returns a Config populated with built-in defaults.
func Default() Config {
	fc := features.DefaultConfig()
	return Config{
		Extractor: Extractor{
			SampleRate: fc.SampleRate,
			HopLength:  fc.HopLength,
			FrameRate:  fc.FrameRate,
			NFFT:       fc.NFFT,
			NMFCC:      fc.NMFCC,
			NMels:      fc.NMels,
			FMax:       fc.FMax,
		},
		Decoder: Decoder{
			FFmpegPath:      "ffmpeg",
			FFprobePath:     "ffprobe",
			TimeoutSeconds:  defaultTimeoutSeconds,
			EnableFFmpeg:    true,
			ResampleQuality: defaultResampleQuality,
		},
		Output: Output{
			Dir:       defaultOutputDir,
			Layout:    defaultLayout,
			Colormap:  defaultColormap,
			MinHeight: defaultMinHeight,
			Manifest:  true,
		},
		Batch: Batch{
			Jobs: defaultJobs,
		},
		Logging: Logging{
			Level:            defaultLogLevel,
			Color:            defaultLogColor,
			SuppressWarnings: true,
		},
	}
}
