package transcode

import (
	"context"
	"errors"
	"fmt"

	"github.com/proxemy/muse/logging"
)

// ErrDecode is returned when audio cannot be read or contains no samples.
var ErrDecode = errors.New("decode failed")

// LoaderConfig configures a Loader.
type LoaderConfig struct {
	EnableFFmpeg    bool
	FFmpeg          FFmpegConfig
	ResampleQuality int
}

// DefaultLoaderConfig enables the ffmpeg fallback and uses resample quality 4.
func DefaultLoaderConfig() LoaderConfig {
	return LoaderConfig{
		EnableFFmpeg:    true,
		FFmpeg:          DefaultFFmpegConfig(),
		ResampleQuality: 4,
	}
}

// Loader turns a Source into a mono waveform.
type Loader struct {
	config   LoaderConfig
	formats  *Formats
	examples *Examples
	ffmpeg   *FFmpegDecoder
	logger   logging.Logger
}

// NewLoader builds a Loader. The ffmpeg fallback is kept only when enabled
// and both binaries resolve.
func NewLoader(config LoaderConfig) *Loader {
	l := &Loader{
		config:   config,
		examples: DefaultExamples(),
		logger:   logging.WithFields(logging.Fields{"component": "loader"}),
	}
	if config.EnableFFmpeg {
		dec := NewFFmpegDecoder(config.FFmpeg)
		if err := dec.Available(); err != nil {
			l.logger.Debug("ffmpeg fallback disabled", logging.Fields{"reason": err.Error()})
		} else {
			l.ffmpeg = dec
		}
	}
	l.formats = NewFormats(l.ffmpeg != nil)
	return l
}

// Formats returns the formats this loader can read.
func (l *Loader) Formats() *Formats { return l.formats }

// Examples returns the named example registry.
func (l *Loader) Examples() *Examples { return l.examples }

// Load decodes src to mono PCM. A sampleRate of 0 keeps the native rate.
func (l *Loader) Load(ctx context.Context, src Source, sampleRate int) (*AudioData, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if sampleRate < 0 {
		return nil, fmt.Errorf("%w: negative sample rate %d", ErrDecode, sampleRate)
	}

	var (
		audio *AudioData
		err   error
	)
	switch s := src.(type) {
	case FilePath:
		audio, err = l.loadFile(ctx, s.Path(), sampleRate)
	case NamedExample:
		audio, err = l.loadExample(s.Name())
	default:
		return nil, fmt.Errorf("%w: unsupported source %T", ErrInvalidSource, src)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrDecode, src.DisplayName(), err)
	}

	if len(audio.PCM) == 0 {
		return nil, fmt.Errorf("%w: %s: no samples", ErrDecode, src.DisplayName())
	}

	if sampleRate > 0 && audio.SampleRate != sampleRate {
		l.logger.Debug("Resampling", logging.Fields{
			"source": src.DisplayName(),
			"from":   audio.SampleRate,
			"to":     sampleRate,
		})
		pcm, err := Resample(audio.PCM, audio.SampleRate, sampleRate, l.config.ResampleQuality)
		if err != nil {
			return nil, fmt.Errorf("%w: %s: resample: %w", ErrDecode, src.DisplayName(), err)
		}
		audio.PCM = pcm
		audio.SampleRate = sampleRate
		audio.Duration = samplesDuration(len(pcm), sampleRate)
	}

	return audio, nil
}

func (l *Loader) loadFile(ctx context.Context, path string, sampleRate int) (*AudioData, error) {
	format, ok := l.formats.ByPath(path)
	if !ok {
		return nil, fmt.Errorf("unsupported format")
	}

	switch format.Backend {
	case BackendFLAC:
		return decodeFLAC(path)
	case BackendBeep:
		audio, err := decodeBeep(path)
		if err != nil && l.ffmpeg != nil {
			l.logger.Warn("Native decoder failed, retrying with ffmpeg", logging.Fields{
				"path":  path,
				"error": err.Error(),
			})
			return l.ffmpeg.DecodeFile(ctx, path, sampleRate)
		}
		return audio, err
	case BackendFFmpeg:
		if l.ffmpeg == nil {
			return nil, fmt.Errorf("ffmpeg unavailable")
		}
		return l.ffmpeg.DecodeFile(ctx, path, sampleRate)
	}
	return nil, fmt.Errorf("unknown backend %q", format.Backend)
}

func (l *Loader) loadExample(name string) (*AudioData, error) {
	pcm, ok := l.examples.Render(name)
	if !ok {
		return nil, fmt.Errorf("unknown example %q", name)
	}
	return &AudioData{
		PCM:        pcm,
		SampleRate: ExampleSampleRate,
		Channels:   1,
		Duration:   samplesDuration(len(pcm), ExampleSampleRate),
		Codec:      "synth",
		Backend:    "example",
	}, nil
}
