package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"

	"github.com/proxemy/muse/features"
	"github.com/proxemy/muse/transcode"
)

//go:embed sample_config.toml
var sampleConfig string

// Extractor mirrors features.Config. Zero sample_rate keeps each file's
// native rate; zero hop_length derives the hop from frame_rate.
type Extractor struct {
	SampleRate int     `toml:"sample_rate"`
	HopLength  int     `toml:"hop_length"`
	FrameRate  float64 `toml:"frame_rate"`
	NFFT       int     `toml:"n_fft"`
	NMFCC      int     `toml:"n_mfcc"`
	NMels      int     `toml:"n_mels"`
	FMax       float64 `toml:"fmax"`
}

// Decoder configures audio decoding.
type Decoder struct {
	FFmpegPath      string `toml:"ffmpeg_path"`
	FFprobePath     string `toml:"ffprobe_path"`
	TimeoutSeconds  int    `toml:"timeout_seconds"`
	EnableFFmpeg    bool   `toml:"enable_ffmpeg"`
	ResampleQuality int    `toml:"resample_quality"`
}

// Output configures where and how artifacts are written.
type Output struct {
	Dir        string `toml:"dir"`
	Layout     string `toml:"layout"`
	RawSidecar bool   `toml:"raw_sidecar"`
	Colormap   string `toml:"colormap"`
	MinHeight  int    `toml:"min_height"`
	Manifest   bool   `toml:"manifest"`
}

// Batch configures the orchestrator.
type Batch struct {
	Jobs int `toml:"jobs"`
}

// Logging contains configuration for log output.
type Logging struct {
	Level            string `toml:"level"`
	Color            string `toml:"color"`
	SuppressWarnings bool   `toml:"suppress_warnings"`
}

// Config encapsulates all configuration values for muse.
//
// Configuration sections by subsystem:
//   - Extractor: feature analysis parameters
//   - Decoder: native decoders, ffmpeg fallback and resampling
//   - Output: output root, layout, colormap and sidecars
//   - Batch: parallelism
//   - Logging: level, color and warning suppression
type Config struct {
	Extractor Extractor `toml:"extractor"`
	Decoder   Decoder   `toml:"decoder"`
	Output    Output    `toml:"output"`
	Batch     Batch     `toml:"batch"`
	Logging   Logging   `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath("~/.config/muse/config.toml")
}

// Load locates, parses, and validates a configuration file. An explicit
// path is used as given; otherwise ~/.config/muse/config.toml and then
// ./muse.toml are tried. Missing files leave the defaults in place.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		decoder.DisallowUnknownFields()
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := DefaultConfigPath()
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("muse.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// FeatureConfig converts the extractor section.
func (c *Config) FeatureConfig() features.Config {
	return features.Config{
		SampleRate: c.Extractor.SampleRate,
		HopLength:  c.Extractor.HopLength,
		FrameRate:  c.Extractor.FrameRate,
		NFFT:       c.Extractor.NFFT,
		NMFCC:      c.Extractor.NMFCC,
		NMels:      c.Extractor.NMels,
		FMax:       c.Extractor.FMax,
	}
}

// LoaderConfig converts the decoder section.
func (c *Config) LoaderConfig() transcode.LoaderConfig {
	return transcode.LoaderConfig{
		EnableFFmpeg: c.Decoder.EnableFFmpeg,
		FFmpeg: transcode.FFmpegConfig{
			FFmpegPath:  c.Decoder.FFmpegPath,
			FFprobePath: c.Decoder.FFprobePath,
			Timeout:     time.Duration(c.Decoder.TimeoutSeconds) * time.Second,
		},
		ResampleQuality: c.Decoder.ResampleQuality,
	}
}

// Encode returns the configuration as TOML text for the run manifest.
func (c *Config) Encode() (string, error) {
	var b strings.Builder
	if err := toml.NewEncoder(&b).Encode(c); err != nil {
		return "", fmt.Errorf("encode config: %w", err)
	}
	return b.String(), nil
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// SampleConfig returns the annotated sample configuration.
func SampleConfig() string {
	return sampleConfig
}

// CreateSample writes the sample configuration to path.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}

	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}
