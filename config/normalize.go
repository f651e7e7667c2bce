package config

import (
	"fmt"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizeOutput(); err != nil {
		return err
	}
	c.normalizeDecoder()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizeOutput() error {
	if strings.TrimSpace(c.Output.Dir) == "" {
		c.Output.Dir = defaultOutputDir
	}
	var err error
	if c.Output.Dir, err = expandPath(c.Output.Dir); err != nil {
		return fmt.Errorf("output.dir: %w", err)
	}
	c.Output.Layout = strings.ToLower(strings.TrimSpace(c.Output.Layout))
	if c.Output.Layout == "" {
		c.Output.Layout = defaultLayout
	}
	c.Output.Colormap = strings.ToLower(strings.TrimSpace(c.Output.Colormap))
	if c.Output.Colormap == "" {
		c.Output.Colormap = defaultColormap
	}
	return nil
}

func (c *Config) normalizeDecoder() {
	c.Decoder.FFmpegPath = strings.TrimSpace(c.Decoder.FFmpegPath)
	if c.Decoder.FFmpegPath == "" {
		c.Decoder.FFmpegPath = "ffmpeg"
	}
	c.Decoder.FFprobePath = strings.TrimSpace(c.Decoder.FFprobePath)
	if c.Decoder.FFprobePath == "" {
		c.Decoder.FFprobePath = "ffprobe"
	}
}

func (c *Config) normalizeLogging() {
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
	c.Logging.Color = strings.ToLower(strings.TrimSpace(c.Logging.Color))
	if c.Logging.Color == "" {
		c.Logging.Color = defaultLogColor
	}
}
