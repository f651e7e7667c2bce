package config

import (
	"fmt"

	"github.com/proxemy/muse/logging"
	"github.com/proxemy/muse/render"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.FeatureConfig().Validate(); err != nil {
		return fmt.Errorf("extractor: %w", err)
	}
	if err := c.validateDecoder(); err != nil {
		return err
	}
	if err := c.validateOutput(); err != nil {
		return err
	}
	if c.Batch.Jobs < 1 {
		return fmt.Errorf("batch.jobs must be at least 1, got %d", c.Batch.Jobs)
	}
	return c.validateLogging()
}

func (c *Config) validateDecoder() error {
	if c.Decoder.TimeoutSeconds < 0 {
		return fmt.Errorf("decoder.timeout_seconds must not be negative")
	}
	if c.Decoder.ResampleQuality < 1 || c.Decoder.ResampleQuality > 64 {
		return fmt.Errorf("decoder.resample_quality must be between 1 and 64, got %d", c.Decoder.ResampleQuality)
	}
	return nil
}

func (c *Config) validateOutput() error {
	if _, err := render.ParseLayout(c.Output.Layout); err != nil {
		return fmt.Errorf("output.layout: %w", err)
	}
	if _, err := render.LookupColormap(c.Output.Colormap); err != nil {
		return fmt.Errorf("output.colormap: %w", err)
	}
	if c.Output.MinHeight < 0 {
		return fmt.Errorf("output.min_height must not be negative")
	}
	return nil
}

func (c *Config) validateLogging() error {
	if _, err := logging.ParseLevel(c.Logging.Level); err != nil {
		return fmt.Errorf("logging.level: %w", err)
	}
	switch c.Logging.Color {
	case "auto", "always", "never":
		return nil
	default:
		return fmt.Errorf("logging.color must be auto, always or never, got %q", c.Logging.Color)
	}
}
