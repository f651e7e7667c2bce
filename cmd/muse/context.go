package main

import (
	"strings"
	"sync"

	"github.com/spf13/cobra"

	"github.com/proxemy/muse/config"
	"github.com/proxemy/muse/logging"
)

type commandContext struct {
	configFlag *string
	debugFlag  *bool

	configOnce sync.Once
	config     *config.Config
	configErr  error
}

func newCommandContext(configFlag *string, debugFlag *bool) *commandContext {
	return &commandContext{
		configFlag: configFlag,
		debugFlag:  debugFlag,
	}
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.configOnce.Do(func() {
		var path string
		if c.configFlag != nil {
			path = strings.TrimSpace(*c.configFlag)
		}
		cfg, _, _, err := config.Load(path)
		if err != nil {
			c.configErr = err
			return
		}
		c.config = cfg
	})
	return c.config, c.configErr
}

func (c *commandContext) debug() bool {
	return c.debugFlag != nil && *c.debugFlag
}

// newLogger builds the process logger from the logging section. --debug
// lowers the level and stops suppressing warnings.
func (c *commandContext) newLogger(cmd *cobra.Command, cfg *config.Config) (*logging.DefaultLogger, error) {
	level, err := logging.ParseLevel(cfg.Logging.Level)
	if err != nil {
		return nil, err
	}
	suppress := cfg.Logging.SuppressWarnings
	if c.debug() {
		level = logging.DebugLevel
		suppress = false
	}
	return logging.NewLogger(logging.Options{
		Level:            level,
		SuppressWarnings: suppress,
		Color:            cfg.Logging.Color,
		Stdout:           cmd.ErrOrStderr(),
		Stderr:           cmd.ErrOrStderr(),
	}), nil
}

func shouldSkipConfig(cmd *cobra.Command) bool {
	for c := cmd; c != nil; c = c.Parent() {
		if c.Annotations != nil && c.Annotations["skipConfigLoad"] == "true" {
			return true
		}
	}
	return false
}
