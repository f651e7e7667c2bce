package main

import (
	"github.com/spf13/cobra"
)

func newRootCommand() *cobra.Command {
	var configFlag string
	var debug bool

	ctx := newCommandContext(&configFlag, &debug)
	opts := &extractOptions{}

	rootCmd := &cobra.Command{
		Use:   "muse",
		Short: "Render audio analysis features of music files",
		Long: `muse computes spectral, chroma, tempo, cepstral and beat-synchronous
features for every input and writes each one as a PNG heatmap.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if shouldSkipConfig(cmd) {
				return nil
			}
			_, err := ctx.ensureConfig()
			return err
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return runExtract(cmd, ctx, opts)
		},
	}

	rootCmd.PersistentFlags().StringVarP(&configFlag, "config", "c", "", "Configuration file path")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "Log at debug level and show library warnings")

	flags := rootCmd.Flags()
	flags.StringArrayVarP(&opts.inputs, "input", "i", nil, "Audio file or directory to analyze (repeatable)")
	flags.StringArrayVarP(&opts.examples, "example", "e", nil, "Built-in example signal to analyze (repeatable)")
	flags.StringVarP(&opts.output, "output", "o", "", "Output directory (default from config)")
	flags.IntVarP(&opts.jobs, "jobs", "j", 0, "Sources processed in parallel (default from config)")
	rootCmd.MarkFlagsMutuallyExclusive("input", "example")
	rootCmd.MarkFlagsOneRequired("input", "example")

	rootCmd.AddCommand(newFormatsCommand(ctx))
	rootCmd.AddCommand(newExamplesCommand())
	rootCmd.AddCommand(newConfigCommand())

	return rootCmd
}
