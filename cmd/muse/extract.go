package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/sys/unix"

	"github.com/proxemy/muse/batch"
	"github.com/proxemy/muse/config"
	"github.com/proxemy/muse/discovery"
	"github.com/proxemy/muse/logging"
	"github.com/proxemy/muse/manifest"
	"github.com/proxemy/muse/render"
	"github.com/proxemy/muse/transcode"
)

type extractOptions struct {
	inputs   []string
	examples []string
	output   string
	jobs     int
}

func runExtract(cmd *cobra.Command, ctx *commandContext, opts *extractOptions) error {
	cfg, err := ctx.ensureConfig()
	if err != nil {
		return err
	}

	logger, err := ctx.newLogger(cmd, cfg)
	if err != nil {
		return err
	}
	logging.SetGlobalLogger(logger)

	root := cfg.Output.Dir
	if strings.TrimSpace(opts.output) != "" {
		if root, err = config.ExpandPath(opts.output); err != nil {
			return fmt.Errorf("resolve output directory: %w", err)
		}
	}
	loader := transcode.NewLoader(cfg.LoaderConfig())
	sources, err := collectSources(loader, opts)
	if err != nil {
		return err
	}

	if err := prepareOutputDir(root); err != nil {
		return err
	}

	lock, err := render.LockOutput(root)
	if err != nil {
		return err
	}
	defer lock.Unlock()

	writer, err := newWriter(root, cfg)
	if err != nil {
		return err
	}

	jobs := cfg.Batch.Jobs
	if cmd.Flags().Changed("jobs") {
		if opts.jobs < 1 {
			return fmt.Errorf("--jobs must be at least 1, got %d", opts.jobs)
		}
		jobs = opts.jobs
	}

	batchOpts := batch.Options{
		Jobs:       jobs,
		Extractor:  cfg.FeatureConfig(),
		OutputRoot: root,
	}
	if cfg.Output.Manifest {
		store, err := manifest.Open(filepath.Join(root, manifest.FileName))
		if err != nil {
			return err
		}
		defer store.Close()
		batchOpts.Recorder = store
		if batchOpts.ConfigJSON, err = cfg.Encode(); err != nil {
			return err
		}
	}

	runCtx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	report, err := batch.New(loader, writer, batchOpts).Run(runCtx, sources)
	if report != nil {
		printReport(cmd.OutOrStdout(), report, root)
	}
	if err != nil {
		if errors.Is(err, context.Canceled) {
			logger.Warn("Interrupted")
		}
		return err
	}
	return nil
}

// prepareOutputDir creates dir and checks it is writable. It runs after
// source discovery so a bad input leaves nothing behind.
func prepareOutputDir(dir string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create output directory %q: %w", dir, err)
	}
	if err := unix.Access(dir, unix.W_OK); err != nil {
		return fmt.Errorf("output directory %q is not writable: %w", dir, err)
	}
	return nil
}

func collectSources(loader *transcode.Loader, opts *extractOptions) ([]transcode.Source, error) {
	if len(opts.examples) > 0 {
		sources := make([]transcode.Source, 0, len(opts.examples))
		for _, name := range opts.examples {
			src, err := transcode.NewNamedExample(name, loader.Examples())
			if err != nil {
				return nil, err
			}
			sources = append(sources, src)
		}
		return sources, nil
	}

	paths, err := discovery.New(loader.Formats()).Discover(opts.inputs)
	if err != nil {
		return nil, err
	}
	sources := make([]transcode.Source, 0, len(paths))
	for _, path := range paths {
		src, err := transcode.NewFilePath(path, loader.Formats())
		if err != nil {
			return nil, err
		}
		sources = append(sources, src)
	}
	return sources, nil
}

func newWriter(root string, cfg *config.Config) (*render.Writer, error) {
	layout, err := render.ParseLayout(cfg.Output.Layout)
	if err != nil {
		return nil, err
	}
	renderer, err := render.NewHeatmapRenderer(cfg.Output.Colormap, cfg.Output.MinHeight)
	if err != nil {
		return nil, err
	}
	return render.NewWriter(root, render.WriterOptions{
		Layout:   layout,
		Raw:      cfg.Output.RawSidecar,
		Renderer: renderer,
	})
}
