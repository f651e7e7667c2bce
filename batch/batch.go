// Package batch drives feature extraction over many sources, forwarding
// every emitted feature to a sink and collecting failures instead of
// aborting.
package batch

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/proxemy/muse/features"
	"github.com/proxemy/muse/logging"
	"github.com/proxemy/muse/manifest"
	"github.com/proxemy/muse/render"
	"github.com/proxemy/muse/transcode"
)

// ErrNothingRendered is returned when a run produced no artifacts.
var ErrNothingRendered = errors.New("no features were rendered")

// Stage is where a feature failed.
type Stage string

const (
	StageCompute Stage = "compute"
	StageRender  Stage = "render"
	StagePersist Stage = "persist"
)

var titleCaser = cases.Title(language.English)

// Label is the stage name for display.
func (s Stage) Label() string { return titleCaser.String(string(s)) }

// FeatureTitle turns a feature name into a display title.
func FeatureTitle(name string) string {
	return titleCaser.String(strings.ReplaceAll(name, "_", " "))
}

// Sink receives every successfully computed feature.
type Sink interface {
	Write(ctx context.Context, source, feature string, t *features.Tensor) (*render.Artifact, error)
}

// Recorder persists run and feature outcomes.
type Recorder interface {
	BeginRun(ctx context.Context, run manifest.Run) error
	Record(ctx context.Context, o manifest.Outcome) error
	FinishRun(ctx context.Context, runID string) (*manifest.Run, error)
}

// Options configures an Orchestrator.
type Options struct {
	Jobs       int
	Extractor  features.Config
	Recorder   Recorder
	OutputRoot string
	ConfigJSON string
}

// Failure records one feature that did not make it to disk.
type Failure struct {
	Source  string
	Feature string
	Stage   Stage
	Err     error
}

func (f Failure) Error() string {
	return fmt.Sprintf("%s/%s (%s): %v", f.Source, f.Feature, f.Stage, f.Err)
}

// SourceReport summarizes one source.
type SourceReport struct {
	Name     string
	Key      string
	Rendered int
	Failed   int
	Duration time.Duration
}

// Report summarizes a run.
type Report struct {
	RunID     string
	StartedAt time.Time
	Duration  time.Duration
	Sources   []SourceReport
	Failures  []Failure
	Rendered  int
}

// Failed returns the number of failed features.
func (r *Report) Failed() int { return len(r.Failures) }

// Orchestrator runs extractors over sources.
type Orchestrator struct {
	loader features.SignalLoader
	sink   Sink
	opts   Options
	logger logging.Logger
}

// New returns an Orchestrator. Jobs below 1 means 1.
func New(loader features.SignalLoader, sink Sink, opts Options) *Orchestrator {
	opts.Jobs = max(1, opts.Jobs)
	return &Orchestrator{
		loader: loader,
		sink:   sink,
		opts:   opts,
		logger: logging.WithFields(logging.Fields{
			"component": "batch",
		}),
	}
}

// run holds the shared state of one Run call.
type run struct {
	id       string
	mu       sync.Mutex
	failures []indexedFailure
	sources  []SourceReport
}

type indexedFailure struct {
	source, feature int
	Failure
}

func (r *run) fail(source, feature int, f Failure) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.failures = append(r.failures, indexedFailure{source: source, feature: feature, Failure: f})
	r.sources[source].Failed++
}

func (r *run) rendered(source int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sources[source].Rendered++
}

// Run processes every source. Per-feature failures are collected into the
// report. It returns ErrNothingRendered, together with the report, when no
// feature was rendered, and ctx.Err() when cancelled.
func (o *Orchestrator) Run(ctx context.Context, sources []transcode.Source) (*Report, error) {
	if err := o.opts.Extractor.Validate(); err != nil {
		return nil, err
	}

	started := time.Now()
	r := &run{
		id:      uuid.New().String(),
		sources: make([]SourceReport, len(sources)),
	}
	names := DisplayNames(sources)
	for i, src := range sources {
		r.sources[i] = SourceReport{Name: names[i], Key: src.Key()}
	}

	logger := o.logger.WithFields(logging.Fields{
		"function": "Run",
		"run_id":   r.id,
	})
	logger.Info("Starting batch", logging.Fields{
		"sources": len(sources),
		"jobs":    o.opts.Jobs,
	})

	if o.opts.Recorder != nil {
		if err := o.opts.Recorder.BeginRun(ctx, manifest.Run{
			ID:         r.id,
			StartedAt:  started,
			OutputRoot: o.opts.OutputRoot,
			ConfigJSON: o.opts.ConfigJSON,
		}); err != nil {
			return nil, fmt.Errorf("record run start: %w", err)
		}
	}

	jobs := make(chan int)
	var wg sync.WaitGroup
	for range min(o.opts.Jobs, max(1, len(sources))) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				o.processSource(ctx, r, i, sources[i])
			}
		}()
	}

feed:
	for i := range sources {
		select {
		case jobs <- i:
		case <-ctx.Done():
			break feed
		}
	}
	close(jobs)
	wg.Wait()

	report := r.report(started)

	if o.opts.Recorder != nil {
		// use a fresh context so a cancelled run is still closed out
		if _, err := o.opts.Recorder.FinishRun(context.WithoutCancel(ctx), r.id); err != nil {
			logger.Warn("Failed to record run completion", logging.Fields{"error": err.Error()})
		}
	}

	logger.Info("Batch finished", logging.Fields{
		"rendered": report.Rendered,
		"failed":   report.Failed(),
		"duration": report.Duration.String(),
	})

	if err := ctx.Err(); err != nil {
		return report, err
	}
	if report.Rendered == 0 {
		return report, ErrNothingRendered
	}
	return report, nil
}

func (r *run) report(started time.Time) *Report {
	r.mu.Lock()
	defer r.mu.Unlock()

	slices.SortFunc(r.failures, func(a, b indexedFailure) int {
		if a.source != b.source {
			return a.source - b.source
		}
		return a.feature - b.feature
	})

	report := &Report{
		RunID:     r.id,
		StartedAt: started,
		Duration:  time.Since(started),
		Sources:   slices.Clone(r.sources),
	}
	for _, f := range r.failures {
		report.Failures = append(report.Failures, f.Failure)
	}
	for _, s := range r.sources {
		report.Rendered += s.Rendered
	}
	return report
}

func (o *Orchestrator) processSource(ctx context.Context, r *run, idx int, src transcode.Source) {
	name := r.sources[idx].Name
	logger := o.logger.WithFields(logging.Fields{
		"function": "processSource",
		"source":   name,
	})
	started := time.Now()
	defer func() {
		r.mu.Lock()
		r.sources[idx].Duration = time.Since(started)
		r.mu.Unlock()
	}()

	logger.Info("Processing source")

	emitted := features.EmittedFeatures()
	ex, err := features.New(src, o.loader, o.opts.Extractor)
	if err != nil {
		for fi, feature := range emitted {
			o.recordFailure(ctx, r, idx, fi, src, feature, StageCompute, err)
		}
		return
	}

	for f, err := range features.Enumerate(ctx, ex) {
		fi := slices.Index(emitted, f.Name)
		if err != nil {
			if ctx.Err() != nil {
				logger.Warn("Cancelled", logging.Fields{"feature": f.Name})
				return
			}
			o.recordFailure(ctx, r, idx, fi, src, f.Name, StageCompute, err)
			continue
		}

		art, err := o.sink.Write(ctx, name, f.Name, f.Tensor)
		if err != nil {
			if ctx.Err() != nil {
				logger.Warn("Cancelled", logging.Fields{"feature": f.Name})
				return
			}
			stage := StagePersist
			if errors.Is(err, render.ErrRender) {
				stage = StageRender
			}
			o.recordFailure(ctx, r, idx, fi, src, f.Name, stage, err)
			continue
		}

		r.rendered(idx)
		o.record(ctx, manifest.Outcome{
			RunID:     r.id,
			SourceKey: src.Key(),
			Source:    name,
			Feature:   f.Name,
			Status:    manifest.StatusRendered,
			Path:      art.Path,
			RawPath:   art.RawPath,
		})
	}
}

func (o *Orchestrator) recordFailure(ctx context.Context, r *run, idx, fi int, src transcode.Source, feature string, stage Stage, err error) {
	name := r.sources[idx].Name
	o.logger.Error(err, "Feature failed", logging.Fields{
		"source":  name,
		"feature": feature,
		"stage":   string(stage),
	})
	r.fail(idx, fi, Failure{Source: name, Feature: feature, Stage: stage, Err: err})
	o.record(ctx, manifest.Outcome{
		RunID:     r.id,
		SourceKey: src.Key(),
		Source:    name,
		Feature:   feature,
		Status:    manifest.StatusFailed,
		Stage:     string(stage),
		Error:     err.Error(),
	})
}

func (o *Orchestrator) record(ctx context.Context, outcome manifest.Outcome) {
	if o.opts.Recorder == nil {
		return
	}
	if err := o.opts.Recorder.Record(context.WithoutCancel(ctx), outcome); err != nil {
		o.logger.Warn("Failed to record outcome", logging.Fields{
			"source":  outcome.Source,
			"feature": outcome.Feature,
			"error":   err.Error(),
		})
	}
}

// DisplayNames returns each source's display name. Names shared by more
// than one source get a suffix of eight hex digits derived from the
// source key, so output paths never collide.
func DisplayNames(sources []transcode.Source) []string {
	counts := make(map[string]int, len(sources))
	for _, src := range sources {
		counts[src.DisplayName()]++
	}
	names := make([]string, len(sources))
	for i, src := range sources {
		name := src.DisplayName()
		if counts[name] > 1 {
			name += "-" + uuid.NewSHA1(uuid.NameSpaceURL, []byte(src.Key())).String()[:8]
		}
		names[i] = name
	}
	return names
}
