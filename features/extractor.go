package features

import (
	"context"
	"fmt"
	"slices"

	"github.com/proxemy/muse/logging"
	"github.com/proxemy/muse/transcode"
)

// SignalLoader decodes a source to mono PCM. sampleRate 0 keeps the native
// rate.
type SignalLoader interface {
	Load(ctx context.Context, src transcode.Source, sampleRate int) (*transcode.AudioData, error)
}

// Option configures an Extractor.
type Option func(*Extractor)

// WithEvaluationHook is called with the node name every time a node is
// evaluated, before its evaluation function runs.
func WithEvaluationHook(hook func(name string)) Option {
	return func(e *Extractor) { e.hook = hook }
}

// WithLogger overrides the extractor's logger.
func WithLogger(logger logging.Logger) Option {
	return func(e *Extractor) { e.logger = logger }
}

// Extractor lazily evaluates and memoizes the feature graph for one
// source. It is not safe for concurrent use.
type Extractor struct {
	source transcode.Source
	loader SignalLoader
	config Config

	sampleRate int
	hopLength  int

	cache    map[string]*Tensor
	counts   map[string]int
	inFlight map[*evaluation]bool

	hook   func(name string)
	logger logging.Logger
}

// New validates cfg and returns an Extractor with an empty cache.
func New(src transcode.Source, loader SignalLoader, cfg Config, opts ...Option) (*Extractor, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if src == nil || loader == nil {
		return nil, fmt.Errorf("%w: source and loader are required", ErrInvalidConfig)
	}

	e := &Extractor{
		source:   src,
		loader:   loader,
		config:   cfg,
		cache:    make(map[string]*Tensor),
		counts:   make(map[string]int),
		inFlight: make(map[*evaluation]bool),
		logger: logging.WithFields(logging.Fields{
			"component": "extractor",
			"source":    src.DisplayName(),
		}),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

// Source returns the source this extractor reads.
func (e *Extractor) Source() transcode.Source { return e.source }

// Config returns the extractor configuration.
func (e *Extractor) Config() Config { return e.config }

// Get returns the named feature, evaluating missing dependencies first.
// Cached values are returned without recomputation.
func (e *Extractor) Get(ctx context.Context, name string) (*Tensor, error) {
	ev, ok := graph[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownFeature, name)
	}
	if t, ok := e.cache[name]; ok {
		return t, nil
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if e.inFlight[ev] {
		return nil, &FeatureComputationError{Feature: name, Cause: fmt.Errorf("dependency cycle")}
	}

	e.inFlight[ev] = true
	defer delete(e.inFlight, ev)

	if e.hook != nil {
		e.hook(name)
	}
	e.logger.Debug("Evaluating feature", logging.Fields{"feature": name})

	values, err := ev.eval(ctx, e)
	if err != nil {
		return nil, &FeatureComputationError{Feature: name, Cause: err}
	}
	if len(values) != len(ev.outputs) {
		return nil, &FeatureComputationError{
			Feature: name,
			Cause:   fmt.Errorf("evaluation produced %d values for %d outputs", len(values), len(ev.outputs)),
		}
	}

	for i, out := range ev.outputs {
		e.cache[out] = values[i]
		e.counts[out]++
	}
	return e.cache[name], nil
}

// vector fetches a feature and returns its first row.
func (e *Extractor) vector(ctx context.Context, name string) ([]float64, error) {
	t, err := e.Get(ctx, name)
	if err != nil {
		return nil, err
	}
	return t.Values(), nil
}

// Evict drops the cached value of name. Evicting an uncached node is a
// no-op.
func (e *Extractor) Evict(name string) error {
	if _, ok := graph[name]; !ok {
		return fmt.Errorf("%w: %q", ErrUnknownFeature, name)
	}
	delete(e.cache, name)
	return nil
}

// Cached reports whether name currently holds a value.
func (e *Extractor) Cached(name string) bool {
	_, ok := e.cache[name]
	return ok
}

// Dependencies returns the direct dependencies of name.
func (e *Extractor) Dependencies(name string) ([]string, error) {
	return Dependencies(name)
}

// Dependencies returns the direct dependencies of name.
func Dependencies(name string) ([]string, error) {
	ev, ok := graph[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownFeature, name)
	}
	return slices.Clone(ev.deps), nil
}

// EvaluationCount returns how many times name has been evaluated.
func (e *Extractor) EvaluationCount(name string) int {
	return e.counts[name]
}

// Release drops every cached value.
func (e *Extractor) Release() {
	clear(e.cache)
}

// SampleRate returns the resolved sample rate, loading the signal if the
// rate is not known yet.
func (e *Extractor) SampleRate(ctx context.Context) (int, error) {
	if e.sampleRate == 0 {
		if _, err := e.Get(ctx, Signal); err != nil {
			return 0, err
		}
	}
	return e.sampleRate, nil
}

// HopLength returns the resolved hop length in samples.
func (e *Extractor) HopLength(ctx context.Context) (int, error) {
	if _, err := e.SampleRate(ctx); err != nil {
		return 0, err
	}
	return e.hopLength, nil
}

func (e *Extractor) resolve(sampleRate int) {
	e.sampleRate = sampleRate
	e.hopLength = e.config.resolveHop(sampleRate)
}
