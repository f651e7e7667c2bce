package features

import (
	"context"
	"iter"
	"slices"
)

// Feature is one emitted (name, tensor) pair. Tensor is nil when the
// feature failed.
type Feature struct {
	Name   string
	Tensor *Tensor
}

// Enumerate walks EmittedFeatures once, in order. Each feature is evicted
// after its yield returns. Later features that depend on it are evaluated
// first, so every feature is computed once per pass, and internal nodes no
// remaining feature needs are dropped after every step.
//
// A failed feature yields its error and enumeration continues. A cancelled
// context yields ctx.Err() once and stops.
func Enumerate(ctx context.Context, e *Extractor) iter.Seq2[*Feature, error] {
	return func(yield func(*Feature, error) bool) {
		names := EmittedFeatures()
		// failed prefetches, reported on the feature's own turn
		failed := make(map[string]error)
		defer e.Release()

		for i, name := range names {
			if err := ctx.Err(); err != nil {
				yield(&Feature{Name: name}, err)
				return
			}

			var t *Tensor
			err, ok := failed[name]
			if !ok {
				t, err = e.Get(ctx, name)
			}
			if err != nil && ctx.Err() != nil {
				yield(&Feature{Name: name}, ctx.Err())
				return
			}
			if !yield(&Feature{Name: name, Tensor: t}, err) {
				return
			}

			remaining := names[i+1:]
			if err == nil {
				for _, later := range remaining {
					if _, done := failed[later]; done || !dependsOn(later, name) {
						continue
					}
					if _, perr := e.Get(ctx, later); perr != nil && ctx.Err() == nil {
						failed[later] = perr
					}
				}
			}
			_ = e.Evict(name)
			e.releaseUnneeded(remaining, failed)
		}
	}
}

// releaseUnneeded evicts every cached node that no pending remaining
// feature needs. A feature is pending when it is neither cached nor in
// settled; dependencies of cached nodes are not needed.
func (e *Extractor) releaseUnneeded(remaining []string, settled map[string]error) {
	needed := make(map[string]bool)
	var visit func(string)
	visit = func(name string) {
		for _, dep := range graph[name].deps {
			if needed[dep] {
				continue
			}
			needed[dep] = true
			if !e.Cached(dep) {
				visit(dep)
			}
		}
	}
	for _, name := range remaining {
		if _, ok := settled[name]; ok || e.Cached(name) {
			continue
		}
		visit(name)
	}

	for name := range e.cache {
		if needed[name] || slices.Contains(remaining, name) {
			continue
		}
		delete(e.cache, name)
	}
}

// dependsOn reports whether feature transitively depends on dep.
func dependsOn(feature, dep string) bool {
	for _, d := range graph[feature].deps {
		if d == dep || dependsOn(d, dep) {
			return true
		}
	}
	return false
}
