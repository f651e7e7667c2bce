package features

import (
	"errors"
	"fmt"
)

var (
	// ErrUnknownFeature is returned for names outside the feature graph.
	ErrUnknownFeature = errors.New("unknown feature")
	// ErrInvalidConfig is returned by New for unusable configurations.
	ErrInvalidConfig = errors.New("invalid extractor config")
	// ErrFeatureComputation matches every *FeatureComputationError.
	ErrFeatureComputation = errors.New("feature computation failed")
	// ErrNoBeats is the cause when beat tracking finds no beats.
	ErrNoBeats = errors.New("no beats detected")
)

// FeatureComputationError reports which feature failed and why.
type FeatureComputationError struct {
	Feature string
	Cause   error
}

func (e *FeatureComputationError) Error() string {
	return fmt.Sprintf("computing %s: %v", e.Feature, e.Cause)
}

func (e *FeatureComputationError) Unwrap() error { return e.Cause }

// Is matches ErrFeatureComputation.
func (e *FeatureComputationError) Is(target error) bool {
	return target == ErrFeatureComputation
}
