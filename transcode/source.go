package transcode

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// ErrInvalidSource is returned when a source cannot be constructed.
var ErrInvalidSource = errors.New("invalid source")

// Source identifies where a waveform comes from. It is either a FilePath or
// a NamedExample.
type Source interface {
	// DisplayName is the human-readable identifier used in output names.
	DisplayName() string
	// Key uniquely identifies the source within a run.
	Key() string
	isSource()
}

// FilePath is an audio file on disk.
type FilePath struct {
	path string
}

// NewFilePath validates that path is an existing regular file in a
// supported format.
func NewFilePath(path string, formats *Formats) (FilePath, error) {
	info, err := os.Stat(path)
	if err != nil {
		return FilePath{}, fmt.Errorf("%w: %s: %w", ErrInvalidSource, path, err)
	}
	if !info.Mode().IsRegular() {
		return FilePath{}, fmt.Errorf("%w: %s is not a regular file", ErrInvalidSource, path)
	}
	if formats != nil && !formats.Supports(path) {
		return FilePath{}, fmt.Errorf("%w: %s has an unsupported extension", ErrInvalidSource, path)
	}
	return FilePath{path: path}, nil
}

// Path returns the file path as given.
func (f FilePath) Path() string { return f.path }

// DisplayName is the file name including its extension.
func (f FilePath) DisplayName() string { return filepath.Base(f.path) }

// Key is the cleaned absolute path when it can be resolved.
func (f FilePath) Key() string {
	if abs, err := filepath.Abs(f.path); err == nil {
		return abs
	}
	return filepath.Clean(f.path)
}

func (FilePath) isSource() {}

// NamedExample is a built-in signal identified by name.
type NamedExample struct {
	name string
}

// NewNamedExample validates the name against the registry.
func NewNamedExample(name string, examples *Examples) (NamedExample, error) {
	if examples == nil || !examples.Has(name) {
		return NamedExample{}, fmt.Errorf("%w: unknown example %q", ErrInvalidSource, name)
	}
	return NamedExample{name: name}, nil
}

// Name returns the registry name.
func (n NamedExample) Name() string { return n.name }

// DisplayName is the example name.
func (n NamedExample) DisplayName() string { return n.name }

// Key namespaces the example name.
func (n NamedExample) Key() string { return "example:" + n.name }

func (NamedExample) isSource() {}
