// Package discovery expands user-supplied paths into the set of audio files
// to process.
package discovery

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"

	"github.com/proxemy/muse/logging"
)

var (
	// ErrPathNotFound is returned when an entry does not exist.
	ErrPathNotFound = errors.New("path not found")
	// ErrUnsupportedFormat is returned when an explicitly named file has an
	// unsupported extension.
	ErrUnsupportedFormat = errors.New("unsupported format")
	// ErrEmptyResult is returned when no supported files were found.
	ErrEmptyResult = errors.New("no supported audio files found")
)

// FormatSet decides whether a path has a supported extension.
type FormatSet interface {
	Supports(path string) bool
}

// Discoverer walks files and directories against a format set.
type Discoverer struct {
	formats FormatSet
	logger  logging.Logger
}

// New returns a Discoverer using formats.
func New(formats FormatSet) *Discoverer {
	return &Discoverer{
		formats: formats,
		logger: logging.WithFields(logging.Fields{
			"component": "discovery",
		}),
	}
}

// Discover resolves entries into supported files. Regular files must be
// supported; directories are walked recursively and unsupported files in
// them are skipped. The result holds each file once by absolute path and
// is sorted.
func (d *Discoverer) Discover(entries []string) ([]string, error) {
	seen := make(map[string]struct{})
	var files []string

	add := func(path string) error {
		abs, err := filepath.Abs(path)
		if err != nil {
			return fmt.Errorf("resolve %s: %w", path, err)
		}
		if _, ok := seen[abs]; ok {
			return nil
		}
		seen[abs] = struct{}{}
		files = append(files, abs)
		return nil
	}

	for _, entry := range entries {
		info, err := os.Stat(entry)
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrPathNotFound, entry)
		}
		if err != nil {
			return nil, fmt.Errorf("stat %s: %w", entry, err)
		}

		if !info.IsDir() {
			if !d.formats.Supports(entry) {
				return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, entry)
			}
			if err := add(entry); err != nil {
				return nil, err
			}
			continue
		}

		err = filepath.WalkDir(entry, func(path string, de fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if de.IsDir() {
				return nil
			}
			if !d.formats.Supports(path) {
				d.logger.Debug("Skipping unsupported file", logging.Fields{"path": path})
				return nil
			}
			if de.Type()&fs.ModeSymlink == 0 && !de.Type().IsRegular() {
				return nil
			}
			return add(path)
		})
		if err != nil {
			return nil, fmt.Errorf("walk %s: %w", entry, err)
		}
	}

	if len(files) == 0 {
		return nil, ErrEmptyResult
	}
	slices.Sort(files)

	d.logger.Debug("Discovered audio files", logging.Fields{
		"entries": len(entries),
		"files":   len(files),
	})
	return files, nil
}
