package render

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"

	"github.com/gofrs/flock"

	"github.com/proxemy/muse/features"
	"github.com/proxemy/muse/logging"
)

// ErrOutputLocked is returned when another run holds the output root.
var ErrOutputLocked = errors.New("output directory is locked by another run")

// LockFileName is created in the output root while a run writes to it.
const LockFileName = ".muse.lock"

// WriterOptions configures a Writer.
type WriterOptions struct {
	Layout   Layout
	Raw      bool // also write a float16 sidecar
	Renderer Renderer
}

// Artifact describes what a Writer produced for one feature.
type Artifact struct {
	Path    string
	RawPath string
	Width   int
	Height  int
}

// Writer renders tensors and persists them under an output root.
type Writer struct {
	root   string
	opts   WriterOptions
	logger logging.Logger
}

// NewWriter returns a Writer for root. A nil Renderer uses the magma
// heatmap.
func NewWriter(root string, opts WriterOptions) (*Writer, error) {
	if opts.Layout == "" {
		opts.Layout = LayoutPerSource
	}
	if opts.Renderer == nil {
		r, err := NewHeatmapRenderer("magma", 0)
		if err != nil {
			return nil, err
		}
		opts.Renderer = r
	}
	return &Writer{
		root: root,
		opts: opts,
		logger: logging.WithFields(logging.Fields{
			"component": "render_writer",
			"root":      root,
		}),
	}, nil
}

// Root returns the output root.
func (w *Writer) Root() string { return w.root }

// Write renders t and persists it at the layout path for (source, feature).
// Errors match ErrRender or ErrPersist.
func (w *Writer) Write(ctx context.Context, source, feature string, t *features.Tensor) (*Artifact, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	img, err := w.opts.Renderer.Render(t, Axes{Title: source + " " + feature, LowOriginY: true})
	if err != nil {
		if !errors.Is(err, ErrRender) {
			err = fmt.Errorf("%w: %w", ErrRender, err)
		}
		return nil, err
	}

	art := &Artifact{
		Path:   w.opts.Layout.Path(w.root, source, feature, ".png"),
		Width:  img.Bounds().Dx(),
		Height: img.Bounds().Dy(),
	}
	if err := Persist(img, art.Path); err != nil {
		return nil, err
	}

	if w.opts.Raw {
		art.RawPath = w.opts.Layout.Path(w.root, source, feature, RawExtension)
		if err := PersistRaw(t, art.RawPath); err != nil {
			return nil, err
		}
	}

	w.logger.Debug("Wrote artifact", logging.Fields{
		"source":  source,
		"feature": feature,
		"path":    art.Path,
	})
	return art, nil
}

// LockOutput takes an exclusive advisory lock on root. The caller releases
// it with Unlock.
func LockOutput(root string) (*flock.Flock, error) {
	lock := flock.New(filepath.Join(root, LockFileName))
	ok, err := lock.TryLock()
	if err != nil {
		return nil, fmt.Errorf("acquire output lock: %w", err)
	}
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrOutputLocked, root)
	}
	return lock, nil
}
