// Package render turns feature tensors into images and writes them, with
// optional raw sidecars, into an output tree.
package render

import (
	"errors"
	"fmt"
	"image"
	"math"

	"github.com/proxemy/muse/features"
)

var (
	// ErrRender is returned when a tensor cannot be turned into an image.
	ErrRender = errors.New("render failed")
	// ErrPersist is returned when an artifact cannot be written.
	ErrPersist = errors.New("persist failed")
)

// Axes describes how a tensor is drawn.
type Axes struct {
	Title string
	// LowOriginY puts row 0 at the bottom of the image.
	LowOriginY bool
}

// Renderer draws a tensor.
type Renderer interface {
	Render(t *features.Tensor, axes Axes) (image.Image, error)
}

// HeatmapRenderer draws one pixel per cell, rows on the vertical axis and
// frames on the horizontal axis, normalizing by the tensor's finite range.
type HeatmapRenderer struct {
	Colormap Colormap
	// MinHeight repeats rows by an integer factor until the image is at
	// least this tall.
	MinHeight int
}

// NewHeatmapRenderer builds a renderer for the named colormap.
func NewHeatmapRenderer(colormap string, minHeight int) (*HeatmapRenderer, error) {
	cm, err := LookupColormap(colormap)
	if err != nil {
		return nil, err
	}
	return &HeatmapRenderer{Colormap: cm, MinHeight: minHeight}, nil
}

// Render implements Renderer. Empty tensors fail with ErrRender. Complex
// tensors are drawn by modulus.
func (r *HeatmapRenderer) Render(t *features.Tensor, axes Axes) (image.Image, error) {
	if t == nil || t.Empty() {
		return nil, fmt.Errorf("%w: %s: empty tensor", ErrRender, axes.Title)
	}
	rows, cols := t.Dims()
	lo, hi, ok := t.Bounds()
	if !ok {
		return nil, fmt.Errorf("%w: %s: no finite values", ErrRender, axes.Title)
	}

	scale := 1
	if r.MinHeight > rows {
		scale = (r.MinHeight + rows - 1) / rows
	}

	img := image.NewRGBA(image.Rect(0, 0, cols, rows*scale))
	span := hi - lo
	for i := 0; i < rows; i++ {
		y := i
		if axes.LowOriginY {
			y = rows - i - 1
		}
		for j := 0; j < cols; j++ {
			v := t.At(i, j)
			norm := 0.5
			switch {
			case math.IsNaN(v) || math.IsInf(v, -1):
				norm = 0
			case math.IsInf(v, 1):
				norm = 1
			case span > 0:
				norm = (v - lo) / span
			}
			c := r.Colormap.At(norm)
			for k := 0; k < scale; k++ {
				img.SetRGBA(j, y*scale+k, c)
			}
		}
	}
	return img, nil
}
