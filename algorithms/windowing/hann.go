// Package windowing provides the taper applied to analysis frames.
package windowing

import (
	"fmt"
	"math"
	"slices"
	"sync"
)

// Hann is a raised-cosine window. Spectral analysis uses the periodic form,
// smoothing kernels the symmetric one.
type Hann struct {
	coeffs []float64
}

type hannKey struct {
	size      int
	symmetric bool
}

// Coefficient tables are shared; every STFT of a run asks for the same few
// sizes.
var hannTables sync.Map // hannKey -> []float64

// NewHann returns a window of size points. Periodic windows divide by size,
// symmetric ones by size-1 so both ends are zero.
func NewHann(size int, symmetric bool) *Hann {
	key := hannKey{size: size, symmetric: symmetric}
	if c, ok := hannTables.Load(key); ok {
		return &Hann{coeffs: c.([]float64)}
	}
	c, _ := hannTables.LoadOrStore(key, hannTable(size, symmetric))
	return &Hann{coeffs: c.([]float64)}
}

func hannTable(size int, symmetric bool) []float64 {
	if size <= 0 {
		return nil
	}
	if size == 1 {
		return []float64{1}
	}
	period := float64(size)
	if symmetric {
		period--
	}
	table := make([]float64, size)
	for i := range table {
		table[i] = 0.5 - 0.5*math.Cos(2*math.Pi*float64(i)/period)
	}
	return table
}

// Apply returns a windowed copy of signal, or nil when the lengths differ.
func (h *Hann) Apply(signal []float64) []float64 {
	if len(signal) != len(h.coeffs) {
		return nil
	}
	out := slices.Clone(signal)
	for i, c := range h.coeffs {
		out[i] *= c
	}
	return out
}

// ApplyInPlace multiplies signal by the window.
func (h *Hann) ApplyInPlace(signal []float64) error {
	if len(signal) != len(h.coeffs) {
		return fmt.Errorf("signal length %d does not match window size %d", len(signal), len(h.coeffs))
	}
	for i, c := range h.coeffs {
		signal[i] *= c
	}
	return nil
}

// Coefficients returns a copy of the table.
func (h *Hann) Coefficients() []float64 { return slices.Clone(h.coeffs) }

// Size is the window length in samples.
func (h *Hann) Size() int { return len(h.coeffs) }
