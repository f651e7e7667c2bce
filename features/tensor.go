package features

import (
	"math"

	"gonum.org/v1/gonum/mat"
)

// Tensor is a dense real or complex matrix laid out rows = bins or
// coefficients, columns = frames. Vectors are 1 x n and scalars 1 x 1.
// Matrices with a zero dimension carry no backing storage.
type Tensor struct {
	rows, cols int
	real       *mat.Dense
	cplx       *mat.CDense
}

// NewDense wraps a gonum matrix.
func NewDense(m *mat.Dense) *Tensor {
	r, c := m.Dims()
	return &Tensor{rows: r, cols: c, real: m}
}

// FromFrames builds a real tensor from time-major frames (frames x bins),
// transposing into bins x frames.
func FromFrames(frames [][]float64) *Tensor {
	cols := len(frames)
	if cols == 0 || len(frames[0]) == 0 {
		rows := 0
		if cols > 0 {
			rows = len(frames[0])
		}
		return &Tensor{rows: rows, cols: cols}
	}
	rows := len(frames[0])
	m := mat.NewDense(rows, cols, nil)
	for t, frame := range frames {
		for b, v := range frame {
			m.Set(b, t, v)
		}
	}
	return &Tensor{rows: rows, cols: cols, real: m}
}

// FromComplexFrames builds a complex tensor from time-major frames.
func FromComplexFrames(frames [][]complex128) *Tensor {
	cols := len(frames)
	if cols == 0 || len(frames[0]) == 0 {
		return &Tensor{cols: cols}
	}
	rows := len(frames[0])
	m := mat.NewCDense(rows, cols, nil)
	for t, frame := range frames {
		for b, v := range frame {
			m.Set(b, t, v)
		}
	}
	return &Tensor{rows: rows, cols: cols, cplx: m}
}

// Vector builds a 1 x n tensor. The slice is copied.
func Vector(v []float64) *Tensor {
	if len(v) == 0 {
		return &Tensor{rows: 1}
	}
	data := make([]float64, len(v))
	copy(data, v)
	return &Tensor{rows: 1, cols: len(v), real: mat.NewDense(1, len(v), data)}
}

// Scalar builds a 1 x 1 tensor.
func Scalar(v float64) *Tensor {
	return &Tensor{rows: 1, cols: 1, real: mat.NewDense(1, 1, []float64{v})}
}

// Dims returns rows and columns.
func (t *Tensor) Dims() (rows, cols int) { return t.rows, t.cols }

// IsComplex reports whether the tensor holds complex values.
func (t *Tensor) IsComplex() bool { return t.cplx != nil }

// Empty reports whether either dimension is zero.
func (t *Tensor) Empty() bool { return t.rows == 0 || t.cols == 0 }

// Dense returns the real matrix, or nil for complex or empty tensors.
func (t *Tensor) Dense() *mat.Dense { return t.real }

// CDense returns the complex matrix, or nil for real or empty tensors.
func (t *Tensor) CDense() *mat.CDense { return t.cplx }

// At returns the real value at (i, j). Complex tensors return the modulus.
func (t *Tensor) At(i, j int) float64 {
	if t.cplx != nil {
		v := t.cplx.At(i, j)
		return math.Hypot(real(v), imag(v))
	}
	return t.real.At(i, j)
}

// Row returns a copy of row i.
func (t *Tensor) Row(i int) []float64 {
	out := make([]float64, t.cols)
	for j := range out {
		out[j] = t.At(i, j)
	}
	return out
}

// Values returns a copy of a 1 x n tensor, or of the first row otherwise.
func (t *Tensor) Values() []float64 {
	if t.Empty() {
		return nil
	}
	return t.Row(0)
}

// Frames returns the real tensor as time-major frames (frames x bins).
// Complex tensors yield their modulus.
func (t *Tensor) Frames() [][]float64 {
	out := make([][]float64, t.cols)
	for j := range out {
		out[j] = make([]float64, t.rows)
		for i := range out[j] {
			out[j][i] = t.At(i, j)
		}
	}
	return out
}

// ComplexFrames returns a complex tensor as time-major frames. Real tensors
// are promoted.
func (t *Tensor) ComplexFrames() [][]complex128 {
	out := make([][]complex128, t.cols)
	for j := range out {
		out[j] = make([]complex128, t.rows)
		for i := range out[j] {
			if t.cplx != nil {
				out[j][i] = t.cplx.At(i, j)
			} else {
				out[j][i] = complex(t.real.At(i, j), 0)
			}
		}
	}
	return out
}

// Abs returns the element-wise modulus as a real tensor.
func (t *Tensor) Abs() *Tensor {
	if t.Empty() {
		return &Tensor{rows: t.rows, cols: t.cols}
	}
	m := mat.NewDense(t.rows, t.cols, nil)
	m.Apply(func(i, j int, _ float64) float64 { return math.Abs(t.At(i, j)) }, m)
	return &Tensor{rows: t.rows, cols: t.cols, real: m}
}

// Equal reports bitwise equality of shape, kind and every element.
func (t *Tensor) Equal(o *Tensor) bool {
	if t == nil || o == nil {
		return t == o
	}
	if t.rows != o.rows || t.cols != o.cols || t.IsComplex() != o.IsComplex() {
		return false
	}
	if t.Empty() {
		return true
	}
	for i := 0; i < t.rows; i++ {
		for j := 0; j < t.cols; j++ {
			if t.cplx != nil {
				a, b := t.cplx.At(i, j), o.cplx.At(i, j)
				if math.Float64bits(real(a)) != math.Float64bits(real(b)) ||
					math.Float64bits(imag(a)) != math.Float64bits(imag(b)) {
					return false
				}
				continue
			}
			if math.Float64bits(t.real.At(i, j)) != math.Float64bits(o.real.At(i, j)) {
				return false
			}
		}
	}
	return true
}

// Bounds returns the minimum and maximum finite values. ok is false when
// the tensor has no finite values.
func (t *Tensor) Bounds() (lo, hi float64, ok bool) {
	lo, hi = math.Inf(1), math.Inf(-1)
	for i := 0; i < t.rows; i++ {
		for j := 0; j < t.cols; j++ {
			v := t.At(i, j)
			if math.IsNaN(v) || math.IsInf(v, 0) {
				continue
			}
			lo = math.Min(lo, v)
			hi = math.Max(hi, v)
			ok = true
		}
	}
	return lo, hi, ok
}
