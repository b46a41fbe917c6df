// Copyright 2026 Voxtral Stream Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package tensorutil implements the dense numeric kernels shared by the mel
// frontend, encoder, adapter and decoder: a flat row-major float32 buffer
// with an explicit shape, plus the handful of linear-algebra and activation
// routines the model forward passes are built from.
//
// Values live in a single []float32 buffer rather than nested slices so that
// slicing along the leading axes (time, in particular) is a cheap subslice
// instead of a copy.
package tensorutil

import (
	"fmt"
	"math"

	"github.com/ajroetker/go-highway/hwy/contrib/vec"
)

// Tensor is a dense row-major float32 buffer with an explicit shape.
type Tensor struct {
	Dims []int
	Data []float32
}

// New allocates a zero-filled tensor of the given shape.
func New(dims ...int) *Tensor {
	n := numel(dims)
	return &Tensor{Dims: append([]int{}, dims...), Data: make([]float32, n)}
}

// FromData wraps an existing flat buffer; len(data) must equal the product of dims.
func FromData(data []float32, dims ...int) *Tensor {
	n := numel(dims)
	if len(data) != n {
		panic(fmt.Sprintf("tensorutil: data has %d elements, shape %v wants %d", len(data), dims, n))
	}
	return &Tensor{Dims: append([]int{}, dims...), Data: data}
}

func numel(dims []int) int {
	n := 1
	for _, d := range dims {
		n *= d
	}
	return n
}

// Numel returns the total element count.
func (t *Tensor) Numel() int { return len(t.Data) }

// Rows returns the product of all but the last dimension, i.e. the number of
// "rows" when the tensor is viewed as a 2-D (rows, lastDim) matrix.
func (t *Tensor) Rows() int {
	if len(t.Dims) == 0 {
		return 0
	}
	n := 1
	for _, d := range t.Dims[:len(t.Dims)-1] {
		n *= d
	}
	return n
}

// LastDim returns the size of the trailing axis.
func (t *Tensor) LastDim() int {
	if len(t.Dims) == 0 {
		return 0
	}
	return t.Dims[len(t.Dims)-1]
}

// Row returns the i-th row as a subslice of the backing buffer (viewing the
// tensor as (Rows(), LastDim())). Mutating the returned slice mutates t.
func (t *Tensor) Row(i int) []float32 {
	d := t.LastDim()
	return t.Data[i*d : (i+1)*d]
}

// SliceRows returns a new tensor viewing rows [start, end) of t, sharing the
// backing array (no copy). The leading dimension is adjusted to end-start.
func (t *Tensor) SliceRows(start, end int) *Tensor {
	d := t.LastDim()
	dims := append([]int{}, t.Dims...)
	dims[0] = end - start
	return &Tensor{Dims: dims, Data: t.Data[start*d : end*d]}
}

// Clone returns a deep copy.
func (t *Tensor) Clone() *Tensor {
	data := make([]float32, len(t.Data))
	copy(data, t.Data)
	return &Tensor{Dims: append([]int{}, t.Dims...), Data: data}
}

// Reshape returns a view over the same backing data with a new shape; the
// element count must match.
func (t *Tensor) Reshape(dims ...int) *Tensor {
	if numel(dims) != len(t.Data) {
		panic(fmt.Sprintf("tensorutil: cannot reshape %v into %v", t.Dims, dims))
	}
	return &Tensor{Dims: append([]int{}, dims...), Data: t.Data}
}

// ConcatRows concatenates tensors along the leading (row) axis; all must
// share the same trailing dimension.
func ConcatRows(parts ...*Tensor) *Tensor {
	if len(parts) == 0 {
		return New(0)
	}
	d := parts[0].LastDim()
	rows := 0
	for _, p := range parts {
		if p.LastDim() != d {
			panic("tensorutil: ConcatRows trailing dim mismatch")
		}
		rows += p.Rows()
	}
	out := New(rows, d)
	off := 0
	for _, p := range parts {
		copy(out.Data[off:], p.Data)
		off += len(p.Data)
	}
	out.Dims = append([]int{rows}, parts[0].Dims[1:]...)
	return out
}

// MatMul computes a @ bT where a is (m, k) and bT is (n, k) — i.e. b stored
// transposed, the layout a row-major Linear weight matrix naturally has.
// Returns (m, n).
func MatMul(a *Tensor, bT *Tensor) *Tensor {
	m, k := a.Rows(), a.LastDim()
	n, k2 := bT.Rows(), bT.LastDim()
	if k != k2 {
		panic(fmt.Sprintf("tensorutil: MatMul inner dim mismatch %d vs %d", k, k2))
	}
	out := New(m, n)
	for i := 0; i < m; i++ {
		ai := a.Data[i*k : i*k+k]
		oi := out.Data[i*n : i*n+n]
		for j := 0; j < n; j++ {
			bj := bT.Data[j*k : j*k+k]
			oi[j] = vec.Dot(ai, bj)
		}
	}
	return out
}

// AddBias adds bias (length = last dim of x) to every row of x in place.
func AddBias(x *Tensor, bias []float32) {
	d := x.LastDim()
	if len(bias) != d {
		panic("tensorutil: AddBias length mismatch")
	}
	for i := 0; i < x.Rows(); i++ {
		row := x.Row(i)
		for j := range row {
			row[j] += bias[j]
		}
	}
}

// AddInPlace computes a += b elementwise; shapes must match.
func AddInPlace(a, b *Tensor) {
	if len(a.Data) != len(b.Data) {
		panic("tensorutil: AddInPlace shape mismatch")
	}
	for i := range a.Data {
		a.Data[i] += b.Data[i]
	}
}

// Linear applies y = x @ weightT (+ bias), where weightT is stored as
// (outFeatures, inFeatures) — the natural row-major layout of a PyTorch-style
// nn.Linear weight — matching MatMul's bT convention.
func Linear(x *Tensor, weightT *Tensor, bias []float32) *Tensor {
	y := MatMul(x, weightT)
	if bias != nil {
		AddBias(y, bias)
	}
	return y
}

// GELU applies the tanh-approximation GELU activation in place. go-highway's
// nn package is only evidenced for Softmax in this codebase, so the pointwise
// activations are plain Go rather than a guessed SIMD entry point.
func GELU(x *Tensor) {
	const c = 0.7978845608028654 // sqrt(2/pi)
	for i, v := range x.Data {
		v64 := float64(v)
		x.Data[i] = float32(0.5 * v64 * (1 + math.Tanh(c*(v64+0.044715*v64*v64*v64))))
	}
}

// SiLU applies the SiLU (swish) activation in place.
func SiLU(x *Tensor) {
	for i, v := range x.Data {
		x.Data[i] = v / (1 + float32(math.Exp(float64(-v))))
	}
}

// RMSNorm applies RMS normalization over the last axis, scaled by weight
// (length = last dim), with the given epsilon. Writes into a new tensor.
//
// The sum-of-squares reduction is derived from go-highway's Normalize
// kernel rather than hand-rolled: Normalize scales a row to unit L2 norm in
// place, so dividing any non-zero row entry by its normalized counterpart
// recovers the row's L2 norm, from which the RMS follows as norm/sqrt(d).
func RMSNorm(x *Tensor, weight []float32, eps float32) *Tensor {
	d := x.LastDim()
	out := New(x.Dims...)
	unit := make([]float32, d)
	for i := 0; i < x.Rows(); i++ {
		row := x.Row(i)
		copy(unit, row)
		Normalize(unit)
		norm := l2NormFromUnit(row, unit)
		scale := float32(1) / sqrt32(norm*norm/float32(d)+eps)
		o := out.Row(i)
		for j, v := range row {
			o[j] = v * scale * weight[j]
		}
	}
	return out
}

// l2NormFromUnit recovers ||row||_2 from row and its Normalize-d unit
// vector: row[j] == unit[j] * norm for every j, so any non-zero entry of
// unit gives norm directly. A row that normalized to all zeros was already
// all zeros, so its norm is 0.
func l2NormFromUnit(row, unit []float32) float32 {
	for j, u := range unit {
		if u != 0 {
			return row[j] / u
		}
	}
	return 0
}

// RMSNormScaled applies RMS normalization and multiplies the result by a
// per-feature adaptive scale vector (length = last dim) in addition to the
// learned weight. Used by the decoder's ada-RMSNorm MLP gate.
func RMSNormScaled(x *Tensor, weight []float32, scale []float32, eps float32) *Tensor {
	out := RMSNorm(x, weight, eps)
	for i := 0; i < out.Rows(); i++ {
		row := out.Row(i)
		for j := range row {
			row[j] *= scale[j]
		}
	}
	return out
}

func sqrt32(v float32) float32 {
	return float32(math.Sqrt(float64(v)))
}
