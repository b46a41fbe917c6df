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

// Package adapter implements the downsample adapter that groups every k
// encoder output frames into one decoder-dim embedding.
package adapter

import "github.com/voxtral-stream/voxtral/internal/tensorutil"

// Adapter projects grouped encoder frames, shape (rows, k*encDim), into
// decoder-dim embeddings via two bias-free linear layers with a GELU
// in between.
type Adapter struct {
	DownsampleFactor int

	WIn  *tensorutil.Tensor // (dim, k*encDim) — Linear weight, stored transposed
	WOut *tensorutil.Tensor // (dim, dim)
}

// New wires a pair of weight matrices into an Adapter. Both are expected in
// the (outFeatures, inFeatures) layout tensorutil.Linear consumes directly.
func New(downsampleFactor int, wIn, wOut *tensorutil.Tensor) *Adapter {
	return &Adapter{DownsampleFactor: downsampleFactor, WIn: wIn, WOut: wOut}
}

// Project applies the adapter to a (rows, k*encDim) tensor of grouped
// encoder frames, returning (rows, dim).
func (a *Adapter) Project(grouped *tensorutil.Tensor) *tensorutil.Tensor {
	h := tensorutil.Linear(grouped, a.WIn, nil)
	tensorutil.GELU(h)
	return tensorutil.Linear(h, a.WOut, nil)
}

// GroupRows reshapes a (rows, dim) tensor into (rows/k, k*dim) by
// concatenating every k consecutive rows. rows must already be a multiple
// of k; callers are responsible for trimming the leading remainder first,
// per the encoder's alignment rule.
func GroupRows(x *tensorutil.Tensor, k int) *tensorutil.Tensor {
	rows := x.Rows()
	dim := x.LastDim()
	if rows%k != 0 {
		panic("adapter: GroupRows requires rows to be a multiple of k")
	}
	// Row-major (rows, dim) and (rows/k, k*dim) share the same flat layout,
	// so grouping k consecutive rows is a pure reshape.
	return x.Reshape(rows/k, k*dim)
}
