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

package encoder

import "github.com/voxtral-stream/voxtral/internal/tensorutil"

// ConvWeight holds a causal 1-D convolution's weight split into per-tap
// (outDim, inDim) matrices so each tap can be applied as an ordinary
// Linear. The canonical on-disk layout is (outChannels, kernel, inChannels);
// SplitConvTaps performs the one-time reorganization at load time.
type ConvWeight struct {
	Taps []*tensorutil.Tensor // len == kernel, each (outDim, inDim)
	Bias []float32
}

// SplitConvTaps reorganizes a canonical (outDim, kernel, inDim) weight
// tensor into kernel separate (outDim, inDim) matrices.
func SplitConvTaps(w *tensorutil.Tensor) []*tensorutil.Tensor {
	outDim, kernel, inDim := w.Dims[0], w.Dims[1], w.Dims[2]
	taps := make([]*tensorutil.Tensor, kernel)
	for j := 0; j < kernel; j++ {
		t := tensorutil.New(outDim, inDim)
		for o := 0; o < outDim; o++ {
			srcOff := (o*kernel + j) * inDim
			copy(t.Row(o), w.Data[srcOff:srcOff+inDim])
		}
		taps[j] = t
	}
	return taps
}

// Conv1D applies a causal 1-D convolution to an already-padded input: input
// has shape (Tin, inDim), and the result has shape (Tout, outDim) with
// Tout = max(0, (Tin-k)/stride+1) and k = len(cw.Taps). Tout is 0, not a
// negative window, whenever Tin < k. Callers are responsible for
// prepending the causal padding (zeros on the very first call, carried
// tail thereafter) before calling this function.
func Conv1D(input *tensorutil.Tensor, cw *ConvWeight, stride int) *tensorutil.Tensor {
	k := len(cw.Taps)
	tin := input.Rows()
	tout := convOutRows(tin, k, stride)
	outDim := cw.Taps[0].Rows()
	out := tensorutil.New(tout, outDim)

	for t := 0; t < tout; t++ {
		acc := out.Row(t)
		for j, tap := range cw.Taps {
			inRow := input.SliceRows(t*stride+j, t*stride+j+1)
			contrib := tensorutil.Linear(inRow, tap, nil)
			for d := 0; d < outDim; d++ {
				acc[d] += contrib.Data[d]
			}
		}
		if cw.Bias != nil {
			for d := 0; d < outDim; d++ {
				acc[d] += cw.Bias[d]
			}
		}
	}
	return out
}

// convOutRows computes how many windows a causal conv1d with kernel k and
// stride s produces over tin input rows, without relying on truncating
// integer division when tin < k (that case must yield 0, not a spurious
// window starting past the end of the input).
func convOutRows(tin, k, stride int) int {
	if tin < k {
		return 0
	}
	return (tin-k)/stride + 1
}

// convRemainder returns how many trailing input rows were not consumed by
// the last window of a causal conv1d call over tin rows, i.e. exactly the
// rows that must be carried forward as state for the next incremental
// step. This is not simply k-stride: a step whose input didn't fill even
// one window must carry all of it forward, not just the last k-stride rows.
func convRemainder(tin, k, stride int) int {
	tout := convOutRows(tin, k, stride)
	return tin - tout*stride
}

// PrependZeros returns a new tensor with `pad` zero rows in front of x.
func PrependZeros(x *tensorutil.Tensor, pad int) *tensorutil.Tensor {
	if pad == 0 {
		return x
	}
	return tensorutil.ConcatRows(tensorutil.New(pad, x.LastDim()), x)
}

// TailRows returns the trailing min(n, x.Rows()) rows of x, cloned so the
// caller can hold onto them independently of x's backing buffer.
func TailRows(x *tensorutil.Tensor, n int) *tensorutil.Tensor {
	rows := x.Rows()
	if n > rows {
		n = rows
	}
	if n == 0 {
		return tensorutil.New(0, x.LastDim())
	}
	return x.SliceRows(rows-n, rows).Clone()
}

// TransposeToTime transposes a (nMels, frames) mel tensor into (frames, nMels).
func TransposeToTime(mel *tensorutil.Tensor) *tensorutil.Tensor {
	nMels, frames := mel.Dims[0], mel.Dims[1]
	out := tensorutil.New(frames, nMels)
	for m := 0; m < nMels; m++ {
		for f := 0; f < frames; f++ {
			out.Data[f*nMels+m] = mel.Data[m*frames+f]
		}
	}
	return out
}
