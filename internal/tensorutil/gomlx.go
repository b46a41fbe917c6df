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

package tensorutil

import "github.com/gomlx/gomlx/pkg/core/tensors"

// ToGoMLX copies the flat buffer backing t into a host-side gomlx
// tensors.Tensor (no device transfer, no aliasing of t), the same
// tensors.FromFlatDataAndDimensions
// boundary crossing used when an inference backend needs a value it didn't
// itself produce.
func ToGoMLX(t *Tensor) *tensors.Tensor {
	return tensors.FromFlatDataAndDimensions(append([]float32{}, t.Data...), t.Dims...)
}

// FromGoMLX reads a gomlx tensors.Tensor back into our flat-buffer
// representation via its Value() convention, then reshapes to dims. It
// accepts rank 1-4 results, which covers every boundary this module crosses
// (mel columns, weight matrices, encoder/decoder activations).
func FromGoMLX(gt *tensors.Tensor, dims ...int) *Tensor {
	return FromData(flattenFloat32(gt.Value()), dims...)
}

func flattenFloat32(val interface{}) []float32 {
	switch v := val.(type) {
	case []float32:
		return v
	case [][]float32:
		var out []float32
		for _, row := range v {
			out = append(out, row...)
		}
		return out
	case [][][]float32:
		var out []float32
		for _, mat := range v {
			out = append(out, flattenFloat32(mat)...)
		}
		return out
	case [][][][]float32:
		var out []float32
		for _, cube := range v {
			out = append(out, flattenFloat32(cube)...)
		}
		return out
	default:
		return nil
	}
}
