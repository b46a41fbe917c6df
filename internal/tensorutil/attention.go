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

import (
	"math"

	"github.com/ajroetker/go-highway/hwy/contrib/vec"
)

// Attention computes grouped-query scaled dot-product attention.
//
// q has shape (Tq, nHeads*headDim); k and v have shape (Tk, nKVHeads*headDim).
// nHeads must be a multiple of nKVHeads. When causal is true, query row i is
// assumed to correspond to absolute key position (Tk-Tq+i) — the layout that
// results from appending the current step's keys/values to the cache before
// calling Attention — and is masked from attending to later keys.
func Attention(q, k, v *Tensor, nHeads, nKVHeads, headDim int, causal bool) *Tensor {
	tq := q.Rows()
	tk := k.Rows()
	groups := nHeads / nKVHeads
	scale := float32(1.0 / math.Sqrt(float64(headDim)))

	out := New(tq, nHeads*headDim)
	scores := make([]float32, tk)

	for h := 0; h < nHeads; h++ {
		kvHead := h / groups
		qBase := h * headDim
		kBase := kvHead * headDim
		for i := 0; i < tq; i++ {
			qVec := q.Row(i)[qBase : qBase+headDim]

			limit := tk
			if causal {
				limit = tk - tq + i + 1
			}
			for j := 0; j < limit; j++ {
				kVec := k.Row(j)[kBase : kBase+headDim]
				scores[j] = vec.Dot(qVec, kVec) * scale
			}
			probs := Softmax(scores[:limit])

			oRow := out.Row(i)[qBase : qBase+headDim]
			for d := 0; d < headDim; d++ {
				oRow[d] = 0
			}
			for j := 0; j < limit; j++ {
				p := probs[j]
				if p == 0 {
					continue
				}
				vVec := v.Row(j)[kBase : kBase+headDim]
				for d := 0; d < headDim; d++ {
					oRow[d] += p * vVec[d]
				}
			}
		}
	}
	return out
}
