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

package decoder

import (
	"math"

	"github.com/voxtral-stream/voxtral/internal/tensorutil"
)

// TimeEmbeddingTheta is the fixed base used by the scalar time embedding,
// independent of the rotary position embedding's rope_theta.
const TimeEmbeddingTheta = 10000.0

// TimeEmbedding computes the sinusoidal embedding of a scalar time value t,
// emitting concat(cos(t*invFreq), sin(t*invFreq)) with invFreq[i] =
// exp(-ln(theta)*i/half), half = dim/2.
func TimeEmbedding(t float64, dim int) []float32 {
	half := dim / 2
	out := make([]float32, dim)
	logTheta := math.Log(TimeEmbeddingTheta)
	for i := 0; i < half; i++ {
		freq := math.Exp(-logTheta * float64(i) / float64(half))
		angle := t * freq
		out[i] = float32(math.Cos(angle))
		out[half+i] = float32(math.Sin(angle))
	}
	return out
}

// AdaScales precomputes the per-layer adaptive-RMSNorm scale vectors for a
// fixed time-conditioning value, once per session, so the decoder never
// re-runs the ada-norm MLP during the hot decode loop.
func AdaScales(w *Weights, tCond []float32) [][]float32 {
	tCondTensor := tensorutil.FromData(append([]float32{}, tCond...), 1, len(tCond))
	scales := make([][]float32, len(w.Layers))
	for i, lw := range w.Layers {
		h := tensorutil.Linear(tCondTensor, lw.AdaInW, nil)
		tensorutil.GELU(h)
		out := tensorutil.Linear(h, lw.AdaOutW, nil)
		scale := make([]float32, len(out.Data))
		for j, v := range out.Data {
			scale[j] = 1 + v
		}
		scales[i] = scale
	}
	return scales
}
