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
	"math/rand"

	"github.com/ajroetker/go-highway/hwy/contrib/nn"
	"github.com/ajroetker/go-highway/hwy/contrib/vec"
)

// Argmax returns the index of the largest value, using the SIMD-accelerated
// go-highway kernel the way the teacher's generation loop does for greedy
// decoding.
func Argmax(values []float32) int32 {
	if len(values) == 0 {
		return 0
	}
	return int32(vec.Argmax(values))
}

// Softmax returns a new normalized probability vector.
func Softmax(logits []float32) []float32 {
	if len(logits) == 0 {
		return nil
	}
	probs := make([]float32, len(logits))
	nn.Softmax(logits, probs)
	return probs
}

// SampleGreedyOrTemperature implements the model's only supported sampling
// modes: temperature <= 0 is argmax, otherwise a categorical draw over
// softmax(logits/temperature). rng is caller-supplied so callers can make
// decoding deterministic in tests.
func SampleGreedyOrTemperature(logits []float32, temperature float32, rng *rand.Rand) int32 {
	if temperature <= 0 {
		return Argmax(logits)
	}
	scaled := make([]float32, len(logits))
	for i, v := range logits {
		scaled[i] = v / temperature
	}
	probs := Softmax(scaled)
	return sampleCategorical(probs, rng)
}

func sampleCategorical(probs []float32, rng *rand.Rand) int32 {
	r := rng.Float32()
	var cum float32
	for i, p := range probs {
		cum += p
		if r <= cum {
			return int32(i)
		}
	}
	return int32(len(probs) - 1)
}

// Normalize scales v to unit L2 norm in place, reusing the SIMD kernel the
// teacher uses for embedding normalization. RMSNorm derives its per-row L2
// norm from this kernel.
func Normalize(v []float32) {
	vec.Normalize(v)
}
