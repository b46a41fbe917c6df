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
	"math/rand"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/voxtral-stream/voxtral/internal/tensorutil"
)

func tinyConfig() Config {
	return Config{
		Dim:           2,
		NLayers:       1,
		HeadDim:       2,
		HiddenDim:     2,
		NHeads:        1,
		NKVHeads:      1,
		RopeTheta:     10000,
		NormEps:       1e-5,
		VocabSize:     4,
		SlidingWindow: 8,
		AdaCondDim:    4,
	}
}

func identity2() *tensorutil.Tensor {
	return tensorutil.FromData([]float32{1, 0, 0, 1}, 2, 2)
}

func zeros2() *tensorutil.Tensor {
	return tensorutil.New(2, 2)
}

// tinyWeights wires identity Q/K/V/O projections and zeroed MLP/ada
// matrices, so attention passes its input through unchanged and ada-scale
// stays at the neutral value of 1.
func tinyWeights(cfg Config) *Weights {
	layer := LayerWeights{
		AttnNormWeight: []float32{1, 1},
		QProjW:         identity2(),
		KProjW:         identity2(),
		VProjW:         identity2(),
		OProjW:         identity2(),
		MLPNormWeight:  []float32{1, 1},
		GateW:          zeros2(),
		UpW:            zeros2(),
		DownW:          zeros2(),
		AdaInW:         tensorutil.New(cfg.AdaCondDim, cfg.Dim), // (AdaCondDim, Dim)
		AdaOutW:        tensorutil.New(cfg.Dim, cfg.AdaCondDim), // (Dim, AdaCondDim)
	}
	embed := tensorutil.FromData([]float32{
		1, 0,
		0, 1,
		1, 1,
		-1, -1,
	}, cfg.VocabSize, cfg.Dim)
	return &Weights{
		EmbedTokens: embed,
		Layers:      []LayerWeights{layer},
		FinalNorm:   []float32{1, 1},
	}
}

func TestForward_PreservesShapeAcrossLayers(t *testing.T) {
	cfg := tinyConfig()
	d := New(cfg, tinyWeights(cfg))
	state := d.NewState(cfg.SlidingWindow)
	adaScales := d.PrecomputeAdaScales(0)

	x := tensorutil.FromData([]float32{1, 0, 0, 1, 1, 1}, 3, 2)
	out := d.Forward(x, state, adaScales)
	require.Equal(t, []int{3, 2}, out.Dims)
}

func TestForward_SingleRowStepUsesNonCausalSingleQueryPath(t *testing.T) {
	// x.Rows() == 1 takes the non-causal branch in runLayer (causal masking
	// is meaningless for a lone query against its own KV cache window).
	cfg := tinyConfig()
	d := New(cfg, tinyWeights(cfg))
	state := d.NewState(cfg.SlidingWindow)
	adaScales := d.PrecomputeAdaScales(0)

	x := tensorutil.FromData([]float32{1, 0}, 1, 2)
	out := d.Forward(x, state, adaScales)
	require.Equal(t, []int{1, 2}, out.Dims)
}

func TestPrecomputeAdaScales_IsNeutralWhenAdaWeightsAreZero(t *testing.T) {
	cfg := tinyConfig()
	d := New(cfg, tinyWeights(cfg))

	scales := d.PrecomputeAdaScales(3.5)
	require.Len(t, scales, cfg.NLayers)
	for _, v := range scales[0] {
		require.InDelta(t, 1.0, v, 1e-6)
	}
}

func TestEmbedTokens_LooksUpRowsByID(t *testing.T) {
	cfg := tinyConfig()
	d := New(cfg, tinyWeights(cfg))

	out := d.EmbedTokens([]int32{2, 0})
	require.Equal(t, []float32{1, 1, 1, 0}, out.Data)
}

func TestEmbedToken_MatchesEmbedTokensRow(t *testing.T) {
	cfg := tinyConfig()
	d := New(cfg, tinyWeights(cfg))

	require.Equal(t, []float32{1, 1}, d.EmbedToken(2))
}

func TestLogits_ProjectsThroughTiedEmbedding(t *testing.T) {
	cfg := tinyConfig()
	d := New(cfg, tinyWeights(cfg))

	hidden := tensorutil.FromData([]float32{1, 0}, 1, 2)
	logits := d.Logits(hidden)
	require.Equal(t, []int{1, cfg.VocabSize}, logits.Dims)
	require.Equal(t, []float32{1, 0, 1, -1}, logits.Data)
}

func TestSampleNext_GreedyPicksArgmaxOfLastRow(t *testing.T) {
	cfg := tinyConfig()
	d := New(cfg, tinyWeights(cfg))

	hidden := tensorutil.FromData([]float32{0, 0, 1, 0}, 2, 2) // row1 favors token 0
	next := d.SampleNext(hidden, 0, rand.New(rand.NewSource(1)))
	require.Equal(t, int32(0), next)
}

func TestTimeEmbedding_StartsAtOnesAndZerosWhenTIsZero(t *testing.T) {
	out := TimeEmbedding(0, 4)
	require.Equal(t, []float32{1, 1, 0, 0}, out)
}
