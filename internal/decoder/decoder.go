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

// Package decoder implements the sliding-window causal language model:
// grouped-query attention over a rotating KV cache, SwiGLU MLPs, and
// per-layer adaptive-RMSNorm scaling driven by a precomputed time
// embedding.
package decoder

import (
	"math/rand"

	"github.com/voxtral-stream/voxtral/internal/kvcache"
	"github.com/voxtral-stream/voxtral/internal/tensorutil"
)

// Decoder is immutable model state shared across sessions.
type Decoder struct {
	cfg  Config
	w    *Weights
	rope *tensorutil.RotaryTable
}

// New builds a Decoder from loaded weights and config.
func New(cfg Config, w *Weights) *Decoder {
	return &Decoder{
		cfg:  cfg,
		w:    w,
		rope: tensorutil.NewRotaryTable(cfg.HeadDim, cfg.RopeTheta, cfg.SlidingWindow+256),
	}
}

func (d *Decoder) Config() Config { return d.cfg }

// PrecomputeAdaScales derives the per-layer adaptive-RMSNorm scale vectors
// for a fixed time-conditioning value t, to be reused across every decode
// step in a session or transcription.
func (d *Decoder) PrecomputeAdaScales(t float64) [][]float32 {
	tCond := TimeEmbedding(t, d.cfg.Dim)
	return AdaScales(d.w, tCond)
}

// State is the per-session mutable decoder state: one rotating KV cache per
// layer, sized to the session's decoder window.
type State struct {
	caches []*kvcache.Cache
}

// NewState allocates fresh per-layer rotating caches sized to windowTokens.
func (d *Decoder) NewState(windowTokens int) *State {
	caches := make([]*kvcache.Cache, d.cfg.NLayers)
	for i := range caches {
		caches[i] = kvcache.New(windowTokens, d.cfg.NKVHeads*d.cfg.HeadDim)
	}
	return &State{caches: caches}
}

// EmbedToken looks up a single token's embedding row.
func (d *Decoder) EmbedToken(id int32) []float32 {
	row := d.w.EmbedTokens.Row(int(id))
	out := make([]float32, len(row))
	copy(out, row)
	return out
}

// EmbedTokens looks up a sequence of token embeddings, returning a
// (len(ids), dim) tensor.
func (d *Decoder) EmbedTokens(ids []int32) *tensorutil.Tensor {
	out := tensorutil.New(len(ids), d.cfg.Dim)
	for i, id := range ids {
		copy(out.Row(i), d.w.EmbedTokens.Row(int(id)))
	}
	return out
}

func (d *Decoder) runLayer(x *tensorutil.Tensor, lw *LayerWeights, cache *kvcache.Cache, scale []float32) *tensorutil.Tensor {
	normed := tensorutil.RMSNorm(x, lw.AttnNormWeight, d.cfg.NormEps)

	q := tensorutil.Linear(normed, lw.QProjW, nil)
	k := tensorutil.Linear(normed, lw.KProjW, nil)
	v := tensorutil.Linear(normed, lw.VProjW, nil)

	offset := cache.Offset()
	d.rope.Apply(q, d.cfg.NHeads, offset)
	d.rope.Apply(k, d.cfg.NKVHeads, offset)

	kView, vView := cache.UpdateAndFetch(k, v)
	causal := x.Rows() > 1
	attnOut := tensorutil.Attention(q, kView, vView, d.cfg.NHeads, d.cfg.NKVHeads, d.cfg.HeadDim, causal)
	o := tensorutil.Linear(attnOut, lw.OProjW, nil)

	h := x.Clone()
	tensorutil.AddInPlace(h, o)

	normed2 := tensorutil.RMSNormScaled(h, lw.MLPNormWeight, scale, d.cfg.NormEps)
	gate := tensorutil.Linear(normed2, lw.GateW, nil)
	tensorutil.SiLU(gate)
	up := tensorutil.Linear(normed2, lw.UpW, nil)
	for i := range gate.Data {
		gate.Data[i] *= up.Data[i]
	}
	down := tensorutil.Linear(gate, lw.DownW, nil)

	out := h.Clone()
	tensorutil.AddInPlace(out, down)
	return out
}

// Forward runs the transformer stack over x (shape (T, dim)), using state's
// caches and the precomputed per-layer adaptive scales, and returns the
// final hidden states (T, dim).
func (d *Decoder) Forward(x *tensorutil.Tensor, state *State, adaScales [][]float32) *tensorutil.Tensor {
	for i := range d.w.Layers {
		x = d.runLayer(x, &d.w.Layers[i], state.caches[i], adaScales[i])
	}
	return tensorutil.RMSNorm(x, d.w.FinalNorm, d.cfg.NormEps)
}

// Logits projects hidden states through the tied embedding, transposed.
func (d *Decoder) Logits(hidden *tensorutil.Tensor) *tensorutil.Tensor {
	return tensorutil.Linear(hidden, d.w.EmbedTokens, nil)
}

// SampleNext picks the next token id from the last row of hidden's logits.
func (d *Decoder) SampleNext(hidden *tensorutil.Tensor, temperature float32, rng *rand.Rand) int32 {
	logits := d.Logits(hidden)
	lastRow := logits.Row(logits.Rows() - 1)
	return tensorutil.SampleGreedyOrTemperature(lastRow, temperature, rng)
}
