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

// Package encoder implements the causal audio encoder: two stateful causal
// 1-D convolutions feeding a rotary-attention transformer stack whose
// layers each own a rotating key/value cache bounded to the encoder's
// sliding window.
package encoder

import (
	"github.com/voxtral-stream/voxtral/internal/adapter"
	"github.com/voxtral-stream/voxtral/internal/kvcache"
	"github.com/voxtral-stream/voxtral/internal/tensorutil"
)

// Encoder is immutable model state shared across sessions: weights, config,
// and the rotary table. Per-session mutable state lives in State.
type Encoder struct {
	cfg     Config
	w       *Weights
	rope    *tensorutil.RotaryTable
	adapter *adapter.Adapter
}

// New builds an Encoder from loaded weights and config.
func New(cfg Config, w *Weights) *Encoder {
	return &Encoder{
		cfg:     cfg,
		w:       w,
		rope:    tensorutil.NewRotaryTable(cfg.HeadDim, cfg.RopeTheta, cfg.SlidingWindow+256),
		adapter: adapter.New(cfg.DownsampleFactor, w.AdapterWIn, w.AdapterWOut),
	}
}

// State is the per-session mutable encoder state needed to resume
// incremental encoding across chunk boundaries: conv tails, one rotating
// KV cache per layer, and the downsample carry-over buffer.
type State struct {
	conv1Tail *tensorutil.Tensor // nil until the first EncodeStep call
	conv2Tail *tensorutil.Tensor

	caches []*kvcache.Cache

	downsampleBuf *tensorutil.Tensor // nil until a fractional group accumulates
}

// NewState allocates fresh per-layer rotating caches sized to the
// encoder's sliding window.
func (e *Encoder) NewState() *State {
	caches := make([]*kvcache.Cache, e.cfg.NLayers)
	for i := range caches {
		caches[i] = kvcache.New(e.cfg.SlidingWindow, e.cfg.NHeads*e.cfg.HeadDim)
	}
	return &State{caches: caches}
}

// runLayer applies one transformer block to x, using and updating the
// layer's rotating cache.
func (e *Encoder) runLayer(x *tensorutil.Tensor, lw *LayerWeights, cache *kvcache.Cache) *tensorutil.Tensor {
	normed := tensorutil.RMSNorm(x, lw.AttnNormWeight, e.cfg.NormEps)

	q := tensorutil.Linear(normed, lw.QProjW, lw.QProjB)
	k := tensorutil.Linear(normed, lw.KProjW, nil)
	v := tensorutil.Linear(normed, lw.VProjW, lw.VProjB)

	offset := cache.Offset()
	e.rope.Apply(q, e.cfg.NHeads, offset)
	e.rope.Apply(k, e.cfg.NHeads, offset)

	kView, vView := cache.UpdateAndFetch(k, v)
	attnOut := tensorutil.Attention(q, kView, vView, e.cfg.NHeads, e.cfg.NHeads, e.cfg.HeadDim, true)
	o := tensorutil.Linear(attnOut, lw.OProjW, lw.OProjB)

	h := x.Clone()
	tensorutil.AddInPlace(h, o)

	normed2 := tensorutil.RMSNorm(h, lw.MLPNormWeight, e.cfg.NormEps)
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

func (e *Encoder) runLayers(x *tensorutil.Tensor, caches []*kvcache.Cache) *tensorutil.Tensor {
	for i := range e.w.Layers {
		x = e.runLayer(x, &e.w.Layers[i], caches[i])
	}
	return tensorutil.RMSNorm(x, e.w.FinalNormWeight, e.cfg.NormEps)
}

// Encode runs the offline, whole-utterance encoder path: convolve the
// entire mel tensor, chunk the result along time into pieces of at most
// min(256, slidingWindow) so that a fresh encoder cache never exceeds the
// window, then downsample and adapt into decoder-dim embeddings.
func (e *Encoder) Encode(mel *tensorutil.Tensor) *tensorutil.Tensor {
	timeMajor := TransposeToTime(mel)
	if timeMajor.Rows()%2 != 0 {
		timeMajor = timeMajor.SliceRows(1, timeMajor.Rows())
	}

	conv1In := PrependZeros(timeMajor, convTailLen(e.w.Conv1, 1))
	conv1Out := Conv1D(conv1In, e.w.Conv1, 1)
	tensorutil.GELU(conv1Out)

	conv2In := PrependZeros(conv1Out, convTailLen(e.w.Conv2, 2))
	conv2Out := Conv1D(conv2In, e.w.Conv2, 2)
	tensorutil.GELU(conv2Out)

	caches := make([]*kvcache.Cache, e.cfg.NLayers)
	for i := range caches {
		caches[i] = kvcache.New(e.cfg.SlidingWindow, e.cfg.NHeads*e.cfg.HeadDim)
	}

	chunkLen := e.cfg.SlidingWindow
	if chunkLen > 256 {
		chunkLen = 256
	}
	if chunkLen < 1 {
		chunkLen = 1
	}

	total := conv2Out.Rows()
	if total == 0 {
		return tensorutil.New(0, e.cfg.Dim)
	}

	var outputs []*tensorutil.Tensor
	for start := 0; start < total; start += chunkLen {
		end := start + chunkLen
		if end > total {
			end = total
		}
		chunk := conv2Out.SliceRows(start, end)
		outputs = append(outputs, e.runLayers(chunk, caches))
	}
	full := tensorutil.ConcatRows(outputs...)

	k := e.cfg.DownsampleFactor
	rows := full.Rows()
	remainder := rows % k
	if remainder > 0 {
		full = full.SliceRows(remainder, rows)
	}
	grouped := adapter.GroupRows(full, k)
	return e.adapter.Project(grouped)
}

// EncodeStep runs one incremental encoder step on newly arrived mel columns
// (shape (nMels, T)), updating state in place. It returns the adapter
// output for any newly completed downsample groups, or nil if none
// completed yet.
func (e *Encoder) EncodeStep(state *State, newMel *tensorutil.Tensor) *tensorutil.Tensor {
	newMelTime := TransposeToTime(newMel)

	conv1TapLen := convTailLen(e.w.Conv1, 1)
	var conv1In *tensorutil.Tensor
	if state.conv1Tail != nil {
		conv1In = tensorutil.ConcatRows(state.conv1Tail, newMelTime)
	} else {
		conv1In = PrependZeros(newMelTime, conv1TapLen)
	}
	// Tail is captured from what was actually fed to conv1 this step (tail
	// included), not from newMel alone, and sized by how many rows the
	// convolution actually left unconsumed rather than a fixed
	// kernel-stride width — a step that doesn't fill even one window must
	// carry all of its input forward, or causal context is lost.
	state.conv1Tail = TailRows(conv1In, convRemainder(conv1In.Rows(), len(e.w.Conv1.Taps), 1))

	conv1Out := Conv1D(conv1In, e.w.Conv1, 1)
	tensorutil.GELU(conv1Out)

	conv2TapLen := convTailLen(e.w.Conv2, 2)
	var conv2In *tensorutil.Tensor
	if state.conv2Tail != nil {
		conv2In = tensorutil.ConcatRows(state.conv2Tail, conv1Out)
	} else {
		conv2In = PrependZeros(conv1Out, conv2TapLen)
	}
	state.conv2Tail = TailRows(conv2In, convRemainder(conv2In.Rows(), len(e.w.Conv2.Taps), 2))

	conv2Out := Conv1D(conv2In, e.w.Conv2, 2)
	tensorutil.GELU(conv2Out)

	if conv2Out.Rows() == 0 {
		return nil
	}

	hidden := e.runLayers(conv2Out, state.caches)

	var combined *tensorutil.Tensor
	if state.downsampleBuf != nil {
		combined = tensorutil.ConcatRows(state.downsampleBuf, hidden)
	} else {
		combined = hidden
	}

	k := e.cfg.DownsampleFactor
	rows := combined.Rows()
	groupRows := (rows / k) * k
	if groupRows == 0 {
		state.downsampleBuf = combined
		return nil
	}

	ready := combined.SliceRows(0, groupRows)
	if groupRows < rows {
		state.downsampleBuf = combined.SliceRows(groupRows, rows).Clone()
	} else {
		state.downsampleBuf = nil
	}

	grouped := adapter.GroupRows(ready, k)
	return e.adapter.Project(grouped)
}

// convTailLen is the causal zero left-padding put in front of a
// convolution's input offline and on the first EncodeStep: kernel - stride
// (0 when the stride exceeds the kernel). The tail carried between steps is
// sized by convRemainder instead.
func convTailLen(cw *ConvWeight, stride int) int {
	k := len(cw.Taps)
	if k-stride < 0 {
		return 0
	}
	return k - stride
}
