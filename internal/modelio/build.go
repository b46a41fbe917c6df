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

package modelio

import (
	"fmt"
	"strconv"

	"github.com/voxtral-stream/voxtral/internal/decoder"
	"github.com/voxtral-stream/voxtral/internal/encoder"
	"github.com/voxtral-stream/voxtral/internal/tensorutil"
)

// Model bundles everything a transcriber or session needs to run a loaded
// checkpoint: parsed hyperparameters and the materialized encoder/decoder
// weight sets.
type Model struct {
	Hyperparams   *Hyperparams
	EncoderConfig encoder.Config
	EncoderWeight *encoder.Weights
	DecoderConfig decoder.Config
	DecoderWeight *decoder.Weights
}

func must(w WeightSet, name string) *tensorutil.Tensor {
	t, ok := w[name]
	if !ok {
		panic(fmt.Sprintf("modelio: missing weight tensor %q", name))
	}
	return t
}

func mustRow(w WeightSet, name string) []float32 {
	return must(w, name).Data
}

func layerName(prefix string, i int, suffix string) string {
	return prefix + "." + strconv.Itoa(i) + "." + suffix
}

// BuildModel turns a remapped WeightSet and its Hyperparams into the
// Config/Weights structs the encoder, adapter and decoder packages expect.
// A checkpoint missing a required tensor name is reported as an error here
// rather than left to panic partway through a later forward pass.
func BuildModel(hp *Hyperparams, w WeightSet) (model *Model, err error) {
	defer func() {
		if r := recover(); r != nil {
			model, err = nil, fmt.Errorf("modelio: %v", r)
		}
	}()

	encArgs := hp.Multimodal.WhisperModelArgs.EncoderArgs
	dsArgs := hp.Multimodal.WhisperModelArgs.DownsampleArgs

	encCfg := encoder.Config{
		NMels:            encArgs.NMels,
		Dim:              encArgs.Dim,
		NLayers:          encArgs.NLayers,
		HeadDim:          encArgs.HeadDim,
		HiddenDim:        encArgs.HiddenDim,
		NHeads:           encArgs.NHeads,
		RopeTheta:        encArgs.RopeTheta,
		NormEps:          float32(encArgs.NormEps),
		SlidingWindow:    encArgs.SlidingWindow,
		DownsampleFactor: dsArgs.DownsampleFactor,
	}

	encW, err := buildEncoderWeights(w, encCfg)
	if err != nil {
		return nil, err
	}

	decCfg := decoder.Config{
		Dim:           hp.Dim,
		NLayers:       hp.NLayers,
		HeadDim:       hp.HeadDim,
		HiddenDim:     hp.HiddenDim,
		NHeads:        hp.NHeads,
		NKVHeads:      hp.NKVHeads,
		RopeTheta:     hp.RopeTheta,
		NormEps:       float32(hp.NormEps),
		VocabSize:     hp.VocabSize,
		SlidingWindow: hp.SlidingWindow,
		AdaCondDim:    hp.AdaRMSNormTCondDim,
	}

	decW, err := buildDecoderWeights(w, decCfg)
	if err != nil {
		return nil, err
	}

	return &Model{
		Hyperparams:   hp,
		EncoderConfig: encCfg,
		EncoderWeight: encW,
		DecoderConfig: decCfg,
		DecoderWeight: decW,
	}, nil
}

// buildEncoderWeights assumes the checkpoint is complete: a missing tensor
// name panics via must/mustRow rather than returning a partially built
// model, since a model with holes in it cannot serve a single request
// correctly anyway.
func buildEncoderWeights(w WeightSet, cfg encoder.Config) (*encoder.Weights, error) {
	out := &encoder.Weights{
		Conv1: &encoder.ConvWeight{
			Taps: encoder.SplitConvTaps(must(w, "encoder.conv1.weight")),
			Bias: mustRow(w, "encoder.conv1.bias"),
		},
		Conv2: &encoder.ConvWeight{
			Taps: encoder.SplitConvTaps(must(w, "encoder.conv2.weight")),
			Bias: mustRow(w, "encoder.conv2.bias"),
		},
		Layers:          make([]encoder.LayerWeights, cfg.NLayers),
		FinalNormWeight: mustRow(w, "encoder.final_norm.weight"),
		AdapterWIn:      must(w, "adapter.w_in.weight"),
		AdapterWOut:     must(w, "adapter.w_out.weight"),
	}

	for i := 0; i < cfg.NLayers; i++ {
		p := layerName("encoder.layers", i, "")
		out.Layers[i] = encoder.LayerWeights{
			AttnNormWeight: mustRow(w, p+"attn_norm.weight"),
			QProjW:         must(w, p+"q_proj.weight"),
			QProjB:         mustRow(w, p+"q_proj.bias"),
			KProjW:         must(w, p+"k_proj.weight"),
			VProjW:         must(w, p+"v_proj.weight"),
			VProjB:         mustRow(w, p+"v_proj.bias"),
			OProjW:         must(w, p+"o_proj.weight"),
			OProjB:         mustRow(w, p+"o_proj.bias"),
			MLPNormWeight:  mustRow(w, p+"mlp_norm.weight"),
			GateW:          must(w, p+"gate_proj.weight"),
			UpW:            must(w, p+"up_proj.weight"),
			DownW:          must(w, p+"down_proj.weight"),
		}
	}
	return out, nil
}

func buildDecoderWeights(w WeightSet, cfg decoder.Config) (*decoder.Weights, error) {
	out := &decoder.Weights{
		EmbedTokens: must(w, "decoder.embed_tokens.weight"),
		Layers:      make([]decoder.LayerWeights, cfg.NLayers),
		FinalNorm:   mustRow(w, "decoder.final_norm.weight"),
	}

	for i := 0; i < cfg.NLayers; i++ {
		p := layerName("decoder.layers", i, "")
		out.Layers[i] = decoder.LayerWeights{
			AttnNormWeight: mustRow(w, p+"attn_norm.weight"),
			QProjW:         must(w, p+"q_proj.weight"),
			KProjW:         must(w, p+"k_proj.weight"),
			VProjW:         must(w, p+"v_proj.weight"),
			OProjW:         must(w, p+"o_proj.weight"),
			MLPNormWeight:  mustRow(w, p+"mlp_norm.weight"),
			GateW:          must(w, p+"gate_proj.weight"),
			UpW:            must(w, p+"up_proj.weight"),
			DownW:          must(w, p+"down_proj.weight"),
			AdaInW:         must(w, p+"ada_in.weight"),
			AdaOutW:        must(w, p+"ada_out.weight"),
		}
	}
	return out, nil
}
