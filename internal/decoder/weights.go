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

import "github.com/voxtral-stream/voxtral/internal/tensorutil"

// Config carries the language-model hyperparameters read from a model's
// top-level params.json/config.json block.
type Config struct {
	Dim           int
	NLayers       int
	HeadDim       int
	HiddenDim     int
	NHeads        int
	NKVHeads      int
	RopeTheta     float64
	NormEps       float32
	VocabSize     int
	SlidingWindow int // decoder_window_tokens
	AdaCondDim    int // ada_rms_norm_t_cond_dim
}

// LayerWeights holds one decoder block's parameters. Mistral/Llama-family
// linear projections carry no bias; only RMSNorm weights and the adaptive
// scale MLP have learned parameters outside the matmuls.
type LayerWeights struct {
	AttnNormWeight []float32
	QProjW         *tensorutil.Tensor
	KProjW         *tensorutil.Tensor
	VProjW         *tensorutil.Tensor
	OProjW         *tensorutil.Tensor

	MLPNormWeight []float32
	GateW         *tensorutil.Tensor
	UpW           *tensorutil.Tensor
	DownW         *tensorutil.Tensor

	AdaInW  *tensorutil.Tensor // (AdaCondDim, Dim)
	AdaOutW *tensorutil.Tensor // (Dim, AdaCondDim)
}

// Weights holds every learned decoder parameter. EmbedTokens is used both
// as the input lookup table and, transposed, as the tied output projection;
// any output.weight present in source weights is discarded at load time.
type Weights struct {
	EmbedTokens *tensorutil.Tensor // (VocabSize, Dim)
	Layers      []LayerWeights
	FinalNorm   []float32
}
