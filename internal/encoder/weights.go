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

// Config carries the encoder hyperparameters read from a model's
// multimodal.whisper_model_args.encoder_args block.
type Config struct {
	NMels            int
	Dim              int
	NLayers          int
	HeadDim          int
	HiddenDim        int
	NHeads           int
	RopeTheta        float64
	NormEps          float32
	SlidingWindow    int
	DownsampleFactor int
}

// LayerWeights holds one transformer block's parameters.
type LayerWeights struct {
	AttnNormWeight []float32
	QProjW         *tensorutil.Tensor
	QProjB         []float32
	KProjW         *tensorutil.Tensor
	VProjW         *tensorutil.Tensor
	VProjB         []float32
	OProjW         *tensorutil.Tensor
	OProjB         []float32

	MLPNormWeight []float32
	GateW         *tensorutil.Tensor
	UpW           *tensorutil.Tensor
	DownW         *tensorutil.Tensor
}

// Weights holds every learned parameter the encoder needs.
type Weights struct {
	Conv1 *ConvWeight
	Conv2 *ConvWeight

	Layers []LayerWeights

	FinalNormWeight []float32

	AdapterWIn  *tensorutil.Tensor
	AdapterWOut *tensorutil.Tensor
}
