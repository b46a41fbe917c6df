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

// Package modelio resolves a model artifact — a local directory or a
// HuggingFace-style repo id — parses its hyperparameters and tokenizer, and
// materializes its safetensors weights into the tensors the encoder,
// adapter and decoder packages expect.
package modelio

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/bytedance/sonic/decoder"
)

// WhisperEncoderArgs mirrors the nested multimodal.whisper_model_args.encoder_args block.
type WhisperEncoderArgs struct {
	NMels         int     `json:"num_mel_bins"`
	Dim           int     `json:"dim"`
	NLayers       int     `json:"n_layers"`
	HeadDim       int     `json:"head_dim"`
	HiddenDim     int     `json:"hidden_dim"`
	NHeads        int     `json:"n_heads"`
	RopeTheta     float64 `json:"rope_theta"`
	NormEps       float64 `json:"norm_eps"`
	SlidingWindow int     `json:"sliding_window"`
}

// DownsampleArgs mirrors multimodal.whisper_model_args.downsample_args.
type DownsampleArgs struct {
	DownsampleFactor int `json:"downsample_factor"`
}

// WhisperModelArgs mirrors multimodal.whisper_model_args.
type WhisperModelArgs struct {
	EncoderArgs    WhisperEncoderArgs `json:"encoder_args"`
	DownsampleArgs DownsampleArgs     `json:"downsample_args"`
}

// Multimodal mirrors the top-level "multimodal" block.
type Multimodal struct {
	WhisperModelArgs WhisperModelArgs `json:"whisper_model_args"`
}

// Quantization mirrors the optional top-level "quantization" block present
// in converted-format artifacts; it is parsed but never acted on — this
// reader only handles weights pre-materialized to float32/float16.
type Quantization struct {
	GroupSize int `json:"group_size"`
	Bits      int `json:"bits"`
}

// Hyperparams is the parsed contents of a model's params.json/config.json.
type Hyperparams struct {
	Dim               int     `json:"dim"`
	NLayers           int     `json:"n_layers"`
	HeadDim           int     `json:"head_dim"`
	HiddenDim         int     `json:"hidden_dim"`
	NHeads            int     `json:"n_heads"`
	NKVHeads          int     `json:"n_kv_heads"`
	RopeTheta         float64 `json:"rope_theta"`
	NormEps           float64 `json:"norm_eps"`
	VocabSize         int     `json:"vocab_size"`
	SlidingWindow     int     `json:"sliding_window"`
	AdaRMSNormTCondDim int    `json:"ada_rms_norm_t_cond_dim"`

	Multimodal   Multimodal    `json:"multimodal"`
	Quantization *Quantization `json:"quantization,omitempty"`
}

// LoadHyperparams parses whichever of params.json (original format) or
// config.json (converted format) is present in dir.
func LoadHyperparams(dir string) (*Hyperparams, error) {
	for _, name := range []string{"params.json", "config.json"} {
		path := filepath.Join(dir, name)
		f, err := os.Open(path)
		if err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return nil, fmt.Errorf("modelio: opening %s: %w", path, err)
		}
		defer f.Close()

		var hp Hyperparams
		if err := decoder.NewStreamDecoder(f).Decode(&hp); err != nil {
			return nil, fmt.Errorf("modelio: decoding %s: %w", path, err)
		}
		return &hp, nil
	}
	return nil, fmt.Errorf("modelio: no params.json or config.json found in %s", dir)
}
