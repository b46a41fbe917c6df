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
	"path/filepath"

	"github.com/voxtral-stream/voxtral/internal/tokenizer"
)

// Artifact is a fully resolved and materialized model: hyperparameters,
// tokenizer, and the weight tensors the encoder/adapter/decoder need.
// Resolution and weight materialization happen once per process; an
// Artifact is read-only and safe to share across every transcriber and
// session for that model.
type Artifact struct {
	Dir       string
	Tokenizer *tokenizer.Tokenizer
	Model     *Model
}

// Load resolves modelID (a local directory or HuggingFace repo id) through
// resolver, then parses its tekken.json and params.json/config.json and
// materializes its safetensors weights.
func Load(resolver *Resolver, modelID string) (*Artifact, error) {
	dir, err := resolver.Resolve(modelID)
	if err != nil {
		return nil, err
	}

	tok, err := tokenizer.Load(filepath.Join(dir, "tekken.json"))
	if err != nil {
		return nil, err
	}

	hp, err := LoadHyperparams(dir)
	if err != nil {
		return nil, err
	}

	raw, err := LoadSafetensors(dir)
	if err != nil {
		return nil, err
	}
	weights := RemapWeights(raw)

	model, err := BuildModel(hp, weights)
	if err != nil {
		return nil, fmt.Errorf("modelio: building model from %s: %w", dir, err)
	}

	return &Artifact{Dir: dir, Tokenizer: tok, Model: model}, nil
}
