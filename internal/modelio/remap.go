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
	"regexp"
	"strings"

	"github.com/voxtral-stream/voxtral/internal/tensorutil"
)

// remapRule rewrites an original-format tensor name that matches pattern to
// replacement (using regexp submatch expansion).
type remapRule struct {
	pattern     *regexp.Regexp
	replacement string
}

// remapTable covers the original checkpoint's naming: Whisper-style encoder
// conv/transformer/norm layers, the downsample adapter's two linear
// projections, and the language model's embedding/attention/feed-forward
// norm and ada-norm layers. Converted-format checkpoints already use the
// canonical names below and match none of these patterns, so remapping is a
// no-op for them.
var remapTable = []remapRule{
	{regexp.MustCompile(`^conv1\.(weight|bias)$`), "encoder.conv1.$1"},
	{regexp.MustCompile(`^conv2\.(weight|bias)$`), "encoder.conv2.$1"},
	{regexp.MustCompile(`^layers\.(\d+)\.attention_norm\.weight$`), "encoder.layers.$1.attn_norm.weight"},
	{regexp.MustCompile(`^layers\.(\d+)\.attention\.wq\.(weight|bias)$`), "encoder.layers.$1.q_proj.$2"},
	{regexp.MustCompile(`^layers\.(\d+)\.attention\.wk\.weight$`), "encoder.layers.$1.k_proj.weight"},
	{regexp.MustCompile(`^layers\.(\d+)\.attention\.wv\.(weight|bias)$`), "encoder.layers.$1.v_proj.$2"},
	{regexp.MustCompile(`^layers\.(\d+)\.attention\.wo\.(weight|bias)$`), "encoder.layers.$1.o_proj.$2"},
	{regexp.MustCompile(`^layers\.(\d+)\.ffn_norm\.weight$`), "encoder.layers.$1.mlp_norm.weight"},
	{regexp.MustCompile(`^layers\.(\d+)\.feed_forward\.w1\.weight$`), "encoder.layers.$1.gate_proj.weight"},
	{regexp.MustCompile(`^layers\.(\d+)\.feed_forward\.w2\.weight$`), "encoder.layers.$1.down_proj.weight"},
	{regexp.MustCompile(`^layers\.(\d+)\.feed_forward\.w3\.weight$`), "encoder.layers.$1.up_proj.weight"},
	{regexp.MustCompile(`^norm\.weight$`), "encoder.final_norm.weight"},

	{regexp.MustCompile(`^downsample\.w_in\.weight$`), "adapter.w_in.weight"},
	{regexp.MustCompile(`^downsample\.w_out\.weight$`), "adapter.w_out.weight"},

	{regexp.MustCompile(`^tok_embeddings\.weight$`), "decoder.embed_tokens.weight"},
	{regexp.MustCompile(`^lm_layers\.(\d+)\.attention_norm\.weight$`), "decoder.layers.$1.attn_norm.weight"},
	{regexp.MustCompile(`^lm_layers\.(\d+)\.attention\.wq\.weight$`), "decoder.layers.$1.q_proj.weight"},
	{regexp.MustCompile(`^lm_layers\.(\d+)\.attention\.wk\.weight$`), "decoder.layers.$1.k_proj.weight"},
	{regexp.MustCompile(`^lm_layers\.(\d+)\.attention\.wv\.weight$`), "decoder.layers.$1.v_proj.weight"},
	{regexp.MustCompile(`^lm_layers\.(\d+)\.attention\.wo\.weight$`), "decoder.layers.$1.o_proj.weight"},
	{regexp.MustCompile(`^lm_layers\.(\d+)\.ffn_norm\.weight$`), "decoder.layers.$1.mlp_norm.weight"},
	{regexp.MustCompile(`^lm_layers\.(\d+)\.feed_forward\.w1\.weight$`), "decoder.layers.$1.gate_proj.weight"},
	{regexp.MustCompile(`^lm_layers\.(\d+)\.feed_forward\.w2\.weight$`), "decoder.layers.$1.down_proj.weight"},
	{regexp.MustCompile(`^lm_layers\.(\d+)\.feed_forward\.w3\.weight$`), "decoder.layers.$1.up_proj.weight"},
	{regexp.MustCompile(`^lm_layers\.(\d+)\.ada_norm\.w_in\.weight$`), "decoder.layers.$1.ada_in.weight"},
	{regexp.MustCompile(`^lm_layers\.(\d+)\.ada_norm\.w_out\.weight$`), "decoder.layers.$1.ada_out.weight"},
	{regexp.MustCompile(`^lm_norm\.weight$`), "decoder.final_norm.weight"},
}

var stripPrefixes = []string{
	"mm_streams_embeddings.embedding_module.",
	"mm_whisper_embeddings.",
}

// RemapWeights strips the known embedding-module prefixes, rewrites names
// via remapTable, transposes conv1/conv2 from (out, in, k) to (out, k, in),
// and discards output.weight (the output projection is tied to the input
// embedding, so the checkpoint's separate copy is redundant).
func RemapWeights(raw WeightSet) WeightSet {
	out := make(WeightSet, len(raw))
	for name, t := range raw {
		if name == "output.weight" {
			continue
		}

		stripped := name
		for _, p := range stripPrefixes {
			if strings.HasPrefix(stripped, p) {
				stripped = stripped[len(p):]
				break
			}
		}

		canonical := stripped
		for _, rule := range remapTable {
			if rule.pattern.MatchString(stripped) {
				canonical = rule.pattern.ReplaceAllString(stripped, rule.replacement)
				break
			}
		}

		if canonical == "encoder.conv1.weight" || canonical == "encoder.conv2.weight" {
			t = transposeConvWeight(t)
		}

		out[canonical] = t
	}
	return out
}

// transposeConvWeight converts a (out, in, k) conv weight into (out, k, in),
// the layout encoder.SplitConvTaps expects so each kernel tap becomes a
// plain (out, in) matrix.
func transposeConvWeight(t *tensorutil.Tensor) *tensorutil.Tensor {
	out, in, k := t.Dims[0], t.Dims[1], t.Dims[2]
	dst := tensorutil.New(out, k, in)
	for o := 0; o < out; o++ {
		for i := 0; i < in; i++ {
			for kk := 0; kk < k; kk++ {
				dst.Data[(o*k+kk)*in+i] = t.Data[(o*in+i)*k+kk]
			}
		}
	}
	return dst
}
