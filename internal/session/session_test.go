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

package session

import (
	"encoding/json"
	"math/rand"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/voxtral-stream/voxtral/internal/decoder"
	"github.com/voxtral-stream/voxtral/internal/encoder"
	"github.com/voxtral-stream/voxtral/internal/tensorutil"
	"github.com/voxtral-stream/voxtral/internal/tokenizer"
	"github.com/voxtral-stream/voxtral/internal/transcribe"
	"github.com/voxtral-stream/voxtral/internal/voxerr"
)

// writeMiniTekken writes a tiny tekken.json fixture to a temp file and
// loads it: three control special tokens, one non-control pad token, and a
// two-entry vocab decoding to "A"/"B", with no left-padding and a one-token
// transcription delay so the prefix is as short as possible.
func writeMiniTekken(t *testing.T) *tokenizer.Tokenizer {
	raw := map[string]any{
		"special_tokens": []map[string]any{
			{"rank": 0, "token_str": "<unk>", "is_control": true},
			{"rank": 1, "token_str": "<s>", "is_control": true},
			{"rank": 2, "token_str": "</s>", "is_control": true},
			{"rank": 3, "token_str": "[STREAMING_PAD]", "is_control": false},
		},
		"vocab": []map[string]any{
			{"rank": 0, "token_str": "A"},
			{"rank": 1, "token_str": "B"},
		},
		"audio": map[string]any{
			"sampling_rate":              16000,
			"frame_rate":                 12.5,
			"transcription_delay_ms":     80,
			"streaming_n_left_pad_tokens": 0,
		},
		"config": map[string]any{"num_vocab_tokens": 6},
	}
	dir := t.TempDir()
	path := filepath.Join(dir, "tekken.json")
	data, err := json.Marshal(raw)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, data, 0o644))

	tok, err := tokenizer.Load(path)
	require.NoError(t, err)
	return tok
}

func tinyEncoder() *encoder.Encoder {
	// NMels must match mel.Default()'s NMels (128): the session wires its
	// frontend to the process-wide default tables, so conv1's input
	// channel count has to agree with them even though every other
	// dimension in this fixture is kept at 2 for hand-tracing.
	const nMels = 128
	cfg := encoder.Config{
		NMels: nMels, Dim: 2, NLayers: 1, HeadDim: 2, HiddenDim: 2, NHeads: 1,
		RopeTheta: 10000, NormEps: 1e-5, SlidingWindow: 64, DownsampleFactor: 2,
	}
	identity := tensorutil.FromData([]float32{1, 0, 0, 1}, 2, 2)
	zero := tensorutil.New(2, 2)
	conv1Tap := tensorutil.New(2, nMels) // zeroed: only shape matters for this smoke test
	layer := encoder.LayerWeights{
		AttnNormWeight: []float32{1, 1},
		QProjW:         identity, QProjB: []float32{0, 0},
		KProjW: identity,
		VProjW: identity, VProjB: []float32{0, 0},
		OProjW: identity, OProjB: []float32{0, 0},
		MLPNormWeight: []float32{1, 1},
		GateW:         zero, UpW: zero, DownW: zero,
	}
	w := &encoder.Weights{
		Conv1:           &encoder.ConvWeight{Taps: []*tensorutil.Tensor{conv1Tap, conv1Tap, conv1Tap}, Bias: make([]float32, 2)},
		Conv2:           &encoder.ConvWeight{Taps: []*tensorutil.Tensor{zero, identity, zero}, Bias: make([]float32, 2)},
		Layers:          []encoder.LayerWeights{layer},
		FinalNormWeight: []float32{1, 1},
		AdapterWIn:      tensorutil.New(2, 4),
		AdapterWOut:     identity,
	}
	return encoder.New(cfg, w)
}

func tinyDecoder() *decoder.Decoder {
	cfg := decoder.Config{
		Dim: 2, NLayers: 1, HeadDim: 2, HiddenDim: 2, NHeads: 1, NKVHeads: 1,
		RopeTheta: 10000, NormEps: 1e-5, VocabSize: 6, SlidingWindow: 64, AdaCondDim: 4,
	}
	identity := tensorutil.FromData([]float32{1, 0, 0, 1}, 2, 2)
	zero := tensorutil.New(2, 2)
	layer := decoder.LayerWeights{
		AttnNormWeight: []float32{1, 1},
		QProjW:         identity, KProjW: identity, VProjW: identity, OProjW: identity,
		MLPNormWeight: []float32{1, 1},
		GateW:         zero, UpW: zero, DownW: zero,
		AdaInW:  tensorutil.New(4, 2),
		AdaOutW: tensorutil.New(2, 4),
	}
	// 6 vocab rows: 4 special (ids 0-3) + 2 real tokens (ids 4="A", 5="B").
	// EOS (id 2) has row (1, 1), so it wins greedy sampling whenever the
	// final hidden state is positive in both features; an all-zero hidden
	// state still ties every logit at 0.
	embed := tensorutil.FromData([]float32{
		0, 0,
		0, 0,
		1, 1,
		0, 0,
		1, 0,
		0, 1,
	}, 6, 2)
	return decoder.New(cfg, &decoder.Weights{
		EmbedTokens: embed,
		Layers:      []decoder.LayerWeights{layer},
		FinalNorm:   []float32{1, 1},
	})
}

func newTestSession(t *testing.T, cfg Config) *Session {
	tok := writeMiniTekken(t)
	s, err := New(tinyEncoder(), tinyDecoder(), tok, rand.New(rand.NewSource(1)), cfg)
	require.NoError(t, err)
	return s
}

func TestNew_RejectsNonPositiveChunkDuration(t *testing.T) {
	tok := writeMiniTekken(t)
	_, err := New(tinyEncoder(), tinyDecoder(), tok, rand.New(rand.NewSource(1)), Config{ChunkDurationMS: -1})
	require.ErrorIs(t, err, voxerr.ErrInvalidChunkDuration)
}

func TestNew_DerivesPrefixLengthFromDelayAndLeftPad(t *testing.T) {
	// delay=80ms=1 token, left_pad=0 -> prefix = 1 (BOS) + 0 + 1 = 2.
	s := newTestSession(t, Config{})
	require.Equal(t, 2, s.prefixLen)
	require.Equal(t, 0, s.leftPadTokens)
	require.Equal(t, 1, s.delayTokens)
}

func TestAppendAudioSamples_BuffersPartialChunksWithoutConsuming(t *testing.T) {
	s := newTestSession(t, Config{})
	half := make([]float32, s.chunkSamples/2)
	s.AppendAudioSamples(half)
	require.Equal(t, 0, s.pendingHead)
	require.Len(t, s.pendingPCM, s.chunkSamples/2)
}

func TestAppendAudioSamples_ConsumesWholeChunksAndTracksSamplesFed(t *testing.T) {
	s := newTestSession(t, Config{})
	chunk := make([]float32, s.chunkSamples)
	s.AppendAudioSamples(chunk)
	require.EqualValues(t, s.chunkSamples, s.totalAudioSamplesFed)
	require.False(t, s.firstCycle)
}

func TestDecodeAvailable_PrefillsOnceEnoughEmbeddingsAccumulate(t *testing.T) {
	s := newTestSession(t, Config{})
	// prefixLen == 2: seed exactly enough rows to trigger prefill.
	s.audioEmbeds = [][]float32{{0, 0}, {0, 0}}
	out := s.decodeAvailable(lookaheadGuarded)
	require.True(t, s.prefilled)
	require.Equal(t, int64(2), s.totalDecodedPositions)
	require.Empty(t, s.audioEmbeds)
	// lookahead guard blocks steady-state decoding until audio "arrives".
	require.Empty(t, out)
}

func TestDecodeAvailable_LookaheadGuardBlocksUntilAudioArrives(t *testing.T) {
	s := newTestSession(t, Config{})
	s.audioEmbeds = [][]float32{{0, 0}, {0, 0}, {0, 0}}
	// No audio has been "fed" yet (totalAudioSamplesFed==0), so the guard
	// must block the steady-state step even though a row is available.
	out := s.decodeAvailable(lookaheadGuarded)
	require.True(t, s.prefilled)
	require.Empty(t, out)
	require.Len(t, s.audioEmbeds, 1) // prefill consumed 2 of 3 rows
}

func TestDecodeAvailable_DecodeAllAvailableIgnoresLookaheadGuard(t *testing.T) {
	s := newTestSession(t, Config{})
	s.audioEmbeds = [][]float32{{0, 0}, {0, 0}, {0, 0}}
	out := s.decodeAvailable(decodeAllAvailable)
	require.True(t, s.prefilled)
	require.Empty(t, s.audioEmbeds)
	require.GreaterOrEqual(t, s.totalDecodedPositions, int64(3))
	_ = out
}

func TestFinishStream_FlushesFinalTokenAndResets(t *testing.T) {
	s := newTestSession(t, Config{})
	s.audioEmbeds = [][]float32{{0, 0}, {0, 0}}
	out := s.FinishStream()
	require.NotNil(t, out)
	// resetMutableState must leave the session ready for a new stream.
	require.False(t, s.prefilled)
	require.True(t, s.firstCycle)
	require.Empty(t, s.audioEmbeds)
	require.Empty(t, s.pendingBytes)
}

func TestSampleNextViaEOS_ResetsAllSessionState(t *testing.T) {
	s := newTestSession(t, Config{})
	// Held token "A" (id 4, row (1, 0)) plus audio row (1, 1) gives input
	// (2, 1). With identity attention and a zero MLP the final hidden state
	// is about (1.26, 0.63), so the logits are EOS 1.90, "A" 1.26, "B" 0.63
	// and 0 elsewhere: the steady-state step samples EOS, emits "A" and
	// the newline, and resets the session.
	s.currentToken = 4
	s.prefilled = true
	s.totalDecodedPositions = int64(s.prefixLen)
	s.audioEmbeds = [][]float32{{1, 1}}
	out := s.decodeAvailable(decodeAllAvailable)
	require.Contains(t, out, "\n")
	require.False(t, s.prefilled)
	require.Empty(t, s.audioEmbeds)
}

func TestSessionWithEncoder_DoesNotPanicAcrossMultipleChunks(t *testing.T) {
	s := newTestSession(t, Config{})
	samples := make([]float32, s.chunkSamples*3+17)
	for i := range samples {
		samples[i] = float32(i%7) * 0.001
	}
	require.NotPanics(t, func() {
		s.AppendAudioSamples(samples)
		s.FinishStream()
	})
}

var _ = transcribe.SamplesPerToken // keep the transcribe import grounded to the shared constant
