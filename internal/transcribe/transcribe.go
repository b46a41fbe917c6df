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

// Package transcribe implements the one-shot offline pipeline: pad a whole
// utterance, compute its log-mel spectrogram, run it through the encoder,
// prefill the decoder, and sample tokens to completion or EOS.
package transcribe

import (
	"math/rand"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/voxtral-stream/voxtral/internal/decoder"
	"github.com/voxtral-stream/voxtral/internal/encoder"
	"github.com/voxtral-stream/voxtral/internal/mel"
	"github.com/voxtral-stream/voxtral/internal/tensorutil"
	"github.com/voxtral-stream/voxtral/internal/tokenizer"
	"github.com/voxtral-stream/voxtral/internal/voxerr"
)

// SamplesPerToken is the number of 16 kHz PCM samples one decoder position
// covers: hop_length * conv2_stride * downsample_factor.
const SamplesPerToken = 160 * 2 * 4

const defaultTranscriptionDelayMS = 480

// Stats carries the timing/throughput numbers reported to --stats and to
// Prometheus histograms.
type Stats struct {
	WallTime     time.Duration
	TokensPerSec float64
	MelFrames    int
	AudioSeconds float64
}

// Transcriber runs the offline, whole-utterance pipeline against one
// resolved model. Each Transcribe call allocates its own encoder caches and
// decoder state, but all calls share the rng passed to New, which is not
// safe for concurrent use; only one goroutine may call Transcribe at a time.
type Transcriber struct {
	tables  *mel.Tables
	enc     *encoder.Encoder
	dec     *decoder.Decoder
	tok     *tokenizer.Tokenizer
	rng     *rand.Rand
	leftPad int
	delay   int
	logger  *zap.Logger
}

// New builds a Transcriber from a resolved model's encoder/decoder and its
// tokenizer. logger may be nil, in which case logging is a no-op.
func New(enc *encoder.Encoder, dec *decoder.Decoder, tok *tokenizer.Tokenizer, rng *rand.Rand, logger *zap.Logger) *Transcriber {
	audio := tok.AudioMetadata()
	delay := audio.TranscriptionDelayMS / 80
	if delay == 0 {
		delay = defaultTranscriptionDelayMS / 80
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Transcriber{
		tables:  mel.Default(),
		enc:     enc,
		dec:     dec,
		tok:     tok,
		rng:     rng,
		leftPad: audio.StreamingNLeftPadTokens,
		delay:   delay,
		logger:  logger,
	}
}

// Transcribe runs the full offline pipeline on samples (already resampled
// to 16 kHz mono float32) and returns the decoded text and timing stats.
func (t *Transcriber) Transcribe(samples []float32, temperature float32, maxNewTokens int) (string, Stats, error) {
	start := time.Now()

	bosID, _ := t.tok.SpecialTokenID("<s>")
	eosID, _ := t.tok.SpecialTokenID("</s>")
	padID, ok := t.tok.SpecialTokenID("[STREAMING_PAD]")
	if !ok {
		return "", Stats{}, voxerr.ErrMissingSpecialToken
	}

	prefixLen := 1 + t.leftPad + t.delay
	promptIDs := make([]int32, prefixLen)
	promptIDs[0] = bosID
	for i := 1; i < prefixLen; i++ {
		promptIDs[i] = padID
	}
	rightPadTokens := t.delay + 1 + 10

	padded := padAudio(samples, t.leftPad, rightPadTokens)

	melOut := mel.LogMelOffline(padded, t.tables, mel.DefaultGlobalLogMelMax)
	audioEmbeds := t.enc.Encode(melOut)
	available := audioEmbeds.Rows()
	if available < prefixLen {
		return "", Stats{}, &voxerr.AudioTooShortForPrompt{Required: prefixLen, Available: available}
	}

	promptEmbed := t.dec.EmbedTokens(promptIDs)
	tensorutil.AddInPlace(promptEmbed, audioEmbeds.SliceRows(0, prefixLen))

	adaScales := t.dec.PrecomputeAdaScales(float64(t.delay))

	windowTokens := t.dec.Config().SlidingWindow
	if windowTokens < 256 {
		windowTokens = 256
	}
	state := t.dec.NewState(windowTokens)

	hidden := t.dec.Forward(promptEmbed, state, adaScales)
	currentToken := t.dec.SampleNext(hidden, temperature, t.rng)
	t.logger.Info("prefill complete", zap.Int("prefix_len", prefixLen))
	if currentToken == eosID {
		t.logger.Info("eos reset")
	}

	var sb strings.Builder
	sb.Write(t.tok.DecodedBytes(currentToken, true))

	steps := available - prefixLen + 1
	if maxNewTokens > 0 && maxNewTokens < steps {
		steps = maxNewTokens
	}

	nextRow := prefixLen
	for i := 1; i < steps && currentToken != eosID; i++ {
		x := t.dec.EmbedToken(currentToken)
		xt := tensorutil.FromData(x, 1, t.dec.Config().Dim)
		tensorutil.AddInPlace(xt, audioEmbeds.SliceRows(nextRow, nextRow+1))
		nextRow++

		hidden = t.dec.Forward(xt, state, adaScales)
		currentToken = t.dec.SampleNext(hidden, temperature, t.rng)
		if currentToken == eosID {
			break
		}
		sb.Write(t.tok.DecodedBytes(currentToken, true))
	}

	wall := time.Since(start)
	tokensDecoded := steps
	tps := 0.0
	if wall > 0 {
		tps = float64(tokensDecoded) / wall.Seconds()
	}

	stats := Stats{
		WallTime:     wall,
		TokensPerSec: tps,
		MelFrames:    melOut.LastDim(),
		AudioSeconds: float64(len(samples)) / float64(mel.DefaultSampleRate),
	}
	return strings.TrimSpace(sb.String()), stats, nil
}

// padAudio left-pads by leftPadTokens*SamplesPerToken zeros and right-pads
// enough zeros to align to a SamplesPerToken boundary plus
// rightPadTokens*SamplesPerToken additional zeros.
func padAudio(samples []float32, leftPadTokens, rightPadTokens int) []float32 {
	leftZeros := leftPadTokens * SamplesPerToken
	withLeft := make([]float32, leftZeros+len(samples))
	copy(withLeft[leftZeros:], samples)

	align := len(withLeft) % SamplesPerToken
	var alignZeros int
	if align != 0 {
		alignZeros = SamplesPerToken - align
	}
	rightZeros := alignZeros + rightPadTokens*SamplesPerToken

	out := make([]float32, len(withLeft)+rightZeros)
	copy(out, withLeft)
	return out
}

