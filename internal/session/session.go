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

// Package session implements the stateful realtime transcription pipeline:
// callers feed arbitrarily-sized PCM chunks through AppendAudioSamples and
// receive decoded text fragments as soon as enough audio has accumulated to
// justify a decode step, then call FinishStream once at end of input.
//
// A *Session is not safe for concurrent use: only one goroutine may call
// AppendAudioSamples/FinishStream at a time, by contract rather than by
// internal locking (a lock would mask a caller bug instead of surfacing it).
package session

import (
	"math/rand"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/voxtral-stream/voxtral/internal/decoder"
	"github.com/voxtral-stream/voxtral/internal/encoder"
	"github.com/voxtral-stream/voxtral/internal/mel"
	"github.com/voxtral-stream/voxtral/internal/metrics"
	"github.com/voxtral-stream/voxtral/internal/tensorutil"
	"github.com/voxtral-stream/voxtral/internal/tokenizer"
	"github.com/voxtral-stream/voxtral/internal/transcribe"
	"github.com/voxtral-stream/voxtral/internal/voxerr"
)

const (
	defaultChunkDurationMS = 80
	defaultRightPadTokens  = 17
	defaultDelayMS         = 480
	tokenDurationMS        = 80

	// pendingCompactThreshold implements the amortized compaction rule
	// together with compactPendingPCM: the consumed prefix of the
	// pending-PCM queue is only dropped once it both exceeds this many
	// samples and covers at least half of the queue, so compaction runs a
	// bounded number of times regardless of chunk size.
	pendingCompactThreshold = 32 * 1024
)

// Config carries the per-session tunables; zero values select the spec's
// defaults.
type Config struct {
	Temperature          float32
	ChunkDurationMS      int // default 80, rounded to the nearest whole token
	TranscriptionDelayMS int // default from tokenizer audio metadata, else 480
	RightPadTokens       int // default 17
	DecoderWindowTokens  int // default max(256, decoder.Config().SlidingWindow)

	// ModelName labels metrics and log lines for this session; defaults to
	// "unknown" when unset.
	ModelName string
	// Logger receives session lifecycle and per-step logs; defaults to a
	// no-op logger when nil.
	Logger *zap.Logger
}

// decodeMode selects how aggressively the steady-state decode loop drains
// available audio embeddings.
type decodeMode int

const (
	// lookaheadGuarded only decodes positions whose audio has genuinely
	// arrived, so a live session never "predicts ahead" of real audio.
	lookaheadGuarded decodeMode = iota
	// decodeAllAvailable drains every embedding row regardless of the
	// lookahead guard; used once the stream is finished.
	decodeAllAvailable
)

// Session is the stateful realtime pipeline for one audio stream.
type Session struct {
	enc *encoder.Encoder
	dec *decoder.Decoder
	tok *tokenizer.Tokenizer
	rng *rand.Rand

	temperature float32

	chunkSamples        int
	leftPadTokens       int
	delayTokens         int
	rightPadTokens      int
	decoderWindowTokens int

	bosID, eosID, padID int32
	prefixLen           int
	promptEmbed         *tensorutil.Tensor
	adaScales           [][]float32

	frontend *mel.Frontend
	encState *encoder.State
	decState *decoder.State

	pendingPCM  []float32
	pendingHead int

	audioEmbeds [][]float32

	firstCycle            bool
	prefilled             bool
	currentToken          int32
	totalAudioSamplesFed  int64
	totalDecodedPositions int64

	pendingBytes []byte

	modelName string
	sessionID string
	logger    *zap.Logger
}

// New builds a realtime session against a resolved model's encoder/decoder
// and tokenizer.
func New(enc *encoder.Encoder, dec *decoder.Decoder, tok *tokenizer.Tokenizer, rng *rand.Rand, cfg Config) (*Session, error) {
	chunkMS := cfg.ChunkDurationMS
	if chunkMS == 0 {
		chunkMS = defaultChunkDurationMS
	}
	if chunkMS <= 0 {
		return nil, voxerr.ErrInvalidChunkDuration
	}
	chunkTokens := (chunkMS + tokenDurationMS/2) / tokenDurationMS
	if chunkTokens < 1 {
		chunkTokens = 1
	}

	bosID, _ := tok.SpecialTokenID("<s>")
	eosID, _ := tok.SpecialTokenID("</s>")
	padID, ok := tok.SpecialTokenID("[STREAMING_PAD]")
	if !ok {
		return nil, voxerr.ErrMissingSpecialToken
	}

	audio := tok.AudioMetadata()
	delayTokens := cfg.TranscriptionDelayMS / tokenDurationMS
	if delayTokens == 0 {
		if audio.TranscriptionDelayMS > 0 {
			delayTokens = audio.TranscriptionDelayMS / tokenDurationMS
		} else {
			delayTokens = defaultDelayMS / tokenDurationMS
		}
	}

	rightPadTokens := cfg.RightPadTokens
	if rightPadTokens == 0 {
		rightPadTokens = defaultRightPadTokens
	}

	decoderWindowTokens := cfg.DecoderWindowTokens
	if decoderWindowTokens == 0 {
		decoderWindowTokens = dec.Config().SlidingWindow
	}
	if decoderWindowTokens < 256 {
		decoderWindowTokens = 256
	}

	leftPadTokens := audio.StreamingNLeftPadTokens
	prefixLen := 1 + leftPadTokens + delayTokens

	promptIDs := make([]int32, prefixLen)
	promptIDs[0] = bosID
	for i := 1; i < prefixLen; i++ {
		promptIDs[i] = padID
	}

	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	modelName := cfg.ModelName
	if modelName == "" {
		modelName = "unknown"
	}

	sessionID := uuid.New().String()

	s := &Session{
		enc:                  enc,
		dec:                  dec,
		tok:                  tok,
		rng:                  rng,
		temperature:          cfg.Temperature,
		chunkSamples:         chunkTokens * transcribe.SamplesPerToken,
		leftPadTokens:        leftPadTokens,
		delayTokens:          delayTokens,
		rightPadTokens:       rightPadTokens,
		decoderWindowTokens:  decoderWindowTokens,
		bosID:                bosID,
		eosID:                eosID,
		padID:                padID,
		prefixLen:            prefixLen,
		promptEmbed:          dec.EmbedTokens(promptIDs),
		adaScales:            dec.PrecomputeAdaScales(float64(delayTokens)),
		frontend:             mel.NewFrontend(mel.Default(), mel.DefaultGlobalLogMelMax),
		modelName:            modelName,
		sessionID:            sessionID,
		logger:               logger.With(zap.String("session_id", sessionID)),
	}
	s.resetMutableState()
	s.logger.Info("session created",
		zap.String("model", modelName),
		zap.Int("prefix_len", prefixLen),
		zap.Int("chunk_samples", s.chunkSamples))
	return s, nil
}

// SessionID returns the UUID generated for this session, stable for its
// whole lifetime (including across FinishStream resets), for callers that
// want to correlate their own logs or metrics with ours.
func (s *Session) SessionID() string {
	return s.sessionID
}

// resetMutableState reinitializes every field that changes over the life of
// a stream, leaving the model references and prompt/ada precomputation
// (which never change for this session) untouched.
func (s *Session) resetMutableState() {
	s.encState = s.enc.NewState()
	s.decState = s.dec.NewState(s.decoderWindowTokens)
	s.frontend.Reset()
	s.pendingPCM = nil
	s.pendingHead = 0
	s.audioEmbeds = nil
	s.firstCycle = true
	s.prefilled = false
	s.currentToken = 0
	s.totalAudioSamplesFed = 0
	s.totalDecodedPositions = 0
	s.pendingBytes = nil
}

// Close releases the session's KV cache buffers. It does not need to
// report errors: nothing it releases is an external resource, only Go
// heap memory owned by this session.
func (s *Session) Close() {
	s.encState = nil
	s.decState = nil
	s.audioEmbeds = nil
	s.pendingPCM = nil
}

// AppendAudioSamples feeds newly captured PCM into the pipeline and returns
// any text fragment that became decodable as a result. An empty return
// value is not an error: it means samples were consumed but nothing new
// could be decoded yet.
func (s *Session) AppendAudioSamples(samples []float32) string {
	s.pendingPCM = append(s.pendingPCM, samples...)
	s.compactPendingPCM()

	for len(s.pendingPCM)-s.pendingHead >= s.chunkSamples {
		chunk := s.pendingPCM[s.pendingHead : s.pendingHead+s.chunkSamples]
		s.pendingHead += s.chunkSamples

		var melIn []float32
		if s.firstCycle {
			melIn = make([]float32, s.leftPadTokens*transcribe.SamplesPerToken+len(chunk))
			copy(melIn[s.leftPadTokens*transcribe.SamplesPerToken:], chunk)
			s.firstCycle = false
		} else {
			melIn = chunk
		}

		melOut := s.frontend.Step(melIn)
		encodeStart := time.Now()
		embedded := s.enc.EncodeStep(s.encState, melOut)
		metrics.RecordEncodeStepDuration(s.modelName, time.Since(encodeStart).Seconds())
		if embedded != nil {
			s.appendEmbedRows(embedded)
		}
		s.totalAudioSamplesFed += int64(len(chunk))
		metrics.RecordChunkConsumed(s.modelName)
		s.logger.Debug("chunk consumed",
			zap.Int("chunk_samples", len(chunk)),
			zap.Int64("total_samples_fed", s.totalAudioSamplesFed))
		s.compactPendingPCM()
	}

	return s.decodeAvailable(lookaheadGuarded)
}

// FinishStream pads the stream with the configured trailing silence,
// decodes everything that becomes available, emits the final held-back
// token, flushes any undecodable byte tail as lossy UTF-8, and resets the
// session so it can be reused for a new stream.
func (s *Session) FinishStream() string {
	pad := make([]float32, s.rightPadTokens*transcribe.SamplesPerToken)
	out := s.AppendAudioSamples(pad)
	out += s.decodeAvailable(decodeAllAvailable)

	if s.prefilled && s.currentToken != s.eosID {
		s.pendingBytes = append(s.pendingBytes, s.tok.DecodedBytes(s.currentToken, true)...)
	}
	out += tokenizer.FlushLossy(s.pendingBytes)

	s.resetMutableState()
	return out
}

func (s *Session) appendEmbedRows(t *tensorutil.Tensor) {
	for i := 0; i < t.Rows(); i++ {
		row := t.Row(i)
		cp := make([]float32, len(row))
		copy(cp, row)
		s.audioEmbeds = append(s.audioEmbeds, cp)
	}
}

func (s *Session) compactPendingPCM() {
	if s.pendingHead > pendingCompactThreshold && s.pendingHead*2 >= len(s.pendingPCM) {
		s.pendingPCM = append([]float32{}, s.pendingPCM[s.pendingHead:]...)
		s.pendingHead = 0
	}
}

// decodeAvailable runs prefill (once) and the steady-state decode loop,
// returning the decoded text fragment produced.
func (s *Session) decodeAvailable(mode decodeMode) string {
	var out []byte

	if !s.prefilled {
		if len(s.audioEmbeds) < s.prefixLen {
			return string(out)
		}
		combined := s.promptEmbed.Clone()
		for i := 0; i < s.prefixLen; i++ {
			row := combined.Row(i)
			for j, v := range s.audioEmbeds[i] {
				row[j] += v
			}
		}
		s.audioEmbeds = s.audioEmbeds[s.prefixLen:]

		decodeStart := time.Now()
		hidden := s.dec.Forward(combined, s.decState, s.adaScales)
		s.currentToken = s.dec.SampleNext(hidden, s.temperature, s.rng)
		metrics.RecordDecodeStepDuration(s.modelName, time.Since(decodeStart).Seconds())
		metrics.RecordTokenDecoded(s.modelName)
		s.prefilled = true
		s.totalDecodedPositions = int64(s.prefixLen)
		s.logger.Info("prefill complete", zap.Int64("decoded_positions", s.totalDecodedPositions))

		if s.currentToken == s.eosID {
			out = append(out, '\n')
			metrics.RecordEOSReset(s.modelName)
			s.logger.Info("eos reset")
			s.resetMutableState()
			return string(out)
		}
	}

	for len(s.audioEmbeds) > 0 {
		if mode == lookaheadGuarded {
			lookahead := int64(s.leftPadTokens) + s.totalAudioSamplesFed/int64(transcribe.SamplesPerToken)
			if s.totalDecodedPositions >= lookahead {
				break
			}
		}

		prevToken := s.currentToken
		x := s.dec.EmbedToken(prevToken)
		xt := tensorutil.FromData(x, 1, s.dec.Config().Dim)
		for j, v := range s.audioEmbeds[0] {
			xt.Data[j] += v
		}
		s.audioEmbeds = s.audioEmbeds[1:]

		decodeStart := time.Now()
		hidden := s.dec.Forward(xt, s.decState, s.adaScales)
		s.currentToken = s.dec.SampleNext(hidden, s.temperature, s.rng)
		metrics.RecordDecodeStepDuration(s.modelName, time.Since(decodeStart).Seconds())
		metrics.RecordTokenDecoded(s.modelName)
		s.totalDecodedPositions++

		s.pendingBytes = append(s.pendingBytes, s.tok.DecodedBytes(prevToken, true)...)
		emit, pending := tokenizer.ValidPrefix(s.pendingBytes)
		out = append(out, emit...)
		s.pendingBytes = pending

		if s.currentToken == s.eosID {
			out = append(out, '\n')
			metrics.RecordEOSReset(s.modelName)
			s.logger.Info("eos reset")
			s.resetMutableState()
			return string(out)
		}
	}

	return string(out)
}
