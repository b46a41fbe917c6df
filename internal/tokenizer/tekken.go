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

// Package tokenizer implements the byte-oriented decode surface the core
// pipeline needs from a Tekken-format vocabulary: special-token lookup and
// per-token byte decoding. It never encodes text to tokens — the core only
// ever decodes ids the decoder sampled.
package tokenizer

import (
	"encoding/base64"
	"fmt"
	"os"

	"github.com/bytedance/sonic/decoder"
)

// AudioMeta mirrors a tekken.json's "audio" block.
type AudioMeta struct {
	SamplingRate            int     `json:"sampling_rate"`
	FrameRate               float64 `json:"frame_rate"`
	TranscriptionDelayMS    int     `json:"transcription_delay_ms"`
	StreamingNLeftPadTokens int     `json:"streaming_n_left_pad_tokens"`
}

type rawVocabEntry struct {
	Rank       int32  `json:"rank"`
	TokenBytes string `json:"token_bytes,omitempty"`
	TokenStr   string `json:"token_str,omitempty"`
}

type rawSpecialToken struct {
	Rank      int32  `json:"rank"`
	TokenStr  string `json:"token_str"`
	IsControl bool   `json:"is_control"`
}

type rawConfig struct {
	NumVocabTokens          int  `json:"num_vocab_tokens"`
	DefaultVocabSize        *int `json:"default_vocab_size,omitempty"`
	DefaultNumSpecialTokens *int `json:"default_num_special_tokens,omitempty"`
}

type rawFile struct {
	Vocab         []rawVocabEntry   `json:"vocab"`
	SpecialTokens []rawSpecialToken `json:"special_tokens"`
	Audio         AudioMeta         `json:"audio"`
	Config        rawConfig         `json:"config"`
}

type tokenEntry struct {
	bytes     []byte
	isSpecial bool
	isControl bool
}

// Tokenizer is the decode-only view of a Tekken vocabulary.
type Tokenizer struct {
	byID          map[int32]tokenEntry
	specialByName map[string]int32
	audio         AudioMeta
}

// Load parses a tekken.json file from path.
func Load(path string) (*Tokenizer, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("tokenizer: opening %s: %w", path, err)
	}
	defer f.Close()

	var raw rawFile
	if err := decoder.NewStreamDecoder(f).Decode(&raw); err != nil {
		return nil, fmt.Errorf("tokenizer: decoding %s: %w", path, err)
	}
	return fromRaw(raw)
}

func fromRaw(raw rawFile) (*Tokenizer, error) {
	numSpecial := int32(len(raw.SpecialTokens))

	byID := make(map[int32]tokenEntry, len(raw.Vocab)+len(raw.SpecialTokens))
	specialByName := make(map[string]int32, len(raw.SpecialTokens))

	for _, st := range raw.SpecialTokens {
		entry := tokenEntry{isSpecial: true, isControl: st.IsControl}
		if !st.IsControl {
			entry.bytes = []byte(st.TokenStr)
		}
		byID[st.Rank] = entry
		specialByName[st.TokenStr] = st.Rank
	}

	for _, v := range raw.Vocab {
		id := v.Rank + numSpecial
		var b []byte
		if v.TokenBytes != "" {
			decoded, err := base64.StdEncoding.DecodeString(v.TokenBytes)
			if err != nil {
				return nil, fmt.Errorf("tokenizer: decoding token_bytes for rank %d: %w", v.Rank, err)
			}
			b = decoded
		} else {
			b = []byte(v.TokenStr)
		}
		byID[id] = tokenEntry{bytes: b}
	}

	return &Tokenizer{byID: byID, specialByName: specialByName, audio: raw.Audio}, nil
}

// SpecialTokenID looks up a named special token (e.g. "<s>", "</s>",
// "[STREAMING_PAD]"), returning ok=false if the vocabulary has none by
// that name.
func (t *Tokenizer) SpecialTokenID(name string) (int32, bool) {
	id, ok := t.specialByName[name]
	return id, ok
}

// DecodedBytes returns the raw bytes a token id decodes to. Control special
// tokens always decode to empty bytes; when ignoreSpecialTokens is true, all
// special tokens (control or not) decode to empty bytes.
func (t *Tokenizer) DecodedBytes(id int32, ignoreSpecialTokens bool) []byte {
	entry, ok := t.byID[id]
	if !ok {
		return nil
	}
	if entry.isSpecial && (entry.isControl || ignoreSpecialTokens) {
		return nil
	}
	return entry.bytes
}

// AudioMetadata returns the tokenizer's embedded audio configuration block.
func (t *Tokenizer) AudioMetadata() AudioMeta {
	return t.audio
}
