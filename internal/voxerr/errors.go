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

// Package voxerr holds the sentinel errors shared across the transcription
// pipeline. Callers compare against these with errors.Is; they are returned
// either directly or wrapped with fmt.Errorf("...: %w", ...) for context.
package voxerr

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidChunkDuration is returned when chunk_duration_ms <= 0.
	ErrInvalidChunkDuration = errors.New("voxtral: chunk duration must be positive")

	// ErrMissingSpecialToken is returned when a model's tokenizer has no
	// "[STREAMING_PAD]" entry.
	ErrMissingSpecialToken = errors.New("voxtral: tokenizer is missing a required special token")

	// ErrAudioTooShortForPrompt is returned when the encoded audio yields
	// fewer embedding rows than the prompt prefix needs.
	ErrAudioTooShortForPrompt = errors.New("voxtral: audio too short for prompt prefix")

	// ErrUnsupportedAudioFormat is returned for a WAV container this
	// package doesn't know how to decode.
	ErrUnsupportedAudioFormat = errors.New("voxtral: unsupported audio format")

	// ErrFailedToReadAudio is returned when an audio file can be opened
	// but not parsed.
	ErrFailedToReadAudio = errors.New("voxtral: failed to read audio")

	// ErrMissingFile is returned when a required model artifact file is
	// absent from a resolved model directory.
	ErrMissingFile = errors.New("voxtral: missing required file")

	// ErrUnsupportedModelFormat is returned when a model directory is
	// neither original nor converted format.
	ErrUnsupportedModelFormat = errors.New("voxtral: unsupported model format")

	// ErrInvalidModelSpec is returned when a model identifier is neither
	// a local directory nor a resolvable HuggingFace repo id.
	ErrInvalidModelSpec = errors.New("voxtral: invalid model specification")
)

// AudioTooShortForPrompt carries the required/available counts alongside
// ErrAudioTooShortForPrompt so callers can report exactly how short the
// clip was without parsing the error string.
type AudioTooShortForPrompt struct {
	Required, Available int
}

func (e *AudioTooShortForPrompt) Error() string {
	return fmt.Sprintf("%s: need %d audio-embedding rows, have %d", ErrAudioTooShortForPrompt, e.Required, e.Available)
}

func (e *AudioTooShortForPrompt) Unwrap() error { return ErrAudioTooShortForPrompt }
