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

// Package audioio implements the boundary between the transcription core
// and raw audio: WAV container parsing, linear-interpolation resampling to
// 16 kHz mono, and a microphone-source adapter for the live CLI.
package audioio

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"os"

	"github.com/voxtral-stream/voxtral/internal/mel"
	"github.com/voxtral-stream/voxtral/internal/voxerr"
)

// LoadWAV reads path, parses its RIFF/WAVE container, converts to mono
// float32 samples in [-1, 1], and resamples to mel.DefaultSampleRate if the
// file's sample rate differs.
func LoadWAV(path string) ([]float32, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", voxerr.ErrFailedToReadAudio, path, err)
	}
	samples, sampleRate, err := decodeWAV(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", voxerr.ErrFailedToReadAudio, path, err)
	}
	if sampleRate != mel.DefaultSampleRate {
		samples = Resample(samples, sampleRate, mel.DefaultSampleRate)
	}
	return samples, nil
}

// decodeWAV parses a RIFF/WAVE container, skipping unknown chunks, and
// returns mono float32 samples plus the file's native sample rate.
func decodeWAV(data []byte) ([]float32, int, error) {
	r := bytes.NewReader(data)

	var riffHeader, waveHeader [4]byte
	if _, err := io.ReadFull(r, riffHeader[:]); err != nil {
		return nil, 0, fmt.Errorf("reading RIFF header: %w", err)
	}
	if string(riffHeader[:]) != "RIFF" {
		return nil, 0, fmt.Errorf("%w: not a RIFF file", voxerr.ErrUnsupportedAudioFormat)
	}
	var fileSize uint32
	if err := binary.Read(r, binary.LittleEndian, &fileSize); err != nil {
		return nil, 0, fmt.Errorf("reading RIFF size: %w", err)
	}
	if _, err := io.ReadFull(r, waveHeader[:]); err != nil {
		return nil, 0, fmt.Errorf("reading WAVE header: %w", err)
	}
	if string(waveHeader[:]) != "WAVE" {
		return nil, 0, fmt.Errorf("%w: not a WAVE file", voxerr.ErrUnsupportedAudioFormat)
	}

	var audioFormat, numChannels, bitsPerSample uint16
	var sampleRate uint32
	var audioData []byte

	for {
		var chunkID [4]byte
		if _, err := io.ReadFull(r, chunkID[:]); err != nil {
			if err == io.EOF {
				break
			}
			return nil, 0, fmt.Errorf("reading chunk id: %w", err)
		}
		var chunkSize uint32
		if err := binary.Read(r, binary.LittleEndian, &chunkSize); err != nil {
			return nil, 0, fmt.Errorf("reading chunk size: %w", err)
		}

		switch string(chunkID[:]) {
		case "fmt ":
			var byteRate uint32
			var blockAlign uint16
			if err := binary.Read(r, binary.LittleEndian, &audioFormat); err != nil {
				return nil, 0, fmt.Errorf("reading audio format: %w", err)
			}
			if err := binary.Read(r, binary.LittleEndian, &numChannels); err != nil {
				return nil, 0, fmt.Errorf("reading channel count: %w", err)
			}
			if err := binary.Read(r, binary.LittleEndian, &sampleRate); err != nil {
				return nil, 0, fmt.Errorf("reading sample rate: %w", err)
			}
			if err := binary.Read(r, binary.LittleEndian, &byteRate); err != nil {
				return nil, 0, fmt.Errorf("reading byte rate: %w", err)
			}
			if err := binary.Read(r, binary.LittleEndian, &blockAlign); err != nil {
				return nil, 0, fmt.Errorf("reading block align: %w", err)
			}
			if err := binary.Read(r, binary.LittleEndian, &bitsPerSample); err != nil {
				return nil, 0, fmt.Errorf("reading bits per sample: %w", err)
			}
			if remaining := int64(chunkSize) - 16; remaining > 0 {
				if _, err := r.Seek(remaining, io.SeekCurrent); err != nil {
					return nil, 0, fmt.Errorf("skipping fmt extension bytes: %w", err)
				}
			}
		case "data":
			audioData = make([]byte, chunkSize)
			if _, err := io.ReadFull(r, audioData); err != nil {
				return nil, 0, fmt.Errorf("reading audio data: %w", err)
			}
		default:
			if _, err := r.Seek(int64(chunkSize), io.SeekCurrent); err != nil {
				return nil, 0, fmt.Errorf("skipping chunk %q: %w", chunkID, err)
			}
		}
	}

	if audioData == nil {
		return nil, 0, fmt.Errorf("%w: no data chunk found", voxerr.ErrUnsupportedAudioFormat)
	}
	if audioFormat != 1 {
		return nil, 0, fmt.Errorf("%w: audio format %d (only PCM supported)", voxerr.ErrUnsupportedAudioFormat, audioFormat)
	}

	samples, err := bytesToSamples(audioData, int(bitsPerSample), int(numChannels))
	if err != nil {
		return nil, 0, err
	}
	return samples, int(sampleRate), nil
}

// bytesToSamples converts raw PCM bytes to mono float32 samples in [-1, 1],
// averaging multi-channel frames.
func bytesToSamples(data []byte, bitsPerSample, numChannels int) ([]float32, error) {
	if bitsPerSample != 8 && bitsPerSample != 16 && bitsPerSample != 24 && bitsPerSample != 32 {
		return nil, fmt.Errorf("%w: %d-bit PCM", voxerr.ErrUnsupportedAudioFormat, bitsPerSample)
	}
	if numChannels < 1 {
		return nil, fmt.Errorf("%w: %d audio channels", voxerr.ErrUnsupportedAudioFormat, numChannels)
	}

	bytesPerSample := bitsPerSample / 8
	frameSize := bytesPerSample * numChannels
	numFrames := len(data) / frameSize
	samples := make([]float32, numFrames)

	for i := 0; i < numFrames; i++ {
		frame := data[i*frameSize : (i+1)*frameSize]
		var sum float64
		for ch := 0; ch < numChannels; ch++ {
			b := frame[ch*bytesPerSample : (ch+1)*bytesPerSample]
			switch bitsPerSample {
			case 8:
				sum += (float64(b[0]) - 128) / 128.0
			case 16:
				s := int16(binary.LittleEndian.Uint16(b))
				sum += float64(s) / 32768.0
			case 24:
				s := int32(b[0]) | int32(b[1])<<8 | int32(b[2])<<16
				if s&0x800000 != 0 {
					s |= -0x1000000
				}
				sum += float64(s) / 8388608.0
			case 32:
				s := int32(binary.LittleEndian.Uint32(b))
				sum += float64(s) / 2147483648.0
			}
		}
		samples[i] = float32(sum / float64(numChannels))
	}
	return samples, nil
}
