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

package mel

import (
	"math"

	"github.com/voxtral-stream/voxtral/internal/tensorutil"
)

// LogMelOffline computes log-mel features for a complete utterance: reflect
// pad by nFFT/2 on each side, then drop the final frame so the result has
// exactly floor(len(samples)/hopLength) frames (the usual "center=True,
// one frame fewer than naive" STFT framing).
//
// Returns a (nMels, frames) tensor; frames may be 0 for very short input.
func LogMelOffline(samples []float32, t *Tables, globalLogMelMax float32) *tensorutil.Tensor {
	pad := t.NFFT / 2
	padded := reflectPad(samples, pad)

	rawFrames := 0
	if len(padded) >= t.NFFT {
		rawFrames = 1 + (len(padded)-t.NFFT)/t.HopLength
	}
	frames := rawFrames - 1
	if frames < 0 {
		frames = 0
	}

	return crossToGoMLXAndBack(computeFrames(padded, frames, t, globalLogMelMax))
}

// Frontend is a stateful streaming mel frontend: each Step call consumes one
// PCM chunk and carries the minimal tail state needed so that successive
// Step calls reproduce LogMelOffline's interior frames.
type Frontend struct {
	tables          *Tables
	globalLogMelMax float32

	tail    []float32
	started bool
}

// NewFrontend creates a streaming frontend over the given static tables.
func NewFrontend(t *Tables, globalLogMelMax float32) *Frontend {
	return &Frontend{tables: t, globalLogMelMax: globalLogMelMax}
}

// Reset clears carried tail state, as when a session restarts a stream
// after end-of-stream finalization.
func (f *Frontend) Reset() {
	f.tail = nil
	f.started = false
}

// Step consumes one chunk of PCM samples and returns the mel columns it
// produced, which may be (nMels, 0) if the chunk plus carried tail is still
// shorter than one FFT window.
func (f *Frontend) Step(chunk []float32) *tensorutil.Tensor {
	var buf []float32
	if !f.started {
		buf = make([]float32, f.tables.NFFT/2, f.tables.NFFT/2+len(chunk))
		buf = append(buf, chunk...)
		f.started = true
	} else {
		buf = make([]float32, 0, len(f.tail)+len(chunk))
		buf = append(buf, f.tail...)
		buf = append(buf, chunk...)
	}

	frames := 0
	if len(buf) >= f.tables.NFFT {
		frames = 1 + (len(buf)-f.tables.NFFT)/f.tables.HopLength
	}

	out := computeFrames(buf, frames, f.tables, f.globalLogMelMax)

	// Carry every sample from the start of the first frame not emitted yet,
	// so the next Step's frames stay on the same hop grid as LogMelOffline.
	f.tail = append([]float32{}, buf[frames*f.tables.HopLength:]...)

	return crossToGoMLXAndBack(out)
}

// crossToGoMLXAndBack hands mel output across the boundary to gomlx's
// canonical tensor value type and back, the same round trip the encoder and
// decoder weight loaders use, so every component boundary speaks one tensor
// convention regardless of which side allocated the buffer.
func crossToGoMLXAndBack(t *tensorutil.Tensor) *tensorutil.Tensor {
	if t.Numel() == 0 {
		return t
	}
	return tensorutil.FromGoMLX(tensorutil.ToGoMLX(t), t.Dims...)
}

// computeFrames windows, DFTs, mel-projects and log-compresses `frames`
// overlapping windows out of buf, returning a (nMels, frames) tensor.
func computeFrames(buf []float32, frames int, t *Tables, globalLogMelMax float32) *tensorutil.Tensor {
	if frames <= 0 {
		return tensorutil.New(t.NMels, 0)
	}

	windowed := tensorutil.New(frames, t.NFFT)
	for fr := 0; fr < frames; fr++ {
		start := fr * t.HopLength
		row := windowed.Row(fr)
		for i := 0; i < t.NFFT; i++ {
			row[i] = buf[start+i] * t.Window[i]
		}
	}

	real := tensorutil.MatMul(windowed, t.DFTReal)
	imag := tensorutil.MatMul(windowed, t.DFTImag)

	power := tensorutil.New(frames, t.NFreqs)
	for i := range power.Data {
		power.Data[i] = real.Data[i]*real.Data[i] + imag.Data[i]*imag.Data[i]
	}

	melProj := tensorutil.MatMul(power, t.Filters)

	floor := globalLogMelMax - 8.0
	for i, v := range melProj.Data {
		if v < 1e-10 {
			v = 1e-10
		}
		logged := float32(math.Log10(float64(v)))
		if logged < floor {
			logged = floor
		}
		melProj.Data[i] = (logged + 4) / 4
	}

	// melProj is (frames, nMels); the encoder expects (nMels, frames).
	out := tensorutil.New(t.NMels, frames)
	for fr := 0; fr < frames; fr++ {
		row := melProj.Row(fr)
		for m := 0; m < t.NMels; m++ {
			out.Data[m*frames+fr] = row[m]
		}
	}
	return out
}

// reflectPad pads samples on both sides by reflecting about the endpoints,
// the behavior librosa/PyTorch call "reflect" padding for a centered STFT.
func reflectPad(samples []float32, pad int) []float32 {
	n := len(samples)
	out := make([]float32, n+2*pad)
	for i := 0; i < pad; i++ {
		srcIdx := pad - i
		if srcIdx >= n {
			srcIdx = n - 1
		}
		if n == 0 {
			out[i] = 0
		} else {
			out[i] = samples[srcIdx]
		}
	}
	copy(out[pad:pad+n], samples)
	for i := 0; i < pad; i++ {
		srcIdx := n - 2 - i
		if srcIdx < 0 {
			srcIdx = 0
		}
		if n == 0 {
			out[pad+n+i] = 0
		} else {
			out[pad+n+i] = samples[srcIdx]
		}
	}
	return out
}
