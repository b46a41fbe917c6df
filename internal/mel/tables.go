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

// Package mel computes log-mel spectrogram features, offline over a whole
// utterance or incrementally over small chunks with carried tail state, the
// way the teacher's AudioProcessor precomputes a Hann window and mel filter
// bank once and reuses them for every call.
package mel

import (
	"math"
	"sync"

	"github.com/voxtral-stream/voxtral/internal/tensorutil"
)

// Whisper-compatible defaults: 16 kHz audio, 400-sample FFT, 160-sample hop,
// 128 mel bins.
const (
	DefaultSampleRate      = 16000
	DefaultNFFT            = 400
	DefaultHopLength       = 160
	DefaultNMels           = 128
	DefaultGlobalLogMelMax = 1.5
)

// Tables holds the static, read-only precomputed matrices a mel frontend
// needs: the analysis window, the real/imaginary DFT matrices, and the mel
// filter bank. Building them is only a function of (nFFT, hopLength, nMels,
// sampleRate), so a process normally needs exactly one instance.
type Tables struct {
	NFFT       int
	HopLength  int
	NMels      int
	SampleRate int
	NFreqs     int // nFFT/2 + 1

	Window  []float32          // length NFFT
	DFTReal *tensorutil.Tensor // (NFreqs, NFFT)
	DFTImag *tensorutil.Tensor // (NFreqs, NFFT)
	Filters *tensorutil.Tensor // (NMels, NFreqs)
}

// Build constructs the static tables for the given parameters.
func Build(nFFT, hopLength, nMels, sampleRate int) *Tables {
	t := &Tables{
		NFFT:       nFFT,
		HopLength:  hopLength,
		NMels:      nMels,
		SampleRate: sampleRate,
		NFreqs:     nFFT/2 + 1,
	}
	t.Window = hannWindow(nFFT)
	t.DFTReal, t.DFTImag = dftMatrices(nFFT, t.NFreqs)
	t.Filters = melFilterBank(nMels, t.NFreqs, nFFT, sampleRate)
	return t
}

var (
	defaultOnce   sync.Once
	defaultTables *Tables
)

// Default returns the process-wide Whisper-compatible table set, built
// lazily on first use and shared by every frontend that doesn't need
// non-default audio parameters.
func Default() *Tables {
	defaultOnce.Do(func() {
		defaultTables = Build(DefaultNFFT, DefaultHopLength, DefaultNMels, DefaultSampleRate)
	})
	return defaultTables
}

// hannWindow returns Hann(n+1)[:-1], the periodic (not symmetric) Hann
// window STFT implementations conventionally use.
func hannWindow(n int) []float32 {
	w := make([]float32, n)
	for i := 0; i < n; i++ {
		w[i] = float32(0.5 * (1 - math.Cos(2*math.Pi*float64(i)/float64(n))))
	}
	return w
}

// dftMatrices builds the real-DFT analysis matrices: DFTReal[k][n] =
// cos(2*pi*k*n/N), DFTImag[k][n] = -sin(2*pi*k*n/N), so that for a windowed
// frame x, real = DFTReal @ x and imag = DFTImag @ x reproduce the first
// NFreqs bins of a full complex DFT.
func dftMatrices(nFFT, nFreqs int) (*tensorutil.Tensor, *tensorutil.Tensor) {
	re := tensorutil.New(nFreqs, nFFT)
	im := tensorutil.New(nFreqs, nFFT)
	for k := 0; k < nFreqs; k++ {
		reRow := re.Row(k)
		imRow := im.Row(k)
		for n := 0; n < nFFT; n++ {
			angle := 2 * math.Pi * float64(k) * float64(n) / float64(nFFT)
			reRow[n] = float32(math.Cos(angle))
			imRow[n] = float32(-math.Sin(angle))
		}
	}
	return re, im
}

// hzToMel and melToHz implement the Slaney-style mel scale: linear below
// 1 kHz, logarithmic above, with a log-region slope of 27/ln(6.4) mel units
// per natural-log-Hz.
const (
	melBreakFreq = 1000.0
	melBreakMel  = 15.0
	logStep      = 27.0 / 1.8562979903656263 // ln(6.4)
)

func hzToMel(f float64) float64 {
	if f < melBreakFreq {
		return f / (melBreakFreq / melBreakMel)
	}
	return melBreakMel + math.Log(f/melBreakFreq)*logStep
}

func melToHz(m float64) float64 {
	if m < melBreakMel {
		return m * (melBreakFreq / melBreakMel)
	}
	return melBreakFreq * math.Exp((m-melBreakMel)/logStep)
}

// melFilterBank builds triangular mel filters over [0, sampleRate/2] Hz,
// each normalized by the Slaney "area" factor 2/(right-left) so that equal
// energy bands contribute equal filter output regardless of bandwidth.
func melFilterBank(nMels, nFreqs, nFFT, sampleRate int) *tensorutil.Tensor {
	lowMel := hzToMel(0)
	highMel := hzToMel(float64(sampleRate) / 2.0)

	melPoints := make([]float64, nMels+2)
	for i := range melPoints {
		melPoints[i] = lowMel + float64(i)*(highMel-lowMel)/float64(nMels+1)
	}
	freqPoints := make([]float64, nMels+2)
	for i, m := range melPoints {
		freqPoints[i] = melToHz(m)
	}

	binFreqs := make([]float64, nFreqs)
	for i := range binFreqs {
		binFreqs[i] = float64(i) * float64(sampleRate) / float64(nFFT)
	}

	filters := tensorutil.New(nMels, nFreqs)
	for m := 0; m < nMels; m++ {
		left, center, right := freqPoints[m], freqPoints[m+1], freqPoints[m+2]
		row := filters.Row(m)
		for i, f := range binFreqs {
			switch {
			case f >= left && f <= center && center != left:
				row[i] = float32((f - left) / (center - left))
			case f > center && f <= right && right != center:
				row[i] = float32((right - f) / (right - center))
			}
		}
		enorm := float32(2.0 / (right - left))
		for i := range row {
			row[i] *= enorm
		}
	}
	return filters
}
