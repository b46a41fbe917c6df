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

package audioio

// Resample linearly interpolates samples from fromRate to toRate. It is a
// simple resampler, not a band-limited one: good enough for speech-model
// input, not for anything requiring alias-free downsampling.
func Resample(samples []float32, fromRate, toRate int) []float32 {
	if fromRate == toRate || len(samples) == 0 {
		return samples
	}

	ratio := float64(fromRate) / float64(toRate)
	newLen := int(float64(len(samples)) / ratio)
	out := make([]float32, newLen)

	for i := 0; i < newLen; i++ {
		srcIdx := float64(i) * ratio
		srcIdxInt := int(srcIdx)
		frac := float32(srcIdx - float64(srcIdxInt))

		switch {
		case srcIdxInt+1 < len(samples):
			out[i] = samples[srcIdxInt]*(1-frac) + samples[srcIdxInt+1]*frac
		case srcIdxInt < len(samples):
			out[i] = samples[srcIdxInt]
		}
	}
	return out
}
