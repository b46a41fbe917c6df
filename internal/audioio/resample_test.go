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

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestResample_NoOpWhenRatesMatch(t *testing.T) {
	in := []float32{1, 2, 3}
	out := Resample(in, 16000, 16000)
	require.Equal(t, in, out)
}

func TestResample_DownsamplesByHalving(t *testing.T) {
	in := []float32{0, 1, 2, 3, 4, 5, 6, 7}
	out := Resample(in, 16000, 8000)
	require.Len(t, out, 4)
}

func TestResample_UpsamplesByDoubling(t *testing.T) {
	in := []float32{0, 10}
	out := Resample(in, 8000, 16000)
	require.Len(t, out, 4)
	require.InDelta(t, 0, out[0], 1e-6)
}

func TestResample_InterpolatesLinearlyBetweenSamples(t *testing.T) {
	in := []float32{0, 10, 20}
	// fromRate=2, toRate=4 -> ratio=0.5, every other output sample lands
	// exactly on an input sample, the rest interpolate halfway.
	out := Resample(in, 2, 4)
	require.InDelta(t, 0, out[0], 1e-6)
	require.InDelta(t, 5, out[1], 1e-6)
	require.InDelta(t, 10, out[2], 1e-6)
}
