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

package adapter

import (
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/voxtral-stream/voxtral/internal/tensorutil"
)

func TestGroupRows_ReshapesWithoutMovingData(t *testing.T) {
	x := tensorutil.FromData([]float32{1, 2, 3, 4, 5, 6, 7, 8}, 4, 2)
	g := GroupRows(x, 2)
	require.Equal(t, []int{2, 4}, g.Dims)
	require.Equal(t, []float32{1, 2, 3, 4, 5, 6, 7, 8}, g.Data)
}

func TestGroupRows_PanicsOnNonMultipleRows(t *testing.T) {
	x := tensorutil.New(3, 2)
	require.Panics(t, func() { GroupRows(x, 2) })
}

func TestProject_AppliesTwoLinearLayersWithGELU(t *testing.T) {
	// k=2, encDim=2 -> grouped dim 4; decoder dim 2.
	wIn := tensorutil.FromData([]float32{
		1, 0, 0, 0,
		0, 1, 0, 0,
	}, 2, 4)
	wOut := tensorutil.FromData([]float32{
		1, 0,
		0, 1,
	}, 2, 2)
	a := New(2, wIn, wOut)

	grouped := tensorutil.FromData([]float32{1, -1, 2, -2}, 1, 4)
	out := a.Project(grouped)

	require.Equal(t, []int{1, 2}, out.Dims)
	require.InDelta(t, 0.8412, out.Data[0], 1e-2) // GELU(1)
	require.InDelta(t, -0.1588, out.Data[1], 1e-2) // GELU(-1)
}
