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

package tensorutil

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNew_ZeroFillsRequestedShape(t *testing.T) {
	x := New(2, 3)
	require.Equal(t, []int{2, 3}, x.Dims)
	require.Equal(t, 6, x.Numel())
	for _, v := range x.Data {
		require.Zero(t, v)
	}
}

func TestFromData_PanicsOnShapeMismatch(t *testing.T) {
	require.Panics(t, func() { FromData([]float32{1, 2, 3}, 2, 2) })
}

func TestRowsAndLastDim(t *testing.T) {
	x := New(2, 3, 4)
	require.Equal(t, 6, x.Rows())
	require.Equal(t, 4, x.LastDim())
}

func TestRow_ViewsSharedBackingArray(t *testing.T) {
	x := FromData([]float32{1, 2, 3, 4}, 2, 2)
	row := x.Row(1)
	row[0] = 99
	require.Equal(t, float32(99), x.Data[2])
}

func TestSliceRows_SharesBackingArray(t *testing.T) {
	x := FromData([]float32{1, 2, 3, 4, 5, 6}, 3, 2)
	s := x.SliceRows(1, 3)
	require.Equal(t, []int{2, 2}, s.Dims)
	require.Equal(t, []float32{3, 4, 5, 6}, s.Data)
	s.Data[0] = 42
	require.Equal(t, float32(42), x.Data[2])
}

func TestClone_IsIndependentOfSource(t *testing.T) {
	x := FromData([]float32{1, 2}, 1, 2)
	c := x.Clone()
	c.Data[0] = 99
	require.Equal(t, float32(1), x.Data[0])
}

func TestReshape_PanicsOnElementCountMismatch(t *testing.T) {
	x := New(2, 3)
	require.Panics(t, func() { x.Reshape(4, 4) })
	require.NotPanics(t, func() { x.Reshape(3, 2) })
}

func TestConcatRows_StacksAlongLeadingAxis(t *testing.T) {
	a := FromData([]float32{1, 2}, 1, 2)
	b := FromData([]float32{3, 4, 5, 6}, 2, 2)
	out := ConcatRows(a, b)
	require.Equal(t, []int{3, 2}, out.Dims)
	require.Equal(t, []float32{1, 2, 3, 4, 5, 6}, out.Data)
}

func TestMatMul_ComputesATimesBTranspose(t *testing.T) {
	// a = [[1,2],[3,4]], bT = [[1,0],[0,1]] (identity) -> a @ I = a.
	a := FromData([]float32{1, 2, 3, 4}, 2, 2)
	identity := FromData([]float32{1, 0, 0, 1}, 2, 2)
	out := MatMul(a, identity)
	require.Equal(t, []float32{1, 2, 3, 4}, out.Data)
}

func TestMatMul_PanicsOnInnerDimMismatch(t *testing.T) {
	a := New(2, 3)
	b := New(2, 4)
	require.Panics(t, func() { MatMul(a, b) })
}

func TestAddBias_AddsToEveryRow(t *testing.T) {
	x := FromData([]float32{1, 2, 3, 4}, 2, 2)
	AddBias(x, []float32{10, 100})
	require.Equal(t, []float32{11, 102, 13, 104}, x.Data)
}

func TestAddInPlace_ElementwiseSum(t *testing.T) {
	a := FromData([]float32{1, 2, 3}, 1, 3)
	b := FromData([]float32{10, 20, 30}, 1, 3)
	AddInPlace(a, b)
	require.Equal(t, []float32{11, 22, 33}, a.Data)
}

func TestLinear_AppliesWeightAndBias(t *testing.T) {
	x := FromData([]float32{1, 1}, 1, 2)
	weightT := FromData([]float32{1, 0, 0, 1}, 2, 2)
	out := Linear(x, weightT, []float32{5, 6})
	require.Equal(t, []float32{6, 7}, out.Data)
}

func TestGELU_IsApproximatelyZeroAtZero(t *testing.T) {
	x := FromData([]float32{0}, 1, 1)
	GELU(x)
	require.InDelta(t, 0, x.Data[0], 1e-6)
}

func TestSiLU_IsApproximatelyZeroAtZero(t *testing.T) {
	x := FromData([]float32{0}, 1, 1)
	SiLU(x)
	require.InDelta(t, 0, x.Data[0], 1e-6)
}

func TestRMSNorm_NormalizesRowToUnitScaleUnderIdentityWeight(t *testing.T) {
	x := FromData([]float32{3, 4}, 1, 2) // rms = sqrt((9+16)/2) = sqrt(12.5)
	out := RMSNorm(x, []float32{1, 1}, 0)
	require.InDelta(t, 3/out.Data[0], 4/out.Data[1], 1e-4)
}

func TestRMSNormScaled_MultipliesByAdaptiveScale(t *testing.T) {
	x := FromData([]float32{3, 4}, 1, 2)
	base := RMSNorm(x, []float32{1, 1}, 0)
	scaled := RMSNormScaled(x, []float32{1, 1}, []float32{2, 2}, 0)
	require.InDelta(t, base.Data[0]*2, scaled.Data[0], 1e-4)
	require.InDelta(t, base.Data[1]*2, scaled.Data[1], 1e-4)
}
