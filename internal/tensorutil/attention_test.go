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

func TestAttention_SingleKeyCopiesItsValueRegardlessOfQuery(t *testing.T) {
	q := FromData([]float32{1, 2}, 1, 2)
	k := FromData([]float32{5, 5}, 1, 2)
	v := FromData([]float32{9, 10}, 1, 2)
	out := Attention(q, k, v, 1, 1, 2, false)
	require.InDelta(t, 9, out.Data[0], 1e-5)
	require.InDelta(t, 10, out.Data[1], 1e-5)
}

func TestAttention_CausalMaskBlocksFutureKeys(t *testing.T) {
	// Two query positions aligned 1:1 with two key positions (as produced by
	// appending the current step to a cache before calling Attention): row 0
	// must only ever see key 0, so its output is always v[0] regardless of
	// how distinct key 1/v[1] are.
	q := FromData([]float32{1, 0, 1, 0}, 2, 2)
	k := FromData([]float32{1, 0, 100, 100}, 2, 2)
	v := FromData([]float32{7, 8, 900, 900}, 2, 2)
	out := Attention(q, k, v, 1, 1, 2, true)
	require.InDelta(t, 7, out.Data[0], 1e-5)
	require.InDelta(t, 8, out.Data[1], 1e-5)
}

func TestAttention_GroupedQueryHeadsShareKVHead(t *testing.T) {
	// 2 query heads, 1 kv head: both query heads attend over the same single
	// key/value row, so both halves of the output equal that value row.
	q := FromData([]float32{1, 1, 2, 2}, 1, 4) // 2 heads of dim 2
	k := FromData([]float32{1, 1}, 1, 2)
	v := FromData([]float32{3, 4}, 1, 2)
	out := Attention(q, k, v, 2, 1, 2, false)
	require.InDelta(t, 3, out.Data[0], 1e-5)
	require.InDelta(t, 4, out.Data[1], 1e-5)
	require.InDelta(t, 3, out.Data[2], 1e-5)
	require.InDelta(t, 4, out.Data[3], 1e-5)
}
