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

func TestToFromGoMLX_RoundTripsMatrixExactly(t *testing.T) {
	x := FromData([]float32{1, 2, 3, 4, 5, 6}, 2, 3)
	gt := ToGoMLX(x)
	back := FromGoMLX(gt, x.Dims...)
	require.Equal(t, x.Dims, back.Dims)
	require.Equal(t, x.Data, back.Data)
}

func TestToGoMLX_DoesNotAliasSourceBuffer(t *testing.T) {
	x := FromData([]float32{1, 2}, 1, 2)
	gt := ToGoMLX(x)
	x.Data[0] = 99
	back := FromGoMLX(gt, x.Dims...)
	require.Equal(t, float32(1), back.Data[0])
}
