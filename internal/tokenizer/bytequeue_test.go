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

package tokenizer

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestValidPrefix_HoldsBackIncompleteMultibyteTail(t *testing.T) {
	full := []byte("héllo") // 'é' is a 2-byte UTF-8 sequence at indices [1,3)
	split := 2              // "h" plus only the first byte of 'é'

	emit, pending := ValidPrefix(full[:split])
	require.Equal(t, "h", string(emit))
	require.Len(t, pending, 1)

	rest := append(append([]byte{}, pending...), full[split:]...)
	emit2, pending2 := ValidPrefix(rest)
	require.Equal(t, "éllo", string(emit2))
	require.Empty(t, pending2)
}

func TestValidPrefix_CompleteASCIIEmitsEverything(t *testing.T) {
	emit, pending := ValidPrefix([]byte("hello"))
	require.Equal(t, "hello", string(emit))
	require.Empty(t, pending)
}

func TestFlushLossy_ReplacesTruncatedTail(t *testing.T) {
	full := []byte("café")
	truncated := full[:len(full)-1]
	got := FlushLossy(truncated)
	require.Contains(t, got, "�")
}
