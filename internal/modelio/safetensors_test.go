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

package modelio

import (
	"encoding/binary"
	"encoding/json"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

// writeSafetensorsFile hand-assembles a minimal safetensors file containing
// a single F32 tensor, mirroring the real format: an 8-byte LE header
// length, the JSON header, then the raw LE float32 buffer.
func writeSafetensorsFile(t *testing.T, path, name string, shape []int, data []float32) {
	t.Helper()

	raw := make([]byte, len(data)*4)
	for i, v := range data {
		binary.LittleEndian.PutUint32(raw[i*4:], math.Float32bits(v))
	}

	header := map[string]any{
		name: map[string]any{
			"dtype":        "F32",
			"shape":        shape,
			"data_offsets": [2]int64{0, int64(len(raw))},
		},
	}
	headerBytes, err := json.Marshal(header)
	require.NoError(t, err)

	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()

	require.NoError(t, binary.Write(f, binary.LittleEndian, uint64(len(headerBytes))))
	_, err = f.Write(headerBytes)
	require.NoError(t, err)
	_, err = f.Write(raw)
	require.NoError(t, err)
}

func TestLoadSafetensors_RoundTripsF32Tensor(t *testing.T) {
	dir := t.TempDir()
	data := []float32{1, 2, 3, 4, 5, 6}
	writeSafetensorsFile(t, filepath.Join(dir, "model.safetensors"), "layers.0.attention.wq.weight", []int{2, 3}, data)

	ws, err := LoadSafetensors(dir)
	require.NoError(t, err)

	got, ok := ws["layers.0.attention.wq.weight"]
	require.True(t, ok)
	require.Equal(t, []int{2, 3}, got.Dims)
	require.Equal(t, data, got.Data)
}

func TestLoadSafetensors_NoFilesIsAnError(t *testing.T) {
	_, err := LoadSafetensors(t.TempDir())
	require.Error(t, err)
}

func TestFloat16ToFloat32_KnownValues(t *testing.T) {
	cases := []struct {
		bits uint16
		want float32
	}{
		{0x3C00, 1.0},
		{0xBC00, -1.0},
		{0x0000, 0.0},
		{0x4000, 2.0},
	}
	for _, c := range cases {
		require.InDelta(t, c.want, float16ToFloat32(c.bits), 1e-6)
	}
}
