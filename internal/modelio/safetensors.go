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
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"sort"

	"github.com/voxtral-stream/voxtral/internal/tensorutil"
)

// rawTensorInfo is a single entry of a safetensors header.
type rawTensorInfo struct {
	DType       string  `json:"dtype"`
	Shape       []int   `json:"shape"`
	DataOffsets [2]int64 `json:"data_offsets"`
}

// WeightSet is a flat name -> tensor map, post-remap and post-transpose.
type WeightSet map[string]*tensorutil.Tensor

// LoadSafetensors reads every *.safetensors file in dir (sorted by name, for
// a stable, reproducible load order across shards) and returns the union of
// their declared tensors as float32 tensorutil.Tensors.
//
// The format — an 8-byte little-endian header length, a JSON header mapping
// tensor name to dtype/shape/byte-offsets, then the raw little-endian data
// buffer — is simple enough to read directly; no safetensors library is
// needed.
func LoadSafetensors(dir string) (WeightSet, error) {
	matches, err := filepath.Glob(filepath.Join(dir, "*.safetensors"))
	if err != nil {
		return nil, fmt.Errorf("modelio: globbing safetensors in %s: %w", dir, err)
	}
	if len(matches) == 0 {
		return nil, fmt.Errorf("modelio: no *.safetensors files found in %s", dir)
	}
	sort.Strings(matches)

	out := make(WeightSet)
	for _, path := range matches {
		if err := loadSafetensorsFile(path, out); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func loadSafetensorsFile(path string, out WeightSet) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("modelio: opening %s: %w", path, err)
	}
	defer f.Close()

	var headerLen uint64
	if err := binary.Read(f, binary.LittleEndian, &headerLen); err != nil {
		return fmt.Errorf("modelio: reading header length of %s: %w", path, err)
	}

	headerBytes := make([]byte, headerLen)
	if _, err := io.ReadFull(f, headerBytes); err != nil {
		return fmt.Errorf("modelio: reading header of %s: %w", path, err)
	}

	var header map[string]json.RawMessage
	if err := json.Unmarshal(headerBytes, &header); err != nil {
		return fmt.Errorf("modelio: parsing header of %s: %w", path, err)
	}

	dataStart := int64(8 + headerLen)
	for name, raw := range header {
		if name == "__metadata__" {
			continue
		}
		var info rawTensorInfo
		if err := json.Unmarshal(raw, &info); err != nil {
			return fmt.Errorf("modelio: parsing tensor header %q in %s: %w", name, path, err)
		}

		data, err := readTensorData(f, dataStart+info.DataOffsets[0], info.DataOffsets[1]-info.DataOffsets[0], info.DType)
		if err != nil {
			return fmt.Errorf("modelio: reading tensor %q in %s: %w", name, path, err)
		}
		out[name] = materializeWeight(data, info.Shape)
	}
	return nil
}

// materializeWeight builds the tensor that LoadSafetensors stores for a
// given name, round-tripping through gomlx's tensors.FromFlatDataAndDimensions
// / Value() convention so every weight at rest uses the same canonical
// tensor value type as the rest of the loader, not just our own flat buffer.
func materializeWeight(data []float32, shape []int) *tensorutil.Tensor {
	t := tensorutil.FromData(data, shape...)
	if t.Numel() == 0 {
		return t
	}
	return tensorutil.FromGoMLX(tensorutil.ToGoMLX(t), t.Dims...)
}

func readTensorData(f *os.File, offset, length int64, dtype string) ([]float32, error) {
	raw := make([]byte, length)
	if _, err := f.ReadAt(raw, offset); err != nil {
		return nil, err
	}

	switch dtype {
	case "F32":
		out := make([]float32, length/4)
		for i := range out {
			bits := binary.LittleEndian.Uint32(raw[i*4:])
			out[i] = math.Float32frombits(bits)
		}
		return out, nil
	case "F16":
		out := make([]float32, length/2)
		for i := range out {
			bits := binary.LittleEndian.Uint16(raw[i*2:])
			out[i] = float16ToFloat32(bits)
		}
		return out, nil
	case "BF16":
		out := make([]float32, length/2)
		for i := range out {
			bits := binary.LittleEndian.Uint16(raw[i*2:])
			out[i] = math.Float32frombits(uint32(bits) << 16)
		}
		return out, nil
	default:
		return nil, fmt.Errorf("unsupported dtype %q (quantized sub-byte formats are read as metadata only, not dequantized)", dtype)
	}
}

func float16ToFloat32(h uint16) float32 {
	sign := uint32(h&0x8000) << 16
	exp := (h >> 10) & 0x1f
	frac := uint32(h & 0x3ff)

	switch exp {
	case 0:
		if frac == 0 {
			return math.Float32frombits(sign)
		}
		// subnormal: normalize by shifting until the leading bit is set
		e := -1
		for frac&0x400 == 0 {
			frac <<= 1
			e++
		}
		frac &= 0x3ff
		bits := sign | uint32(127-15-e)<<23 | frac<<13
		return math.Float32frombits(bits)
	case 0x1f:
		bits := sign | 0xff<<23 | frac<<13
		return math.Float32frombits(bits)
	default:
		bits := sign | (uint32(exp)+112)<<23 | frac<<13
		return math.Float32frombits(bits)
	}
}
