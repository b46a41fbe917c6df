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
	"bytes"
	"context"
	"encoding/binary"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func encodeF32LE(samples []float32) []byte {
	buf := make([]byte, len(samples)*4)
	for i, s := range samples {
		binary.LittleEndian.PutUint32(buf[i*4:i*4+4], math.Float32bits(s))
	}
	return buf
}

func TestStdinSource_EmitsChunksInOrderUntilEOF(t *testing.T) {
	chunkSamples := 2
	var raw bytes.Buffer
	raw.Write(encodeF32LE([]float32{1, 2}))
	raw.Write(encodeF32LE([]float32{3, 4}))

	src := NewStdinSource(&raw, chunkSamples, 8)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	chunks, errc := src.Chunks(ctx)

	var got [][]float32
	for c := range chunks {
		got = append(got, c)
	}
	require.NoError(t, drainErr(t, errc))
	require.Equal(t, [][]float32{{1, 2}, {3, 4}}, got)
}

func TestStdinSource_TreatsPartialTrailingFrameAsCleanEOF(t *testing.T) {
	var raw bytes.Buffer
	raw.Write(encodeF32LE([]float32{1, 2}))
	raw.Write([]byte{0, 1}) // two stray bytes, not a full sample

	src := NewStdinSource(&raw, 2, 8)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	chunks, errc := src.Chunks(ctx)
	var got [][]float32
	for c := range chunks {
		got = append(got, c)
	}
	require.NoError(t, drainErr(t, errc))
	require.Equal(t, [][]float32{{1, 2}}, got)
}

func drainErr(t *testing.T, errc <-chan error) error {
	select {
	case err := <-errc:
		return err
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for error channel to close")
		return nil
	}
}
