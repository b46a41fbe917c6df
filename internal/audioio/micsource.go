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
	"context"
	"encoding/binary"
	"fmt"
	"io"
	"math"

	"golang.org/x/sync/errgroup"
)

// MicrophoneSource produces a stream of PCM chunks. The only concrete
// implementation reads fixed-size f32le frames from an io.Reader (stdin in
// the live CLI); capture and consumption run on separate goroutines so a
// slow consumer never blocks the reader mid-read.
type MicrophoneSource interface {
	// Chunks starts capture and returns a channel of sample chunks and a
	// channel that receives at most one error (capture failure or a
	// non-EOF read error) before both channels close.
	Chunks(ctx context.Context) (<-chan []float32, <-chan error)
}

// StdinSource reads raw f32le mono PCM frames from r in fixed-size chunks,
// dropping the oldest queued chunk whenever the backlog would exceed
// maxBacklog chunks — the boundary never blocks capture to let a slow
// consumer catch up, per the realtime session's no-drop-in-the-core
// contract.
type StdinSource struct {
	r            io.Reader
	chunkSamples int
	maxBacklog   int
}

// NewStdinSource builds a microphone source reading chunkSamples-sample
// frames from r, buffering at most maxBacklogChunks chunks (at least 1).
// The caller converts a millisecond backlog into this chunk count.
func NewStdinSource(r io.Reader, chunkSamples, maxBacklogChunks int) *StdinSource {
	if maxBacklogChunks < 1 {
		maxBacklogChunks = 1
	}
	return &StdinSource{r: r, chunkSamples: chunkSamples, maxBacklog: maxBacklogChunks}
}

func (s *StdinSource) Chunks(ctx context.Context) (<-chan []float32, <-chan error) {
	out := make(chan []float32, s.maxBacklog)
	errc := make(chan error, 1)

	eg, egCtx := errgroup.WithContext(ctx)
	eg.Go(func() error {
		defer close(out)
		buf := make([]byte, s.chunkSamples*4)
		for {
			if egCtx.Err() != nil {
				return egCtx.Err()
			}
			if _, err := io.ReadFull(s.r, buf); err != nil {
				if err == io.EOF || err == io.ErrUnexpectedEOF {
					return nil
				}
				return fmt.Errorf("audioio: reading pcm frame: %w", err)
			}
			chunk := decodeF32LE(buf)

			select {
			case out <- chunk:
			default:
				// Backlog full: drop the oldest queued chunk to make room
				// rather than block capture.
				select {
				case <-out:
				default:
				}
				select {
				case out <- chunk:
				default:
				}
			}
		}
	})

	go func() {
		defer close(errc)
		if err := eg.Wait(); err != nil && err != context.Canceled {
			errc <- err
		}
	}()

	return out, errc
}

func decodeF32LE(buf []byte) []float32 {
	out := make([]float32, len(buf)/4)
	for i := range out {
		bits := binary.LittleEndian.Uint32(buf[i*4 : i*4+4])
		out[i] = math.Float32frombits(bits)
	}
	return out
}
