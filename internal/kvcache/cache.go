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

// Package kvcache implements the rotating key/value cache shared by the
// encoder's sliding-window attention and the decoder's sliding-window
// attention: a bounded circular buffer that concatenates during multi-token
// prefill and, during single-token decode, grows by amortized chunks and
// writes in place.
//
// Callers never read Keys/Values directly — the buffer is only temporally
// ordered between UpdateAndFetch calls when growth forced a reorder, so a
// reader that bypasses UpdateAndFetch can observe a stale or out-of-order
// view. This mirrors the teacher's Model interface, which exposes state only
// through Forward rather than through exported mutable fields.
package kvcache

import "github.com/voxtral-stream/voxtral/internal/tensorutil"

// growStep is the amortized allocation chunk used while growing the cache
// toward maxSize during single-token decode.
const growStep = 256

// Cache is a rotating key/value cache bounded to maxSize positions.
type Cache struct {
	maxSize int
	dim     int // kvHeads * headDim, the trailing feature dimension of keys/values

	keys   *tensorutil.Tensor // (allocLen, dim)
	values *tensorutil.Tensor

	allocLen int // rows physically allocated so far (<= maxSize)
	idx      int // circular write head
	offset   int // total positions ever appended
}

// New creates an empty cache bounded to maxSize positions of the given
// feature width (kvHeads*headDim).
func New(maxSize, dim int) *Cache {
	return &Cache{maxSize: maxSize, dim: dim}
}

// Offset returns the total number of positions ever appended.
func (c *Cache) Offset() int { return c.offset }

// Len returns the number of positions currently visible in the buffer.
func (c *Cache) Len() int {
	if c.offset >= c.maxSize {
		return c.maxSize
	}
	return c.offset
}

// UpdateAndFetch appends newK/newV (each of shape (T, dim)) to the cache and
// returns the resulting key/value views. T > 1 takes the concat growth path
// used during prefill; T == 1 takes the in-place circular-write path used
// during single-token decode.
func (c *Cache) UpdateAndFetch(newK, newV *tensorutil.Tensor) (*tensorutil.Tensor, *tensorutil.Tensor) {
	t := newK.Rows()
	if t > 1 {
		return c.updateConcat(newK, newV)
	}
	return c.updateInPlace(newK, newV)
}

func (c *Cache) updateConcat(newK, newV *tensorutil.Tensor) (*tensorutil.Tensor, *tensorutil.Tensor) {
	t := newK.Rows()
	if c.offset == 0 {
		trimmedK, trimmedV := newK, newV
		if t > c.maxSize {
			trimmedK = newK.SliceRows(t-c.maxSize, t)
			trimmedV = newV.SliceRows(t-c.maxSize, t)
		}
		c.keys = trimmedK.Clone()
		c.values = trimmedV.Clone()
		c.allocLen = c.keys.Rows()
		c.idx = c.allocLen
		c.offset = t
		return c.keys, c.values
	}

	reorderedK := c.temporalOrder(c.keys)
	reorderedV := c.temporalOrder(c.values)

	trim := reorderedK.Rows() + t - c.maxSize
	if trim > 0 {
		reorderedK = reorderedK.SliceRows(trim, reorderedK.Rows())
		reorderedV = reorderedV.SliceRows(trim, reorderedV.Rows())
	}

	c.keys = tensorutil.ConcatRows(reorderedK, newK)
	c.values = tensorutil.ConcatRows(reorderedV, newV)
	c.allocLen = c.keys.Rows()
	c.idx = c.allocLen
	c.offset += t

	return c.keys, c.values
}

// temporalOrder rewrites the current circular buffer into strict temporal
// order: [idx..end) followed by [0..idx) when the buffer has wrapped
// (idx < offset), or simply the written prefix [0..idx) otherwise.
func (c *Cache) temporalOrder(buf *tensorutil.Tensor) *tensorutil.Tensor {
	if c.idx < c.offset {
		tail := buf.SliceRows(c.idx, c.allocLen)
		head := buf.SliceRows(0, c.idx)
		return tensorutil.ConcatRows(tail, head)
	}
	return buf.SliceRows(0, c.idx)
}

func (c *Cache) updateInPlace(newK, newV *tensorutil.Tensor) (*tensorutil.Tensor, *tensorutil.Tensor) {
	if c.offset < c.maxSize {
		if c.idx == c.allocLen {
			growth := growStep
			if room := c.maxSize - c.offset; room < growth {
				growth = room
			}
			c.keys = growBuffer(c.keys, growth, c.dim)
			c.values = growBuffer(c.values, growth, c.dim)
			c.allocLen += growth
		}
		if c.allocLen > c.maxSize {
			overflow := c.allocLen - c.maxSize
			c.keys = c.keys.SliceRows(overflow, c.keys.Rows())
			c.values = c.values.SliceRows(overflow, c.values.Rows())
			c.allocLen = c.maxSize
			c.idx = c.maxSize
		}
	}

	if c.idx == c.maxSize {
		c.idx = 0
	}

	copy(c.keys.Row(c.idx), newK.Row(0))
	copy(c.values.Row(c.idx), newV.Row(0))

	c.offset++
	c.idx++

	if c.offset >= c.maxSize {
		return c.keys, c.values
	}
	return c.keys.SliceRows(0, c.offset), c.values.SliceRows(0, c.offset)
}

func growBuffer(buf *tensorutil.Tensor, extraRows, dim int) *tensorutil.Tensor {
	if buf == nil {
		return tensorutil.New(extraRows, dim)
	}
	return tensorutil.ConcatRows(buf, tensorutil.New(extraRows, dim))
}
