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

import "math"

// RotaryTable holds the precomputed cos/sin tables for traditional rotary
// position embedding, indexed [position][pairIndex].
type RotaryTable struct {
	theta   float64
	headDim int
	cos     [][]float32
	sin     [][]float32
}

// NewRotaryTable builds a table with room for positions [0, maxPositions).
// headDim must be even; traditional RoPE rotates the headDim/2 interleaved
// (even, odd) pairs of each head vector.
func NewRotaryTable(headDim int, theta float64, maxPositions int) *RotaryTable {
	half := headDim / 2
	invFreq := make([]float64, half)
	for i := 0; i < half; i++ {
		invFreq[i] = 1.0 / math.Pow(theta, float64(2*i)/float64(headDim))
	}
	rt := &RotaryTable{theta: theta, headDim: headDim}
	rt.cos = make([][]float32, maxPositions)
	rt.sin = make([][]float32, maxPositions)
	for p := 0; p < maxPositions; p++ {
		c := make([]float32, half)
		s := make([]float32, half)
		for i := 0; i < half; i++ {
			angle := float64(p) * invFreq[i]
			c[i] = float32(math.Cos(angle))
			s[i] = float32(math.Sin(angle))
		}
		rt.cos[p] = c
		rt.sin[p] = s
	}
	return rt
}

// ensure grows the table if a position beyond its current capacity is
// requested (sliding windows can in principle outlive the initial guess).
func (rt *RotaryTable) ensure(pos int) {
	if pos < len(rt.cos) {
		return
	}
	half := rt.headDim / 2
	invFreq := make([]float64, half)
	for i := 0; i < half; i++ {
		invFreq[i] = 1.0 / math.Pow(rt.theta, float64(2*i)/float64(rt.headDim))
	}
	for p := len(rt.cos); p <= pos; p++ {
		c := make([]float32, half)
		s := make([]float32, half)
		for i := 0; i < half; i++ {
			angle := float64(p) * invFreq[i]
			c[i] = float32(math.Cos(angle))
			s[i] = float32(math.Sin(angle))
		}
		rt.cos = append(rt.cos, c)
		rt.sin = append(rt.sin, s)
	}
}

// Apply rotates x in place. x has shape (T, nHeads*headDim); position offset
// is the absolute position of row 0 (subsequent rows are offset+1, offset+2, ...).
func (rt *RotaryTable) Apply(x *Tensor, nHeads int, offset int) {
	headDim := rt.headDim
	half := headDim / 2
	rt.ensure(offset + x.Rows() - 1)
	for i := 0; i < x.Rows(); i++ {
		pos := offset + i
		cos := rt.cos[pos]
		sin := rt.sin[pos]
		row := x.Row(i)
		for h := 0; h < nHeads; h++ {
			base := h * headDim
			for j := 0; j < half; j++ {
				a := row[base+2*j]
				b := row[base+2*j+1]
				row[base+2*j] = a*cos[j] - b*sin[j]
				row[base+2*j+1] = b*cos[j] + a*sin[j]
			}
		}
	}
}
