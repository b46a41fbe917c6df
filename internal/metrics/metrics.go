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

// Package metrics declares the Prometheus vectors a live session publishes
// and the small wrapper functions that record into them, plus the
// /healthz + /metrics HTTP server exposing them.
package metrics

import "github.com/prometheus/client_golang/prometheus"

var (
	chunksConsumed = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "voxtral",
			Subsystem: "session",
			Name:      "chunks_consumed_total",
			Help:      "Total number of audio chunks consumed by a live session.",
		},
		[]string{"model"},
	)

	tokensDecoded = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "voxtral",
			Subsystem: "session",
			Name:      "tokens_decoded_total",
			Help:      "Total number of decoder tokens sampled.",
		},
		[]string{"model"},
	)

	eosResets = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "voxtral",
			Subsystem: "session",
			Name:      "eos_resets_total",
			Help:      "Total number of end-of-stream resets within a live session.",
		},
		[]string{"model"},
	)

	decodeStepDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "voxtral",
			Subsystem: "session",
			Name:      "decode_step_duration_seconds",
			Help:      "Time taken by one decoder forward step.",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		},
		[]string{"model"},
	)

	encodeStepDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "voxtral",
			Subsystem: "session",
			Name:      "encode_step_duration_seconds",
			Help:      "Time taken by one encoder incremental step.",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		},
		[]string{"model"},
	)
)

func init() {
	prometheus.MustRegister(chunksConsumed)
	prometheus.MustRegister(tokensDecoded)
	prometheus.MustRegister(eosResets)
	prometheus.MustRegister(decodeStepDuration)
	prometheus.MustRegister(encodeStepDuration)
}

// RecordChunkConsumed increments the consumed-chunks counter for model.
func RecordChunkConsumed(model string) {
	chunksConsumed.WithLabelValues(model).Inc()
}

// RecordTokenDecoded increments the decoded-tokens counter for model.
func RecordTokenDecoded(model string) {
	tokensDecoded.WithLabelValues(model).Inc()
}

// RecordEOSReset increments the EOS-reset counter for model.
func RecordEOSReset(model string) {
	eosResets.WithLabelValues(model).Inc()
}

// RecordDecodeStepDuration observes a decoder forward step's wall time.
func RecordDecodeStepDuration(model string, seconds float64) {
	decodeStepDuration.WithLabelValues(model).Observe(seconds)
}

// RecordEncodeStepDuration observes an encoder incremental step's wall time.
func RecordEncodeStepDuration(model string, seconds float64) {
	encodeStepDuration.WithLabelValues(model).Observe(seconds)
}
