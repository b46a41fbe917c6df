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

package metrics

import (
	"context"
	"net/http"

	"github.com/bytedance/sonic/encoder"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// HealthResponse is the /healthz response body.
type HealthResponse struct {
	Status string `json:"status"`
}

// Server exposes /healthz and /metrics for a live session. It is ambient
// infrastructure: nothing on the transcription data path depends on it
// running, so callers are free to skip starting one.
type Server struct {
	srv *http.Server
}

// NewServer builds a metrics/health server listening on addr. Call Serve to
// run it and Shutdown to stop it.
func NewServer(addr string) *Server {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", handleHealthz)
	mux.Handle("GET /metrics", promhttp.Handler())

	return &Server{srv: &http.Server{Addr: addr, Handler: mux}}
}

// Serve blocks until the server stops, returning nil on a clean Shutdown.
func (s *Server) Serve() error {
	if err := s.srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}

func handleHealthz(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = encoder.NewStreamEncoder(w).Encode(HealthResponse{Status: "ok"})
}
