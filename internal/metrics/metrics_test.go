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
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestRecordFunctions_DoNotPanic(t *testing.T) {
	require.NotPanics(t, func() {
		RecordChunkConsumed("tiny")
		RecordTokenDecoded("tiny")
		RecordEOSReset("tiny")
		RecordDecodeStepDuration("tiny", 0.01)
		RecordEncodeStepDuration("tiny", 0.02)
	})
}

func TestServer_HealthzReturnsOK(t *testing.T) {
	s := NewServer("127.0.0.1:0")
	go s.Serve()
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = s.Shutdown(ctx)
	}()

	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", handleHealthz)
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	mux.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	require.Contains(t, string(body), `"status":"ok"`)
}
