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

package cmd

import (
	"bufio"
	"context"
	"fmt"
	"math/rand"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/voxtral-stream/voxtral/internal/audioio"
	"github.com/voxtral-stream/voxtral/internal/config"
	"github.com/voxtral-stream/voxtral/internal/decoder"
	"github.com/voxtral-stream/voxtral/internal/encoder"
	"github.com/voxtral-stream/voxtral/internal/mel"
	"github.com/voxtral-stream/voxtral/internal/metrics"
	"github.com/voxtral-stream/voxtral/internal/modelio"
	"github.com/voxtral-stream/voxtral/internal/session"
)

var (
	liveTemp           float64
	liveChunkMS        int
	liveDelayMS        int
	liveRightPadTokens int
	liveDecoderWindow  int
	liveMaxBacklogMS   int
	liveMetricsAddr    string
)

var liveCmd = &cobra.Command{
	Use:   "live",
	Short: "Transcribe raw f32le mono 16kHz PCM from stdin in realtime",
	RunE:  runLive,
}

func init() {
	rootCmd.AddCommand(liveCmd)

	liveCmd.Flags().Float64Var(&liveTemp, "temp", 0, "sampling temperature (0 = greedy)")
	liveCmd.Flags().IntVar(&liveChunkMS, "chunk-ms", 80, "audio chunk duration fed per step, in ms")
	liveCmd.Flags().IntVar(&liveDelayMS, "transcription-delay-ms", 0, "transcription delay override, in ms (0 = use model default)")
	liveCmd.Flags().IntVar(&liveRightPadTokens, "right-pad-tokens", 0, "trailing silence tokens on FinishStream (0 = default)")
	liveCmd.Flags().IntVar(&liveDecoderWindow, "decoder-window", 0, "decoder sliding window override, in tokens (0 = model default)")
	liveCmd.Flags().IntVar(&liveMaxBacklogMS, "max-backlog-ms", 2000, "capture backlog before dropping the oldest chunk, in ms")
	liveCmd.Flags().StringVar(&liveMetricsAddr, "metrics-addr", "", "address to serve /healthz and /metrics on (empty disables it)")
}

func runLive(cmd *cobra.Command, args []string) error {
	logger := newLogger()
	defer func() { _ = logger.Sync() }()

	modelID := config.GetString("model")
	if modelID == "" {
		return fmt.Errorf("voxtral: --model is required")
	}

	resolver := modelio.NewResolverFromEnv()
	artifact, err := modelio.Load(resolver, modelID)
	if err != nil {
		return fmt.Errorf("voxtral: loading model %s: %w", modelID, err)
	}
	logger.Info("model loaded", zap.String("model", modelID), zap.String("dir", artifact.Dir))

	enc := encoder.New(artifact.Model.EncoderConfig, artifact.Model.EncoderWeight)
	dec := decoder.New(artifact.Model.DecoderConfig, artifact.Model.DecoderWeight)
	rng := rand.New(rand.NewSource(time.Now().UnixNano()))

	sess, err := session.New(enc, dec, artifact.Tokenizer, rng, session.Config{
		Temperature:          float32(liveTemp),
		ChunkDurationMS:      liveChunkMS,
		TranscriptionDelayMS: liveDelayMS,
		RightPadTokens:       liveRightPadTokens,
		DecoderWindowTokens:  liveDecoderWindow,
		ModelName:            modelID,
		Logger:               logger,
	})
	if err != nil {
		return fmt.Errorf("voxtral: building session: %w", err)
	}
	defer sess.Close()

	var metricsSrv *metrics.Server
	if liveMetricsAddr != "" {
		metricsSrv = metrics.NewServer(liveMetricsAddr)
		go func() {
			if err := metricsSrv.Serve(); err != nil {
				logger.Error("metrics server stopped", zap.Error(err))
			}
		}()
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	chunkSamples := (liveChunkMS * mel.DefaultSampleRate) / 1000
	backlogChunks := liveMaxBacklogMS / liveChunkMS
	src := audioio.NewStdinSource(bufio.NewReader(os.Stdin), chunkSamples, backlogChunks)
	chunks, captureErrc := src.Chunks(ctx)

	out := bufio.NewWriter(os.Stdout)
	defer out.Flush()

	var runErr error
	for chunk := range chunks {
		text := sess.AppendAudioSamples(chunk)
		if text != "" {
			if _, werr := out.WriteString(text); werr != nil {
				runErr = multierr.Append(runErr, werr)
				break
			}
			_ = out.Flush()
		}
	}

	if text := sess.FinishStream(); text != "" {
		if _, werr := out.WriteString(text); werr != nil {
			runErr = multierr.Append(runErr, werr)
		}
		_ = out.Flush()
	}

	runErr = multierr.Append(runErr, <-captureErrc)

	if metricsSrv != nil {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		runErr = multierr.Append(runErr, metricsSrv.Shutdown(shutdownCtx))
	}

	return runErr
}
