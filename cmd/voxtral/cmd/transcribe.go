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
	"fmt"
	"math/rand"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/voxtral-stream/voxtral/internal/audioio"
	"github.com/voxtral-stream/voxtral/internal/config"
	"github.com/voxtral-stream/voxtral/internal/decoder"
	"github.com/voxtral-stream/voxtral/internal/encoder"
	"github.com/voxtral-stream/voxtral/internal/modelio"
	"github.com/voxtral-stream/voxtral/internal/transcribe"
)

var (
	transcribeAudioPath    string
	transcribeTemp         float64
	transcribeMaxNewTokens int
	transcribeStats        bool
)

var transcribeCmd = &cobra.Command{
	Use:   "transcribe",
	Short: "Transcribe a WAV file offline, whole-utterance",
	RunE:  runTranscribe,
}

func init() {
	rootCmd.AddCommand(transcribeCmd)

	transcribeCmd.Flags().StringVar(&transcribeAudioPath, "audio", "", "path to a WAV file (required)")
	transcribeCmd.Flags().Float64Var(&transcribeTemp, "temp", 0, "sampling temperature (0 = greedy)")
	transcribeCmd.Flags().IntVar(&transcribeMaxNewTokens, "max-new-tokens", 0, "cap on generated tokens (0 = no cap)")
	transcribeCmd.Flags().BoolVar(&transcribeStats, "stats", false, "print timing stats to stderr")
	_ = transcribeCmd.MarkFlagRequired("audio")
}

func runTranscribe(cmd *cobra.Command, args []string) error {
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

	samples, err := audioio.LoadWAV(transcribeAudioPath)
	if err != nil {
		return fmt.Errorf("voxtral: loading audio %s: %w", transcribeAudioPath, err)
	}

	enc := encoder.New(artifact.Model.EncoderConfig, artifact.Model.EncoderWeight)
	dec := decoder.New(artifact.Model.DecoderConfig, artifact.Model.DecoderWeight)
	rng := rand.New(rand.NewSource(time.Now().UnixNano()))

	tr := transcribe.New(enc, dec, artifact.Tokenizer, rng, logger)

	text, stats, err := tr.Transcribe(samples, float32(transcribeTemp), transcribeMaxNewTokens)
	if err != nil {
		return fmt.Errorf("voxtral: transcribing %s: %w", transcribeAudioPath, err)
	}

	fmt.Println(text)
	if transcribeStats {
		fmt.Fprintf(cmd.ErrOrStderr(), "wall=%s tokens/sec=%.1f mel_frames=%d audio_sec=%.2f\n",
			stats.WallTime, stats.TokensPerSec, stats.MelFrames, stats.AudioSeconds)
	}
	return nil
}
