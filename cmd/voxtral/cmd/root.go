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
	"os"

	"github.com/spf13/cobra"

	"github.com/voxtral-stream/voxtral/internal/config"
)

// Version is set by main from a build-time ldflag.
var Version = "dev"

var (
	configFile string
	logLevel   string
	logStyle   string
)

var rootCmd = &cobra.Command{
	Use:     "voxtral",
	Short:   "Streaming speech-to-text over a Voxtral-family model",
	Version: Version,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return config.Init(configFile)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "path to an optional YAML config file")
	rootCmd.PersistentFlags().String("model", "", "model ID (HuggingFace repo) or local directory")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "log level: debug, info, warn, error")
	rootCmd.PersistentFlags().StringVar(&logStyle, "log-style", "console", "log encoding: console or json")
	config.MustBindPFlag("model", rootCmd.PersistentFlags().Lookup("model"))
	config.MustBindPFlag("log_level", rootCmd.PersistentFlags().Lookup("log-level"))
	config.MustBindPFlag("log_style", rootCmd.PersistentFlags().Lookup("log-style"))
}

// Execute runs the root command and exits the process with a non-zero
// status on any error, after printing it to stderr.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "voxtral:", err)
		os.Exit(1)
	}
}
