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

// Package config wires flags, environment variables, and an optional YAML
// file into a single viper-backed source, the way the teacher's run command
// binds pflags into viper before reading them back out.
package config

import (
	"os"
	"strings"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const envPrefix = "VOXTRAL"

// Init configures the package-level viper instance: VOXTRAL_-prefixed
// environment variables, dashes in flag names mapped to underscores, and an
// optional YAML config file at configPath (ignored if empty or missing).
func Init(configPath string) error {
	viper.SetEnvPrefix(envPrefix)
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()

	if configPath == "" {
		return nil
	}
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return nil
	}
	viper.SetConfigFile(configPath)
	return viper.ReadInConfig()
}

// MustBindPFlag binds a pflag under key into viper, panicking on failure —
// every call site passes a flag this process itself just defined, so a
// binding failure is a programming error, not a runtime condition.
func MustBindPFlag(key string, flag *pflag.Flag) {
	if err := viper.BindPFlag(key, flag); err != nil {
		panic("config: failed to bind flag " + key + ": " + err.Error())
	}
}

// GetString, GetInt, GetFloat64, and GetBool read back merged
// flag/env/file values. They exist so callers depend on this package
// instead of importing viper directly.
func GetString(key string) string   { return viper.GetString(key) }
func GetInt(key string) int         { return viper.GetInt(key) }
func GetFloat64(key string) float64 { return viper.GetFloat64(key) }
func GetBool(key string) bool       { return viper.GetBool(key) }
