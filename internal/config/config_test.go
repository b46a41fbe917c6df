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

package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestInit_ReadsEnvironmentWithPrefix(t *testing.T) {
	require.NoError(t, os.Setenv("VOXTRAL_TEMP", "0.5"))
	defer os.Unsetenv("VOXTRAL_TEMP")

	require.NoError(t, Init(""))
	require.Equal(t, 0.5, GetFloat64("temp"))
}

func TestInit_ReadsYAMLConfigFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "voxtral.yaml")
	require.NoError(t, os.WriteFile(path, []byte("model: demo-model\n"), 0o644))

	require.NoError(t, Init(path))
	require.Equal(t, "demo-model", GetString("model"))
}

func TestInit_MissingConfigFileIsNotAnError(t *testing.T) {
	require.NoError(t, Init(filepath.Join(t.TempDir(), "missing.yaml")))
}
