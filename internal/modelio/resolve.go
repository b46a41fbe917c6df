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

package modelio

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gomlx/go-huggingface/hub"
	"github.com/jellydator/ttlcache/v3"
)

// resolveCacheTTL is short enough that a `live` process re-resolving the
// same model id on every microphone reconnect doesn't go stale across a
// long-running CLI invocation, but long enough to avoid re-downloading or
// re-statting on every connection.
const resolveCacheTTL = 5 * time.Minute

// Resolver resolves a model identifier — a local directory or a
// HuggingFace-style repo id — to a local directory containing tekken.json,
// params.json/config.json, and the checkpoint's *.safetensors files.
type Resolver struct {
	token string
	cache *ttlcache.Cache[string, string]
}

// NewResolver builds a Resolver. token, if non-empty, authenticates
// HuggingFace Hub downloads of private repos.
func NewResolver(token string) *Resolver {
	return &Resolver{
		token: token,
		cache: ttlcache.New(ttlcache.WithTTL[string, string](resolveCacheTTL)),
	}
}

// NewResolverFromEnv builds a Resolver using HF_TOKEN, falling back to
// HUGGINGFACE_HUB_TOKEN, for Hub authentication.
func NewResolverFromEnv() *Resolver {
	token := os.Getenv("HF_TOKEN")
	if token == "" {
		token = os.Getenv("HUGGINGFACE_HUB_TOKEN")
	}
	return NewResolver(token)
}

// requiredBaseFiles is the minimal set of names a model directory must yield a
// local file for. Either params.json or config.json is acceptable, and
// either original-format or converted-format safetensors naming is
// acceptable — those two are checked separately after resolution.
var requiredBaseFiles = []string{"tekken.json"}

// Resolve returns the local directory for modelID, downloading it from
// HuggingFace Hub first if modelID is not already a local path.
func (r *Resolver) Resolve(modelID string) (string, error) {
	if item := r.cache.Get(modelID); item != nil {
		return item.Value(), nil
	}

	dir, err := r.resolveUncached(modelID)
	if err != nil {
		return "", err
	}

	r.cache.Set(modelID, dir, ttlcache.DefaultTTL)
	return dir, nil
}

func (r *Resolver) resolveUncached(modelID string) (string, error) {
	if info, err := os.Stat(modelID); err == nil && info.IsDir() {
		return modelID, nil
	}
	return r.downloadFromHub(modelID)
}

func (r *Resolver) downloadFromHub(repoID string) (string, error) {
	repo := hub.New(repoID)
	if r.token != "" {
		repo = repo.WithAuth(r.token)
	}

	var files []string
	for fileName, err := range repo.IterFileNames() {
		if err != nil {
			return "", fmt.Errorf("modelio: listing files in %s: %w", repoID, err)
		}
		files = append(files, fileName)
	}
	if len(files) == 0 {
		return "", fmt.Errorf("modelio: repo %s has no files", repoID)
	}

	toDownload := selectModelFiles(files)
	if len(toDownload) == 0 {
		return "", fmt.Errorf("modelio: repo %s has none of the files a Voxtral model directory needs (tekken.json, params.json/config.json, *.safetensors)", repoID)
	}

	var dir string
	for _, fileName := range toDownload {
		localPath, err := repo.DownloadFile(fileName)
		if err != nil {
			return "", fmt.Errorf("modelio: downloading %s from %s: %w", fileName, repoID, err)
		}
		if dir == "" {
			dir = filepath.Dir(localPath)
		}
	}

	for _, name := range requiredBaseFiles {
		if _, err := os.Stat(filepath.Join(dir, name)); err != nil {
			return "", fmt.Errorf("modelio: repo %s is missing required file %s", repoID, name)
		}
	}
	return dir, nil
}

// selectModelFiles picks the tokenizer, hyperparameter, and weight files out
// of a repo's full file listing, ignoring READMEs, other checkpoint
// variants, and non-model assets.
func selectModelFiles(files []string) []string {
	var out []string
	for _, f := range files {
		base := filepath.Base(f)
		switch {
		case base == "tekken.json", base == "params.json", base == "config.json":
			out = append(out, f)
		case strings.HasSuffix(base, ".safetensors"):
			out = append(out, f)
		case base == "model.safetensors.index.json":
			out = append(out, f)
		}
	}
	return out
}
