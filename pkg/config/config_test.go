/*
Copyright 2022 The Numaproj Authors.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/numaproj/panestate/pkg/state"
)

const tuningFile = `
# log engine
; also a comment
TableSize = 1048576
logsize 536870912 # bytes
blocksize = 4096
lrusize 1073741824, 8
unknown a, b ,c
`

func TestReadTuning(t *testing.T) {
	tuning, err := ReadTuning(strings.NewReader(tuningFile))
	require.NoError(t, err)
	assert.Equal(t, []string{"1048576"}, tuning["tablesize"])
	assert.Equal(t, []string{"536870912"}, tuning["logsize"])
	assert.Equal(t, []string{"1073741824", "8"}, tuning["lrusize"])
	assert.Equal(t, []string{"a", "b", "c"}, tuning["unknown"])

	logOpts, err := tuning.LogOptions()
	require.NoError(t, err)
	assert.Equal(t, uint64(1048576), logOpts.TableSize)
	assert.Equal(t, uint64(536870912), logOpts.LogSize)

	lsmOpts, err := tuning.LSMOptions()
	require.NoError(t, err)
	assert.Equal(t, 4096, lsmOpts.BlockSize)
	assert.Equal(t, int64(1073741824), lsmOpts.CacheSize)
	assert.Equal(t, uint64(0), lsmOpts.WriteBufferSize)

	_, err = Tuning{"tablesize": {"lots"}}.LogOptions()
	assert.Error(t, err)
}

func TestLoadRunConfig(t *testing.T) {
	dir := t.TempDir()
	tuningPath := filepath.Join(dir, "log.config")
	require.NoError(t, os.WriteFile(tuningPath, []byte(tuningFile), 0644))
	path := filepath.Join(dir, "run.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
query: keyed-window-count
backend: log
window:
  slide: 2s
  sliceCount: 5
generator:
  rate: 500
tuning:
  logFile: `+tuningPath+`
`), 0644))

	flags := pflag.NewFlagSet("run", pflag.ContinueOnError)
	flags.Int("workers", 1, "")
	require.NoError(t, flags.Parse([]string{"--workers=4"}))

	conf, err := LoadRunConfig(path, flags)
	require.NoError(t, err)
	assert.Equal(t, "keyed-window-count", conf.Query)
	assert.Equal(t, 4, conf.Workers)
	assert.Equal(t, 2*time.Second, conf.Window.Slide)
	assert.Equal(t, uint64(5), conf.Window.SliceCount)
	assert.Equal(t, time.Second, conf.Window.SliceWidth)
	assert.Equal(t, uint64(500), conf.Generator.Rate)
	assert.Equal(t, uint64(1000), conf.Generator.Keys)

	bc, err := conf.BackendConfig()
	require.NoError(t, err)
	assert.Equal(t, state.KindLog, bc.Kind)
	assert.Equal(t, uint64(1048576), bc.Log.TableSize)
}

func TestLoadRunConfig_Invalid(t *testing.T) {
	t.Setenv("PANESTATE_BACKEND", "faster")
	_, err := LoadRunConfig("", nil)
	assert.Error(t, err)

	t.Setenv("PANESTATE_BACKEND", "memory")
	t.Setenv("PANESTATE_WORKERS", "0")
	_, err = LoadRunConfig("", nil)
	assert.Error(t, err)
}
