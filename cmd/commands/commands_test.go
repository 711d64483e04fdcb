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

package commands

import (
	"bytes"
	"context"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/numaproj/panestate/pkg/config"
	"github.com/numaproj/panestate/pkg/shared/logging"
	"github.com/numaproj/panestate/pkg/state"
)

func Test_Commands(t *testing.T) {
	t.Run("root help", func(t *testing.T) {
		b := bytes.NewBufferString("")
		rootCmd.SetOut(b)
		rootCmd.SetArgs([]string{"help"})
		Execute()
		output, _ := io.ReadAll(b)
		assert.Contains(t, string(output), "Available Commands")
	})

	t.Run("Run", func(t *testing.T) {
		cmd := NewRunCommand()
		assert.True(t, cmd.HasLocalFlags())
		assert.Equal(t, "run", cmd.Use)
		assert.Equal(t, "string", cmd.Flag("config").Value.Type())
		assert.Equal(t, "int", cmd.Flag("workers").Value.Type())
		cmd.SetArgs([]string{"--backend=nonono"})
		err := cmd.Execute()
		assert.Error(t, err)
	})

	t.Run("Queries", func(t *testing.T) {
		b := bytes.NewBufferString("")
		cmd := NewQueriesCommand()
		cmd.SetOut(b)
		require.NoError(t, cmd.Execute())
		assert.Contains(t, b.String(), "keyed-window-count\n")
		assert.Contains(t, b.String(), "window-rank-scan (ordered backends only)")
	})

	t.Run("Version", func(t *testing.T) {
		b := bytes.NewBufferString("")
		cmd := NewVersionCommand()
		cmd.SetOut(b)
		require.NoError(t, cmd.Execute())
		assert.Contains(t, b.String(), "Version: ")
	})
}

func testRunConfig(query string, kind state.Kind, dir string) *config.RunConfig {
	conf := &config.RunConfig{Query: query, Backend: string(kind), DataDir: dir, Workers: 2}
	conf.Window = config.WindowConfig{Slide: time.Second, SliceCount: 3, SliceWidth: time.Second}
	conf.Generator = config.GeneratorConfig{Rate: 100, Keys: 10, Duration: 5 * time.Second, Epoch: 100 * time.Millisecond, Seed: 1}
	return conf
}

func TestRun(t *testing.T) {
	ctx := logging.WithLogger(context.Background(), logging.NewNopLogger())
	summary, err := run(ctx, testRunConfig("window-count", state.KindMemory, t.TempDir()))
	require.NoError(t, err)
	// windows end at 3s..7s, every worker reports a count for each
	assert.Len(t, summary.windows, 5)
	for w, n := range summary.windows {
		assert.Equal(t, uint64(2), n, "window %d", w)
	}
	assert.Equal(t, uint64(10), summary.results)
}

func TestRun_OnDisk(t *testing.T) {
	ctx := logging.WithLogger(context.Background(), logging.NewNopLogger())
	for _, kind := range []state.Kind{state.KindLSM, state.KindLSMMerge} {
		t.Run(string(kind), func(t *testing.T) {
			summary, err := run(ctx, testRunConfig("keyed-window-count-scan", kind, t.TempDir()))
			require.NoError(t, err)
			assert.Len(t, summary.windows, 5)
		})
	}
}

func TestRun_RejectsUnorderedBackend(t *testing.T) {
	ctx := logging.WithLogger(context.Background(), logging.NewNopLogger())
	_, err := run(ctx, testRunConfig("window-rank-scan", state.KindLog, t.TempDir()))
	assert.ErrorIs(t, err, state.ErrIterationUnsupported)
}
