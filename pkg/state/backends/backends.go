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

// Package backends builds a state backend of any supported kind.
package backends

import (
	"context"
	"os"
	"path/filepath"

	"github.com/cockroachdb/errors"

	"github.com/numaproj/panestate/pkg/state"
	"github.com/numaproj/panestate/pkg/state/logstore"
	"github.com/numaproj/panestate/pkg/state/lsm"
	"github.com/numaproj/panestate/pkg/state/memory"
)

// Config selects and tunes a backend.
type Config struct {
	Kind state.Kind
	// DataDir is the parent of the per-backend directories of the on-disk kinds.
	DataDir string
	Log     logstore.Options
	LSM     lsm.Options
	// KeepFiles keeps on-disk state after the backend is closed.
	KeepFiles bool
}

// ParseKind validates a backend kind name.
func ParseKind(s string) (state.Kind, error) {
	for _, k := range state.Kinds {
		if string(k) == s {
			return k, nil
		}
	}
	return "", errors.Newf("unknown state backend %q, expected one of %v", s, state.Kinds)
}

// New opens a backend in a fresh directory under DataDir. name distinguishes
// backends of different workers.
func New(ctx context.Context, cfg Config, name string) (state.Backend, error) {
	switch cfg.Kind {
	case state.KindMemory:
		return memory.NewMemStore(ctx), nil
	case state.KindLog:
		dir, err := freshDir(cfg.DataDir, name)
		if err != nil {
			return nil, err
		}
		opts := cfg.Log
		opts.Name, opts.Dir, opts.RemoveOnClose = name, dir, !cfg.KeepFiles
		return logstore.NewLogStore(ctx, opts)
	case state.KindLSM, state.KindLSMMerge:
		dir, err := freshDir(cfg.DataDir, name)
		if err != nil {
			return nil, err
		}
		opts := cfg.LSM
		opts.Name, opts.Dir, opts.RemoveOnClose = name, dir, !cfg.KeepFiles
		if cfg.Kind == state.KindLSM {
			return lsm.NewReadWriteStore(ctx, opts)
		}
		return lsm.NewMergeStore(ctx, opts)
	default:
		return nil, errors.Newf("unknown state backend %q", cfg.Kind)
	}
}

func freshDir(parent, name string) (string, error) {
	if parent == "" {
		parent = "."
	}
	if err := os.MkdirAll(parent, 0755); err != nil {
		return "", errors.Wrapf(err, "creating data directory %s", parent)
	}
	dir, err := os.MkdirTemp(parent, filepath.Base(name)+"-")
	if err != nil {
		return "", errors.Wrap(err, "creating backend directory")
	}
	return dir, nil
}
