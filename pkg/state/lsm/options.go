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

package lsm

import (
	"github.com/cockroachdb/pebble"
	"github.com/cockroachdb/pebble/bloom"
)

const (
	DefaultBlockSize       = 4 << 10
	DefaultCacheSize       = 64 << 20
	DefaultWriteBufferSize = 64 << 20
	numLevels              = 7
)

// Options configures an LSM backend.
type Options struct {
	Name string
	// Dir holds the database files.
	Dir string
	// BlockSize is the data block size of every level.
	BlockSize int
	// CacheSize is the size of the block cache in bytes.
	CacheSize int64
	// WriteBufferSize is the size of a memtable in bytes.
	WriteBufferSize uint64
	// HashIndexSize, when set, enables bloom filters on every level and adds
	// that many bytes to the block cache to hold them.
	HashIndexSize int64
	// RemoveOnClose deletes Dir when the backend is closed.
	RemoveOnClose bool
}

func (o Options) withDefaults() Options {
	if o.BlockSize <= 0 {
		o.BlockSize = DefaultBlockSize
	}
	if o.CacheSize <= 0 {
		o.CacheSize = DefaultCacheSize
	}
	if o.WriteBufferSize == 0 {
		o.WriteBufferSize = DefaultWriteBufferSize
	}
	return o
}

// pebbleOptions translates the tuning knobs. State is rebuilt from the input
// on restart, so the WAL is disabled.
func (o Options) pebbleOptions(cache *pebble.Cache) *pebble.Options {
	opts := &pebble.Options{
		Cache:        cache,
		MemTableSize: o.WriteBufferSize,
		DisableWAL:   true,
		Levels:       make([]pebble.LevelOptions, numLevels),
	}
	for i := range opts.Levels {
		opts.Levels[i].BlockSize = o.BlockSize
		if o.HashIndexSize > 0 {
			opts.Levels[i].FilterPolicy = bloom.FilterPolicy(10)
		}
	}
	return opts
}
