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

package logkv

const (
	defaultTableSize     = 1 << 16
	defaultLogSize       = 1 << 28
	defaultPageSize      = 1 << 22
	minPageSize          = 1 << 10
	defaultReadCacheSize = 1 << 12
)

// Options configures a Store.
type Options struct {
	// Name labels the metrics of the store.
	Name string
	// Dir holds the log file. It is created if missing.
	Dir string
	// TableSize is the number of hash index buckets, rounded up to a power of two.
	TableSize uint64
	// LogSize is the number of log bytes kept in memory before pages are evicted.
	LogSize uint64
	// PageSize is the unit of flushing and eviction. Records never span pages.
	PageSize uint64
	// ReadCacheSize is the number of records read back from disk kept in a cache.
	ReadCacheSize int
	// SyncOnFlush fsyncs the log file after every page flush.
	SyncOnFlush bool
}

func (o *Options) withDefaults() Options {
	opts := *o
	if opts.Name == "" {
		opts.Name = "default"
	}
	if opts.TableSize == 0 {
		opts.TableSize = defaultTableSize
	}
	opts.TableSize = nextPowerOfTwo(opts.TableSize)
	if opts.LogSize == 0 {
		opts.LogSize = defaultLogSize
	}
	if opts.PageSize == 0 {
		opts.PageSize = defaultPageSize
	}
	// keep at least two pages in memory
	if opts.PageSize > opts.LogSize/2 {
		opts.PageSize = opts.LogSize / 2
	}
	if opts.PageSize < minPageSize {
		opts.PageSize = minPageSize
	}
	if opts.ReadCacheSize <= 0 {
		opts.ReadCacheSize = defaultReadCacheSize
	}
	return opts
}

func nextPowerOfTwo(v uint64) uint64 {
	n := uint64(1)
	for n < v {
		n <<= 1
	}
	return n
}
