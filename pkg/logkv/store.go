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

/*
Package logkv is an embedded key-value engine built on a hybrid log.

Records are appended to a log whose most recent pages live in memory and whose
older pages live in a file. A hash index maps every live key to the address of
its latest record. Updates to records still in the mutable tail page are done
in place; everything else appends a new record.

Reads and read-modify-writes of records that have left memory are served
asynchronously: they return StatusPending and complete on an I/O goroutine.
Completed operations are only retired, and memory only reclaimed, when the
owning Session calls Refresh or CompletePending. A session that never
refreshes keeps accumulating completed operations and in-memory pages; this
grows memory but never loses data.
*/
package logkv

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/spaolacci/murmur3"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/numaproj/panestate/pkg/shared/logging"
)

const LogFileName = "hlog.log"

var (
	// ErrChecksumMismatch indicates a corrupted record.
	ErrChecksumMismatch = errors.New("record checksum does not match")
	// ErrRecordTooLarge is returned for records that do not fit in a page.
	ErrRecordTooLarge = errors.New("record does not fit in a log page")
	// ErrClosed is returned by operations on a closed store.
	ErrClosed = errors.New("log store is closed")
)

// Status is the outcome of a session operation.
type Status int

const (
	StatusOK Status = iota
	StatusNotFound
	StatusPending
)

func (s Status) String() string {
	switch s {
	case StatusOK:
		return "OK"
	case StatusNotFound:
		return "NotFound"
	case StatusPending:
		return "Pending"
	default:
		return "Unknown"
	}
}

type indexEntry struct {
	key  string
	addr uint64
}

// Store is a hybrid log with a hash index. All mutations go through a Session.
type Store struct {
	opts Options
	fp   *os.File
	log  *zap.SugaredLogger

	mu sync.Mutex
	// buckets is the hash index, TableSize buckets of key to address
	buckets [][]indexEntry
	// pages holds the in-memory part of the log, by page number
	pages   map[uint64][]byte
	flushed map[uint64]bool
	// head is the lowest address held in memory
	head uint64
	// tail is the address of the next append
	tail     uint64
	flushErr error
	closed   bool

	cache *lru.Cache[uint64, []byte]
	// io tracks flushes and disk reads in flight
	io sync.WaitGroup
}

// Open opens the store in opts.Dir, rebuilding the index from an existing log.
func Open(ctx context.Context, opts Options) (*Store, error) {
	o := opts.withDefaults()
	if err := os.MkdirAll(o.Dir, 0755); err != nil {
		return nil, errors.Wrapf(err, "creating log directory %s", o.Dir)
	}
	fp, err := os.OpenFile(filepath.Join(o.Dir, LogFileName), os.O_RDWR|os.O_CREATE, 0644)
	if err != nil {
		return nil, errors.Wrap(err, "opening log file")
	}
	cache, err := lru.New[uint64, []byte](o.ReadCacheSize)
	if err != nil {
		_ = fp.Close()
		return nil, err
	}
	s := &Store{
		opts:    o,
		fp:      fp,
		log:     logging.FromContext(ctx).With("store", o.Name),
		buckets: make([][]indexEntry, o.TableSize),
		pages:   make(map[uint64][]byte),
		flushed: make(map[uint64]bool),
		cache:   cache,
	}
	recovered, err := s.recover()
	if err != nil {
		_ = fp.Close()
		return nil, err
	}
	s.pages[s.tail/o.PageSize] = make([]byte, o.PageSize)
	s.head = s.tail
	s.log.Infow("Opened log store",
		zap.Uint64("tableSize", o.TableSize),
		zap.Uint64("logSize", o.LogSize),
		zap.Uint64("pageSize", o.PageSize),
		zap.Int("recoveredRecords", recovered))
	return s, nil
}

// Size returns the tail address of the log.
func (s *Store) Size() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tail
}

// Head returns the lowest log address still held in memory.
func (s *Store) Head() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.head
}

// StartSession returns a new session. A session must be used by one goroutine.
func (s *Store) StartSession() *Session {
	return &Session{
		store:        s,
		pendingByKey: make(map[string]*PendingOp),
	}
}

func (s *Store) bucket(key []byte) uint64 {
	return murmur3.Sum64(key) & (s.opts.TableSize - 1)
}

// lookup returns the address of the latest record of key. Caller holds mu.
func (s *Store) lookup(key []byte) (uint64, bool) {
	for _, e := range s.buckets[s.bucket(key)] {
		if e.key == string(key) {
			return e.addr, true
		}
	}
	return 0, false
}

// setAddr points key at addr. Caller holds mu.
func (s *Store) setAddr(key []byte, addr uint64) {
	b := s.bucket(key)
	for i, e := range s.buckets[b] {
		if e.key == string(key) {
			s.buckets[b][i].addr = addr
			return
		}
	}
	s.buckets[b] = append(s.buckets[b], indexEntry{key: string(key), addr: addr})
}

// unsetAddr removes key from the index. Caller holds mu.
func (s *Store) unsetAddr(key []byte) {
	b := s.bucket(key)
	for i, e := range s.buckets[b] {
		if e.key == string(key) {
			last := len(s.buckets[b]) - 1
			s.buckets[b][i] = s.buckets[b][last]
			s.buckets[b] = s.buckets[b][:last]
			return
		}
	}
}

func (s *Store) check() error {
	if s.closed {
		return ErrClosed
	}
	return s.flushErr
}

// readMemory returns the record at addr if it is still in memory. Caller holds mu.
func (s *Store) readMemory(addr uint64) (record, bool, error) {
	if addr < s.head {
		return record{}, false, nil
	}
	page, ok := s.pages[addr/s.opts.PageSize]
	if !ok {
		return record{}, false, errors.AssertionFailedf("page of address %d is not in memory", addr)
	}
	r, err := decodeRecordAt(page, addr%s.opts.PageSize)
	return r, true, err
}

// append writes a record at the tail and indexes it. Caller holds mu.
func (s *Store) append(key, value []byte, flags uint32) (uint64, error) {
	size := recordSize(key, value)
	if size > s.opts.PageSize {
		return 0, errors.Wrapf(ErrRecordTooLarge, "record of %d bytes, page of %d bytes", size, s.opts.PageSize)
	}
	if s.tail%s.opts.PageSize+size > s.opts.PageSize {
		s.sealPage(s.tail / s.opts.PageSize)
		s.tail = (s.tail/s.opts.PageSize + 1) * s.opts.PageSize
		s.pages[s.tail/s.opts.PageSize] = make([]byte, s.opts.PageSize)
	}
	page := s.pages[s.tail/s.opts.PageSize]
	off := s.tail % s.opts.PageSize
	encodeRecord(page[off:off+size], key, value, flags)
	addr := s.tail
	// Only advance the tail once the record is fully written.
	s.tail += size
	if s.tail%s.opts.PageSize == 0 {
		s.sealPage(s.tail/s.opts.PageSize - 1)
		s.pages[s.tail/s.opts.PageSize] = make([]byte, s.opts.PageSize)
	}
	logEntriesCount.WithLabelValues(s.opts.Name).Inc()
	logEntriesBytes.WithLabelValues(s.opts.Name).Add(float64(size))
	logSize.WithLabelValues(s.opts.Name).Set(float64(s.tail))
	return addr, nil
}

// mutable reports whether addr lies in the open tail page. Caller holds mu.
func (s *Store) mutable(addr uint64) bool {
	return addr/s.opts.PageSize == s.tail/s.opts.PageSize
}

// put stores value under key, in place when the old record allows it. Caller holds mu.
func (s *Store) put(key, value []byte) error {
	if addr, ok := s.lookup(key); ok && s.mutable(addr) {
		page := s.pages[addr/s.opts.PageSize]
		off := addr % s.opts.PageSize
		r, err := decodeRecordAt(page, off)
		if err != nil {
			return err
		}
		if len(r.value) == len(value) {
			encodeRecord(page[off:off+r.size()], key, value, 0)
			inPlaceUpdates.WithLabelValues(s.opts.Name).Inc()
			return nil
		}
	}
	addr, err := s.append(key, value, 0)
	if err != nil {
		return err
	}
	s.setAddr(key, addr)
	return nil
}

// sealPage writes a full page to the log file in the background. Caller holds mu.
func (s *Store) sealPage(page uint64) {
	buf := s.pages[page]
	s.io.Add(1)
	go func() {
		defer s.io.Done()
		err := s.writePage(page, buf)
		s.mu.Lock()
		defer s.mu.Unlock()
		if err != nil {
			if s.flushErr == nil {
				s.flushErr = err
			}
			return
		}
		s.flushed[page] = true
	}()
}

func (s *Store) writePage(page uint64, buf []byte) (err error) {
	defer func() {
		if err != nil {
			logErrors.WithLabelValues(s.opts.Name, "writePage").Inc()
		}
	}()
	start := time.Now()
	wrote, err := s.fp.WriteAt(buf, int64(page*s.opts.PageSize))
	if wrote != len(buf) {
		return errors.Wrapf(err, "expected to write %d, but wrote only %d", len(buf), wrote)
	}
	if err != nil {
		return err
	}
	if s.opts.SyncOnFlush {
		if err = s.fp.Sync(); err != nil {
			return err
		}
	}
	pageFlushTime.WithLabelValues(s.opts.Name).Observe(float64(time.Since(start).Milliseconds()))
	return nil
}

// evict drops flushed pages from memory while the in-memory log exceeds
// LogSize. The open page is never evicted. Caller holds mu.
func (s *Store) evict() {
	openPage := s.tail / s.opts.PageSize
	for s.tail-s.head > s.opts.LogSize {
		page := s.head / s.opts.PageSize
		if page >= openPage || !s.flushed[page] {
			return
		}
		delete(s.pages, page)
		delete(s.flushed, page)
		s.head = (page + 1) * s.opts.PageSize
		evictedPages.WithLabelValues(s.opts.Name).Inc()
	}
}

// readDisk reads the value at addr from the log file, going through the read cache.
func (s *Store) readDisk(addr uint64) ([]byte, error) {
	if v, ok := s.cache.Get(addr); ok {
		return v, nil
	}
	r, err := readRecord(s.fp, addr, s.opts.PageSize)
	if err != nil {
		logErrors.WithLabelValues(s.opts.Name, "readDisk").Inc()
		return nil, err
	}
	s.cache.Add(addr, r.value)
	return r.value, nil
}

// Close waits for in-flight I/O, writes the open page and closes the log file.
func (s *Store) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	tail := s.tail
	open := tail / s.opts.PageSize
	buf := s.pages[open][:tail%s.opts.PageSize]
	s.mu.Unlock()

	s.io.Wait()
	var err error
	if len(buf) > 0 {
		err = multierr.Append(err, s.writePage(open, buf))
	}
	err = multierr.Append(err, s.fp.Sync())
	err = multierr.Append(err, s.fp.Close())
	s.mu.Lock()
	err = multierr.Append(err, s.flushErr)
	s.mu.Unlock()
	s.log.Infow("Closed log store", zap.Uint64("size", tail))
	return err
}
