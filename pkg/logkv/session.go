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

import (
	"sync"

	"github.com/cockroachdb/errors"
	"go.uber.org/atomic"
)

// CombineFunc merges delta into an existing value.
type CombineFunc func(existing, delta []byte) ([]byte, error)

type opKind int

const (
	opRead opKind = iota
	opRMW
)

// PendingOp is an operation waiting on a disk read.
type PendingOp struct {
	serial  uint64
	kind    opKind
	key     string
	delta   []byte
	combine CombineFunc
	done    chan struct{}
	value   []byte
	err     error
	retired bool
}

// Serial is the session serial number of the operation.
func (p *PendingOp) Serial() uint64 { return p.serial }

// Done is closed when the disk read has finished.
func (p *PendingOp) Done() <-chan struct{} { return p.done }

// Result returns the value read from disk. It is only valid after Done is closed.
func (p *PendingOp) Result() ([]byte, error) { return p.value, p.err }

// Session issues operations against a Store. Operations on one key are applied
// in the order they are issued, even when some of them go pending.
type Session struct {
	store  *Store
	serial uint64

	pendingByKey map[string]*PendingOp
	inflight     atomic.Int64

	completedLock sync.Mutex
	completed     []*PendingOp
	err           error
}

// Serial returns the serial number of the last issued operation.
func (s *Session) Serial() uint64 { return s.serial }

// Inflight is the number of disk reads not finished yet.
func (s *Session) Inflight() int64 { return s.inflight.Load() }

// Completed is the number of finished operations not retired by Refresh yet.
func (s *Session) Completed() int {
	s.completedLock.Lock()
	defer s.completedLock.Unlock()
	return len(s.completed)
}

// Upsert stores value under key.
func (s *Session) Upsert(key, value []byte) (Status, error) {
	if err := s.begin(key); err != nil {
		return StatusOK, err
	}
	s.store.mu.Lock()
	defer s.store.mu.Unlock()
	if err := s.store.check(); err != nil {
		return StatusOK, err
	}
	return StatusOK, s.store.put(key, value)
}

// Read returns the value under key. When the record is on disk the status is
// StatusPending and the returned op yields the value once read.
func (s *Session) Read(key []byte) (Status, []byte, *PendingOp, error) {
	if err := s.begin(key); err != nil {
		return StatusOK, nil, nil, err
	}
	s.store.mu.Lock()
	if err := s.store.check(); err != nil {
		s.store.mu.Unlock()
		return StatusOK, nil, nil, err
	}
	addr, ok := s.store.lookup(key)
	if !ok {
		s.store.mu.Unlock()
		return StatusNotFound, nil, nil, nil
	}
	r, inMemory, err := s.store.readMemory(addr)
	s.store.mu.Unlock()
	if err != nil {
		return StatusOK, nil, nil, err
	}
	if inMemory {
		v := make([]byte, len(r.value))
		copy(v, r.value)
		return StatusOK, v, nil, nil
	}
	if v, ok := s.store.cache.Get(addr); ok {
		return StatusOK, v, nil, nil
	}
	op := &PendingOp{serial: s.serial, kind: opRead, key: string(key), done: make(chan struct{})}
	s.issue(op, addr)
	return StatusPending, nil, op, nil
}

// RMW merges delta into the value under key, or stores delta when the key is
// absent. It goes pending when the current record is on disk; the merge is
// applied when the session retires the operation.
func (s *Session) RMW(key, delta []byte, combine CombineFunc) (Status, error) {
	if err := s.begin(key); err != nil {
		return StatusOK, err
	}
	s.store.mu.Lock()
	if err := s.store.check(); err != nil {
		s.store.mu.Unlock()
		return StatusOK, err
	}
	addr, ok := s.store.lookup(key)
	if !ok {
		defer s.store.mu.Unlock()
		return StatusOK, s.store.put(key, delta)
	}
	r, inMemory, err := s.store.readMemory(addr)
	if err != nil {
		s.store.mu.Unlock()
		return StatusOK, err
	}
	if inMemory {
		defer s.store.mu.Unlock()
		merged, err := combine(r.value, delta)
		if err != nil {
			return StatusOK, err
		}
		return StatusOK, s.store.put(key, merged)
	}
	s.store.mu.Unlock()

	d := make([]byte, len(delta))
	copy(d, delta)
	op := &PendingOp{serial: s.serial, kind: opRMW, key: string(key), delta: d, combine: combine, done: make(chan struct{})}
	if v, ok := s.store.cache.Get(addr); ok {
		op.value = v
		close(op.done)
		return StatusOK, s.retire(op)
	}
	s.issue(op, addr)
	return StatusPending, nil
}

// Delete removes key.
func (s *Session) Delete(key []byte) (Status, error) {
	if err := s.begin(key); err != nil {
		return StatusOK, err
	}
	s.store.mu.Lock()
	defer s.store.mu.Unlock()
	if err := s.store.check(); err != nil {
		return StatusOK, err
	}
	if _, ok := s.store.lookup(key); !ok {
		return StatusNotFound, nil
	}
	if _, err := s.store.append(key, nil, flagTombstone); err != nil {
		return StatusOK, err
	}
	s.store.unsetAddr(key)
	return StatusOK, nil
}

// Refresh retires completed operations, applying pending read-modify-writes,
// and lets the store evict flushed pages.
func (s *Session) Refresh() error {
	s.completedLock.Lock()
	completed := s.completed
	s.completed = nil
	s.completedLock.Unlock()

	for _, op := range completed {
		if err := s.retire(op); err != nil && s.err == nil {
			s.err = err
		}
	}
	s.store.mu.Lock()
	s.store.evict()
	storeErr := s.store.check()
	s.store.mu.Unlock()
	pendingOperations.WithLabelValues(s.store.opts.Name).Set(float64(s.inflight.Load()))

	err := s.err
	s.err = nil
	if err == nil {
		err = storeErr
	}
	return err
}

// CompletePending retires completed operations. With wait it first blocks
// until every outstanding disk read has finished.
func (s *Session) CompletePending(wait bool) error {
	if wait {
		for _, op := range s.pendingByKey {
			<-op.done
		}
	}
	return s.Refresh()
}

// begin advances the serial number and resolves any pending operation on key
// so operations on one key apply in issue order.
func (s *Session) begin(key []byte) error {
	s.serial++
	op, ok := s.pendingByKey[string(key)]
	if !ok {
		return nil
	}
	<-op.done
	return s.retire(op)
}

func (s *Session) issue(op *PendingOp, addr uint64) {
	s.pendingByKey[op.key] = op
	s.inflight.Inc()
	s.store.io.Add(1)
	go func() {
		defer s.store.io.Done()
		op.value, op.err = s.store.readDisk(addr)
		s.completedLock.Lock()
		s.completed = append(s.completed, op)
		s.completedLock.Unlock()
		s.inflight.Dec()
		close(op.done)
	}()
}

// retire applies a finished operation once.
func (s *Session) retire(op *PendingOp) error {
	if op.retired {
		return nil
	}
	op.retired = true
	if s.pendingByKey[op.key] == op {
		delete(s.pendingByKey, op.key)
	}
	if op.err != nil || op.kind != opRMW {
		return op.err
	}
	merged, err := op.combine(op.value, op.delta)
	if err != nil {
		return errors.Wrapf(err, "applying pending rmw %d", op.serial)
	}
	s.store.mu.Lock()
	defer s.store.mu.Unlock()
	if err := s.store.check(); err != nil {
		return err
	}
	return s.store.put([]byte(op.key), merged)
}
