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
	"io"

	"github.com/cockroachdb/errors"
	"go.uber.org/zap"
)

// recover rebuilds the hash index by scanning the log file from the start.
// The scan stops at the first corrupted or truncated record, and appends
// resume on the page after the last valid record.
func (s *Store) recover() (int, error) {
	stat, err := s.fp.Stat()
	if err != nil {
		return 0, errors.Wrap(err, "stat log file")
	}
	size := uint64(stat.Size())
	pageSize := s.opts.PageSize
	var addr uint64
	var recovered int
	for addr < size {
		pageOff := addr % pageSize
		if pageOff+RecordHeaderSize > pageSize {
			addr = (addr/pageSize + 1) * pageSize
			continue
		}
		r, err := readRecord(s.fp, addr, pageSize-pageOff)
		if err != nil {
			if errors.Is(err, ErrChecksumMismatch) || errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
				logErrors.WithLabelValues(s.opts.Name, "recover").Inc()
				s.log.Warnw("Stopping log recovery at a corrupted record", zap.Uint64("address", addr), zap.Error(err))
				break
			}
			return recovered, err
		}
		if r.header.KeyLen == 0 {
			// unused tail of a page
			addr = (addr/pageSize + 1) * pageSize
			continue
		}
		if r.tombstone() {
			s.unsetAddr(r.key)
		} else {
			s.setAddr(r.key, addr)
		}
		recovered++
		addr += r.size()
	}
	if addr%pageSize != 0 {
		addr = (addr/pageSize + 1) * pageSize
	}
	s.tail = addr
	return recovered, nil
}
