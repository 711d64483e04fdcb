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
	"bytes"
	"encoding/binary"
	"hash/crc32"
	"io"

	"github.com/cockroachdb/errors"
)

const (
	IEEE             = 0xedb88320
	RecordHeaderSize = 16
	flagTombstone    = 1
)

var crcTable = crc32.MakeTable(IEEE)

// recordHeaderPreamble precedes every record in the log.
type recordHeaderPreamble struct {
	KeyLen   uint32
	ValueLen uint32
	Flags    uint32
	Checksum uint32
}

func calculateChecksum(key, value []byte) uint32 {
	return crc32.Update(crc32.Checksum(key, crcTable), crcTable, value)
}

func recordSize(key, value []byte) uint64 {
	return uint64(RecordHeaderSize + len(key) + len(value))
}

// encodeRecord writes a record into dst, which must be at least recordSize bytes.
// The format is
//
//	+------------------+--------------------+----------------+--------------+------------+--------------+
//	| key-len (uint32) | value-len (uint32) | flags (uint32) | CRC (uint32) | key []byte | value []byte |
//	+------------------+--------------------+----------------+--------------+------------+--------------+
//
// A header with a zero key length marks the unused tail of a page.
func encodeRecord(dst, key, value []byte, flags uint32) {
	binary.LittleEndian.PutUint32(dst[0:], uint32(len(key)))
	binary.LittleEndian.PutUint32(dst[4:], uint32(len(value)))
	binary.LittleEndian.PutUint32(dst[8:], flags)
	binary.LittleEndian.PutUint32(dst[12:], calculateChecksum(key, value))
	copy(dst[RecordHeaderSize:], key)
	copy(dst[RecordHeaderSize+len(key):], value)
}

// record is a decoded view into a page or a disk buffer.
type record struct {
	header recordHeaderPreamble
	key    []byte
	value  []byte
}

func (r record) tombstone() bool {
	return r.header.Flags&flagTombstone != 0
}

func (r record) size() uint64 {
	return uint64(RecordHeaderSize) + uint64(r.header.KeyLen) + uint64(r.header.ValueLen)
}

// decodeRecordAt decodes the record starting at buf[off:] without copying.
func decodeRecordAt(buf []byte, off uint64) (record, error) {
	if off+RecordHeaderSize > uint64(len(buf)) {
		return record{}, io.ErrUnexpectedEOF
	}
	var hp recordHeaderPreamble
	if err := binary.Read(bytes.NewReader(buf[off:off+RecordHeaderSize]), binary.LittleEndian, &hp); err != nil {
		return record{}, err
	}
	end := off + RecordHeaderSize + uint64(hp.KeyLen) + uint64(hp.ValueLen)
	if end > uint64(len(buf)) {
		return record{}, io.ErrUnexpectedEOF
	}
	keyStart := off + RecordHeaderSize
	r := record{
		header: hp,
		key:    buf[keyStart : keyStart+uint64(hp.KeyLen)],
		value:  buf[keyStart+uint64(hp.KeyLen) : end],
	}
	return r, nil
}

// readRecord reads the record at addr from r. Records larger than limit are
// rejected. Returns ErrChecksumMismatch to indicate a corrupted record.
func readRecord(r io.ReaderAt, addr, limit uint64) (record, error) {
	head := make([]byte, RecordHeaderSize)
	if _, err := r.ReadAt(head, int64(addr)); err != nil {
		return record{}, err
	}
	var hp recordHeaderPreamble
	if err := binary.Read(bytes.NewReader(head), binary.LittleEndian, &hp); err != nil {
		return record{}, err
	}
	if RecordHeaderSize+uint64(hp.KeyLen)+uint64(hp.ValueLen) > limit {
		return record{}, errors.Wrapf(ErrChecksumMismatch, "record at %d claims %d bytes", addr, uint64(hp.KeyLen)+uint64(hp.ValueLen))
	}
	body := make([]byte, uint64(hp.KeyLen)+uint64(hp.ValueLen))
	if n, err := r.ReadAt(body, int64(addr)+RecordHeaderSize); n != len(body) {
		return record{}, errors.Wrapf(err, "expected to read %d bytes at %d, but read only %d", len(body), addr, n)
	}
	rec := record{header: hp, key: body[:hp.KeyLen], value: body[hp.KeyLen:]}
	if calculateChecksum(rec.key, rec.value) != hp.Checksum {
		return record{}, errors.Wrapf(ErrChecksumMismatch, "record at %d", addr)
	}
	return rec, nil
}
