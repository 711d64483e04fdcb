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
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/numaproj/panestate/pkg/shared/codec"
	"github.com/numaproj/panestate/pkg/shared/logging"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func testContext() context.Context {
	return logging.WithLogger(context.Background(), logging.NewNopLogger())
}

func key(i int) []byte {
	return []byte(fmt.Sprintf("k%04d", i))
}

func u64(v uint64) []byte {
	return codec.Uint64{}.Encode(v)
}

func sum(existing, delta []byte) ([]byte, error) {
	return codec.Sum{}.Combine(existing, delta)
}

// openSmall opens a store that keeps two 1KiB pages in memory.
func openSmall(t *testing.T, dir string) *Store {
	s, err := Open(testContext(), Options{Name: t.Name(), Dir: dir, TableSize: 64, LogSize: 2048, PageSize: 1024})
	require.NoError(t, err)
	return s
}

// fill writes n keys and waits until the first one has left memory.
func fill(t *testing.T, s *Store, sess *Session, n int) {
	for i := 0; i < n; i++ {
		st, err := sess.Upsert(key(i), u64(uint64(i)))
		require.NoError(t, err)
		require.Equal(t, StatusOK, st)
	}
	require.Eventually(t, func() bool {
		if err := sess.Refresh(); err != nil {
			return false
		}
		return s.Head() > 0
	}, 5*time.Second, 10*time.Millisecond)
}

func TestOptions_Defaults(t *testing.T) {
	o := (&Options{TableSize: 1000}).withDefaults()
	assert.Equal(t, uint64(1024), o.TableSize)
	assert.Equal(t, uint64(defaultLogSize), o.LogSize)
	assert.Equal(t, uint64(defaultPageSize), o.PageSize)

	o = (&Options{LogSize: 100}).withDefaults()
	assert.Equal(t, uint64(minPageSize), o.PageSize)
}

func TestStore_InMemory(t *testing.T) {
	s := openSmall(t, t.TempDir())
	defer func() { assert.NoError(t, s.Close()) }()
	sess := s.StartSession()

	st, v, _, err := sess.Read([]byte("missing"))
	require.NoError(t, err)
	assert.Equal(t, StatusNotFound, st)
	assert.Nil(t, v)

	_, err = sess.Upsert([]byte("a"), u64(1))
	require.NoError(t, err)
	size := s.Size()
	// same sized values are updated in place
	_, err = sess.Upsert([]byte("a"), u64(2))
	require.NoError(t, err)
	assert.Equal(t, size, s.Size())

	st, err = sess.RMW([]byte("a"), u64(40), sum)
	require.NoError(t, err)
	assert.Equal(t, StatusOK, st)
	st, v, _, err = sess.Read([]byte("a"))
	require.NoError(t, err)
	assert.Equal(t, StatusOK, st)
	assert.Equal(t, u64(42), v)

	st, err = sess.RMW([]byte("b"), u64(5), sum)
	require.NoError(t, err)
	assert.Equal(t, StatusOK, st)
	_, v, _, err = sess.Read([]byte("b"))
	require.NoError(t, err)
	assert.Equal(t, u64(5), v)

	st, err = sess.Delete([]byte("a"))
	require.NoError(t, err)
	assert.Equal(t, StatusOK, st)
	st, err = sess.Delete([]byte("a"))
	require.NoError(t, err)
	assert.Equal(t, StatusNotFound, st)
	st, _, _, err = sess.Read([]byte("a"))
	require.NoError(t, err)
	assert.Equal(t, StatusNotFound, st)
	assert.Equal(t, uint64(10), sess.Serial())
}

func TestStore_RecordTooLarge(t *testing.T) {
	s := openSmall(t, t.TempDir())
	defer func() { assert.NoError(t, s.Close()) }()
	_, err := s.StartSession().Upsert([]byte("big"), make([]byte, 2000))
	assert.True(t, errors.Is(err, ErrRecordTooLarge))
}

func TestStore_PendingRead(t *testing.T) {
	s := openSmall(t, t.TempDir())
	defer func() { assert.NoError(t, s.Close()) }()
	sess := s.StartSession()
	fill(t, s, sess, 300)

	st, v, op, err := sess.Read(key(0))
	require.NoError(t, err)
	require.Equal(t, StatusPending, st)
	assert.Nil(t, v)
	<-op.Done()
	v, err = op.Result()
	require.NoError(t, err)
	assert.Equal(t, u64(0), v)
	require.NoError(t, sess.CompletePending(true))
	assert.Equal(t, 0, sess.Completed())

	// served from the read cache the second time
	st, v, _, err = sess.Read(key(0))
	require.NoError(t, err)
	assert.Equal(t, StatusOK, st)
	assert.Equal(t, u64(0), v)

	// the newest keys are still in memory
	st, v, _, err = sess.Read(key(299))
	require.NoError(t, err)
	assert.Equal(t, StatusOK, st)
	assert.Equal(t, u64(299), v)
}

func TestStore_PendingRMW(t *testing.T) {
	s := openSmall(t, t.TempDir())
	defer func() { assert.NoError(t, s.Close()) }()
	sess := s.StartSession()
	fill(t, s, sess, 300)

	st, err := sess.RMW(key(1), u64(10), sum)
	require.NoError(t, err)
	require.Equal(t, StatusPending, st)

	// a later operation on the same key sees the merged value
	st, err = sess.RMW(key(1), u64(100), sum)
	require.NoError(t, err)
	assert.Equal(t, StatusOK, st)
	st, v, _, err := sess.Read(key(1))
	require.NoError(t, err)
	assert.Equal(t, StatusOK, st)
	assert.Equal(t, u64(111), v)

	st, err = sess.RMW(key(2), u64(10), sum)
	require.NoError(t, err)
	require.Equal(t, StatusPending, st)
	require.NoError(t, sess.CompletePending(true))
	_, v, _, err = sess.Read(key(2))
	require.NoError(t, err)
	assert.Equal(t, u64(12), v)
}

func TestStore_CompletionsAccumulateWithoutRefresh(t *testing.T) {
	s := openSmall(t, t.TempDir())
	defer func() { assert.NoError(t, s.Close()) }()
	sess := s.StartSession()
	fill(t, s, sess, 300)

	var ops []*PendingOp
	for i := 3; i < 8; i++ {
		st, _, op, err := sess.Read(key(i))
		require.NoError(t, err)
		require.Equal(t, StatusPending, st)
		ops = append(ops, op)
	}
	for _, op := range ops {
		<-op.Done()
	}
	assert.Equal(t, 5, sess.Completed())
	assert.Equal(t, int64(0), sess.Inflight())
	require.NoError(t, sess.Refresh())
	assert.Equal(t, 0, sess.Completed())
}

func TestStore_Recover(t *testing.T) {
	dir := t.TempDir()
	s := openSmall(t, dir)
	sess := s.StartSession()
	for i := 0; i < 100; i++ {
		_, err := sess.Upsert(key(i), u64(uint64(i)))
		require.NoError(t, err)
	}
	_, err := sess.Delete(key(7))
	require.NoError(t, err)
	_, err = sess.Upsert(key(8), u64(800))
	require.NoError(t, err)
	require.NoError(t, s.Close())

	s = openSmall(t, dir)
	defer func() { assert.NoError(t, s.Close()) }()
	sess = s.StartSession()
	read := func(k []byte) (Status, []byte) {
		st, v, op, err := sess.Read(k)
		require.NoError(t, err)
		if st == StatusPending {
			<-op.Done()
			v, err = op.Result()
			require.NoError(t, err)
			st = StatusOK
		}
		return st, v
	}
	st, v := read(key(99))
	assert.Equal(t, StatusOK, st)
	assert.Equal(t, u64(99), v)
	st, v = read(key(8))
	assert.Equal(t, StatusOK, st)
	assert.Equal(t, u64(800), v)
	st, _ = read(key(7))
	assert.Equal(t, StatusNotFound, st)
	require.NoError(t, sess.CompletePending(true))
	assert.Zero(t, s.Size()%1024)
}

func TestStore_RecoverStopsAtCorruption(t *testing.T) {
	dir := t.TempDir()
	s := openSmall(t, dir)
	sess := s.StartSession()
	for i := 0; i < 10; i++ {
		_, err := sess.Upsert(key(i), u64(uint64(i)))
		require.NoError(t, err)
	}
	require.NoError(t, s.Close())

	// flip a value byte of the sixth record
	fp, err := os.OpenFile(filepath.Join(dir, LogFileName), os.O_RDWR, 0644)
	require.NoError(t, err)
	recSize := int64(recordSize(key(0), u64(0)))
	_, err = fp.WriteAt([]byte{0xff}, 5*recSize+RecordHeaderSize+5)
	require.NoError(t, err)
	require.NoError(t, fp.Close())

	s = openSmall(t, dir)
	defer func() { assert.NoError(t, s.Close()) }()
	sess = s.StartSession()
	st, _, op, err := sess.Read(key(4))
	require.NoError(t, err)
	require.Equal(t, StatusPending, st)
	<-op.Done()
	v, err := op.Result()
	require.NoError(t, err)
	assert.Equal(t, u64(4), v)

	for _, i := range []int{5, 9} {
		st, _, _, err = sess.Read(key(i))
		require.NoError(t, err)
		assert.Equal(t, StatusNotFound, st)
	}
	require.NoError(t, sess.CompletePending(true))
}

func TestStore_Closed(t *testing.T) {
	s := openSmall(t, t.TempDir())
	sess := s.StartSession()
	require.NoError(t, s.Close())
	require.NoError(t, s.Close())
	_, err := sess.Upsert([]byte("a"), u64(1))
	assert.True(t, errors.Is(err, ErrClosed))
}

func TestReadRecord_Checksum(t *testing.T) {
	buf := make([]byte, recordSize([]byte("key"), []byte("value")))
	encodeRecord(buf, []byte("key"), []byte("value"), 0)
	r, err := decodeRecordAt(buf, 0)
	require.NoError(t, err)
	assert.Equal(t, []byte("key"), r.key)
	assert.Equal(t, []byte("value"), r.value)
	assert.False(t, r.tombstone())

	buf[len(buf)-1] ^= 0xff
	dir := t.TempDir()
	p := filepath.Join(dir, "rec")
	require.NoError(t, os.WriteFile(p, buf, 0644))
	fp, err := os.Open(p)
	require.NoError(t, err)
	defer fp.Close()
	_, err = readRecord(fp, 0, 1024)
	assert.True(t, errors.Is(err, ErrChecksumMismatch))
}
