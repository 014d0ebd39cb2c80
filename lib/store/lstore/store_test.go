package lstore

import (
	"bytes"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/Kain-Deterick/VK-Internship/lib/clock"
	"github.com/Kain-Deterick/VK-Internship/lib/db"
	"github.com/Kain-Deterick/VK-Internship/lib/db/engines/kvstorage"
	"github.com/Kain-Deterick/VK-Internship/lib/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var t0 = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

func newTestStore(t *testing.T) (*LocalStore, *clock.VirtualClock) {
	t.Helper()
	vc := clock.NewVirtualClock(t0)
	s := NewLocalStore("test", func() db.KVDB {
		return kvstorage.NewKVStorage(nil, &kvstorage.Options{Clock: vc})
	})
	return s, vc
}

// limitedDB only supports Set and Get
type limitedDB struct {
	db.KVDB
}

func (l limitedDB) SupportsFeature(f db.Feature) bool {
	return (db.FeatureSet|db.FeatureGet)&f == f
}

func TestSetGetRemove(t *testing.T) {
	s, _ := newTestStore(t)

	require.NoError(t, s.Set("k", []byte("v"), 0))

	value, ok, err := s.Get("k")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, []byte("v"), value)

	removed, err := s.Remove("k")
	require.NoError(t, err)
	assert.True(t, removed)

	removed, err = s.Remove("k")
	require.NoError(t, err)
	assert.False(t, removed)
}

func TestSetIfAbsent(t *testing.T) {
	s, vc := newTestStore(t)

	written, err := s.SetIfAbsent("lock", []byte("a"), 10)
	require.NoError(t, err)
	assert.True(t, written)

	written, err = s.SetIfAbsent("lock", []byte("b"), 10)
	require.NoError(t, err)
	assert.False(t, written)

	value, _, _ := s.Get("lock")
	assert.Equal(t, []byte("a"), value)

	// an expired entry counts as absent
	vc.Advance(10 * time.Second)

	written, err = s.SetIfAbsent("lock", []byte("c"), 10)
	require.NoError(t, err)
	assert.True(t, written)

	value, _, _ = s.Get("lock")
	assert.Equal(t, []byte("c"), value)
}

func TestSetIfAbsentConcurrent(t *testing.T) {
	s, _ := newTestStore(t)

	const workers = 32
	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		winners int
	)

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			written, err := s.SetIfAbsent("key", []byte{byte(i)}, 0)
			assert.NoError(t, err)
			if written {
				mu.Lock()
				winners++
				mu.Unlock()
			}
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 1, winners)
}

func TestRemoveIf(t *testing.T) {
	s, vc := newTestStore(t)

	require.NoError(t, s.Set("lock", []byte("a"), 10))

	removed, err := s.RemoveIf("lock", []byte("b"))
	require.NoError(t, err)
	assert.False(t, removed, "value differs")

	removed, err = s.RemoveIf("missing", []byte("a"))
	require.NoError(t, err)
	assert.False(t, removed)

	removed, err = s.RemoveIf("lock", []byte("a"))
	require.NoError(t, err)
	assert.True(t, removed)

	_, ok, _ := s.Get("lock")
	assert.False(t, ok)

	// an expired entry never matches
	require.NoError(t, s.Set("lock", []byte("a"), 10))
	vc.Advance(10 * time.Second)

	removed, err = s.RemoveIf("lock", []byte("a"))
	require.NoError(t, err)
	assert.False(t, removed)
}

func TestReclamation(t *testing.T) {
	s, vc := newTestStore(t)

	require.NoError(t, s.Set("a", []byte("1"), 1))
	require.NoError(t, s.Set("b", []byte("2"), 2))
	require.NoError(t, s.Set("c", []byte("3"), 3))
	require.NoError(t, s.Set("d", []byte("4"), 0))

	vc.Advance(3 * time.Second)

	pair, ok, err := s.RemoveOneExpiredEntry()
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "a", pair.Key)

	n, err := s.RemoveExpiredEntriesUpTo(vc.Now())
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	pairs, err := s.GetManySorted("", 10)
	require.NoError(t, err)
	require.Len(t, pairs, 1)
	assert.Equal(t, "d", pairs[0].Key)

	assert.EqualValues(t, 3, s.reclaimed.Get())
}

func TestGetDBInfo(t *testing.T) {
	s, _ := newTestStore(t)
	require.NoError(t, s.Set("a", []byte("1"), 0))

	info, err := s.GetDBInfo()
	require.NoError(t, err)
	assert.Equal(t, db.ImplKVStorage, info.DbType)
}

func TestUnsupportedOperations(t *testing.T) {
	s := NewLocalStore("limited", func() db.KVDB {
		return limitedDB{kvstorage.NewKVStorage(nil, nil)}
	})

	require.NoError(t, s.Set("k", []byte("v"), 0))

	_, err := s.Remove("k")
	var storeErr *store.Error
	require.True(t, errors.As(err, &storeErr))
	assert.Equal(t, store.RetCUnsupportedOperation, storeErr.Code)
	assert.Contains(t, err.Error(), "UnsupportedOperation")

	_, err = s.RemoveIf("k", []byte("v"))
	assert.Error(t, err)
	_, err = s.GetManySorted("", 1)
	assert.Error(t, err)
	_, _, err = s.RemoveOneExpiredEntry()
	assert.Error(t, err)
	_, err = s.RemoveExpiredEntriesUpTo(time.Now())
	assert.Error(t, err)
	_, err = s.GetDBInfo()
	assert.Error(t, err)

	// SetIfAbsent only needs Set and Get
	written, err := s.SetIfAbsent("other", []byte("v"), 0)
	require.NoError(t, err)
	assert.True(t, written)
}

func TestConcurrentAccess(t *testing.T) {
	s, vc := newTestStore(t)

	var wg sync.WaitGroup
	for w := 0; w < 8; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < 500; i++ {
				key := string(rune('a'+w)) + string(rune('a'+i%26))
				_ = s.Set(key, []byte(key), uint32(i%3))
				_, _, _ = s.Get(key)
				_, _ = s.GetManySorted(key, 5)
				if i%10 == 0 {
					_, _, _ = s.RemoveOneExpiredEntry()
				}
				if i%50 == 0 {
					vc.Advance(time.Second)
				}
			}
		}(w)
	}
	wg.Wait()

	_, err := s.RemoveExpiredEntriesUpTo(vc.Now().Add(time.Hour))
	require.NoError(t, err)

	pairs, err := s.GetManySorted("", 1000)
	require.NoError(t, err)
	for _, p := range pairs {
		assert.True(t, bytes.Equal([]byte(p.Key), p.Value))
	}
}

func TestWritePrometheus(t *testing.T) {
	s, _ := newTestStore(t)

	require.NoError(t, s.Set("a", []byte("1"), 0))
	require.NoError(t, s.Set("b", []byte("2"), 0))
	_, _, _ = s.Get("a")

	var buf bytes.Buffer
	s.WritePrometheus(&buf)
	out := buf.String()

	assert.Contains(t, out, `kvstorage_store_ops_total{namespace="test",op="set"} 2`)
	assert.Contains(t, out, `kvstorage_store_ops_total{namespace="test",op="get"} 1`)
	assert.Contains(t, out, `kvstorage_store_keys{namespace="test"} 2`)
	assert.Equal(t, "test", s.Name())
}
