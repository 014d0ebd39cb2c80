package kvstorage

import (
	"encoding/json"
	"fmt"
	"math/rand"
	"testing"
	"time"

	"github.com/Kain-Deterick/VK-Internship/lib/clock"
	"github.com/Kain-Deterick/VK-Internship/lib/db"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var t0 = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

func newTestStorage(records ...db.Record) (*KVStorage, *clock.VirtualClock) {
	vc := clock.NewVirtualClock(t0)
	return NewKVStorage(records, &Options{Clock: vc}), vc
}

// checkInvariants verifies that the key index, the TTL index and the arena
// agree with each other
func checkInvariants(t *testing.T, s *KVStorage) {
	t.Helper()

	withTTL := 0
	s.keys.Ascend(func(item keyItem) bool {
		e, ok := s.entries.get(item.h)
		require.True(t, ok, "key %q points at released handle %s", item.key, item.h)
		require.Equal(t, item.key, e.key, "key index and entry disagree on key")

		if e.hasTTL {
			withTTL++
			rec, ok := s.ttl.GetByKey(uint64(item.h))
			require.True(t, ok, "key %q has a TTL but no expiration record", item.key)
			require.True(t, rec.Priority.Equal(e.expiresAt), "record of %q expires at %v, entry at %v", item.key, rec.Priority, e.expiresAt)
		} else {
			require.False(t, s.ttl.Contains(uint64(item.h)), "key %q has no TTL but an expiration record", item.key)
		}
		return true
	})

	require.Equal(t, withTTL, s.ttl.Len(), "entries with TTL and expiration records differ")
	require.Equal(t, s.keys.Len(), s.entries.live(), "key index and arena differ in size")

	s.ttl.Each(func(key uint64, _ time.Time) bool {
		_, ok := s.resolve(handle(key))
		require.True(t, ok, "expiration record %s does not resolve", handle(key))
		return true
	})
}

func pairsOf(kv ...string) []db.Pair {
	pairs := make([]db.Pair, 0, len(kv)/2)
	for i := 0; i+1 < len(kv); i += 2 {
		pairs = append(pairs, db.Pair{Key: kv[i], Value: []byte(kv[i+1])})
	}
	return pairs
}

// --------------------------------------------------------------------------
// Scenarios
// --------------------------------------------------------------------------

func TestScenarioSetGet(t *testing.T) {
	s, _ := newTestStorage()

	s.Set("key1", []byte("val1"), 0)

	value, ok := s.Get("key1")
	require.True(t, ok)
	assert.Equal(t, []byte("val1"), value)
	checkInvariants(t, s)
}

func TestScenarioExpiry(t *testing.T) {
	s, vc := newTestStorage()

	s.Set("key2", []byte("value2"), 10)

	value, ok := s.Get("key2")
	require.True(t, ok)
	assert.Equal(t, []byte("value2"), value)

	vc.Advance(11 * time.Second)

	_, ok = s.Get("key2")
	assert.False(t, ok)
	checkInvariants(t, s)
}

func TestScenarioGetManySorted(t *testing.T) {
	s, _ := newTestStorage()

	s.Set("a", []byte("val1"), 0)
	s.Set("b", []byte("val2"), 0)
	s.Set("d", []byte("val3"), 0)
	s.Set("e", []byte("val4"), 0)

	assert.Equal(t, pairsOf("d", "val3", "e", "val4"), s.GetManySorted("c", 2))
}

func TestScenarioRemoveOneExpired(t *testing.T) {
	s, vc := newTestStorage()

	s.Set("key5", []byte("value5"), 5)
	s.Set("key6", []byte("value6"), 0)

	vc.Advance(6 * time.Second)

	pair, ok := s.RemoveOneExpiredEntry()
	require.True(t, ok)
	assert.Equal(t, db.Pair{Key: "key5", Value: []byte("value5")}, pair)

	_, ok = s.Get("key5")
	assert.False(t, ok)
	assert.Equal(t, 1, s.Len())
	checkInvariants(t, s)
}

func TestScenarioNothingExpired(t *testing.T) {
	s, vc := newTestStorage()

	s.Set("key7", []byte("value7"), 10)
	vc.Advance(5 * time.Second)

	_, ok := s.RemoveOneExpiredEntry()
	assert.False(t, ok)
	assert.Equal(t, 1, s.Len())
}

func TestScenarioEmptyScan(t *testing.T) {
	s, _ := newTestStorage()

	pairs := s.GetManySorted("", 10)
	assert.NotNil(t, pairs)
	assert.Empty(t, pairs)
}

func TestDemoSequence(t *testing.T) {
	s, _ := newTestStorage(
		db.Record{Key: "key1", Value: []byte("val1"), TTL: 0},
		db.Record{Key: "key2", Value: []byte("val2"), TTL: 40},
	)

	value, ok := s.Get("key1")
	require.True(t, ok)
	assert.Equal(t, []byte("val1"), value)

	s.Set("key3", []byte("val3"), 0)

	assert.Equal(t, pairsOf("key2", "val2", "key3", "val3"), s.GetManySorted("key2", 10))
	checkInvariants(t, s)
}

// --------------------------------------------------------------------------
// Properties
// --------------------------------------------------------------------------

func TestUpdateReplacesRecord(t *testing.T) {
	s, vc := newTestStorage()

	s.Set("k", []byte("v1"), 5)
	s.Set("k", []byte("v2"), 5)
	s.Set("k", []byte("v3"), 20)
	checkInvariants(t, s)

	require.Equal(t, 1, s.ttl.Len(), "updates must not leave stale records")
	assert.Equal(t, pairsOf("k", "v3"), s.GetManySorted("", 10))

	vc.Advance(10 * time.Second)
	_, ok := s.RemoveOneExpiredEntry()
	assert.False(t, ok, "old expiration instant must not trigger reclamation")

	vc.Advance(10 * time.Second)
	pair, ok := s.RemoveOneExpiredEntry()
	require.True(t, ok)
	assert.Equal(t, "k", pair.Key)
	assert.Equal(t, []byte("v3"), pair.Value)
	checkInvariants(t, s)
}

func TestUpdateClearsTTL(t *testing.T) {
	s, _ := newTestStorage()

	s.Set("k", []byte("v1"), 5)
	s.Set("k", []byte("v2"), 0)

	assert.Equal(t, 0, s.ttl.Len())
	checkInvariants(t, s)
}

func TestReclamationLeavesNoRecord(t *testing.T) {
	s, vc := newTestStorage()

	for i := 0; i < 50; i++ {
		s.Set(fmt.Sprintf("k%02d", i), []byte("v"), uint32(1+i%5))
	}
	vc.Advance(3 * time.Second)

	for {
		pair, ok := s.RemoveOneExpiredEntry()
		if !ok {
			break
		}
		_, found := s.Get(pair.Key)
		assert.False(t, found)
		checkInvariants(t, s)
	}

	// nothing left is expired
	now := vc.Now()
	s.keys.Ascend(func(item keyItem) bool {
		e, _ := s.entries.get(item.h)
		assert.False(t, e.expired(now), "key %q is expired but was not reclaimed", item.key)
		return true
	})
	assert.Equal(t, 20, s.Len())
}

func TestRemoveIdempotent(t *testing.T) {
	s, _ := newTestStorage()

	s.Set("k", []byte("v"), 5)
	s.Set("other", []byte("v"), 5)

	assert.True(t, s.Remove("k"))
	assert.False(t, s.Remove("k"))
	assert.False(t, s.Remove("missing"))

	assert.Equal(t, 1, s.Len())
	assert.Equal(t, 1, s.ttl.Len())
	checkInvariants(t, s)
}

func TestExpiryBoundaryIsInclusive(t *testing.T) {
	s, vc := newTestStorage()

	s.Set("k", []byte("v"), 1)
	vc.Advance(time.Second - time.Nanosecond)

	_, ok := s.Get("k")
	assert.True(t, ok)
	_, ok = s.RemoveOneExpiredEntry()
	assert.False(t, ok)

	vc.Advance(time.Nanosecond)

	_, ok = s.Get("k")
	assert.False(t, ok)
	_, ok = s.RemoveOneExpiredEntry()
	assert.True(t, ok)
}

// --------------------------------------------------------------------------
// Reclamation order
// --------------------------------------------------------------------------

func TestSharedExpirationInstant(t *testing.T) {
	s, vc := newTestStorage()

	// same instant, inserted out of key order
	for _, k := range []string{"c", "a", "d", "b"} {
		s.Set(k, []byte("v-"+k), 10)
	}

	// removing one of them must drop exactly its own record
	require.True(t, s.Remove("d"))
	checkInvariants(t, s)

	vc.Advance(10 * time.Second)

	var order []string
	for {
		pair, ok := s.RemoveOneExpiredEntry()
		if !ok {
			break
		}
		order = append(order, pair.Key)
	}
	assert.Equal(t, []string{"c", "a", "b"}, order)
}

func TestRemoveExpiredEntriesUpTo(t *testing.T) {
	s, vc := newTestStorage()

	s.Set("a", []byte("v"), 1)
	s.Set("b", []byte("v"), 2)
	s.Set("c", []byte("v"), 2)
	s.Set("d", []byte("v"), 3)
	s.Set("e", []byte("v"), 0)

	assert.Equal(t, 3, s.RemoveExpiredEntriesUpTo(t0.Add(2*time.Second)))
	assert.Equal(t, 2, s.Len())
	checkInvariants(t, s)

	// a future instant reclaims entries that are not expired yet
	assert.Equal(t, 1, s.RemoveExpiredEntriesUpTo(vc.Now().Add(time.Hour)))
	assert.Equal(t, 0, s.RemoveExpiredEntriesUpTo(vc.Now().Add(time.Hour)))

	assert.Equal(t, pairsOf("e", "v"), s.GetManySorted("", 10))
	checkInvariants(t, s)
}

// --------------------------------------------------------------------------
// Dangling expiration records
// --------------------------------------------------------------------------

func TestDanglingRecordIsSkipped(t *testing.T) {
	s, vc := newTestStorage()

	s.Set("victim", []byte("v"), 5)

	// a record for a handle that was never allocated, expiring first
	s.ttl.AddItem(uint64(makeHandle(99, 1)), t0)

	vc.Advance(5 * time.Second)

	pair, ok := s.RemoveOneExpiredEntry()
	require.True(t, ok)
	assert.Equal(t, "victim", pair.Key)
	assert.Equal(t, 0, s.ttl.Len())
	checkInvariants(t, s)
}

func TestDanglingRecordForRemovedEntry(t *testing.T) {
	s, vc := newTestStorage()

	s.Set("gone", []byte("v"), 1)
	item, _ := s.keys.Get(keyItem{key: "gone"})
	stale := item.h

	require.True(t, s.Remove("gone"))

	// slot is reused by a key without TTL
	s.Set("reused", []byte("v"), 0)
	item, _ = s.keys.Get(keyItem{key: "reused"})
	require.Equal(t, stale.index(), item.h.index())
	require.NotEqual(t, stale, item.h)

	s.ttl.AddItem(uint64(stale), t0)
	vc.Advance(time.Hour)

	_, ok := s.RemoveOneExpiredEntry()
	assert.False(t, ok)

	value, ok := s.Get("reused")
	require.True(t, ok, "live entry must survive a stale record for its slot")
	assert.Equal(t, []byte("v"), value)
	checkInvariants(t, s)
}

func TestDanglingRecordForReachableEntryWithoutTTL(t *testing.T) {
	s, vc := newTestStorage()

	s.Set("k", []byte("v"), 0)
	item, _ := s.keys.Get(keyItem{key: "k"})

	s.ttl.AddItem(uint64(item.h), t0)
	vc.Advance(time.Second)

	assert.Equal(t, 0, s.RemoveExpiredEntriesUpTo(vc.Now()))

	_, ok := s.Get("k")
	assert.True(t, ok)
	checkInvariants(t, s)
}

func TestOrphanedSlotIsReleased(t *testing.T) {
	s, vc := newTestStorage()

	// an entry only reachable through the TTL index
	h := s.entries.alloc(entry{key: "orphan", value: []byte("v"), hasTTL: true, expiresAt: t0})
	s.ttl.AddItem(uint64(h), t0)

	vc.Advance(time.Second)

	_, ok := s.RemoveOneExpiredEntry()
	assert.False(t, ok)

	_, live := s.entries.get(h)
	assert.False(t, live, "orphaned slot should be released")
	checkInvariants(t, s)
}

// --------------------------------------------------------------------------
// Construction, metadata and features
// --------------------------------------------------------------------------

func TestNewKVStorageDefaults(t *testing.T) {
	s := NewKVStorage(nil, nil)

	require.NotNil(t, s.clock)
	assert.Equal(t, defaultInfoSamples, s.infoSamples)
	assert.Equal(t, 0, s.Len())

	s = NewKVStorage(nil, &Options{Degree: 1, InfoSamples: -1})
	require.NotNil(t, s.clock)
	assert.Equal(t, defaultInfoSamples, s.infoSamples)
}

func TestBulkLoadOverride(t *testing.T) {
	s, _ := newTestStorage(
		db.Record{Key: "k", Value: []byte("v1"), TTL: 5},
		db.Record{Key: "k", Value: []byte("v2"), TTL: 0},
	)

	assert.Equal(t, 1, s.Len())
	assert.Equal(t, 0, s.ttl.Len())

	value, ok := s.Get("k")
	require.True(t, ok)
	assert.Equal(t, []byte("v2"), value)
	checkInvariants(t, s)
}

func TestGetInfo(t *testing.T) {
	s, vc := newTestStorage()

	s.Set("a", []byte("value"), 0)
	s.Set("b", []byte("value"), 10)
	s.Set("c", []byte("value"), 100)
	vc.Advance(10 * time.Second)

	info := s.GetInfo()
	assert.Equal(t, db.ImplKVStorage, info.DbType)
	assert.Greater(t, info.SizeBytes, 0)
	assert.Len(t, info.SupportedFeatures, 7)

	raw, err := json.Marshal(info.Metadata)
	require.NoError(t, err)

	var meta map[string]interface{}
	require.NoError(t, json.Unmarshal(raw, &meta))

	assert.EqualValues(t, 3, meta["keys"])
	assert.EqualValues(t, 2, meta["ttl_records"])
	assert.EqualValues(t, 3, meta["live_slots"])
	assert.InDelta(t, 1.0/3.0, meta["expired_backlog"], 1e-9)
	assert.Equal(t, t0.Add(10*time.Second).Format(time.RFC3339Nano), meta["next_expiration"])

	remaining := meta["remaining_ttl_seconds"].(map[string]interface{})
	assert.EqualValues(t, 1, remaining["count"])
	assert.EqualValues(t, 90, remaining["max"])
}

func TestGetInfoSamplesWholeKeyRange(t *testing.T) {
	vc := clock.NewVirtualClock(t0)
	s := NewKVStorage(nil, &Options{Clock: vc, InfoSamples: 10})

	// the first half of the key range never expires, the second half does
	for i := 0; i < 100; i++ {
		var ttl uint32
		if i >= 50 {
			ttl = 1
		}
		s.Set(fmt.Sprintf("k%03d", i), []byte("value"), ttl)
	}
	vc.Advance(time.Second)

	raw, err := json.Marshal(s.GetInfo().Metadata)
	require.NoError(t, err)

	var meta map[string]interface{}
	require.NoError(t, json.Unmarshal(raw, &meta))

	assert.EqualValues(t, 10, meta["samples"])
	assert.EqualValues(t, 10, meta["sample_stride"])
	assert.InDelta(t, 0.5, meta["expired_backlog"], 1e-9)
}

func TestGetInfoEmpty(t *testing.T) {
	s, _ := newTestStorage()

	info := s.GetInfo()
	assert.Equal(t, 0, info.SizeBytes)
}

func TestSupportsFeature(t *testing.T) {
	s, _ := newTestStorage()

	assert.True(t, s.SupportsFeature(db.FeatureSet|db.FeatureGet|db.FeatureGetManySorted))
	assert.True(t, s.SupportsFeature(db.FeatureRemoveOneExpired|db.FeatureRemoveExpiredUpTo))
	assert.False(t, s.SupportsFeature(db.Feature(1<<40)))
}

// --------------------------------------------------------------------------
// Randomized consistency
// --------------------------------------------------------------------------

func TestRandomOperationsKeepIndexesConsistent(t *testing.T) {
	s, vc := newTestStorage()
	r := rand.New(rand.NewSource(7))

	for step := 0; step < 5000; step++ {
		key := fmt.Sprintf("k%02d", r.Intn(64))

		switch op := r.Intn(10); {
		case op < 4:
			s.Set(key, []byte(key), uint32(r.Intn(4)))
		case op < 6:
			s.Remove(key)
		case op < 7:
			s.RemoveOneExpiredEntry()
		case op < 8:
			s.RemoveExpiredEntriesUpTo(vc.Now())
		default:
			vc.Advance(time.Duration(r.Intn(1500)) * time.Millisecond)
		}

		if step%50 == 0 {
			checkInvariants(t, s)
		}
	}
	checkInvariants(t, s)
}
