package testing

import (
	"bytes"
	"fmt"
	"math/rand"
	"sort"
	"testing"
	"time"

	"github.com/Kain-Deterick/VK-Internship/lib/clock"
	"github.com/Kain-Deterick/VK-Internship/lib/db"
)

// DBFactory creates a new instance of a KVDB implementation, bulk loaded with
// records and reading the time from c
type DBFactory func(records []db.Record, c clock.Clock) db.KVDB

// epoch is the start time of every virtual clock used by the suite
var epoch = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

// RunKVDBTests runs a comprehensive test suite for a KVDB implementation.
func RunKVDBTests(t *testing.T, name string, factory DBFactory) {
	t.Run(name, func(t *testing.T) {
		t.Run("Set&Get", func(t *testing.T) {
			testSetGet(t, factory)
		})

		t.Run("Remove", func(t *testing.T) {
			testRemove(t, factory)
		})

		t.Run("KeyExpiry", func(t *testing.T) {
			testKeyExpiry(t, factory)
		})

		t.Run("TTLUpdate", func(t *testing.T) {
			testTTLUpdate(t, factory)
		})

		t.Run("GetManySorted", func(t *testing.T) {
			testGetManySorted(t, factory)
		})

		t.Run("RemoveOneExpiredEntry", func(t *testing.T) {
			testRemoveOneExpiredEntry(t, factory)
		})

		t.Run("RemoveExpiredEntriesUpTo", func(t *testing.T) {
			testRemoveExpiredEntriesUpTo(t, factory)
		})

		t.Run("ManyExpiringKeys", func(t *testing.T) {
			testManyExpiringKeys(t, factory)
		})

		t.Run("BulkLoad", func(t *testing.T) {
			testBulkLoad(t, factory)
		})

		t.Run("EdgeCases", func(t *testing.T) {
			testEdgeCases(t, factory)
		})

		t.Run("RealisticUsage", func(t *testing.T) {
			testRealisticUsage(t, factory)
		})
	})
}

// --------------------------------------------------------------------------
// Helper functions
// --------------------------------------------------------------------------

// Checks if the database supports the specified feature
// Skip the test if it is not supported
func requireFeature(t testing.TB, database db.KVDB, feature db.Feature) {
	if !database.SupportsFeature(feature) {
		t.Skip()
	}
}

// newDB creates an empty database on a fresh virtual clock
func newDB(factory DBFactory) (db.KVDB, *clock.VirtualClock) {
	vc := clock.NewVirtualClock(epoch)
	return factory(nil, vc), vc
}

func keysOf(pairs []db.Pair) []string {
	keys := make([]string, len(pairs))
	for i, p := range pairs {
		keys[i] = p.Key
	}
	return keys
}

// --------------------------------------------------------------------------
// Test functions
// --------------------------------------------------------------------------

func testSetGet(t *testing.T, factory DBFactory) {
	database, _ := newDB(factory)

	requireFeature(t, database, db.FeatureSet)
	requireFeature(t, database, db.FeatureGet)

	testKey := "test-key"
	testValue1 := []byte("test-value1")
	testValue2 := []byte("test-value2")

	database.Set(testKey, testValue1, 0)

	result, exists := database.Get(testKey)
	if !exists {
		t.Errorf("Expected key %s to exist after Set", testKey)
	}

	if !bytes.Equal(result, testValue1) {
		t.Errorf("Expected value %s, got %s", testValue1, result)
	}

	database.Set(testKey, testValue2, 0)

	result, exists = database.Get(testKey)
	if !exists {
		t.Errorf("Expected key %s to exist after Set", testKey)
	}

	if !bytes.Equal(result, testValue2) {
		t.Errorf("Expected value %s, got %s", testValue2, result)
	}

	if database.Len() != 1 {
		t.Errorf("Overwriting a key must not duplicate it, Len() = %d", database.Len())
	}

	_, exists = database.Get("nonexistent-key")
	if exists {
		t.Errorf("Expected nonexistent key to return exists=false")
	}

	retrievedValue, _ := database.Get(testKey)
	retrievedValue[0] = 'X'

	originalValue, _ := database.Get(testKey)
	if bytes.Equal(retrievedValue, originalValue) {
		t.Errorf("Get should return a copy, not a reference to the stored value")
	}

	input := []byte("input-value")
	database.Set("input-key", input, 0)
	input[0] = 'X'

	stored, _ := database.Get("input-key")
	if !bytes.Equal(stored, []byte("input-value")) {
		t.Errorf("Set should copy the value, stored value changed to %s", stored)
	}
}

func testRemove(t *testing.T, factory DBFactory) {
	database, vc := newDB(factory)

	requireFeature(t, database, db.FeatureSet)
	requireFeature(t, database, db.FeatureGet)
	requireFeature(t, database, db.FeatureRemove)

	database.Set("key", []byte("value"), 0)

	if !database.Remove("key") {
		t.Errorf("Remove of an existing key should return true")
	}

	if _, exists := database.Get("key"); exists {
		t.Errorf("Key should not exist after Remove")
	}

	// second remove has no effect
	if database.Remove("key") {
		t.Errorf("Second Remove should return false")
	}

	if database.Remove("never-existed") {
		t.Errorf("Remove of a missing key should return false")
	}

	if database.Len() != 0 {
		t.Errorf("Expected empty database, Len() = %d", database.Len())
	}

	// remove drops the expiration record as well
	database.Set("ttl-key", []byte("value"), 5)
	if !database.Remove("ttl-key") {
		t.Errorf("Remove of a key with TTL should return true")
	}

	vc.Advance(10 * time.Second)

	if database.SupportsFeature(db.FeatureRemoveOneExpired) {
		if pair, ok := database.RemoveOneExpiredEntry(); ok {
			t.Errorf("Removed key must not be reclaimed again, got %q", pair.Key)
		}
	}

	// re-create after removal
	database.Set("ttl-key", []byte("again"), 0)
	if value, exists := database.Get("ttl-key"); !exists || !bytes.Equal(value, []byte("again")) {
		t.Errorf("Expected re-created key to hold 'again', got %s (exists=%v)", value, exists)
	}
}

func testKeyExpiry(t *testing.T, factory DBFactory) {
	database, vc := newDB(factory)

	requireFeature(t, database, db.FeatureSet)
	requireFeature(t, database, db.FeatureGet)

	testKey := "expiring-key"
	testValue := []byte("expiring-value")

	database.Set(testKey, testValue, 10)

	result, exists := database.Get(testKey)
	if !exists || !bytes.Equal(result, testValue) {
		t.Errorf("Key should exist right after Set, got %s (exists=%v)", result, exists)
	}

	vc.Advance(9 * time.Second)

	if _, exists = database.Get(testKey); !exists {
		t.Errorf("Key should still exist after 9s")
	}

	vc.Advance(time.Second)

	if _, exists = database.Get(testKey); exists {
		t.Errorf("Key should have expired after exactly 10s")
	}

	// lazy expiry: still stored until reclaimed
	if database.Len() != 1 {
		t.Errorf("Expired key should still be stored, Len() = %d", database.Len())
	}

	if database.SupportsFeature(db.FeatureRemove) && !database.Remove(testKey) {
		t.Errorf("Remove should report an expired but stored key as removed")
	}

	database.Set("forever", []byte("value"), 0)
	vc.Advance(100 * 365 * 24 * time.Hour)

	if _, exists = database.Get("forever"); !exists {
		t.Errorf("Key without TTL should never expire")
	}
}

func testTTLUpdate(t *testing.T, factory DBFactory) {
	database, vc := newDB(factory)

	requireFeature(t, database, db.FeatureSet)
	requireFeature(t, database, db.FeatureGet)
	requireFeature(t, database, db.FeatureRemoveOneExpired)

	// ttl -> no ttl
	database.Set("a", []byte("v1"), 5)
	database.Set("a", []byte("v2"), 0)

	// short ttl -> long ttl
	database.Set("b", []byte("v1"), 5)
	database.Set("b", []byte("v2"), 100)

	// no ttl -> ttl
	database.Set("c", []byte("v1"), 0)
	database.Set("c", []byte("v2"), 5)

	vc.Advance(10 * time.Second)

	if value, exists := database.Get("a"); !exists || !bytes.Equal(value, []byte("v2")) {
		t.Errorf("Key 'a' should not expire after TTL was cleared, got %s (exists=%v)", value, exists)
	}
	if value, exists := database.Get("b"); !exists || !bytes.Equal(value, []byte("v2")) {
		t.Errorf("Key 'b' should use its latest TTL, got %s (exists=%v)", value, exists)
	}
	if _, exists := database.Get("c"); exists {
		t.Errorf("Key 'c' should have expired with its new TTL")
	}

	pair, ok := database.RemoveOneExpiredEntry()
	if !ok || pair.Key != "c" || !bytes.Equal(pair.Value, []byte("v2")) {
		t.Errorf("Expected to reclaim c=v2, got %q=%s (ok=%v)", pair.Key, pair.Value, ok)
	}

	// the old records of a and b must be gone
	if pair, ok = database.RemoveOneExpiredEntry(); ok {
		t.Errorf("No further entry should be expired, got %q", pair.Key)
	}

	if database.Len() != 2 {
		t.Errorf("Expected 2 stored keys, Len() = %d", database.Len())
	}
}

func testGetManySorted(t *testing.T, factory DBFactory) {
	database, vc := newDB(factory)

	requireFeature(t, database, db.FeatureSet)
	requireFeature(t, database, db.FeatureGetManySorted)

	if pairs := database.GetManySorted("", 10); len(pairs) != 0 {
		t.Errorf("Empty database should return no pairs, got %v", keysOf(pairs))
	}

	database.Set("a", []byte("val1"), 0)
	database.Set("b", []byte("val2"), 0)
	database.Set("d", []byte("val3"), 0)
	database.Set("e", []byte("val4"), 0)

	pairs := database.GetManySorted("c", 2)
	if len(pairs) != 2 ||
		pairs[0].Key != "d" || !bytes.Equal(pairs[0].Value, []byte("val3")) ||
		pairs[1].Key != "e" || !bytes.Equal(pairs[1].Value, []byte("val4")) {
		t.Errorf("GetManySorted(c, 2) = %v, want [d e]", keysOf(pairs))
	}

	// start key is inclusive
	if pairs = database.GetManySorted("b", 1); len(pairs) != 1 || pairs[0].Key != "b" {
		t.Errorf("GetManySorted(b, 1) = %v, want [b]", keysOf(pairs))
	}

	// fewer results than requested
	if pairs = database.GetManySorted("", 100); len(pairs) != 4 {
		t.Errorf("GetManySorted(\"\", 100) returned %d pairs, want 4", len(pairs))
	}

	if pairs = database.GetManySorted("z", 10); len(pairs) != 0 {
		t.Errorf("GetManySorted past the last key should be empty, got %v", keysOf(pairs))
	}

	if pairs = database.GetManySorted("", 0); len(pairs) != 0 {
		t.Errorf("GetManySorted with count 0 should be empty, got %v", keysOf(pairs))
	}

	// expired entries are skipped but do not use up the count
	database.Set("b", []byte("val2"), 1)
	database.Set("c", []byte("valc"), 1)
	vc.Advance(time.Second)

	pairs = database.GetManySorted("a", 3)
	if got := fmt.Sprint(keysOf(pairs)); got != "[a d e]" {
		t.Errorf("GetManySorted(a, 3) = %s, want [a d e]", got)
	}

	// overwrite keeps a single entry with the latest value
	database.Set("d", []byte("new"), 0)
	pairs = database.GetManySorted("d", 10)
	if len(pairs) != 2 || pairs[0].Key != "d" || !bytes.Equal(pairs[0].Value, []byte("new")) {
		t.Errorf("Expected single updated entry for d, got %v", keysOf(pairs))
	}

	// returned values are copies
	pairs[0].Value[0] = 'X'
	if value, _ := database.Get("d"); !bytes.Equal(value, []byte("new")) {
		t.Errorf("GetManySorted should return copies, stored value changed to %s", value)
	}
}

func testRemoveOneExpiredEntry(t *testing.T, factory DBFactory) {
	database, vc := newDB(factory)

	requireFeature(t, database, db.FeatureSet)
	requireFeature(t, database, db.FeatureGet)
	requireFeature(t, database, db.FeatureRemoveOneExpired)

	if _, ok := database.RemoveOneExpiredEntry(); ok {
		t.Errorf("Empty database should have nothing to reclaim")
	}

	database.Set("key7", []byte("value7"), 10)
	vc.Advance(5 * time.Second)

	if _, ok := database.RemoveOneExpiredEntry(); ok {
		t.Errorf("Nothing should be reclaimed before the TTL elapsed")
	}

	database.Set("key5", []byte("value5"), 5)
	database.Set("key6", []byte("value6"), 0)
	database.Set("key4", []byte("value4"), 1)

	vc.Advance(6 * time.Second)

	// key4 (t=6) and key5 (t=10) are expired, key7 (t=10) too, key6 never
	var reclaimed []string
	for {
		pair, ok := database.RemoveOneExpiredEntry()
		if !ok {
			break
		}
		reclaimed = append(reclaimed, pair.Key)

		if _, exists := database.Get(pair.Key); exists {
			t.Errorf("Reclaimed key %s should not be readable", pair.Key)
		}
	}

	if len(reclaimed) != 3 || reclaimed[0] != "key4" {
		t.Errorf("Expected key4 first out of 3 reclaimed keys, got %v", reclaimed)
	}

	if value, exists := database.Get("key6"); !exists || !bytes.Equal(value, []byte("value6")) {
		t.Errorf("Key without TTL must survive reclamation, got %s (exists=%v)", value, exists)
	}

	if database.Len() != 1 {
		t.Errorf("Expected only key6 to remain, Len() = %d", database.Len())
	}
}

func testRemoveExpiredEntriesUpTo(t *testing.T, factory DBFactory) {
	database, vc := newDB(factory)

	requireFeature(t, database, db.FeatureSet)
	requireFeature(t, database, db.FeatureGet)
	requireFeature(t, database, db.FeatureRemoveExpiredUpTo)

	for i := 1; i <= 10; i++ {
		database.Set(fmt.Sprintf("key%02d", i), []byte("value"), uint32(i))
	}
	database.Set("forever", []byte("value"), 0)

	// nothing expires at the epoch
	if n := database.RemoveExpiredEntriesUpTo(epoch); n != 0 {
		t.Errorf("Expected no reclaimed entries at epoch, got %d", n)
	}

	// asOf is independent of the clock and inclusive
	if n := database.RemoveExpiredEntriesUpTo(epoch.Add(4 * time.Second)); n != 4 {
		t.Errorf("Expected 4 reclaimed entries up to +4s, got %d", n)
	}

	if database.Len() != 7 {
		t.Errorf("Expected 7 stored keys, Len() = %d", database.Len())
	}

	// key05 is not expired yet, so it is still readable
	if _, exists := database.Get("key05"); !exists {
		t.Errorf("key05 should still be readable")
	}

	vc.Advance(time.Hour)

	if n := database.RemoveExpiredEntriesUpTo(vc.Now()); n != 6 {
		t.Errorf("Expected 6 reclaimed entries, got %d", n)
	}

	if n := database.RemoveExpiredEntriesUpTo(vc.Now()); n != 0 {
		t.Errorf("Second sweep should reclaim nothing, got %d", n)
	}

	if _, exists := database.Get("forever"); !exists {
		t.Errorf("Key without TTL must survive the sweep")
	}
}

func testManyExpiringKeys(t *testing.T, factory DBFactory) {
	database, vc := newDB(factory)

	requireFeature(t, database, db.FeatureSet)
	requireFeature(t, database, db.FeatureGet)
	requireFeature(t, database, db.FeatureRemoveOneExpired)

	const numKeys = 1000

	// all keys share only a few expiration instants
	for i := 0; i < numKeys; i++ {
		database.Set(fmt.Sprintf("key-%d", i), []byte(fmt.Sprintf("value-%d", i)), uint32(1+i%3))
	}

	vc.Advance(2 * time.Second)

	expired := 0
	for i := 0; i < numKeys; i++ {
		if _, exists := database.Get(fmt.Sprintf("key-%d", i)); !exists {
			expired++
		}
	}

	// i%3 in {0, 1} expire within 2s
	wantExpired := numKeys - numKeys/3
	if expired != wantExpired {
		t.Errorf("Expected %d expired keys, got %d", wantExpired, expired)
	}

	reclaimed := 0
	for {
		pair, ok := database.RemoveOneExpiredEntry()
		if !ok {
			break
		}
		if !bytes.HasPrefix(pair.Value, []byte("value-")) {
			t.Errorf("Unexpected reclaimed value %s", pair.Value)
		}
		reclaimed++
	}

	if reclaimed != wantExpired {
		t.Errorf("Expected %d reclaimed keys, got %d", wantExpired, reclaimed)
	}

	if database.Len() != numKeys-wantExpired {
		t.Errorf("Expected %d stored keys, Len() = %d", numKeys-wantExpired, database.Len())
	}
}

func testBulkLoad(t *testing.T, factory DBFactory) {
	vc := clock.NewVirtualClock(epoch)

	records := []db.Record{
		{Key: "key1", Value: []byte("val1"), TTL: 0},
		{Key: "key2", Value: []byte("val2"), TTL: 40},
		{Key: "key1", Value: []byte("override"), TTL: 0},
	}

	database := factory(records, vc)

	requireFeature(t, database, db.FeatureGet)
	requireFeature(t, database, db.FeatureGetManySorted)

	if database.Len() != 2 {
		t.Errorf("Duplicate keys must collapse, Len() = %d", database.Len())
	}

	if value, exists := database.Get("key1"); !exists || !bytes.Equal(value, []byte("override")) {
		t.Errorf("Later record should win, got %s (exists=%v)", value, exists)
	}

	vc.Advance(40 * time.Second)

	pairs := database.GetManySorted("", 10)
	if len(pairs) != 1 || pairs[0].Key != "key1" {
		t.Errorf("Expected only key1 after key2 expired, got %v", keysOf(pairs))
	}

	// records are copied on load
	records[2].Value[0] = 'X'
	if value, _ := database.Get("key1"); !bytes.Equal(value, []byte("override")) {
		t.Errorf("Bulk load should copy values, got %s", value)
	}
}

func testEdgeCases(t *testing.T, factory DBFactory) {
	database, vc := newDB(factory)

	requireFeature(t, database, db.FeatureSet)
	requireFeature(t, database, db.FeatureGet)
	requireFeature(t, database, db.FeatureGetManySorted)

	// Empty key
	database.Set("", []byte("empty-key-value"), 0)
	if value, exists := database.Get(""); !exists || !bytes.Equal(value, []byte("empty-key-value")) {
		t.Errorf("Empty key should be stored, got %s (exists=%v)", value, exists)
	}

	// Empty and nil values
	database.Set("empty-value", []byte{}, 0)
	if value, exists := database.Get("empty-value"); !exists || len(value) != 0 {
		t.Errorf("Empty value should be stored, got %v (exists=%v)", value, exists)
	}

	database.Set("nil-value", nil, 0)
	if value, exists := database.Get("nil-value"); !exists || len(value) != 0 {
		t.Errorf("Nil value should be stored as empty, got %v (exists=%v)", value, exists)
	}

	// Large value
	largeValue := make([]byte, 1024*1024)
	for i := range largeValue {
		largeValue[i] = byte(i % 256)
	}
	database.Set("large-value", largeValue, 0)
	if value, exists := database.Get("large-value"); !exists || !bytes.Equal(value, largeValue) {
		t.Errorf("Large value was not stored correctly (exists=%v)", exists)
	}

	// Binary keys sort bytewise
	database.Set("\xff", []byte("high"), 0)
	database.Set("\x00", []byte("low"), 0)
	pairs := database.GetManySorted("", 2)
	if len(pairs) != 2 || pairs[0].Key != "" || pairs[1].Key != "\x00" {
		t.Errorf("Expected [\"\" \"\\x00\"] first, got %q", keysOf(pairs))
	}
	pairs = database.GetManySorted("\xff", 10)
	if len(pairs) != 1 || pairs[0].Key != "\xff" {
		t.Errorf("Expected only \\xff, got %q", keysOf(pairs))
	}

	// Maximum TTL
	database.Set("max-ttl", []byte("value"), ^uint32(0))
	vc.Advance(100 * 365 * 24 * time.Hour)
	if _, exists := database.Get("max-ttl"); !exists {
		t.Errorf("Key with maximum TTL should still exist")
	}

	// Large count
	if pairs = database.GetManySorted("", ^uint32(0)); len(pairs) != database.Len() {
		t.Errorf("GetManySorted with max count returned %d of %d pairs", len(pairs), database.Len())
	}
}

func testRealisticUsage(t *testing.T, factory DBFactory) {
	database, vc := newDB(factory)

	requireFeature(t, database, db.FeatureSet)
	requireFeature(t, database, db.FeatureGet)
	requireFeature(t, database, db.FeatureRemove)
	requireFeature(t, database, db.FeatureGetManySorted)
	requireFeature(t, database, db.FeatureRemoveOneExpired)

	type modelEntry struct {
		value     string
		expiresAt time.Time // zero = never
	}

	model := make(map[string]modelEntry)
	alive := func(e modelEntry, now time.Time) bool {
		return e.expiresAt.IsZero() || e.expiresAt.After(now)
	}

	r := rand.New(rand.NewSource(42))
	const numKeys = 200

	for step := 0; step < 20_000; step++ {
		key := fmt.Sprintf("user:%03d", r.Intn(numKeys))
		now := vc.Now()

		switch op := r.Intn(100); {
		case op < 40:
			value := fmt.Sprintf("v%d", step)
			ttl := uint32(0)
			if r.Intn(2) == 0 {
				ttl = uint32(1 + r.Intn(30))
			}
			database.Set(key, []byte(value), ttl)

			e := modelEntry{value: value}
			if ttl > 0 {
				e.expiresAt = now.Add(time.Duration(ttl) * time.Second)
			}
			model[key] = e

		case op < 70:
			value, exists := database.Get(key)
			e, inModel := model[key]
			want := inModel && alive(e, now)
			if exists != want {
				t.Fatalf("step %d: Get(%s) exists=%v, want %v", step, key, exists, want)
			}
			if exists && string(value) != e.value {
				t.Fatalf("step %d: Get(%s) = %s, want %s", step, key, value, e.value)
			}

		case op < 80:
			_, inModel := model[key]
			if removed := database.Remove(key); removed != inModel {
				t.Fatalf("step %d: Remove(%s) = %v, want %v", step, key, removed, inModel)
			}
			delete(model, key)

		case op < 88:
			pair, ok := database.RemoveOneExpiredEntry()
			if ok {
				e, inModel := model[pair.Key]
				if !inModel || alive(e, now) {
					t.Fatalf("step %d: reclaimed %s which is not expired", step, pair.Key)
				}
				delete(model, pair.Key)
			} else {
				for k, e := range model {
					if !alive(e, now) {
						t.Fatalf("step %d: nothing reclaimed but %s is expired", step, k)
					}
				}
			}

		case op < 95:
			count := uint32(r.Intn(20))
			pairs := database.GetManySorted(key, count)

			var want []string
			for k, e := range model {
				if k >= key && alive(e, now) {
					want = append(want, k)
				}
			}
			sort.Strings(want)
			if len(want) > int(count) {
				want = want[:count]
			}

			if got := keysOf(pairs); fmt.Sprint(got) != fmt.Sprint(want) {
				t.Fatalf("step %d: GetManySorted(%s, %d) = %v, want %v", step, key, count, got, want)
			}

		default:
			vc.Advance(time.Duration(r.Intn(3)) * time.Second)
		}

		if database.Len() != len(model) {
			t.Fatalf("step %d: Len() = %d, model has %d keys", step, database.Len(), len(model))
		}
	}
}
