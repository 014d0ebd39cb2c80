package testing

import (
	"fmt"
	"math/rand"
	"testing"
	"time"

	"github.com/Kain-Deterick/VK-Internship/lib/db"
)

// RunKVDBBenchmarks runs all benchmarks for a key-value database implementations
//
// KVDB implementations are not safe for concurrent use, so unlike the store
// benchmarks these run on a single goroutine.
func RunKVDBBenchmarks(b *testing.B, name string, factory DBFactory) {

	b.Run("Set", func(b *testing.B) {
		benchmarkSet(b, factory)
	})

	b.Run("SetExisting", func(b *testing.B) {
		benchmarkSetExisting(b, factory)
	})

	b.Run("SetLargeValue", func(b *testing.B) {
		benchmarkSetLargeValue(b, factory)
	})

	b.Run("SetWithTTL", func(b *testing.B) {
		benchmarkSetWithTTL(b, factory)
	})

	b.Run("Get", func(b *testing.B) {
		benchmarkGet(b, factory)
	})

	b.Run("GetWithTTL", func(b *testing.B) {
		benchmarkGetWithTTL(b, factory)
	})

	b.Run("Remove", func(b *testing.B) {
		benchmarkRemove(b, factory)
	})

	b.Run("GetManySorted", func(b *testing.B) {
		benchmarkGetManySorted(b, factory)
	})

	b.Run("RemoveOneExpired", func(b *testing.B) {
		benchmarkRemoveOneExpired(b, factory)
	})

	b.Run("MixedUsage", func(b *testing.B) {
		benchmarkMixedUsage(b, factory)
	})
}

// --------------------------------------------------------------------------
// Benchmark functions
// --------------------------------------------------------------------------

// Benchmark for Set operation
func benchmarkSet(b *testing.B, factory DBFactory) {
	database, _ := newDB(factory)

	requireFeature(b, database, db.FeatureSet)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		key := fmt.Sprintf("test-key-%d", i)
		value := []byte(fmt.Sprintf("test-value-%d", i))
		database.Set(key, value, 0)
	}
}

// Benchmark for Set operation with existing keys
func benchmarkSetExisting(b *testing.B, factory DBFactory) {
	database, _ := newDB(factory)

	requireFeature(b, database, db.FeatureSet)

	// Prepare data
	numKeys := 10000
	for i := 0; i < numKeys; i++ {
		key := fmt.Sprintf("test-key-%d", i)
		value := []byte(fmt.Sprintf("test-value-%d", i))
		database.Set(key, value, 0)
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		key := fmt.Sprintf("test-key-%d", i%numKeys)
		value := []byte(fmt.Sprintf("test-value-%d", i))
		database.Set(key, value, 0)
	}
}

// Benchmark for Set operation with large values
func benchmarkSetLargeValue(b *testing.B, factory DBFactory) {
	database, _ := newDB(factory)

	requireFeature(b, database, db.FeatureSet)

	largeValue := make([]byte, 1*1024*1024) // 1MB

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		// overwrite a bounded key set to keep memory in check
		key := fmt.Sprintf("test-key-%d", i%64)
		database.Set(key, largeValue, 0)
	}
}

// Benchmark for Set operation with a TTL, every write creates an expiration record
func benchmarkSetWithTTL(b *testing.B, factory DBFactory) {
	database, _ := newDB(factory)

	requireFeature(b, database, db.FeatureSet)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		key := fmt.Sprintf("test-key-%d", i)
		value := []byte(fmt.Sprintf("test-value-%d", i))
		database.Set(key, value, uint32(1+i%3600))
	}
}

// Benchmark for Get operation
func benchmarkGet(b *testing.B, factory DBFactory) {
	database, _ := newDB(factory)

	requireFeature(b, database, db.FeatureSet)
	requireFeature(b, database, db.FeatureGet)

	// Prepare data
	numKeys := 10000
	for i := 0; i < numKeys; i++ {
		key := fmt.Sprintf("test-key-%d", i)
		value := []byte(fmt.Sprintf("test-value-%d", i))
		database.Set(key, value, 0)
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		database.Get(fmt.Sprintf("test-key-%d", i%numKeys))
	}
}

// Benchmark for Get operation where half of the keys are expired
func benchmarkGetWithTTL(b *testing.B, factory DBFactory) {
	database, vc := newDB(factory)

	requireFeature(b, database, db.FeatureSet)
	requireFeature(b, database, db.FeatureGet)

	// Prepare data
	numKeys := 10000
	for i := 0; i < numKeys; i++ {
		key := fmt.Sprintf("test-key-%d", i)
		value := []byte(fmt.Sprintf("test-value-%d", i))
		ttl := uint32(10)
		if i%2 == 0 {
			ttl = 1000
		}
		database.Set(key, value, ttl)
	}
	vc.Advance(time.Minute)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		database.Get(fmt.Sprintf("test-key-%d", i%numKeys))
	}
}

// Benchmark for Remove operation
func benchmarkRemove(b *testing.B, factory DBFactory) {
	database, _ := newDB(factory)

	requireFeature(b, database, db.FeatureSet)
	requireFeature(b, database, db.FeatureRemove)

	numKeys := 100000
	if b.N < numKeys {
		numKeys = b.N
	}

	// Prepare data
	keys := make([]string, numKeys)
	for i := 0; i < numKeys; i++ {
		keys[i] = fmt.Sprintf("test-key-%d", i)
		value := []byte(fmt.Sprintf("test-value-%d", i))
		database.Set(keys[i], value, uint32(1+i%60))
	}

	// Reset timer since we were doing setup
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		database.Remove(keys[i%numKeys])
	}
}

// Benchmark for ordered range reads of 100 pairs
func benchmarkGetManySorted(b *testing.B, factory DBFactory) {
	database, _ := newDB(factory)

	requireFeature(b, database, db.FeatureSet)
	requireFeature(b, database, db.FeatureGetManySorted)

	// Prepare data
	numKeys := 10000
	for i := 0; i < numKeys; i++ {
		key := fmt.Sprintf("test-key-%05d", i)
		value := []byte(fmt.Sprintf("test-value-%d", i))
		database.Set(key, value, 0)
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		database.GetManySorted(fmt.Sprintf("test-key-%05d", i%numKeys), 100)
	}
}

// Benchmark for reclaiming expired entries one by one
func benchmarkRemoveOneExpired(b *testing.B, factory DBFactory) {
	database, vc := newDB(factory)

	requireFeature(b, database, db.FeatureSet)
	requireFeature(b, database, db.FeatureRemoveOneExpired)

	// Prepare data
	for i := 0; i < b.N; i++ {
		key := fmt.Sprintf("test-key-%d", i)
		database.Set(key, []byte("value"), uint32(1+i%60))
	}
	vc.Advance(time.Hour)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		database.RemoveOneExpiredEntry()
	}
}

// Benchmark a realistic mix of operations
func benchmarkMixedUsage(b *testing.B, factory DBFactory) {
	database, vc := newDB(factory)

	requireFeature(b, database, db.FeatureSet)
	requireFeature(b, database, db.FeatureGet)
	requireFeature(b, database, db.FeatureRemove)
	requireFeature(b, database, db.FeatureRemoveOneExpired)

	// Prepare data
	numKeys := 10000
	for i := 0; i < numKeys; i++ {
		key := fmt.Sprintf("test-key-%d", i)
		value := []byte(fmt.Sprintf("test-value-%d", i))
		database.Set(key, value, uint32(i%30))
	}

	r := rand.New(rand.NewSource(time.Now().UnixNano()))

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		key := fmt.Sprintf("test-key-%d", r.Intn(numKeys))

		switch op := r.Intn(100); {
		case op < 60: // 60% reads
			database.Get(key)
		case op < 85: // 25% writes
			database.Set(key, []byte("updated-value"), uint32(r.Intn(30)))
		case op < 95: // 10% removes
			database.Remove(key)
		case op < 99: // 4% reclamation
			database.RemoveOneExpiredEntry()
		default: // 1% time passes
			vc.Advance(time.Second)
		}
	}
}
