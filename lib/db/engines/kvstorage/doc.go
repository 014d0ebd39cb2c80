// Package kvstorage implements an ordered in-memory key-value database (KVDB)
// with an optional time-to-live per entry. It provides a complete
// implementation of the db.KVDB interface.
//
// The package focuses on:
//   - Ordered range reads over the key space
//   - Lazy expiry: expired entries are hidden from reads immediately and
//     reclaimed later by explicit calls
//   - Reclamation in expiration order, driven by the caller
//
// Key Components:
//
//   - KVStorage: The central database structure implementing db.KVDB. It owns
//     the entries and two indexes over them and reads the current time from
//     an injected clock.Clock, so tests can drive expiry with a virtual clock.
//
//   - Key Index: A B-tree (github.com/google/btree) of (key, handle) pairs
//     ordered by key. It answers point lookups and GetManySorted scans.
//
//   - TTL Index: A util.MapHeap of expiration records ordered by expiration
//     instant (ties in insertion order). Only entries with a TTL have a record.
//
//   - Arena: The slot table holding the entries. Both indexes refer to an
//     entry by a handle (slot index plus generation), never by position in the
//     other index. Updating or removing an entry finds its own expiration record
//     through the handle in O(log n), even if many entries expire at the same
//     instant.
//
// Expiry Semantics:
//
//   - An entry set with ttl > 0 seconds at time t expires at t + ttl. It is
//     considered expired once the clock reads a time at or after that instant.
//   - Get and GetManySorted skip expired entries but do not remove them.
//   - Remove deletes an entry whether it is expired or not.
//   - RemoveOneExpiredEntry reclaims the entry with the earliest expiration
//     instant if it is expired. RemoveExpiredEntriesUpTo drains every record up
//     to a given instant.
//
// Thread Safety:
//
// KVStorage performs no internal locking. Callers must serialize all method
// calls, e.g. through lstore which guards a database with a sync.RWMutex. The
// Clock implementation must be safe to call from the goroutine using the store.
//
// Example:
//
//	vc := clock.NewVirtualClock(time.Now())
//	s := kvstorage.NewKVStorage([]db.Record{
//		{Key: "key1", Value: []byte("val1")},
//		{Key: "key2", Value: []byte("val2"), TTL: 40},
//	}, &kvstorage.Options{Clock: vc})
//
//	vc.Advance(40 * time.Second)
//	s.Get("key2")                 // not found, logically expired
//	s.RemoveOneExpiredEntry()     // {key2 val2}, true
package kvstorage
