// Package lstore implements a local, in-memory, single-node key-value store based on the
// store.IStore interface. It provides a thin wrapper around any db.KVDB
// implementation. Data is stored entirely in memory and is not persisted
// between process restarts.
//
// Key Features:
//   - Pure in-memory storage without persistence
//   - Direct integration with db.KVDB implementations
//   - Mutual exclusion around the database, which itself does no locking
//   - Feature detection to handle unsupported operations gracefully
//   - Per-store operation counters in Prometheus text format
//
// Implementation Details:
//
//   - Locking: A db.KVDB must not be used concurrently. The store guards it
//     with a single sync.RWMutex. Mutations and expiry reclamation take the
//     write lock, Get, GetManySorted and GetDBInfo share the read lock since
//     they never modify the database.
//
//   - Conditional Writes: SetIfAbsent checks for a live value and writes
//     under the same write lock, so concurrent callers cannot both succeed.
//     A logically expired entry counts as absent.
//
//   - Feature Detection: Before executing operations, the store checks if the underlying
//     db.KVDB implementation supports the requested feature through the SupportsFeature
//     method. Unsupported operations return a *store.Error with code
//     RetCUnsupportedOperation rather than failing silently.
//
//   - Metrics: Every store owns a github.com/VictoriaMetrics/metrics Set with
//     one counter per operation, a counter of reclaimed entries and a gauge of
//     stored keys, all labeled with the store name. WritePrometheus renders them.
//
// Usage Example:
//
//	factory := func() db.KVDB { return kvstorage.NewKVStorage(nil, nil) }
//	s := lstore.NewLocalStore("sessions", factory)
//
//	// Store a value with 5-minute expiration
//	err := s.Set("session:123", sessionData, 300)
//
//	// Retrieve the value
//	value, exists, err := s.Get("session:123")
package lstore
