// Package util provides utility components for
// database implementations that satisfy the db.KVDB interface.
//
// The package contains:
//   - mapheap: A priority queue keyed by a comparable key, so an entry can be found,
//     updated or removed without a scan. The kvstorage engine uses it as its TTL index.
//   - statistics: Stats over a sample of values and a SizeHistogram for tracking
//     the size distribution of stored data
//
// This package is particularly useful for:
//   - Database developers implementing the KVDB interface
//   - Expiration schedules or other priority queues that need keyed access
//   - Monitoring systems that need to track database size and distribution metrics
package util
