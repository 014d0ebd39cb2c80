// Package db provides a standardized interface for ordered key-value databases
// with per-entry time-to-live (TTL).
//
// The package focuses on:
//   - A unified interface for key-value operations
//   - Ordered range reads over the key space
//   - Explicit, caller-driven reclamation of expired entries
//   - Feature discovery through capability flags
//   - Comprehensive metadata reporting
//
// Key Components:
//
//   - KVDB Interface: The core interface that all database implementations must satisfy.
//     It provides methods for basic operations (Set, Get, Remove),
//     ordered reads (GetManySorted), expiry reclamation
//     (RemoveOneExpiredEntry, RemoveExpiredEntriesUpTo) and metadata
//     retrieval (GetInfo).
//
//   - Feature Flags: The Feature type defines capability flags that implementations
//     can advertise through the SupportsFeature method. This allows clients to
//     discover supported operations at runtime.
//
//   - Implementation Identifiers: The Implementation type provides string constants
//     for different database backends (currently "kvstorage").
//
//   - Database Information: The DatabaseInfo structure provides standardized
//     reporting on database state, including size statistics, implementation type,
//     and implementation-specific metadata. Note: size statistics are estimated
//     from samples since a precise calculation can be expensive.
//
// Note on Time:
//   - Databases take their notion of "now" from an injected clock.Clock. TTLs are
//     given in whole seconds relative to the clock reading at write time.
//   - The clock must be monotonic. This is a precondition, not a checked error.
//
// Note on Expiration:
//   - Lazy reads: Get() and GetManySorted() must never return an entry that has
//     logically expired, even if the entry still exists internally.
//   - Reads never delete. Physical removal of expired entries only happens through
//     RemoveOneExpiredEntry (incremental, lowest latency per call) and
//     RemoveExpiredEntriesUpTo (batch, best throughput), or when the key is
//     overwritten or removed.
//   - This separation between logical state (expired) and physical state (still
//     present in memory) lets callers choose their reclamation schedule, see the
//     sweeper package.
//
// Related Packages:
//
// The engines/kvstorage package provides the reference implementation built on two
// cross-referencing ordered indexes. The util package provides the TTL priority
// queue and size statistics used by it. The testing package provides a
// standardized conformance suite and benchmarks for any KVDB.
package db
