// Package store provides a high-level interface for key-value storage operations
// with per-entry expiration and unified error handling. It serves as an
// abstraction layer over the lower-level db.KVDB implementations, adding
// thread safety and standardized error reporting.
//
// The package focuses on:
//   - A unified interface (IStore) for key-value operations across different backends
//   - Pluggable storage backend architecture through the DBFactory pattern
//   - Independent stores per namespace through the Registry
//
// Key Components:
//
//   - IStore Interface: The core abstraction defining operations for interacting with
//     a key-value store. The interface methods return custom Error types that
//     provide detailed information about operation results.
//
//   - Error System: A structured error reporting mechanism using typed error codes
//     and descriptive messages. This system allows applications to make informed
//     decisions based on specific error conditions rather than generic errors.
//
//   - DBFactory: A function type that abstracts the creation of underlying db.KVDB
//     instances, providing dependency injection and flexible configuration of
//     storage backends.
//
//   - Registry: A concurrent map (github.com/puzpuzpuz/xsync/v3) of stores by
//     namespace. Stores are created lazily by a StoreFactory and share nothing.
//
// Implementations:
//
//	- Local Store (lstore): A single-node implementation that directly
//	  utilizes a db.KVDB instance behind a read-write mutex.
//	  Available in the "github.com/Kain-Deterick/VK-Internship/lib/store/lstore" package.
//
// The sweeper package schedules expiry reclamation on any IStore.
package store
