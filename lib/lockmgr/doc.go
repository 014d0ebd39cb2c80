// Package lockmgr implements a locking mechanism using
// key-value stores that implement the store.IStore interface. It provides
// a simple way to coordinate access to shared resources between goroutines
// sharing a store.
//
// The lock manager only stores in the provided IStore and has no other internal
// state. Therefore it is safe to create it multiple times on the same store.
// As long as the same store is used every time, all locks will work as expected.
//
// Core Functionality:
//   - Lock acquisition with ownership verification
//   - Automatic lock expiration through the entry TTL
//   - Safe release operations that verify ownership
//
// Implementation Approach:
//
//	Locks are implemented by leveraging the atomic conditional operations
//	of the underlying store. Specifically:
//
//	- Lock Acquisition: Attempts to create a key using SetIfAbsent, which
//	  guarantees that only one requester can successfully create the key.
//	  The value contains a randomly generated owner ID (a UUID from
//	  github.com/google/uuid) that identifies the lock holder.
//
//	- Leases: Locks are stored with a TTL in seconds. Once the TTL has
//	  elapsed the key reads as missing, so SetIfAbsent lets the next
//	  requester take over even before the expired entry is reclaimed. A TTL
//	  of 0 holds the lock until it is released.
//
//	- Safe Release: ReleaseLock uses the store's RemoveIf, which compares the
//	  owner ID and removes the key under one lock. A lease that expired and was
//	  taken over by another owner is never removed by the previous owner.
//
// Thread Safety:
//
//	The lockmgr is as thread-safe as the underlying store.IStore
//	implementation. All operations are performed through the store interface.
//
// Usage Example:
//
//	// Create a lock provider with a store backend
//	lockProvider := lockmgr.NewLockManager(store)
//
//	// Acquire a lock with a timeout
//	acquired, ownerID, err := lockProvider.AcquireLock("resource:123", 30)
//	if err != nil {
//	    // Handle error
//	}
//
//	if acquired {
//	    // Use the resource safely
//	    // ...
//
//	    // Release the lock when done
//	    released, err := lockProvider.ReleaseLock("resource:123", ownerID)
//	    if err != nil {
//	        // Handle error
//	    }
//	}
//
// Security Considerations:
//
//	The lock mechanism uses randomly generated owner IDs, which provides
//	reasonable protection against accidental lock stealing. However, it is
//	not designed to resist malicious attacks, as an attacker with access to
//	the underlying store could potentially manipulate lock data directly.
//
// Performance Impact:
//
//	- AcquireLock: One SetIfAbsent
//	- ReleaseLock: One RemoveIf, plus a Get if nothing was removed
package lockmgr
