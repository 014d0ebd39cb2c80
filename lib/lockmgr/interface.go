package lockmgr

// ILockManager defines the interface for a lock provider.
type ILockManager interface {
	// AcquireLock acquires a lock for the given key, held for ttl seconds (0 = until released).
	// Return a boolean indicating whether the lock was acquired, an owner ID, and an error if any.
	AcquireLock(key string, ttl uint32) (ok bool, ownerID []byte, err error)

	// ReleaseLock releases the lock for the given key.
	// Return a boolean indicating whether the lock was released, and an error if any.
	// The method will also return True if the lock did not exist or has expired.
	ReleaseLock(key string, ownerID []byte) (ok bool, err error)
}
