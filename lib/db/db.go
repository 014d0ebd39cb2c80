package db

import "time"

// --------------------------------------------------------------------------
// Helper Types
// --------------------------------------------------------------------------

type Implementation string

const (
	ImplKVStorage Implementation = "kvstorage"
)

// Feature represents database features as bit flags
type Feature uint64

const (
	FeatureSet               Feature = 1 << iota // Support for Set operations
	FeatureGet                                   // Support for Get operations
	FeatureRemove                                // Support for Remove operations
	FeatureGetManySorted                         // Support for ordered range reads
	FeatureRemoveOneExpired                      // Support for single-step expiry reclamation
	FeatureRemoveExpiredUpTo                     // Support for bulk expiry reclamation
	FeatureInfo                                  // Support for GetInfo
)

func (f Feature) String() string {
	switch f {
	case FeatureSet:
		return "Set"
	case FeatureGet:
		return "Get"
	case FeatureRemove:
		return "Remove"
	case FeatureGetManySorted:
		return "GetManySorted"
	case FeatureRemoveOneExpired:
		return "RemoveOneExpiredEntry"
	case FeatureRemoveExpiredUpTo:
		return "RemoveExpiredEntriesUpTo"
	case FeatureInfo:
		return "GetInfo"
	default:
		return "Unknown"
	}
}

type DatabaseInfo struct {
	SizeBytes         int            `json:"size_bytes"`
	DbType            Implementation `json:"db_type"`
	SupportedFeatures []Feature      `json:"supported_features"`
	Metadata          interface{}    `json:"metadata"`
}

// Pair is a key with its value as returned by read and reclamation operations.
type Pair struct {
	Key   string `json:"key"`
	Value []byte `json:"value"`
}

// Record is one (key, value, ttl) triple used to bulk load a database at
// construction. TTL is in seconds, 0 means the entry never expires.
type Record struct {
	Key   string `json:"key" mapstructure:"key"`
	Value []byte `json:"value" mapstructure:"value"`
	TTL   uint32 `json:"ttl" mapstructure:"ttl"`
}

// --------------------------------------------------------------------------
// Database Interface
// --------------------------------------------------------------------------

// KVDB defines an interface for ordered key-value databases with per-entry
// time-to-live.
//
// Implementations are NOT required to be safe for concurrent use. Callers that
// share a KVDB between goroutines must serialize access themselves (see the
// lstore package).
type KVDB interface {

	// --------------------------------------------------------------------------
	// Write Operations
	// --------------------------------------------------------------------------

	// Set inserts or updates the entry for key. The old value and TTL are
	// replaced unconditionally. ttl is in seconds, 0 means no expiration.
	Set(key string, value []byte, ttl uint32)

	// Remove deletes the entry for key.
	// Returns false (and does nothing) if the key is not present.
	Remove(key string) (removed bool)

	// --------------------------------------------------------------------------
	// Query Operations
	// --------------------------------------------------------------------------

	// Get returns a copy of the value for key. An entry whose expiration time
	// is at or before the current time reads as not found even if it was not
	// yet reclaimed.
	Get(key string) (value []byte, loaded bool)

	// GetManySorted returns up to count non-expired pairs with key >= startKey
	// in ascending key order.
	GetManySorted(startKey string, count uint32) (pairs []Pair)

	// Len returns the number of physically stored entries, including expired
	// entries that were not yet reclaimed.
	Len() int

	// --------------------------------------------------------------------------
	// Expiry Reclamation
	// --------------------------------------------------------------------------

	// RemoveOneExpiredEntry physically removes the earliest expired entry and
	// returns it. The boolean is false if no entry is currently expired.
	RemoveOneExpiredEntry() (pair Pair, removed bool)

	// RemoveExpiredEntriesUpTo physically removes every entry whose expiration
	// time is at or before asOf and returns how many entries were removed.
	RemoveExpiredEntriesUpTo(asOf time.Time) (removed int)

	// --------------------------------------------------------------------------
	// Feature Support
	// --------------------------------------------------------------------------

	// SupportsFeature checks if the database implementation supports the specified feature.
	// Multiple features can be checked at once using bitwise OR (|) operator.
	SupportsFeature(feature Feature) (ok bool)

	// GetInfo returns information about the database.
	GetInfo() (info DatabaseInfo)
}
