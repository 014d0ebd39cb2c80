package store

import (
	"fmt"
	"time"

	"github.com/Kain-Deterick/VK-Internship/lib/db"
)

// --------------------------------------------------------------------------
// Interface Definition
// --------------------------------------------------------------------------

// DBFactory is a function type that creates a new db used by the store.
// This is used to abstract the creation of the db from the store implementation.
type DBFactory func() db.KVDB

// IStore is the generic interface for interacting with a key–value store.
// All write operations return only an error (nil on success),
// while read operations return the requested data along with an error (nil on success).
// Returned errors are of type *Error.
//
// Unlike a db.KVDB, an IStore is safe for concurrent use.
type IStore interface {
	// Set inserts or updates a key–value pair. ttl is in seconds, 0 means no expiration.
	Set(key string, value []byte, ttl uint32) (err error)
	// SetIfAbsent inserts a key–value pair only if the key is missing or logically expired.
	// The check and the write are atomic. The boolean reports whether the value was written.
	SetIfAbsent(key string, value []byte, ttl uint32) (written bool, err error)
	// Remove deletes a key–value pair. The boolean reports whether the key was stored.
	Remove(key string) (removed bool, err error)
	// RemoveIf deletes a key–value pair only if the key holds a live value equal to expected.
	// The check and the removal are atomic. The boolean reports whether the key was removed.
	RemoveIf(key string, expected []byte) (removed bool, err error)
	// Get return the value for a key. The boolean return value indicates whether a value for the key was found.
	Get(key string) (value []byte, loaded bool, err error)
	// GetManySorted returns up to count non-expired pairs with key >= startKey in ascending key order.
	GetManySorted(startKey string, count uint32) (pairs []db.Pair, err error)
	// RemoveOneExpiredEntry reclaims the earliest expired entry, if any.
	RemoveOneExpiredEntry() (pair db.Pair, removed bool, err error)
	// RemoveExpiredEntriesUpTo reclaims every entry expired at or before asOf.
	RemoveExpiredEntriesUpTo(asOf time.Time) (removed int, err error)
	// GetDBInfo returns metadata about the database underlying the store.
	// It is not guaranteed that all fields are filled in or that the information is up-to-date!
	GetDBInfo() (info db.DatabaseInfo, err error)
}

// --------------------------------------------------------------------------
// Custom Error Type
// --------------------------------------------------------------------------

// Error is a custom error type that wraps a return code (of type RetCode)
// and an error message.
type Error struct {
	Code RetCode // The return code
	Msg  string  // The error message.
}

// Error implements the error interface.
func (e *Error) Error() string {
	return fmt.Sprintf("KVStoreError (code %s): %s", e.Code, e.Msg)
}

// NewError creates a new KVStoreError with the given code and message.
func NewError(code RetCode, msg string) *Error {
	return &Error{
		Code: code,
		Msg:  msg,
	}
}

// --------------------------------------------------------------------------
// Return Codes
// --------------------------------------------------------------------------

type RetCode uint64

const (
	RetCSuccess              RetCode = iota // 0: Command executed successfully.
	RetCInternalError                       // 1: Command failed due to an internal error.
	RetCUnsupportedOperation                // 2: Operation is not supported by underlying database.
	RetCInvalidOperation                    // 3: Invalid operation.
)

func (c RetCode) String() string {
	switch c {
	case RetCSuccess:
		return "Success"
	case RetCInternalError:
		return "InternalError"
	case RetCUnsupportedOperation:
		return "UnsupportedOperation"
	case RetCInvalidOperation:
		return "InvalidOperation"
	default:
		return "Unknown"
	}
}
