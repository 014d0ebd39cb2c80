// Package clock provides the time source abstraction used by the key-value
// storage engine.
//
// Stores never call time.Now directly. They receive a Clock at construction,
// which makes expiration deterministic under test (VirtualClock) while the
// production path uses RealClock, whose readings carry Go's monotonic clock.
//
// Monotonicity is a hard precondition of every Clock: a store compares
// expiration instants against Now and would return stale data if the clock
// moved backwards. VirtualClock enforces this by panicking on backward moves.
package clock
