// Package sweeper schedules expiry reclamation for a store.IStore.
//
// A store never deletes expired entries on its own: reads hide them, and they
// stay in memory until one of the reclamation primitives runs. A Sweeper calls
// these primitives on a fixed interval from its own goroutine:
//
//   - ModeIncremental: up to Limit calls of RemoveOneExpiredEntry per tick.
//     Every call holds the store lock only briefly, so a large backlog is
//     drained over several ticks without stalling readers.
//   - ModeBatch: one call of RemoveExpiredEntriesUpTo(now) per tick, which
//     reclaims the whole backlog under a single lock acquisition.
//
// Sweep runs one tick synchronously and can be used without starting the loop,
// e.g. from tests or the interactive shell.
//
// Reclaimed entries and errors are counted with github.com/VictoriaMetrics/metrics,
// tick durations are tracked with a github.com/rcrowley/go-metrics Timer.
package sweeper
