package kvstorage

import (
	"time"

	"github.com/Kain-Deterick/VK-Internship/lib/clock"
	"github.com/Kain-Deterick/VK-Internship/lib/db"
	"github.com/Kain-Deterick/VK-Internship/lib/db/util"
	"github.com/google/btree"
	"github.com/lni/dragonboat/v4/logger"
)

var plog = logger.GetLogger("kvstorage")

// --------------------------------------------------------------------------
// Constants
// --------------------------------------------------------------------------

const (
	defaultDegree      = 32   // B-tree degree of the key index
	defaultInfoSamples = 1000 // Entries inspected by GetInfo
	entryOverhead      = 96   // Approximate bytes per entry besides key and value
)

// --------------------------------------------------------------------------
// Core storage structure
// --------------------------------------------------------------------------

// keyItem is the element of the key index: a key and the handle of its entry
type keyItem struct {
	key string
	h   handle
}

func keyLess(a, b keyItem) bool {
	return a.key < b.key
}

// KVStorage is an ordered in-memory key-value store with per-entry TTL.
//
// Thread-safety: KVStorage is not safe for concurrent use. All methods must be
// serialized by the caller.
type KVStorage struct {
	clock   clock.Clock
	keys    *btree.BTreeG[keyItem] // key index: key -> handle, ordered by key
	ttl     *util.MapHeap          // TTL index: handle -> expiresAt, ordered by expiresAt
	entries arena                  // slot table owning the entries

	infoSamples int
}

var _ db.KVDB = (*KVStorage)(nil)

// Options configures the KVStorage behavior during initialization
type Options struct {
	Clock       clock.Clock // Time source (nil = real clock)
	Degree      int         // B-tree degree of the key index (0 = default)
	InfoSamples int         // Entries inspected by GetInfo (0 = default)
}

// DefaultOptions returns the default KVStorage options
func DefaultOptions() *Options {
	return &Options{
		Clock:       clock.NewRealClock(),
		Degree:      defaultDegree,
		InfoSamples: defaultInfoSamples,
	}
}

// --------------------------------------------------------------------------
// Initialization
// --------------------------------------------------------------------------

// NewKVStorage creates a store and bulk loads records into it.
// Records are applied in order through Set, so a later record for the same key
// overrides an earlier one. opts may be nil.
func NewKVStorage(records []db.Record, opts *Options) *KVStorage {
	defaults := DefaultOptions()
	if opts == nil {
		opts = defaults
	}

	c := opts.Clock
	if c == nil {
		c = defaults.Clock
	}
	degree := opts.Degree
	if degree < 2 {
		degree = defaults.Degree
	}
	samples := opts.InfoSamples
	if samples <= 0 {
		samples = defaults.InfoSamples
	}

	s := &KVStorage{
		clock:       c,
		keys:        btree.NewG[keyItem](degree, keyLess),
		ttl:         util.NewMapHeap(),
		infoSamples: samples,
	}

	for _, r := range records {
		s.Set(r.Key, r.Value, r.TTL)
	}

	if len(records) > 0 {
		plog.Debugf("bulk loaded %d records into %d keys", len(records), s.keys.Len())
	}

	return s
}

// --------------------------------------------------------------------------
// Write Operations
// --------------------------------------------------------------------------

// Set inserts or updates the entry for key.
// ttl is in seconds, 0 means the entry never expires.
//
// For an existing key the old expiration record is always dropped before the
// new one is installed, so an entry never has two records in the TTL index.
func (s *KVStorage) Set(key string, value []byte, ttl uint32) {
	// Copy value to prevent memory corruption
	valueCopy := cloneBytes(value)

	var expiresAt time.Time
	hasTTL := ttl > 0
	if hasTTL {
		expiresAt = s.clock.Now().Add(time.Duration(ttl) * time.Second)
	}

	// case update
	if item, found := s.keys.Get(keyItem{key: key}); found {
		e, ok := s.entries.get(item.h)
		if !ok {
			panic("kvstorage: key index references released entry " + item.h.String())
		}

		if e.hasTTL {
			s.ttl.RemoveByKey(uint64(item.h))
		}

		e.value = valueCopy
		e.hasTTL = hasTTL
		e.expiresAt = expiresAt

		if hasTTL {
			s.ttl.AddItem(uint64(item.h), expiresAt)
		}
		return
	}

	// case insert
	h := s.entries.alloc(entry{
		key:       key,
		value:     valueCopy,
		expiresAt: expiresAt,
		hasTTL:    hasTTL,
	})
	if hasTTL {
		s.ttl.AddItem(uint64(h), expiresAt)
	}
	s.keys.ReplaceOrInsert(keyItem{key: key, h: h})
}

// Remove deletes the entry for key, expired or not.
// The expiration record is found through the entry's handle, never by
// searching the TTL index.
func (s *KVStorage) Remove(key string) bool {
	item, found := s.keys.Delete(keyItem{key: key})
	if !found {
		return false
	}

	if e, ok := s.entries.get(item.h); ok && e.hasTTL {
		s.ttl.RemoveByKey(uint64(item.h))
	}
	s.entries.release(item.h)

	return true
}

// --------------------------------------------------------------------------
// Read Operations
// --------------------------------------------------------------------------

// Get returns a copy of the value for key.
// Logically expired entries read as not found but stay in place until they are
// reclaimed.
func (s *KVStorage) Get(key string) ([]byte, bool) {
	item, found := s.keys.Get(keyItem{key: key})
	if !found {
		return nil, false
	}

	e, ok := s.entries.get(item.h)
	if !ok || e.expired(s.clock.Now()) {
		return nil, false
	}

	return cloneBytes(e.value), true
}

// GetManySorted returns up to count non-expired pairs with key >= startKey in
// ascending key order.
func (s *KVStorage) GetManySorted(startKey string, count uint32) []db.Pair {
	if count == 0 {
		return []db.Pair{}
	}

	capacity := s.keys.Len()
	if uint64(count) < uint64(capacity) {
		capacity = int(count)
	}
	pairs := make([]db.Pair, 0, capacity)

	// the clock is read once so the whole scan sees a single instant
	now := s.clock.Now()

	s.keys.AscendGreaterOrEqual(keyItem{key: startKey}, func(item keyItem) bool {
		e, ok := s.entries.get(item.h)
		if ok && !e.expired(now) {
			pairs = append(pairs, db.Pair{
				Key:   e.key,
				Value: cloneBytes(e.value),
			})
		}
		return uint32(len(pairs)) < count
	})

	return pairs
}

// Len returns the number of stored entries including expired ones not yet
// reclaimed.
func (s *KVStorage) Len() int {
	return s.keys.Len()
}

// --------------------------------------------------------------------------
// Expiry Reclamation
// --------------------------------------------------------------------------

// RemoveOneExpiredEntry physically removes the entry with the earliest
// expiration time if it is expired and returns it.
//
// Records that do not resolve to a live entry are dropped and the scan moves on
// to the next record. They can only exist if the indexes were corrupted.
func (s *KVStorage) RemoveOneExpiredEntry() (db.Pair, bool) {
	now := s.clock.Now()

	for {
		top, ok := s.ttl.Peek()
		if !ok || top.Priority.After(now) {
			return db.Pair{}, false
		}

		h := handle(top.Key)
		e, ok := s.resolve(h)
		if !ok {
			s.dropDangling(h)
			continue
		}

		pair := db.Pair{Key: e.key, Value: e.value}

		s.keys.Delete(keyItem{key: e.key})
		s.ttl.PopMin()
		s.entries.release(h)

		return pair, true
	}
}

// RemoveExpiredEntriesUpTo physically removes every entry whose expiration time
// is at or before asOf and returns the number of removed entries.
//
// Unlike RemoveOneExpiredEntry it does not stop at the first victim, it
// drains the whole expired prefix of the TTL index in one call.
func (s *KVStorage) RemoveExpiredEntriesUpTo(asOf time.Time) int {
	removed := 0

	for {
		top, ok := s.ttl.Peek()
		if !ok || top.Priority.After(asOf) {
			break
		}

		h := handle(top.Key)
		e, ok := s.resolve(h)
		if !ok {
			s.dropDangling(h)
			continue
		}

		s.keys.Delete(keyItem{key: e.key})
		s.ttl.PopMin()
		s.entries.release(h)
		removed++
	}

	if removed > 0 {
		plog.Debugf("reclaimed %d expired entries up to %s", removed, asOf.Format(time.RFC3339))
	}

	return removed
}

// resolve maps an expiration record back to its entry. It succeeds only if the
// slot is live, the entry carries a TTL and the key index still points at the
// same handle.
func (s *KVStorage) resolve(h handle) (*entry, bool) {
	e, ok := s.entries.get(h)
	if !ok || !e.hasTTL {
		return nil, false
	}

	item, found := s.keys.Get(keyItem{key: e.key})
	if !found || item.h != h {
		return nil, false
	}

	return e, true
}

// dropDangling pops the earliest expiration record, which must belong to h.
// A slot that is still live but no longer reachable through the key index is
// released with it.
func (s *KVStorage) dropDangling(h handle) {
	plog.Warningf("dropping dangling expiration record for handle %s", h)
	s.ttl.PopMin()

	e, ok := s.entries.get(h)
	if !ok {
		return
	}
	if item, found := s.keys.Get(keyItem{key: e.key}); found && item.h == h {
		// still reachable, only the record was stale
		return
	}
	s.entries.release(h)
}

// --------------------------------------------------------------------------
// KVDB Interface Implementation - Features and Metadata
// --------------------------------------------------------------------------

// GetInfo returns statistics about the store. Size figures are estimated from
// at most InfoSamples entries, taken as every n-th key across the whole key
// range.
func (s *KVStorage) GetInfo() db.DatabaseInfo {
	now := s.clock.Now()

	histogram := util.NewSizeHistogram()
	var (
		samples      int
		keyBytes     int
		expiredCount int
		remaining    []float64
	)

	// every stride-th key is sampled
	stride := (s.keys.Len() + s.infoSamples - 1) / s.infoSamples
	if stride < 1 {
		stride = 1
	}

	position := 0
	s.keys.Ascend(func(item keyItem) bool {
		position++
		if (position-1)%stride != 0 {
			return true
		}

		e, ok := s.entries.get(item.h)
		if !ok {
			return true
		}

		histogram.AddSample(len(e.value))
		keyBytes += len(e.key)

		if e.hasTTL {
			if e.expired(now) {
				expiredCount++
			} else {
				remaining = append(remaining, e.expiresAt.Sub(now).Seconds())
			}
		}

		samples++
		return samples < s.infoSamples
	})

	var (
		sizeBytes      int
		expiredBacklog float64
	)
	if samples > 0 {
		// weighted estimate (60% median, 40% average)
		valueSize := (histogram.MedianEstimate()*60 + histogram.AverageSize()*40) / 100
		sizeBytes = (valueSize + keyBytes/samples + entryOverhead) * s.keys.Len()
		expiredBacklog = float64(expiredCount) / float64(samples)
	}

	var nextExpiration string
	if top, ok := s.ttl.Peek(); ok {
		nextExpiration = top.Priority.Format(time.RFC3339Nano)
	}

	// Metadata for this specific database implementation
	meta := &struct {
		Keys           int        `json:"keys"`
		TTLRecords     int        `json:"ttl_records"`
		Slots          int        `json:"slots"`
		LiveSlots      int        `json:"live_slots"`
		Samples        int        `json:"samples"`
		SampleStride   int        `json:"sample_stride"`
		ExpiredBacklog float64    `json:"expired_backlog"`
		NextExpiration string     `json:"next_expiration,omitempty"`
		RemainingTTL   util.Stats `json:"remaining_ttl_seconds"`
		Info           string     `json:"info"`
	}{
		Keys:           s.keys.Len(),
		TTLRecords:     s.ttl.Len(),
		Slots:          len(s.entries.slots),
		LiveSlots:      s.entries.live(),
		Samples:        samples,
		SampleStride:   stride,
		ExpiredBacklog: expiredBacklog, // share of sampled entries expired but not yet reclaimed
		NextExpiration: nextExpiration,
		RemainingTTL:   util.NewStats(remaining),
		Info:           "SizeBytes, ExpiredBacklog and RemainingTTL are estimates based on entries sampled at a fixed stride over the key order.",
	}

	supportedFeatures := []db.Feature{
		db.FeatureSet, db.FeatureGet, db.FeatureRemove,
		db.FeatureGetManySorted,
		db.FeatureRemoveOneExpired, db.FeatureRemoveExpiredUpTo,
		db.FeatureInfo,
	}

	return db.DatabaseInfo{
		SizeBytes:         sizeBytes,
		DbType:            db.ImplKVStorage,
		SupportedFeatures: supportedFeatures,
		Metadata:          meta,
	}
}

// SupportsFeature checks if this implementation supports a specific KVDB feature
func (s *KVStorage) SupportsFeature(feature db.Feature) bool {
	supportedFeatures := db.FeatureSet |
		db.FeatureGet |
		db.FeatureRemove |
		db.FeatureGetManySorted |
		db.FeatureRemoveOneExpired |
		db.FeatureRemoveExpiredUpTo |
		db.FeatureInfo
	return supportedFeatures&feature == feature
}

// --------------------------------------------------------------------------
// Helper
// --------------------------------------------------------------------------

func cloneBytes(b []byte) []byte {
	c := make([]byte, len(b))
	copy(c, b)
	return c
}
