package lstore

import (
	"bytes"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/Kain-Deterick/VK-Internship/lib/db"
	"github.com/Kain-Deterick/VK-Internship/lib/store"
	"github.com/VictoriaMetrics/metrics"
	"github.com/lni/dragonboat/v4/logger"
)

var log = logger.GetLogger("store")

// operation names used as metric labels
const (
	opSet           = "set"
	opSetIfAbsent   = "set_if_absent"
	opRemove        = "remove"
	opRemoveIf      = "remove_if"
	opGet           = "get"
	opGetManySorted = "get_many_sorted"
	opRemoveOne     = "remove_one_expired"
	opRemoveUpTo    = "remove_expired_up_to"
	opInfo          = "info"
)

// LocalStore is a single-node store.IStore over one db.KVDB.
type LocalStore struct {
	name string

	// mu serializes all access to db. Reads that never mutate the db
	// (Get, GetManySorted, GetInfo) share the read lock.
	mu sync.RWMutex
	db db.KVDB

	metrics   *metrics.Set
	ops       map[string]*metrics.Counter
	reclaimed *metrics.Counter
}

var _ store.IStore = (*LocalStore)(nil)

// NewLocalStore creates a new local store instance.
// This store implementation is not distributed and only works on a single node.
// name labels the store in logs and metrics.
func NewLocalStore(name string, factory store.DBFactory) *LocalStore {
	s := &LocalStore{
		name:    name,
		db:      factory(),
		metrics: metrics.NewSet(),
		ops:     make(map[string]*metrics.Counter),
	}

	for _, op := range []string{opSet, opSetIfAbsent, opRemove, opRemoveIf, opGet, opGetManySorted, opRemoveOne, opRemoveUpTo, opInfo} {
		s.ops[op] = s.metrics.NewCounter(fmt.Sprintf(`kvstorage_store_ops_total{namespace=%q,op=%q}`, name, op))
	}
	s.reclaimed = s.metrics.NewCounter(fmt.Sprintf(`kvstorage_store_reclaimed_total{namespace=%q}`, name))
	s.metrics.NewGauge(fmt.Sprintf(`kvstorage_store_keys{namespace=%q}`, name), func() float64 {
		s.mu.RLock()
		defer s.mu.RUnlock()
		return float64(s.db.Len())
	})

	log.Debugf("created local store %q", name)
	return s
}

// Name returns the name the store was created with
func (s *LocalStore) Name() string {
	return s.name
}

// WritePrometheus writes the store metrics in Prometheus text format to w
func (s *LocalStore) WritePrometheus(w io.Writer) {
	s.metrics.WritePrometheus(w)
}

// unsupported builds the error for an operation the db does not support
func unsupported(op string) error {
	return store.NewError(store.RetCUnsupportedOperation, op+" operation is not supported")
}

// --------------------------------------------------------------------------
// Interface Methods (docu see store/interface.go)
// --------------------------------------------------------------------------

func (s *LocalStore) Set(key string, value []byte, ttl uint32) error {
	if !s.db.SupportsFeature(db.FeatureSet) {
		return unsupported("Set")
	}
	s.ops[opSet].Inc()

	s.mu.Lock()
	defer s.mu.Unlock()

	s.db.Set(key, value, ttl)
	return nil
}

func (s *LocalStore) SetIfAbsent(key string, value []byte, ttl uint32) (bool, error) {
	if !s.db.SupportsFeature(db.FeatureSet | db.FeatureGet) {
		return false, unsupported("SetIfAbsent")
	}
	s.ops[opSetIfAbsent].Inc()

	s.mu.Lock()
	defer s.mu.Unlock()

	// an expired entry counts as absent and is overwritten
	if _, ok := s.db.Get(key); ok {
		return false, nil
	}
	s.db.Set(key, value, ttl)
	return true, nil
}

func (s *LocalStore) Remove(key string) (bool, error) {
	if !s.db.SupportsFeature(db.FeatureRemove) {
		return false, unsupported("Remove")
	}
	s.ops[opRemove].Inc()

	s.mu.Lock()
	defer s.mu.Unlock()

	return s.db.Remove(key), nil
}

func (s *LocalStore) RemoveIf(key string, expected []byte) (bool, error) {
	if !s.db.SupportsFeature(db.FeatureGet | db.FeatureRemove) {
		return false, unsupported("RemoveIf")
	}
	s.ops[opRemoveIf].Inc()

	s.mu.Lock()
	defer s.mu.Unlock()

	// an expired entry never matches
	val, ok := s.db.Get(key)
	if !ok || !bytes.Equal(val, expected) {
		return false, nil
	}
	return s.db.Remove(key), nil
}

func (s *LocalStore) Get(key string) ([]byte, bool, error) {
	if !s.db.SupportsFeature(db.FeatureGet) {
		return nil, false, unsupported("Get")
	}
	s.ops[opGet].Inc()

	s.mu.RLock()
	defer s.mu.RUnlock()

	val, ok := s.db.Get(key)
	return val, ok, nil
}

func (s *LocalStore) GetManySorted(startKey string, count uint32) ([]db.Pair, error) {
	if !s.db.SupportsFeature(db.FeatureGetManySorted) {
		return nil, unsupported("GetManySorted")
	}
	s.ops[opGetManySorted].Inc()

	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.db.GetManySorted(startKey, count), nil
}

func (s *LocalStore) RemoveOneExpiredEntry() (db.Pair, bool, error) {
	if !s.db.SupportsFeature(db.FeatureRemoveOneExpired) {
		return db.Pair{}, false, unsupported("RemoveOneExpiredEntry")
	}
	s.ops[opRemoveOne].Inc()

	s.mu.Lock()
	defer s.mu.Unlock()

	pair, ok := s.db.RemoveOneExpiredEntry()
	if ok {
		s.reclaimed.Inc()
	}
	return pair, ok, nil
}

func (s *LocalStore) RemoveExpiredEntriesUpTo(asOf time.Time) (int, error) {
	if !s.db.SupportsFeature(db.FeatureRemoveExpiredUpTo) {
		return 0, unsupported("RemoveExpiredEntriesUpTo")
	}
	s.ops[opRemoveUpTo].Inc()

	s.mu.Lock()
	defer s.mu.Unlock()

	n := s.db.RemoveExpiredEntriesUpTo(asOf)
	s.reclaimed.Add(n)
	return n, nil
}

func (s *LocalStore) GetDBInfo() (db.DatabaseInfo, error) {
	if !s.db.SupportsFeature(db.FeatureInfo) {
		return db.DatabaseInfo{}, unsupported("GetDBInfo")
	}
	s.ops[opInfo].Inc()

	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.db.GetInfo(), nil
}
