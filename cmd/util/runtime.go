package util

import (
	"io"
	"sync"
	"time"

	"github.com/Kain-Deterick/VK-Internship/lib/clock"
	"github.com/Kain-Deterick/VK-Internship/lib/common"
	"github.com/Kain-Deterick/VK-Internship/lib/db"
	"github.com/Kain-Deterick/VK-Internship/lib/db/engines/kvstorage"
	"github.com/Kain-Deterick/VK-Internship/lib/store"
	"github.com/Kain-Deterick/VK-Internship/lib/store/lstore"
	"github.com/Kain-Deterick/VK-Internship/lib/store/sweeper"
	"github.com/lni/dragonboat/v4/logger"
)

var Logger = logger.GetLogger("cli")

// Runtime owns the stores, their sweepers and the clock of one command run.
type Runtime struct {
	Config   *common.Config
	Clock    clock.Clock
	Virtual  *clock.VirtualClock // nil unless Config.VirtualClock is set
	Registry *store.Registry

	mu       sync.Mutex
	sweepers map[string]*sweeper.Sweeper
}

// NewRuntime creates a runtime for conf. Stores are created lazily per
// namespace, each one bulk loaded with conf.Seed and watched by its own sweeper.
func NewRuntime(conf *common.Config) *Runtime {
	r := &Runtime{
		Config:   conf,
		sweepers: make(map[string]*sweeper.Sweeper),
	}

	if conf.VirtualClock {
		r.Virtual = clock.NewVirtualClock(time.Now())
		r.Clock = r.Virtual
	} else {
		r.Clock = clock.NewRealClock()
	}

	r.Registry = store.NewRegistry(r.newStore)
	return r
}

// newStore is the store.StoreFactory of the registry
func (r *Runtime) newStore(namespace string) store.IStore {
	s := lstore.NewLocalStore(namespace, func() db.KVDB {
		return kvstorage.NewKVStorage(r.Config.Seed, &kvstorage.Options{Clock: r.Clock})
	})

	sw := sweeper.New(s, namespace, sweeper.Options{
		Interval: r.Config.SweepInterval,
		Mode:     sweeper.Mode(r.Config.SweepMode),
		Limit:    r.Config.SweepLimit,
		Clock:    r.Clock,
	})
	sw.Start()

	r.mu.Lock()
	r.sweepers[namespace] = sw
	r.mu.Unlock()

	Logger.Debugf("namespace %q ready with %d seed records", namespace, len(r.Config.Seed))
	return s
}

// Store returns the store for namespace, creating it if necessary
func (r *Runtime) Store(namespace string) store.IStore {
	s, _ := r.Registry.GetOrCreate(namespace)
	return s
}

// Sweeper returns the sweeper of namespace, creating the store if necessary
func (r *Runtime) Sweeper(namespace string) *sweeper.Sweeper {
	r.Store(namespace)

	r.mu.Lock()
	defer r.mu.Unlock()
	return r.sweepers[namespace]
}

// WritePrometheus writes the metrics of all stores and sweepers to w
func (r *Runtime) WritePrometheus(w io.Writer) {
	r.Registry.Range(func(namespace string, s store.IStore) bool {
		if pw, ok := s.(interface{ WritePrometheus(io.Writer) }); ok {
			pw.WritePrometheus(w)
		}
		r.mu.Lock()
		sw := r.sweepers[namespace]
		r.mu.Unlock()
		if sw != nil {
			sw.WritePrometheus(w)
		}
		return true
	})
}

// Close stops all sweepers
func (r *Runtime) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, sw := range r.sweepers {
		sw.Close()
	}
}
