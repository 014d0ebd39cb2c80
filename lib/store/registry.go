package store

import (
	"sort"

	"github.com/puzpuzpuz/xsync/v3"
)

// StoreFactory creates the store for a namespace
type StoreFactory func(namespace string) IStore

// Registry holds independent stores by namespace and creates them on first use.
//
// Thread-safe for concurrent use. Concurrent GetOrCreate calls for the same
// namespace create the store exactly once.
type Registry struct {
	stores  *xsync.MapOf[string, IStore]
	factory StoreFactory
}

// NewRegistry creates an empty registry that builds new stores with factory
func NewRegistry(factory StoreFactory) *Registry {
	return &Registry{
		stores:  xsync.NewMapOf[string, IStore](),
		factory: factory,
	}
}

// GetOrCreate returns the store for namespace, creating it if necessary.
// The boolean reports whether the store already existed.
func (r *Registry) GetOrCreate(namespace string) (IStore, bool) {
	return r.stores.LoadOrCompute(namespace, func() IStore {
		return r.factory(namespace)
	})
}

// Get returns the store for namespace if it exists
func (r *Registry) Get(namespace string) (IStore, bool) {
	return r.stores.Load(namespace)
}

// Delete drops the store for namespace. The store itself is left untouched,
// callers still holding it can keep using it.
func (r *Registry) Delete(namespace string) bool {
	_, ok := r.stores.LoadAndDelete(namespace)
	return ok
}

// Len returns the number of stores
func (r *Registry) Len() int {
	return r.stores.Size()
}

// Names returns all namespaces in ascending order
func (r *Registry) Names() []string {
	names := make([]string, 0, r.stores.Size())
	r.stores.Range(func(name string, _ IStore) bool {
		names = append(names, name)
		return true
	})
	sort.Strings(names)
	return names
}

// Range calls fn for every store in ascending namespace order until fn returns false
func (r *Registry) Range(fn func(namespace string, s IStore) bool) {
	for _, name := range r.Names() {
		s, ok := r.stores.Load(name)
		if !ok {
			continue
		}
		if !fn(name, s) {
			return
		}
	}
}
