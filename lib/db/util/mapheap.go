// Package util
//
// This file provides the expiration index used by the storage engine.
//
// This implementation combines a binary heap with a hash map to provide both
// efficient priority-based operations and key-based access. Priorities are
// expiration instants, keys are stable entry handles. The map side is what lets
// an entry find and drop its own expiration record directly, without searching
// the heap by timestamp (which would be ambiguous when several entries expire at
// the same instant).
//
// Key properties of this implementation:
//
// 1. Time Complexity:
//   - O(log n) for priority operations (Push, Pop, Update)
//   - O(1) for key-based lookups and existence checks
//   - O(log n) for key-based removal
//
// 2. Ordering:
//   - The earliest expiration is always at the top
//   - Duplicate expiration instants are allowed; ties are resolved by insertion
//     order, so the reclamation order is deterministic
//
// 3. Concurrency Considerations:
//   - Note: This implementation is not thread-safe
//   - For concurrent use, external synchronization should be applied
//
// Example usage:
//
//	// Create a new index
//	ttl := NewMapHeap()
//
//	// Register handles with their expiration instants
//	ttl.AddItem(1001, now.Add(5*time.Second))
//	ttl.AddItem(1002, now.Add(10*time.Second))
//
//	// Get the earliest expiration
//	earliest, exists := ttl.Peek()
//
//	// Remove a specific handle (e.g. when the entry is removed)
//	ttl.RemoveByKey(1001)
package util

import (
	"container/heap"
	"strconv"
	"time"
)

// item represents one expiration record with a uint64 handle for
// identification and the expiration instant as priority
type item struct {
	Key      uint64    // Handle of the entry this record belongs to
	Priority time.Time // Expiration instant used for ordering in the heap
	seq      uint64    // Insertion sequence, breaks ties between equal priorities
	index    int       // Index in the heap, maintained by heap package
}

func (i *item) String() string {
	return "{Key: " + strconv.FormatUint(i.Key, 10) + ", Priority: " + i.Priority.Format(time.RFC3339Nano) + "}"
}

// MapHeap implements a min-priority queue of expiration records
// with both heap operations and key-based access
type MapHeap struct {
	items    []*item          // The actual heap slice
	itemsMap map[uint64]*item // Map for O(1) access by key
	nextSeq  uint64
}

// NewMapHeap creates a new expiration index
func NewMapHeap() *MapHeap {
	return &MapHeap{
		items:    make([]*item, 0),
		itemsMap: make(map[uint64]*item),
	}
}

// Len returns the number of items in the queue (part of heap.Interface)
func (mh *MapHeap) Len() int { return len(mh.items) }

// Less orders by expiration instant, then by insertion order (part of heap.Interface)
func (mh *MapHeap) Less(i, j int) bool {
	a, b := mh.items[i], mh.items[j]
	if a.Priority.Equal(b.Priority) {
		return a.seq < b.seq
	}
	return a.Priority.Before(b.Priority)
}

// Swap exchanges items at positions i and j (part of heap.Interface)
func (mh *MapHeap) Swap(i, j int) {
	mh.items[i], mh.items[j] = mh.items[j], mh.items[i]
	mh.items[i].index = i
	mh.items[j].index = j
}

// Push adds an item to the heap (part of heap.Interface)
func (mh *MapHeap) Push(x interface{}) {
	n := len(mh.items)
	item := x.(*item)
	item.index = n
	mh.items = append(mh.items, item)
	mh.itemsMap[item.Key] = item
}

// Pop removes and returns the last item of the slice (part of heap.Interface)
func (mh *MapHeap) Pop() interface{} {
	old := mh.items
	n := len(old)
	item := old[n-1]
	old[n-1] = nil  // Avoid memory leak
	item.index = -1 // For safety
	mh.items = old[:n-1]
	delete(mh.itemsMap, item.Key)
	return item
}

// AddItem adds a new record to the queue or moves an existing one to a new
// expiration instant. A moved record is ordered as if it was inserted now.
func (mh *MapHeap) AddItem(key uint64, priority time.Time) {
	mh.nextSeq++

	// Check if item already exists
	if item, exists := mh.itemsMap[key]; exists {
		// Update priority and fix heap
		item.Priority = priority
		item.seq = mh.nextSeq
		heap.Fix(mh, item.index)
		return
	}

	// Create and add new item
	item := &item{
		Key:      key,
		Priority: priority,
		seq:      mh.nextSeq,
	}
	heap.Push(mh, item)
}

// RemoveByKey removes a record by its key and returns its priority
func (mh *MapHeap) RemoveByKey(key uint64) (time.Time, bool) {
	item, exists := mh.itemsMap[key]
	if !exists {
		return time.Time{}, false
	}

	// Remove from heap
	heap.Remove(mh, item.index)
	return item.Priority, true
}

// PopMin removes and returns the earliest record
func (mh *MapHeap) PopMin() (*item, bool) {
	if len(mh.items) == 0 {
		return nil, false
	}
	return heap.Pop(mh).(*item), true
}

// Peek returns the earliest record without removing it
func (mh *MapHeap) Peek() (*item, bool) {
	if len(mh.items) == 0 {
		return nil, false
	}
	return mh.items[0], true
}

// Contains checks if a key exists in the queue
func (mh *MapHeap) Contains(key uint64) bool {
	_, exists := mh.itemsMap[key]
	return exists
}

// GetByKey retrieves a record by its key without removing it
func (mh *MapHeap) GetByKey(key uint64) (*item, bool) {
	item, exists := mh.itemsMap[key]
	return item, exists
}

// Each calls fn for every record in unspecified order until fn returns false
func (mh *MapHeap) Each(fn func(key uint64, priority time.Time) bool) {
	for _, item := range mh.items {
		if !fn(item.Key, item.Priority) {
			return
		}
	}
}
