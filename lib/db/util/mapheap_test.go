package util

import (
	"container/heap"
	"sort"
	"testing"
	"time"
)

var base = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

// at returns base shifted by s seconds
func at(s int) time.Time {
	return base.Add(time.Duration(s) * time.Second)
}

// TestNewMapHeap tests the creation of a new MapHeap
func TestNewMapHeap(t *testing.T) {
	mh := NewMapHeap()

	if mh == nil {
		t.Fatal("NewMapHeap() returned nil")
	}

	if mh.Len() != 0 {
		t.Errorf("New heap should be empty, but has length %d", mh.Len())
	}

	if len(mh.itemsMap) != 0 {
		t.Errorf("New heap's map should be empty, but has %d items", len(mh.itemsMap))
	}
}

// TestAddItem tests adding items to the heap
func TestAddItem(t *testing.T) {
	mh := NewMapHeap()

	mh.AddItem(1, at(100))
	mh.AddItem(2, at(200))
	mh.AddItem(3, at(50))

	if mh.Len() != 3 {
		t.Errorf("Heap should have 3 items, but has %d", mh.Len())
	}

	for _, k := range []uint64{1, 2, 3} {
		if !mh.Contains(k) {
			t.Errorf("Heap should contain key %d", k)
		}
	}

	// min heap, so the earliest instant should be first
	item, exists := mh.Peek()
	if !exists {
		t.Fatal("Peek() should return an item")
	}

	if item.Key != 3 || !item.Priority.Equal(at(50)) {
		t.Errorf("Expected min item to be key 3 at +50s, got %s", item)
	}
}

// TestUpdateItem tests moving existing items to a new instant
func TestUpdateItem(t *testing.T) {
	mh := NewMapHeap()

	mh.AddItem(1, at(100))
	mh.AddItem(2, at(200))

	// Move item 1 behind item 2
	mh.AddItem(1, at(300))

	item, exists := mh.GetByKey(1)
	if !exists {
		t.Fatal("Item with key 1 should exist")
	}
	if !item.Priority.Equal(at(300)) {
		t.Errorf("Item with key 1 should expire at +300s, got %s", item)
	}
	if mh.Len() != 2 {
		t.Errorf("Update must not duplicate records, heap has %d items", mh.Len())
	}

	min, _ := mh.Peek()
	if min.Key != 2 {
		t.Errorf("Min item should now be key 2, got %d", min.Key)
	}

	mh.AddItem(2, at(50))

	min, _ = mh.Peek()
	if min.Key != 2 || !min.Priority.Equal(at(50)) {
		t.Errorf("Min item should now be key 2 at +50s, got %s", min)
	}
}

// TestRemoveByKey tests removing items by key
func TestRemoveByKey(t *testing.T) {
	mh := NewMapHeap()

	mh.AddItem(1, at(100))
	mh.AddItem(2, at(200))
	mh.AddItem(3, at(300))

	priority, exists := mh.RemoveByKey(2)
	if !exists {
		t.Fatal("RemoveByKey should return true for existing key")
	}
	if !priority.Equal(at(200)) {
		t.Errorf("RemoveByKey should return +200s, got %v", priority)
	}

	if mh.Len() != 2 {
		t.Errorf("Heap should have 2 items after removal, has %d", mh.Len())
	}
	if mh.Contains(2) {
		t.Error("Heap should not contain key 2 after removal")
	}

	if _, exists = mh.RemoveByKey(99); exists {
		t.Error("RemoveByKey should return false for non-existent key")
	}
}

// TestPopOrder tests if items are popped in correct order
func TestPopOrder(t *testing.T) {
	mh := NewMapHeap()

	items := []struct {
		key    uint64
		offset int
	}{
		{5, 50},
		{3, 30},
		{1, 10},
		{4, 40},
		{2, 20},
	}

	for _, item := range items {
		mh.AddItem(item.key, at(item.offset))
	}

	sort.Slice(items, func(i, j int) bool {
		return items[i].offset < items[j].offset
	})

	for i, expected := range items {
		if mh.Len() == 0 {
			t.Fatalf("Heap empty after %d items, expected %d items", i, len(items))
		}

		item, _ := mh.PopMin()
		if item.Key != expected.key || !item.Priority.Equal(at(expected.offset)) {
			t.Errorf("Pop %d: expected key %d at +%ds, got %s", i, expected.key, expected.offset, item)
		}
		if mh.Contains(item.Key) {
			t.Errorf("Pop %d: key %d still indexed after pop", i, item.Key)
		}
	}

	if mh.Len() != 0 {
		t.Errorf("Heap should be empty after popping all items, has %d items", mh.Len())
	}
}

// TestDuplicatePriorities tests that equal instants are kept apart and popped
// in insertion order
func TestDuplicatePriorities(t *testing.T) {
	mh := NewMapHeap()

	for k := uint64(1); k <= 5; k++ {
		mh.AddItem(k, at(10))
	}
	mh.AddItem(0, at(5))

	if mh.Len() != 6 {
		t.Fatalf("Heap should hold 6 records, has %d", mh.Len())
	}

	want := []uint64{0, 1, 2, 3, 4, 5}
	for i, k := range want {
		item, ok := mh.PopMin()
		if !ok {
			t.Fatalf("Pop %d: heap unexpectedly empty", i)
		}
		if item.Key != k {
			t.Errorf("Pop %d: expected key %d, got %d", i, k, item.Key)
		}
	}
}

// TestRemoveAmongDuplicates tests that removing one of several records sharing
// an instant removes exactly that record
func TestRemoveAmongDuplicates(t *testing.T) {
	mh := NewMapHeap()

	mh.AddItem(1, at(10))
	mh.AddItem(2, at(10))
	mh.AddItem(3, at(10))

	if _, ok := mh.RemoveByKey(2); !ok {
		t.Fatal("RemoveByKey(2) should succeed")
	}

	var got []uint64
	for mh.Len() > 0 {
		item := heap.Pop(mh).(*item)
		got = append(got, item.Key)
	}

	if len(got) != 2 || got[0] != 1 || got[1] != 3 {
		t.Errorf("Expected remaining keys [1 3], got %v", got)
	}
}

// TestPeekEmptyHeap tests behavior when peeking an empty heap
func TestPeekEmptyHeap(t *testing.T) {
	mh := NewMapHeap()

	if _, exists := mh.Peek(); exists {
		t.Error("Peek on empty heap should return exists=false")
	}
	if _, exists := mh.PopMin(); exists {
		t.Error("PopMin on empty heap should return exists=false")
	}
}

// TestGetByKey tests retrieving items by key
func TestGetByKey(t *testing.T) {
	mh := NewMapHeap()

	mh.AddItem(1, at(100))
	mh.AddItem(2, at(200))

	item, exists := mh.GetByKey(1)
	if !exists {
		t.Fatal("GetByKey should find existing key")
	}
	if item.Key != 1 || !item.Priority.Equal(at(100)) {
		t.Errorf("GetByKey returned incorrect item: %s", item)
	}

	if _, exists = mh.GetByKey(99); exists {
		t.Error("GetByKey should return exists=false for non-existent key")
	}
}

// TestEach tests visiting all records
func TestEach(t *testing.T) {
	mh := NewMapHeap()
	for k := uint64(0); k < 10; k++ {
		mh.AddItem(k, at(int(k)))
	}

	seen := make(map[uint64]bool)
	mh.Each(func(key uint64, _ time.Time) bool {
		seen[key] = true
		return true
	})
	if len(seen) != 10 {
		t.Errorf("Each visited %d records, want 10", len(seen))
	}

	visits := 0
	mh.Each(func(uint64, time.Time) bool {
		visits++
		return visits < 3
	})
	if visits != 3 {
		t.Errorf("Each should stop when fn returns false, visited %d", visits)
	}
}

// TestLargeNumberOfItems tests heap consistency with many records
func TestLargeNumberOfItems(t *testing.T) {
	mh := NewMapHeap()
	n := 10_000

	for i := 0; i < n; i++ {
		// spread instants with collisions
		mh.AddItem(uint64(i), at((i*7919)%1000))
	}

	for i := 0; i < n; i += 3 {
		mh.RemoveByKey(uint64(i))
	}

	prev := time.Time{}
	for mh.Len() > 0 {
		item, _ := mh.PopMin()
		if item.Priority.Before(prev) {
			t.Fatalf("Heap order violated: %v after %v", item.Priority, prev)
		}
		if item.Key%3 == 0 {
			t.Fatalf("Removed key %d was popped", item.Key)
		}
		prev = item.Priority
	}

	if len(mh.itemsMap) != 0 {
		t.Errorf("Map should be empty after popping everything, has %d entries", len(mh.itemsMap))
	}
}
