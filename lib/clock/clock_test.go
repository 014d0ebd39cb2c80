package clock

import (
	"sync"
	"testing"
	"time"
)

var epoch = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

func TestVirtualClockAdvance(t *testing.T) {
	c := NewVirtualClock(epoch)

	if got := c.Now(); !got.Equal(epoch) {
		t.Fatalf("Now() = %v, want %v", got, epoch)
	}

	c.Advance(10 * time.Second)
	if got, want := c.Now(), epoch.Add(10*time.Second); !got.Equal(want) {
		t.Fatalf("Now() after Advance = %v, want %v", got, want)
	}

	c.Advance(0)
	if got, want := c.Now(), epoch.Add(10*time.Second); !got.Equal(want) {
		t.Fatalf("Advance(0) moved the clock to %v", got)
	}
}

func TestVirtualClockSet(t *testing.T) {
	c := NewVirtualClock(epoch)
	target := epoch.Add(time.Hour)

	c.Set(target)
	if got := c.Now(); !got.Equal(target) {
		t.Fatalf("Now() = %v, want %v", got, target)
	}

	// setting the same instant again is allowed
	c.Set(target)
}

func TestVirtualClockRejectsGoingBackwards(t *testing.T) {
	t.Run("Advance", func(t *testing.T) {
		defer func() {
			if recover() == nil {
				t.Error("expected panic for negative Advance")
			}
		}()
		NewVirtualClock(epoch).Advance(-time.Second)
	})

	t.Run("Set", func(t *testing.T) {
		defer func() {
			if recover() == nil {
				t.Error("expected panic for Set into the past")
			}
		}()
		NewVirtualClock(epoch).Set(epoch.Add(-time.Second))
	})
}

func TestVirtualClockConcurrentReaders(t *testing.T) {
	c := NewVirtualClock(epoch)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			prev := c.Now()
			for j := 0; j < 1000; j++ {
				now := c.Now()
				if now.Before(prev) {
					t.Errorf("clock went backwards: %v -> %v", prev, now)
					return
				}
				prev = now
			}
		}()
	}

	for i := 0; i < 100; i++ {
		c.Advance(time.Millisecond)
	}
	wg.Wait()
}

func TestRealClockMonotonic(t *testing.T) {
	c := NewRealClock()
	a := c.Now()
	b := c.Now()
	if b.Before(a) {
		t.Fatalf("RealClock went backwards: %v -> %v", a, b)
	}
}
