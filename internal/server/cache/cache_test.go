package cache

import (
	"errors"
	"sync"
	"testing"
	"time"
)

// TestCache_BasicOperations tests Get, Set, and Delete.
func TestCache_BasicOperations(t *testing.T) {
	c := New[string](5*time.Minute, 10*time.Minute)

	t.Run("Set and Get", func(t *testing.T) {
		c.Set("key1", "value1")

		val, found := c.Get("key1")
		if !found {
			t.Error("expected key1 to be found")
		}
		if val != "value1" {
			t.Errorf("expected value1, got %v", val)
		}
	})

	t.Run("Get non-existent key", func(t *testing.T) {
		val, found := c.Get("nonexistent")
		if found {
			t.Error("expected nonexistent key to not be found")
		}
		if val != "" {
			t.Errorf("expected zero value, got %q", val)
		}
	})

	t.Run("Set and Delete", func(t *testing.T) {
		c.Set("key2", "value2")
		c.Delete("key2")

		if _, found := c.Get("key2"); found {
			t.Error("expected key2 to be deleted")
		}
	})

	t.Run("Clear", func(t *testing.T) {
		c.Set("a", "1")
		c.Set("b", "2")
		c.Clear()
		if n := c.GetStats().ItemCount; n != 0 {
			t.Errorf("expected empty cache, got %d items", n)
		}
	})
}

// TestCache_Expiration tests that entries expire after their TTL.
func TestCache_Expiration(t *testing.T) {
	c := New[int](time.Minute, time.Minute)
	c.SetWithTTL("short", 1, 10*time.Millisecond)

	time.Sleep(30 * time.Millisecond)

	if _, found := c.Get("short"); found {
		t.Error("expected entry to expire")
	}
}

// TestCache_GetOrLoad tests the load-on-miss path.
func TestCache_GetOrLoad(t *testing.T) {
	c := New[string](time.Minute, time.Minute)
	calls := 0
	load := func() (string, error) {
		calls++
		return "loaded", nil
	}

	v, hit, err := c.GetOrLoad("k", load)
	if err != nil || hit || v != "loaded" {
		t.Fatalf("first load = (%q, %v, %v)", v, hit, err)
	}
	v, hit, err = c.GetOrLoad("k", load)
	if err != nil || !hit || v != "loaded" {
		t.Fatalf("second load = (%q, %v, %v)", v, hit, err)
	}
	if calls != 1 {
		t.Errorf("expected one load, got %d", calls)
	}

	boom := errors.New("boom")
	if _, _, err := c.GetOrLoad("bad", func() (string, error) { return "", boom }); !errors.Is(err, boom) {
		t.Errorf("expected load error, got %v", err)
	}
	if c.ItemCount() != 1 {
		t.Errorf("failed load was cached")
	}
}

// TestCache_ConcurrentAccess tests thread safety.
func TestCache_ConcurrentAccess(t *testing.T) {
	c := New[int](time.Minute, time.Minute)

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				c.Set("key", n)
				c.Get("key")
			}
		}(i)
	}
	wg.Wait()

	if c.ItemCount() != 1 {
		t.Errorf("expected 1 item, got %d", c.ItemCount())
	}
}
