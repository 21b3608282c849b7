package cache

import (
	"testing"
	"time"
)

func TestLRU_EvictsLeastRecentlyUsed(t *testing.T) {
	c := NewLRU[int](2, 0)
	c.Set("a", 1)
	c.Set("b", 2)
	if _, ok := c.Get("a"); !ok {
		t.Fatal("a should be cached")
	}
	c.Set("c", 3)

	if _, ok := c.Get("b"); ok {
		t.Error("b should have been evicted")
	}
	for key, want := range map[string]int{"a": 1, "c": 3} {
		if got, ok := c.Get(key); !ok || got != want {
			t.Errorf("Get(%q) = %d, %v", key, got, ok)
		}
	}
	if got := c.Stats().Size; got != 2 {
		t.Errorf("size = %d", got)
	}
}

func TestLRU_Expiry(t *testing.T) {
	now := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
	c := NewLRU[string](10, time.Minute)
	c.now = func() time.Time { return now }

	c.Set("k", "v")
	c.Set("other", "w")
	now = now.Add(30 * time.Second)
	if v, ok := c.Get("k"); !ok || v != "v" {
		t.Fatalf("fresh entry missing: %q %v", v, ok)
	}

	now = now.Add(time.Minute)
	if _, ok := c.Get("k"); ok {
		t.Fatal("expired entry returned")
	}
	if n := c.CleanExpired(); n != 1 {
		t.Errorf("CleanExpired removed %d, want 1", n)
	}
	if got := c.Stats().Size; got != 0 {
		t.Errorf("size = %d", got)
	}
}

func TestLRU_GetOrCompute(t *testing.T) {
	c := NewLRU[int](4, 0)
	calls := 0
	compute := func() int { calls++; return 42 }

	for i := 0; i < 3; i++ {
		if got := c.GetOrCompute("x", compute); got != 42 {
			t.Fatalf("got %d", got)
		}
	}
	if calls != 1 {
		t.Errorf("compute ran %d times", calls)
	}
	st := c.Stats()
	if st.Hits != 2 || st.Misses != 1 {
		t.Errorf("stats = %+v", st)
	}

	c.Purge()
	c.GetOrCompute("x", compute)
	if calls != 2 {
		t.Errorf("purge did not drop the entry")
	}
}

func TestLRU_SetReplacesValue(t *testing.T) {
	c := NewLRU[int](0, 0)
	c.Set("a", 1)
	c.Set("a", 2)
	if got, _ := c.Get("a"); got != 2 {
		t.Errorf("got %d", got)
	}
	c.Set("b", 3)
	if _, ok := c.Get("a"); ok {
		t.Error("size-one cache kept two entries")
	}
}
