package cache

import (
	"testing"
	"time"
)

type clock struct{ t time.Time }

func (c *clock) now() time.Time { return c.t }

func TestLRUEvictsLeastRecentlyUsed(t *testing.T) {
	c := NewLRUCache[int](2, time.Minute)
	var evicted []string
	c.OnEvict(func(key string, _ int) { evicted = append(evicted, key) })

	c.Set("a", 1)
	c.Set("b", 2)
	c.Get("a")
	c.Set("c", 3)

	if _, ok := c.Get("b"); ok {
		t.Fatal("b should have been evicted")
	}
	if v, ok := c.Get("a"); !ok || v != 1 {
		t.Fatal("a should survive")
	}
	if len(evicted) != 1 || evicted[0] != "b" {
		t.Fatalf("unexpected evictions %v", evicted)
	}
	if c.Size() != 2 {
		t.Fatalf("size = %d", c.Size())
	}
}

func TestLRUExpiry(t *testing.T) {
	clk := &clock{t: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
	c := NewLRUCache[string](10, time.Minute).WithClock(clk.now)

	c.Set("short", "x")
	c.SetWithTTL("long", "y", time.Hour)
	clk.t = clk.t.Add(2 * time.Minute)

	if _, ok := c.Get("short"); ok {
		t.Fatal("short should have expired")
	}
	if _, ok := c.Get("long"); !ok {
		t.Fatal("long should still be live")
	}

	clk.t = clk.t.Add(2 * time.Hour)
	if n := c.CleanExpired(); n != 1 {
		t.Fatalf("CleanExpired removed %d, want 1", n)
	}
	if c.Size() != 0 {
		t.Fatalf("size = %d", c.Size())
	}
}

func TestGetOrCreate(t *testing.T) {
	c := NewLRUCache[*int](4, time.Minute)
	calls := 0
	create := func() *int {
		calls++
		v := calls
		return &v
	}
	first := c.GetOrCreate("k", create)
	second := c.GetOrCreate("k", create)
	if first != second || calls != 1 {
		t.Fatalf("expected one creation, got %d", calls)
	}
}

func TestDeleteSkipsCallback(t *testing.T) {
	c := NewLRUCache[int](4, time.Minute)
	called := false
	c.OnEvict(func(string, int) { called = true })
	c.Set("a", 1)
	c.Delete("a")
	if called {
		t.Fatal("Delete must not run the eviction callback")
	}
}

func TestManagerCleanNow(t *testing.T) {
	clk := &clock{t: time.Now()}
	c := NewLRUCache[int](4, time.Second).WithClock(clk.now)
	c.Set("a", 1)
	clk.t = clk.t.Add(time.Minute)

	m := NewManager(nil)
	m.Register(c)
	if n := m.CleanNow(); n != 1 {
		t.Fatalf("CleanNow removed %d", n)
	}
	m.Stop()
}
