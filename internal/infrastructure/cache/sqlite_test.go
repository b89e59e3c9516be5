package cache

import (
	"testing"
	"time"
)

func newTestCache(t *testing.T) *SQLiteCache {
	t.Helper()
	c, err := NewSQLiteCache(":memory:")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { c.Close() })
	return c
}

func TestSetGet(t *testing.T) {
	c := newTestCache(t)

	if err := c.Set("k", "v", 0); err != nil {
		t.Fatal(err)
	}
	v, ok, err := c.Get("k")
	if err != nil {
		t.Fatal(err)
	}
	if !ok || v != "v" {
		t.Fatalf("got %q/%v, want v/true", v, ok)
	}

	if _, ok, _ := c.Get("missing"); ok {
		t.Fatal("missing key reported as present")
	}

	// Overwrite.
	if err := c.Set("k", "v2", 0); err != nil {
		t.Fatal(err)
	}
	if v, _, _ := c.Get("k"); v != "v2" {
		t.Fatalf("after overwrite got %q, want v2", v)
	}
}

func TestTTLExpiry(t *testing.T) {
	c := newTestCache(t)

	now := time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)
	c.timeNow = func() time.Time { return now }

	if err := c.Set("state", "x", 24*time.Hour); err != nil {
		t.Fatal(err)
	}
	if _, ok, _ := c.Get("state"); !ok {
		t.Fatal("value expired immediately")
	}

	now = now.Add(23 * time.Hour)
	if _, ok, _ := c.Get("state"); !ok {
		t.Fatal("value expired before its TTL")
	}

	now = now.Add(2 * time.Hour)
	if _, ok, _ := c.Get("state"); ok {
		t.Fatal("value survived past its TTL")
	}
}

func TestHashSetGetAll(t *testing.T) {
	c := newTestCache(t)

	if err := c.HashSet("metrics", map[string]string{"a": "1", "b": "2"}); err != nil {
		t.Fatal(err)
	}
	// Partial update merges.
	if err := c.HashSet("metrics", map[string]string{"b": "3", "c": "4"}); err != nil {
		t.Fatal(err)
	}

	fields, err := c.HashGetAll("metrics")
	if err != nil {
		t.Fatal(err)
	}
	want := map[string]string{"a": "1", "b": "3", "c": "4"}
	if len(fields) != len(want) {
		t.Fatalf("fields = %v, want %v", fields, want)
	}
	for k, v := range want {
		if fields[k] != v {
			t.Fatalf("fields[%s] = %q, want %q", k, fields[k], v)
		}
	}

	empty, err := c.HashGetAll("unknown")
	if err != nil {
		t.Fatal(err)
	}
	if len(empty) != 0 {
		t.Fatalf("unknown hash = %v, want empty", empty)
	}
}

func TestDelete(t *testing.T) {
	c := newTestCache(t)

	c.Set("k", "v", 0)
	c.HashSet("k", map[string]string{"f": "1"})

	if err := c.Delete("k"); err != nil {
		t.Fatal(err)
	}
	if _, ok, _ := c.Get("k"); ok {
		t.Fatal("key survived delete")
	}
	if fields, _ := c.HashGetAll("k"); len(fields) != 0 {
		t.Fatal("hash survived delete")
	}
}
