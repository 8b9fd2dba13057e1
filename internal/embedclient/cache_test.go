package embedclient

import (
	"testing"
	"time"
)

func TestCacheGetMiss(t *testing.T) {
	c := newCache(time.Minute, 10)
	if _, ok := c.get("missing"); ok {
		t.Fatal("expected miss on empty cache")
	}
}

func TestCacheSetThenGet(t *testing.T) {
	c := newCache(time.Minute, 10)
	c.set("k", []float32{1, 2})
	v, ok := c.get("k")
	if !ok || len(v) != 2 {
		t.Fatalf("expected hit with 2-length vector, got %v, %v", v, ok)
	}
}

func TestCacheExpiresAfterTTL(t *testing.T) {
	c := newCache(10*time.Millisecond, 10)
	c.set("k", []float32{1})
	time.Sleep(30 * time.Millisecond)
	if _, ok := c.get("k"); ok {
		t.Fatal("expected entry to have expired")
	}
}

func TestCacheEvictsOldestWhenOverSoftCap(t *testing.T) {
	c := newCache(time.Minute, 2)
	c.set("a", []float32{1})
	time.Sleep(2 * time.Millisecond)
	c.set("b", []float32{2})
	time.Sleep(2 * time.Millisecond)
	c.set("c", []float32{3})

	if _, ok := c.get("a"); ok {
		t.Fatal("expected oldest entry 'a' to be evicted once over soft cap")
	}
	if _, ok := c.get("c"); !ok {
		t.Fatal("expected newest entry 'c' to remain")
	}
}
