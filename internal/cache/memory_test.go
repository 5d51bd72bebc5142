package cache

import (
	"context"
	"testing"
	"time"
)

func TestMemory_SetGet(t *testing.T) {
	c := NewMemory(10)
	defer c.Stop()
	ctx := context.Background()

	c.Set(ctx, "k1", []byte("v1"), time.Minute)
	got, ok := c.Get(ctx, "k1")
	if !ok {
		t.Fatal("expected hit")
	}
	if string(got) != "v1" {
		t.Errorf("expected v1, got %s", got)
	}
}

func TestMemory_Miss(t *testing.T) {
	c := NewMemory(10)
	defer c.Stop()

	if _, ok := c.Get(context.Background(), "absent"); ok {
		t.Error("expected miss for absent key")
	}
}

func TestMemory_Expiry(t *testing.T) {
	c := NewMemory(10)
	defer c.Stop()
	ctx := context.Background()

	c.Set(ctx, "k1", []byte("v1"), 10*time.Millisecond)
	time.Sleep(20 * time.Millisecond)
	if _, ok := c.Get(ctx, "k1"); ok {
		t.Error("expected expired entry to miss")
	}
}

func TestMemory_ZeroTTLNotStored(t *testing.T) {
	c := NewMemory(10)
	defer c.Stop()
	ctx := context.Background()

	c.Set(ctx, "k1", []byte("v1"), 0)
	if _, ok := c.Get(ctx, "k1"); ok {
		t.Error("zero TTL should not store")
	}
}

func TestMemory_CapacityEviction(t *testing.T) {
	c := NewMemory(2)
	defer c.Stop()
	ctx := context.Background()

	c.Set(ctx, "k1", []byte("v1"), time.Minute)
	c.Set(ctx, "k2", []byte("v2"), 2*time.Minute)
	c.Set(ctx, "k3", []byte("v3"), 3*time.Minute)

	if c.Len() != 2 {
		t.Fatalf("expected 2 entries after eviction, got %d", c.Len())
	}
	// k1 had the earliest expiry and should be gone.
	if _, ok := c.Get(ctx, "k1"); ok {
		t.Error("expected oldest entry to be evicted")
	}
	if _, ok := c.Get(ctx, "k3"); !ok {
		t.Error("expected newest entry to survive")
	}
}

func TestMemory_Flush(t *testing.T) {
	c := NewMemory(10)
	defer c.Stop()
	ctx := context.Background()

	c.Set(ctx, "k1", []byte("v1"), time.Minute)
	c.Set(ctx, "k2", []byte("v2"), time.Minute)
	c.Flush(ctx)
	if c.Len() != 0 {
		t.Errorf("expected empty cache after flush, got %d entries", c.Len())
	}
}

func TestNoop(t *testing.T) {
	var s Store = Noop{}
	ctx := context.Background()
	s.Set(ctx, "k", []byte("v"), time.Minute)
	if _, ok := s.Get(ctx, "k"); ok {
		t.Error("noop cache must always miss")
	}
	s.Flush(ctx)
}
