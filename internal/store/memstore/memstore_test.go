package memstore

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/leadtracker/crm/internal/store"
)

var _ store.TTL = (*Store)(nil)

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

func TestStore_SetGetExpire(t *testing.T) {
	clk := &fakeClock{t: time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)}
	s := New(WithClock(clk.Now))
	ctx := context.Background()

	if err := s.Set(ctx, "k", []byte("v"), 10*time.Second); err != nil {
		t.Fatalf("set: %v", err)
	}
	v, ok, err := s.Get(ctx, "k")
	if err != nil || !ok || string(v) != "v" {
		t.Fatalf("expected hit, got %q ok=%v err=%v", v, ok, err)
	}

	clk.Advance(9 * time.Second)
	if _, ok, _ := s.Get(ctx, "k"); !ok {
		t.Fatalf("expected key alive before ttl")
	}

	clk.Advance(time.Second)
	if _, ok, _ := s.Get(ctx, "k"); ok {
		t.Fatalf("expected key expired at ttl")
	}
}

func TestStore_SetRefreshesExpiry(t *testing.T) {
	clk := &fakeClock{t: time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)}
	s := New(WithClock(clk.Now))
	ctx := context.Background()

	_ = s.Set(ctx, "k", []byte("1"), 5*time.Second)
	clk.Advance(4 * time.Second)
	_ = s.Set(ctx, "k", []byte("1"), 5*time.Second)
	clk.Advance(4 * time.Second)

	if _, ok, _ := s.Get(ctx, "k"); !ok {
		t.Fatalf("expected refreshed key alive")
	}
}

func TestStore_DeleteAndNonPositiveTTL(t *testing.T) {
	s := New()
	ctx := context.Background()

	_ = s.Set(ctx, "a", []byte("1"), time.Minute)
	_ = s.Set(ctx, "b", []byte("1"), time.Minute)
	if err := s.Delete(ctx, "a", "b", "missing"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, ok, _ := s.Get(ctx, "a"); ok {
		t.Fatalf("expected a deleted")
	}

	_ = s.Set(ctx, "c", []byte("1"), time.Minute)
	_ = s.Set(ctx, "c", []byte("1"), 0)
	if _, ok, _ := s.Get(ctx, "c"); ok {
		t.Fatalf("zero ttl should delete")
	}
}

func TestStore_Sweep(t *testing.T) {
	clk := &fakeClock{t: time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)}
	s := New(WithClock(clk.Now))
	ctx := context.Background()

	_ = s.Set(ctx, "short", []byte("1"), time.Second)
	_ = s.Set(ctx, "long", []byte("1"), time.Hour)
	clk.Advance(time.Minute)

	if n := s.Sweep(); n != 1 {
		t.Fatalf("expected 1 swept, got %d", n)
	}
	if _, ok, _ := s.Get(ctx, "long"); !ok {
		t.Fatalf("long-lived key should survive sweep")
	}
}

func TestStore_ValueIsCopied(t *testing.T) {
	s := New()
	ctx := context.Background()

	buf := []byte("abc")
	_ = s.Set(ctx, "k", buf, time.Minute)
	buf[0] = 'x'

	v, _, _ := s.Get(ctx, "k")
	if string(v) != "abc" {
		t.Fatalf("stored value mutated: %q", v)
	}
}
