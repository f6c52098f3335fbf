package tiered_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/Strob0t/TripForge/internal/adapter/tiered"
)

type memCache struct {
	data map[string][]byte
	err  error
}

func newMemCache() *memCache {
	return &memCache{data: make(map[string][]byte)}
}

func (m *memCache) Get(_ context.Context, key string) ([]byte, bool, error) {
	if m.err != nil {
		return nil, false, m.err
	}
	v, ok := m.data[key]
	return v, ok, nil
}

func (m *memCache) Set(_ context.Context, key string, value []byte, _ time.Duration) error {
	if m.err != nil {
		return m.err
	}
	m.data[key] = value
	return nil
}

func (m *memCache) Delete(_ context.Context, key string) error {
	delete(m.data, key)
	return nil
}

func TestTieredL1Hit(t *testing.T) {
	l1, l2 := newMemCache(), newMemCache()
	c := tiered.New(l1, l2, time.Minute)
	l1.data["tavily:5:kyoto"] = []byte("l1")
	l2.data["tavily:5:kyoto"] = []byte("l2")

	val, ok, err := c.Get(context.Background(), "tavily:5:kyoto")
	if err != nil || !ok {
		t.Fatalf("expected hit, got ok=%v err=%v", ok, err)
	}
	if string(val) != "l1" {
		t.Errorf("expected L1 value, got %s", val)
	}
}

func TestTieredL2HitBackfillsL1(t *testing.T) {
	l1, l2 := newMemCache(), newMemCache()
	c := tiered.New(l1, l2, time.Minute)
	l2.data["k"] = []byte("shared")

	val, ok, err := c.Get(context.Background(), "k")
	if err != nil || !ok || string(val) != "shared" {
		t.Fatalf("expected L2 hit, got %q ok=%v err=%v", val, ok, err)
	}
	if string(l1.data["k"]) != "shared" {
		t.Error("expected L1 backfill")
	}
}

func TestTieredMiss(t *testing.T) {
	c := tiered.New(newMemCache(), newMemCache(), time.Minute)
	if _, ok, err := c.Get(context.Background(), "absent"); ok || err != nil {
		t.Fatalf("expected clean miss, got ok=%v err=%v", ok, err)
	}
}

func TestTieredL2FailureIsAMiss(t *testing.T) {
	l1, l2 := newMemCache(), newMemCache()
	l2.err = errors.New("nats: no responders")
	c := tiered.New(l1, l2, time.Minute)
	ctx := context.Background()

	if _, ok, err := c.Get(ctx, "k"); ok || err != nil {
		t.Fatalf("expected miss without error, got ok=%v err=%v", ok, err)
	}
	if err := c.Set(ctx, "k", []byte("v"), time.Minute); err != nil {
		t.Fatalf("L2 set failure should not surface, got %v", err)
	}
	if string(l1.data["k"]) != "v" {
		t.Error("expected L1 write despite L2 failure")
	}
}

func TestTieredSetAndDeleteBothLevels(t *testing.T) {
	l1, l2 := newMemCache(), newMemCache()
	c := tiered.New(l1, l2, time.Minute)
	ctx := context.Background()

	if err := c.Set(ctx, "k", []byte("v"), time.Minute); err != nil {
		t.Fatal(err)
	}
	if l1.data["k"] == nil || l2.data["k"] == nil {
		t.Fatal("expected value in both levels")
	}
	if err := c.Delete(ctx, "k"); err != nil {
		t.Fatal(err)
	}
	if _, ok := l1.data["k"]; ok {
		t.Error("expected L1 delete")
	}
	if _, ok := l2.data["k"]; ok {
		t.Error("expected L2 delete")
	}
}
