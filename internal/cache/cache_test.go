package cache

import (
	"context"
	"testing"
	"time"

	"github.com/opensource-finance/kestrel/internal/domain"
)

func TestLRUCache(t *testing.T) {
	ctx := context.Background()

	t.Run("SetAndGet", func(t *testing.T) {
		c := NewLRUCache(10)
		defer c.Close()

		if err := c.Set(ctx, "k1", []byte("v1"), time.Minute); err != nil {
			t.Fatalf("Set failed: %v", err)
		}

		val, err := c.Get(ctx, "k1")
		if err != nil {
			t.Fatalf("Get failed: %v", err)
		}
		if string(val) != "v1" {
			t.Errorf("value = %q, want v1", val)
		}
	})

	t.Run("MissReturnsNil", func(t *testing.T) {
		c := NewLRUCache(10)
		defer c.Close()

		val, err := c.Get(ctx, "missing")
		if err != nil {
			t.Fatalf("Get failed: %v", err)
		}
		if val != nil {
			t.Errorf("value = %q, want nil on miss", val)
		}
	})

	t.Run("TTLExpiry", func(t *testing.T) {
		c := NewLRUCache(10)
		defer c.Close()

		if err := c.Set(ctx, "ephemeral", []byte("x"), 10*time.Millisecond); err != nil {
			t.Fatalf("Set failed: %v", err)
		}

		time.Sleep(20 * time.Millisecond)

		val, err := c.Get(ctx, "ephemeral")
		if err != nil {
			t.Fatalf("Get failed: %v", err)
		}
		if val != nil {
			t.Errorf("value = %q, want nil after expiry", val)
		}
	})

	t.Run("EvictsLeastRecentlyUsed", func(t *testing.T) {
		c := NewLRUCache(2)
		defer c.Close()

		c.Set(ctx, "a", []byte("1"), time.Minute)
		c.Set(ctx, "b", []byte("2"), time.Minute)

		// Touch "a" so "b" is the eviction candidate.
		c.Get(ctx, "a")
		c.Set(ctx, "c", []byte("3"), time.Minute)

		if val, _ := c.Get(ctx, "b"); val != nil {
			t.Errorf("b = %q, want evicted", val)
		}
		if val, _ := c.Get(ctx, "a"); string(val) != "1" {
			t.Errorf("a = %q, want retained", val)
		}

		size, capacity := c.Stats()
		if size != 2 || capacity != 2 {
			t.Errorf("stats = %d/%d, want 2/2", size, capacity)
		}
	})

	t.Run("Delete", func(t *testing.T) {
		c := NewLRUCache(10)
		defer c.Close()

		c.Set(ctx, "k", []byte("v"), time.Minute)
		if err := c.Delete(ctx, "k"); err != nil {
			t.Fatalf("Delete failed: %v", err)
		}
		if val, _ := c.Get(ctx, "k"); val != nil {
			t.Errorf("value = %q, want nil after delete", val)
		}
	})
}

func TestLRUCacheProfiles(t *testing.T) {
	ctx := context.Background()
	c := NewLRUCache(10)
	defer c.Close()

	profile := &domain.CorridorProfile{
		CorridorCode:     "US-MX",
		MedianAmount:     347.5,
		P95Amount:        890,
		TransactionCount: 5000,
		ProfileDate:      time.Date(2026, 8, 24, 0, 0, 0, 0, time.UTC),
		Version:          "2026-W35",
		DataWindowDays:   28,
	}

	t.Run("RoundTrip", func(t *testing.T) {
		if err := c.SetProfile(ctx, "US-MX", profile, time.Minute); err != nil {
			t.Fatalf("SetProfile failed: %v", err)
		}

		got, err := c.GetProfile(ctx, "US-MX")
		if err != nil {
			t.Fatalf("GetProfile failed: %v", err)
		}
		if got == nil {
			t.Fatal("expected a cached profile")
		}
		if got.MedianAmount != profile.MedianAmount || got.Version != profile.Version {
			t.Errorf("cached profile = %+v, want %+v", got, profile)
		}
	})

	t.Run("MissReturnsNil", func(t *testing.T) {
		got, err := c.GetProfile(ctx, "XX-YY")
		if err != nil {
			t.Fatalf("GetProfile failed: %v", err)
		}
		if got != nil {
			t.Errorf("profile = %+v, want nil on miss", got)
		}
	})

	t.Run("Invalidate", func(t *testing.T) {
		if err := c.InvalidateProfile(ctx, "US-MX"); err != nil {
			t.Fatalf("InvalidateProfile failed: %v", err)
		}
		got, err := c.GetProfile(ctx, "US-MX")
		if err != nil {
			t.Fatalf("GetProfile failed: %v", err)
		}
		if got != nil {
			t.Errorf("profile = %+v, want nil after invalidation", got)
		}
	})
}

func TestNewCache(t *testing.T) {
	t.Run("Memory", func(t *testing.T) {
		c, err := New(domain.CacheConfig{Type: "memory", LocalMaxSize: 100})
		if err != nil {
			t.Fatalf("New failed: %v", err)
		}
		defer c.Close()

		if err := c.Ping(context.Background()); err != nil {
			t.Errorf("Ping failed: %v", err)
		}
	})

	t.Run("UnsupportedType", func(t *testing.T) {
		if _, err := New(domain.CacheConfig{Type: "memcached"}); err == nil {
			t.Error("expected error for unsupported cache type")
		}
	})
}
