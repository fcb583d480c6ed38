// Cinifob - Movie Discovery and Watch Tracking
// Copyright 2026 hishamktd
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/hishamktd/cinifob

package cache

import (
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/hishamktd/cinifob/internal/metrics"
)

func TestCacheBasicOperations(t *testing.T) {
	t.Parallel()

	c := New("", time.Minute)
	defer c.Close()

	c.Set("key1", "value1")
	value, exists := c.Get("key1")
	if !exists {
		t.Error("Expected key1 to exist")
	}
	if value != "value1" {
		t.Errorf("Expected value1, got %v", value)
	}

	if _, exists = c.Get("key2"); exists {
		t.Error("Expected key2 to not exist")
	}
}

func TestCacheExpiration(t *testing.T) {
	t.Parallel()

	c := New("", 50*time.Millisecond)
	defer c.Close()

	c.Set("key1", "value1")
	if _, exists := c.Get("key1"); !exists {
		t.Error("Expected key1 to exist immediately after set")
	}

	time.Sleep(80 * time.Millisecond)

	if _, exists := c.Get("key1"); exists {
		t.Error("Expected key1 to be expired")
	}
	if c.Len() != 0 {
		t.Errorf("expired entry should be removed on read, Len() = %d", c.Len())
	}
}

func TestCacheDeleteAndClear(t *testing.T) {
	t.Parallel()

	c := New("", time.Minute)
	defer c.Close()

	c.Set("key1", "value1")
	c.Set("key2", "value2")
	c.Set("key3", "value3")

	c.Delete("key1")
	c.Delete("missing")
	if _, ok := c.Get("key1"); ok {
		t.Error("Expected key1 to be deleted")
	}

	c.Clear()
	for _, key := range []string{"key2", "key3"} {
		if _, ok := c.Get(key); ok {
			t.Errorf("Expected %s to be cleared", key)
		}
	}

	stats := c.GetStats()
	if stats.Evictions != 3 {
		t.Errorf("Evictions = %d, want 3", stats.Evictions)
	}
	if stats.TotalKeys != 0 {
		t.Errorf("TotalKeys = %d, want 0", stats.TotalKeys)
	}
}

func TestCacheSetWithTTLOverridesDefault(t *testing.T) {
	t.Parallel()

	c := New("", 20*time.Millisecond)
	defer c.Close()

	c.SetWithTTL("long", "v", time.Minute)
	c.Set("short", "v")
	time.Sleep(40 * time.Millisecond)

	if _, ok := c.Get("long"); !ok {
		t.Error("custom TTL entry expired early")
	}
	if _, ok := c.Get("short"); ok {
		t.Error("default TTL entry should have expired")
	}
}

func TestCacheHitRate(t *testing.T) {
	t.Parallel()

	c := New("", time.Minute)
	defer c.Close()

	if c.HitRate() != 0 {
		t.Errorf("HitRate() with no lookups = %v", c.HitRate())
	}

	c.Set("a", 1)
	c.Get("a")
	c.Get("a")
	c.Get("a")
	c.Get("b")

	if got := c.HitRate(); got != 75 {
		t.Errorf("HitRate() = %v, want 75", got)
	}
}

func TestCacheCleanupLoop(t *testing.T) {
	t.Parallel()

	c := NewWithCleanup("", 10*time.Millisecond, 20*time.Millisecond)
	defer c.Close()

	for i := 0; i < 10; i++ {
		c.Set(fmt.Sprintf("key%d", i), i)
	}

	deadline := time.Now().Add(2 * time.Second)
	for c.Len() > 0 && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	if c.Len() != 0 {
		t.Fatalf("cleanup loop left %d entries", c.Len())
	}
	if c.GetStats().Evictions < 10 {
		t.Errorf("Evictions = %d, want >= 10", c.GetStats().Evictions)
	}
}

func TestCacheCloseIsIdempotent(t *testing.T) {
	t.Parallel()

	c := New("", time.Minute)
	c.Close()
	c.Close()
}

func TestCacheMetrics(t *testing.T) {
	c := New("test_metrics", time.Minute)
	defer c.Close()

	hits := testutil.ToFloat64(metrics.CacheHits.WithLabelValues("test_metrics"))
	misses := testutil.ToFloat64(metrics.CacheMisses.WithLabelValues("test_metrics"))

	c.Set("a", 1)
	c.Set("b", 2)
	c.Get("a")
	c.Get("zzz")

	if got := testutil.ToFloat64(metrics.CacheHits.WithLabelValues("test_metrics")) - hits; got != 1 {
		t.Errorf("hits delta = %v, want 1", got)
	}
	if got := testutil.ToFloat64(metrics.CacheMisses.WithLabelValues("test_metrics")) - misses; got != 1 {
		t.Errorf("misses delta = %v, want 1", got)
	}
	if got := testutil.ToFloat64(metrics.CacheSize.WithLabelValues("test_metrics")); got != 2 {
		t.Errorf("size = %v, want 2", got)
	}
}

func TestCacheConcurrency(t *testing.T) {
	t.Parallel()

	c := New("", time.Minute)
	defer c.Close()

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				key := fmt.Sprintf("k%d", (n+j)%10)
				c.Set(key, j)
				c.Get(key)
				if j%25 == 0 {
					c.Delete(key)
				}
			}
		}(i)
	}
	wg.Wait()
}

func TestGenerateKey(t *testing.T) {
	t.Parallel()

	type params struct {
		Genre int
		Query string
	}

	a := GenerateKey("movies", params{Genre: 28, Query: "matrix"})
	b := GenerateKey("movies", params{Genre: 28, Query: "matrix"})
	c := GenerateKey("movies", params{Genre: 12, Query: "matrix"})

	if a != b {
		t.Error("same params should produce the same key")
	}
	if a == c {
		t.Error("different params should produce different keys")
	}
	if !strings.HasPrefix(a, "movies:") {
		t.Errorf("key %q should carry the method prefix", a)
	}

	if got := GenerateKey("bad", make(chan int)); !strings.HasPrefix(got, "bad:") {
		t.Errorf("unmarshalable params fallback = %q", got)
	}
}

func TestMovieKey(t *testing.T) {
	t.Parallel()

	if got := MovieKey(550); got != "movie:550" {
		t.Errorf("MovieKey(550) = %q", got)
	}
}
