package cache

import (
	"bytes"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"
)

func newTestCache(t *testing.T, config Config) *Cache {
	t.Helper()
	if config.Dir == "" {
		config.Dir = t.TempDir()
	}
	c, err := New(config)
	if err != nil {
		t.Fatalf("Failed to create cache: %v", err)
	}
	return c
}

func TestCache_GetPut(t *testing.T) {
	c := newTestCache(t, Config{MaxSize: 1 << 20, MaxAge: time.Hour})

	key := Key("v1", "template\n  p hi")
	data := []byte("export default defineComponent({});")
	if err := c.Put(key, "app.pupper", data); err != nil {
		t.Fatalf("Failed to put data: %v", err)
	}

	got, found := c.Get(key)
	if !found {
		t.Fatal("Data not found in cache")
	}
	if !bytes.Equal(got, data) {
		t.Errorf("Retrieved data doesn't match: got %s, want %s", got, data)
	}
	if _, found := c.Get("missing"); found {
		t.Error("Found non-existent key")
	}

	stats := c.Stats()
	if stats.Hits != 1 || stats.Misses != 1 {
		t.Errorf("Expected 1 hit and 1 miss, got %+v", stats)
	}
	if stats.Entries != 1 || stats.TotalSize != int64(len(data)) {
		t.Errorf("Unexpected size stats: %+v", stats)
	}
}

func TestCache_PutReplaces(t *testing.T) {
	c := newTestCache(t, Config{})

	if err := c.Put("k", "a.pupper", []byte("first")); err != nil {
		t.Fatal(err)
	}
	if err := c.Put("k", "a.pupper", []byte("second!")); err != nil {
		t.Fatal(err)
	}
	got, _ := c.Get("k")
	if string(got) != "second!" {
		t.Errorf("Get() = %q", got)
	}
	if stats := c.Stats(); stats.Entries != 1 || stats.TotalSize != 7 {
		t.Errorf("Unexpected stats: %+v", stats)
	}
}

func TestKey(t *testing.T) {
	if Key("a", "bc") == Key("ab", "c") {
		t.Error("Expected part boundaries to change the key")
	}
	if Key("v1", "src") != Key("v1", "src") {
		t.Error("Expected keys to be stable")
	}
	if Key("v1", "src") == Key("v2", "src") {
		t.Error("Expected the version to change the key")
	}
}

func TestCache_Persistence(t *testing.T) {
	dir := t.TempDir()
	c := newTestCache(t, Config{Dir: dir})
	if err := c.Put("persist", "a.pupper", []byte("module")); err != nil {
		t.Fatal(err)
	}
	if err := c.Close(); err != nil {
		t.Fatal(err)
	}

	reopened := newTestCache(t, Config{Dir: dir})
	got, found := reopened.Get("persist")
	if !found || string(got) != "module" {
		t.Errorf("Get() after reopen = %q, %v", got, found)
	}
}

func TestCache_CorruptIndex(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "index.json"), []byte("{not json"), 0644); err != nil {
		t.Fatal(err)
	}
	c := newTestCache(t, Config{Dir: dir})
	if stats := c.Stats(); stats.Entries != 0 {
		t.Errorf("Expected an empty cache, got %+v", stats)
	}
	if err := c.Put("k", "a.pupper", []byte("x")); err != nil {
		t.Fatal(err)
	}
}

func TestCache_MissingArtifactIsPruned(t *testing.T) {
	dir := t.TempDir()
	c := newTestCache(t, Config{Dir: dir})
	if err := c.Put("gone", "a.pupper", []byte("x")); err != nil {
		t.Fatal(err)
	}
	for _, e := range c.Entries() {
		os.Remove(e.Path)
	}
	c.Close()

	reopened := newTestCache(t, Config{Dir: dir})
	if n := len(reopened.Entries()); n != 0 {
		t.Errorf("Expected pruned entries, got %d", n)
	}
}

func TestCache_Expiry(t *testing.T) {
	c := newTestCache(t, Config{MaxAge: time.Minute})
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return now }

	if err := c.Put("k", "a.pupper", []byte("x")); err != nil {
		t.Fatal(err)
	}
	now = now.Add(2 * time.Minute)
	if _, found := c.Get("k"); found {
		t.Error("Expected expired entry to miss")
	}
	if n := len(c.Entries()); n != 0 {
		t.Errorf("Expected expired entry to be removed, %d left", n)
	}
}

func TestCache_Eviction(t *testing.T) {
	tests := []struct {
		name     string
		strategy EvictionStrategy
		evicted  string
	}{
		{"LRU", LRU, "b"},
		{"FIFO", FIFO, "a"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestCache(t, Config{MaxSize: 10, Strategy: tt.strategy})
			now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
			c.now = func() time.Time {
				now = now.Add(time.Second)
				return now
			}

			c.Put("a", "a.pupper", []byte("aaaa"))
			c.Put("b", "b.pupper", []byte("bbbb"))
			c.Get("a")
			if err := c.Put("c", "c.pupper", []byte("cccc")); err != nil {
				t.Fatal(err)
			}

			if _, found := c.index.Entries[tt.evicted]; found {
				t.Errorf("Expected %s to be evicted", tt.evicted)
			}
			if stats := c.Stats(); stats.Evictions != 1 || stats.Entries != 2 {
				t.Errorf("Unexpected stats: %+v", stats)
			}
		})
	}
}

func TestCache_TooLarge(t *testing.T) {
	c := newTestCache(t, Config{MaxSize: 4})
	if err := c.Put("k", "a.pupper", []byte("too large")); err == nil {
		t.Error("Expected an error for an artifact larger than the cache")
	}
}

func TestCache_InvalidateSource(t *testing.T) {
	c := newTestCache(t, Config{})
	src := filepath.Join("app", "components")
	c.Put("1", filepath.Join(src, "a.pupper"), []byte("a"))
	c.Put("2", filepath.Join(src, "nested", "b.pupper"), []byte("b"))
	c.Put("3", filepath.Join("app", "main.pupper"), []byte("c"))

	if n := c.InvalidateSource(src); n != 2 {
		t.Errorf("InvalidateSource(dir) = %d, want 2", n)
	}
	if n := c.InvalidateSource(filepath.Join("app", "main.pupper")); n != 1 {
		t.Errorf("InvalidateSource(file) = %d, want 1", n)
	}
	if n := len(c.Entries()); n != 0 {
		t.Errorf("Expected an empty cache, %d left", n)
	}
}

func TestCache_Clear(t *testing.T) {
	c := newTestCache(t, Config{})
	c.Put("1", "a.pupper", []byte("a"))
	c.Put("2", "b.pupper", []byte("b"))

	if err := c.Clear(); err != nil {
		t.Fatalf("Clear() error = %v", err)
	}
	if _, found := c.Get("1"); found {
		t.Error("Expected cleared entry to miss")
	}
	if stats := c.Stats(); stats.Entries != 0 || stats.TotalSize != 0 {
		t.Errorf("Unexpected stats after clear: %+v", stats)
	}
}

func TestCache_Concurrent(t *testing.T) {
	c := newTestCache(t, Config{})
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			key := Key("v1", string(rune('a'+i)))
			if err := c.Put(key, "a.pupper", []byte{byte(i)}); err != nil {
				t.Error(err)
				return
			}
			c.Get(key)
		}(i)
	}
	wg.Wait()

	if stats := c.Stats(); stats.Entries != 8 || stats.Hits != 8 {
		t.Errorf("Unexpected stats: %+v", stats)
	}
}
