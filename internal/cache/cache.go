// Package cache stores compiled component modules on disk so unchanged
// sources are not compiled again by the CLI.
package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"
)

// indexVersion changes whenever the index layout does
const indexVersion = "2"

// Cache is a directory of compiled artifacts with a JSON index
type Cache struct {
	mu       sync.Mutex
	dir      string
	index    *Index
	maxSize  int64
	maxAge   time.Duration
	strategy EvictionStrategy
	stats    Stats
	now      func() time.Time
}

// Index lists every cached artifact
type Index struct {
	Version string            `json:"version"`
	Entries map[string]*Entry `json:"entries"`
}

// Entry is one cached artifact
type Entry struct {
	Key string `json:"key"`

	// Source is the file the artifact was compiled from
	Source string `json:"source"`
	Path   string `json:"path"`
	Size   int64  `json:"size"`

	Created    time.Time `json:"created"`
	LastAccess time.Time `json:"last_access"`
	Hits       int       `json:"hits"`
}

// Stats counts cache activity since the cache was opened
type Stats struct {
	Hits      int64 `json:"hits"`
	Misses    int64 `json:"misses"`
	Evictions int64 `json:"evictions"`
	TotalSize int64 `json:"total_size"`
	Entries   int   `json:"entries"`
}

// EvictionStrategy selects the entry removed when the cache is full
type EvictionStrategy int

const (
	// LRU removes the least recently used entry
	LRU EvictionStrategy = iota
	// FIFO removes the oldest entry
	FIFO
)

// Config holds cache configuration
type Config struct {
	Dir      string           // Cache directory (default: $HOME/.cache/pupper)
	MaxSize  int64            // Maximum total artifact size, 0 for no limit
	MaxAge   time.Duration    // Maximum entry age, 0 for no limit
	Strategy EvictionStrategy // Eviction strategy (default: LRU)
}

// DefaultConfig returns the default cache configuration
func DefaultConfig() Config {
	homeDir, _ := os.UserHomeDir()
	return Config{
		Dir:      filepath.Join(homeDir, ".cache", "pupper"),
		MaxSize:  256 << 20,
		MaxAge:   7 * 24 * time.Hour,
		Strategy: LRU,
	}
}

// New opens the cache in config.Dir, creating it when needed. Expired
// entries and entries whose artifact is gone are dropped.
func New(config Config) (*Cache, error) {
	if config.Dir == "" {
		config = DefaultConfig()
	}
	if err := os.MkdirAll(filepath.Join(config.Dir, "artifacts"), 0755); err != nil {
		return nil, fmt.Errorf("failed to create cache directory: %w", err)
	}

	c := &Cache{
		dir:      config.Dir,
		maxSize:  config.MaxSize,
		maxAge:   config.MaxAge,
		strategy: config.Strategy,
		now:      time.Now,
		index:    &Index{Version: indexVersion, Entries: make(map[string]*Entry)},
	}
	if err := c.loadIndex(); err != nil && !os.IsNotExist(err) {
		// a corrupt index starts the cache over
		c.index = &Index{Version: indexVersion, Entries: make(map[string]*Entry)}
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.pruneLocked()
	return c, c.saveLocked()
}

// Key derives a cache key from the compiler version, the options that
// affect output and the source text
func Key(parts ...string) string {
	h := sha256.New()
	for _, p := range parts {
		fmt.Fprintf(h, "%d:%s;", len(p), p)
	}
	return hex.EncodeToString(h.Sum(nil))
}

// Get returns the artifact stored under key
func (c *Cache) Get(key string) ([]byte, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.index.Entries[key]
	if !ok || c.expired(entry) {
		if ok {
			c.removeLocked(key)
		}
		c.stats.Misses++
		return nil, false
	}
	data, err := os.ReadFile(entry.Path)
	if err != nil {
		c.removeLocked(key)
		c.stats.Misses++
		return nil, false
	}

	entry.LastAccess = c.now()
	entry.Hits++
	c.stats.Hits++
	return data, true
}

// Put stores data under key. source names the file it was compiled from
// so InvalidateSource can drop it.
func (c *Cache) Put(key, source string, data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	size := int64(len(data))
	if c.maxSize > 0 && size > c.maxSize {
		return fmt.Errorf("artifact of %d bytes exceeds the cache size", size)
	}
	if _, ok := c.index.Entries[key]; ok {
		c.removeLocked(key)
	}
	for c.maxSize > 0 && c.stats.TotalSize+size > c.maxSize && len(c.index.Entries) > 0 {
		c.removeLocked(c.victim())
		c.stats.Evictions++
	}

	path := filepath.Join(c.dir, "artifacts", key[:min(len(key), 32)]+".js")
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write cache file: %w", err)
	}
	now := c.now()
	c.index.Entries[key] = &Entry{
		Key:        key,
		Source:     source,
		Path:       path,
		Size:       size,
		Created:    now,
		LastAccess: now,
	}
	c.stats.TotalSize += size
	c.stats.Entries = len(c.index.Entries)
	return c.saveLocked()
}

// InvalidateSource drops every artifact compiled from source or from a
// file below it. It returns the number of entries removed.
func (c *Cache) InvalidateSource(source string) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	prefix := strings.TrimSuffix(source, string(filepath.Separator)) + string(filepath.Separator)
	count := 0
	for key, entry := range c.index.Entries {
		if entry.Source == source || strings.HasPrefix(entry.Source, prefix) {
			c.removeLocked(key)
			count++
		}
	}
	if count > 0 {
		_ = c.saveLocked()
	}
	return count
}

// Clear removes every artifact
func (c *Cache) Clear() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := os.RemoveAll(filepath.Join(c.dir, "artifacts")); err != nil {
		return fmt.Errorf("failed to clear artifacts: %w", err)
	}
	if err := os.MkdirAll(filepath.Join(c.dir, "artifacts"), 0755); err != nil {
		return fmt.Errorf("failed to clear artifacts: %w", err)
	}
	c.index.Entries = make(map[string]*Entry)
	c.stats = Stats{}
	return c.saveLocked()
}

// Stats returns the cache statistics
func (c *Cache) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stats
}

// Entries returns the cached entries ordered by key
func (c *Cache) Entries() []Entry {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make([]Entry, 0, len(c.index.Entries))
	for _, e := range c.index.Entries {
		out = append(out, *e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out
}

// Close writes the index
func (c *Cache) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.saveLocked()
}

func (c *Cache) expired(e *Entry) bool {
	return c.maxAge > 0 && c.now().Sub(e.Created) > c.maxAge
}

// victim picks the entry to evict. Ties are broken by key.
func (c *Cache) victim() string {
	var best *Entry
	for _, e := range c.index.Entries {
		if best == nil || c.older(e, best) {
			best = e
		}
	}
	return best.Key
}

func (c *Cache) older(a, b *Entry) bool {
	ta, tb := a.LastAccess, b.LastAccess
	if c.strategy == FIFO {
		ta, tb = a.Created, b.Created
	}
	if ta.Equal(tb) {
		return a.Key < b.Key
	}
	return ta.Before(tb)
}

func (c *Cache) pruneLocked() {
	for key, e := range c.index.Entries {
		if _, err := os.Stat(e.Path); err != nil || c.expired(e) {
			c.removeLocked(key)
		}
	}
}

func (c *Cache) removeLocked(key string) {
	e, ok := c.index.Entries[key]
	if !ok {
		return
	}
	if err := os.Remove(e.Path); err != nil && !os.IsNotExist(err) {
		fmt.Fprintf(os.Stderr, "Warning: failed to remove cache file %s: %v\n", e.Path, err)
	}
	delete(c.index.Entries, key)
	c.stats.TotalSize -= e.Size
	c.stats.Entries = len(c.index.Entries)
}

func (c *Cache) loadIndex() error {
	data, err := os.ReadFile(filepath.Join(c.dir, "index.json"))
	if err != nil {
		return err
	}
	var index Index
	if err := json.Unmarshal(data, &index); err != nil {
		return err
	}
	if index.Version != indexVersion || index.Entries == nil {
		return fmt.Errorf("cache index version %q", index.Version)
	}

	c.index = &index
	for _, e := range index.Entries {
		c.stats.TotalSize += e.Size
	}
	c.stats.Entries = len(index.Entries)
	return nil
}

func (c *Cache) saveLocked() error {
	data, err := json.MarshalIndent(c.index, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(c.dir, "index.json"), data, 0644)
}
