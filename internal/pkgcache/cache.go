package pkgcache

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"sort"
	"strings"
	"sync"
	"time"

	"titlevault/internal/fileutil"
	"titlevault/internal/logging"
)

// Entry is a cached package header lookup.
type Entry struct {
	URL       string    `json:"url"`
	ContentID string    `json:"content_id"`
	Size      int64     `json:"size"`
	CachedAt  time.Time `json:"cached_at"`
}

// Cache provides thread-safe access to the package cache.
type Cache struct {
	path    string
	logger  *slog.Logger
	mu      sync.RWMutex
	entries map[string]Entry // keyed by URL
}

// NewCache creates a cache backed by path. An empty path yields a cache whose
// operations are no-ops. The file is created lazily on the first Store.
func NewCache(path string, logger *slog.Logger) *Cache {
	if logger == nil {
		logger = logging.NewNop()
	}
	logger = logging.NewComponentLogger(logger, "pkgcache")

	c := &Cache{
		path:    path,
		logger:  logger,
		entries: make(map[string]Entry),
	}
	if path == "" {
		return c
	}

	if err := c.load(); err != nil {
		logging.WarnWithContext(logger, "failed to load package cache", "pkgcache_load_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "cache will start empty; run `titlevault cache clear` to rewrite it"),
			logging.String(logging.FieldImpact, "package headers will be fetched again"))
	}
	return c
}

// Path returns the backing file path.
func (c *Cache) Path() string { return c.path }

// Lookup returns the entry cached for url.
func (c *Cache) Lookup(url string) (Entry, bool) {
	url = strings.TrimSpace(url)
	if url == "" || c.path == "" {
		return Entry{}, false
	}

	c.mu.RLock()
	defer c.mu.RUnlock()

	entry, found := c.entries[url]
	return entry, found
}

// Store adds or replaces an entry and persists the cache.
func (c *Cache) Store(entry Entry) error {
	entry.URL = strings.TrimSpace(entry.URL)
	if entry.URL == "" {
		return errors.New("package url cannot be empty")
	}
	if c.path == "" {
		return nil
	}
	if entry.CachedAt.IsZero() {
		entry.CachedAt = time.Now().UTC()
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries[entry.URL] = entry
	if err := c.save(); err != nil {
		return fmt.Errorf("persist cache: %w", err)
	}

	c.logger.Debug("cached package header",
		logging.String("url", entry.URL),
		logging.String(logging.FieldCanonicalID, entry.ContentID),
		logging.Int64("size", entry.Size))
	return nil
}

// Remove deletes the entry for url.
func (c *Cache) Remove(url string) error {
	url = strings.TrimSpace(url)
	if url == "" {
		return errors.New("package url cannot be empty")
	}
	if c.path == "" {
		return nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.entries[url]; !exists {
		return fmt.Errorf("package url %q not found in cache", url)
	}
	delete(c.entries, url)
	if err := c.save(); err != nil {
		return fmt.Errorf("persist cache: %w", err)
	}
	return nil
}

// List returns every entry, newest first.
func (c *Cache) List() []Entry {
	if c.path == "" {
		return nil
	}

	c.mu.RLock()
	defer c.mu.RUnlock()

	return c.sortedLocked()
}

// Clear removes all entries and persists the empty cache.
func (c *Cache) Clear() error {
	if c.path == "" {
		return nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries = make(map[string]Entry)
	if err := c.save(); err != nil {
		return fmt.Errorf("persist cache: %w", err)
	}
	c.logger.Debug("cleared package cache")
	return nil
}

// Count returns the number of entries.
func (c *Cache) Count() int {
	if c.path == "" {
		return 0
	}

	c.mu.RLock()
	defer c.mu.RUnlock()

	return len(c.entries)
}

func (c *Cache) sortedLocked() []Entry {
	entries := make([]Entry, 0, len(c.entries))
	for _, entry := range c.entries {
		entries = append(entries, entry)
	}
	sort.Slice(entries, func(i, j int) bool {
		if !entries[i].CachedAt.Equal(entries[j].CachedAt) {
			return entries[i].CachedAt.After(entries[j].CachedAt)
		}
		return entries[i].URL < entries[j].URL
	})
	return entries
}

func (c *Cache) load() error {
	data, err := os.ReadFile(c.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("read cache file: %w", err)
	}
	if len(data) == 0 {
		return nil
	}

	var entries []Entry
	if err := json.Unmarshal(data, &entries); err != nil {
		return fmt.Errorf("parse cache file: %w", err)
	}

	c.entries = make(map[string]Entry, len(entries))
	for _, entry := range entries {
		if strings.TrimSpace(entry.URL) != "" {
			c.entries[entry.URL] = entry
		}
	}

	c.logger.Debug("loaded package cache",
		logging.Int("entry_count", len(c.entries)),
		logging.String("path", c.path))
	return nil
}

// save writes the cache atomically via a temp file.
func (c *Cache) save() error {
	data, err := json.MarshalIndent(c.sortedLocked(), "", "  ")
	if err != nil {
		return fmt.Errorf("marshal cache: %w", err)
	}
	if err := fileutil.WriteFileAtomic(c.path, data, 0o644); err != nil {
		return fmt.Errorf("write cache file: %w", err)
	}
	return nil
}
