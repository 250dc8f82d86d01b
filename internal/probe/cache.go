package probe

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"gopkg.in/yaml.v3"
)

// Cache persists probe results across runs, keyed by printable URL so that
// no credentials end up on disk.
type Cache struct {
	mu      sync.Mutex
	path    string
	entries map[string]Info
	dirty   bool
}

// OpenCache loads path. A missing file is an empty cache.
func OpenCache(path string) (*Cache, error) {
	c := &Cache{path: path, entries: map[string]Info{}}
	if path == "" {
		return c, nil
	}
	raw, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return c, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read stream info cache: %w", err)
	}
	if err := yaml.Unmarshal(raw, &c.entries); err != nil {
		return nil, fmt.Errorf("decode stream info cache %s: %w", path, err)
	}
	if c.entries == nil {
		c.entries = map[string]Info{}
	}
	return c, nil
}

func (c *Cache) Get(key string) (Info, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	info, ok := c.entries[key]
	return info, ok
}

func (c *Cache) Put(key string, info Info) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = info
	c.dirty = true
}

// Clear drops every entry, as for --rebuild-cache.
func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.entries) > 0 {
		c.dirty = true
	}
	c.entries = map[string]Info{}
}

func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// Save writes the cache atomically when it changed.
func (c *Cache) Save() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.dirty || c.path == "" {
		return nil
	}
	raw, err := yaml.Marshal(c.entries)
	if err != nil {
		return err
	}
	tmp, err := os.CreateTemp(filepath.Dir(c.path), ".streaminfo-*")
	if err != nil {
		return fmt.Errorf("write stream info cache: %w", err)
	}
	if _, err := tmp.Write(raw); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("write stream info cache: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	if err := os.Rename(tmp.Name(), c.path); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("write stream info cache: %w", err)
	}
	c.dirty = false
	return nil
}
