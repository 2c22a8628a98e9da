package cache

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	"github.com/zeebo/blake3"

	"github.com/toastate/toastcdn/internal/helpers"
	"github.com/toastate/toastcdn/internal/tlogger"
)

// OptionKey holds the serialized upload options the entries were recorded with.
const OptionKey = "passToCdn"

// DefaultLocation is used when no cache location is configured.
const DefaultLocation = ".toastcdn-cache.json"

// Cache remembers the URL each content hash was uploaded to.
type Cache interface {
	ShouldUpload(hash string) bool
	Record(hash, url string)
	Lookup(hash string) (string, bool)
	Close() error
}

// HashFile returns the hex encoded blake3 sum of the file content.
func HashFile(p string) (string, error) {
	f, err := os.Open(p)
	if err != nil {
		return "", err
	}
	defer f.Close()

	h := blake3.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// FileCache is a Cache persisted as a flat JSON object. Entries recorded with
// different upload options are dropped when the cache is opened.
type FileCache struct {
	mu       sync.RWMutex
	path     string
	snapshot string
	entries  map[string]string
	dirty    bool
}

// Open loads the cache at p, creating it on Close if needed. options is the
// value forwarded to the uploader, its JSON form is the snapshot.
func Open(p string, options any) (*FileCache, error) {
	if p == "" {
		p = DefaultLocation
	}

	snapshot, err := helpers.MarshalJson(options)
	if err != nil {
		return nil, fmt.Errorf("serializing cache options: %w", err)
	}

	c := &FileCache{
		path:     p,
		snapshot: string(snapshot),
		entries:  make(map[string]string),
	}

	raw, err := os.ReadFile(p)
	switch {
	case os.IsNotExist(err):
		c.dirty = true
		return c, nil
	case err != nil:
		return nil, err
	}

	stored := make(map[string]json.RawMessage)
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &stored); err != nil {
			tlogger.Warn("cache", "file", "msg", "unreadable cache, starting empty", "path", p, "err", err)
			c.dirty = true
			return c, nil
		}
	}

	if prev, ok := stored[OptionKey]; !ok || !sameJSON(prev, snapshot) {
		if len(stored) > 0 {
			tlogger.Info("cache", "file", "msg", "upload options changed, cache invalidated", "path", p)
		}
		c.dirty = true
		return c, nil
	}

	for k, v := range stored {
		if k == OptionKey {
			continue
		}
		var url string
		if err := json.Unmarshal(v, &url); err != nil || url == "" {
			continue
		}
		c.entries[k] = url
	}
	tlogger.Debug("cache", "file", "msg", "loaded", "path", p, "entries", len(c.entries))
	return c, nil
}

func sameJSON(a, b []byte) bool {
	var va, vb any
	if json.Unmarshal(a, &va) != nil || json.Unmarshal(b, &vb) != nil {
		return false
	}
	ca, _ := json.Marshal(va)
	cb, _ := json.Marshal(vb)
	return string(ca) == string(cb)
}

func (c *FileCache) ShouldUpload(hash string) bool {
	_, ok := c.Lookup(hash)
	return !ok
}

func (c *FileCache) Lookup(hash string) (string, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	url, ok := c.entries[hash]
	return url, ok && url != ""
}

func (c *FileCache) Record(hash, url string) {
	if hash == "" || url == "" || hash == OptionKey {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.entries[hash] != url {
		c.entries[hash] = url
		c.dirty = true
	}
}

// Len returns the number of entries.
func (c *FileCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// Close writes the cache back if it changed.
func (c *FileCache) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.dirty {
		return nil
	}

	out := make(map[string]json.RawMessage, len(c.entries)+1)
	for k, v := range c.entries {
		b, err := helpers.MarshalJson(v)
		if err != nil {
			return err
		}
		out[k] = b
	}
	out[OptionKey] = json.RawMessage(c.snapshot)

	b, err := helpers.MarshalJson(out)
	if err != nil {
		return err
	}

	if dir := filepath.Dir(c.path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return err
		}
	}
	tmp := c.path + ".tmp"
	if err := os.WriteFile(tmp, b, 0644); err != nil {
		return err
	}
	if err := os.Rename(tmp, c.path); err != nil {
		return err
	}
	c.dirty = false
	tlogger.Debug("cache", "file", "msg", "saved", "path", c.path, "entries", len(c.entries))
	return nil
}

// Memory is a Cache that is never persisted.
type Memory struct {
	mu      sync.RWMutex
	entries map[string]string
}

func NewMemory() *Memory {
	return &Memory{entries: make(map[string]string)}
}

func (m *Memory) ShouldUpload(hash string) bool {
	_, ok := m.Lookup(hash)
	return !ok
}

func (m *Memory) Lookup(hash string) (string, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	url, ok := m.entries[hash]
	return url, ok
}

func (m *Memory) Record(hash, url string) {
	if url == "" {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[hash] = url
}

func (m *Memory) Close() error {
	return nil
}
