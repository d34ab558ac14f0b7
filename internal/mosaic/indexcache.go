package mosaic

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"github.com/klauspost/compress/zstd"

	"github.com/ironsheep/mosaicr/internal/imaging"
)

// indexCacheVersion is bumped whenever the color pipeline changes in a way
// that invalidates stored colors.
const indexCacheVersion = 1

// IndexCache remembers the mean color of source images between runs.
//
// Entries are keyed by path and are only reused while the file's size and
// modification time are unchanged. The cache is stored as zstd-compressed
// JSON. It is safe for concurrent use.
type IndexCache struct {
	mu      sync.RWMutex
	path    string
	entries map[string]indexEntry
	dirty   bool
}

type indexEntry struct {
	Size    int64       `json:"size"`
	ModTime int64       `json:"mtime"`
	Lab     imaging.Lab `json:"lab"`
}

type indexFile struct {
	Version int                   `json:"version"`
	Entries map[string]indexEntry `json:"entries"`
}

// OpenIndexCache loads the cache stored at path.
//
// A missing file yields an empty cache and no error. An unreadable or
// corrupt file (or one written by another cache version) also yields an
// empty cache, together with an error describing the problem so the caller
// can log it.
func OpenIndexCache(path string) (*IndexCache, error) {
	c := &IndexCache{path: path, entries: make(map[string]indexEntry)}

	f, err := os.Open(path)
	if errors.Is(err, fs.ErrNotExist) {
		return c, nil
	}
	if err != nil {
		return c, fmt.Errorf("failed to open index cache: %w", err)
	}
	defer f.Close()

	dec, err := zstd.NewReader(f)
	if err != nil {
		return c, fmt.Errorf("failed to read index cache: %w", err)
	}
	defer dec.Close()

	var stored indexFile
	if err := json.NewDecoder(dec).Decode(&stored); err != nil {
		return c, fmt.Errorf("failed to decode index cache: %w", err)
	}
	if stored.Version != indexCacheVersion {
		return c, fmt.Errorf("index cache version %d not supported, rebuilding", stored.Version)
	}
	if stored.Entries != nil {
		c.entries = stored.Entries
	}
	return c, nil
}

// Len returns the number of cached entries.
func (c *IndexCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// Lookup returns the cached color for path if info still matches the entry.
func (c *IndexCache) Lookup(path string, info fs.FileInfo) (imaging.Lab, bool) {
	c.mu.RLock()
	e, ok := c.entries[path]
	c.mu.RUnlock()
	if !ok || e.Size != info.Size() || e.ModTime != info.ModTime().UnixNano() {
		return imaging.Lab{}, false
	}
	return e.Lab, true
}

// Store records the color of path.
func (c *IndexCache) Store(path string, info fs.FileInfo, lab imaging.Lab) {
	c.mu.Lock()
	c.entries[path] = indexEntry{Size: info.Size(), ModTime: info.ModTime().UnixNano(), Lab: lab}
	c.dirty = true
	c.mu.Unlock()
}

// Save writes the cache back to disk if anything changed. The file is
// written to a temporary name first and renamed into place.
func (c *IndexCache) Save() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.dirty {
		return nil
	}

	if err := os.MkdirAll(filepath.Dir(c.path), 0o755); err != nil {
		return fmt.Errorf("failed to create index cache directory: %w", err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(c.path), ".index-cache-*")
	if err != nil {
		return fmt.Errorf("failed to create index cache: %w", err)
	}
	defer os.Remove(tmp.Name())

	enc, err := zstd.NewWriter(tmp)
	if err != nil {
		tmp.Close()
		return fmt.Errorf("failed to compress index cache: %w", err)
	}
	if err := json.NewEncoder(enc).Encode(indexFile{Version: indexCacheVersion, Entries: c.entries}); err != nil {
		enc.Close()
		tmp.Close()
		return fmt.Errorf("failed to encode index cache: %w", err)
	}
	if err := enc.Close(); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to compress index cache: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to write index cache: %w", err)
	}
	if err := os.Rename(tmp.Name(), c.path); err != nil {
		return fmt.Errorf("failed to write index cache: %w", err)
	}
	c.dirty = false
	return nil
}
