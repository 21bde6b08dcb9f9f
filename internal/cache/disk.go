package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"
)

const diskEntryExt = ".json"

// DiskCache keeps SPARQL result rows across restarts. Entries are JSON
// files sharded by the first byte of the key hash; each file records its
// key and expiry so that Prune can clean the directory without an index.
type DiskCache struct {
	dir string
	ttl time.Duration
	now func() time.Time
}

// NewDiskCache creates a disk cache rooted at dir. ttl applies to Set calls with a zero TTL.
func NewDiskCache(dir string, ttl time.Duration) *DiskCache {
	return &DiskCache{dir: dir, ttl: ttl, now: time.Now}
}

type diskEntry struct {
	Key       string    `json:"key"`
	Data      []byte    `json:"data"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Get returns the value stored under key if it has not expired.
func (c *DiskCache) Get(key string) ([]byte, bool) {
	entry, ok := c.lookup(key)
	if !ok {
		return nil, false
	}
	return entry.Data, true
}

// lookup reads the live entry for key. Expired entries are removed.
func (c *DiskCache) lookup(key string) (diskEntry, bool) {
	path := c.path(key)
	entry, err := readDiskEntry(path)
	if err != nil || entry.Key != key {
		return diskEntry{}, false
	}
	if !c.now().Before(entry.ExpiresAt) {
		_ = os.Remove(path)
		return diskEntry{}, false
	}
	return entry, true
}

// Set writes value under key through a temp file and a rename.
// A negative ttl stores an entry that is already expired.
func (c *DiskCache) Set(key string, value []byte, ttl time.Duration) error {
	if ttl == 0 {
		ttl = c.ttl
	}
	data, err := json.Marshal(diskEntry{Key: key, Data: value, ExpiresAt: c.now().Add(ttl)})
	if err != nil {
		return fmt.Errorf("marshal entry: %w", err)
	}

	path := c.path(key)
	shard := filepath.Dir(path)
	if err := os.MkdirAll(shard, 0o755); err != nil {
		return fmt.Errorf("create cache shard: %w", err)
	}

	tmp, err := os.CreateTemp(shard, "entry-*.tmp")
	if err != nil {
		return fmt.Errorf("create temp cache file: %w", err)
	}
	defer func() { _ = os.Remove(tmp.Name()) }()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("write cache file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close cache file: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("rename cache file: %w", err)
	}
	return nil
}

// Delete removes key. Deleting a missing key is not an error.
func (c *DiskCache) Delete(key string) error {
	if err := os.Remove(c.path(key)); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return nil
}

// Clear removes the whole cache directory.
func (c *DiskCache) Clear() error {
	return os.RemoveAll(c.dir)
}

// Prune removes expired and unreadable entries and returns how many were removed.
// A missing cache directory is empty.
func (c *DiskCache) Prune() (int, error) {
	now := c.now()
	removed := 0
	err := filepath.WalkDir(c.dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return nil
			}
			return err
		}
		if d.IsDir() || !strings.HasSuffix(path, diskEntryExt) {
			return nil
		}
		entry, err := readDiskEntry(path)
		if err == nil && now.Before(entry.ExpiresAt) {
			return nil
		}
		if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return err
		}
		removed++
		return nil
	})
	if err != nil {
		return removed, fmt.Errorf("prune %s: %w", c.dir, err)
	}
	return removed, nil
}

func (c *DiskCache) path(key string) string {
	sum := sha256.Sum256([]byte(key))
	name := hex.EncodeToString(sum[:])
	return filepath.Join(c.dir, name[:2], name+diskEntryExt)
}

func readDiskEntry(path string) (diskEntry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return diskEntry{}, err
	}
	var entry diskEntry
	if err := json.Unmarshal(data, &entry); err != nil {
		return diskEntry{}, err
	}
	return entry, nil
}
