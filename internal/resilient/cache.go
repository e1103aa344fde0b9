package resilient

import (
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"time"
)

// cacheEntry is the on-disk wire format: one JSON file per cache key.
type cacheEntry struct {
	Expiry int64           `json:"expiry"` // epoch seconds
	Data   json.RawMessage `json:"data"`
}

// DiskCache stores remote-call responses content-addressed by request hash.
// Reads and writes are per-call without cross-process coordination: entries
// are idempotent payloads, so a racing writer costs at most one redundant
// remote call.
type DiskCache struct {
	dir        string
	ttl        time.Duration
	maxEntries int
	logger     *slog.Logger
}

func NewDiskCache(dir string, ttl time.Duration, maxEntries int, logger *slog.Logger) (*DiskCache, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	c := &DiskCache{dir: dir, ttl: ttl, maxEntries: maxEntries, logger: logger}
	c.cleanup()
	return c, nil
}

func (c *DiskCache) path(key string) string {
	return filepath.Join(c.dir, key+".json")
}

// Get returns the cached payload for key, or ok=false on miss. Any read or
// decode error is a miss, never fatal.
func (c *DiskCache) Get(key string) ([]byte, bool) {
	raw, err := os.ReadFile(c.path(key))
	if err != nil {
		return nil, false
	}
	var entry cacheEntry
	if err := json.Unmarshal(raw, &entry); err != nil {
		c.logger.Warn("cache.read_error", "key", key, "error", err)
		return nil, false
	}
	if entry.Expiry <= time.Now().Unix() {
		return nil, false
	}
	return entry.Data, true
}

// Set stores payload under key with the configured TTL. Write failures are
// logged and swallowed; the cache is an optimization, not a dependency.
func (c *DiskCache) Set(key string, payload []byte) {
	entry := cacheEntry{
		Expiry: time.Now().Add(c.ttl).Unix(),
		Data:   json.RawMessage(payload),
	}
	raw, err := json.Marshal(entry)
	if err != nil {
		c.logger.Warn("cache.encode_error", "key", key, "error", err)
		return
	}
	if err := os.WriteFile(c.path(key), raw, 0o644); err != nil {
		c.logger.Warn("cache.write_error", "key", key, "error", err)
	}
}

// cleanup removes entries whose files are older than the TTL and trims the
// directory to maxEntries, oldest modification time first.
func (c *DiskCache) cleanup() {
	entries, err := os.ReadDir(c.dir)
	if err != nil {
		c.logger.Warn("cache.cleanup_error", "error", err)
		return
	}

	type fileAge struct {
		name string
		mod  time.Time
	}
	var files []fileAge
	now := time.Now()
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		if now.Sub(info.ModTime()) > c.ttl {
			_ = os.Remove(filepath.Join(c.dir, e.Name()))
			continue
		}
		files = append(files, fileAge{name: e.Name(), mod: info.ModTime()})
	}

	if len(files) <= c.maxEntries {
		return
	}
	sort.Slice(files, func(i, j int) bool { return files[i].mod.Before(files[j].mod) })
	for _, f := range files[:len(files)-c.maxEntries] {
		_ = os.Remove(filepath.Join(c.dir, f.name))
	}
}
