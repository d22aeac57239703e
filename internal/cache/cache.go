// Package cache stores fingerprint results on disk, keyed by the content they were
// computed from.
package cache

import (
	"encoding/binary"
	"encoding/hex"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/zeebo/blake3"

	"github.com/panbanda/winnow/pkg/winnow"
)

// ErrCorruptEntry is returned when a cached result cannot be decoded.
var ErrCorruptEntry = errors.New("corrupt cache entry")

// Cache provides file-based caching of fingerprint results. A disabled Cache accepts
// every call and never hits.
type Cache struct {
	dir     string
	ttl     time.Duration
	enabled bool
}

// Entry is one cached result as stored on disk.
type Entry struct {
	Key       string    `json:"key"`
	Timestamp time.Time `json:"timestamp"`
	Data      []byte    `json:"data"`
}

// New creates a cache rooted at dir. ttl <= 0 keeps entries forever.
func New(dir string, ttl time.Duration, enabled bool) (*Cache, error) {
	if !enabled {
		return &Cache{enabled: false}, nil
	}

	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, err
	}

	return &Cache{
		dir:     dir,
		ttl:     ttl,
		enabled: true,
	}, nil
}

// Enabled reports whether the cache stores anything.
func (c *Cache) Enabled() bool {
	return c != nil && c.enabled
}

// Key derives the cache key of a document. Any change to the parameters, the language or
// the text yields a different key.
func Key(p winnow.Params, lang string, text string) string {
	h := blake3.New()
	_, _ = h.WriteString(p.String())
	_, _ = h.WriteString("\x00" + strings.ToLower(lang) + "\x00")
	_, _ = h.WriteString(text)
	return hex.EncodeToString(h.Sum(nil))
}

// Get retrieves a cached entry if it exists and is not expired.
func (c *Cache) Get(key string) ([]byte, bool) {
	if !c.Enabled() {
		return nil, false
	}

	path := c.keyPath(key)
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, false
	}

	var entry Entry
	if err := json.Unmarshal(data, &entry); err != nil || entry.Key != key {
		return nil, false
	}

	if c.ttl > 0 && time.Since(entry.Timestamp) > c.ttl {
		os.Remove(path)
		return nil, false
	}

	return entry.Data, true
}

// Set stores data under key.
func (c *Cache) Set(key string, data []byte) error {
	if !c.Enabled() {
		return nil
	}

	entryData, err := json.Marshal(Entry{Key: key, Timestamp: time.Now(), Data: data})
	if err != nil {
		return err
	}

	return os.WriteFile(c.keyPath(key), entryData, 0600)
}

// LoadResult returns the cached fingerprint result for key. The canonical text is not
// cached, so Result.Canonical is empty on a hit.
func (c *Cache) LoadResult(key string) (*winnow.Result, bool) {
	data, ok := c.Get(key)
	if !ok {
		return nil, false
	}
	res, err := decodeResult(data)
	if err != nil {
		return nil, false
	}
	return res, true
}

// StoreResult caches the digest and fingerprints of res under key.
func (c *Cache) StoreResult(key string, res *winnow.Result) error {
	if !c.Enabled() {
		return nil
	}
	data, err := encodeResult(res)
	if err != nil {
		return err
	}
	return c.Set(key, data)
}

// encodeResult lays out the digest as 8 big-endian bytes followed by the portable roaring
// serialization of the fingerprints.
func encodeResult(res *winnow.Result) ([]byte, error) {
	set, err := res.Fingerprints.MarshalBinary()
	if err != nil {
		return nil, err
	}
	out := make([]byte, 8, 8+len(set))
	binary.BigEndian.PutUint64(out, res.Digest)
	return append(out, set...), nil
}

func decodeResult(data []byte) (*winnow.Result, error) {
	if len(data) < 8 {
		return nil, ErrCorruptEntry
	}
	set, err := winnow.UnmarshalFingerprintSet(data[8:])
	if err != nil {
		return nil, errors.Join(ErrCorruptEntry, err)
	}
	return &winnow.Result{Digest: binary.BigEndian.Uint64(data[:8]), Fingerprints: set}, nil
}

// Invalidate removes a cache entry.
func (c *Cache) Invalidate(key string) error {
	if !c.Enabled() {
		return nil
	}
	return os.Remove(c.keyPath(key))
}

// Clear removes all cache entries.
func (c *Cache) Clear() error {
	if !c.Enabled() {
		return nil
	}
	return os.RemoveAll(c.dir)
}

// keyPath converts a key to a filesystem path.
func (c *Cache) keyPath(key string) string {
	hash := blake3.Sum256([]byte(key))
	name := hex.EncodeToString(hash[:])
	return filepath.Join(c.dir, name+".json")
}

// Stats returns cache statistics.
type Stats struct {
	Entries   int           `json:"entries"`
	TotalSize int64         `json:"total_size"`
	OldestAge time.Duration `json:"oldest_age"`
	NewestAge time.Duration `json:"newest_age"`
}

// GetStats returns statistics about the cache.
func (c *Cache) GetStats() (*Stats, error) {
	if !c.Enabled() {
		return &Stats{}, nil
	}

	stats := &Stats{}
	var oldest, newest time.Time

	err := filepath.Walk(c.dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() || filepath.Ext(path) != ".json" {
			return nil
		}

		stats.Entries++
		stats.TotalSize += info.Size()

		modTime := info.ModTime()
		if oldest.IsZero() || modTime.Before(oldest) {
			oldest = modTime
		}
		if newest.IsZero() || modTime.After(newest) {
			newest = modTime
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if !oldest.IsZero() {
		stats.OldestAge = time.Since(oldest)
	}
	if !newest.IsZero() {
		stats.NewestAge = time.Since(newest)
	}
	return stats, nil
}
