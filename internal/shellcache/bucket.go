// Package shellcache serves the application shell and model files from a
// local versioned cache so the kiosk keeps working when the upstream is
// unreachable. Each release gets its own bucket directory; activating a
// bucket drops the buckets of older releases.
package shellcache

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

const bucketPrefix = "shell-"

type entryMeta struct {
	Key         string    `json:"key"`
	ContentType string    `json:"content_type"`
	CachedAt    time.Time `json:"cached_at"`
}

// Bucket is a directory of cached responses keyed by request URL. Entries
// are stored as a body file plus a JSON sidecar with the content type.
type Bucket struct {
	root    string
	version string
	dir     string

	mu sync.RWMutex
}

// OpenBucket creates or reuses the bucket for the given cache version.
func OpenBucket(cacheDir, version string) (*Bucket, error) {
	if version == "" {
		return nil, fmt.Errorf("cache version is empty")
	}
	dir := filepath.Join(cacheDir, bucketPrefix+version)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating cache bucket: %w", err)
	}
	return &Bucket{root: cacheDir, version: version, dir: dir}, nil
}

// Dir returns the bucket directory.
func (b *Bucket) Dir() string { return b.dir }

// Version returns the cache version this bucket belongs to.
func (b *Bucket) Version() string { return b.version }

// Activate deletes every sibling bucket of a different version. Call once
// the new bucket is ready to serve.
func (b *Bucket) Activate() error {
	entries, err := os.ReadDir(b.root)
	if err != nil {
		return fmt.Errorf("reading cache dir: %w", err)
	}
	for _, e := range entries {
		if !e.IsDir() || !strings.HasPrefix(e.Name(), bucketPrefix) {
			continue
		}
		if e.Name() == bucketPrefix+b.version {
			continue
		}
		if err := os.RemoveAll(filepath.Join(b.root, e.Name())); err != nil {
			return fmt.Errorf("removing stale bucket %s: %w", e.Name(), err)
		}
	}
	return nil
}

// Get returns the cached body and content type for a key.
func (b *Bucket) Get(key string) ([]byte, string, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	base := b.entryPath(key)
	metaRaw, err := os.ReadFile(base + ".json")
	if err != nil {
		return nil, "", false
	}
	var meta entryMeta
	if err := json.Unmarshal(metaRaw, &meta); err != nil {
		return nil, "", false
	}
	data, err := os.ReadFile(base + ".bin")
	if err != nil {
		return nil, "", false
	}
	return data, meta.ContentType, true
}

// Put stores a response body under the key, replacing any prior entry.
func (b *Bucket) Put(key, contentType string, data []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	base := b.entryPath(key)
	metaRaw, err := json.Marshal(entryMeta{
		Key:         key,
		ContentType: contentType,
		CachedAt:    time.Now().UTC(),
	})
	if err != nil {
		return fmt.Errorf("encoding cache metadata: %w", err)
	}
	if err := os.WriteFile(base+".bin", data, 0o644); err != nil {
		return fmt.Errorf("writing cache entry: %w", err)
	}
	if err := os.WriteFile(base+".json", metaRaw, 0o644); err != nil {
		return fmt.Errorf("writing cache metadata: %w", err)
	}
	return nil
}

func (b *Bucket) entryPath(key string) string {
	sum := sha256.Sum256([]byte(key))
	return filepath.Join(b.dir, hex.EncodeToString(sum[:]))
}
