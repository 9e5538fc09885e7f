package fetcher

import (
	"os"
	"path/filepath"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// Cache is a file-per-trial cache of raw registry documents. Entries older
// than the TTL are treated as absent; a TTL of zero never expires.
type Cache struct {
	dir string
	ttl time.Duration
}

// NewCache creates the cache directory if needed.
func NewCache(dir string, ttl time.Duration) (*Cache, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, eris.Wrap(err, "fetcher: create cache dir")
	}
	return &Cache{dir: dir, ttl: ttl}, nil
}

func (c *Cache) path(nctID string) string {
	return filepath.Join(c.dir, nctID+".json")
}

// Get returns the cached document and whether it was present and fresh.
func (c *Cache) Get(nctID string) ([]byte, bool) {
	p := c.path(nctID)
	info, err := os.Stat(p)
	if err != nil {
		return nil, false
	}
	if c.ttl > 0 && time.Since(info.ModTime()) > c.ttl {
		return nil, false
	}
	raw, err := os.ReadFile(p)
	if err != nil {
		zap.L().Warn("failed to read cached trial record",
			zap.String("nct_id", nctID), zap.Error(err))
		return nil, false
	}
	return raw, true
}

// Put stores a document. Writes go through a temp file and rename so a
// concurrent Get never observes a partial document.
func (c *Cache) Put(nctID string, raw []byte) error {
	tmp, err := os.CreateTemp(c.dir, nctID+".*.tmp")
	if err != nil {
		return eris.Wrap(err, "fetcher: create temp cache file")
	}
	if _, err := tmp.Write(raw); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
		return eris.Wrap(err, "fetcher: write cache file")
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmp.Name())
		return eris.Wrap(err, "fetcher: close cache file")
	}
	if err := os.Rename(tmp.Name(), c.path(nctID)); err != nil {
		_ = os.Remove(tmp.Name())
		return eris.Wrap(err, "fetcher: rename cache file")
	}
	return nil
}

// List returns the trial identifiers currently cached, fresh or not.
func (c *Cache) List() ([]string, error) {
	entries, err := os.ReadDir(c.dir)
	if err != nil {
		return nil, eris.Wrap(err, "fetcher: read cache dir")
	}
	var ids []string
	for _, e := range entries {
		name := e.Name()
		if filepath.Ext(name) != ".json" {
			continue
		}
		ids = append(ids, name[:len(name)-len(".json")])
	}
	return ids, nil
}
