// Package localcache keeps the on-device copy of column sets as JSON files,
// one file per cache key.
package localcache

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/goccy/go-json"
	"github.com/gosimple/slug"

	dashboard "github.com/goliatone/go-supply-dashboard/components/dashboard"
)

var _ dashboard.HeaderCache = (*HeaderCache)(nil)

// HeaderCache stores column sets under dir.
type HeaderCache struct {
	dir string
	mu  sync.RWMutex
}

type entry struct {
	Key     string              `json:"key"`
	Columns dashboard.ColumnSet `json:"columns"`
}

// New creates dir when missing.
func New(dir string) (*HeaderCache, error) {
	if dir == "" {
		return nil, errors.New("localcache: dir is required")
	}
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("localcache: create %s: %w", dir, err)
	}
	return &HeaderCache{dir: dir}, nil
}

func (c *HeaderCache) LoadColumns(ctx context.Context, key string) (dashboard.ColumnSet, bool, error) {
	if err := ctx.Err(); err != nil {
		return nil, false, err
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	data, err := os.ReadFile(c.file(key))
	if errors.Is(err, os.ErrNotExist) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("localcache: read %s: %w", key, err)
	}
	var e entry
	if err := json.Unmarshal(data, &e); err != nil {
		return nil, false, fmt.Errorf("localcache: decode %s: %w", key, err)
	}
	if e.Key != key {
		return nil, false, nil
	}
	return e.Columns, true, nil
}

func (c *HeaderCache) StoreColumns(ctx context.Context, key string, columns dashboard.ColumnSet) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	data, err := json.Marshal(entry{Key: key, Columns: columns})
	if err != nil {
		return fmt.Errorf("localcache: encode %s: %w", key, err)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	path := c.file(key)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("localcache: write %s: %w", key, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("localcache: replace %s: %w", key, err)
	}
	return nil
}

// Clear removes every cached set.
func (c *HeaderCache) Clear() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	matches, err := filepath.Glob(filepath.Join(c.dir, "*.json"))
	if err != nil {
		return err
	}
	var errs []error
	for _, m := range matches {
		errs = append(errs, os.Remove(m))
	}
	return errors.Join(errs...)
}

// file maps a key to a readable, collision-free file name.
func (c *HeaderCache) file(key string) string {
	sum := sha1.Sum([]byte(key))
	return filepath.Join(c.dir, slug.Make(key)+"-"+hex.EncodeToString(sum[:4])+".json")
}
