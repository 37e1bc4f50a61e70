package dashboard

import (
	"crypto/sha1"
	"encoding/hex"
	"sync"
	"time"

	"github.com/goccy/go-json"
)

// RenderCache memoizes rendered chart HTML so repeated summary loads are cheap.
type RenderCache interface {
	GetOrRender(key string, render func() (string, error)) (string, error)
}

// ChartCache is an in-memory TTL cache for rendered charts.
type ChartCache struct {
	ttl     time.Duration
	now     func() time.Time
	mu      sync.Mutex
	entries map[string]cachedChart
}

type cachedChart struct {
	html    string
	expires time.Time
}

// NewChartCache builds a cache with the provided TTL. A non-positive TTL disables caching.
func NewChartCache(ttl time.Duration) *ChartCache {
	return &ChartCache{
		ttl:     ttl,
		now:     time.Now,
		entries: make(map[string]cachedChart),
	}
}

// GetOrRender returns a cached entry or renders and stores a new one.
func (c *ChartCache) GetOrRender(key string, render func() (string, error)) (string, error) {
	if html, ok := c.get(key); ok {
		return html, nil
	}
	html, err := render()
	if err != nil {
		return "", err
	}
	c.set(key, html)
	return html, nil
}

// Purge drops every entry, e.g. after an entity event invalidates counts.
func (c *ChartCache) Purge() {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.entries = make(map[string]cachedChart)
	c.mu.Unlock()
}

func (c *ChartCache) get(key string) (string, bool) {
	if c == nil || c.ttl <= 0 {
		return "", false
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	entry, ok := c.entries[key]
	if !ok {
		return "", false
	}
	if c.now().After(entry.expires) {
		delete(c.entries, key)
		return "", false
	}
	return entry.html, true
}

func (c *ChartCache) set(key, html string) {
	if c == nil || c.ttl <= 0 {
		return
	}
	c.mu.Lock()
	c.entries[key] = cachedChart{html: html, expires: c.now().Add(c.ttl)}
	c.mu.Unlock()
}

// contentHash returns a deterministic hash of v for cache keys.
func contentHash(v any) string {
	b, err := json.Marshal(v)
	if err != nil {
		return "invalid"
	}
	if len(b) == 0 || string(b) == "null" {
		return "empty"
	}
	sum := sha1.Sum(b)
	return hex.EncodeToString(sum[:])
}
