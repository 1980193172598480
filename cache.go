package relcomp

import (
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"golang.org/x/sync/singleflight"
)

// Key is a structural cache key. Two keys are equal iff the requests they
// describe compile to the same result.
type Key interface {
	comparable
	String() string
}

// RequestCache maps structural request keys to compiled results. It is safe
// for concurrent use. Compilation is pure, so a result compiled twice is
// wasted work but never a hazard; the first stored result wins and
// concurrent compilations of one key are collapsed into one.
type RequestCache[K Key, V any] struct {
	entries sync.Map // K -> V
	group   singleflight.Group
	logger  *slog.Logger
	size    atomic.Int64
	stats   cacheStats
}

type cacheStats struct {
	hits     atomic.Int64
	misses   atomic.Int64
	compiles atomic.Int64
	errors   atomic.Int64
}

// CacheStats is a snapshot of the cache counters.
type CacheStats struct {
	Hits     int64
	Misses   int64
	Compiles int64
	Errors   int64
	Size     int64
}

// HitRate returns the ratio of hits to lookups.
func (s CacheStats) HitRate() float64 {
	total := s.Hits + s.Misses
	if total == 0 {
		return 0
	}
	return float64(s.Hits) / float64(total)
}

// String returns a human-readable summary of the counters.
func (s CacheStats) String() string {
	return fmt.Sprintf("size=%d hits=%d misses=%d compiles=%d errors=%d", s.Size, s.Hits, s.Misses, s.Compiles, s.Errors)
}

// CacheOption configures a RequestCache.
type CacheOption func(*cacheConfig)

type cacheConfig struct {
	logger *slog.Logger
}

// WithCacheLogger sets the logger used for compile events.
func WithCacheLogger(l *slog.Logger) CacheOption {
	return func(c *cacheConfig) {
		c.logger = l
	}
}

// NewRequestCache returns an empty cache.
func NewRequestCache[K Key, V any](opts ...CacheOption) *RequestCache[K, V] {
	cfg := cacheConfig{logger: slog.Default()}
	for _, opt := range opts {
		opt(&cfg)
	}
	return &RequestCache[K, V]{logger: cfg.logger}
}

// Get returns the cached result for the key.
func (c *RequestCache[K, V]) Get(key K) (V, bool) {
	v, ok := c.entries.Load(key)
	if !ok {
		var zero V
		return zero, false
	}
	return v.(V), true
}

// GetOrCompile returns the cached result for the key, compiling and storing
// it if absent. Errors are returned to every waiting caller and are not
// cached.
func (c *RequestCache[K, V]) GetOrCompile(key K, compile func() (V, error)) (V, error) {
	if v, ok := c.entries.Load(key); ok {
		c.stats.hits.Add(1)
		return v.(V), nil
	}
	c.stats.misses.Add(1)
	name := key.String()
	_, err, _ := c.group.Do(name, func() (any, error) {
		// Another flight may have stored the key between Load and Do.
		if v, ok := c.entries.Load(key); ok {
			return v, nil
		}
		return c.compile(key, name, compile)
	})
	if err != nil {
		var zero V
		return zero, err
	}
	if v, ok := c.entries.Load(key); ok {
		return v.(V), nil
	}
	// The flight was shared with a distinct key of the same name.
	v, err := c.compile(key, name, compile)
	if err != nil {
		var zero V
		return zero, err
	}
	return v.(V), nil
}

func (c *RequestCache[K, V]) compile(key K, name string, compile func() (V, error)) (any, error) {
	c.stats.compiles.Add(1)
	v, err := compile()
	if err != nil {
		c.stats.errors.Add(1)
		c.logger.Debug("relcomp: compile failed", "key", name, "error", err)
		return nil, err
	}
	actual, loaded := c.entries.LoadOrStore(key, v)
	if !loaded {
		c.size.Add(1)
		c.logger.Debug("relcomp: compiled", "key", name)
	}
	return actual, nil
}

// Len returns the number of cached results.
func (c *RequestCache[K, V]) Len() int {
	return int(c.size.Load())
}

// Clear removes all cached results.
func (c *RequestCache[K, V]) Clear() {
	c.entries.Range(func(k, _ any) bool {
		if _, ok := c.entries.LoadAndDelete(k); ok {
			c.size.Add(-1)
		}
		return true
	})
}

// Stats returns a snapshot of the cache counters.
func (c *RequestCache[K, V]) Stats() CacheStats {
	return CacheStats{
		Hits:     c.stats.hits.Load(),
		Misses:   c.stats.misses.Load(),
		Compiles: c.stats.compiles.Load(),
		Errors:   c.stats.errors.Load(),
		Size:     c.size.Load(),
	}
}
