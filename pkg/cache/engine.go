package cache

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/rafalohaki/ultramotd/pkg/buffer"
)

// Loader produces a payload for a key on cache miss. It returns the typed
// item and the raw bytes the engine will wrap in a reference-counted buffer.
// On failure it must return an error and no partially allocated state; the
// engine performs no insert for failed loads.
type Loader[T any] func(key string) (item T, data []byte, err error)

// Entry is a cached payload. Immutable after construction; the engine owns
// one buffer reference until the entry is evicted, replaced, or cleared.
type Entry[T any] struct {
	Item      T
	Buffer    *buffer.Buffer
	CreatedAt time.Time
	ExpiresAt time.Time
}

// IsExpired reports whether the entry has passed its TTL.
func (e *Entry[T]) IsExpired() bool {
	return time.Now().After(e.ExpiresAt)
}

// Release drops one reference to the entry's buffer, if any. Callers of
// GetOrLoad use it to return the reference retained for them.
func (e *Entry[T]) Release() {
	if e.Buffer != nil {
		e.Buffer.Release()
	}
}

// Stats is a snapshot of cache counters. Counters are monotonic and reset
// only by Clear.
type Stats struct {
	Size      int
	Hits      int64
	Misses    int64
	Evictions int64
	HitRate   float64
}

func (s Stats) String() string {
	return fmt.Sprintf("CacheStats{size=%d, hits=%d, misses=%d, evictions=%d, hitRate=%.2f%%}",
		s.Size, s.Hits, s.Misses, s.Evictions, s.HitRate*100)
}

// Engine is a generic TTL + size-bounded cache of reference-counted
// payloads. Specializations differ only in the loader and item type; expiry,
// eviction, and stats logic are shared here.
type Engine[T any] struct {
	name    string
	maxSize int
	maxAge  time.Duration
	loader  Loader[T]
	logger  zerolog.Logger

	mu      sync.RWMutex
	entries map[string]*Entry[T]

	hits      atomic.Int64
	misses    atomic.Int64
	evictions atomic.Int64
}

// NewEngine creates a cache engine. name labels metrics and logs. maxSize
// and maxAge must be positive and loader non-nil; invalid parameters are
// rejected here rather than silently clamped.
func NewEngine[T any](name string, maxSize int, maxAge time.Duration, loader Loader[T], logger zerolog.Logger) (*Engine[T], error) {
	if name == "" {
		return nil, fmt.Errorf("cache: name must not be empty")
	}
	if maxSize <= 0 {
		return nil, fmt.Errorf("cache %s: max size must be positive, got %d", name, maxSize)
	}
	if maxAge <= 0 {
		return nil, fmt.Errorf("cache %s: max age must be positive, got %s", name, maxAge)
	}
	if loader == nil {
		return nil, fmt.Errorf("cache %s: loader must not be nil", name)
	}

	logger.Info().
		Str("cache", name).
		Int("max_size", maxSize).
		Dur("max_age", maxAge).
		Msg("Cache engine initialized")

	return &Engine[T]{
		name:    name,
		maxSize: maxSize,
		maxAge:  maxAge,
		loader:  loader,
		logger:  logger,
		entries: make(map[string]*Entry[T]),
	}, nil
}

// GetOrLoad returns the live entry for key, loading it on miss. The returned
// entry's buffer carries an extra reference retained for the caller, who
// must Release it when done. A loader failure is returned as-is; nothing is
// inserted.
func (e *Engine[T]) GetOrLoad(key string) (*Entry[T], error) {
	e.mu.RLock()
	entry, ok := e.entries[key]
	if ok && !entry.IsExpired() {
		if entry.Buffer != nil {
			entry.Buffer.Retain()
		}
		e.mu.RUnlock()
		e.hits.Add(1)
		CacheHits.WithLabelValues(e.name).Inc()
		e.logger.Debug().Str("cache", e.name).Str("key", key).Msg("Cache hit")
		return entry, nil
	}
	e.mu.RUnlock()

	e.mu.Lock()
	defer e.mu.Unlock()

	// Re-check: a racing caller may have loaded the key already.
	if entry, ok := e.entries[key]; ok && !entry.IsExpired() {
		if entry.Buffer != nil {
			entry.Buffer.Retain()
		}
		e.hits.Add(1)
		CacheHits.WithLabelValues(e.name).Inc()
		return entry, nil
	}

	e.misses.Add(1)
	CacheMisses.WithLabelValues(e.name).Inc()
	e.logger.Debug().Str("cache", e.name).Str("key", key).Msg("Cache miss")

	item, data, err := e.loader(key)
	if err != nil {
		return nil, err
	}

	e.evictLocked()

	now := time.Now()
	entry = &Entry[T]{
		Item:      item,
		CreatedAt: now,
		ExpiresAt: now.Add(e.maxAge),
	}
	if data != nil {
		entry.Buffer = buffer.New(data)
	}

	if old, ok := e.entries[key]; ok {
		old.Release()
		e.evictions.Add(1)
		CacheEvictions.WithLabelValues(e.name).Inc()
	}
	e.entries[key] = entry
	CacheEntries.WithLabelValues(e.name).Set(float64(len(e.entries)))

	if entry.Buffer != nil {
		entry.Buffer.Retain()
	}
	return entry, nil
}

// evictLocked enforces the size bound before an insert. Expired entries are
// removed first; if the store is still at or above the limit, the oldest
// entries by creation time go next. Caller holds the write lock.
func (e *Engine[T]) evictLocked() {
	if len(e.entries) < e.maxSize {
		return
	}

	for key, entry := range e.entries {
		if entry.IsExpired() {
			entry.Release()
			delete(e.entries, key)
			e.evictions.Add(1)
			CacheEvictions.WithLabelValues(e.name).Inc()
		}
	}

	for len(e.entries) >= e.maxSize {
		oldestKey := ""
		var oldest time.Time
		for key, entry := range e.entries {
			if oldestKey == "" || entry.CreatedAt.Before(oldest) {
				oldestKey = key
				oldest = entry.CreatedAt
			}
		}
		if oldestKey == "" {
			break
		}
		e.entries[oldestKey].Release()
		delete(e.entries, oldestKey)
		e.evictions.Add(1)
		CacheEvictions.WithLabelValues(e.name).Inc()
		e.logger.Debug().Str("cache", e.name).Str("key", oldestKey).Msg("Evicted oldest entry")
	}
	CacheEntries.WithLabelValues(e.name).Set(float64(len(e.entries)))
}

// Clear releases every buffer, empties the store, and resets all counters.
// Used on full invalidation such as a content reload.
func (e *Engine[T]) Clear() {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.logger.Info().Str("cache", e.name).Int("entries", len(e.entries)).Msg("Clearing cache")

	for _, entry := range e.entries {
		entry.Release()
	}
	e.entries = make(map[string]*Entry[T])

	e.hits.Store(0)
	e.misses.Store(0)
	e.evictions.Store(0)
	CacheEntries.WithLabelValues(e.name).Set(0)
}

// Name returns the cache name used in metrics and logs.
func (e *Engine[T]) Name() string {
	return e.name
}

// Stats returns a snapshot of the cache counters.
func (e *Engine[T]) Stats() Stats {
	e.mu.RLock()
	size := len(e.entries)
	e.mu.RUnlock()

	hits := e.hits.Load()
	misses := e.misses.Load()
	total := hits + misses

	hitRate := 0.0
	if total > 0 {
		hitRate = float64(hits) / float64(total)
	}

	return Stats{
		Size:      size,
		Hits:      hits,
		Misses:    misses,
		Evictions: e.evictions.Load(),
		HitRate:   hitRate,
	}
}
