package cache

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/rafalohaki/ultramotd/pkg/buffer"
	"github.com/rafalohaki/ultramotd/pkg/protocol"
)

// DefaultPacketTTL bounds staleness of cached packets after a content
// update. Short enough that rotation and player counts stay fresh, long
// enough that rebuilds are rare under load.
const DefaultPacketTTL = 2 * time.Second

// PacketKey addresses one cached packet variant. Clients on different
// protocol versions need the response's version field to match, so each
// version (and virtual host) gets its own fully built packet.
type PacketKey struct {
	ProtocolVersion int32
	VirtualHost     string
}

type packetEntry struct {
	buf       *buffer.Buffer
	expiresAt time.Time
}

// PacketCache stores fully serialized status response packets. A hit costs a
// map lookup and one reference increment; serialization happens once per
// Update, never per request.
//
// Entries are updated wholesale by Update rather than loaded lazily, which
// is why this sits on its own buffer-owning map instead of the generic
// Engine.
type PacketCache struct {
	ttl    time.Duration
	logger zerolog.Logger

	mu      sync.RWMutex
	entries map[PacketKey]*packetEntry

	hits   atomic.Int64
	misses atomic.Int64
}

// NewPacketCache creates a packet cache with the given entry TTL.
func NewPacketCache(ttl time.Duration, logger zerolog.Logger) (*PacketCache, error) {
	if ttl <= 0 {
		return nil, fmt.Errorf("packet cache: ttl must be positive, got %s", ttl)
	}
	return &PacketCache{
		ttl:     ttl,
		logger:  logger,
		entries: make(map[PacketKey]*packetEntry),
	}, nil
}

// Update serializes resp into a complete packet body and stores it under
// key with a fresh TTL, replacing any prior entry. The new entry becomes
// visible before the old buffer is released, so concurrent Gets never see an
// empty or partial packet.
func (c *PacketCache) Update(key PacketKey, resp *protocol.StatusResponse) error {
	body, err := protocol.EncodeStatusPacket(resp)
	if err != nil {
		return fmt.Errorf("packet cache update: %w", err)
	}

	entry := &packetEntry{
		buf:       buffer.New(body),
		expiresAt: time.Now().Add(c.ttl),
	}

	c.mu.Lock()
	old := c.entries[key]
	c.entries[key] = entry
	c.mu.Unlock()

	if old != nil && old.buf.RefCount() > 0 {
		old.buf.Release()
	}

	CacheEntries.WithLabelValues("packet").Set(float64(c.Size()))
	c.logger.Debug().
		Int32("protocol", key.ProtocolVersion).
		Str("virtual_host", key.VirtualHost).
		Int("bytes", len(body)).
		Dur("ttl", c.ttl).
		Msg("Updated packet cache")
	return nil
}

// Get returns a retained reference to the cached packet for key, or nil if
// no live entry exists. Expired and zero-referenced entries are removed on
// the way. The caller must Release the returned buffer after writing it.
func (c *PacketCache) Get(key PacketKey) *buffer.Buffer {
	// Retain under the read lock: Update releases a replaced buffer only
	// after its write section, so a reference taken here cannot hit a
	// freed buffer.
	c.mu.RLock()
	entry := c.entries[key]
	var buf *buffer.Buffer
	if entry != nil && entry.buf.RefCount() > 0 {
		buf = entry.buf.Retain()
	}
	c.mu.RUnlock()

	if entry == nil {
		c.misses.Add(1)
		CacheMisses.WithLabelValues("packet").Inc()
		return nil
	}

	if buf == nil {
		// Zero-referenced entry: mis-released elsewhere, drop it.
		c.removeEntry(key, entry)
		c.misses.Add(1)
		CacheMisses.WithLabelValues("packet").Inc()
		return nil
	}

	if time.Now().After(entry.expiresAt) {
		buf.Release()
		c.removeEntry(key, entry)
		c.misses.Add(1)
		CacheMisses.WithLabelValues("packet").Inc()
		return nil
	}

	c.hits.Add(1)
	CacheHits.WithLabelValues("packet").Inc()
	return buf
}

// removeEntry deletes entry under key if it is still the current one, and
// releases its buffer once.
func (c *PacketCache) removeEntry(key PacketKey, entry *packetEntry) {
	c.mu.Lock()
	removed := false
	if c.entries[key] == entry {
		delete(c.entries, key)
		removed = true
	}
	c.mu.Unlock()

	if removed && entry.buf.RefCount() > 0 {
		entry.buf.Release()
		CacheEvictions.WithLabelValues("packet").Inc()
	}
	CacheEntries.WithLabelValues("packet").Set(float64(c.Size()))
}

// Clear releases and removes all entries. Invoked whenever the underlying
// content changes so stale variants cannot be served.
func (c *PacketCache) Clear() {
	c.mu.Lock()
	entries := c.entries
	c.entries = make(map[PacketKey]*packetEntry)
	c.mu.Unlock()

	for _, entry := range entries {
		if entry.buf.RefCount() > 0 {
			entry.buf.Release()
		}
	}
	CacheEntries.WithLabelValues("packet").Set(0)
	c.logger.Info().Int("entries", len(entries)).Msg("Packet cache cleared")
}

// Size returns the current number of cached packet variants.
func (c *PacketCache) Size() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// Name implements the monitor's stats source.
func (c *PacketCache) Name() string {
	return "packet"
}

// Stats returns hit/miss counters and current size. The packet cache never
// evicts by size, so the eviction counter stays zero.
func (c *PacketCache) Stats() Stats {
	hits := c.hits.Load()
	misses := c.misses.Load()
	total := hits + misses

	hitRate := 0.0
	if total > 0 {
		hitRate = float64(hits) / float64(total)
	}

	return Stats{
		Size:    c.Size(),
		Hits:    hits,
		Misses:  misses,
		HitRate: hitRate,
	}
}
