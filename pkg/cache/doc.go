// Package cache provides the bounded in-memory caches behind the status-ping
// hot path: a generic TTL + size-limited engine with pluggable loaders, and a
// packet-level cache of fully serialized status responses keyed by protocol
// version.
//
// # Engine
//
// Engine is a generic store of reference-counted payloads. Lookups either hit
// a live entry or invoke the loader, evicting as needed before insert:
//
//	eng, err := cache.NewEngine[string]("favicon", 16, time.Minute, loader, logger)
//	entry, err := eng.GetOrLoad("favicons/default.png")
//	if err == nil {
//		use(entry.Item, entry.Buffer.Bytes())
//		entry.Release() // drop the caller's buffer reference
//	}
//
// Eviction is two-phase: expired entries go first, then oldest-by-creation
// until the store is under its limit. Counters (hits, misses, evictions) are
// monotonic until an explicit Clear.
//
// # PacketCache
//
// PacketCache stores complete outbound status packets per
// (protocol version, virtual host) so a cache hit costs one map lookup and
// one reference increment. Entries carry a short fixed TTL that bounds
// staleness after a content update without invalidating every key variant:
//
//	pc, _ := cache.NewPacketCache(cache.DefaultPacketTTL, logger)
//	_ = pc.Update(cache.PacketKey{ProtocolVersion: 767}, resp)
//	if buf := pc.Get(cache.PacketKey{ProtocolVersion: 767}); buf != nil {
//		conn.Write(protocol.AppendFrame(nil, buf.Bytes()))
//		buf.Release()
//	}
//
// # Metrics
//
// Prometheus metrics exported per cache name:
//
//   - ultramotd_cache_hits_total{cache}
//   - ultramotd_cache_misses_total{cache}
//   - ultramotd_cache_evictions_total{cache}
//   - ultramotd_cache_entries{cache}
package cache
