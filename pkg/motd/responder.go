// Package motd wires the hot-path components together: rate limiter, packet
// cache, rotator, and favicon cache. The Responder is the single entry point
// the host pipeline calls per inbound status request.
package motd

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/netip"
	"time"

	"github.com/rs/zerolog"

	"github.com/rafalohaki/ultramotd/pkg/buffer"
	"github.com/rafalohaki/ultramotd/pkg/cache"
	"github.com/rafalohaki/ultramotd/pkg/protocol"
	"github.com/rafalohaki/ultramotd/pkg/ratelimit"
	"github.com/rafalohaki/ultramotd/pkg/rotation"
)

// Decision is the outcome of intercepting a status request.
type Decision int

const (
	// Fallthrough hands the request back to the host's conventional
	// handling; no cached packet was available.
	Fallthrough Decision = iota

	// Respond means the returned buffer must be written to the client,
	// released, and the connection closed.
	Respond

	// Drop closes the connection without a response. Used for
	// rate-limited sources.
	Drop
)

// Interceptor is the abstract seam between the cache core and whatever
// pipeline delivers status requests. The host calls it with the request's
// source address and previously captured handshake data.
type Interceptor interface {
	InterceptPing(source netip.Addr, protocolVersion int32, virtualHost string) (*buffer.Buffer, Decision)
}

// Config carries the already-typed content values the responder serves.
// Parsing and validation of raw configuration happens elsewhere.
type Config struct {
	// VersionName is the server software name shown in the client list.
	VersionName string

	// DefaultProtocol answers clients whose handshake carried no usable
	// protocol version (0).
	DefaultProtocol int32

	// MaxPlayers and OnlinePlayers fill the players section.
	MaxPlayers    int
	OnlinePlayers int

	// SamplePlayers is the optional hover sample.
	SamplePlayers []protocol.SamplePlayer

	// FaviconPath selects the icon, relative to the favicon cache's data
	// directory. Empty disables the favicon.
	FaviconPath string
}

func (c *Config) validate() error {
	if c.VersionName == "" {
		return errors.New("motd: version name must not be empty")
	}
	if c.MaxPlayers <= 0 {
		return fmt.Errorf("motd: max players must be positive, got %d", c.MaxPlayers)
	}
	if c.OnlinePlayers < 0 {
		return fmt.Errorf("motd: online players must not be negative, got %d", c.OnlinePlayers)
	}
	return nil
}

// Responder answers status pings from the packet cache, rebuilding variants
// on demand: a miss for an unseen protocol version triggers exactly one
// rebuild-and-retry before falling through to the uncached path.
type Responder struct {
	cfg      Config
	rotator  *rotation.Rotator
	packets  *cache.PacketCache
	favicons *cache.FaviconCache // nil when favicons are disabled
	limiter  *ratelimit.Limiter  // nil when rate limiting is disabled
	logger   zerolog.Logger
}

// NewResponder creates a responder. favicons and limiter may be nil to
// disable the favicon and rate limiting respectively.
func NewResponder(cfg Config, rotator *rotation.Rotator, packets *cache.PacketCache, favicons *cache.FaviconCache, limiter *ratelimit.Limiter, logger zerolog.Logger) (*Responder, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	if rotator == nil {
		return nil, errors.New("motd: rotator must not be nil")
	}
	if packets == nil {
		return nil, errors.New("motd: packet cache must not be nil")
	}
	return &Responder{
		cfg:      cfg,
		rotator:  rotator,
		packets:  packets,
		favicons: favicons,
		limiter:  limiter,
		logger:   logger,
	}, nil
}

// InterceptPing implements Interceptor. On Respond the caller owns one
// reference to the returned buffer and must release it after the write.
func (r *Responder) InterceptPing(source netip.Addr, protocolVersion int32, virtualHost string) (*buffer.Buffer, Decision) {
	if r.limiter != nil && !r.limiter.Allow(source, time.Now()) {
		return nil, Drop
	}

	key := cache.PacketKey{ProtocolVersion: protocolVersion, VirtualHost: virtualHost}
	if buf := r.packets.Get(key); buf != nil {
		return buf, Respond
	}

	// Unseen or expired variant: rebuild once, then retry once.
	if err := r.Rebuild(protocolVersion, virtualHost); err != nil {
		r.logger.Error().
			Err(err).
			Int32("protocol", protocolVersion).
			Str("virtual_host", virtualHost).
			Msg("Packet rebuild failed")
		return nil, Fallthrough
	}
	if buf := r.packets.Get(key); buf != nil {
		return buf, Respond
	}
	return nil, Fallthrough
}

// Rebuild serializes a fresh status packet for the given variant and stores
// it in the packet cache. Runs off the steady-state hot path: only on first
// sight of a variant or after its TTL lapsed.
func (r *Responder) Rebuild(protocolVersion int32, virtualHost string) error {
	resp := &protocol.StatusResponse{
		Version: protocol.Version{
			Name:     r.cfg.VersionName,
			Protocol: r.resolveProtocol(protocolVersion),
		},
		Players: &protocol.Players{
			Online: r.cfg.OnlinePlayers,
			Max:    r.cfg.MaxPlayers,
			Sample: r.cfg.SamplePlayers,
		},
		Description: r.rotator.Current(),
	}

	if r.favicons != nil && r.cfg.FaviconPath != "" {
		entry, err := r.favicons.Get(r.cfg.FaviconPath)
		if err != nil {
			// Serve without an icon rather than failing the ping.
			r.logger.Warn().Err(err).Str("path", r.cfg.FaviconPath).Msg("Favicon unavailable")
		} else {
			resp.Favicon = entry.Item
			entry.Release()
		}
	}

	key := cache.PacketKey{ProtocolVersion: protocolVersion, VirtualHost: virtualHost}
	return r.packets.Update(key, resp)
}

// resolveProtocol echoes the client's protocol version so the client sees a
// compatible server, falling back to the configured default when the
// handshake carried none.
func (r *Responder) resolveProtocol(protocolVersion int32) int32 {
	if protocolVersion <= 0 {
		return r.cfg.DefaultProtocol
	}
	return protocolVersion
}

// Refresh applies a content change: swaps the rotation messages and clears
// every cached variant so stale packets cannot be served.
func (r *Responder) Refresh(messages []json.RawMessage) {
	r.rotator.ReplaceMessages(messages)
	r.packets.Clear()
	if r.favicons != nil {
		r.favicons.Clear()
	}
	r.logger.Info().Int("messages", len(messages)).Msg("Content refreshed")
}

// ForceRotation advances the rotator and drops cached packets so the next
// ping serves the new message immediately instead of after the packet TTL.
func (r *Responder) ForceRotation() {
	r.rotator.Force()
	r.packets.Clear()
}
