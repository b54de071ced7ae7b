// Package server runs the TCP listener that speaks the status protocol and
// delegates every ping to the interceptor. It owns connection lifecycle only;
// all response content comes from the motd package.
package server

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"net"
	"net/netip"
	"sync"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"

	"github.com/rafalohaki/ultramotd/pkg/motd"
	"github.com/rafalohaki/ultramotd/pkg/protocol"
)

var connectionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "ultramotd_connections_total",
	Help: "Total number of handled connections by outcome",
}, []string{"outcome"})

const (
	outcomeServed      = "served"
	outcomeDropped     = "dropped"
	outcomeFallthrough = "fallthrough"
	outcomeRejected    = "rejected"
	outcomeError       = "error"
)

// Config holds listener settings.
type Config struct {
	// Addr is the TCP listen address, e.g. ":25565".
	Addr string

	// ReadTimeout and WriteTimeout bound each connection's I/O. Zero
	// selects 5 seconds.
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// Server accepts status connections and answers them from the interceptor.
type Server struct {
	cfg         Config
	interceptor motd.Interceptor
	logger      zerolog.Logger

	ln     net.Listener
	wg     sync.WaitGroup
	closed atomic.Bool
}

// New creates a server. Start must be called before it accepts connections.
func New(cfg Config, interceptor motd.Interceptor, logger zerolog.Logger) (*Server, error) {
	if cfg.Addr == "" {
		return nil, errors.New("server: listen address must not be empty")
	}
	if interceptor == nil {
		return nil, errors.New("server: interceptor must not be nil")
	}
	if cfg.ReadTimeout <= 0 {
		cfg.ReadTimeout = 5 * time.Second
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = 5 * time.Second
	}
	return &Server{cfg: cfg, interceptor: interceptor, logger: logger}, nil
}

// Start binds the listener and begins accepting connections in the
// background. It returns once the listener is bound.
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.cfg.Addr)
	if err != nil {
		return fmt.Errorf("server: listen on %s: %w", s.cfg.Addr, err)
	}
	s.ln = ln

	s.wg.Add(1)
	go s.acceptLoop()

	s.logger.Info().Str("addr", ln.Addr().String()).Msg("Status listener started")
	return nil
}

// Addr returns the bound listener address. Valid after Start.
func (s *Server) Addr() net.Addr {
	return s.ln.Addr()
}

// Shutdown stops accepting connections, then waits for in-flight handlers
// until ctx expires.
func (s *Server) Shutdown(ctx context.Context) error {
	s.closed.Store(true)
	if s.ln != nil {
		s.ln.Close()
	}

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		s.logger.Info().Msg("Status listener stopped")
		return nil
	case <-ctx.Done():
		return fmt.Errorf("server: shutdown: %w", ctx.Err())
	}
}

func (s *Server) acceptLoop() {
	defer s.wg.Done()

	for {
		conn, err := s.ln.Accept()
		if err != nil {
			if s.closed.Load() {
				return
			}
			s.logger.Error().Err(err).Msg("Accept failed")
			continue
		}

		s.wg.Add(1)
		go s.handleConn(conn)
	}
}

// handleConn drives one connection through the status exchange: handshake,
// status request, response, then an optional ping/pong echo before close.
func (s *Server) handleConn(conn net.Conn) {
	defer s.wg.Done()
	defer conn.Close()

	conn.SetReadDeadline(time.Now().Add(s.cfg.ReadTimeout))
	r := bufio.NewReaderSize(conn, 512)

	frame, err := protocol.ReadFrame(r, protocol.MaxFrameLen)
	if err != nil {
		connectionsTotal.WithLabelValues(outcomeError).Inc()
		s.logger.Debug().Err(err).Str("remote", conn.RemoteAddr().String()).Msg("Handshake read failed")
		return
	}
	hs, err := protocol.DecodeHandshake(frame)
	if err != nil {
		connectionsTotal.WithLabelValues(outcomeError).Inc()
		s.logger.Debug().Err(err).Str("remote", conn.RemoteAddr().String()).Msg("Handshake malformed")
		return
	}
	if hs.NextState != protocol.NextStateStatus {
		// Login and anything else is outside this server's scope.
		connectionsTotal.WithLabelValues(outcomeRejected).Inc()
		s.logger.Debug().
			Int32("next_state", hs.NextState).
			Str("remote", conn.RemoteAddr().String()).
			Msg("Non-status handshake rejected")
		return
	}

	// The status request packet is an empty body carrying only the ID.
	frame, err = protocol.ReadFrame(r, protocol.MaxFrameLen)
	if err != nil {
		connectionsTotal.WithLabelValues(outcomeError).Inc()
		return
	}
	if id, _, err := protocol.DecodeVarInt(frame); err != nil || id != protocol.StatusResponseID {
		connectionsTotal.WithLabelValues(outcomeError).Inc()
		return
	}

	buf, decision := s.interceptor.InterceptPing(remoteAddr(conn), hs.ProtocolVersion, hs.ServerAddress)
	switch decision {
	case motd.Drop:
		connectionsTotal.WithLabelValues(outcomeDropped).Inc()
		return
	case motd.Fallthrough:
		connectionsTotal.WithLabelValues(outcomeFallthrough).Inc()
		s.logger.Warn().
			Int32("protocol", hs.ProtocolVersion).
			Str("virtual_host", hs.ServerAddress).
			Msg("No cached packet available, closing")
		return
	}

	conn.SetWriteDeadline(time.Now().Add(s.cfg.WriteTimeout))
	out := protocol.AppendFrame(make([]byte, 0, buf.Len()+protocol.MaxVarIntLen), buf.Bytes())
	_, werr := conn.Write(out)
	buf.Release()
	if werr != nil {
		connectionsTotal.WithLabelValues(outcomeError).Inc()
		return
	}
	connectionsTotal.WithLabelValues(outcomeServed).Inc()

	s.pingEcho(conn, r)
}

// pingEcho answers the optional latency-measurement packet that clients send
// after the status response. The client closing instead is normal.
func (s *Server) pingEcho(conn net.Conn, r *bufio.Reader) {
	conn.SetReadDeadline(time.Now().Add(s.cfg.ReadTimeout))
	frame, err := protocol.ReadFrame(r, protocol.MaxFrameLen)
	if err != nil {
		return
	}
	if id, _, err := protocol.DecodeVarInt(frame); err != nil || id != protocol.PingID {
		return
	}

	conn.SetWriteDeadline(time.Now().Add(s.cfg.WriteTimeout))
	conn.Write(protocol.AppendFrame(make([]byte, 0, len(frame)+protocol.MaxVarIntLen), frame))
}

// remoteAddr extracts the connection's source IP for rate limiting. The
// zero netip.Addr is returned for non-TCP test transports.
func remoteAddr(conn net.Conn) netip.Addr {
	ap, err := netip.ParseAddrPort(conn.RemoteAddr().String())
	if err != nil {
		return netip.Addr{}
	}
	return ap.Addr().Unmap()
}
