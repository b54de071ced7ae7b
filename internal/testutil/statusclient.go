// Package testutil provides a minimal status-protocol client for tests.
package testutil

import (
	"bufio"
	"fmt"
	"net"
	"time"

	"github.com/rafalohaki/ultramotd/pkg/protocol"
)

// StatusClient drives the client side of the status exchange against a live
// listener.
type StatusClient struct {
	conn net.Conn
	r    *bufio.Reader
}

// DialStatus connects to addr.
func DialStatus(addr string) (*StatusClient, error) {
	conn, err := net.DialTimeout("tcp", addr, 2*time.Second)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", addr, err)
	}
	return &StatusClient{conn: conn, r: bufio.NewReader(conn)}, nil
}

// Conn exposes the raw connection for tests that send malformed input.
func (c *StatusClient) Conn() net.Conn {
	return c.conn
}

// RequestStatus sends the handshake and status request, then reads and
// decodes the status response.
func (c *StatusClient) RequestStatus(protocolVersion int32, virtualHost string, port uint16) (*protocol.StatusResponse, error) {
	hs := protocol.AppendHandshake(nil, &protocol.Handshake{
		ProtocolVersion: protocolVersion,
		ServerAddress:   virtualHost,
		ServerPort:      port,
		NextState:       protocol.NextStateStatus,
	})

	out := protocol.AppendFrame(nil, hs)
	out = protocol.AppendFrame(out, protocol.AppendVarInt(nil, protocol.StatusResponseID))

	c.conn.SetDeadline(time.Now().Add(2 * time.Second))
	if _, err := c.conn.Write(out); err != nil {
		return nil, fmt.Errorf("send status request: %w", err)
	}

	body, err := protocol.ReadFrame(c.r, 1<<20)
	if err != nil {
		return nil, fmt.Errorf("read status response: %w", err)
	}
	return protocol.DecodeStatusPacket(body)
}

// PingEcho sends a ping packet carrying payload and returns the echoed
// bytes. Must follow a successful RequestStatus on the same connection.
func (c *StatusClient) PingEcho(payload [8]byte) ([]byte, error) {
	body := protocol.AppendVarInt(nil, protocol.PingID)
	body = append(body, payload[:]...)

	c.conn.SetDeadline(time.Now().Add(2 * time.Second))
	if _, err := c.conn.Write(protocol.AppendFrame(nil, body)); err != nil {
		return nil, fmt.Errorf("send ping: %w", err)
	}

	echo, err := protocol.ReadFrame(c.r, protocol.MaxFrameLen)
	if err != nil {
		return nil, fmt.Errorf("read pong: %w", err)
	}
	id, n, err := protocol.DecodeVarInt(echo)
	if err != nil || id != protocol.PingID {
		return nil, fmt.Errorf("unexpected pong packet: id=%d err=%v", id, err)
	}
	return echo[n:], nil
}

// Close closes the underlying connection.
func (c *StatusClient) Close() error {
	return c.conn.Close()
}
