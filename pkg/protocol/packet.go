package protocol

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"
)

// Packet IDs used during the status exchange.
const (
	// StatusResponseID is the packet ID of both the status request
	// (client to server, empty body) and the status response.
	StatusResponseID = 0x00

	// PingID is the packet ID of the ping/pong exchange that follows the
	// status response. Its body is an opaque 8-byte payload echoed back.
	PingID = 0x01
)

// MaxFrameLen bounds inbound frame sizes. Handshake and status request
// packets are tiny; anything larger is a protocol violation or abuse.
const MaxFrameLen = 1024

// ErrPacketMalformed indicates a packet body that does not match the
// expected layout. It aborts only the packet being parsed.
var ErrPacketMalformed = errors.New("malformed packet")

// EncodeStatusPacket serializes resp into a status response packet body:
// [packetID VarInt = 0x00][jsonLength VarInt][json UTF-8]. The outer frame
// length is not included; the transport prepends it on write.
func EncodeStatusPacket(resp *StatusResponse) ([]byte, error) {
	raw, err := json.Marshal(resp)
	if err != nil {
		return nil, fmt.Errorf("encode status response: %w", err)
	}

	jsonLen := int32(len(raw))
	body := make([]byte, 0, 1+VarIntSize(jsonLen)+len(raw))
	body = AppendVarInt(body, StatusResponseID)
	body = AppendVarInt(body, jsonLen)
	body = append(body, raw...)
	return body, nil
}

// DecodeStatusPacket parses a status response packet body back into its JSON
// document. Used by the test client and round-trip checks.
func DecodeStatusPacket(body []byte) (*StatusResponse, error) {
	id, n, err := DecodeVarInt(body)
	if err != nil {
		return nil, fmt.Errorf("%w: packet id: %v", ErrPacketMalformed, err)
	}
	if id != StatusResponseID {
		return nil, fmt.Errorf("%w: unexpected packet id 0x%02x", ErrPacketMalformed, id)
	}
	body = body[n:]

	jsonLen, n, err := DecodeVarInt(body)
	if err != nil {
		return nil, fmt.Errorf("%w: json length: %v", ErrPacketMalformed, err)
	}
	body = body[n:]
	if jsonLen < 0 || int(jsonLen) != len(body) {
		return nil, fmt.Errorf("%w: json length %d does not match body %d", ErrPacketMalformed, jsonLen, len(body))
	}

	var resp StatusResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("%w: json: %v", ErrPacketMalformed, err)
	}
	return &resp, nil
}

// AppendFrame appends body to dst prefixed with its VarInt length, producing
// a complete outbound frame.
func AppendFrame(dst, body []byte) []byte {
	dst = AppendVarInt(dst, int32(len(body)))
	return append(dst, body...)
}

// ReadFrame reads one length-prefixed frame from r. Frames larger than
// maxLen are rejected without being read.
func ReadFrame(r *bufio.Reader, maxLen int) ([]byte, error) {
	length, err := ReadVarInt(r)
	if err != nil {
		return nil, fmt.Errorf("frame length: %w", err)
	}
	if length < 0 || int(length) > maxLen {
		return nil, fmt.Errorf("%w: frame length %d exceeds limit %d", ErrPacketMalformed, length, maxLen)
	}

	body := make([]byte, length)
	if _, err := io.ReadFull(r, body); err != nil {
		if err == io.EOF || err == io.ErrUnexpectedEOF {
			return nil, fmt.Errorf("frame body: %w", ErrTruncated)
		}
		return nil, fmt.Errorf("frame body: %w", err)
	}
	return body, nil
}
