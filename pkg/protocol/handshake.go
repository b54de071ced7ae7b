package protocol

import (
	"fmt"
	"unicode/utf8"
)

// Next-state values carried by the handshake packet.
const (
	// NextStateStatus selects the status exchange.
	NextStateStatus = 1

	// NextStateLogin selects the login flow, which this server never
	// handles.
	NextStateLogin = 2
)

// Handshake is the first packet of every connection. The protocol version
// and virtual host it carries select which cached packet variant answers the
// subsequent status request.
type Handshake struct {
	ProtocolVersion int32
	ServerAddress   string
	ServerPort      uint16
	NextState       int32
}

// DecodeHandshake parses a handshake packet body:
// [packetID VarInt = 0x00][protocolVersion VarInt]
// [serverAddress String][serverPort uint16][nextState VarInt].
func DecodeHandshake(body []byte) (*Handshake, error) {
	id, n, err := DecodeVarInt(body)
	if err != nil {
		return nil, fmt.Errorf("%w: packet id: %v", ErrPacketMalformed, err)
	}
	if id != 0x00 {
		return nil, fmt.Errorf("%w: unexpected handshake packet id 0x%02x", ErrPacketMalformed, id)
	}
	body = body[n:]

	var hs Handshake
	hs.ProtocolVersion, n, err = DecodeVarInt(body)
	if err != nil {
		return nil, fmt.Errorf("%w: protocol version: %v", ErrPacketMalformed, err)
	}
	body = body[n:]

	hs.ServerAddress, n, err = decodeString(body)
	if err != nil {
		return nil, fmt.Errorf("%w: server address: %v", ErrPacketMalformed, err)
	}
	body = body[n:]

	if len(body) < 2 {
		return nil, fmt.Errorf("%w: server port: %v", ErrPacketMalformed, ErrTruncated)
	}
	hs.ServerPort = uint16(body[0])<<8 | uint16(body[1])
	body = body[2:]

	hs.NextState, n, err = DecodeVarInt(body)
	if err != nil {
		return nil, fmt.Errorf("%w: next state: %v", ErrPacketMalformed, err)
	}
	if len(body) != n {
		return nil, fmt.Errorf("%w: %d trailing bytes after handshake", ErrPacketMalformed, len(body)-n)
	}
	return &hs, nil
}

// AppendHandshake appends the wire encoding of hs to dst. Used by the test
// client.
func AppendHandshake(dst []byte, hs *Handshake) []byte {
	dst = AppendVarInt(dst, 0x00)
	dst = AppendVarInt(dst, hs.ProtocolVersion)
	dst = AppendVarInt(dst, int32(len(hs.ServerAddress)))
	dst = append(dst, hs.ServerAddress...)
	dst = append(dst, byte(hs.ServerPort>>8), byte(hs.ServerPort))
	return AppendVarInt(dst, hs.NextState)
}

// decodeString reads a VarInt-prefixed UTF-8 string and returns it together
// with the number of bytes consumed.
func decodeString(b []byte) (string, int, error) {
	length, n, err := DecodeVarInt(b)
	if err != nil {
		return "", 0, err
	}
	if length < 0 || int(length) > len(b)-n {
		return "", 0, ErrTruncated
	}
	raw := b[n : n+int(length)]
	if !utf8.Valid(raw) {
		return "", 0, fmt.Errorf("invalid UTF-8 in string")
	}
	return string(raw), n + int(length), nil
}
