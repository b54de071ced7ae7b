// Package protocol implements the Minecraft status-ping wire format: VarInt
// encoding, handshake and frame parsing, and the status response packet that
// the caches store fully serialized.
//
// # Status response packet
//
// A status response packet body is
//
//	[packetID VarInt = 0x00][jsonLength VarInt][json UTF-8]
//
// without the outer frame length, which the transport prepends on write.
// The JSON document carries version{name,protocol}, optional
// players{online,max,sample}, a description (plain string or rich-text
// object), and an optional favicon data URI.
//
// # Building a cached packet
//
//	desc, _ := protocol.TextDescription("A Minecraft Server")
//	body, err := protocol.EncodeStatusPacket(&protocol.StatusResponse{
//		Version:     protocol.Version{Name: "1.21", Protocol: 767},
//		Players:     &protocol.Players{Online: 12, Max: 100},
//		Description: desc,
//	})
//
// # VarInt encoding
//
// Seven data bits per byte, least significant group first, continuation bit
// 0x80 on all but the final byte. Encodings are limited to five bytes
// (32-bit range); longer inputs fail with ErrVarIntTooBig. Malformed packets
// fail with ErrPacketMalformed and abort only the packet being parsed.
package protocol
