package protocol

import (
	"errors"
	"io"
)

// MaxVarIntLen is the maximum encoded length of a VarInt. Values are 32-bit,
// so five 7-bit groups always suffice; longer encodings are malformed.
const MaxVarIntLen = 5

var (
	// ErrVarIntTooBig indicates a VarInt encoding that exceeds the 32-bit
	// range (more than five bytes with the continuation bit set).
	ErrVarIntTooBig = errors.New("varint exceeds 32-bit range")

	// ErrTruncated indicates the input ended in the middle of a VarInt or
	// packet field.
	ErrTruncated = errors.New("truncated input")
)

// VarIntSize returns the number of bytes needed to encode v as a VarInt.
func VarIntSize(v int32) int {
	u := uint32(v)
	size := 0
	for {
		u >>= 7
		size++
		if u == 0 {
			return size
		}
	}
}

// AppendVarInt appends the VarInt encoding of v to dst and returns the
// extended slice. Encoding is 7 data bits per byte, least significant group
// first, with 0x80 set on all but the final byte.
func AppendVarInt(dst []byte, v int32) []byte {
	u := uint32(v)
	for u&^0x7F != 0 {
		dst = append(dst, byte(u&0x7F)|0x80)
		u >>= 7
	}
	return append(dst, byte(u))
}

// DecodeVarInt decodes a VarInt from the start of b. It returns the value and
// the number of bytes consumed. Returns ErrTruncated if b ends before the
// final byte and ErrVarIntTooBig if the encoding does not fit 32 bits.
func DecodeVarInt(b []byte) (int32, int, error) {
	var value uint32
	for i := 0; ; i++ {
		if i >= len(b) {
			return 0, 0, ErrTruncated
		}
		if i >= MaxVarIntLen {
			return 0, 0, ErrVarIntTooBig
		}
		cur := b[i]
		value |= uint32(cur&0x7F) << (7 * i)
		if cur&0x80 == 0 {
			return int32(value), i + 1, nil
		}
	}
}

// ReadVarInt reads a VarInt from r, consuming exactly the encoded bytes.
func ReadVarInt(r io.ByteReader) (int32, error) {
	var value uint32
	for i := 0; ; i++ {
		if i >= MaxVarIntLen {
			return 0, ErrVarIntTooBig
		}
		cur, err := r.ReadByte()
		if err != nil {
			if err == io.EOF {
				return 0, ErrTruncated
			}
			return 0, err
		}
		value |= uint32(cur&0x7F) << (7 * i)
		if cur&0x80 == 0 {
			return int32(value), nil
		}
	}
}
