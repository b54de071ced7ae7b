package protocol

import (
	"bufio"
	"bytes"
	"errors"
	"math"
	"testing"
)

func TestVarInt_RoundTrip(t *testing.T) {
	values := []int32{
		0, 1, 2, 127, 128, 255, 256,
		16383, 16384,
		2097151, 2097152,
		268435455, 268435456,
		math.MaxInt32,
	}

	for _, v := range values {
		encoded := AppendVarInt(nil, v)

		if got := VarIntSize(v); got != len(encoded) {
			t.Errorf("VarIntSize(%d) = %d, want %d", v, got, len(encoded))
		}
		if len(encoded) > MaxVarIntLen {
			t.Errorf("AppendVarInt(%d) produced %d bytes, max is %d", v, len(encoded), MaxVarIntLen)
		}

		decoded, n, err := DecodeVarInt(encoded)
		if err != nil {
			t.Errorf("DecodeVarInt(%d) error: %v", v, err)
			continue
		}
		if decoded != v || n != len(encoded) {
			t.Errorf("DecodeVarInt(%d) = (%d, %d), want (%d, %d)", v, decoded, n, v, len(encoded))
		}
	}
}

func TestVarInt_KnownEncodings(t *testing.T) {
	tests := []struct {
		value int32
		bytes []byte
	}{
		{0, []byte{0x00}},
		{1, []byte{0x01}},
		{127, []byte{0x7F}},
		{128, []byte{0x80, 0x01}},
		{255, []byte{0xFF, 0x01}},
		{25565, []byte{0xDD, 0xC7, 0x01}},
		{math.MaxInt32, []byte{0xFF, 0xFF, 0xFF, 0xFF, 0x07}},
	}

	for _, tt := range tests {
		if got := AppendVarInt(nil, tt.value); !bytes.Equal(got, tt.bytes) {
			t.Errorf("AppendVarInt(%d) = %#v, want %#v", tt.value, got, tt.bytes)
		}
	}
}

func TestDecodeVarInt_TooBig(t *testing.T) {
	// Six bytes with continuation bits never terminate within the 32-bit
	// range.
	_, _, err := DecodeVarInt([]byte{0x80, 0x80, 0x80, 0x80, 0x80, 0x01})
	if !errors.Is(err, ErrVarIntTooBig) {
		t.Errorf("DecodeVarInt() error = %v, want ErrVarIntTooBig", err)
	}
}

func TestDecodeVarInt_Truncated(t *testing.T) {
	_, _, err := DecodeVarInt([]byte{0x80, 0x80})
	if !errors.Is(err, ErrTruncated) {
		t.Errorf("DecodeVarInt() error = %v, want ErrTruncated", err)
	}

	_, _, err = DecodeVarInt(nil)
	if !errors.Is(err, ErrTruncated) {
		t.Errorf("DecodeVarInt(nil) error = %v, want ErrTruncated", err)
	}
}

func TestReadVarInt(t *testing.T) {
	encoded := AppendVarInt(nil, 1_000_000)
	encoded = append(encoded, 0xAB) // trailing byte must stay unread

	r := bufio.NewReader(bytes.NewReader(encoded))
	v, err := ReadVarInt(r)
	if err != nil {
		t.Fatalf("ReadVarInt() error: %v", err)
	}
	if v != 1_000_000 {
		t.Errorf("ReadVarInt() = %d, want 1000000", v)
	}

	next, err := r.ReadByte()
	if err != nil || next != 0xAB {
		t.Errorf("byte after VarInt = (0x%02X, %v), want (0xAB, nil)", next, err)
	}
}

func TestReadVarInt_Truncated(t *testing.T) {
	r := bufio.NewReader(bytes.NewReader([]byte{0x80}))
	_, err := ReadVarInt(r)
	if !errors.Is(err, ErrTruncated) {
		t.Errorf("ReadVarInt() error = %v, want ErrTruncated", err)
	}
}
