package protocol

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEncodeDecodeVarint_RoundTrip(t *testing.T) {
	values := []uint32{0, 1, 100, 127, 128, 300, 16384, 1<<21 - 1, 1 << 28, 0xFFFFFFFF}

	for _, v := range values {
		encoded := EncodeVarint(v)
		decoded := ReadVarint(encoded, 0)
		assert.True(t, decoded.Valid())
		assert.Equal(t, v, decoded.Value)
		assert.Equal(t, len(encoded), decoded.Length)
		assert.LessOrEqual(t, len(encoded), MaxVarintBytes)
	}
}

func TestReadVarint_TruncatedIsInvalid(t *testing.T) {
	data := []byte{0x80, 0x80} // continuation bits set, no terminator
	assert.False(t, ReadVarint(data, 0).Valid())
}

func TestReadVarint_OverflowIsInvalid(t *testing.T) {
	data := []byte{0x80, 0x80, 0x80, 0x80, 0x80, 0x01} // 6 bytes, exceeds MaxVarintBytes
	assert.False(t, ReadVarint(data, 0).Valid())
}

func TestReadVarint_OffsetPastEndIsInvalid(t *testing.T) {
	assert.False(t, ReadVarint([]byte{0x01}, 5).Valid())
	assert.False(t, ReadVarint([]byte{0x01}, -1).Valid())
}

func TestParseUint32LE(t *testing.T) {
	data := []byte{0x04, 0x03, 0x02, 0x01}
	assert.Equal(t, uint32(0x01020304), ParseUint32LE(data, 0))
}

func TestParseUint16LE(t *testing.T) {
	data := []byte{0xCD, 0xAB}
	assert.Equal(t, uint16(0xABCD), ParseUint16LE(data, 0))
}
