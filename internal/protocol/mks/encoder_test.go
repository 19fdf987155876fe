package mks

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChecksum(t *testing.T) {
	// 0x01 + 0x30 = 0x31
	assert.Equal(t, byte(0x31), Checksum(0x01, []byte{0x30}))
	// 仅取 ID 低字节，累加溢出截断
	assert.Equal(t, byte(0x01), Checksum(0x201, []byte{0xFF, 0x01}))
}

func TestVerifyChecksum(t *testing.T) {
	assert.NoError(t, VerifyChecksum(0x01, []byte{0xF6, 0x81, 0x2C, 0x05, 0xA9}))
	assert.ErrorIs(t, VerifyChecksum(0x02, []byte{0xF6, 0x81, 0x2C, 0x05, 0xA9}), ErrChecksumMismatch)
	assert.ErrorIs(t, VerifyChecksum(0x01, []byte{0x30}), ErrBadPayload)
}

func TestEncodeInt24(t *testing.T) {
	assert.Equal(t, uint32(0), EncodeInt24(0))
	assert.Equal(t, uint32(0xFFFFFF), EncodeInt24(-1))
	assert.Equal(t, uint32(0x7FFFFF), EncodeInt24(0x7FFFFF))
	// 钳位
	assert.Equal(t, uint32(0x7FFFFF), EncodeInt24(0x1000000))
	assert.Equal(t, uint32(0x800001), EncodeInt24(-0x1000000))
}

func TestPackPosition(t *testing.T) {
	out, err := PackPosition(0x01, 300, 2, -16384)
	require.NoError(t, err)
	assert.Equal(t, [8]byte{0xF5, 0x01, 0x2C, 0x02, 0xFF, 0xC0, 0x00, 0xE4}, out)

	// 编码结果可被解码器还原
	line, ok := Decode(1, out[0], out[:])
	require.True(t, ok)
	assert.Equal(t, "Motor 0x1: POS ABS COORD - Speed: 300 RPM, Acc: 2, Coord: -16384 (-1.000 rot) [CRC: 0xE4]", line)

	_, err = PackPosition(0x800, 1, 1, 1)
	assert.ErrorIs(t, err, ErrInvalidID)
}

func TestPackSpeed(t *testing.T) {
	out, err := PackSpeed(0x01, 300, 5, true)
	require.NoError(t, err)
	assert.Equal(t, [5]byte{0xF6, 0x81, 0x2C, 0x05, 0xA9}, out)
	assert.NoError(t, VerifyChecksum(0x01, out[:]))

	out, err = PackSpeed(0x01, 100, 2, false)
	require.NoError(t, err)
	assert.Equal(t, byte(0x00), out[1])
	assert.Equal(t, byte(0x64), out[2])

	_, err = PackSpeed(0xFFFF, 1, 1, false)
	assert.ErrorIs(t, err, ErrInvalidID)
}

func TestParsePositionResponse(t *testing.T) {
	pos, err := ParsePositionResponse([]byte{0x30, 0xFF, 0xFF, 0xFE})
	require.NoError(t, err)
	assert.Equal(t, int32(-2), pos)

	pos, err = ParsePositionResponse([]byte{0x30, 0x01, 0x00, 0x00, 0x31})
	require.NoError(t, err)
	assert.Equal(t, int32(65536), pos)

	_, err = ParsePositionResponse([]byte{0x31, 0, 0, 0})
	assert.ErrorIs(t, err, ErrBadPayload)
	_, err = ParsePositionResponse([]byte{0x30, 0})
	assert.ErrorIs(t, err, ErrBadPayload)
}
