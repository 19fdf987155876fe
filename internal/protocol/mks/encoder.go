package mks

import (
	"errors"
	"fmt"
)

const (
	// MaxStdID 11 位标准帧 ID 上限
	MaxStdID = 0x7FF
	// MaxPositionPulses 24 位有符号位置上限
	MaxPositionPulses = 0x7FFFFF
	// MaxSpeedRPM 速度上限
	MaxSpeedRPM = 3000
)

var (
	// ErrInvalidID CAN ID 超出标准帧范围
	ErrInvalidID = errors.New("invalid can id")
	// ErrBadPayload 负载长度或命令字不符
	ErrBadPayload = errors.New("bad payload")
	// ErrChecksumMismatch 校验字节不符
	ErrChecksumMismatch = errors.New("checksum mismatch")
)

// Checksum MKS 校验：CAN ID 低字节 + 数据字节累加，取低 8 位
func Checksum(canID uint16, data []byte) byte {
	sum := byte(canID & 0xFF)
	for _, b := range data {
		sum += b
	}
	return sum
}

// VerifyChecksum 校验末字节（data 含校验字节）
func VerifyChecksum(canID uint16, data []byte) error {
	if len(data) < MinFrameLen {
		return fmt.Errorf("%w: len=%d", ErrBadPayload, len(data))
	}
	n := len(data) - 1
	want := Checksum(canID, data[:n])
	if data[n] != want {
		return fmt.Errorf("%w: got 0x%02X want 0x%02X", ErrChecksumMismatch, data[n], want)
	}
	return nil
}

// EncodeInt24 将有符号位置钳位到 ±0x7FFFFF 后转为 24 位补码
func EncodeInt24(v int32) uint32 {
	if v > MaxPositionPulses {
		v = MaxPositionPulses
	} else if v < -MaxPositionPulses {
		v = -MaxPositionPulses
	}
	if v < 0 {
		return uint32(1<<24 + int64(v))
	}
	return uint32(v)
}

// PackPosition 构造绝对坐标位置命令（0xF5，8 字节）
func PackPosition(canID uint16, speed uint16, accel uint8, position int32) ([8]byte, error) {
	var out [8]byte
	if canID > MaxStdID {
		return out, fmt.Errorf("%w: 0x%X", ErrInvalidID, canID)
	}
	axis := EncodeInt24(position)
	out[0] = CmdPosAbsCoord
	out[1] = byte(speed >> 8)
	out[2] = byte(speed)
	out[3] = accel
	out[4] = byte(axis >> 16)
	out[5] = byte(axis >> 8)
	out[6] = byte(axis)
	out[7] = Checksum(canID, out[:7])
	return out, nil
}

// PackSpeed 构造速度模式命令（0xF6，5 字节）
// byte1: bit7 反向标志 | 转速高 4 位；byte2: 转速低 8 位
func PackSpeed(canID uint16, speed uint16, accel uint8, reverse bool) ([5]byte, error) {
	var out [5]byte
	if canID > MaxStdID {
		return out, fmt.Errorf("%w: 0x%X", ErrInvalidID, canID)
	}
	var dir byte
	if reverse {
		dir = 0x80
	}
	out[0] = CmdSpeedMode
	out[1] = dir | byte(speed>>8)&0x0F
	out[2] = byte(speed)
	out[3] = accel
	out[4] = Checksum(canID, out[:4])
	return out, nil
}

// ParsePositionResponse 解析 0x30 短格式位置：bytes 1-3 为 24 位有符号脉冲
func ParsePositionResponse(data []byte) (int32, error) {
	if len(data) < 4 {
		return 0, fmt.Errorf("%w: len=%d", ErrBadPayload, len(data))
	}
	if data[0] != CmdReadEncoder {
		return 0, fmt.Errorf("%w: cmd=0x%02X", ErrBadPayload, data[0])
	}
	v, err := ReadInt24(data, 1)
	if err != nil {
		return 0, err
	}
	return int32(v), nil
}
