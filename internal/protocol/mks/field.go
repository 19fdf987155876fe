package mks

import (
	"errors"
	"fmt"
)

var (
	// ErrOutOfRange 读取区间超出负载长度
	ErrOutOfRange = errors.New("field out of range")
	// ErrUnsupportedWidth 不支持的字段位宽
	ErrUnsupportedWidth = errors.New("unsupported field width")
)

// ReadUint 从 offset 开始按大端读取 bits 位无符号整数
// 支持 8/16/24/32/48 位
func ReadUint(b []byte, offset, bits int) (uint64, error) {
	switch bits {
	case 8, 16, 24, 32, 48:
	default:
		return 0, fmt.Errorf("%w: %d", ErrUnsupportedWidth, bits)
	}
	n := bits / 8
	if offset < 0 || offset+n > len(b) {
		return 0, fmt.Errorf("%w: offset=%d width=%d len=%d", ErrOutOfRange, offset, n, len(b))
	}
	var v uint64
	for _, x := range b[offset : offset+n] {
		v = v<<8 | uint64(x)
	}
	return v, nil
}

// ReadInt 读取 bits 位有符号整数（最高位为符号位时减去 2^bits）
func ReadInt(b []byte, offset, bits int) (int64, error) {
	u, err := ReadUint(b, offset, bits)
	if err != nil {
		return 0, err
	}
	v := int64(u)
	if u&(1<<(bits-1)) != 0 {
		v -= 1 << bits
	}
	return v, nil
}

func ReadUint16(b []byte, offset int) (uint64, error) { return ReadUint(b, offset, 16) }
func ReadUint24(b []byte, offset int) (uint64, error) { return ReadUint(b, offset, 24) }

func ReadInt16(b []byte, offset int) (int64, error) { return ReadInt(b, offset, 16) }
func ReadInt24(b []byte, offset int) (int64, error) { return ReadInt(b, offset, 24) }
func ReadInt32(b []byte, offset int) (int64, error) { return ReadInt(b, offset, 32) }

// ReadInt48 48 位累积编码器值，int64 保证无精度损失
func ReadInt48(b []byte, offset int) (int64, error) { return ReadInt(b, offset, 48) }
