package canbus

import (
	"encoding/binary"
	"errors"
	"fmt"
	"time"
)

const (
	// MaxDataLen 经典 CAN 数据长度上限
	MaxDataLen = 8
	// MaxStdID 11 位标准帧
	MaxStdID = 0x7FF
	// MaxExtID 29 位扩展帧
	MaxExtID = 0x1FFFFFFF

	// SocketCAN struct can_frame 长度
	wireFrameLen = 16

	canEffFlag = 0x80000000
	canRtrFlag = 0x40000000
	canErrFlag = 0x20000000
	canEffMask = 0x1FFFFFFF
	canStdMask = 0x7FF
)

var (
	ErrInvalidID  = errors.New("canbus: invalid identifier")
	ErrInvalidLen = errors.New("canbus: invalid data length")
	ErrShortWire  = errors.New("canbus: short can_frame")
)

// Frame 总线原始帧（经典 CAN）
type Frame struct {
	Bus      int
	ID       uint32
	Extended bool
	RTR      bool
	Len      int
	Data     []byte
	// At 接收时间；回放时为日志时间戳
	At time.Time
}

// Payload 返回有效数据（Data[:Len]）
func (f Frame) Payload() []byte {
	if f.Len > len(f.Data) {
		return f.Data
	}
	return f.Data[:f.Len]
}

// Validate 校验 ID 与长度
func (f Frame) Validate() error {
	if f.Len < 0 || f.Len > MaxDataLen || f.Len > len(f.Data) {
		return fmt.Errorf("%w: %d", ErrInvalidLen, f.Len)
	}
	limit := uint32(MaxStdID)
	if f.Extended {
		limit = MaxExtID
	}
	if f.ID > limit {
		return fmt.Errorf("%w: 0x%X", ErrInvalidID, f.ID)
	}
	return nil
}

// MarshalBinary 按 Linux SocketCAN can_frame 布局编码（16 字节，小端 can_id）
func (f Frame) MarshalBinary() ([]byte, error) {
	if err := f.Validate(); err != nil {
		return nil, err
	}
	id := f.ID
	if f.Extended {
		id |= canEffFlag
	}
	if f.RTR {
		id |= canRtrFlag
	}
	buf := make([]byte, wireFrameLen)
	binary.LittleEndian.PutUint32(buf[0:4], id)
	buf[4] = byte(f.Len)
	copy(buf[8:], f.Payload())
	return buf, nil
}

// UnmarshalBinary 解析 SocketCAN can_frame
func (f *Frame) UnmarshalBinary(b []byte) error {
	if len(b) < wireFrameLen {
		return fmt.Errorf("%w: %d bytes", ErrShortWire, len(b))
	}
	id := binary.LittleEndian.Uint32(b[0:4])
	if id&canErrFlag != 0 {
		return fmt.Errorf("%w: error frame 0x%08X", ErrInvalidID, id)
	}
	f.Extended = id&canEffFlag != 0
	f.RTR = id&canRtrFlag != 0
	if f.Extended {
		f.ID = id & canEffMask
	} else {
		f.ID = id & canStdMask
	}
	f.Len = int(b[4])
	if f.Len > MaxDataLen {
		return fmt.Errorf("%w: %d", ErrInvalidLen, f.Len)
	}
	f.Data = append([]byte(nil), b[8:8+f.Len]...)
	return nil
}

// Filter 总线过滤：(id & mask) == (ID & mask)，Bus<0 表示任意总线
// Mask 为 0 时接收全部帧
type Filter struct {
	Bus  int
	ID   uint32
	Mask uint32
}

// AcceptAll 等价于 setFilter(0, 0, any)
var AcceptAll = Filter{Bus: -1}

// Match 判断帧是否通过过滤
func (flt Filter) Match(f Frame) bool {
	if flt.Bus >= 0 && f.Bus != flt.Bus {
		return false
	}
	return f.ID&flt.Mask == flt.ID&flt.Mask
}
