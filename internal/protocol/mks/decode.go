package mks

import (
	"fmt"
	"strings"
)

const (
	// MinAddress/MaxAddress 电机 CAN 地址范围
	MinAddress = 1
	MaxAddress = 255
	// MinFrameLen 命令字 + 校验字节
	MinFrameLen = 2
)

// Field 单个解析字段（Name 为空表示无名主值）
type Field struct {
	Name  string `json:"name,omitempty"`
	Value any    `json:"value"`
	Text  string `json:"text"`
}

// Message 一帧的解析结果
type Message struct {
	Address int     `json:"address"`
	Cmd     uint8   `json:"cmd"`
	Name    string  `json:"name"`
	Variant Variant `json:"variant"`
	Fields  []Field `json:"fields,omitempty"`
	CRC     uint8   `json:"crc"`
	// Raw 原始负载（命令字 ... 校验字节）
	Raw []byte `json:"-"`
	// Err 非空表示部分字段未能正确解析（如状态码越界），行仍可输出
	Err error `json:"-"`
}

// Field 按名称查找字段
func (m *Message) Field(name string) (Field, bool) {
	for _, f := range m.Fields {
		if f.Name == name {
			return f, true
		}
	}
	return Field{}, false
}

// Label 输出名称，短帧应答追加 " Response"
func (m *Message) Label() string {
	if m.Variant == VariantResponse {
		return m.Name + " Response"
	}
	return m.Name
}

// Body 命令相关部分：NAME / NAME: v, K: v / NAME - K: v, K: v
func (m *Message) Body() string {
	var sb strings.Builder
	sb.WriteString(m.Label())
	for i, f := range m.Fields {
		switch {
		case i == 0 && f.Name == "":
			sb.WriteString(": ")
		case i == 0:
			sb.WriteString(" - ")
		default:
			sb.WriteString(", ")
		}
		if f.Name != "" {
			sb.WriteString(f.Name)
			sb.WriteString(": ")
		}
		sb.WriteString(f.Text)
	}
	return sb.String()
}

// String 完整显示行
func (m *Message) String() string {
	return fmt.Sprintf("Motor 0x%X: %s [CRC: 0x%X]", m.Address, m.Body(), m.CRC)
}

// Decoder 无状态帧解码器，可并发使用
type Decoder struct {
	table *Table
}

// NewDecoder 创建解码器；t 为 nil 时使用内置命令表
func NewDecoder(t *Table) *Decoder {
	if t == nil {
		t = DefaultTable()
	}
	return &Decoder{table: t}
}

// Table 解码器使用的命令表
func (d *Decoder) Table() *Table { return d.table }

// Decode 解析一帧。地址越界或长度不足返回 ok=false（不输出）
// payload[0] 为命令字，payload[len-1] 为校验字节
func (d *Decoder) Decode(address int, cmd uint8, payload []byte) (*Message, bool) {
	if address < MinAddress || address > MaxAddress {
		return nil, false
	}
	if len(payload) < MinFrameLen {
		return nil, false
	}

	m := &Message{Address: address, Cmd: cmd, CRC: payload[len(payload)-1], Raw: append([]byte(nil), payload...)}
	rule, ok := d.table.Lookup(cmd)
	if !ok {
		m.Name = fmt.Sprintf("CMD 0x%X", cmd)
		return m, true
	}

	m.Name = rule.Name
	m.Variant = rule.Select(len(payload))
	if s := rule.shape(m.Variant); s != nil {
		r := &fieldReader{data: payload}
		m.Fields = s.decode(r)
		m.Err = r.err
	}
	return m, true
}

var defaultDecoder = NewDecoder(nil)

// Decode 使用内置命令表解析并返回显示行
func Decode(address int, cmd uint8, payload []byte) (string, bool) {
	m, ok := defaultDecoder.Decode(address, cmd, payload)
	if !ok {
		return "", false
	}
	return m.String(), true
}
