package mks

import (
	"errors"
	"sort"
)

// Variant 同一命令字按帧长区分的形态
type Variant int

const (
	// VariantLabel 长度不满足任一形态，仅输出名称
	VariantLabel Variant = iota
	// VariantResponse 短帧：命令应答状态
	VariantResponse
	// VariantTelemetry 长帧：遥测/命令回显，完整解析字段
	VariantTelemetry
)

// MarshalText 以名称序列化
func (v Variant) MarshalText() ([]byte, error) { return []byte(v.String()), nil }

func (v Variant) String() string {
	switch v {
	case VariantResponse:
		return "response"
	case VariantTelemetry:
		return "telemetry"
	default:
		return "label"
	}
}

// Shape 单一形态的解析规则
type Shape struct {
	MinLen int
	decode func(r *fieldReader) []Field
}

// Rule 命令字解码规则
type Rule struct {
	Cmd       uint8
	Name      string
	Telemetry *Shape
	Response  *Shape
}

// Select 仅按帧长选择形态：先判长帧，再判短帧，两者互斥
func (r *Rule) Select(n int) Variant {
	if r.Telemetry != nil && n >= r.Telemetry.MinLen {
		return VariantTelemetry
	}
	if r.Response != nil && n >= r.Response.MinLen {
		return VariantResponse
	}
	return VariantLabel
}

func (r *Rule) shape(v Variant) *Shape {
	switch v {
	case VariantTelemetry:
		return r.Telemetry
	case VariantResponse:
		return r.Response
	}
	return nil
}

// Table 路由表（cmd -> rule），构建后只读
type Table struct {
	rules map[uint8]*Rule
}

// NewTable 构建路由表；重复命令字以后者为准
func NewTable(rules ...Rule) *Table {
	t := &Table{rules: make(map[uint8]*Rule, len(rules))}
	for i := range rules {
		r := rules[i]
		t.rules[r.Cmd] = &r
	}
	return t
}

// Lookup 查找命令字规则
func (t *Table) Lookup(cmd uint8) (*Rule, bool) {
	r, ok := t.rules[cmd]
	return r, ok
}

// Commands 返回已注册命令字（升序）
func (t *Table) Commands() []uint8 {
	out := make([]uint8, 0, len(t.rules))
	for c := range t.rules {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

var defaultTable = NewTable(builtinRules()...)

// DefaultTable 返回内置 MKS SERVO42D/57D 命令表
func DefaultTable() *Table { return defaultTable }

// fieldReader 字段读取器：累积读取与标签错误，规则函数只关心布局
type fieldReader struct {
	data []byte
	err  error
}

func (r *fieldReader) size() int { return len(r.data) }

func (r *fieldReader) fail(err error) {
	if err != nil {
		r.err = errors.Join(r.err, err)
	}
}

func (r *fieldReader) signed(offset, bits int) int64 {
	v, err := ReadInt(r.data, offset, bits)
	r.fail(err)
	return v
}

func (r *fieldReader) unsigned(offset, bits int) uint64 {
	v, err := ReadUint(r.data, offset, bits)
	r.fail(err)
	return v
}

func (r *fieldReader) u8(offset int) int {
	return int(r.unsigned(offset, 8))
}

func (r *fieldReader) lookup(l Labels, v int) string {
	s, err := l.Lookup(v)
	r.fail(err)
	return s
}
