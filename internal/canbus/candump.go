package canbus

import (
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// ErrBadLine candump 行格式错误
var ErrBadLine = errors.New("canbus: bad candump line")

// ParseLine 解析 candump 文本行，支持：
//
//	(1700000000.123456) can0 001#30000000004000AA   // candump -l
//	can0 001#30000000004000AA
//	can0  001   [8]  30 00 00 00 00 40 00 AA        // candump 默认输出
//	001#30000000004000AA                           // 省略接口，总线 0
//
// 空行与 '#' 开头的注释行返回 ok=false
func ParseLine(line string) (Frame, bool, error) {
	line = strings.TrimSpace(line)
	if line == "" || strings.HasPrefix(line, "#") {
		return Frame{}, false, nil
	}

	var f Frame
	fields := strings.Fields(line)
	if strings.HasPrefix(fields[0], "(") {
		ts, err := parseTimestamp(fields[0])
		if err != nil {
			return Frame{}, false, err
		}
		f.At = ts
		fields = fields[1:]
	}
	if len(fields) == 1 && strings.Contains(fields[0], "#") {
		fields = []string{"", fields[0]}
	}
	if len(fields) < 2 {
		return Frame{}, false, fmt.Errorf("%w: %q", ErrBadLine, line)
	}
	f.Bus = BusIndex(fields[0])

	var err error
	if i := strings.IndexByte(fields[1], '#'); i >= 0 {
		err = parseCompact(&f, fields[1][:i], fields[1][i+1:])
	} else {
		err = parseSpaced(&f, fields[1:])
	}
	if err != nil {
		return Frame{}, false, fmt.Errorf("%w: %q: %v", ErrBadLine, line, err)
	}
	if err := f.Validate(); err != nil {
		return Frame{}, false, err
	}
	return f, true, nil
}

func parseTimestamp(s string) (time.Time, error) {
	s = strings.TrimSuffix(strings.TrimPrefix(s, "("), ")")
	sec, frac, _ := strings.Cut(s, ".")
	secs, err := strconv.ParseInt(sec, 10, 64)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: timestamp %q", ErrBadLine, s)
	}
	var nanos int64
	if frac != "" {
		if len(frac) > 9 {
			frac = frac[:9]
		}
		frac += strings.Repeat("0", 9-len(frac))
		if nanos, err = strconv.ParseInt(frac, 10, 64); err != nil {
			return time.Time{}, fmt.Errorf("%w: timestamp %q", ErrBadLine, s)
		}
	}
	return time.Unix(secs, nanos), nil
}

func parseID(f *Frame, s string) error {
	id, err := strconv.ParseUint(s, 16, 32)
	if err != nil {
		return err
	}
	f.ID = uint32(id)
	// candump 以 8 位十六进制表示扩展帧；补零的短标识仍为标准帧
	f.Extended = len(s) == 8 || id > MaxStdID
	return nil
}

func parseCompact(f *Frame, id, data string) error {
	if err := parseID(f, id); err != nil {
		return err
	}
	if strings.HasPrefix(data, "R") {
		f.RTR = true
		f.Data = []byte{}
		return nil
	}
	b, err := hex.DecodeString(strings.ReplaceAll(data, ".", ""))
	if err != nil {
		return err
	}
	f.Data = b
	f.Len = len(b)
	return nil
}

func parseSpaced(f *Frame, fields []string) error {
	if len(fields) < 2 {
		return errors.New("missing length")
	}
	if err := parseID(f, fields[0]); err != nil {
		return err
	}
	dlc := strings.TrimSuffix(strings.TrimPrefix(fields[1], "["), "]")
	n, err := strconv.Atoi(dlc)
	if err != nil {
		return err
	}
	bytes := fields[2:]
	if len(bytes) == 1 && strings.EqualFold(bytes[0], "remote") {
		f.RTR = true
		f.Data = []byte{}
		return nil
	}
	if len(bytes) != n {
		return fmt.Errorf("dlc %d but %d bytes", n, len(bytes))
	}
	f.Data = make([]byte, n)
	for i, s := range bytes {
		v, err := strconv.ParseUint(s, 16, 8)
		if err != nil {
			return err
		}
		f.Data[i] = byte(v)
	}
	f.Len = n
	return nil
}

// FormatLine 以 candump -l 格式输出
func FormatLine(iface string, f Frame) string {
	var sb strings.Builder
	if !f.At.IsZero() {
		fmt.Fprintf(&sb, "(%d.%06d) ", f.At.Unix(), f.At.Nanosecond()/1000)
	}
	sb.WriteString(iface)
	sb.WriteByte(' ')
	if f.Extended {
		fmt.Fprintf(&sb, "%08X#", f.ID)
	} else {
		fmt.Fprintf(&sb, "%03X#", f.ID)
	}
	if f.RTR {
		sb.WriteByte('R')
	} else {
		sb.WriteString(strings.ToUpper(hex.EncodeToString(f.Payload())))
	}
	return sb.String()
}

// BusIndex 从接口名末尾数字推断总线号（can0 -> 0，vcan1 -> 1）
func BusIndex(iface string) int {
	i := len(iface)
	for i > 0 && iface[i-1] >= '0' && iface[i-1] <= '9' {
		i--
	}
	n, err := strconv.Atoi(iface[i:])
	if err != nil {
		return 0
	}
	return n
}
