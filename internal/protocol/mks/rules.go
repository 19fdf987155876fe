package mks

import (
	"fmt"
	"strconv"
)

const (
	// CountsPerRev 位置反馈编码器每圈计数
	CountsPerRev = 16384.0

	// ErrorCountsPerRev 角度误差每圈计数（与位置反馈不可混用）
	ErrorCountsPerRev = 51200.0

	// 速度/方向字：bit15 方向，bit0-11 转速
	dirMask   = 0x8000
	speedMask = 0x0FFF

	// IO 状态位
	ioIn1  = 0x01
	ioIn2  = 0x02
	ioOut1 = 0x10
	ioOut2 = 0x20

	// 运动类命令应答帧最小长度
	responseMinLen = 3
)

// 命令字
const (
	CmdReadEncoder    uint8 = 0x30
	CmdReadCumulative uint8 = 0x31
	CmdReadSpeed      uint8 = 0x32
	CmdReadPulses     uint8 = 0x33
	CmdReadIO         uint8 = 0x34
	CmdReadRawEncoder uint8 = 0x35
	CmdReadAngleError uint8 = 0x39
	CmdReadEnable     uint8 = 0x3A
	CmdReadHome       uint8 = 0x3B
	CmdReadStall      uint8 = 0x3E
	CmdReadVersion    uint8 = 0x40
	CmdCalibrate      uint8 = 0x80
	CmdSetMode        uint8 = 0x82
	CmdSetCurrent     uint8 = 0x83
	CmdSetSubdivision uint8 = 0x84
	CmdSetEnLevel     uint8 = 0x85
	CmdSetDirection   uint8 = 0x86
	CmdSetCanID       uint8 = 0x8B
	CmdMotorStatus    uint8 = 0xF1
	CmdSetEnable      uint8 = 0xF3
	CmdPosRelCoord    uint8 = 0xF4
	CmdPosAbsCoord    uint8 = 0xF5
	CmdSpeedMode      uint8 = 0xF6
	CmdEmergencyStop  uint8 = 0xF7
	CmdPosRelPulse    uint8 = 0xFD
	CmdPosAbsPulse    uint8 = 0xFE
)

func named(name string, v any, text string) Field { return Field{Name: name, Value: v, Text: text} }

func value(v any, text string) Field { return Field{Value: v, Text: text} }

func itoa(v int64) string { return strconv.FormatInt(v, 10) }

func either(on bool, yes, no string) string {
	if on {
		return yes
	}
	return no
}

func bit(status, mask int) Field {
	on := status&mask != 0
	return value(on, either(on, "1", "0"))
}

func direction(word uint64) string {
	return either(word&dirMask != 0, "CW", "CCW")
}

// byteStatus 单字节状态 + 标签表
func byteStatus(l Labels) func(r *fieldReader) []Field {
	return func(r *fieldReader) []Field {
		v := r.u8(1)
		return []Field{value(v, r.lookup(l, v))}
	}
}

// byteFlag 单字节 0/非0 标志
func byteFlag(yes, no string) func(r *fieldReader) []Field {
	return func(r *fieldReader) []Field {
		v := r.u8(1) != 0
		return []Field{value(v, either(v, yes, no))}
	}
}

func coordShape() *Shape {
	return &Shape{MinLen: 8, decode: func(r *fieldReader) []Field {
		speed := r.unsigned(1, 16)
		acc := r.u8(3)
		coord := r.signed(4, 24)
		rot := float64(coord) / CountsPerRev
		return []Field{
			named("Speed", speed, fmt.Sprintf("%d RPM", speed)),
			named("Acc", acc, strconv.Itoa(acc)),
			named("Coord", coord, fmt.Sprintf("%d (%s rot)", coord, toFixed(rot, 3))),
		}
	}}
}

func responseShape(l Labels) *Shape {
	return &Shape{MinLen: responseMinLen, decode: byteStatus(l)}
}

func builtinRules() []Rule {
	return []Rule{
		{Cmd: CmdReadEncoder, Name: "ENCODER", Telemetry: &Shape{MinLen: 8, decode: func(r *fieldReader) []Field {
			carry := r.signed(1, 32)
			v := r.unsigned(5, 16)
			angle := float64(v) * 360.0 / CountsPerRev
			return []Field{
				named("Carry", carry, itoa(carry)),
				named("Value", v, fmt.Sprintf("%d (0x%x)", v, v)),
				named("Angle", angle, toFixed(angle, 2)+"°"),
			}
		}}},
		{Cmd: CmdReadCumulative, Name: "CUMULATIVE ENCODER", Telemetry: &Shape{MinLen: 8, decode: func(r *fieldReader) []Field {
			v := r.signed(1, 48)
			rot := float64(v) / CountsPerRev
			return []Field{
				value(v, itoa(v)),
				named("Rotations", rot, toFixed(rot, 3)),
			}
		}}},
		{Cmd: CmdReadSpeed, Name: "SPEED", Telemetry: &Shape{MinLen: 4, decode: func(r *fieldReader) []Field {
			v := r.signed(1, 16)
			text := itoa(v) + " RPM"
			switch {
			case v > 0:
				text += " (CCW)"
			case v < 0:
				text += " (CW)"
			}
			return []Field{value(v, text)}
		}}},
		{Cmd: CmdReadPulses, Name: "PULSE COUNT", Telemetry: &Shape{MinLen: 6, decode: func(r *fieldReader) []Field {
			v := r.signed(1, 32)
			return []Field{value(v, itoa(v))}
		}}},
		{Cmd: CmdReadIO, Name: "IO STATUS", Telemetry: &Shape{MinLen: 3, decode: func(r *fieldReader) []Field {
			s := r.u8(1)
			in1, in2, out1, out2 := bit(s, ioIn1), bit(s, ioIn2), bit(s, ioOut1), bit(s, ioOut2)
			in1.Name, in2.Name, out1.Name, out2.Name = "IN_1", "IN_2", "OUT_1", "OUT_2"
			return []Field{in1, in2, out1, out2}
		}}},
		{Cmd: CmdReadRawEncoder, Name: "RAW ENCODER", Telemetry: &Shape{MinLen: 8, decode: func(r *fieldReader) []Field {
			v := r.signed(1, 48)
			return []Field{value(v, itoa(v))}
		}}},
		{Cmd: CmdReadAngleError, Name: "ANGLE ERROR", Telemetry: &Shape{MinLen: 6, decode: func(r *fieldReader) []Field {
			v := r.signed(1, 32)
			deg := float64(v) * 360.0 / ErrorCountsPerRev
			return []Field{value(v, fmt.Sprintf("%d (%s°)", v, toFixed(deg, 2)))}
		}}},
		{Cmd: CmdReadEnable, Name: "ENABLE STATUS", Telemetry: &Shape{MinLen: 3, decode: byteFlag("ENABLED", "DISABLED")}},
		{Cmd: CmdReadHome, Name: "HOME STATUS", Telemetry: &Shape{MinLen: 4, decode: func(r *fieldReader) []Field {
			single, home := r.u8(1), r.u8(2)
			return []Field{
				named("Single Turn", single, r.lookup(homeStatusLabels, single)),
				named("Home", home, r.lookup(homeStatusLabels, home)),
			}
		}}},
		{Cmd: CmdReadStall, Name: "STALL STATUS", Telemetry: &Shape{MinLen: 3, decode: byteFlag("STALLED", "OK")}},
		{Cmd: CmdReadVersion, Name: "VERSION", Telemetry: &Shape{MinLen: 5, decode: func(r *fieldReader) []Field {
			b := r.u8(1)
			cal := b >> 4 & 0x0F
			hw := b & 0x0F
			fw := r.unsigned(2, 24)
			return []Field{
				named("HW", hw, r.lookup(hwRevisionLabels, hw)),
				named("FW", fw, fmt.Sprintf("0x%x", fw)),
				named("Calibrated", cal != 0, either(cal != 0, "YES", "NO")),
			}
		}}},
		{Cmd: CmdCalibrate, Name: "CALIBRATION", Telemetry: &Shape{MinLen: 3, decode: byteStatus(calibrationLabels)}},
		{Cmd: CmdSetMode, Name: "SET MODE", Telemetry: &Shape{MinLen: 3, decode: byteStatus(workModeLabels)}},
		{Cmd: CmdSetCurrent, Name: "SET CURRENT", Telemetry: &Shape{MinLen: 4, decode: func(r *fieldReader) []Field {
			ma := r.unsigned(1, 16)
			text := fmt.Sprintf("%d mA", ma)
			if r.size() >= 5 && r.u8(3) == 0 {
				text += " (not saved)"
			}
			return []Field{value(ma, text)}
		}}},
		{Cmd: CmdSetSubdivision, Name: "SET SUBDIVISIONS", Telemetry: &Shape{MinLen: 3, decode: func(r *fieldReader) []Field {
			v := r.u8(1)
			return []Field{value(v, strconv.Itoa(v))}
		}}},
		{Cmd: CmdSetEnLevel, Name: "SET EN LEVEL", Telemetry: &Shape{MinLen: 3, decode: byteStatus(enLevelLabels)}},
		{Cmd: CmdSetDirection, Name: "SET DIRECTION", Telemetry: &Shape{MinLen: 3, decode: byteFlag("CCW", "CW")}},
		{Cmd: CmdSetCanID, Name: "SET CAN ID", Telemetry: &Shape{MinLen: 4, decode: func(r *fieldReader) []Field {
			id := r.unsigned(1, 16)
			return []Field{value(id, fmt.Sprintf("0x%X", id))}
		}}},
		{Cmd: CmdMotorStatus, Name: "MOTOR STATUS", Telemetry: &Shape{MinLen: 3, decode: byteStatus(motorStatusLabels)}},
		{Cmd: CmdSetEnable, Name: "SET ENABLE", Telemetry: &Shape{MinLen: 3, decode: byteFlag("ENABLED", "DISABLED")}},
		{Cmd: CmdPosRelCoord, Name: "POS REL COORD", Telemetry: coordShape(), Response: responseShape(moveResponseLabels)},
		{Cmd: CmdPosAbsCoord, Name: "POS ABS COORD", Telemetry: coordShape(), Response: responseShape(moveResponseLabels)},
		{Cmd: CmdSpeedMode, Name: "SPEED MODE", Telemetry: &Shape{MinLen: 5, decode: func(r *fieldReader) []Field {
			word := r.unsigned(1, 16)
			speed := word & speedMask
			acc := r.u8(3)
			out := []Field{
				named("Dir", direction(word), direction(word)),
				named("Speed", speed, fmt.Sprintf("%d RPM", speed)),
				named("Acc", acc, strconv.Itoa(acc)),
			}
			if r.size() >= 8 {
				ms := r.unsigned(4, 24) * 10
				out = append(out, named("Runtime", ms, fmt.Sprintf("%d ms", ms)))
			}
			return out
		}}, Response: responseShape(speedResponseLabels)},
		{Cmd: CmdEmergencyStop, Name: "EMERGENCY STOP", Telemetry: &Shape{MinLen: 3, decode: byteFlag("Success", "Failed")}},
		{Cmd: CmdPosRelPulse, Name: "POS REL PULSE", Telemetry: &Shape{MinLen: 8, decode: func(r *fieldReader) []Field {
			word := r.unsigned(1, 16)
			speed := word & speedMask
			acc := r.u8(3)
			pulses := r.unsigned(4, 24)
			return []Field{
				named("Dir", direction(word), direction(word)),
				named("Speed", speed, fmt.Sprintf("%d RPM", speed)),
				named("Acc", acc, strconv.Itoa(acc)),
				named("Pulses", pulses, strconv.FormatUint(pulses, 10)),
			}
		}}, Response: responseShape(moveResponseLabels)},
		{Cmd: CmdPosAbsPulse, Name: "POS ABS PULSE", Telemetry: &Shape{MinLen: 8, decode: func(r *fieldReader) []Field {
			speed := r.unsigned(1, 16)
			acc := r.u8(3)
			pulses := r.signed(4, 24)
			return []Field{
				named("Speed", speed, fmt.Sprintf("%d RPM", speed)),
				named("Acc", acc, strconv.Itoa(acc)),
				named("Pulses", pulses, itoa(pulses)),
			}
		}}, Response: responseShape(moveResponseLabels)},
	}
}
