package mks

import (
	"errors"
	"fmt"
)

// ErrLabelIndex 状态码超出标签表范围
var ErrLabelIndex = errors.New("label index out of range")

// Labels 按位置索引的只读状态标签表
type Labels []string

// Lookup 返回 v 对应的标签；越界时返回 "Unknown(v)" 与 ErrLabelIndex
func (l Labels) Lookup(v int) (string, error) {
	if v < 0 || v >= len(l) {
		return fmt.Sprintf("Unknown(%d)", v), fmt.Errorf("%w: %d of %d", ErrLabelIndex, v, len(l))
	}
	return l[v], nil
}

var (
	homeStatusLabels  = Labels{"In Progress", "Success", "Failed"}
	calibrationLabels = Labels{"Calibrating...", "Success", "Failed"}
	workModeLabels    = Labels{"CR_OPEN", "CR_CLOSE", "CR_vFOC", "SR_OPEN", "SR_CLOSE", "SR_vFOC"}
	enLevelLabels     = Labels{"Active Low", "Active High", "Always Active"}
	motorStatusLabels = Labels{"Failed", "Stopped", "Accel", "Decel", "Full Speed", "Homing", "Calibrating"}

	hwRevisionLabels = Labels{
		"?", "S42D_485", "S42D_CAN", "S57D_485", "S57D_CAN",
		"S28D_485", "S28D_CAN", "S35D_485", "S35D_CAN",
	}

	// 位置模式（0xF4/0xF5/0xFD/0xFE）应答
	moveResponseLabels = Labels{"FAILED", "STARTING", "COMPLETE", "LIMIT STOPPED", "?", "SYNC RECEIVED"}
	// 速度模式（0xF6）应答：第 3、4 位含义未确认，保留占位
	speedResponseLabels = Labels{"FAILED", "STARTING", "COMPLETE", "?", "?", "SYNC RECEIVED"}
)
