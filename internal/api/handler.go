package api

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/taoyao-code/mks-gateway/internal/canbus"
	"github.com/taoyao-code/mks-gateway/internal/protocol/mks"
	"github.com/taoyao-code/mks-gateway/internal/session"
)

// MotorReader 电机状态查询
type MotorReader interface {
	Get(addr int, now time.Time) (session.Motor, bool)
	Snapshot(now time.Time) []session.Motor
	OnlineCount(now time.Time) int
}

// MotorMirror 其他网关实例同步到 Redis 的电机状态
type MotorMirror interface {
	Load(ctx context.Context, addr int) (session.Motor, string, bool, error)
	OnlineAddresses(ctx context.Context) ([]int, error)
}

// Handler 解码/编码与电机状态 API
type Handler struct {
	dec    *mks.Decoder
	motors MotorReader
	mirror MotorMirror
	logger *zap.Logger
}

func NewHandler(dec *mks.Decoder, motors MotorReader, logger *zap.Logger) *Handler {
	if dec == nil {
		dec = mks.NewDecoder(nil)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{dec: dec, motors: motors, logger: logger}
}

// SetMirror 本地未见的电机回退到 Redis 镜像查询
func (h *Handler) SetMirror(m MotorMirror) { h.mirror = m }

// DecodeRequest 二选一：address+data（十六进制）或 candump 行
type DecodeRequest struct {
	Address int    `json:"address"`
	Data    string `json:"data"`
	Line    string `json:"line"`
}

// DecodeResponse 解码结果
type DecodeResponse struct {
	Line    string       `json:"line"`
	Message *mks.Message `json:"message"`
	Warning string       `json:"warning,omitempty"`
}

var errNoInput = errors.New("either line or address+data is required")

func (r DecodeRequest) payload() (int, []byte, error) {
	if r.Line != "" {
		f, ok, err := canbus.ParseLine(r.Line)
		if err != nil {
			return 0, nil, err
		}
		if !ok {
			return 0, nil, errNoInput
		}
		return int(f.ID), f.Payload(), nil
	}
	if r.Data == "" {
		return 0, nil, errNoInput
	}
	b, err := hex.DecodeString(strings.ReplaceAll(r.Data, " ", ""))
	if err != nil {
		return 0, nil, fmt.Errorf("bad hex data: %w", err)
	}
	return r.Address, b, nil
}

// Decode POST /api/v1/decode
func (h *Handler) Decode(c *gin.Context) {
	var req DecodeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	addr, data, err := req.payload()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if len(data) == 0 {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "frame not decoded", "reason": "length"})
		return
	}
	msg, ok := h.dec.Decode(addr, data[0], data)
	if !ok {
		reason := "length"
		if addr < mks.MinAddress || addr > mks.MaxAddress {
			reason = "address"
		}
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "frame not decoded", "reason": reason})
		return
	}
	resp := DecodeResponse{Line: msg.String(), Message: msg}
	if msg.Err != nil {
		resp.Warning = msg.Err.Error()
	}
	c.JSON(http.StatusOK, resp)
}

// CommandInfo 命令表条目
type CommandInfo struct {
	Cmd          string `json:"cmd"`
	Name         string `json:"name"`
	TelemetryMin int    `json:"telemetry_min,omitempty"`
	ResponseMin  int    `json:"response_min,omitempty"`
}

// ListCommands GET /api/v1/commands
func (h *Handler) ListCommands(c *gin.Context) {
	t := h.dec.Table()
	cmds := t.Commands()
	out := make([]CommandInfo, 0, len(cmds))
	for _, cmd := range cmds {
		r, _ := t.Lookup(cmd)
		info := CommandInfo{Cmd: fmt.Sprintf("0x%02X", cmd), Name: r.Name}
		if r.Telemetry != nil {
			info.TelemetryMin = r.Telemetry.MinLen
		}
		if r.Response != nil {
			info.ResponseMin = r.Response.MinLen
		}
		out = append(out, info)
	}
	c.JSON(http.StatusOK, gin.H{"commands": out})
}

// ListMotors GET /api/v1/motors
func (h *Handler) ListMotors(c *gin.Context) {
	now := time.Now()
	resp := gin.H{
		"online": h.motors.OnlineCount(now),
		"motors": h.motors.Snapshot(now),
	}
	if h.mirror != nil {
		addrs, err := h.mirror.OnlineAddresses(c.Request.Context())
		if err != nil {
			h.logger.Warn("list mirrored motors failed", zap.Error(err))
		} else {
			resp["mirrored"] = addrs
		}
	}
	c.JSON(http.StatusOK, resp)
}

// GetMotor GET /api/v1/motors/:addr （十进制或 0x 前缀十六进制）
func (h *Handler) GetMotor(c *gin.Context) {
	addr, err := strconv.ParseInt(c.Param("addr"), 0, 32)
	if err != nil || addr < mks.MinAddress || addr > mks.MaxAddress {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid motor address"})
		return
	}
	if m, ok := h.motors.Get(int(addr), time.Now()); ok {
		c.JSON(http.StatusOK, m)
		return
	}
	if h.mirror != nil {
		m, serverID, ok, err := h.mirror.Load(c.Request.Context(), int(addr))
		if err != nil {
			h.logger.Warn("load mirrored motor failed", zap.Int64("addr", addr), zap.Error(err))
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "motor mirror unavailable"})
			return
		}
		if ok {
			c.JSON(http.StatusOK, gin.H{"motor": m, "server_id": serverID})
			return
		}
	}
	c.JSON(http.StatusNotFound, gin.H{"error": "motor not seen"})
}

// PositionRequest 0xF5 绝对位置命令
type PositionRequest struct {
	CanID    uint16 `json:"can_id" binding:"required"`
	Speed    uint16 `json:"speed"`
	Accel    uint8  `json:"accel"`
	Position int32  `json:"position"`
}

// SpeedRequest 0xF6 速度模式命令
type SpeedRequest struct {
	CanID   uint16 `json:"can_id" binding:"required"`
	Speed   uint16 `json:"speed"`
	Accel   uint8  `json:"accel"`
	Reverse bool   `json:"reverse"`
}

// EncodePosition POST /api/v1/encode/position
func (h *Handler) EncodePosition(c *gin.Context) {
	var req PositionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	b, err := mks.PackPosition(req.CanID, req.Speed, req.Accel, req.Position)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	h.encoded(c, req.CanID, b[:])
}

// EncodeSpeed POST /api/v1/encode/speed
func (h *Handler) EncodeSpeed(c *gin.Context) {
	var req SpeedRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	b, err := mks.PackSpeed(req.CanID, req.Speed, req.Accel, req.Reverse)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	h.encoded(c, req.CanID, b[:])
}

func (h *Handler) encoded(c *gin.Context, id uint16, data []byte) {
	f := canbus.Frame{ID: uint32(id), Len: len(data), Data: data}
	h.logger.Debug("command encoded", zap.Uint16("can_id", id), zap.String("data", hex.EncodeToString(data)))
	c.JSON(http.StatusOK, gin.H{
		"can_id":  id,
		"data":    strings.ToUpper(hex.EncodeToString(data)),
		"candump": canbus.FormatLine("can0", f),
	})
}
