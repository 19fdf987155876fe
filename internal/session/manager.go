package session

import (
	"sort"
	"sync"
	"time"

	"github.com/taoyao-code/mks-gateway/internal/protocol/mks"
)

const (
	DefaultMaxMotors  = 16
	DefaultStaleAfter = time.Second
)

// Motor 单台电机的最近状态
type Motor struct {
	Address  int       `json:"address"`
	LastSeen time.Time `json:"last_seen"`
	LastCmd  uint8     `json:"last_cmd"`
	LastName string    `json:"last_name"`
	LastLine string    `json:"last_line"`
	// Angle 最近一次 ENCODER 遥测角度（度）
	Angle *float64 `json:"angle,omitempty"`
	// Position 最近一次 0x30 短帧（4~7 字节）上报的 24 位脉冲位置
	Position *int32 `json:"position,omitempty"`
	Frames   uint64 `json:"frames"`
	Online   bool   `json:"online"`
}

// Manager 电机在线跟踪：按地址记录最近一帧，总数受 maxMotors 限制
type Manager struct {
	mu         sync.RWMutex
	motors     map[int]*Motor
	maxMotors  int
	staleAfter time.Duration
}

func New(maxMotors int, staleAfter time.Duration) *Manager {
	if maxMotors <= 0 {
		maxMotors = DefaultMaxMotors
	}
	if staleAfter <= 0 {
		staleAfter = DefaultStaleAfter
	}
	return &Manager{motors: make(map[int]*Motor), maxMotors: maxMotors, staleAfter: staleAfter}
}

// Observe 记录已解码帧；表满且为新地址时返回 false
func (m *Manager) Observe(msg *mks.Message, line string, t time.Time) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	mo, ok := m.motors[msg.Address]
	if !ok {
		if len(m.motors) >= m.maxMotors {
			return false
		}
		mo = &Motor{Address: msg.Address}
		m.motors[msg.Address] = mo
	}
	mo.LastSeen = t
	mo.LastCmd = msg.Cmd
	mo.LastName = msg.Label()
	mo.LastLine = line
	mo.Frames++
	if msg.Cmd == mks.CmdReadEncoder {
		if f, ok := msg.Field("Angle"); ok {
			if a, ok := f.Value.(float64); ok {
				mo.Angle = &a
			}
		} else if n := len(msg.Raw); n >= 4 && n < 8 {
			if p, err := mks.ParsePositionResponse(msg.Raw); err == nil {
				mo.Position = &p
			}
		}
	}
	return true
}

// Get 返回地址对应的状态副本
func (m *Manager) Get(addr int, now time.Time) (Motor, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	mo, ok := m.motors[addr]
	if !ok {
		return Motor{}, false
	}
	return m.copyOf(mo, now), true
}

// IsOnline 判断电机是否在 staleAfter 内有帧
func (m *Manager) IsOnline(addr int, now time.Time) bool {
	m.mu.RLock()
	mo, ok := m.motors[addr]
	m.mu.RUnlock()
	if !ok {
		return false
	}
	return now.Sub(mo.LastSeen) <= m.staleAfter
}

// OnlineCount 返回当前在线电机数量
func (m *Manager) OnlineCount(now time.Time) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	count := 0
	for _, mo := range m.motors {
		if now.Sub(mo.LastSeen) <= m.staleAfter {
			count++
		}
	}
	return count
}

// Snapshot 按地址升序返回全部电机
func (m *Manager) Snapshot(now time.Time) []Motor {
	m.mu.RLock()
	out := make([]Motor, 0, len(m.motors))
	for _, mo := range m.motors {
		out = append(out, m.copyOf(mo, now))
	}
	m.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].Address < out[j].Address })
	return out
}

// Capacity 跟踪上限
func (m *Manager) Capacity() int { return m.maxMotors }

func (m *Manager) copyOf(mo *Motor, now time.Time) Motor {
	c := *mo
	if mo.Angle != nil {
		a := *mo.Angle
		c.Angle = &a
	}
	if mo.Position != nil {
		p := *mo.Position
		c.Position = &p
	}
	c.Online = now.Sub(mo.LastSeen) <= m.staleAfter
	return c
}
