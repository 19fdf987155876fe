package session

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/taoyao-code/mks-gateway/internal/protocol/mks"
)

func decode(t *testing.T, addr int, data ...byte) (*mks.Message, string) {
	t.Helper()
	m, ok := mks.NewDecoder(nil).Decode(addr, data[0], data)
	require.True(t, ok)
	return m, m.String()
}

func TestManager_ObserveAndOnline(t *testing.T) {
	mgr := New(4, time.Second)
	now := time.Now()

	msg, line := decode(t, 1, 0x30, 0, 0, 0, 0, 0x40, 0, 0xAA)
	require.True(t, mgr.Observe(msg, line, now))

	assert.True(t, mgr.IsOnline(1, now.Add(500*time.Millisecond)))
	assert.False(t, mgr.IsOnline(1, now.Add(2*time.Second)))
	assert.False(t, mgr.IsOnline(2, now))
	assert.Equal(t, 1, mgr.OnlineCount(now))
	assert.Equal(t, 0, mgr.OnlineCount(now.Add(2*time.Second)))

	mo, ok := mgr.Get(1, now)
	require.True(t, ok)
	assert.Equal(t, "ENCODER", mo.LastName)
	assert.Equal(t, line, mo.LastLine)
	require.NotNil(t, mo.Angle)
	assert.InDelta(t, 360.0, *mo.Angle, 1e-9)
	assert.True(t, mo.Online)
}

func TestManager_AngleKeptAcrossOtherCommands(t *testing.T) {
	mgr := New(4, time.Second)
	now := time.Now()
	msg, line := decode(t, 1, 0x30, 0, 0, 0, 0, 0x20, 0, 0xAA)
	mgr.Observe(msg, line, now)
	msg, line = decode(t, 1, 0xF4, 0x00, 0x00)
	mgr.Observe(msg, line, now)

	mo, _ := mgr.Get(1, now)
	assert.Equal(t, "POS REL COORD Response", mo.LastName)
	require.NotNil(t, mo.Angle)
	assert.InDelta(t, 180.0, *mo.Angle, 1e-9)
	assert.Equal(t, uint64(2), mo.Frames)
}

func TestManager_Capacity(t *testing.T) {
	mgr := New(2, time.Second)
	now := time.Now()
	for addr := 1; addr <= 2; addr++ {
		msg, line := decode(t, addr, 0x3A, 0x01, 0x00)
		require.True(t, mgr.Observe(msg, line, now))
	}
	msg, line := decode(t, 3, 0x3A, 0x01, 0x00)
	assert.False(t, mgr.Observe(msg, line, now))

	// 已跟踪的地址仍可更新
	msg, line = decode(t, 2, 0x3A, 0x00, 0x00)
	assert.True(t, mgr.Observe(msg, line, now))
	assert.Equal(t, 2, mgr.Capacity())
}

func TestManager_SnapshotSortedAndCopied(t *testing.T) {
	mgr := New(0, 0)
	now := time.Now()
	for _, addr := range []int{9, 3, 5} {
		msg, line := decode(t, addr, 0x30, 0, 0, 0, 0, 0x40, 0, 0xAA)
		mgr.Observe(msg, line, now)
	}
	snap := mgr.Snapshot(now)
	require.Len(t, snap, 3)
	assert.Equal(t, []int{3, 5, 9}, []int{snap[0].Address, snap[1].Address, snap[2].Address})

	*snap[0].Angle = 1
	mo, _ := mgr.Get(3, now)
	assert.InDelta(t, 360.0, *mo.Angle, 1e-9)
	assert.Equal(t, DefaultMaxMotors, mgr.Capacity())
}

func TestManager_ShortEncoderPosition(t *testing.T) {
	mgr := New(4, time.Second)
	now := time.Now()

	// 0x30 短帧：bytes 1-3 为 24 位有符号脉冲
	msg, line := decode(t, 3, 0x30, 0xFF, 0xFC, 0x00, 0x2F)
	require.True(t, mgr.Observe(msg, line, now))

	mo, ok := mgr.Get(3, now)
	require.True(t, ok)
	require.NotNil(t, mo.Position)
	assert.Equal(t, int32(-1024), *mo.Position)
	assert.Nil(t, mo.Angle)

	msg, line = decode(t, 3, 0x30, 0x00, 0x10, 0x00, 0x00, 0x00, 0x11)
	require.True(t, mgr.Observe(msg, line, now))
	mo, _ = mgr.Get(3, now)
	assert.Equal(t, int32(4096), *mo.Position)

	// 完整遥测帧不覆盖短帧位置
	msg, line = decode(t, 3, 0x30, 0, 0, 0, 0, 0x40, 0, 0xAA)
	require.True(t, mgr.Observe(msg, line, now))
	mo, _ = mgr.Get(3, now)
	assert.Equal(t, int32(4096), *mo.Position)
	require.NotNil(t, mo.Angle)
}
