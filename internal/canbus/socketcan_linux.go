//go:build linux

package canbus

import (
	"context"
	"errors"
	"fmt"
	"net"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sys/unix"
)

// SocketCAN 原生 CAN_RAW 套接字来源
type SocketCAN struct {
	Iface  string
	Filter Filter
	Logger *zap.Logger

	onReady func()
}

func (s *SocketCAN) Name() string { return "socketcan:" + s.Iface }

// SetOnReady 套接字绑定成功后回调
func (s *SocketCAN) SetOnReady(fn func()) { s.onReady = fn }

// Run 打开 CAN_RAW 套接字并读取 can_frame；过滤下发到内核
func (s *SocketCAN) Run(ctx context.Context, h Handler) error {
	log := s.Logger
	if log == nil {
		log = zap.NewNop()
	}
	ifi, err := net.InterfaceByName(s.Iface)
	if err != nil {
		return fmt.Errorf("socketcan %s: %w", s.Iface, err)
	}
	fd, err := unix.Socket(unix.AF_CAN, unix.SOCK_RAW, unix.CAN_RAW)
	if err != nil {
		return fmt.Errorf("socketcan socket: %w", err)
	}
	defer unix.Close(fd)

	if s.Filter.Mask != 0 {
		flt := []unix.CanFilter{{Id: s.Filter.ID, Mask: s.Filter.Mask}}
		if err := unix.SetsockoptCanRawFilter(fd, unix.SOL_CAN_RAW, unix.CAN_RAW_FILTER, flt); err != nil {
			return fmt.Errorf("socketcan filter: %w", err)
		}
	}
	// 读超时用于检查 ctx
	tv := unix.NsecToTimeval((500 * time.Millisecond).Nanoseconds())
	if err := unix.SetsockoptTimeval(fd, unix.SOL_SOCKET, unix.SO_RCVTIMEO, &tv); err != nil {
		return fmt.Errorf("socketcan timeout: %w", err)
	}
	if err := unix.Bind(fd, &unix.SockaddrCAN{Ifindex: ifi.Index}); err != nil {
		return fmt.Errorf("socketcan bind %s: %w", s.Iface, err)
	}
	log.Info("socketcan opened", zap.String("iface", s.Iface), zap.Int("ifindex", ifi.Index))
	if s.onReady != nil {
		s.onReady()
	}

	bus := BusIndex(s.Iface)
	buf := make([]byte, wireFrameLen)
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		n, err := unix.Read(fd, buf)
		if err != nil {
			if errors.Is(err, unix.EAGAIN) || errors.Is(err, unix.EINTR) {
				continue
			}
			return fmt.Errorf("socketcan read: %w", err)
		}
		var f Frame
		if err := f.UnmarshalBinary(buf[:n]); err != nil {
			log.Debug("socketcan: drop frame", zap.Error(err))
			continue
		}
		f.Bus = bus
		f.At = time.Now()
		h(f)
	}
}
