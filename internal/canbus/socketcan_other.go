//go:build !linux

package canbus

import (
	"context"
	"errors"

	"go.uber.org/zap"
)

// ErrUnsupported 当前平台不支持 SocketCAN
var ErrUnsupported = errors.New("canbus: socketcan requires linux")

type SocketCAN struct {
	Iface  string
	Filter Filter
	Logger *zap.Logger

	onReady func()
}

func (s *SocketCAN) Name() string { return "socketcan:" + s.Iface }

// SetOnReady 套接字绑定成功后回调
func (s *SocketCAN) SetOnReady(fn func()) { s.onReady = fn }

func (s *SocketCAN) Run(ctx context.Context, h Handler) error { return ErrUnsupported }
