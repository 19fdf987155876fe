package app

import (
	"github.com/taoyao-code/mks-gateway/internal/canbus"
	cfgpkg "github.com/taoyao-code/mks-gateway/internal/config"
	"go.uber.org/zap"
)

// NewSources 按配置构造 CAN 帧来源（TCP 网关单独创建）
func NewSources(cfg cfgpkg.SourcesConfig, filter canbus.Filter, logger *zap.Logger) []canbus.Source {
	var out []canbus.Source
	if cfg.SocketCAN.Enable {
		out = append(out, &canbus.SocketCAN{Iface: cfg.SocketCAN.Iface, Filter: filter, Logger: logger})
	}
	if cfg.Replay.Enable {
		out = append(out, &canbus.Replay{Path: cfg.Replay.Path, Realtime: cfg.Replay.Realtime, Logger: logger})
	}
	return out
}

// BusFilter 由配置构造总线过滤
func BusFilter(cfg cfgpkg.BusConfig) canbus.Filter {
	return canbus.Filter{Bus: cfg.Bus, ID: cfg.FilterID, Mask: cfg.FilterMask}
}
