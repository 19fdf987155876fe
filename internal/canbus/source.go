package canbus

import "context"

// Handler 帧回调（onFrame）
type Handler func(Frame)

// Source 帧来源：阻塞运行直至 ctx 结束或来源耗尽
type Source interface {
	Name() string
	Run(ctx context.Context, h Handler) error
}

// ReadyNotifier 来源完成启动（监听建立、套接字绑定、文件打开）后回调 fn
type ReadyNotifier interface {
	SetOnReady(fn func())
}
