package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/taoyao-code/mks-gateway/internal/app/bootstrap"
	cfgpkg "github.com/taoyao-code/mks-gateway/internal/config"
	"github.com/taoyao-code/mks-gateway/internal/logging"

	"go.uber.org/zap"
)

func main() {
	// 1) 加载配置（MKS_CONFIG 指定路径）
	cfg, err := cfgpkg.Load("")
	if err != nil {
		panic(err)
	}

	// 2) 初始化日志（stderr，stdout 只输出解码行）
	logger, err := logging.InitLogger(cfg.Logging)
	if err != nil {
		panic(err)
	}
	defer func() { _ = logger.Sync() }()
	zap.ReplaceGlobals(logger)
	log := zap.L()

	// 3) 信号处理，优雅关闭
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := bootstrap.Run(ctx, cfg, log, os.Stdout); err != nil {
		log.Error("gateway exited", zap.Error(err))
		_ = logger.Sync()
		os.Exit(1)
	}
}
