// mksdecode 离线解码 candump 日志，每帧输出一行
//
//	mksdecode [-id 0x001 -mask 0x7FF] [-bus 0] [-verify] [file...]
//
// 未给文件时读取 stdin
package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/spf13/pflag"
	"go.uber.org/zap"

	"github.com/taoyao-code/mks-gateway/internal/canbus"
	cfgpkg "github.com/taoyao-code/mks-gateway/internal/config"
	"github.com/taoyao-code/mks-gateway/internal/gateway"
	"github.com/taoyao-code/mks-gateway/internal/logging"
	"github.com/taoyao-code/mks-gateway/internal/sink"
)

func main() {
	var (
		id     = pflag.Uint32("id", 0, "filter id")
		mask   = pflag.Uint32("mask", 0, "filter mask, 0 accepts all")
		bus    = pflag.Int("bus", -1, "bus number, -1 for any")
		verify = pflag.Bool("verify", false, "log checksum mismatches")
		level  = pflag.String("log-level", "warn", "log level")
	)
	pflag.Parse()

	log, err := logging.InitLogger(cfgpkg.LoggingConfig{Level: *level, Format: "console"})
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
	defer func() { _ = log.Sync() }()

	p := gateway.New(gateway.Options{
		Filter:         canbus.Filter{ID: *id, Mask: *mask, Bus: *bus},
		VerifyChecksum: *verify,
	}, nil, nil, sink.NewWriter(os.Stdout), nil, log)

	if err := run(context.Background(), p, pflag.Args(), os.Stdin, log); err != nil {
		log.Error("decode failed", zap.Error(err))
		_ = log.Sync()
		os.Exit(1)
	}
}

// run 依次解码每个输入；逐帧同步处理，保证输出顺序与输入一致
func run(ctx context.Context, p *gateway.Pipeline, files []string, stdin io.Reader, log *zap.Logger) error {
	h := func(f canbus.Frame) { p.Process(ctx, "replay", f) }
	if len(files) == 0 {
		return (&canbus.Replay{Reader: stdin, Logger: log}).Run(ctx, h)
	}
	for _, path := range files {
		if err := (&canbus.Replay{Path: path, Logger: log}).Run(ctx, h); err != nil {
			return err
		}
	}
	return nil
}
