package canbus

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"go.uber.org/zap"
)

// Replay 回放 candump 日志（文件或任意 io.Reader）
// Realtime 为 true 时按时间戳间隔投递
type Replay struct {
	Path     string
	Realtime bool
	// Reader 非空时优先于 Path
	Reader io.Reader
	Logger *zap.Logger

	onReady func()
}

func (r *Replay) Name() string { return "replay" }

// SetOnReady 输入打开后回调
func (r *Replay) SetOnReady(fn func()) { r.onReady = fn }

// Run 逐行投递；格式错误的行记录后跳过
func (r *Replay) Run(ctx context.Context, h Handler) error {
	in := r.Reader
	if in == nil {
		f, err := os.Open(r.Path)
		if err != nil {
			return fmt.Errorf("open replay: %w", err)
		}
		defer f.Close()
		in = f
	}
	log := r.Logger
	if log == nil {
		log = zap.NewNop()
	}

	if r.onReady != nil {
		r.onReady()
	}

	s := bufio.NewScanner(in)
	var last time.Time
	lineNo := 0
	for s.Scan() {
		lineNo++
		f, ok, err := ParseLine(s.Text())
		if err != nil {
			log.Warn("replay: skip line", zap.Int("line", lineNo), zap.Error(err))
			continue
		}
		if !ok {
			continue
		}
		if r.Realtime && !f.At.IsZero() {
			if !last.IsZero() && f.At.After(last) {
				select {
				case <-ctx.Done():
					return ctx.Err()
				case <-time.After(f.At.Sub(last)):
				}
			}
			last = f.At
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		h(f)
	}
	if err := s.Err(); err != nil {
		return fmt.Errorf("read replay: %w", err)
	}
	log.Info("replay finished", zap.Int("lines", lineNo))
	return nil
}
