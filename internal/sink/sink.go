// Package sink 显示行输出：标准输出、日志、Redis 发布及组合
package sink

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/taoyao-code/mks-gateway/internal/protocol/mks"
)

// Sink 接收每一条解码结果；实现需可并发调用
type Sink interface {
	Emit(ctx context.Context, e Event) error
}

// Event 一条显示行及其上下文
type Event struct {
	Line string       `json:"line"`
	Msg  *mks.Message `json:"message,omitempty"`
	Bus  int          `json:"bus"`
	At   time.Time    `json:"ts"`
}

// Func 函数适配器
type Func func(ctx context.Context, e Event) error

func (f Func) Emit(ctx context.Context, e Event) error { return f(ctx, e) }

// Writer 每行写入 io.Writer（通常为 os.Stdout）
type Writer struct {
	mu sync.Mutex
	w  io.Writer
}

func NewWriter(w io.Writer) *Writer { return &Writer{w: w} }

func (s *Writer) Emit(_ context.Context, e Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := fmt.Fprintln(s.w, e.Line)
	return err
}

// Logger 以 info 级别记录显示行
type Logger struct {
	log *zap.Logger
}

func NewLogger(log *zap.Logger) *Logger { return &Logger{log: log} }

func (s *Logger) Emit(_ context.Context, e Event) error {
	fields := []zap.Field{zap.String("line", e.Line), zap.Int("bus", e.Bus)}
	if e.Msg != nil {
		fields = append(fields, zap.Int("addr", e.Msg.Address), zap.Uint8("cmd", e.Msg.Cmd))
	}
	s.log.Info("frame", fields...)
	return nil
}

// Named 带名称的子输出，用于错误归因
type Named struct {
	Name string
	Sink Sink
}

// Multi 依次写入全部子输出，单个失败不影响其余
type Multi struct {
	sinks   []Named
	onError func(name string, err error)
}

func NewMulti(onError func(name string, err error), sinks ...Named) *Multi {
	return &Multi{sinks: sinks, onError: onError}
}

func (m *Multi) Emit(ctx context.Context, e Event) error {
	var errs []error
	for _, s := range m.sinks {
		if err := s.Sink.Emit(ctx, e); err != nil {
			if m.onError != nil {
				m.onError(s.Name, err)
			}
			errs = append(errs, fmt.Errorf("%s: %w", s.Name, err))
		}
	}
	return errors.Join(errs...)
}

// Len 子输出数量
func (m *Multi) Len() int { return len(m.sinks) }
