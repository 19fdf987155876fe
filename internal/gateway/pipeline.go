package gateway

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/taoyao-code/mks-gateway/internal/canbus"
	"github.com/taoyao-code/mks-gateway/internal/metrics"
	"github.com/taoyao-code/mks-gateway/internal/protocol/mks"
	"github.com/taoyao-code/mks-gateway/internal/sink"
)

// 过滤原因（metrics label）
const (
	reasonBusFilter = "bus_filter"
	reasonAddress   = "address"
	reasonLength    = "length"
	reasonRemote    = "remote"
)

// Observer 接收解码后的帧（电机在线跟踪）
type Observer interface {
	Observe(msg *mks.Message, line string, t time.Time) bool
}

// Options 管线配置
type Options struct {
	Filter         canbus.Filter
	VerifyChecksum bool
	QueueSize      int
}

type item struct {
	source string
	frame  canbus.Frame
}

// Pipeline 所有来源的帧经同一通道按到达顺序解码并输出
type Pipeline struct {
	opts    Options
	dec     *mks.Decoder
	obs     Observer
	out     sink.Sink
	metrics *metrics.AppMetrics
	log     *zap.Logger

	queue     chan item
	processed atomic.Uint64
	emitted   atomic.Uint64
	lastFrame atomic.Int64
}

// New 创建管线；dec 为 nil 时使用内置命令表，obs/m 可为 nil
func New(opts Options, dec *mks.Decoder, obs Observer, out sink.Sink, m *metrics.AppMetrics, log *zap.Logger) *Pipeline {
	if dec == nil {
		dec = mks.NewDecoder(nil)
	}
	if log == nil {
		log = zap.NewNop()
	}
	if opts.QueueSize <= 0 {
		opts.QueueSize = 1024
	}
	return &Pipeline{
		opts:    opts,
		dec:     dec,
		obs:     obs,
		out:     out,
		metrics: m,
		log:     log,
		queue:   make(chan item, opts.QueueSize),
	}
}

// Handler 返回供 canbus.Source 使用的回调；队列满时阻塞直至 ctx 结束。
// ctx 结束后到达的帧一律丢弃并计数；Run 的 ctx 应在所有来源返回后再取消
func (p *Pipeline) Handler(ctx context.Context, source string) canbus.Handler {
	return func(f canbus.Frame) {
		if p.metrics != nil {
			p.metrics.FramesReceived.WithLabelValues(source).Inc()
		}
		if ctx.Err() != nil {
			p.dropped()
			return
		}
		select {
		case p.queue <- item{source: source, frame: f}:
		case <-ctx.Done():
			p.dropped()
		}
	}
}

func (p *Pipeline) dropped() {
	if p.metrics != nil {
		p.metrics.QueueDropped.Inc()
	}
}

// Run 单消费者循环，直至 ctx 结束；结束前排空已入队的帧
func (p *Pipeline) Run(ctx context.Context) error {
	for {
		select {
		case it := <-p.queue:
			p.Process(ctx, it.source, it.frame)
		case <-ctx.Done():
			for {
				select {
				case it := <-p.queue:
					p.Process(context.Background(), it.source, it.frame)
				default:
					return ctx.Err()
				}
			}
		}
	}
}

// Process 处理单帧：过滤、解码、跟踪、输出。返回是否产生显示行
func (p *Pipeline) Process(ctx context.Context, source string, f canbus.Frame) bool {
	p.processed.Add(1)
	p.lastFrame.Store(time.Now().UnixNano())

	if !p.opts.Filter.Match(f) {
		p.filtered(reasonBusFilter)
		return false
	}
	if f.RTR {
		p.filtered(reasonRemote)
		return false
	}
	data := f.Payload()
	if len(data) < mks.MinFrameLen {
		p.filtered(reasonLength)
		return false
	}
	addr := int(f.ID)
	if f.Extended || addr < mks.MinAddress || addr > mks.MaxAddress {
		p.filtered(reasonAddress)
		return false
	}

	msg, ok := p.dec.Decode(addr, data[0], data)
	if !ok {
		p.filtered(reasonLength)
		return false
	}
	line := msg.String()
	at := f.At
	if at.IsZero() {
		at = time.Now()
	}

	if p.metrics != nil {
		p.metrics.FramesDecoded.WithLabelValues(fmt.Sprintf("0x%02X", msg.Cmd), msg.Variant.String()).Inc()
	}
	if msg.Err != nil {
		p.log.Debug("frame has unknown enum values", zap.Int("addr", addr), zap.Uint8("cmd", msg.Cmd), zap.Error(msg.Err))
		if p.metrics != nil {
			p.metrics.LabelErrors.Inc()
		}
	}
	if p.opts.VerifyChecksum {
		if err := mks.VerifyChecksum(uint16(f.ID), data); err != nil {
			p.log.Debug("checksum mismatch", zap.String("source", source), zap.Int("addr", addr), zap.Error(err))
			if p.metrics != nil {
				p.metrics.ChecksumMismatch.Inc()
			}
		}
	}
	if p.obs != nil && !p.obs.Observe(msg, line, at) {
		p.log.Debug("motor table full", zap.Int("addr", addr))
	}

	if p.out != nil {
		if err := p.out.Emit(ctx, sink.Event{Line: line, Msg: msg, Bus: f.Bus, At: at}); err != nil {
			p.log.Warn("emit failed", zap.Error(err))
		}
	}
	p.emitted.Add(1)
	return true
}

func (p *Pipeline) filtered(reason string) {
	if p.metrics != nil {
		p.metrics.FramesFiltered.WithLabelValues(reason).Inc()
	}
}

// Stats 管线计数
type Stats struct {
	Processed uint64    `json:"processed"`
	Emitted   uint64    `json:"emitted"`
	Queued    int       `json:"queued"`
	LastFrame time.Time `json:"last_frame,omitempty"`
}

func (p *Pipeline) Stats() Stats {
	st := Stats{Processed: p.processed.Load(), Emitted: p.emitted.Load(), Queued: len(p.queue)}
	if ns := p.lastFrame.Load(); ns > 0 {
		st.LastFrame = time.Unix(0, ns)
	}
	return st
}
