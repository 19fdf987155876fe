package tcpserver

import (
	"context"
	"errors"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/taoyao-code/mks-gateway/internal/canbus"
	cfgpkg "github.com/taoyao-code/mks-gateway/internal/config"
	"go.uber.org/zap"
)

// ErrClosed 服务已关闭
var ErrClosed = errors.New("tcpserver: closed")

// Server candump 文本 TCP 网关：每行一帧
type Server struct {
	cfg     cfgpkg.TCPConfig
	logger  *zap.Logger
	mu      sync.Mutex
	ln      net.Listener
	wg      sync.WaitGroup
	stopC   chan struct{}
	stopped atomic.Bool
	handler canbus.Handler

	limiter    *ConnectionLimiter
	rate       *RateLimiter
	nextConnID uint64

	// 可选指标回调
	onAccept    func()
	onRecvBytes func(n int)
	onReject    func(reason string)
	onBadLine   func()
	onReady     func()
}

// New 创建 TCP 网关
func New(cfg cfgpkg.TCPConfig, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Server{
		cfg:     cfg,
		logger:  logger,
		stopC:   make(chan struct{}),
		limiter: NewConnectionLimiter(cfg.MaxConnections, time.Second),
		rate:    NewRateLimiter(cfg.RatePerSec, cfg.Burst),
	}
}

// SetHandler 设置帧回调
func (s *Server) SetHandler(h canbus.Handler) { s.handler = h }

// SetMetricsCallbacks 设置指标回调
func (s *Server) SetMetricsCallbacks(onAccept func(), onRecvBytes func(int), onReject func(string), onBadLine func()) {
	s.onAccept, s.onRecvBytes, s.onReject, s.onBadLine = onAccept, onRecvBytes, onReject, onBadLine
}

// SetOnReady 监听建立后回调（Start 之前设置）
func (s *Server) SetOnReady(fn func()) { s.onReady = fn }

// Addr 实际监听地址（Start 之后有效）
func (s *Server) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ln == nil {
		return nil
	}
	return s.ln.Addr()
}

// Start 监听并接受连接（非阻塞，内部 goroutine）
func (s *Server) Start() error {
	if s.stopped.Load() {
		return ErrClosed
	}
	ln, err := net.Listen("tcp", s.cfg.Addr)
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.ln = ln
	s.mu.Unlock()
	s.logger.Info("tcp gateway listening", zap.String("addr", ln.Addr().String()),
		zap.Int("max_connections", s.limiter.MaxConnections()))
	if s.onReady != nil {
		s.onReady()
	}

	s.wg.Add(1)
	go s.acceptLoop(ln)
	return nil
}

func (s *Server) acceptLoop(ln net.Listener) {
	defer s.wg.Done()
	for {
		conn, err := ln.Accept()
		if err != nil {
			select {
			case <-s.stopC:
				return
			default:
			}
			// 短暂错误等待后重试
			time.Sleep(50 * time.Millisecond)
			continue
		}
		if !s.rate.Allow() {
			s.reject(conn, "rate")
			continue
		}
		if err := s.limiter.Acquire(context.Background()); err != nil {
			s.reject(conn, "limit")
			continue
		}
		if s.onAccept != nil {
			s.onAccept()
		}

		cc := newConnContext(s, conn)
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			defer s.limiter.Release()
			cc.run()
		}()
	}
}

func (s *Server) reject(c net.Conn, reason string) {
	s.logger.Warn("tcp connection rejected", zap.String("remote", c.RemoteAddr().String()), zap.String("reason", reason))
	if s.onReject != nil {
		s.onReject(reason)
	}
	_ = c.Close()
}

// Name 实现 canbus.Source
func (s *Server) Name() string { return "tcp" }

// Run 实现 canbus.Source：启动后阻塞至 ctx 结束，再优雅关闭
func (s *Server) Run(ctx context.Context, h canbus.Handler) error {
	s.SetHandler(h)
	if err := s.Start(); err != nil {
		return err
	}
	<-ctx.Done()
	shutCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.Shutdown(shutCtx); err != nil {
		return err
	}
	return ctx.Err()
}

// Shutdown 优雅关闭监听并等待连接退出
func (s *Server) Shutdown(ctx context.Context) error {
	if !s.stopped.CompareAndSwap(false, true) {
		return nil
	}
	close(s.stopC)
	s.mu.Lock()
	if s.ln != nil {
		_ = s.ln.Close()
	}
	s.mu.Unlock()
	ch := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(ch)
	}()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-ch:
		return nil
	}
}

// ActiveConnections 当前连接数
func (s *Server) ActiveConnections() int { return s.limiter.Current() }

// MaxConnections 最大连接数
func (s *Server) MaxConnections() int { return s.limiter.MaxConnections() }

// GetLimiterStats 连接限流统计
func (s *Server) GetLimiterStats() LimiterStats { return s.limiter.Stats() }

// GetRateLimiterStats 接入速率统计
func (s *Server) GetRateLimiterStats() RateLimiterStats { return s.rate.Stats() }
