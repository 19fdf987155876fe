package tcpserver

import (
	"bufio"
	"errors"
	"fmt"
	"net"
	"strings"
	"sync/atomic"
	"time"

	"github.com/taoyao-code/mks-gateway/internal/canbus"
	"go.uber.org/zap"
)

// 单行上限，超出视为协议错误
const maxLineLen = 512

// ConnContext 单个 TCP 连接：按行读取 candump 文本，错误行回写 "ERR ..."
type ConnContext struct {
	s      *Server
	c      net.Conn
	id     uint64
	writeC chan []byte
	closed int32
	doneC  chan struct{}
}

func newConnContext(s *Server, c net.Conn) *ConnContext {
	return &ConnContext{
		s:      s,
		c:      c,
		id:     atomic.AddUint64(&s.nextConnID, 1),
		writeC: make(chan []byte, 32),
		doneC:  make(chan struct{}),
	}
}

// Write 异步写入；队列满时丢弃
func (cc *ConnContext) Write(b []byte) error {
	if atomic.LoadInt32(&cc.closed) == 1 {
		return errors.New("connection closed")
	}
	dup := make([]byte, len(b))
	copy(dup, b)
	select {
	case cc.writeC <- dup:
		return nil
	default:
		return errors.New("write queue full")
	}
}

// Close 关闭连接
func (cc *ConnContext) Close() error {
	if !atomic.CompareAndSwapInt32(&cc.closed, 0, 1) {
		return nil
	}
	close(cc.doneC)
	return cc.c.Close()
}

// run 启动读/写循环，阻塞直至连接结束
func (cc *ConnContext) run() {
	log := cc.s.logger.With(zap.Uint64("conn", cc.id), zap.String("remote", cc.c.RemoteAddr().String()))
	log.Debug("tcp connection opened")
	defer log.Debug("tcp connection closed")
	defer cc.Close()

	// 服务关闭时中断阻塞读
	go func() {
		select {
		case <-cc.s.stopC:
			_ = cc.Close()
		case <-cc.doneC:
		}
	}()

	doneW := make(chan struct{})
	go func() {
		defer close(doneW)
		for {
			select {
			case msg := <-cc.writeC:
				if cc.s.cfg.WriteTimeout > 0 {
					_ = cc.c.SetWriteDeadline(time.Now().Add(cc.s.cfg.WriteTimeout))
				}
				if _, err := cc.c.Write(msg); err != nil {
					return
				}
			case <-cc.doneC:
				return
			}
		}
	}()

	r := bufio.NewReaderSize(cc.c, maxLineLen)
	for {
		// ReadTimeout 作为空闲超时
		if cc.s.cfg.ReadTimeout > 0 {
			_ = cc.c.SetReadDeadline(time.Now().Add(cc.s.cfg.ReadTimeout))
		}
		line, err := r.ReadSlice('\n')
		if len(line) > 0 && cc.s.onRecvBytes != nil {
			cc.s.onRecvBytes(len(line))
		}
		if errors.Is(err, bufio.ErrBufferFull) {
			cc.badLine(log, fmt.Errorf("line exceeds %d bytes", maxLineLen))
			break
		}
		if len(line) > 0 && (err == nil || len(strings.TrimSpace(string(line))) > 0) {
			cc.handleLine(log, string(line))
		}
		if err != nil {
			var ne net.Error
			if errors.As(err, &ne) && ne.Timeout() {
				log.Debug("tcp connection idle timeout")
			}
			break
		}
	}
	_ = cc.Close()
	<-doneW
}

func (cc *ConnContext) handleLine(log *zap.Logger, line string) {
	f, ok, err := canbus.ParseLine(line)
	if err != nil {
		cc.badLine(log, err)
		return
	}
	if !ok {
		return
	}
	if f.At.IsZero() {
		f.At = time.Now()
	}
	if h := cc.s.handler; h != nil {
		h(f)
	}
}

func (cc *ConnContext) badLine(log *zap.Logger, err error) {
	log.Debug("tcp bad line", zap.Error(err))
	if cc.s.onBadLine != nil {
		cc.s.onBadLine()
	}
	_ = cc.Write([]byte("ERR " + err.Error() + "\n"))
}
