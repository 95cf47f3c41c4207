package engine

import (
	"net"

	"github.com/pkg/errors"
	"go.uber.org/multierr"

	"github.com/iniwex5/isakmp-go/pkg/bufpool"
	"github.com/iniwex5/isakmp-go/pkg/config"
	"github.com/iniwex5/isakmp-go/pkg/cookie"
	"github.com/iniwex5/isakmp-go/pkg/ikesync"
	"github.com/iniwex5/isakmp-go/pkg/isakmp"
	"github.com/iniwex5/isakmp-go/pkg/logger"
	"github.com/iniwex5/isakmp-go/pkg/transport"
)

// Engine 按配置组装 IKE 信号量、缓冲池、Cookie 引擎和传输层。
// 所有组件共享同一个信号量和缓冲池。
type Engine struct {
	cfg *config.Config

	Lock      *ikesync.Semaphore
	Pool      *bufpool.Shared
	Cookies   *cookie.Engine
	Transport *transport.Transport

	// 由 New 打开的套接字，使用外部 Sender 时为 nil
	Conn *transport.UDPConn
}

// New 创建引擎。sender 为 nil 时在 cfg.ListenAddr 上打开 UDP 套接字。
func New(cfg *config.Config, sender transport.Sender) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, errors.WithMessage(err, "配置无效")
	}

	e := &Engine{cfg: cfg}
	e.Lock = ikesync.NewSemaphore(cfg.LockTimeout)
	e.Pool = bufpool.NewShared(bufpool.New(cfg.BufferCount, cfg.BufferSize), e.Lock)

	cookies, err := cookie.New(cookie.Config{
		SecretLen: cfg.CookieSecretLen,
		Lifetime:  cfg.CookieSecretLifetime,
		Pool:      e.Pool,
	})
	if err != nil {
		return nil, err
	}
	e.Cookies = cookies

	if sender == nil {
		conn, err := transport.ListenUDP(cfg.ListenAddr, 0)
		if err != nil {
			cookies.Close()
			return nil, err
		}
		e.Conn = conn
		sender = conn
	}
	e.Transport = transport.New(e.Pool, sender, transport.Options{ResendCount: cfg.ResendCount})

	logger.Info("ISAKMP 引擎已启动",
		logger.Int("buffers", cfg.BufferCount),
		logger.Int("bufferSize", cfg.BufferSize),
		logger.Int("resendCount", cfg.ResendCount),
		logger.Bool("partialSA", cfg.PartialSA))
	return e, nil
}

// NewExchange 为发往 peer 的消息创建交换
func (e *Engine) NewExchange(msg *isakmp.EncMessage, peer *net.UDPAddr) *transport.Exchange {
	return &transport.Exchange{Message: msg, Peer: peer}
}

// Send 发送交换中的消息并按配置启动重传定时器
func (e *Engine) Send(x *transport.Exchange) (*transport.Retransmitter, error) {
	if err := e.Transport.SendPacket(x); err != nil {
		return nil, err
	}
	return e.Transport.StartRetransmit(x, e.cfg.RetryConfig()), nil
}

// Template 返回使用配置中 SA 策略的解码模板，槽位由调用方填写
func (e *Engine) Template(h *isakmp.Header) *isakmp.DecMessage {
	return &isakmp.DecMessage{Header: h, SAPolicy: e.cfg.SAPolicy()}
}

// Close 停止 Cookie 密钥轮换并关闭套接字
func (e *Engine) Close() error {
	var err error
	e.Cookies.Close()
	if e.Conn != nil {
		err = multierr.Append(err, e.Conn.Close())
	}
	if n := e.Pool.Pool().Available(); n != e.Pool.Pool().Capacity() {
		err = multierr.Append(err, errors.Errorf("关闭时仍有 %d 个缓冲块未归还", e.Pool.Pool().Capacity()-n))
	}
	return err
}
