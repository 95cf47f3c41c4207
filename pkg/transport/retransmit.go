package transport

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/pkg/errors"

	"github.com/iniwex5/isakmp-go/pkg/logger"
)

// RetryConfig 重传定时配置
type RetryConfig struct {
	InitialTimeout time.Duration // 首次重传前的等待时间
	MaxTimeout     time.Duration // 0 表示不设上限
	BackoffFactor  float64       // 每次重传后等待时间的倍数
}

// DefaultRetryConfig 默认每 2 秒重传，不做退避
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		InitialTimeout: 2 * time.Second,
		BackoffFactor:  1.0,
	}
}

// Retransmitter 在等待对端响应期间按退避间隔重发缓存的消息，
// 直到交换的重传预算用完或调用 Stop。
type Retransmitter struct {
	t   *Transport
	x   *Exchange
	cfg RetryConfig

	mu      sync.Mutex
	timer   *time.Timer
	timeout time.Duration
	stopped bool
	err     error
	done    chan struct{}

	attempts uint64
	failures uint64
}

// StartRetransmit 在 x 发送成功后启动重传定时器
func (t *Transport) StartRetransmit(x *Exchange, cfg RetryConfig) *Retransmitter {
	if cfg.BackoffFactor < 1 {
		cfg.BackoffFactor = 1
	}
	r := &Retransmitter{
		t:       t,
		x:       x,
		cfg:     cfg,
		timeout: cfg.InitialTimeout,
		done:    make(chan struct{}),
	}
	r.mu.Lock()
	r.timer = time.AfterFunc(r.timeout, r.fire)
	r.mu.Unlock()
	return r
}

func (r *Retransmitter) fire() {
	r.mu.Lock()
	if r.stopped {
		r.mu.Unlock()
		return
	}
	r.mu.Unlock()

	err := r.t.ResendPacket(r.x)
	atomic.AddUint64(&r.attempts, 1)
	if errors.Is(err, ErrResendExhausted) || errors.Is(err, ErrNotBuffered) {
		logger.Info("停止重传", logger.Err(err))
		r.finish(err)
		return
	}
	if err != nil {
		atomic.AddUint64(&r.failures, 1)
		logger.Warn("重传失败", logger.Err(err))
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.stopped {
		return
	}
	r.timeout = time.Duration(float64(r.timeout) * r.cfg.BackoffFactor)
	if r.cfg.MaxTimeout > 0 && r.timeout > r.cfg.MaxTimeout {
		r.timeout = r.cfg.MaxTimeout
	}
	r.timer.Reset(r.timeout)
}

func (r *Retransmitter) finish(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.stopped {
		return
	}
	r.stopped = true
	r.err = err
	r.timer.Stop()
	close(r.done)
}

// Stop 收到响应后停止重传
func (r *Retransmitter) Stop() { r.finish(nil) }

// Done 在重传结束时关闭
func (r *Retransmitter) Done() <-chan struct{} { return r.done }

// Err 重传因预算用完而结束时返回 ErrResendExhausted，Stop 结束时为 nil
func (r *Retransmitter) Err() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.err
}

type RetryStats struct {
	Attempts uint64
	Failures uint64
}

func (r *Retransmitter) Stats() RetryStats {
	return RetryStats{
		Attempts: atomic.LoadUint64(&r.attempts),
		Failures: atomic.LoadUint64(&r.failures),
	}
}
