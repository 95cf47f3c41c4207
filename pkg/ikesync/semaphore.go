package ikesync

import (
	"context"
	"time"

	"github.com/pkg/errors"
)

var ErrLockTimeout = errors.New("获取 IKE 信号量超时")

// Semaphore 全局 IKE 信号量。与 sync.Mutex 不同，获取时可以限定等待时间
type Semaphore struct {
	ch      chan struct{}
	timeout time.Duration
}

// NewSemaphore 创建信号量，timeout 为 Acquire 的默认等待上限，0 表示不限
func NewSemaphore(timeout time.Duration) *Semaphore {
	return &Semaphore{ch: make(chan struct{}, 1), timeout: timeout}
}

// Acquire 在默认超时内获取信号量
func (s *Semaphore) Acquire() error {
	if s.timeout <= 0 {
		s.ch <- struct{}{}
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()
	return s.AcquireContext(ctx)
}

// AcquireContext 获取信号量，ctx 结束时返回 ErrLockTimeout
func (s *Semaphore) AcquireContext(ctx context.Context) error {
	select {
	case s.ch <- struct{}{}:
		return nil
	default:
	}
	select {
	case s.ch <- struct{}{}:
		return nil
	case <-ctx.Done():
		return errors.Wrap(ErrLockTimeout, ctx.Err().Error())
	}
}

// Release 释放信号量
func (s *Semaphore) Release() {
	select {
	case <-s.ch:
	default:
		panic("ikesync: 释放未持有的信号量")
	}
}
