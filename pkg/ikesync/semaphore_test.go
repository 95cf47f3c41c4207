package ikesync

import (
	"testing"
	"time"

	"github.com/pkg/errors"
)

func TestSemaphoreTimeout(t *testing.T) {
	s := NewSemaphore(20 * time.Millisecond)
	if err := s.Acquire(); err != nil {
		t.Fatalf("Acquire failed: %v", err)
	}
	start := time.Now()
	if err := s.Acquire(); !errors.Is(err, ErrLockTimeout) {
		t.Fatalf("第二次获取应超时: %v", err)
	}
	if time.Since(start) < 20*time.Millisecond {
		t.Errorf("超时返回过早")
	}
	s.Release()
	if err := s.Acquire(); err != nil {
		t.Errorf("释放后应能获取: %v", err)
	}
	s.Release()
}

func TestSemaphoreHandoff(t *testing.T) {
	s := NewSemaphore(time.Second)
	if err := s.Acquire(); err != nil {
		t.Fatalf("Acquire failed: %v", err)
	}
	done := make(chan error)
	go func() { done <- s.Acquire() }()
	time.Sleep(10 * time.Millisecond)
	s.Release()
	if err := <-done; err != nil {
		t.Errorf("等待方应获取成功: %v", err)
	}
	s.Release()
}
