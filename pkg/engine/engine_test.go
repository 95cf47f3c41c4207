package engine

import (
	"bytes"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/iniwex5/isakmp-go/pkg/config"
	"github.com/iniwex5/isakmp-go/pkg/cookie"
	"github.com/iniwex5/isakmp-go/pkg/isakmp"
)

type recordSender struct {
	mu sync.Mutex
	n  int
}

func (r *recordSender) SendTo(b []byte, addr *net.UDPAddr) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.n++
	return nil
}

func (r *recordSender) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.n
}

func testConfig() *config.Config {
	c := config.Default()
	c.BufferCount = 3
	c.CookieSecretLifetime = 0
	c.ResendCount = 2
	c.ResendInterval = 10 * time.Millisecond
	return c
}

func TestSendAndRetransmit(t *testing.T) {
	s := &recordSender{}
	e, err := New(testConfig(), s)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	h := &isakmp.Header{}
	h.Set(0, []byte{9, 9, 9, 9, 9, 9, 9, 9}, isakmp.ExchangeIdentityProt, 0)
	msg := &isakmp.EncMessage{Header: h, Nonce: &isakmp.NoncePayload{Data: bytes.Repeat([]byte{1}, 16)}}
	msg.Build()

	x := e.NewExchange(msg, &net.UDPAddr{IP: net.IPv4(192, 0, 2, 7), Port: 500})
	r, err := e.Send(x)
	if err != nil {
		t.Fatalf("Send failed: %v", err)
	}
	select {
	case <-r.Done():
	case <-time.After(2 * time.Second):
		t.Fatalf("重传预算用完后应结束")
	}
	if s.count() != 3 {
		t.Errorf("应发送 1 次并重传 2 次，实际 %d", s.count())
	}
	if err := e.Transport.Release(x); err != nil {
		t.Fatalf("Release failed: %v", err)
	}
	if err := e.Close(); err != nil {
		t.Errorf("Close failed: %v", err)
	}
}

func TestCloseReportsLeakedBuffer(t *testing.T) {
	e, err := New(testConfig(), &recordSender{})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	if _, err := e.Pool.Get(); err != nil {
		t.Fatal(err)
	}
	if err := e.Close(); err == nil {
		t.Errorf("未归还的缓冲块应在 Close 时报告")
	}
}

func TestCookieThroughEngine(t *testing.T) {
	e, err := New(testConfig(), &recordSender{})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	defer e.Close()

	p := &cookie.Peer{Nonce: []byte("nonce-nonce"), Addr: net.IPv4(10, 0, 0, 1), SPI: []byte{1, 2, 3, 4}}
	var c [cookie.CookieLen]byte
	if err := e.Cookies.Generate(p, c[:]); err != nil {
		t.Fatalf("Generate failed: %v", err)
	}
	if err := e.Cookies.Save(p, &isakmp.NotifyPayload{NotifyData: c[:]}); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	if err := e.Cookies.Verify(p); err != nil {
		t.Errorf("Verify failed: %v", err)
	}
}

func TestTemplatePolicy(t *testing.T) {
	cfg := testConfig()
	cfg.PartialSA = true
	e, err := New(cfg, &recordSender{})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	defer e.Close()
	if m := e.Template(&isakmp.Header{}); m.SAPolicy != isakmp.SAPolicyPartial {
		t.Errorf("模板应使用部分 SA 策略")
	}
}

func TestInvalidConfig(t *testing.T) {
	cfg := testConfig()
	cfg.BufferCount = 0
	if _, err := New(cfg, &recordSender{}); err == nil {
		t.Errorf("非法配置应返回错误")
	}
}

func TestListenOnLoopback(t *testing.T) {
	cfg := testConfig()
	cfg.ListenAddr = "127.0.0.1:0"
	e, err := New(cfg, nil)
	if err != nil {
		t.Skipf("无法监听回环地址: %v", err)
	}
	if e.Conn == nil || e.Conn.LocalAddr().Port == 0 {
		t.Errorf("应打开 UDP 套接字")
	}
	if err := e.Close(); err != nil {
		t.Errorf("Close failed: %v", err)
	}
}
