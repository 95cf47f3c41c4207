package crypto

import (
	"bytes"
	"crypto/sha256"
	"testing"
)

func TestCBCInPlace(t *testing.T) {
	key := []byte("1234567890123456")
	iv := bytes.Repeat([]byte{0x42}, 16)
	enc, err := NewAESCBC(key, iv)
	if err != nil {
		t.Fatalf("NewAESCBC failed: %v", err)
	}
	dec, _ := NewAESCBC(key, iv)

	for _, msg := range [][]byte{[]byte("HelloIKEv1World!"), []byte("短消息")} {
		buf := make([]byte, 64)
		copy(buf, msg)
		n, err := enc.EncryptInPlace(buf, len(msg))
		if err != nil {
			t.Fatalf("加密失败: %v", err)
		}
		if n%16 != 0 || n < len(msg) {
			t.Fatalf("密文长度错误: %d", n)
		}
		if !bytes.Equal(enc.IV(), buf[n-16:n]) {
			t.Errorf("IV 应更新为最后一个密文块")
		}
		if err := dec.DecryptInPlace(buf, n); err != nil {
			t.Fatalf("解密失败: %v", err)
		}
		if !bytes.Equal(buf[:len(msg)], msg) {
			t.Errorf("解密结果不匹配: got %q, want %q", buf[:len(msg)], msg)
		}
	}
}

func TestCBCNoRoomForPadding(t *testing.T) {
	enc, _ := NewAESCBC(make([]byte, 16), make([]byte, 16))
	buf := make([]byte, 20)
	if _, err := enc.EncryptInPlace(buf, 20); err == nil {
		t.Errorf("缓冲区不足时应失败")
	}
}

func TestHashers(t *testing.T) {
	h := SHA1()
	if h.Size() != 20 || len(h.Sum([]byte("abc"))) != 20 {
		t.Errorf("SHA-1 摘要应为 20 字节")
	}
	m1 := HMAC(sha256.New, []byte("k1"))
	m2 := HMAC(sha256.New, []byte("k2"))
	if bytes.Equal(m1.Sum([]byte("x")), m2.Sum([]byte("x"))) {
		t.Errorf("不同密钥的 HMAC 不应相同")
	}
	if m1.Size() != 32 {
		t.Errorf("HMAC-SHA256 长度错误: %d", m1.Size())
	}
	a := MessageDigest([]byte("packet"))
	b := MessageDigest([]byte("packet"))
	if a != b {
		t.Errorf("相同输入的摘要应相同")
	}
}

func TestRandomBytes(t *testing.T) {
	b1, err := RandomBytes(32)
	if err != nil {
		t.Fatalf("RandomBytes 失败: %v", err)
	}
	b2, _ := RandomBytes(32)
	if bytes.Equal(b1, b2) {
		t.Error("两次 RandomBytes 调用不应返回相同的结果")
	}
	if len(b1) != 32 {
		t.Errorf("长度错误: got %d, want 32", len(b1))
	}
}
