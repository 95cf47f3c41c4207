package main

import (
	"bytes"
	"encoding/hex"
	"strings"
	"testing"

	"github.com/iniwex5/isakmp-go/pkg/crypto"
	"github.com/iniwex5/isakmp-go/pkg/isakmp"
)

func buildPacket(t *testing.T, flags uint8) []byte {
	t.Helper()
	h := &isakmp.Header{}
	h.Set(0, []byte{1, 2, 3, 4, 5, 6, 7, 8}, isakmp.ExchangeInformational, flags)
	n := &isakmp.NotifyPayload{DOI: isakmp.DOI_IPSEC, ProtocolID: isakmp.IPSEC_PROTO_ISAKMP, NotifyType: isakmp.NotifyCookie, NotifyData: []byte{0xaa, 0xbb}}
	nonce := &isakmp.NoncePayload{Data: bytes.Repeat([]byte{0x5a}, 16)}
	isakmp.Chain(h, nonce, n)

	b := make([]byte, 256)
	l, err := isakmp.EncodeMessage(b, h)
	if err != nil {
		t.Fatalf("EncodeMessage failed: %v", err)
	}
	return b[:l]
}

func TestRunHex(t *testing.T) {
	pkt := buildPacket(t, 0)
	in := strings.NewReader(hex.EncodeToString(pkt[:20]) + "\n  " + hex.EncodeToString(pkt[20:]))
	var out bytes.Buffer
	if err := run(in, &out, options{}); err != nil {
		t.Fatalf("run failed: %v", err)
	}
	s := out.String()
	for _, want := range []string{"NONCE", "NotifyType", "16390"} {
		if !strings.Contains(s, want) {
			t.Errorf("输出缺少 %q:\n%s", want, s)
		}
	}
	if strings.Contains(s, "\"SA\"") {
		t.Errorf("未出现的载荷不应打印:\n%s", s)
	}
}

func TestRunRawTruncated(t *testing.T) {
	pkt := buildPacket(t, 0)
	var out bytes.Buffer
	if err := run(bytes.NewReader(pkt[:len(pkt)-3]), &out, options{raw: true}); err == nil {
		t.Errorf("截断的消息应返回错误")
	}
}

func TestRunEncrypted(t *testing.T) {
	key := bytes.Repeat([]byte{0x11}, 16)
	iv := bytes.Repeat([]byte{0x22}, 16)
	pkt := buildPacket(t, isakmp.FlagEncryption)

	buf := make([]byte, len(pkt)+16)
	copy(buf, pkt)
	enc, err := crypto.NewAESCBC(key, iv)
	if err != nil {
		t.Fatal(err)
	}
	n, err := enc.EncryptInPlace(buf[isakmp.HEADER_LEN:], len(pkt)-isakmp.HEADER_LEN)
	if err != nil {
		t.Fatal(err)
	}
	buf = buf[:isakmp.HEADER_LEN+n]
	// 加密后长度字段指向密文末尾
	buf[24], buf[25], buf[26], buf[27] = byte(len(buf)>>24), byte(len(buf)>>16), byte(len(buf)>>8), byte(len(buf))

	var out bytes.Buffer
	if err := run(bytes.NewReader(append([]byte(nil), buf...)), &out, options{raw: true}); err != nil {
		t.Fatalf("无密钥时应只打印头部: %v", err)
	}
	if !strings.Contains(out.String(), "未提供 -key") {
		t.Errorf("输出应提示缺少密钥:\n%s", out.String())
	}

	out.Reset()
	if err := run(bytes.NewReader(buf), &out, options{raw: true, key: key, iv: iv}); err != nil {
		t.Fatalf("解密后解码失败: %v", err)
	}
	if !strings.Contains(out.String(), "NotifyType") {
		t.Errorf("解密后应打印通知载荷:\n%s", out.String())
	}
}
