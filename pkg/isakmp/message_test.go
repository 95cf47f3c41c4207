package isakmp

import (
	"bytes"
	"testing"

	"github.com/pkg/errors"
)

var testCookies = []byte{1, 2, 3, 4, 5, 6, 7, 8, 0, 0, 0, 0, 0, 0, 0, 0}

func encodeChain(t *testing.T, payloads ...Payload) []byte {
	t.Helper()
	h := &Header{}
	h.Set(0x01020304, testCookies, ExchangeIdentityProt, 0)
	Chain(h, payloads...)
	buf := make([]byte, 3000)
	n, err := EncodeMessage(buf, h)
	if err != nil {
		t.Fatalf("EncodeMessage failed: %v", err)
	}
	if int(h.Length) != n {
		t.Fatalf("头部长度 %d 与编码长度 %d 不符", h.Length, n)
	}
	return buf[:n]
}

func decodeTemplate(t *testing.T, raw []byte, m *DecMessage) error {
	t.Helper()
	m.Header = &Header{}
	if err := DecodeHeader(raw, m.Header); err != nil {
		t.Fatalf("DecodeHeader failed: %v", err)
	}
	return DecodeMessage(raw, m)
}

func nonce(size int) *NoncePayload {
	return &NoncePayload{Data: bytes.Repeat([]byte{0x5a}, size)}
}

func TestHeaderRoundTrip(t *testing.T) {
	raw := encodeChain(t, nonce(16))
	var h Header
	if err := DecodeHeader(raw, &h); err != nil {
		t.Fatalf("DecodeHeader failed: %v", err)
	}
	if !bytes.Equal(h.ICookie[:], testCookies[:8]) || h.RCookie != [8]byte{} {
		t.Errorf("Cookie 不匹配: %x %x", h.ICookie, h.RCookie)
	}
	if h.FirstPayload != PayloadNonce || h.Major != 1 || h.Minor != 0 || raw[17] != 0x10 {
		t.Errorf("头部字段不匹配: %s", h.String())
	}
	if h.ExchangeType != ExchangeIdentityProt || h.MessageID != 0x01020304 || int(h.Length) != len(raw) {
		t.Errorf("头部字段不匹配: %s", h.String())
	}
	if h.Type != PayloadNone || h.PayloadLength != HEADER_LEN {
		t.Errorf("伪通用头部应为 {NONE, 28}: %v %d", h.Type, h.PayloadLength)
	}
	if err := DecodeHeader(raw[:HEADER_LEN-1], &h); !errors.Is(err, ErrLengthIsShort) {
		t.Errorf("27 字节应返回 ErrLengthIsShort: %v", err)
	}
}

func TestMessageRoundTrip(t *testing.T) {
	sa := buildSA(t, 2)
	ke := &KeyExchangePayload{Data: bytes.Repeat([]byte{0x33}, 128)}
	vid := &VendorIDPayload{Data: []byte("0123456789abcdef")}
	n := &NotifyPayload{DOI: DOI_IPSEC, ProtocolID: 1, NotifyType: 24}
	raw := encodeChain(t, sa, ke, nonce(20), vid, n)

	var (
		gotSA    SAPayload
		gotKE    KeyExchangePayload
		gotNonce NoncePayload
		gotN     NotifyPayload
		gotHash  HashPayload
	)
	gotN.MarkOptional()
	gotHash.MarkOptional()
	m := &DecMessage{SA: &gotSA, KeyExchange: &gotKE, Nonce: &gotNonce, Notify: &gotN, Hash: &gotHash}
	if err := decodeTemplate(t, raw, m); err != nil {
		t.Fatalf("DecodeMessage failed: %v", err)
	}
	if gotSA.NumProposals != 2 || !bytes.Equal(gotKE.Data, ke.Data) || len(gotNonce.Data) != 20 {
		t.Errorf("解码结果不匹配")
	}
	if !gotN.IsPresent() || gotN.NotifyType != 24 {
		t.Errorf("可选通知应被解码: %+v", gotN)
	}
	if gotHash.IsPresent() || gotHash.IsRequired() {
		t.Errorf("未出现的可选哈希应保持可选占位")
	}
	for _, s := range m.slots() {
		if s.hdr.IsRequired() {
			t.Errorf("成功解码后 %s 仍为必需占位", s.name)
		}
	}
}

func TestMessageMissingPayload(t *testing.T) {
	raw := encodeChain(t, nonce(16))
	var gotNonce NoncePayload
	var gotID IDPayload
	gotID.MarkRequired()
	m := &DecMessage{Nonce: &gotNonce, IDi: &gotID}
	if err := decodeTemplate(t, raw, m); !errors.Is(err, ErrMissingPayload) {
		t.Errorf("缺少必需 ID 应返回 ErrMissingPayload: %v", err)
	}
}

func TestMessageUnexpectedPayload(t *testing.T) {
	raw := encodeChain(t, nonce(16), &KeyExchangePayload{Data: []byte{1, 2, 3, 4}})
	m := &DecMessage{Nonce: &NoncePayload{}}
	if err := decodeTemplate(t, raw, m); !errors.Is(err, ErrUnexpectedPayload) {
		t.Errorf("模板外的 KE 应返回 ErrUnexpectedPayload: %v", err)
	}
}

func TestMessageDuplicatePayload(t *testing.T) {
	raw := encodeChain(t, nonce(16), nonce(24))
	var gotNonce NoncePayload
	m := &DecMessage{Nonce: &gotNonce}
	if err := decodeTemplate(t, raw, m); !errors.Is(err, ErrDuplicatePayload) {
		t.Fatalf("重复 Nonce 应返回 ErrDuplicatePayload: %v", err)
	}
	if !gotNonce.IsPresent() || len(gotNonce.Data) != 16 {
		t.Errorf("第一个 Nonce 应已成功解码")
	}
}

func TestMessageHashSignatureExclusive(t *testing.T) {
	raw := encodeChain(t, &HashPayload{Data: make([]byte, 20)}, &SignaturePayload{Data: make([]byte, 64)})
	var h HashPayload
	var s SignaturePayload
	h.MarkOptional()
	s.MarkOptional()
	m := &DecMessage{Hash: &h, Signature: &s}
	if err := decodeTemplate(t, raw, m); !errors.Is(err, ErrDuplicatePayload) {
		t.Errorf("HASH 之后的 SIG 应返回 ErrDuplicatePayload: %v", err)
	}
}

func TestMessageTwoIDs(t *testing.T) {
	idi := &IDPayload{IDType: IDIPv4Addr, Data: []byte{10, 0, 0, 1}}
	idr := &IDPayload{IDType: IDIPv4Addr, Data: []byte{10, 0, 0, 2}}
	raw := encodeChain(t, idi, idr)

	var gi, gr IDPayload
	m := &DecMessage{IDi: &gi, IDr: &gr}
	if err := decodeTemplate(t, raw, m); err != nil {
		t.Fatalf("DecodeMessage failed: %v", err)
	}
	if gi.IP().String() != "10.0.0.1" || gr.IP().String() != "10.0.0.2" {
		t.Errorf("ID 位置解码错误: %v %v", gi.IP(), gr.IP())
	}

	// 只提供一个 ID 槽位时第二个 ID 视为重复
	var only IDPayload
	m = &DecMessage{IDi: &only}
	if err := decodeTemplate(t, raw, m); !errors.Is(err, ErrDuplicatePayload) {
		t.Errorf("第二个 ID 应返回 ErrDuplicatePayload: %v", err)
	}
}

func TestMessageVendorIDIgnored(t *testing.T) {
	raw := encodeChain(t, &VendorIDPayload{Data: []byte("vendor-id-data!!")}, nonce(16))
	var gotNonce NoncePayload
	m := &DecMessage{Nonce: &gotNonce}
	if err := decodeTemplate(t, raw, m); err != nil {
		t.Fatalf("厂商 ID 不应影响解码: %v", err)
	}
	if !gotNonce.IsPresent() {
		t.Errorf("厂商 ID 之后的 Nonce 应被解码")
	}
}

func TestMessageTruncated(t *testing.T) {
	raw := encodeChain(t, buildSA(t, 1), nonce(16))
	for cut := HEADER_LEN; cut < len(raw); cut++ {
		m := &DecMessage{SA: &SAPayload{}, Nonce: &NoncePayload{}}
		if err := decodeTemplate(t, raw[:cut], m); !errors.Is(err, ErrLengthIsShort) {
			t.Errorf("截断到 %d 字节应返回 ErrLengthIsShort: %v", cut, err)
		}
	}
}

func TestEncodeMessageErrors(t *testing.T) {
	h := &Header{}
	if _, err := EncodeMessage(make([]byte, 100), h); !errors.Is(err, ErrInvalidPayload) {
		t.Errorf("空链应返回 ErrInvalidPayload: %v", err)
	}
	Chain(h, nonce(64))
	if _, err := EncodeMessage(make([]byte, 60), h); !errors.Is(err, ErrLengthIsShort) {
		t.Errorf("缓冲区不足应返回 ErrLengthIsShort: %v", err)
	}
}

func TestEncMessageBuildAndRelease(t *testing.T) {
	n1 := &NotifyPayload{DOI: DOI_IPSEC, NotifyType: 1}
	n2 := &NotifyPayload{DOI: DOI_IPSEC, NotifyType: 2}
	Append(n1, n2)
	m := &EncMessage{
		Header: &Header{},
		Nonce:  nonce(16),
		Hash:   &HashPayload{Data: make([]byte, 20)},
		Notify: n1,
	}
	m.Build()

	var kinds []PayloadType
	for p := m.Header.Next; p != nil; p = p.payloadHeader().Next {
		kinds = append(kinds, p.Kind())
	}
	want := []PayloadType{PayloadNonce, PayloadHash, PayloadNotify, PayloadNotify}
	if len(kinds) != len(want) {
		t.Fatalf("链顺序错误: %v", kinds)
	}
	for i := range want {
		if kinds[i] != want[i] {
			t.Fatalf("链顺序错误: %v", kinds)
		}
	}

	if _, err := EncodeMessage(make([]byte, 256), m.Header); err != nil {
		t.Fatalf("EncodeMessage failed: %v", err)
	}
	m.Release()
	if m.Header.Next != nil || m.Notify != nil || m.Hash.Data != nil || n1.Next != nil {
		t.Errorf("Release 后仍持有动态载荷")
	}
}

func TestGetMessageLengthAndExtract(t *testing.T) {
	sa := buildSA(t, 1)
	raw := encodeChain(t, sa, nonce(16))
	withTail := append(append([]byte{}, raw...), 0xde, 0xad)

	n, err := GetMessageLength(withTail)
	if err != nil {
		t.Fatalf("GetMessageLength failed: %v", err)
	}
	if n != len(raw) {
		t.Errorf("消息长度应为 %d，实际 %d", len(raw), n)
	}
	if _, err := GetMessageLength(raw[:len(raw)-1]); !errors.Is(err, ErrLengthIsShort) {
		t.Errorf("截断消息应返回 ErrLengthIsShort: %v", err)
	}

	body, err := ExtractRawPayload(raw, PayloadSA)
	if err != nil {
		t.Fatalf("ExtractRawPayload failed: %v", err)
	}
	if len(body) != int(sa.PayloadLength)-PAYLOAD_HEADER_LEN {
		t.Errorf("SA 数据体长度错误: %d", len(body))
	}
	body[0] = 0xff
	if raw[HEADER_LEN+PAYLOAD_HEADER_LEN] == 0xff {
		t.Errorf("ExtractRawPayload 应返回副本")
	}
	if _, err := ExtractRawPayload(raw, PayloadHash); !errors.Is(err, ErrNotFound) {
		t.Errorf("不存在的载荷应返回 ErrNotFound: %v", err)
	}
}

func TestDump(t *testing.T) {
	s := Dump(&NotifyPayload{DOI: DOI_IPSEC, NotifyType: 24})
	if !bytes.Contains([]byte(s), []byte("NotifyType")) {
		t.Errorf("Dump 输出缺少字段: %s", s)
	}
}
