package isakmp

import (
	"encoding/binary"
	"fmt"
)

// ISAKMP 头部 (RFC 2408 3.1 节)
//
// 编码时 Next 指向第一个载荷，next-payload 字段由链推导。
// 解码时 FirstPayload 保存线上的 next-payload，
// 内嵌的通用头部被合成为 {NONE, 28}，以便参与同样的链遍历。
type Header struct {
	PayloadHeader

	ICookie      [8]byte
	RCookie      [8]byte
	FirstPayload PayloadType
	Major        uint8
	Minor        uint8
	ExchangeType ExchangeType
	Flags        uint8
	MessageID    uint32
	Length       uint32
}

// Set 填充出站头部。cookies 为 16 字节的 I-Cookie | R-Cookie
func (h *Header) Set(msgID uint32, cookies []byte, exchange ExchangeType, flags uint8) {
	copy(h.ICookie[:], cookies)
	if len(cookies) > 8 {
		copy(h.RCookie[:], cookies[8:])
	}
	h.Major = MajorVersion
	h.Minor = MinorVersion
	h.ExchangeType = exchange
	h.Flags = flags
	h.MessageID = msgID
}

// Version 返回版本字节 (主版本 << 4 | 次版本)
func (h *Header) Version() uint8 {
	return h.Major<<4 | h.Minor&0x0f
}

// EncodeHeader 写入 28 字节头部，Length 取 h.Length
func EncodeHeader(b []byte, h *Header) error {
	if len(b) < HEADER_LEN {
		return shortf("编码头部需要 %d 字节，缓冲区仅 %d", HEADER_LEN, len(b))
	}
	major, minor := h.Major, h.Minor
	if major == 0 && minor == 0 {
		major = MajorVersion
	}
	copy(b[0:8], h.ICookie[:])
	copy(b[8:16], h.RCookie[:])
	b[16] = uint8(h.NextType())
	b[17] = major<<4 | minor&0x0f
	b[18] = uint8(h.ExchangeType)
	b[19] = h.Flags
	binary.BigEndian.PutUint32(b[20:24], h.MessageID)
	binary.BigEndian.PutUint32(b[24:28], h.Length)
	h.PayloadLength = HEADER_LEN
	return nil
}

// DecodeHeader 从 b 解码头部
func DecodeHeader(b []byte, h *Header) error {
	if len(b) < HEADER_LEN {
		return shortf("数据包太短，无法包含 ISAKMP 头部: %d", len(b))
	}
	copy(h.ICookie[:], b[0:8])
	copy(h.RCookie[:], b[8:16])
	h.FirstPayload = PayloadType(b[16])
	h.Major = b[17] >> 4
	h.Minor = b[17] & 0x0f
	h.ExchangeType = ExchangeType(b[18])
	h.Flags = b[19]
	h.MessageID = binary.BigEndian.Uint32(b[20:24])
	h.Length = binary.BigEndian.Uint32(b[24:28])

	h.Next = nil
	h.Type = PayloadNone
	h.PayloadLength = HEADER_LEN
	return nil
}

func (h *Header) String() string {
	return fmt.Sprintf("ISAKMP Header: CKYi=%x CKYr=%x Next=%s Ver=%d.%d Exch=%d Flags=%03b MsgID=%08x Len=%d",
		h.ICookie, h.RCookie, h.FirstPayload, h.Major, h.Minor, h.ExchangeType, h.Flags, h.MessageID, h.Length)
}
