package isakmp

import "encoding/binary"

// Payload 是可以挂在消息链上的载荷。
// 只有本包内的类型可以实现该接口，消息编解码通过类型分支分派。
type Payload interface {
	Kind() PayloadType
	payloadHeader() *PayloadHeader
}

// 通用载荷头部 (RFC 2408 3.2 节)
// 每个载荷结构体都以它开头
type PayloadHeader struct {
	Next          Payload     // 链表中的下一个载荷，nil 表示结束
	PayloadLength uint16      // 编码或解码后的原始长度 (包含 4 字节头部)
	Type          PayloadType // 编码时为载荷类型，解码模板中为占位标记
}

func (h *PayloadHeader) payloadHeader() *PayloadHeader { return h }

// RawLength 返回最近一次编解码得到的原始长度
func (h *PayloadHeader) RawLength() uint16 { return h.PayloadLength }

// NextType 返回链上下一个载荷的类型
func (h *PayloadHeader) NextType() PayloadType {
	if h.Next == nil {
		return PayloadNone
	}
	return h.Next.Kind()
}

// MarkRequired 把载荷标记为解码模板中的必需项
func (h *PayloadHeader) MarkRequired() { h.Type = PayloadRequired }

// MarkOptional 把载荷标记为解码模板中的可选项
func (h *PayloadHeader) MarkOptional() { h.Type = PayloadOptional }

// IsPresent 报告载荷是否已被解码 (或已就绪待编码)
func (h *PayloadHeader) IsPresent() bool {
	return h.Type != PayloadRequired && h.Type != PayloadOptional
}

// IsRequired 报告载荷是否仍处于 "必需但未出现" 状态
func (h *PayloadHeader) IsRequired() bool { return h.Type == PayloadRequired }

// Chain 把载荷依次挂到头部之后，并写入各自的线上类型。
func Chain(h *Header, payloads ...Payload) {
	prev := &h.PayloadHeader
	for _, p := range payloads {
		if p == nil {
			continue
		}
		ph := p.payloadHeader()
		ph.Type = p.Kind()
		prev.Next = p
		prev = ph
	}
	prev.Next = nil
}

// Append 在链尾追加载荷
func Append(head Payload, p Payload) {
	cur := head.payloadHeader()
	for cur.Next != nil {
		cur = cur.Next.payloadHeader()
	}
	p.payloadHeader().Type = p.Kind()
	cur.Next = p
}

func encodePayloadHeader(b []byte, next PayloadType, length int) {
	b[0] = uint8(next)
	b[1] = 0
	binary.BigEndian.PutUint16(b[2:4], uint16(length))
}

// decodePayloadHeader 读取通用头部并校验声明长度
// min 为该载荷允许的最小长度
func decodePayloadHeader(b []byte, min int) (next PayloadType, length int, err error) {
	if len(b) < PAYLOAD_HEADER_LEN {
		return PayloadNone, 0, shortf("通用载荷头部需要 %d 字节，实际 %d", PAYLOAD_HEADER_LEN, len(b))
	}
	next = PayloadType(b[0])
	length = int(binary.BigEndian.Uint16(b[2:4]))
	if length > len(b) {
		return next, length, shortf("载荷声明长度 %d 超过缓冲区 %d", length, len(b))
	}
	if length < min {
		return next, length, shortf("载荷长度 %d 小于最小值 %d", length, min)
	}
	return next, length, nil
}

// fitsIn 检查编码目标是否足以容纳 need 字节
func fitsIn(b []byte, need int, what string) error {
	if need > len(b) {
		return shortf("编码%s需要 %d 字节，缓冲区仅 %d", what, need, len(b))
	}
	if need > 0xffff {
		return invalidf("%s长度 %d 超出 16 位", what, need)
	}
	return nil
}
