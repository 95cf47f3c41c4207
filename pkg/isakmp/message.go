package isakmp

import (
	"encoding/binary"

	"github.com/pkg/errors"

	"github.com/iniwex5/isakmp-go/pkg/logger"
)

// EncMessage 出站消息。调用方填充需要的槽位后用 Chain 串联，
// 消息发送完毕后由传输层调用 Release 释放动态载荷。
type EncMessage struct {
	Header      *Header
	SA          *SAPayload
	KeyExchange *KeyExchangePayload
	IDi         *IDPayload
	IDr         *IDPayload
	Cert        *CertPayload
	CertReq     *CertReqPayload
	Hash        *HashPayload
	Signature   *SignaturePayload
	Nonce       *NoncePayload
	Notify      *NotifyPayload // 链表头
	Delete      *DeletePayload // 链表头
}

// Build 按 SA, KE, NONCE, IDi, IDr, CERT, CERTREQ, HASH, SIG, N..., D... 的顺序串联非空槽位。
// 需要其他顺序时直接调用 Chain。
func (m *EncMessage) Build() {
	var ps []Payload
	if m.SA != nil {
		ps = append(ps, m.SA)
	}
	if m.KeyExchange != nil {
		ps = append(ps, m.KeyExchange)
	}
	if m.Nonce != nil {
		ps = append(ps, m.Nonce)
	}
	if m.IDi != nil {
		ps = append(ps, m.IDi)
	}
	if m.IDr != nil {
		ps = append(ps, m.IDr)
	}
	if m.Cert != nil {
		ps = append(ps, m.Cert)
	}
	if m.CertReq != nil {
		ps = append(ps, m.CertReq)
	}
	if m.Hash != nil {
		ps = append(ps, m.Hash)
	}
	if m.Signature != nil {
		ps = append(ps, m.Signature)
	}
	for n := m.Notify; n != nil; {
		ps = append(ps, n)
		n, _ = n.Next.(*NotifyPayload)
	}
	for d := m.Delete; d != nil; {
		ps = append(ps, d)
		d, _ = d.Next.(*DeletePayload)
	}
	Chain(m.Header, ps...)
}

// Release 断开链并丢弃通知、删除链以及动态构造的认证数据
func (m *EncMessage) Release() {
	if m.Header != nil {
		var next Payload = m.Header.Next
		m.Header.Next = nil
		for next != nil {
			h := next.payloadHeader()
			next, h.Next = h.Next, nil
		}
	}
	m.Notify = nil
	m.Delete = nil
	if m.Hash != nil {
		m.Hash.Data = nil
	}
	if m.Signature != nil {
		m.Signature.Data = nil
	}
}

// DecMessage 入站消息模板。
// 非 nil 槽位须指向零值载荷并用 MarkRequired/MarkOptional 标记；
// nil 槽位表示该载荷不允许出现。
type DecMessage struct {
	Header      *Header
	SA          *SAPayload
	KeyExchange *KeyExchangePayload
	IDi         *IDPayload
	IDr         *IDPayload
	Cert        *CertPayload
	CertReq     *CertReqPayload
	Hash        *HashPayload
	Signature   *SignaturePayload
	Nonce       *NoncePayload
	Notify      *NotifyPayload
	Delete      *DeletePayload

	SAPolicy SAPolicy
}

type slot struct {
	name string
	hdr  *PayloadHeader
}

// slots 按声明顺序返回头部之后的非 nil 槽位
func (m *DecMessage) slots() []slot {
	s := make([]slot, 0, 11)
	if m.SA != nil {
		s = append(s, slot{"SA", &m.SA.PayloadHeader})
	}
	if m.KeyExchange != nil {
		s = append(s, slot{"KE", &m.KeyExchange.PayloadHeader})
	}
	if m.IDi != nil {
		s = append(s, slot{"IDi", &m.IDi.PayloadHeader})
	}
	if m.IDr != nil {
		s = append(s, slot{"IDr", &m.IDr.PayloadHeader})
	}
	if m.Cert != nil {
		s = append(s, slot{"CERT", &m.Cert.PayloadHeader})
	}
	if m.CertReq != nil {
		s = append(s, slot{"CERTREQ", &m.CertReq.PayloadHeader})
	}
	if m.Hash != nil {
		s = append(s, slot{"HASH", &m.Hash.PayloadHeader})
	}
	if m.Signature != nil {
		s = append(s, slot{"SIG", &m.Signature.PayloadHeader})
	}
	if m.Nonce != nil {
		s = append(s, slot{"NONCE", &m.Nonce.PayloadHeader})
	}
	if m.Notify != nil {
		s = append(s, slot{"N", &m.Notify.PayloadHeader})
	}
	if m.Delete != nil {
		s = append(s, slot{"D", &m.Delete.PayloadHeader})
	}
	return s
}

// EncodePayload 按具体类型分派到对应的编码函数
func EncodePayload(b []byte, p Payload) (int, error) {
	switch pl := p.(type) {
	case *SAPayload:
		return EncodeSAPayload(b, pl)
	case *KeyExchangePayload:
		return EncodeKeyExchangePayload(b, pl)
	case *IDPayload:
		return EncodeIDPayload(b, pl)
	case *CertPayload:
		return EncodeCertPayload(b, pl)
	case *CertReqPayload:
		return EncodeCertReqPayload(b, pl)
	case *HashPayload:
		return EncodeHashPayload(b, pl)
	case *SignaturePayload:
		return EncodeSignaturePayload(b, pl)
	case *NoncePayload:
		return EncodeNoncePayload(b, pl)
	case *NotifyPayload:
		return EncodeNotifyPayload(b, pl)
	case *DeletePayload:
		return EncodeDeletePayload(b, pl)
	case *VendorIDPayload:
		return EncodeVendorIDPayload(b, pl)
	}
	return 0, invalidf("载荷类型 %T 不能单独编码", p)
}

// EncodeMessage 从 h.Next 开始编码整条链，最后写入带总长度的头部。
// 返回消息总长度。
func EncodeMessage(b []byte, h *Header) (int, error) {
	if len(b) < HEADER_LEN {
		return 0, shortf("编码消息需要至少 %d 字节", HEADER_LEN)
	}
	if h.Next == nil {
		return 0, invalidf("消息没有载荷")
	}
	off := HEADER_LEN
	for p := h.Next; p != nil; p = p.payloadHeader().Next {
		n, err := EncodePayload(b[off:], p)
		if err != nil {
			return 0, errors.WithMessagef(err, "编码 %s 载荷", p.Kind())
		}
		off += n
	}
	h.Length = uint32(off)
	if err := EncodeHeader(b, h); err != nil {
		return 0, err
	}
	return off, nil
}

// DecodeMessage 按模板解码 b 中头部之后的载荷。
// m.Header 必须已经由 DecodeHeader 填充。解码出的变长字段引用 b。
// 失败时 m 处于部分填充状态，调用方应丢弃。
func DecodeMessage(b []byte, m *DecMessage) error {
	if m.Header == nil {
		return invalidf("模板缺少头部")
	}
	limit := len(b)
	if l := int(m.Header.Length); l >= HEADER_LEN && l < limit {
		limit = l
	}
	if limit < HEADER_LEN {
		return shortf("消息长度 %d 小于头部", limit)
	}

	var vid VendorIDPayload
	off := HEADER_LEN
	cur := m.Header.FirstPayload
	for cur != PayloadNone {
		if off >= limit {
			return shortf("载荷 %s 超出消息末尾", cur)
		}
		src := b[off:limit]

		var (
			next   PayloadType
			err    error
			plen   uint16
			target string
		)
		switch cur {
		case PayloadSA:
			if m.SA == nil {
				return unexpected(cur)
			}
			next, err = DecodeSAPayload(src, m.SA, m.SAPolicy)
			plen = m.SA.PayloadLength
		case PayloadKeyExchange:
			if m.KeyExchange == nil {
				return unexpected(cur)
			}
			next, err = DecodeKeyExchangePayload(src, m.KeyExchange)
			plen = m.KeyExchange.PayloadLength
		case PayloadID:
			id := m.IDi
			if id != nil && id.IsPresent() && m.IDr != nil {
				id = m.IDr
				target = "IDr"
			}
			if id == nil {
				return unexpected(cur)
			}
			next, err = DecodeIDPayload(src, id)
			plen = id.PayloadLength
		case PayloadCert:
			if m.Cert == nil {
				return unexpected(cur)
			}
			next, err = DecodeCertPayload(src, m.Cert)
			plen = m.Cert.PayloadLength
		case PayloadCertReq:
			if m.CertReq == nil {
				return unexpected(cur)
			}
			next, err = DecodeCertReqPayload(src, m.CertReq)
			plen = m.CertReq.PayloadLength
		case PayloadHash:
			if m.Hash == nil {
				return unexpected(cur)
			}
			if m.Signature != nil && m.Signature.IsPresent() {
				return errors.Wrap(ErrDuplicatePayload, "HASH 与 SIG 只能出现一个")
			}
			next, err = DecodeHashPayload(src, m.Hash)
			plen = m.Hash.PayloadLength
		case PayloadSignature:
			if m.Signature == nil {
				return unexpected(cur)
			}
			if m.Hash != nil && m.Hash.IsPresent() {
				return errors.Wrap(ErrDuplicatePayload, "HASH 与 SIG 只能出现一个")
			}
			next, err = DecodeSignaturePayload(src, m.Signature)
			plen = m.Signature.PayloadLength
		case PayloadNonce:
			if m.Nonce == nil {
				return unexpected(cur)
			}
			next, err = DecodeNoncePayload(src, m.Nonce)
			plen = m.Nonce.PayloadLength
		case PayloadNotify:
			if m.Notify == nil {
				return unexpected(cur)
			}
			next, err = DecodeNotifyPayload(src, m.Notify)
			plen = m.Notify.PayloadLength
		case PayloadDelete:
			if m.Delete == nil {
				return unexpected(cur)
			}
			next, err = DecodeDeletePayload(src, m.Delete)
			plen = m.Delete.PayloadLength
		case PayloadVendorID:
			// 厂商 ID 不交给调用方
			vid = VendorIDPayload{}
			vid.MarkOptional()
			next, err = DecodeVendorIDPayload(src, &vid)
			plen = vid.PayloadLength
			if err == nil {
				logger.Debug("忽略厂商 ID 载荷", logger.Binary("vid", vid.Data))
			}
		default:
			return unexpected(cur)
		}
		if err != nil {
			if target != "" {
				return errors.WithMessage(err, target)
			}
			return err
		}

		off += int(plen)
		cur = next
	}
	return checkMissingPayloads(m)
}

func unexpected(t PayloadType) error {
	return errors.Wrapf(ErrUnexpectedPayload, "载荷 %s", t)
}

// checkMissingPayloads 确认没有槽位仍处于必需占位状态
func checkMissingPayloads(m *DecMessage) error {
	for _, s := range m.slots() {
		if s.hdr.IsRequired() {
			return errors.Wrapf(ErrMissingPayload, "载荷 %s", s.name)
		}
	}
	return nil
}

// GetMessageLength 沿通用头部计算消息的数据长度，不做解码
func GetMessageLength(b []byte) (int, error) {
	if len(b) < HEADER_LEN {
		return 0, shortf("消息只有 %d 字节", len(b))
	}
	off := HEADER_LEN
	next := PayloadType(b[16])
	for next != PayloadNone {
		if off+PAYLOAD_HEADER_LEN > len(b) {
			return 0, shortf("载荷 %s 头部越界", next)
		}
		plen := int(binary.BigEndian.Uint16(b[off+2 : off+4]))
		if plen < PAYLOAD_HEADER_LEN || off+plen > len(b) {
			return 0, shortf("载荷 %s 长度 %d 越界", next, plen)
		}
		next = PayloadType(b[off])
		off += plen
	}
	return off, nil
}

// ExtractRawPayload 复制第一个指定类型载荷的数据体 (不含通用头部)
func ExtractRawPayload(b []byte, t PayloadType) ([]byte, error) {
	if len(b) < HEADER_LEN {
		return nil, shortf("消息只有 %d 字节", len(b))
	}
	off := HEADER_LEN
	cur := PayloadType(b[16])
	for cur != PayloadNone {
		if off+PAYLOAD_HEADER_LEN > len(b) {
			return nil, shortf("载荷 %s 头部越界", cur)
		}
		plen := int(binary.BigEndian.Uint16(b[off+2 : off+4]))
		if plen < PAYLOAD_HEADER_LEN || off+plen > len(b) {
			return nil, shortf("载荷 %s 长度 %d 越界", cur, plen)
		}
		if cur == t {
			out := make([]byte, plen-PAYLOAD_HEADER_LEN)
			copy(out, b[off+PAYLOAD_HEADER_LEN:off+plen])
			return out, nil
		}
		cur = PayloadType(b[off])
		off += plen
	}
	return nil, errors.Wrapf(ErrNotFound, "载荷 %s", t)
}
