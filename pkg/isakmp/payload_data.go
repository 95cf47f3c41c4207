package isakmp

import "github.com/pkg/errors"

// 密钥交换载荷 (RFC 2408 3.7 节)
type KeyExchangePayload struct {
	PayloadHeader
	Data []byte
}

func (p *KeyExchangePayload) Kind() PayloadType { return PayloadKeyExchange }

// 哈希载荷 (RFC 2408 3.11 节)
type HashPayload struct {
	PayloadHeader
	Data []byte
}

func (p *HashPayload) Kind() PayloadType { return PayloadHash }

// 签名载荷 (RFC 2408 3.12 节)
type SignaturePayload struct {
	PayloadHeader
	Data []byte
}

func (p *SignaturePayload) Kind() PayloadType { return PayloadSignature }

// Nonce 载荷 (RFC 2408 3.13 节)
type NoncePayload struct {
	PayloadHeader
	Data []byte
}

func (p *NoncePayload) Kind() PayloadType { return PayloadNonce }

// 厂商 ID 载荷 (RFC 2408 3.16 节)
type VendorIDPayload struct {
	PayloadHeader
	Data []byte
}

func (p *VendorIDPayload) Kind() PayloadType { return PayloadVendorID }

// encodeOpaque 编码只有通用头部和数据体的载荷
func encodeOpaque(b []byte, h *PayloadHeader, data []byte, what string) (int, error) {
	n := PAYLOAD_HEADER_LEN + len(data)
	if err := fitsIn(b, n, what); err != nil {
		return 0, err
	}
	encodePayloadHeader(b, h.NextType(), n)
	copy(b[PAYLOAD_HEADER_LEN:n], data)
	h.PayloadLength = uint16(n)
	return n, nil
}

// decodeOpaque 解码只有通用头部和数据体的载荷，数据体不能为空
func decodeOpaque(b []byte, h *PayloadHeader, kind PayloadType) (PayloadType, []byte, error) {
	if h.IsPresent() {
		return PayloadNone, nil, errors.Wrap(ErrDuplicatePayload, kind.String())
	}
	next, length, err := decodePayloadHeader(b, PAYLOAD_HEADER_LEN+1)
	if err != nil {
		return next, nil, err
	}
	h.Type = kind
	h.PayloadLength = uint16(length)
	return next, b[PAYLOAD_HEADER_LEN:length:length], nil
}

func EncodeKeyExchangePayload(b []byte, p *KeyExchangePayload) (int, error) {
	return encodeOpaque(b, &p.PayloadHeader, p.Data, "密钥交换载荷")
}

func DecodeKeyExchangePayload(b []byte, p *KeyExchangePayload) (PayloadType, error) {
	next, data, err := decodeOpaque(b, &p.PayloadHeader, PayloadKeyExchange)
	if err != nil {
		return next, err
	}
	p.Data = data
	return next, nil
}

func EncodeHashPayload(b []byte, p *HashPayload) (int, error) {
	return encodeOpaque(b, &p.PayloadHeader, p.Data, "哈希载荷")
}

func DecodeHashPayload(b []byte, p *HashPayload) (PayloadType, error) {
	next, data, err := decodeOpaque(b, &p.PayloadHeader, PayloadHash)
	if err != nil {
		return next, err
	}
	p.Data = data
	return next, nil
}

func EncodeSignaturePayload(b []byte, p *SignaturePayload) (int, error) {
	return encodeOpaque(b, &p.PayloadHeader, p.Data, "签名载荷")
}

func DecodeSignaturePayload(b []byte, p *SignaturePayload) (PayloadType, error) {
	next, data, err := decodeOpaque(b, &p.PayloadHeader, PayloadSignature)
	if err != nil {
		return next, err
	}
	p.Data = data
	return next, nil
}

func EncodeNoncePayload(b []byte, p *NoncePayload) (int, error) {
	return encodeOpaque(b, &p.PayloadHeader, p.Data, " Nonce 载荷")
}

// DecodeNoncePayload 解码 Nonce，数据长度必须在 [MinNonceDataLen, MaxNonceDataLen] 内
func DecodeNoncePayload(b []byte, p *NoncePayload) (PayloadType, error) {
	next, data, err := decodeOpaque(b, &p.PayloadHeader, PayloadNonce)
	if err != nil {
		return next, err
	}
	if len(data) < MinNonceDataLen || len(data) > MaxNonceDataLen {
		return next, invalidf("Nonce 长度 %d 不在 [%d, %d] 内", len(data), MinNonceDataLen, MaxNonceDataLen)
	}
	p.Data = data
	return next, nil
}

func EncodeVendorIDPayload(b []byte, p *VendorIDPayload) (int, error) {
	return encodeOpaque(b, &p.PayloadHeader, p.Data, "厂商 ID 载荷")
}

func DecodeVendorIDPayload(b []byte, p *VendorIDPayload) (PayloadType, error) {
	next, data, err := decodeOpaque(b, &p.PayloadHeader, PayloadVendorID)
	if err != nil {
		return next, err
	}
	p.Data = data
	return next, nil
}
