package isakmp

import (
	"encoding/binary"
	"net"

	"github.com/pkg/errors"
)

// 标识载荷 (RFC 2408 3.8 节, RFC 2407 4.6.2 节)
type IDPayload struct {
	PayloadHeader
	IDType     IDType
	ProtocolID uint8
	Port       uint16
	Data       []byte
}

func (p *IDPayload) Kind() PayloadType { return PayloadID }

// IP 在 ID 为单个地址时返回该地址
func (p *IDPayload) IP() net.IP {
	switch p.IDType {
	case IDIPv4Addr:
		if len(p.Data) == net.IPv4len {
			return net.IP(p.Data)
		}
	case IDIPv6Addr:
		if len(p.Data) == net.IPv6len {
			return net.IP(p.Data)
		}
	}
	return nil
}

func EncodeIDPayload(b []byte, p *IDPayload) (int, error) {
	n := MIN_ID_LEN + len(p.Data)
	if err := fitsIn(b, n, "标识载荷"); err != nil {
		return 0, err
	}
	encodePayloadHeader(b, p.NextType(), n)
	b[4] = uint8(p.IDType)
	b[5] = p.ProtocolID
	binary.BigEndian.PutUint16(b[6:8], p.Port)
	copy(b[MIN_ID_LEN:n], p.Data)
	p.PayloadLength = uint16(n)
	return n, nil
}

func DecodeIDPayload(b []byte, p *IDPayload) (PayloadType, error) {
	if p.IsPresent() {
		return PayloadNone, errors.Wrap(ErrDuplicatePayload, "ID")
	}
	next, length, err := decodePayloadHeader(b, MIN_ID_LEN+1)
	if err != nil {
		return next, err
	}
	p.Type = PayloadID
	p.PayloadLength = uint16(length)
	p.IDType = IDType(b[4])
	p.ProtocolID = b[5]
	p.Port = binary.BigEndian.Uint16(b[6:8])
	p.Data = b[MIN_ID_LEN:length:length]
	return next, nil
}
