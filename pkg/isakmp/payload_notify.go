package isakmp

import (
	"encoding/binary"

	"github.com/pkg/errors"
)

// 通知消息类型 (RFC 2408 3.14.1 节，节选)
const (
	NotifyInvalidPayloadType   uint16 = 1
	NotifyDOINotSupported      uint16 = 2
	NotifySituationUnsupported uint16 = 3
	NotifyInvalidCookie        uint16 = 4
	NotifyInvalidExchangeType  uint16 = 7
	NotifyInvalidFlags         uint16 = 8
	NotifyInvalidMessageID     uint16 = 9
	NotifyPayloadMalformed     uint16 = 16
	NotifyNoProposalChosen     uint16 = 14
	NotifyInvalidKeyInfo       uint16 = 17
	NotifyInvalidSPI           uint16 = 11
	NotifyAuthFailed           uint16 = 24

	NotifyCookie uint16 = 16390
)

// 通知载荷 (RFC 2408 3.14 节)。出站消息中可以串成链
type NotifyPayload struct {
	PayloadHeader
	DOI        uint32
	ProtocolID uint8
	NotifyType uint16
	SPI        []byte
	NotifyData []byte
}

func (p *NotifyPayload) Kind() PayloadType { return PayloadNotify }

func EncodeNotifyPayload(b []byte, p *NotifyPayload) (int, error) {
	if len(p.SPI) > 0xff {
		return 0, invalidf("通知 SPI 长度 %d", len(p.SPI))
	}
	n := MIN_NOTIFY_LEN + len(p.SPI) + len(p.NotifyData)
	if err := fitsIn(b, n, "通知载荷"); err != nil {
		return 0, err
	}
	encodePayloadHeader(b, p.NextType(), n)
	binary.BigEndian.PutUint32(b[4:8], p.DOI)
	b[8] = p.ProtocolID
	b[9] = uint8(len(p.SPI))
	binary.BigEndian.PutUint16(b[10:12], p.NotifyType)
	off := MIN_NOTIFY_LEN
	off += copy(b[off:], p.SPI)
	copy(b[off:n], p.NotifyData)
	p.PayloadLength = uint16(n)
	return n, nil
}

func DecodeNotifyPayload(b []byte, p *NotifyPayload) (PayloadType, error) {
	if p.IsPresent() {
		return PayloadNone, errors.Wrap(ErrDuplicatePayload, "N")
	}
	next, length, err := decodePayloadHeader(b, MIN_NOTIFY_LEN)
	if err != nil {
		return next, err
	}
	p.Type = PayloadNotify
	p.PayloadLength = uint16(length)
	p.DOI = binary.BigEndian.Uint32(b[4:8])
	if p.DOI != DOI_IPSEC {
		return next, errors.Wrapf(ErrUnsupportedDOI, "通知 DOI=%d", p.DOI)
	}
	p.ProtocolID = b[8]
	spiLen := int(b[9])
	p.NotifyType = binary.BigEndian.Uint16(b[10:12])
	off := MIN_NOTIFY_LEN + spiLen
	if off > length {
		return next, invalidf("通知 SPI 长度 %d 超出载荷长度 %d", spiLen, length)
	}
	p.SPI = b[MIN_NOTIFY_LEN:off:off]
	p.NotifyData = b[off:length:length]
	return next, nil
}
