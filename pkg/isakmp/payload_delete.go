package isakmp

import (
	"encoding/binary"

	"github.com/pkg/errors"
)

// 删除载荷 (RFC 2408 3.15 节)。出站消息中可以串成链
type DeletePayload struct {
	PayloadHeader
	DOI        uint32
	ProtocolID uint8
	SPISize    uint8
	NumSPIs    uint16
	SPIs       []byte // SPISize * NumSPIs 字节
}

func (p *DeletePayload) Kind() PayloadType { return PayloadDelete }

// SPI 返回第 i 个 SPI
func (p *DeletePayload) SPI(i int) []byte {
	if i < 0 || i >= int(p.NumSPIs) {
		return nil
	}
	s := int(p.SPISize)
	return p.SPIs[i*s : (i+1)*s]
}

func EncodeDeletePayload(b []byte, p *DeletePayload) (int, error) {
	if p.NumSPIs == 0 || p.NumSPIs > MaxDeleteSPI {
		return 0, invalidf("删除载荷 SPI 数量 %d", p.NumSPIs)
	}
	spis := int(p.SPISize) * int(p.NumSPIs)
	if len(p.SPIs) < spis {
		return 0, invalidf("删除载荷 SPI 数据只有 %d 字节，需要 %d", len(p.SPIs), spis)
	}
	n := MIN_DELETE_LEN + spis
	if err := fitsIn(b, n, "删除载荷"); err != nil {
		return 0, err
	}
	encodePayloadHeader(b, p.NextType(), n)
	binary.BigEndian.PutUint32(b[4:8], p.DOI)
	b[8] = p.ProtocolID
	b[9] = p.SPISize
	binary.BigEndian.PutUint16(b[10:12], p.NumSPIs)
	copy(b[MIN_DELETE_LEN:n], p.SPIs[:spis])
	p.PayloadLength = uint16(n)
	return n, nil
}

func DecodeDeletePayload(b []byte, p *DeletePayload) (PayloadType, error) {
	if p.IsPresent() {
		return PayloadNone, errors.Wrap(ErrDuplicatePayload, "D")
	}
	next, length, err := decodePayloadHeader(b, MIN_DELETE_LEN)
	if err != nil {
		return next, err
	}
	p.Type = PayloadDelete
	p.PayloadLength = uint16(length)
	p.DOI = binary.BigEndian.Uint32(b[4:8])
	if p.DOI != DOI_IPSEC {
		return next, errors.Wrapf(ErrUnsupportedDOI, "删除 DOI=%d", p.DOI)
	}
	p.ProtocolID = b[8]
	p.SPISize = b[9]
	p.NumSPIs = binary.BigEndian.Uint16(b[10:12])
	if p.NumSPIs == 0 || p.NumSPIs > MaxDeleteSPI {
		return next, invalidf("删除载荷 SPI 数量 %d", p.NumSPIs)
	}
	if length != MIN_DELETE_LEN+int(p.SPISize)*int(p.NumSPIs) {
		return next, invalidf("删除载荷长度 %d 与 SPI 总长不符", length)
	}
	p.SPIs = b[MIN_DELETE_LEN:length:length]
	return next, nil
}
