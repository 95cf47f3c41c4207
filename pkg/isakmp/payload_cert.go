package isakmp

import "github.com/pkg/errors"

// 证书编码 (RFC 2408 3.9 节)
const (
	CertPKCS7       uint8 = 1
	CertPGP         uint8 = 2
	CertDNSSigned   uint8 = 3
	CertX509Sig     uint8 = 4
	CertX509KeyExch uint8 = 5
	CertKerberos    uint8 = 6
	CertCRL         uint8 = 7
	CertARL         uint8 = 8
	CertSPKI        uint8 = 9
	CertX509Attr    uint8 = 10
)

// 证书载荷
type CertPayload struct {
	PayloadHeader
	Encoding uint8
	Data     []byte
}

func (p *CertPayload) Kind() PayloadType { return PayloadCert }

// 证书请求载荷 (RFC 2408 3.10 节)
// Authority 为空表示接受任意 CA
type CertReqPayload struct {
	PayloadHeader
	CertType  uint8
	Authority []byte
}

func (p *CertReqPayload) Kind() PayloadType { return PayloadCertReq }

func EncodeCertPayload(b []byte, p *CertPayload) (int, error) {
	n := MIN_CERT_LEN + len(p.Data)
	if err := fitsIn(b, n, "证书载荷"); err != nil {
		return 0, err
	}
	encodePayloadHeader(b, p.NextType(), n)
	b[4] = p.Encoding
	copy(b[MIN_CERT_LEN:n], p.Data)
	p.PayloadLength = uint16(n)
	return n, nil
}

func DecodeCertPayload(b []byte, p *CertPayload) (PayloadType, error) {
	if p.IsPresent() {
		return PayloadNone, errors.Wrap(ErrDuplicatePayload, "CERT")
	}
	next, length, err := decodePayloadHeader(b, MIN_CERT_LEN+1)
	if err != nil {
		return next, err
	}
	p.Type = PayloadCert
	p.PayloadLength = uint16(length)
	p.Encoding = b[4]
	p.Data = b[MIN_CERT_LEN:length:length]
	return next, nil
}

func EncodeCertReqPayload(b []byte, p *CertReqPayload) (int, error) {
	n := MIN_CERTREQ_LEN + len(p.Authority)
	if err := fitsIn(b, n, "证书请求载荷"); err != nil {
		return 0, err
	}
	encodePayloadHeader(b, p.NextType(), n)
	b[4] = p.CertType
	copy(b[MIN_CERTREQ_LEN:n], p.Authority)
	p.PayloadLength = uint16(n)
	return n, nil
}

func DecodeCertReqPayload(b []byte, p *CertReqPayload) (PayloadType, error) {
	if p.IsPresent() {
		return PayloadNone, errors.Wrap(ErrDuplicatePayload, "CERTREQ")
	}
	next, length, err := decodePayloadHeader(b, MIN_CERTREQ_LEN)
	if err != nil {
		return next, err
	}
	p.Type = PayloadCertReq
	p.PayloadLength = uint16(length)
	p.CertType = b[4]
	p.Authority = b[MIN_CERTREQ_LEN:length:length]
	return next, nil
}
