package isakmp

import "fmt"

// 固定长度 (RFC 2408 3.1 - 3.15 节)
const (
	HEADER_LEN         = 28
	PAYLOAD_HEADER_LEN = 4
	ATTRIB_HEADER_LEN  = 4

	MIN_SA_LEN        = 8
	SA_SITUATION_LEN  = 4
	MIN_PROPOSAL_LEN  = 8
	MIN_TRANSFORM_LEN = 8
	MIN_KE_LEN        = 4
	MIN_ID_LEN        = 8
	MIN_CERT_LEN      = 5
	MIN_CERTREQ_LEN   = 5
	MIN_HASH_LEN      = 4
	MIN_SIG_LEN       = 4
	MIN_NONCE_LEN     = 4
	MIN_NOTIFY_LEN    = 12
	MIN_DELETE_LEN    = 12
	MIN_VID_LEN       = 4
)

// 静态容量
const (
	MaxProposals         = 4
	MaxTransforms        = 5
	MaxSAAttributes      = 8
	MaxDeleteSPI         = 2
	MaxSPILen            = 16
	MaxAttributeValueLen = 4

	MinNonceDataLen = 8
	MaxNonceDataLen = 256
)

const (
	MajorVersion = 1
	MinorVersion = 0

	DOI_IPSEC          uint32 = 1
	SIT_IDENTITY_ONLY  uint32 = 1
	IPSEC_PROTO_ISAKMP uint8  = 1
)

// PayloadType 载荷类型 (RFC 2408 3.1 节)
type PayloadType uint8

const (
	PayloadNone        PayloadType = 0
	PayloadSA          PayloadType = 1
	PayloadProposal    PayloadType = 2
	PayloadTransform   PayloadType = 3
	PayloadKeyExchange PayloadType = 4
	PayloadID          PayloadType = 5
	PayloadCert        PayloadType = 6
	PayloadCertReq     PayloadType = 7
	PayloadHash        PayloadType = 8
	PayloadSignature   PayloadType = 9
	PayloadNonce       PayloadType = 10
	PayloadNotify      PayloadType = 11
	PayloadDelete      PayloadType = 12
	PayloadVendorID    PayloadType = 13

	// 解码模板占位标记。零值即 "必需且尚未出现"
	PayloadRequired PayloadType = PayloadNone
	PayloadOptional PayloadType = 127
)

func (t PayloadType) String() string {
	switch t {
	case PayloadNone:
		return "NONE"
	case PayloadSA:
		return "SA"
	case PayloadProposal:
		return "PROPOSAL"
	case PayloadTransform:
		return "TRANSFORM"
	case PayloadKeyExchange:
		return "KE"
	case PayloadID:
		return "ID"
	case PayloadCert:
		return "CERT"
	case PayloadCertReq:
		return "CERTREQ"
	case PayloadHash:
		return "HASH"
	case PayloadSignature:
		return "SIG"
	case PayloadNonce:
		return "NONCE"
	case PayloadNotify:
		return "N"
	case PayloadDelete:
		return "D"
	case PayloadVendorID:
		return "VID"
	case PayloadOptional:
		return "OPTIONAL"
	}
	return fmt.Sprintf("PAYLOAD(%d)", uint8(t))
}

// ExchangeType 交换类型
type ExchangeType uint8

const (
	ExchangeBase          ExchangeType = 1
	ExchangeIdentityProt  ExchangeType = 2
	ExchangeAuthOnly      ExchangeType = 3
	ExchangeAggressive    ExchangeType = 4
	ExchangeInformational ExchangeType = 5
	ExchangeQuickMode     ExchangeType = 32
	ExchangeNewGroup      ExchangeType = 33

	// IKE_SA_INIT: 唯一在会话密钥存在前进行的交换
	ExchangeIKESAInit ExchangeType = 34
)

// 头部标志位
const (
	FlagEncryption = 1 << 0 // E
	FlagCommit     = 1 << 1 // C
	FlagAuthOnly   = 1 << 2 // A
)

// 属性格式位
const (
	ATTRIB_AF_MASK   uint16 = 0x8000
	ATTRIB_AF_TLV    uint16 = 0x0000
	ATTRIB_AF_TV     uint16 = 0x8000
	ATTRIB_TYPE_MASK uint16 = 0x7fff
)

// IDType 标识类型 (RFC 2407 4.6.2.1 节)
type IDType uint8

const (
	IDIPv4Addr       IDType = 1
	IDFQDN           IDType = 2
	IDUserFQDN       IDType = 3
	IDIPv4AddrSubnet IDType = 4
	IDIPv6Addr       IDType = 5
	IDIPv6AddrSubnet IDType = 6
	IDIPv4AddrRange  IDType = 7
	IDIPv6AddrRange  IDType = 8
	IDDerASN1DN      IDType = 9
	IDDerASN1GN      IDType = 10
	IDKeyID          IDType = 11
)
