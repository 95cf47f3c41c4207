package isakmp

import (
	"encoding/binary"

	"github.com/pkg/errors"

	"github.com/iniwex5/isakmp-go/pkg/logger"
)

// SAPolicy 决定 SA 中提议数量超出 MaxProposals 时的处理方式
type SAPolicy uint8

const (
	SAPolicyStrict  SAPolicy = iota // 返回 ErrTooManyProposals
	SAPolicyPartial                 // 只保留前 MaxProposals 个提议并标记 Partial
)

// 安全关联载荷 (RFC 2408 3.4 节)
type SAPayload struct {
	PayloadHeader
	DOI          uint32
	Situation    uint32
	Proposals    [MaxProposals]Proposal
	NumProposals uint8
	Partial      bool
}

func (p *SAPayload) Kind() PayloadType { return PayloadSA }

// AddProposal 追加提议，超出容量返回 ErrTooManyProposals
func (p *SAPayload) AddProposal(prop Proposal) error {
	if int(p.NumProposals) >= MaxProposals {
		return errors.Wrapf(ErrTooManyProposals, "已有 %d 个提议", p.NumProposals)
	}
	p.Proposals[p.NumProposals] = prop
	p.NumProposals++
	return nil
}

// ProposalList 返回已填充的提议
func (p *SAPayload) ProposalList() []Proposal {
	return p.Proposals[:p.NumProposals]
}

// 提议载荷 (RFC 2408 3.5 节)，只出现在 SA 载荷内部
type Proposal struct {
	PayloadLength uint16
	Number        uint8
	ProtocolID    uint8
	SPI           []byte
	Transforms    [MaxTransforms]Transform
	NumTransforms uint8
}

// AddTransform 追加变换，超出容量返回 ErrTooManyTransforms
func (p *Proposal) AddTransform(t Transform) error {
	if int(p.NumTransforms) >= MaxTransforms {
		return errors.Wrapf(ErrTooManyTransforms, "提议 %d 已有 %d 个变换", p.Number, p.NumTransforms)
	}
	p.Transforms[p.NumTransforms] = t
	p.NumTransforms++
	return nil
}

// TransformList 返回已填充的变换
func (p *Proposal) TransformList() []Transform {
	return p.Transforms[:p.NumTransforms]
}

// 变换载荷 (RFC 2408 3.6 节)，只出现在提议载荷内部
type Transform struct {
	PayloadLength uint16
	Number        uint8
	ID            uint8
	Attributes    [MaxSAAttributes]Attribute
	NumAttributes uint8

	values [MaxSAAttributes][MaxAttributeValueLen]byte
}

// AddAttribute 追加一个 TV 格式属性
func (t *Transform) AddAttribute(typ, value uint16) error {
	return t.push(NewBasicAttribute(typ, value))
}

// AddVariableAttribute 追加一个 4 字节 TLV 格式属性
func (t *Transform) AddVariableAttribute(typ uint16, value uint32) error {
	if int(t.NumAttributes) >= MaxSAAttributes {
		return errors.Wrapf(ErrTooManyAttributes, "变换 %d", t.Number)
	}
	a := EncodeAttributeValue(typ, value, &t.values[t.NumAttributes])
	return t.push(a)
}

func (t *Transform) push(a Attribute) error {
	if int(t.NumAttributes) >= MaxSAAttributes {
		return errors.Wrapf(ErrTooManyAttributes, "变换 %d", t.Number)
	}
	t.Attributes[t.NumAttributes] = a
	t.NumAttributes++
	return nil
}

// AttributeList 返回已填充的属性
func (t *Transform) AttributeList() []Attribute {
	return t.Attributes[:t.NumAttributes]
}

// Attribute 按类型查找属性
func (t *Transform) Attribute(typ uint16) (*Attribute, bool) {
	for i := range t.AttributeList() {
		if t.Attributes[i].AttrType() == typ&ATTRIB_TYPE_MASK {
			return &t.Attributes[i], true
		}
	}
	return nil, false
}

func (t *Transform) size() int {
	n := MIN_TRANSFORM_LEN
	for i := range t.AttributeList() {
		n += t.Attributes[i].RawLength()
	}
	return n
}

func (p *Proposal) size() int {
	n := MIN_PROPOSAL_LEN + len(p.SPI)
	for i := range p.TransformList() {
		n += p.Transforms[i].size()
	}
	return n
}

func (p *SAPayload) size() int {
	n := MIN_SA_LEN + SA_SITUATION_LEN
	for i := range p.ProposalList() {
		n += p.Proposals[i].size()
	}
	return n
}

// EncodeSAPayload 编码 SA 及其嵌套的提议和变换
func EncodeSAPayload(b []byte, p *SAPayload) (int, error) {
	if p.NumProposals == 0 {
		return 0, invalidf("SA 载荷没有提议")
	}
	n := p.size()
	if err := fitsIn(b, n, " SA 载荷"); err != nil {
		return 0, err
	}
	for i := range p.ProposalList() {
		if len(p.Proposals[i].SPI) > MaxSPILen {
			return 0, invalidf("提议 %d 的 SPI 长度 %d 超出上限", i, len(p.Proposals[i].SPI))
		}
		if p.Proposals[i].NumTransforms == 0 {
			return 0, invalidf("提议 %d 没有变换", i)
		}
		for j := range p.Proposals[i].TransformList() {
			tr := &p.Proposals[i].Transforms[j]
			for k := range tr.AttributeList() {
				a := &tr.Attributes[k]
				if !a.IsTV() && int(a.LenVal) > len(a.Value) {
					return 0, invalidf("变换 %d 属性 %d 长度不一致", j, k)
				}
			}
		}
	}

	encodePayloadHeader(b, p.NextType(), n)
	binary.BigEndian.PutUint32(b[4:8], p.DOI)
	binary.BigEndian.PutUint32(b[8:12], p.Situation)
	off := MIN_SA_LEN + SA_SITUATION_LEN
	for i := range p.ProposalList() {
		off += encodeProposal(b[off:], &p.Proposals[i], i == int(p.NumProposals)-1)
	}
	p.PayloadLength = uint16(n)
	return n, nil
}

// encodeProposal 写入已校验过大小的提议
func encodeProposal(b []byte, p *Proposal, last bool) int {
	n := p.size()
	next := PayloadProposal
	if last {
		next = PayloadNone
	}
	encodePayloadHeader(b, next, n)
	b[4] = p.Number
	b[5] = p.ProtocolID
	b[6] = uint8(len(p.SPI))
	b[7] = p.NumTransforms
	off := MIN_PROPOSAL_LEN
	off += copy(b[off:], p.SPI)
	for i := range p.TransformList() {
		off += encodeTransform(b[off:], &p.Transforms[i], i == int(p.NumTransforms)-1)
	}
	p.PayloadLength = uint16(n)
	return n
}

func encodeTransform(b []byte, t *Transform, last bool) int {
	n := t.size()
	next := PayloadTransform
	if last {
		next = PayloadNone
	}
	encodePayloadHeader(b, next, n)
	b[4] = t.Number
	b[5] = t.ID
	binary.BigEndian.PutUint16(b[6:8], 0)
	off := MIN_TRANSFORM_LEN
	for i := range t.AttributeList() {
		m, _ := EncodeAttribute(b[off:], &t.Attributes[i])
		off += m
	}
	t.PayloadLength = uint16(n)
	return n
}

// DecodeSAPayload 解码 SA 载荷，返回下一个载荷类型
func DecodeSAPayload(b []byte, p *SAPayload, policy SAPolicy) (PayloadType, error) {
	if p.IsPresent() {
		return PayloadNone, errors.Wrap(ErrDuplicatePayload, "SA")
	}
	next, length, err := decodePayloadHeader(b, MIN_SA_LEN+SA_SITUATION_LEN)
	if err != nil {
		return next, err
	}
	p.Type = PayloadSA
	p.PayloadLength = uint16(length)
	p.DOI = binary.BigEndian.Uint32(b[4:8])
	p.Situation = binary.BigEndian.Uint32(b[8:12])
	if p.DOI != DOI_IPSEC {
		return next, errors.Wrapf(ErrUnsupportedDOI, "SA DOI=%d", p.DOI)
	}
	if p.Situation != SIT_IDENTITY_ONLY {
		return next, errors.Wrapf(ErrUnsupportedSituation, "SA situation=%d", p.Situation)
	}

	off := MIN_SA_LEN + SA_SITUATION_LEN
	nextProp := PayloadNone
	p.NumProposals = 0
	p.Partial = false
	for i := 0; i < MaxProposals; i++ {
		if off+MIN_PROPOSAL_LEN > length {
			return next, invalidf("SA 中第 %d 个提议越界", i)
		}
		nextProp, err = decodeProposal(b[off:length], &p.Proposals[i])
		if err != nil {
			logger.Debug("无法解码提议载荷", logger.Int("index", i), logger.Err(err))
			return next, err
		}
		p.NumProposals = uint8(i + 1)
		off += int(p.Proposals[i].PayloadLength)
		if nextProp == PayloadNone {
			break
		}
		if nextProp != PayloadProposal {
			return next, invalidf("提议链中出现类型 %s", nextProp)
		}
	}

	if nextProp != PayloadNone {
		if policy == SAPolicyPartial {
			logger.Debug("SA 中提议过多，只保留前几个", logger.Int("max", MaxProposals))
			p.Partial = true
			return next, nil
		}
		return next, errors.Wrapf(ErrTooManyProposals, "上限 %d", MaxProposals)
	}
	if off != length {
		return next, invalidf("SA 载荷长度 %d 与提议总长 %d 不符", length, off)
	}
	return next, nil
}

func decodeProposal(b []byte, p *Proposal) (PayloadType, error) {
	next, length, err := decodePayloadHeader(b, MIN_PROPOSAL_LEN)
	if err != nil {
		return next, err
	}
	p.PayloadLength = uint16(length)
	p.Number = b[4]
	p.ProtocolID = b[5]
	spiLen := int(b[6])
	numTrans := int(b[7])
	if numTrans > MaxTransforms {
		return next, errors.Wrapf(ErrTooManyTransforms, "提议声明 %d 个变换", numTrans)
	}
	if numTrans == 0 {
		return next, invalidf("提议没有变换")
	}
	off := MIN_PROPOSAL_LEN + spiLen
	if off > length {
		return next, invalidf("SPI 长度 %d 超出提议长度 %d", spiLen, length)
	}
	p.SPI = b[MIN_PROPOSAL_LEN:off:off]

	p.NumTransforms = 0
	for i := 0; i < numTrans; i++ {
		if off+MIN_TRANSFORM_LEN > length {
			return next, invalidf("提议中第 %d 个变换越界", i)
		}
		nextTrans, err := decodeTransform(b[off:length], &p.Transforms[i])
		if err != nil {
			return next, err
		}
		p.NumTransforms = uint8(i + 1)
		off += int(p.Transforms[i].PayloadLength)

		last := i == numTrans-1
		switch {
		case nextTrans == PayloadTransform && !last:
		case nextTrans == PayloadNone && last:
		case nextTrans == PayloadTransform && last:
			return next, errors.Wrapf(ErrTooManyTransforms, "变换数量超过声明的 %d", numTrans)
		default:
			return next, invalidf("变换链中出现类型 %s", nextTrans)
		}
	}
	if off != length {
		return next, invalidf("提议长度 %d 与变换总长 %d 不符", length, off)
	}
	return next, nil
}

func decodeTransform(b []byte, t *Transform) (PayloadType, error) {
	next, length, err := decodePayloadHeader(b, MIN_TRANSFORM_LEN)
	if err != nil {
		return next, err
	}
	t.PayloadLength = uint16(length)
	t.Number = b[4]
	t.ID = b[5]

	off := MIN_TRANSFORM_LEN
	t.NumAttributes = 0
	for off < length {
		if int(t.NumAttributes) >= MaxSAAttributes {
			return next, errors.Wrapf(ErrTooManyAttributes, "变换 %d", t.Number)
		}
		n, err := DecodeAttribute(b[off:length], &t.Attributes[t.NumAttributes])
		if err != nil {
			return next, invalidf("变换 %d 的属性越界: %v", t.Number, err)
		}
		t.NumAttributes++
		off += n
	}
	return next, nil
}
