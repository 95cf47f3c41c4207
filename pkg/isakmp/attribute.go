package isakmp

import (
	"encoding/binary"

	"github.com/pkg/errors"
)

// Attribute SA 数据属性 (RFC 2408 3.3 节)
//
// Type 的最高位为 AF 位: 置位为 TV 格式，LenVal 即属性值；
// 清零为 TLV 格式，LenVal 为 Value 的长度。
// 解码得到的 Value 直接引用接收缓冲区。
type Attribute struct {
	Type   uint16
	LenVal uint16
	Value  []byte
}

// NewBasicAttribute 构造 TV 格式属性
func NewBasicAttribute(typ, value uint16) Attribute {
	return Attribute{Type: (typ & ATTRIB_TYPE_MASK) | ATTRIB_AF_TV, LenVal: value}
}

// NewVariableAttribute 构造 TLV 格式属性
func NewVariableAttribute(typ uint16, value []byte) Attribute {
	return Attribute{Type: typ & ATTRIB_TYPE_MASK, LenVal: uint16(len(value)), Value: value}
}

// IsTV 报告属性是否为 TV 格式
func (a *Attribute) IsTV() bool { return a.Type&ATTRIB_AF_MASK == ATTRIB_AF_TV }

// AttrType 返回去掉 AF 位后的属性类型
func (a *Attribute) AttrType() uint16 { return a.Type & ATTRIB_TYPE_MASK }

// RawLength 属性在线上的长度
func (a *Attribute) RawLength() int {
	if a.IsTV() {
		return ATTRIB_HEADER_LEN
	}
	return ATTRIB_HEADER_LEN + int(a.LenVal)
}

// EncodeAttribute 把属性写入 b，返回写入的字节数
func EncodeAttribute(b []byte, a *Attribute) (int, error) {
	if !a.IsTV() && int(a.LenVal) > len(a.Value) {
		return 0, invalidf("属性声明长度 %d 大于值长度 %d", a.LenVal, len(a.Value))
	}
	n := a.RawLength()
	if n > len(b) {
		return 0, shortf("编码属性需要 %d 字节，缓冲区仅 %d", n, len(b))
	}
	binary.BigEndian.PutUint16(b[0:2], a.Type)
	binary.BigEndian.PutUint16(b[2:4], a.LenVal)
	if !a.IsTV() {
		copy(b[ATTRIB_HEADER_LEN:n], a.Value[:a.LenVal])
	}
	return n, nil
}

// DecodeAttribute 从 b 解码一个属性，返回其原始长度
func DecodeAttribute(b []byte, a *Attribute) (int, error) {
	if len(b) < ATTRIB_HEADER_LEN {
		return 0, shortf("属性头部需要 %d 字节，实际 %d", ATTRIB_HEADER_LEN, len(b))
	}
	a.Type = binary.BigEndian.Uint16(b[0:2])
	a.LenVal = binary.BigEndian.Uint16(b[2:4])
	if a.IsTV() {
		a.Value = nil
		return ATTRIB_HEADER_LEN, nil
	}
	n := ATTRIB_HEADER_LEN + int(a.LenVal)
	if n > len(b) {
		return 0, shortf("属性值长度 %d 超出缓冲区", a.LenVal)
	}
	a.Value = b[ATTRIB_HEADER_LEN:n:n]
	return n, nil
}

// EncodeAttributeValue 把数值写成 4 字节 TLV 属性，buf 提供值的存储
func EncodeAttributeValue(typ uint16, value uint32, buf *[MaxAttributeValueLen]byte) Attribute {
	binary.BigEndian.PutUint32(buf[:], value)
	return Attribute{
		Type:   (typ & ATTRIB_TYPE_MASK) | ATTRIB_AF_TLV,
		LenVal: MaxAttributeValueLen,
		Value:  buf[:],
	}
}

// DecodeAttributeValue 取出属性的数值，TLV 值最长 4 字节，高位补零
func DecodeAttributeValue(a *Attribute) (uint32, error) {
	if a.IsTV() {
		return uint32(a.LenVal), nil
	}
	if a.LenVal > MaxAttributeValueLen {
		return 0, errors.Wrapf(ErrAttributeTooLong, "属性 %d 长度 %d", a.AttrType(), a.LenVal)
	}
	if int(a.LenVal) > len(a.Value) {
		return 0, shortf("属性值只有 %d 字节", len(a.Value))
	}
	var v uint32
	for _, c := range a.Value[:a.LenVal] {
		v = v<<8 | uint32(c)
	}
	return v, nil
}
