package isakmp

import "github.com/pkg/errors"

var (
	ErrLengthIsShort        = errors.New("缓冲区长度不足")
	ErrInvalidPayload       = errors.New("载荷结构无效")
	ErrDuplicatePayload     = errors.New("重复的载荷")
	ErrUnexpectedPayload    = errors.New("意外的载荷")
	ErrMissingPayload       = errors.New("缺少必需载荷")
	ErrUnsupportedDOI       = errors.New("不支持的 DOI")
	ErrUnsupportedSituation = errors.New("不支持的 Situation")
	ErrTooManyProposals     = errors.New("提议数量超出上限")
	ErrTooManyTransforms    = errors.New("变换数量超出上限")
	ErrTooManyAttributes    = errors.New("属性数量超出上限")
	ErrAttributeTooLong     = errors.New("属性值过长")
	ErrNotFound             = errors.New("未找到载荷")
)

func shortf(format string, args ...interface{}) error {
	return errors.Wrapf(ErrLengthIsShort, format, args...)
}

func invalidf(format string, args ...interface{}) error {
	return errors.Wrapf(ErrInvalidPayload, format, args...)
}
