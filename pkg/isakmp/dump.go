package isakmp

import "github.com/davecgh/go-spew/spew"

var dumpConfig = spew.ConfigState{
	Indent:                  "  ",
	DisablePointerAddresses: true,
	DisableCapacities:       true,
	SortKeys:                true,
	MaxDepth:                6,
}

// Dump 返回载荷或模板的可读形式，用于调试日志
func Dump(v interface{}) string {
	return dumpConfig.Sdump(v)
}
