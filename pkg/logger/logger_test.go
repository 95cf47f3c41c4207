package logger

import (
	"bytes"
	"strings"
	"testing"
)

func TestLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	if err := InitWithWriter("warn", "json", &buf); err != nil {
		t.Fatalf("InitWithWriter failed: %v", err)
	}
	defer SetLevel("info")

	Info("不应输出")
	Warn("应当输出", String("peer", "192.0.2.1"))

	out := buf.String()
	if strings.Contains(out, "不应输出") {
		t.Errorf("info 日志未被过滤: %s", out)
	}
	if !strings.Contains(out, "应当输出") || !strings.Contains(out, "192.0.2.1") {
		t.Errorf("warn 日志缺失: %s", out)
	}

	SetLevel("debug")
	Debug("调试")
	if !strings.Contains(buf.String(), "调试") {
		t.Errorf("SetLevel(debug) 后 debug 日志缺失")
	}
}

func TestParseLevel(t *testing.T) {
	if ParseLevel("ERROR").String() != "error" {
		t.Errorf("大写等级解析错误")
	}
	if ParseLevel("bogus").String() != "info" {
		t.Errorf("未知等级应回退到 info")
	}
}
