package logger

import (
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	mu           sync.Mutex
	globalLogger *zap.Logger
	level        = zap.NewAtomicLevelAt(zapcore.InfoLevel)
)

// levelEncoder 输出 5 字符宽的彩色等级
func levelEncoder(l zapcore.Level, enc zapcore.PrimitiveArrayEncoder) {
	s := l.CapitalString()
	if len(s) < 5 {
		s += strings.Repeat(" ", 5-len(s))
	}
	color := "\x1b[0m"
	switch l {
	case zapcore.DebugLevel:
		color = "\x1b[35m"
	case zapcore.InfoLevel:
		color = "\x1b[34m"
	case zapcore.WarnLevel:
		color = "\x1b[33m"
	case zapcore.ErrorLevel:
		color = "\x1b[31m"
	case zapcore.FatalLevel, zapcore.PanicLevel, zapcore.DPanicLevel:
		color = "\x1b[31;1m"
	}
	enc.AppendString(color + s + "\x1b[0m")
}

func callerEncoder(caller zapcore.EntryCaller, enc zapcore.PrimitiveArrayEncoder) {
	const width = 24
	s := caller.TrimmedPath()
	if len(s) < width {
		s += strings.Repeat(" ", width-len(s))
	}
	enc.AppendString(s)
}

// ParseLevel 解析 debug/info/warn/error，未知值按 info 处理
func ParseLevel(s string) zapcore.Level {
	switch strings.ToLower(s) {
	case "debug":
		return zapcore.DebugLevel
	case "warn", "warning":
		return zapcore.WarnLevel
	case "error":
		return zapcore.ErrorLevel
	}
	return zapcore.InfoLevel
}

// Init 初始化全局日志器
// format: console 或 json
func Init(lvl, format string) error {
	return InitWithWriter(lvl, format, os.Stdout)
}

// InitWithWriter 与 Init 相同，但输出到 w
func InitWithWriter(lvl, format string, w io.Writer) error {
	level.SetLevel(ParseLevel(lvl))

	var encoder zapcore.Encoder
	if format == "json" {
		cfg := zap.NewProductionEncoderConfig()
		cfg.TimeKey = "time"
		cfg.EncodeTime = zapcore.ISO8601TimeEncoder
		encoder = zapcore.NewJSONEncoder(cfg)
	} else {
		cfg := zap.NewDevelopmentEncoderConfig()
		cfg.TimeKey = "time"
		cfg.EncodeLevel = levelEncoder
		cfg.EncodeCaller = callerEncoder
		cfg.EncodeTime = zapcore.TimeEncoderOfLayout("[2006-01-02 15:04:05]")
		cfg.ConsoleSeparator = " "
		encoder = zapcore.NewConsoleEncoder(cfg)
	}

	core := zapcore.NewCore(encoder, zapcore.AddSync(w), level)
	l := zap.New(core, zap.AddCaller(), zap.AddStacktrace(zapcore.ErrorLevel))

	mu.Lock()
	globalLogger = l
	mu.Unlock()
	return nil
}

// SetLevel 动态调整全局日志等级
func SetLevel(lvl string) {
	level.SetLevel(ParseLevel(lvl))
}

// Get 获取全局 Logger，未初始化时使用 info/console
func Get() *zap.Logger {
	mu.Lock()
	l := globalLogger
	mu.Unlock()
	if l != nil {
		return l
	}
	_ = Init("info", "console")
	mu.Lock()
	defer mu.Unlock()
	return globalLogger
}

// Sync 刷新日志缓冲，最多等待 200ms
func Sync() {
	mu.Lock()
	l := globalLogger
	mu.Unlock()
	if l == nil {
		return
	}
	done := make(chan struct{})
	go func() {
		_ = l.Sync()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(200 * time.Millisecond):
	}
}

func Debug(msg string, fields ...zap.Field) {
	Get().WithOptions(zap.AddCallerSkip(1)).Debug(msg, fields...)
}

func Info(msg string, fields ...zap.Field) {
	Get().WithOptions(zap.AddCallerSkip(1)).Info(msg, fields...)
}

func Warn(msg string, fields ...zap.Field) {
	Get().WithOptions(zap.AddCallerSkip(1)).Warn(msg, fields...)
}

func Error(msg string, fields ...zap.Field) {
	Get().WithOptions(zap.AddCallerSkip(1)).Error(msg, fields...)
}

// Named 创建命名 Logger
func Named(name string) *zap.Logger {
	return Get().Named(name)
}

// 便捷字段函数
var (
	String   = zap.String
	Int      = zap.Int
	Uint8    = zap.Uint8
	Uint16   = zap.Uint16
	Uint32   = zap.Uint32
	Bool     = zap.Bool
	Duration = zap.Duration
	Err      = zap.Error
	Binary   = zap.Binary
	Stringer = zap.Stringer
)
