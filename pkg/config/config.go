package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"github.com/pkg/errors"
	"go.uber.org/multierr"

	"github.com/iniwex5/isakmp-go/pkg/isakmp"
	"github.com/iniwex5/isakmp-go/pkg/transport"
)

type Config struct {
	LogLevel   string // debug, info, warn, error
	LogFormat  string // console 或 json
	ListenAddr string // 默认 0.0.0.0:500

	BufferCount int           // 缓冲池块数，默认 10
	BufferSize  int           // 每块字节数，默认 3000
	LockTimeout time.Duration // 获取 IKE 信号量的最长等待，0 表示不限

	CookieSecretLen      int           // 默认 64
	CookieSecretLifetime time.Duration // 密钥轮换周期，0 表示不轮换

	ResendCount    int           // 每条消息最多重传次数，1..10
	ResendInterval time.Duration // 首次重传间隔
	BackoffFactor  float64       // 重传间隔倍数，1 表示固定间隔
	MaxBackoff     time.Duration // 重传间隔上限，0 表示不限

	// 提议超过上限时截断而不是拒绝整个 SA
	PartialSA bool
}

const (
	MinResendCount = 1
	MaxResendCount = 10
	MinSecretLen   = 16
)

func Default() *Config {
	return &Config{
		LogLevel:             "info",
		LogFormat:            "console",
		ListenAddr:           "0.0.0.0:500",
		BufferCount:          10,
		BufferSize:           3000,
		LockTimeout:          5 * time.Second,
		CookieSecretLen:      64,
		CookieSecretLifetime: 10 * time.Minute,
		ResendCount:          5,
		ResendInterval:       2 * time.Second,
		BackoffFactor:        1.0,
	}
}

// Load 读取 .env 文件 (可选) 并用 ISAKMP_* 环境变量覆盖默认值。
// envFile 为空时尝试当前目录下的 .env，不存在则忽略。
func Load(envFile string) (*Config, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil {
			return nil, errors.Wrapf(err, "加载 %s", envFile)
		}
	} else if err := godotenv.Load(); err != nil && !os.IsNotExist(errors.Cause(err)) {
		return nil, errors.Wrap(err, "加载 .env")
	}

	c := Default()
	if err := c.applyEnv(); err != nil {
		return nil, err
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *Config) applyEnv() error {
	var errs error
	str := func(key string, dst *string) {
		if v, ok := os.LookupEnv(key); ok {
			*dst = v
		}
	}
	num := func(key string, dst *int) {
		if v, ok := os.LookupEnv(key); ok {
			n, err := strconv.Atoi(v)
			if err != nil {
				errs = multierr.Append(errs, errors.Wrapf(err, "%s", key))
				return
			}
			*dst = n
		}
	}
	dur := func(key string, dst *time.Duration) {
		if v, ok := os.LookupEnv(key); ok {
			d, err := time.ParseDuration(v)
			if err != nil {
				errs = multierr.Append(errs, errors.Wrapf(err, "%s", key))
				return
			}
			*dst = d
		}
	}

	str("ISAKMP_LOG_LEVEL", &c.LogLevel)
	str("ISAKMP_LOG_FORMAT", &c.LogFormat)
	str("ISAKMP_LISTEN", &c.ListenAddr)
	num("ISAKMP_BUFFER_COUNT", &c.BufferCount)
	num("ISAKMP_BUFFER_SIZE", &c.BufferSize)
	dur("ISAKMP_LOCK_TIMEOUT", &c.LockTimeout)
	num("ISAKMP_COOKIE_SECRET_LEN", &c.CookieSecretLen)
	dur("ISAKMP_COOKIE_LIFETIME", &c.CookieSecretLifetime)
	num("ISAKMP_RESEND_COUNT", &c.ResendCount)
	dur("ISAKMP_RESEND_INTERVAL", &c.ResendInterval)
	dur("ISAKMP_MAX_BACKOFF", &c.MaxBackoff)
	if v, ok := os.LookupEnv("ISAKMP_BACKOFF_FACTOR"); ok {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			errs = multierr.Append(errs, errors.Wrap(err, "ISAKMP_BACKOFF_FACTOR"))
		} else {
			c.BackoffFactor = f
		}
	}
	if v, ok := os.LookupEnv("ISAKMP_PARTIAL_SA"); ok {
		b, err := strconv.ParseBool(v)
		if err != nil {
			errs = multierr.Append(errs, errors.Wrap(err, "ISAKMP_PARTIAL_SA"))
		} else {
			c.PartialSA = b
		}
	}
	return errs
}

// Validate 检查所有字段，返回汇总后的错误
func (c *Config) Validate() error {
	var errs error
	if c.BufferCount < 1 {
		errs = multierr.Append(errs, errors.Errorf("缓冲块数量 %d 必须大于 0", c.BufferCount))
	}
	if c.BufferSize < isakmp.HEADER_LEN || c.BufferSize > 0xffff {
		errs = multierr.Append(errs, errors.Errorf("缓冲块大小 %d 必须在 [%d, 65535] 内", c.BufferSize, isakmp.HEADER_LEN))
	}
	if c.LockTimeout < 0 {
		errs = multierr.Append(errs, errors.New("信号量超时不能为负"))
	}
	if c.CookieSecretLen < MinSecretLen {
		errs = multierr.Append(errs, errors.Errorf("Cookie 密钥长度 %d 小于 %d", c.CookieSecretLen, MinSecretLen))
	}
	if c.CookieSecretLifetime < 0 {
		errs = multierr.Append(errs, errors.New("Cookie 密钥周期不能为负"))
	}
	if c.ResendCount < MinResendCount || c.ResendCount > MaxResendCount {
		errs = multierr.Append(errs, errors.Errorf("重传次数 %d 必须在 [%d, %d] 内", c.ResendCount, MinResendCount, MaxResendCount))
	}
	if c.ResendInterval <= 0 {
		errs = multierr.Append(errs, errors.New("重传间隔必须大于 0"))
	}
	if c.BackoffFactor < 1 {
		errs = multierr.Append(errs, errors.Errorf("退避因子 %.2f 不能小于 1", c.BackoffFactor))
	}
	if c.MaxBackoff != 0 && c.MaxBackoff < c.ResendInterval {
		errs = multierr.Append(errs, errors.New("重传间隔上限不能小于初始间隔"))
	}
	return errs
}

// SAPolicy 返回 SA 解码策略
func (c *Config) SAPolicy() isakmp.SAPolicy {
	if c.PartialSA {
		return isakmp.SAPolicyPartial
	}
	return isakmp.SAPolicyStrict
}

// RetryConfig 返回传输层重传定时配置
func (c *Config) RetryConfig() transport.RetryConfig {
	return transport.RetryConfig{
		InitialTimeout: c.ResendInterval,
		MaxTimeout:     c.MaxBackoff,
		BackoffFactor:  c.BackoffFactor,
	}
}
