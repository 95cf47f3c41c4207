package cookie

import (
	"crypto/subtle"
	"encoding/binary"
	"io"
	"net"
	"sync"
	"time"

	"github.com/pkg/errors"

	"github.com/iniwex5/isakmp-go/pkg/bufpool"
	"github.com/iniwex5/isakmp-go/pkg/crypto"
	"github.com/iniwex5/isakmp-go/pkg/isakmp"
	"github.com/iniwex5/isakmp-go/pkg/logger"
)

// COOKIE = VERSION(4) | HASH(Ni | IPi | SPIi | SECRET)
const (
	VersionLen       = 4
	HashLen          = 20
	CookieLen        = VersionLen + HashLen
	DefaultSecretLen = 64
)

var ErrCookieMismatched = errors.New("Cookie 不匹配")

// Peer 计算 Cookie 所需的对端信息，以及对端回送的 Cookie
type Peer struct {
	Nonce     []byte
	Addr      net.IP
	SPI       []byte
	Cookie    [CookieLen]byte
	CookieLen int
}

// Version 返回已保存 Cookie 中的密钥版本，未设置时为 0
func (p *Peer) Version() uint32 {
	if p.CookieLen < VersionLen {
		return 0
	}
	return binary.BigEndian.Uint32(p.Cookie[:VersionLen])
}

func (p *Peer) addr() []byte {
	if v4 := p.Addr.To4(); v4 != nil {
		return v4
	}
	return p.Addr
}

type Config struct {
	SecretLen int           // 密钥长度，默认 DefaultSecretLen
	Lifetime  time.Duration // 密钥轮换周期，0 表示不自动轮换
	Rand      io.Reader     // 默认 crypto.Reader
	Hash      crypto.Hasher // 必须输出 HashLen 字节，默认 SHA-1
	Pool      *bufpool.Shared
}

// Engine 持有当前和上一代密钥。密钥只在 mu 下读写，mu 与 IKE 信号量相互独立。
type Engine struct {
	mu       sync.Mutex
	secrets  [2][]byte
	cur      int
	version  uint32
	closed   bool
	timer    *time.Timer
	lifetime time.Duration

	rand io.Reader
	hash crypto.Hasher
	pool *bufpool.Shared
}

// New 生成第一代密钥，Lifetime > 0 时启动轮换定时器
func New(cfg Config) (*Engine, error) {
	if cfg.SecretLen <= 0 {
		cfg.SecretLen = DefaultSecretLen
	}
	if cfg.Rand == nil {
		cfg.Rand = crypto.Reader
	}
	if cfg.Hash == nil {
		cfg.Hash = crypto.SHA1()
	}
	if cfg.Hash.Size() != HashLen {
		return nil, errors.Errorf("Cookie 哈希长度必须为 %d，实际 %d", HashLen, cfg.Hash.Size())
	}
	if cfg.Pool == nil {
		return nil, errors.New("Cookie 引擎需要缓冲池")
	}

	e := &Engine{
		lifetime: cfg.Lifetime,
		rand:     cfg.Rand,
		hash:     cfg.Hash,
		pool:     cfg.Pool,
	}
	e.secrets[0] = make([]byte, cfg.SecretLen)
	e.secrets[1] = make([]byte, cfg.SecretLen)
	if err := e.Rotate(); err != nil {
		return nil, errors.Wrap(err, "生成初始 Cookie 密钥")
	}
	if e.lifetime > 0 {
		e.mu.Lock()
		e.timer = time.AfterFunc(e.lifetime, e.tick)
		e.mu.Unlock()
	}
	return e, nil
}

func (e *Engine) tick() {
	if err := e.Rotate(); err != nil {
		logger.Warn("Cookie 密钥轮换失败，继续使用旧密钥", logger.Err(err))
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.closed {
		e.timer.Reset(e.lifetime)
	}
}

// Rotate 把当前密钥降为上一代，生成新的当前密钥并递增版本。
// 随机源失败时保持原状。
func (e *Engine) Rotate() error {
	fresh := make([]byte, len(e.secrets[0]))
	if _, err := io.ReadFull(e.rand, fresh); err != nil {
		return errors.Wrap(err, "读取随机数")
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	e.cur ^= 1
	copy(e.secrets[e.cur], fresh)
	e.version++
	if e.version == 0 {
		e.version = 1
	}
	logger.Debug("Cookie 密钥已轮换", logger.Uint32("version", e.version))
	return nil
}

// Version 当前密钥版本
func (e *Engine) Version() uint32 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.version
}

// Close 停止轮换定时器
func (e *Engine) Close() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.closed = true
	if e.timer != nil {
		e.timer.Stop()
	}
}

// Generate 为 p 计算 Cookie 写入 out。
// p 已保存的 Cookie 版本等于上一代时使用上一代密钥，其余情况使用当前密钥。
func (e *Engine) Generate(p *Peer, out []byte) error {
	if len(out) < CookieLen {
		return errors.Wrapf(isakmp.ErrLengthIsShort, "Cookie 输出需要 %d 字节", CookieLen)
	}
	addr := p.addr()
	size := len(p.Nonce) + len(addr) + len(p.SPI) + len(e.secrets[0])

	scratch, err := e.pool.Get()
	if err != nil {
		return err
	}
	defer func() {
		if err := e.pool.Put(scratch); err != nil {
			logger.Error("归还 Cookie 缓冲失败", logger.Err(err))
		}
	}()
	if size > len(scratch.Data) {
		return errors.Wrapf(isakmp.ErrLengthIsShort, "Cookie 输入 %d 字节超过缓冲块", size)
	}
	buf := scratch.Data[:size]
	off := copy(buf, p.Nonce)
	off += copy(buf[off:], addr)
	off += copy(buf[off:], p.SPI)

	e.mu.Lock()
	version, secret := e.version, e.secrets[e.cur]
	if v := p.Version(); v != 0 && v != e.version && v == e.version-1 {
		version, secret = v, e.secrets[e.cur^1]
	}
	copy(buf[off:], secret)
	e.mu.Unlock()

	digest := e.hash.Sum(buf)
	for i := range buf {
		buf[i] = 0
	}
	binary.BigEndian.PutUint32(out[:VersionLen], version)
	copy(out[VersionLen:CookieLen], digest)
	return nil
}

// Verify 重新计算 Cookie 并与 p 中保存的值比较
func (e *Engine) Verify(p *Peer) error {
	if p.CookieLen != CookieLen {
		return errors.Wrapf(ErrCookieMismatched, "Cookie 长度 %d", p.CookieLen)
	}
	var want [CookieLen]byte
	if err := e.Generate(p, want[:]); err != nil {
		return err
	}
	if subtle.ConstantTimeCompare(want[:], p.Cookie[:]) != 1 {
		return ErrCookieMismatched
	}
	return nil
}

// Save 保存对端在通知载荷中提供的 Cookie
func (e *Engine) Save(p *Peer, n *isakmp.NotifyPayload) error {
	if len(n.NotifyData) > len(p.Cookie) {
		return errors.Wrapf(bufpool.ErrNoMemory, "Cookie 长度 %d 超过 %d", len(n.NotifyData), len(p.Cookie))
	}
	p.CookieLen = copy(p.Cookie[:], n.NotifyData)
	return nil
}
