package transport

import (
	"crypto/md5"
	"encoding/binary"
	"net"
	"sync"
	"sync/atomic"

	"github.com/pkg/errors"
	"go.uber.org/multierr"

	"github.com/iniwex5/isakmp-go/pkg/bufpool"
	"github.com/iniwex5/isakmp-go/pkg/crypto"
	"github.com/iniwex5/isakmp-go/pkg/isakmp"
	"github.com/iniwex5/isakmp-go/pkg/logger"
)

var (
	ErrNotBuffered     = errors.New("没有缓存的消息")
	ErrResendExhausted = errors.New("重传次数已用完")
	ErrNoPeer          = errors.New("对端地址未知")
)

// Sender 把一个 UDP 报文发往对端
type Sender interface {
	SendTo(b []byte, addr *net.UDPAddr) error
}

// Exchange 一次交换在传输层的状态
type Exchange struct {
	// 由上层填写
	Message   *isakmp.EncMessage
	Peer      *net.UDPAddr
	Encrypter crypto.InPlaceEncrypter // 会话密钥就绪前为 nil

	mu          sync.Mutex
	lastMessage *bufpool.Buffer
	resendCount int
	lastRecv    [md5.Size]byte
	haveRecv    bool
}

// ResendCount 剩余重传次数
func (x *Exchange) ResendCount() int {
	x.mu.Lock()
	defer x.mu.Unlock()
	return x.resendCount
}

// Buffered 报告是否缓存了上一条发出的消息
func (x *Exchange) Buffered() bool {
	x.mu.Lock()
	defer x.mu.Unlock()
	return x.lastMessage != nil
}

type Options struct {
	ResendCount int // 每条消息的重传预算
}

// Transport 编码、加密并发送消息，缓存最后一条消息以便重传
type Transport struct {
	pool   *bufpool.Shared
	sender Sender
	opts   Options

	sent   uint64
	resent uint64
	failed uint64
}

func New(pool *bufpool.Shared, sender Sender, opts Options) *Transport {
	return &Transport{pool: pool, sender: sender, opts: opts}
}

func needsEncryption(x *Exchange) bool {
	return x.Encrypter != nil && x.Message.Header.ExchangeType != isakmp.ExchangeIKESAInit
}

// SendPacket 把 x.Message 编码进缓存块并发送。
// 任何失败都会归还缓存块，以便调用方重新开始；
// 无论成败，消息中的动态载荷都会被释放。
func (t *Transport) SendPacket(x *Exchange) error {
	if x.Message == nil || x.Message.Header == nil {
		return errors.New("交换没有待发送的消息")
	}
	defer x.Message.Release()

	x.mu.Lock()
	defer x.mu.Unlock()

	buf := x.lastMessage
	if buf == nil {
		var err error
		if buf, err = t.pool.Get(); err != nil {
			atomic.AddUint64(&t.failed, 1)
			return err
		}
	}
	fail := func(cause error) error {
		x.lastMessage = nil
		atomic.AddUint64(&t.failed, 1)
		return multierr.Append(cause, t.pool.Put(buf))
	}

	h := x.Message.Header
	encrypt := needsEncryption(x)
	if encrypt {
		h.Flags |= isakmp.FlagEncryption
	}
	n, err := isakmp.EncodeMessage(buf.Data, h)
	if err != nil {
		return fail(err)
	}
	if encrypt {
		m, err := x.Encrypter.EncryptInPlace(buf.Data[isakmp.HEADER_LEN:], n-isakmp.HEADER_LEN)
		if err != nil {
			return fail(errors.Wrap(err, "加密消息"))
		}
		binary.BigEndian.PutUint32(buf.Data[24:28], uint32(isakmp.HEADER_LEN+m))
		if n, err = wireLength(buf); err != nil {
			return fail(err)
		}
	}

	if x.Peer == nil {
		return fail(ErrNoPeer)
	}
	if err := t.sender.SendTo(buf.Data[:n], x.Peer); err != nil {
		logger.Warn("发送 ISAKMP 消息失败", logger.String("peer", x.Peer.String()), logger.Err(err))
		return fail(err)
	}

	x.lastMessage = buf
	x.resendCount = t.opts.ResendCount
	atomic.AddUint64(&t.sent, 1)
	logger.Debug("已发送 ISAKMP 消息",
		logger.String("peer", x.Peer.String()),
		logger.Int("len", n),
		logger.Bool("encrypted", encrypt))
	return nil
}

// ResendPacket 原样重发缓存的消息。长度从缓存的头部读取。
// 重传预算在发送前扣减，发送失败也计入。
func (t *Transport) ResendPacket(x *Exchange) error {
	x.mu.Lock()
	defer x.mu.Unlock()

	if x.lastMessage == nil {
		return ErrNotBuffered
	}
	if x.resendCount <= 0 {
		return ErrResendExhausted
	}
	n, err := wireLength(x.lastMessage)
	if err != nil {
		return err
	}
	x.resendCount--
	if x.Peer == nil {
		return ErrNoPeer
	}
	if err := t.sender.SendTo(x.lastMessage.Data[:n], x.Peer); err != nil {
		atomic.AddUint64(&t.failed, 1)
		return err
	}
	atomic.AddUint64(&t.resent, 1)
	logger.Debug("重传 ISAKMP 消息",
		logger.String("peer", x.Peer.String()),
		logger.Int("remaining", x.resendCount))
	return nil
}

// Release 交换结束时归还缓存块
func (t *Transport) Release(x *Exchange) error {
	x.mu.Lock()
	defer x.mu.Unlock()
	if x.lastMessage == nil {
		return nil
	}
	buf := x.lastMessage
	x.lastMessage = nil
	x.resendCount = 0
	return t.pool.Put(buf)
}

// CheckRetransmission 判断入站报文是否是对端对上一条消息的重传。
// 是重传时重发缓存的响应并返回 true。
func (t *Transport) CheckRetransmission(x *Exchange, packet []byte) (bool, error) {
	digest := crypto.MessageDigest(packet)

	x.mu.Lock()
	repeat := x.haveRecv && digest == x.lastRecv
	x.lastRecv, x.haveRecv = digest, true
	x.mu.Unlock()

	if !repeat {
		return false, nil
	}
	logger.Info("收到对端重传，重发上一条响应")
	return true, t.ResendPacket(x)
}

func wireLength(b *bufpool.Buffer) (int, error) {
	n := int(binary.BigEndian.Uint32(b.Data[24:28]))
	if n < isakmp.HEADER_LEN || n > len(b.Data) {
		return 0, errors.Wrapf(isakmp.ErrInvalidPayload, "缓存消息长度 %d", n)
	}
	return n, nil
}

type Stats struct {
	Sent   uint64
	Resent uint64
	Failed uint64
}

func (t *Transport) Stats() Stats {
	return Stats{
		Sent:   atomic.LoadUint64(&t.sent),
		Resent: atomic.LoadUint64(&t.resent),
		Failed: atomic.LoadUint64(&t.failed),
	}
}
