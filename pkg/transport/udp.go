package transport

import (
	"context"
	"encoding/binary"
	"net"
	"sync"
	"sync/atomic"
	"syscall"

	"github.com/pkg/errors"
	"golang.org/x/sys/unix"

	"github.com/iniwex5/isakmp-go/pkg/isakmp"
	"github.com/iniwex5/isakmp-go/pkg/logger"
)

// NAT-T 端口上的 ISAKMP 报文以 4 字节零 (Non-ESP Marker) 开头 (RFC 3948)
const natTPort = 4500

// Packet 收到的 ISAKMP 报文
type Packet struct {
	Data []byte
	From *net.UDPAddr
}

// UDPConn ISAKMP 的 UDP 套接字。读循环过滤掉非 ISAKMP 报文。
type UDPConn struct {
	conn  *net.UDPConn
	local *net.UDPAddr

	packets chan Packet
	closeCh chan struct{}
	once    sync.Once
	wg      sync.WaitGroup

	received uint64
	dropped  uint64
	sent     uint64
}

func reuseAddr(network, address string, c syscall.RawConn) error {
	var serr error
	err := c.Control(func(fd uintptr) {
		serr = unix.SetsockoptInt(int(fd), unix.SOL_SOCKET, unix.SO_REUSEADDR, 1)
	})
	if err != nil {
		return err
	}
	return serr
}

// ListenUDP 在 address 上监听，queue 为接收通道容量
func ListenUDP(address string, queue int) (*UDPConn, error) {
	lc := net.ListenConfig{Control: reuseAddr}
	pc, err := lc.ListenPacket(context.Background(), "udp", address)
	if err != nil {
		return nil, errors.Wrapf(err, "监听 %s", address)
	}
	conn := pc.(*net.UDPConn)
	if queue <= 0 {
		queue = 100
	}
	c := &UDPConn{
		conn:    conn,
		local:   conn.LocalAddr().(*net.UDPAddr),
		packets: make(chan Packet, queue),
		closeCh: make(chan struct{}),
	}
	c.wg.Add(1)
	go c.readLoop()
	return c, nil
}

// Packets 入站 ISAKMP 报文，Close 后关闭
func (c *UDPConn) Packets() <-chan Packet { return c.packets }

func (c *UDPConn) LocalAddr() *net.UDPAddr { return c.local }

// SendTo 发送报文，目的端口为 4500 时加上 Non-ESP Marker
func (c *UDPConn) SendTo(b []byte, addr *net.UDPAddr) error {
	packet := b
	if addr.Port == natTPort {
		packet = append([]byte{0, 0, 0, 0}, b...)
	}
	n, err := c.conn.WriteToUDP(packet, addr)
	if err != nil {
		return err
	}
	if n != len(packet) {
		return errors.Errorf("发送不完整: %d/%d", n, len(packet))
	}
	atomic.AddUint64(&c.sent, 1)
	return nil
}

func (c *UDPConn) Close() error {
	var err error
	c.once.Do(func() {
		close(c.closeCh)
		err = c.conn.Close()
		c.wg.Wait()
		close(c.packets)
	})
	return err
}

func (c *UDPConn) readLoop() {
	defer c.wg.Done()
	buf := make([]byte, 65535)
	for {
		n, addr, err := c.conn.ReadFromUDP(buf)
		if err != nil {
			select {
			case <-c.closeCh:
			default:
				logger.Warn("UDP 读取失败，读循环退出", logger.Err(err))
			}
			return
		}
		data, ok := parseISAKMP(buf[:n])
		if !ok {
			atomic.AddUint64(&c.dropped, 1)
			continue
		}
		pkt := Packet{Data: append([]byte(nil), data...), From: addr}
		select {
		case c.packets <- pkt:
			atomic.AddUint64(&c.received, 1)
		default:
			drops := atomic.AddUint64(&c.dropped, 1)
			if drops == 1 || drops%100 == 0 {
				logger.Warn("ISAKMP 接收队列已满，丢弃报文", logger.Int("dropped", int(drops)))
			}
		}
	}
}

// parseISAKMP 去掉可能的 Non-ESP Marker 并检查头部是否合理
func parseISAKMP(data []byte) ([]byte, bool) {
	if len(data) >= 4 && binary.BigEndian.Uint32(data[:4]) == 0 && len(data) >= 4+isakmp.HEADER_LEN {
		if looksLikeISAKMP(data[4:]) {
			return data[4:], true
		}
	}
	if looksLikeISAKMP(data) {
		return data, true
	}
	return nil, false
}

func looksLikeISAKMP(data []byte) bool {
	if len(data) < isakmp.HEADER_LEN {
		return false
	}
	if data[17]>>4 != isakmp.MajorVersion {
		return false
	}
	l := binary.BigEndian.Uint32(data[24:28])
	return l >= isakmp.HEADER_LEN && int(l) <= len(data)
}

type SocketStats struct {
	Received uint64
	Dropped  uint64
	Sent     uint64
}

func (c *UDPConn) Stats() SocketStats {
	return SocketStats{
		Received: atomic.LoadUint64(&c.received),
		Dropped:  atomic.LoadUint64(&c.dropped),
		Sent:     atomic.LoadUint64(&c.sent),
	}
}
