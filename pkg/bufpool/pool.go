package bufpool

import (
	"github.com/pkg/errors"

	"github.com/iniwex5/isakmp-go/pkg/ikesync"
)

var (
	ErrNoMemory     = errors.New("缓冲池已耗尽")
	ErrForeignBlock = errors.New("缓冲块不属于该池或已归还")
)

// Buffer 池中的固定大小块
type Buffer struct {
	next  *Buffer
	owner *Pool
	inUse bool
	Data  []byte
}

// Pool 固定大小块的空闲链表。所有块在创建时从同一块内存切出，之后只在
// 空闲链和使用者之间转移。Pool 本身不加锁，并发访问请使用 Shared。
type Pool struct {
	free  *Buffer
	nodes []Buffer
	size  int
	avail int
}

// New 创建含 count 个 size 字节块的池
func New(count, size int) *Pool {
	p := &Pool{
		nodes: make([]Buffer, count),
		size:  size,
	}
	arena := make([]byte, count*size)
	for i := count - 1; i >= 0; i-- {
		b := &p.nodes[i]
		b.owner = p
		b.Data = arena[i*size : (i+1)*size : (i+1)*size]
		b.next = p.free
		p.free = b
	}
	p.avail = count
	return p
}

// Allocate 弹出空闲链头部
func (p *Pool) Allocate() (*Buffer, error) {
	b := p.free
	if b == nil {
		return nil, errors.Wrapf(ErrNoMemory, "%d 个块全部在用", len(p.nodes))
	}
	p.free = b.next
	b.next = nil
	b.inUse = true
	p.avail--
	return b, nil
}

// Deallocate 把块放回空闲链头部
func (p *Pool) Deallocate(b *Buffer) error {
	if b == nil || b.owner != p || !b.inUse {
		return ErrForeignBlock
	}
	b.inUse = false
	b.next = p.free
	p.free = b
	p.avail++
	return nil
}

// Available 空闲块数量
func (p *Pool) Available() int { return p.avail }

// Capacity 块总数
func (p *Pool) Capacity() int { return len(p.nodes) }

// BlockSize 每块字节数
func (p *Pool) BlockSize() int { return p.size }

// Shared 由全局 IKE 信号量保护的池，供传输层和 Cookie 引擎共用
type Shared struct {
	pool *Pool
	sem  *ikesync.Semaphore
}

func NewShared(pool *Pool, sem *ikesync.Semaphore) *Shared {
	return &Shared{pool: pool, sem: sem}
}

// Get 在持有 IKE 信号量的情况下分配块
func (s *Shared) Get() (*Buffer, error) {
	if err := s.sem.Acquire(); err != nil {
		return nil, err
	}
	defer s.sem.Release()
	return s.pool.Allocate()
}

// Put 在持有 IKE 信号量的情况下归还块
func (s *Shared) Put(b *Buffer) error {
	if err := s.sem.Acquire(); err != nil {
		return err
	}
	defer s.sem.Release()
	return s.pool.Deallocate(b)
}

// Pool 返回底层池
func (s *Shared) Pool() *Pool { return s.pool }
