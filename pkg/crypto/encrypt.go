package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"errors"
	"io"
)

// InPlaceEncrypter 在缓冲区原地加密消息体
// n 为明文长度，返回填充后的密文长度；buf 必须有足够空间容纳填充。
type InPlaceEncrypter interface {
	EncryptInPlace(buf []byte, n int) (int, error)
}

// CBC IKEv1 阶段 1/2 的 CBC 加密状态。
// 每次加密后 IV 更新为最后一个密文块 (RFC 2409 附录 B)。
type CBC struct {
	block cipher.Block
	iv    []byte
}

// NewAESCBC 创建 AES-CBC 加密状态
func NewAESCBC(key, iv []byte) (*CBC, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	if len(iv) != block.BlockSize() {
		return nil, errors.New("IV 长度与块大小不符")
	}
	c := &CBC{block: block, iv: make([]byte, len(iv))}
	copy(c.iv, iv)
	return c, nil
}

// IV 返回当前 IV 的副本
func (c *CBC) IV() []byte {
	iv := make([]byte, len(c.iv))
	copy(iv, c.iv)
	return iv
}

// EncryptInPlace 用零字节填充到块边界后原地加密
func (c *CBC) EncryptInPlace(buf []byte, n int) (int, error) {
	bs := c.block.BlockSize()
	padded := (n + bs - 1) / bs * bs
	if padded == 0 {
		padded = bs
	}
	if padded > len(buf) {
		return 0, errors.New("缓冲区不足以容纳 CBC 填充")
	}
	for i := n; i < padded; i++ {
		buf[i] = 0
	}
	cipher.NewCBCEncrypter(c.block, c.iv).CryptBlocks(buf[:padded], buf[:padded])
	copy(c.iv, buf[padded-bs:padded])
	return padded, nil
}

// DecryptInPlace 原地解密，n 必须是块大小的整数倍
func (c *CBC) DecryptInPlace(buf []byte, n int) error {
	bs := c.block.BlockSize()
	if n%bs != 0 || n == 0 || n > len(buf) {
		return errors.New("密文未对齐块")
	}
	next := make([]byte, bs)
	copy(next, buf[n-bs:n])
	cipher.NewCBCDecrypter(c.block, c.iv).CryptBlocks(buf[:n], buf[:n])
	copy(c.iv, next)
	return nil
}

// Reader 默认随机源
var Reader io.Reader = rand.Reader

// RandomBytes 生成 n 字节随机数
func RandomBytes(n int) ([]byte, error) {
	b := make([]byte, n)
	if _, err := io.ReadFull(Reader, b); err != nil {
		return nil, err
	}
	return b, nil
}
