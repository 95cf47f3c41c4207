package crypto

import (
	"crypto/hmac"
	"crypto/md5"
	"crypto/sha1"
	"hash"
)

// Hasher 计算固定长度摘要
type Hasher interface {
	Sum(data []byte) []byte
	Size() int
}

type sha1Hasher struct{}

// SHA1 返回 20 字节 SHA-1 摘要器，Cookie 引擎的默认哈希
func SHA1() Hasher { return sha1Hasher{} }

func (sha1Hasher) Sum(data []byte) []byte {
	d := sha1.Sum(data)
	return d[:]
}

func (sha1Hasher) Size() int { return sha1.Size }

type hmacHasher struct {
	newHash func() hash.Hash
	key     []byte
}

// HMAC 返回以 key 为密钥的 HMAC 摘要器
func HMAC(newHash func() hash.Hash, key []byte) Hasher {
	k := make([]byte, len(key))
	copy(k, key)
	return &hmacHasher{newHash: newHash, key: k}
}

func (h *hmacHasher) Sum(data []byte) []byte {
	mac := hmac.New(h.newHash, h.key)
	mac.Write(data)
	return mac.Sum(nil)
}

func (h *hmacHasher) Size() int { return h.newHash().Size() }

// MessageDigest 计算入站消息的 MD5 摘要，用于识别对端重传
func MessageDigest(data []byte) [md5.Size]byte {
	return md5.Sum(data)
}
