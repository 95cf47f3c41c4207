// ikedump 解码一条 ISAKMP 消息并打印各载荷内容。
//
//	ikedump -in packet.hex
//	tcpdump ... | ikedump -raw
package main

import (
	"bytes"
	"encoding/hex"
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/pkg/errors"

	"github.com/iniwex5/isakmp-go/pkg/config"
	"github.com/iniwex5/isakmp-go/pkg/crypto"
	"github.com/iniwex5/isakmp-go/pkg/isakmp"
	"github.com/iniwex5/isakmp-go/pkg/logger"
)

type options struct {
	raw     bool
	key     []byte
	iv      []byte
	partial bool
}

func main() {
	var (
		in      string
		envFile string
		keyHex  string
		ivHex   string
		opts    options
	)
	flag.StringVar(&in, "in", "", "输入文件，默认标准输入")
	flag.StringVar(&envFile, "env", "", ".env 配置文件")
	flag.BoolVar(&opts.raw, "raw", false, "输入为二进制而不是十六进制")
	flag.StringVar(&keyHex, "key", "", "AES 密钥 (十六进制)，用于解密 E 标志的消息")
	flag.StringVar(&ivHex, "iv", "", "CBC 初始向量 (十六进制)")
	flag.Parse()

	cfg, err := config.Load(envFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "配置错误: %v\n", err)
		os.Exit(2)
	}
	if err := logger.InitWithWriter(cfg.LogLevel, cfg.LogFormat, os.Stderr); err != nil {
		fmt.Fprintf(os.Stderr, "初始化日志失败: %v\n", err)
		os.Exit(2)
	}
	defer logger.Sync()
	opts.partial = cfg.PartialSA

	if keyHex != "" {
		if opts.key, err = hex.DecodeString(keyHex); err != nil {
			fatal(errors.Wrap(err, "-key"))
		}
		if opts.iv, err = hex.DecodeString(ivHex); err != nil {
			fatal(errors.Wrap(err, "-iv"))
		}
	}

	r := io.Reader(os.Stdin)
	if in != "" {
		f, err := os.Open(in)
		if err != nil {
			fatal(err)
		}
		defer f.Close()
		r = f
	}
	if err := run(r, os.Stdout, opts); err != nil {
		fatal(err)
	}
}

func fatal(err error) {
	logger.Error("ikedump 失败", logger.Err(err))
	logger.Sync()
	os.Exit(1)
}

// readPacket 读取输入，十六进制模式下忽略空白
func readPacket(r io.Reader, raw bool) ([]byte, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, errors.Wrap(err, "读取输入")
	}
	if raw {
		return data, nil
	}
	data = bytes.Join(bytes.Fields(data), nil)
	out := make([]byte, hex.DecodedLen(len(data)))
	if _, err := hex.Decode(out, data); err != nil {
		return nil, errors.Wrap(err, "十六进制解码")
	}
	return out, nil
}

// newTemplate 返回所有槽位都可选的解码模板
func newTemplate(h *isakmp.Header, partial bool) *isakmp.DecMessage {
	m := &isakmp.DecMessage{
		Header:      h,
		SA:          &isakmp.SAPayload{},
		KeyExchange: &isakmp.KeyExchangePayload{},
		IDi:         &isakmp.IDPayload{},
		IDr:         &isakmp.IDPayload{},
		Cert:        &isakmp.CertPayload{},
		CertReq:     &isakmp.CertReqPayload{},
		Hash:        &isakmp.HashPayload{},
		Signature:   &isakmp.SignaturePayload{},
		Nonce:       &isakmp.NoncePayload{},
		Notify:      &isakmp.NotifyPayload{},
		Delete:      &isakmp.DeletePayload{},
	}
	m.SA.MarkOptional()
	m.KeyExchange.MarkOptional()
	m.IDi.MarkOptional()
	m.IDr.MarkOptional()
	m.Cert.MarkOptional()
	m.CertReq.MarkOptional()
	m.Hash.MarkOptional()
	m.Signature.MarkOptional()
	m.Nonce.MarkOptional()
	m.Notify.MarkOptional()
	m.Delete.MarkOptional()
	if partial {
		m.SAPolicy = isakmp.SAPolicyPartial
	}
	return m
}

// present 只保留实际解码出的载荷
func present(m *isakmp.DecMessage) map[string]interface{} {
	out := map[string]interface{}{}
	add := func(name string, ok bool, v interface{}) {
		if ok {
			out[name] = v
		}
	}
	add("SA", m.SA.IsPresent(), m.SA)
	add("KE", m.KeyExchange.IsPresent(), m.KeyExchange)
	add("IDi", m.IDi.IsPresent(), m.IDi)
	add("IDr", m.IDr.IsPresent(), m.IDr)
	add("CERT", m.Cert.IsPresent(), m.Cert)
	add("CERTREQ", m.CertReq.IsPresent(), m.CertReq)
	add("HASH", m.Hash.IsPresent(), m.Hash)
	add("SIG", m.Signature.IsPresent(), m.Signature)
	add("NONCE", m.Nonce.IsPresent(), m.Nonce)
	add("N", m.Notify.IsPresent(), m.Notify)
	add("D", m.Delete.IsPresent(), m.Delete)
	return out
}

func run(r io.Reader, w io.Writer, opts options) error {
	pkt, err := readPacket(r, opts.raw)
	if err != nil {
		return err
	}
	var h isakmp.Header
	if err := isakmp.DecodeHeader(pkt, &h); err != nil {
		return err
	}
	fmt.Fprintln(w, h.String())

	if h.Flags&isakmp.FlagEncryption != 0 {
		if opts.key == nil {
			fmt.Fprintln(w, "消息已加密，未提供 -key")
			return nil
		}
		end := int(h.Length)
		if end > len(pkt) {
			end = len(pkt)
		}
		if end <= isakmp.HEADER_LEN {
			return errors.Errorf("加密消息长度 %d 没有载荷", end)
		}
		c, err := crypto.NewAESCBC(opts.key, opts.iv)
		if err != nil {
			return err
		}
		if err := c.DecryptInPlace(pkt[isakmp.HEADER_LEN:], end-isakmp.HEADER_LEN); err != nil {
			return errors.Wrap(err, "解密")
		}
	}

	m := newTemplate(&h, opts.partial)
	if err := isakmp.DecodeMessage(pkt, m); err != nil {
		return errors.WithMessage(err, "解码载荷")
	}
	fmt.Fprint(w, isakmp.Dump(present(m)))
	return nil
}
