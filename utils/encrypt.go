package utils

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"strings"
)

// cipherVersion 写在密文前面，以后换算法或密钥时可以识别旧数据
const cipherVersion = "v1:"

var errInvalidCipherText = errors.New("invalid ciphertext payload")

// Cipher 会话值落盘前的 AES-GCM 加密，输出 "v1:" + base64(nonce + ciphertext)
type Cipher struct {
	gcm cipher.AEAD
}

// NewCipher key 长度必须是 16、24 或 32 字节
func NewCipher(key []byte) (*Cipher, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("invalid session encryption key: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}
	return &Cipher{gcm: gcm}, nil
}

func (c *Cipher) Encrypt(plain string) (string, error) {
	nonce := make([]byte, c.gcm.NonceSize(), c.gcm.NonceSize()+len(plain)+c.gcm.Overhead())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", err
	}
	sealed := c.gcm.Seal(nonce, nonce, []byte(plain), nil)
	return cipherVersion + base64.StdEncoding.EncodeToString(sealed), nil
}

// Decrypt 版本不符、格式错误或密钥不匹配都返回错误，调用方按丢弃处理
func (c *Cipher) Decrypt(encoded string) (string, error) {
	payload, ok := strings.CutPrefix(encoded, cipherVersion)
	if !ok {
		return "", errInvalidCipherText
	}
	raw, err := base64.StdEncoding.DecodeString(payload)
	if err != nil || len(raw) < c.gcm.NonceSize() {
		return "", errInvalidCipherText
	}

	n := c.gcm.NonceSize()
	plain, err := c.gcm.Open(nil, raw[:n], raw[n:], nil)
	if err != nil {
		return "", err
	}
	return string(plain), nil
}
