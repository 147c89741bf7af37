package crypto_util

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"io"
)

// AESCipher 封装 AES-256-GCM, 用于钱包私钥的落库加密。
// 密钥为 base64 编码的 32 字节；密文格式为 base64(nonce(12) + ciphertext + tag(16))。
type AESCipher struct {
	key []byte
}

// NewAESCipher 从 base64 编码的密钥创建 cipher。
// 密钥解码后必须恰好是 32 字节 (AES-256)。
func NewAESCipher(encodedKey string) (*AESCipher, error) {
	key, err := base64.StdEncoding.DecodeString(encodedKey)
	if err != nil {
		return nil, errors.New("密钥不是合法的 base64")
	}
	if len(key) != 32 {
		return nil, errors.New("密钥长度必须是 32 字节")
	}
	return &AESCipher{key: key}, nil
}

// GenerateKey 生成一个新的 base64 编码的 32 字节随机密钥。
func GenerateKey() (string, error) {
	key := make([]byte, 32)
	if _, err := io.ReadFull(rand.Reader, key); err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(key), nil
}

// Encrypt 加密明文，返回 base64(nonce + 密文 + tag)。
func (c *AESCipher) Encrypt(plaintext string) (string, error) {
	block, err := aes.NewCipher(c.key)
	if err != nil {
		return "", err
	}

	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return "", err
	}

	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", err
	}

	sealed := gcm.Seal(nonce, nonce, []byte(plaintext), nil)
	return base64.StdEncoding.EncodeToString(sealed), nil
}

// Decrypt 解密 Encrypt 产生的密文。
func (c *AESCipher) Decrypt(encoded string) (string, error) {
	data, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return "", errors.New("密文不是合法的 base64")
	}

	block, err := aes.NewCipher(c.key)
	if err != nil {
		return "", err
	}

	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return "", err
	}

	if len(data) < gcm.NonceSize() {
		return "", errors.New("密文太短")
	}

	nonce, ciphertext := data[:gcm.NonceSize()], data[gcm.NonceSize():]
	plaintext, err := gcm.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return "", err
	}
	return string(plaintext), nil
}
