package crypto_util

import (
	"encoding/base64"
	"strings"
	"testing"
)

func TestAESCipherRoundTrip(t *testing.T) {
	key, err := GenerateKey()
	if err != nil {
		t.Fatalf("GenerateKey 失败: %v", err)
	}

	c, err := NewAESCipher(key)
	if err != nil {
		t.Fatalf("NewAESCipher 失败: %v", err)
	}

	plaintext := "0x4c0883a69102937d6231471b5dbb6204fe5129617082792ae468d01a3f362318"
	ciphertext, err := c.Encrypt(plaintext)
	if err != nil {
		t.Fatalf("Encrypt 失败: %v", err)
	}

	decrypted, err := c.Decrypt(ciphertext)
	if err != nil {
		t.Fatalf("Decrypt 失败: %v", err)
	}

	if decrypted != plaintext {
		t.Errorf("解密后的消息与明文不匹配。\n得到: %s\n期望: %s", decrypted, plaintext)
	}
}

func TestAESCipherLayout(t *testing.T) {
	key, _ := GenerateKey()
	c, _ := NewAESCipher(key)

	ciphertext, err := c.Encrypt("hello")
	if err != nil {
		t.Fatal(err)
	}

	raw, err := base64.StdEncoding.DecodeString(ciphertext)
	if err != nil {
		t.Fatalf("密文不是合法的 base64: %v", err)
	}

	// nonce(12) + ciphertext(5) + tag(16)
	if len(raw) != 12+5+16 {
		t.Errorf("密文长度错误。得到: %d, 期望: %d", len(raw), 12+5+16)
	}
}

func TestAESCipherInvalidKey(t *testing.T) {
	short := base64.StdEncoding.EncodeToString([]byte("shortkey"))
	if _, err := NewAESCipher(short); err == nil {
		t.Error("期望因密钥长度无效而报错，但未收到错误")
	}

	if _, err := NewAESCipher("not-base64!!!"); err == nil {
		t.Error("期望因非法 base64 密钥而报错，但未收到错误")
	}
}

func TestAESCipherTamper(t *testing.T) {
	key, _ := GenerateKey()
	c, _ := NewAESCipher(key)

	ciphertext, _ := c.Encrypt("secret")
	raw, _ := base64.StdEncoding.DecodeString(ciphertext)
	raw[len(raw)-1] ^= 0x01 // 篡改 tag
	tampered := base64.StdEncoding.EncodeToString(raw)

	if _, err := c.Decrypt(tampered); err == nil {
		t.Error("期望篡改后的密文解密失败，但未收到错误")
	}
}

func TestHmacSHA256Hex(t *testing.T) {
	secret := "deposit-secret"
	message := "M1001" + "AKXD1700000000001" + "success" + "100.505"

	sig := HmacSHA256Hex(secret, message)
	if len(sig) != 64 {
		t.Errorf("签名长度错误。得到: %d, 期望: 64", len(sig))
	}
	if sig != strings.ToLower(sig) {
		t.Error("签名应为小写十六进制")
	}

	if !VerifyHmacSHA256Hex(secret, message, sig) {
		t.Error("合法签名校验失败")
	}
	if VerifyHmacSHA256Hex("wrong-secret", message, sig) {
		t.Error("错误密钥的签名不应通过校验")
	}
	if VerifyHmacSHA256Hex(secret, message+"x", sig) {
		t.Error("消息被篡改后签名不应通过校验")
	}
}
