package crypto_util

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
)

// HmacSHA256Hex 计算 HMAC-SHA256 并返回十六进制字符串。
// 商户回调与入站请求的签名都用这个算法。
func HmacSHA256Hex(secret string, message string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(message))
	return hex.EncodeToString(mac.Sum(nil))
}

// VerifyHmacSHA256Hex 恒定时间比较签名。
func VerifyHmacSHA256Hex(secret string, message string, signature string) bool {
	expected := HmacSHA256Hex(secret, message)
	return hmac.Equal([]byte(expected), []byte(signature))
}

// SHA256Hex 返回 SHA-256 的十六进制摘要。
func SHA256Hex(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}
