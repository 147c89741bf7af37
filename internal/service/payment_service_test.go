package service

import (
	"regexp"
	"strings"
	"testing"
	"time"

	"akx-core/internal/model"
	"akx-core/pkg/crypto_util"

	"github.com/stretchr/testify/assert"
)

func TestGenerateOrderNoFormat(t *testing.T) {
	dep := GenerateOrderNo(model.OrderTypeDeposit)
	wd := GenerateOrderNo(model.OrderTypeWithdraw)

	if !strings.HasPrefix(dep, "AKXD") {
		t.Errorf("充值单号应以 AKXD 开头, 得到 %s", dep)
	}
	if !strings.HasPrefix(wd, "AKXW") {
		t.Errorf("提现单号应以 AKXW 开头, 得到 %s", wd)
	}

	// AKX + 类型 + 14 位时间戳 + 6 位随机
	pattern := regexp.MustCompile(`^AKX[DW]\d{14}[0-9a-f]{6}$`)
	if !pattern.MatchString(dep) {
		t.Errorf("单号格式不符: %s", dep)
	}

	if GenerateOrderNo(model.OrderTypeDeposit) == dep {
		t.Error("连续生成的单号不应相同")
	}
}

func TestGenerateRechargeNoFormat(t *testing.T) {
	no := GenerateRechargeNo()
	pattern := regexp.MustCompile(`^R\d{14}[0-9a-f]{8}$`)
	if !pattern.MatchString(no) {
		t.Errorf("充值单号格式不符: %s", no)
	}
}

func TestVerifyTimestamp(t *testing.T) {
	now := time.Now()

	if !VerifyTimestamp(now.UnixMilli(), now) {
		t.Error("当前时间戳应通过")
	}
	if !VerifyTimestamp(now.Add(-4*time.Minute).UnixMilli(), now) {
		t.Error("4 分钟前的时间戳应通过")
	}
	if !VerifyTimestamp(now.Add(4*time.Minute).UnixMilli(), now) {
		t.Error("4 分钟后的时间戳应通过 (时钟漂移)")
	}
	if VerifyTimestamp(now.Add(-6*time.Minute).UnixMilli(), now) {
		t.Error("6 分钟前的时间戳应拒绝")
	}
	if VerifyTimestamp(now.Add(6*time.Minute).UnixMilli(), now) {
		t.Error("6 分钟后的时间戳应拒绝")
	}
}

// TestDepositFee 手续费 = amount*rate + fixed (纯逻辑, 不依赖 DB)
func TestDepositFee(t *testing.T) {
	tests := []struct {
		name   string
		rate   string
		fixed  string
		amount string
		want   string
	}{
		{"1% + 0.5", "0.01", "0.5", "100", "1.5"},
		{"纯比例", "0.02", "0", "50", "1"},
		{"纯固定", "0", "3", "1000", "3"},
		{"零费率", "0", "0", "100", "0"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := &model.Merchant{
				DepositFeeRate:  d(tt.rate),
				DepositFeeFixed: d(tt.fixed),
			}
			got := DepositFee(m, d(tt.amount))
			assert.True(t, got.Equal(d(tt.want)), "得到 %s, 期望 %s", got, tt.want)
		})
	}
}

func TestWithdrawFee(t *testing.T) {
	m := &model.Merchant{
		WithdrawFeeRate:  d("0.005"),
		WithdrawFeeFixed: d("1"),
	}
	assert.True(t, WithdrawFee(m, d("200")).Equal(d("2")))
	assert.True(t, WithdrawFee(m, d("0")).Equal(d("1")), "零金额只收固定费")
}

func TestBuildSignatureMessage(t *testing.T) {
	msg := BuildSignatureMessage("M1001", "AKXD20260101000000abcdef", "success", "100.007")
	want := "M1001AKXD20260101000000abcdefsuccess100.007"
	if msg != want {
		t.Errorf("签名串拼接错误: %s", msg)
	}

	// 同一输入的签名必须稳定, 商户端才能校验
	sig1 := crypto_util.HmacSHA256Hex("secret", msg)
	sig2 := crypto_util.HmacSHA256Hex("secret", msg)
	if sig1 != sig2 {
		t.Error("同一消息的签名应稳定")
	}
	if !crypto_util.VerifyHmacSHA256Hex("secret", msg, sig1) {
		t.Error("签名应能通过校验")
	}
	if crypto_util.VerifyHmacSHA256Hex("other", msg, sig1) {
		t.Error("错误密钥的签名不应通过")
	}
}
