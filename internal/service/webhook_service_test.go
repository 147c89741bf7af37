package service

import (
	"testing"
	"time"

	"akx-core/internal/model"
	"akx-core/pkg/crypto_util"
)

func TestNextAttemptKeepsEventIdentity(t *testing.T) {
	now := time.Now().UTC()
	prev := &model.WebhookDelivery{
		EventID:    "evt-001",
		Attempt:    1,
		MerchantID: 3,
		OrderID:    9,
		EventType:  model.WebhookEventOrderSuccess,
		URL:        "https://merchant.example/cb",
		Payload:    `{"order_no":"AKXD1"}`,
		Status:     model.WebhookStatusFailed,
	}

	next := NextAttempt(prev, now)
	if next.EventID != prev.EventID {
		t.Error("重试必须沿用同一 event_id, 商户侧才能去重")
	}
	if next.Payload != prev.Payload || next.URL != prev.URL {
		t.Error("重试必须原样重发同一载荷")
	}
	if next.Attempt != 2 {
		t.Errorf("尝试序号应为 2, 得到 %d", next.Attempt)
	}
	if next.Status != model.WebhookStatusPending {
		t.Error("新尝试应处于 pending")
	}
	if next.NextRetryAt == nil || !next.NextRetryAt.Equal(now.Add(1*time.Minute)) {
		t.Error("第 1 次失败后应等 1 分钟")
	}

	// 同一消息的签名跨重试稳定: 密钥与内容不变, 签名就不变
	message := BuildSignatureMessage("M1001", "AKXD1", "success", "100.007")
	sig1 := crypto_util.HmacSHA256Hex("secret", message)
	sig2 := crypto_util.HmacSHA256Hex("secret", message)
	if sig1 != sig2 {
		t.Error("重试的签名应与首发一致")
	}
}

func TestNextRetryDelayLinear(t *testing.T) {
	for n := 1; n <= 3; n++ {
		if got := nextRetryDelay(n); got != time.Duration(n)*time.Minute {
			t.Errorf("第 %d 次失败后的退避应为 %d 分钟, 得到 %s", n, n, got)
		}
	}
}

func TestRetryEligible(t *testing.T) {
	now := time.Now().UTC()
	past := now.Add(-time.Minute)
	future := now.Add(time.Minute)

	fresh := func(status string, nextRetryAt *time.Time) *model.WebhookDelivery {
		return &model.WebhookDelivery{
			Status:      status,
			NextRetryAt: nextRetryAt,
			CreatedAt:   now.Add(-time.Hour),
		}
	}

	// 从未首发过的 (next_retry_at 为空) 必须能被捞起
	if !RetryEligible(fresh(model.WebhookStatusPending, nil), now) {
		t.Error("未首发的 pending 记录应可投递")
	}
	if !RetryEligible(fresh(model.WebhookStatusPending, &past), now) {
		t.Error("到期的 pending 记录应可投递")
	}
	if RetryEligible(fresh(model.WebhookStatusPending, &future), now) {
		t.Error("未到期的记录不应投递")
	}
	if RetryEligible(fresh(model.WebhookStatusDelivered, nil), now) {
		t.Error("已送达的记录不应重投")
	}
	if RetryEligible(fresh(model.WebhookStatusFailed, &past), now) {
		t.Error("已失败的尝试不应重投 (重试走新行)")
	}

	// 超过 24 小时窗口放弃
	stale := fresh(model.WebhookStatusPending, nil)
	stale.CreatedAt = now.Add(-25 * time.Hour)
	if RetryEligible(stale, now) {
		t.Error("超过 24 小时的记录不应再投")
	}
}
