package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"akx-core/internal/model"
	"akx-core/pkg/config"
	"akx-core/pkg/crypto_util"
	"akx-core/pkg/logger"
	"akx-core/pkg/monitor"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// 单条回调响应最多截断保存这么多字节
const webhookResponseLimit = 1024

// 失败回调保留重试资格的时间窗
const webhookRetryWindow = 24 * time.Hour

// 占住超过这么久还没出结果按崩溃处理, 放回待投
const webhookSendingStale = 10 * time.Minute

// WebhookService 商户回调投递
// 投递记录在订单事务里落库 (发件箱), 一行一次尝试, 同一事件的尝试共享 event_id;
// 密钥每次投递现读, 不缓存
type WebhookService struct {
	db     *gorm.DB
	client *http.Client
}

func NewWebhookService(db *gorm.DB) *WebhookService {
	timeout := time.Duration(config.Global.Webhook.Timeout) * time.Second
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &WebhookService{
		db:     db,
		client: &http.Client{Timeout: timeout},
	}
}

// BuildSignatureMessage 回调签名串: merchant_no + order_no + status + amount
func BuildSignatureMessage(merchantNo, orderNo, status, amount string) string {
	return merchantNo + orderNo + status + amount
}

// nextRetryDelay 线性退避: 第 n 次失败后等 n 分钟
func nextRetryDelay(attempt int) time.Duration {
	return time.Duration(attempt) * time.Minute
}

// NextAttempt 由失败的尝试派生下一次: 同一 event_id 与载荷, 序号加一 (纯逻辑)
func NextAttempt(prev *model.WebhookDelivery, now time.Time) *model.WebhookDelivery {
	at := now.Add(nextRetryDelay(prev.Attempt))
	return &model.WebhookDelivery{
		EventID:     prev.EventID,
		Attempt:     prev.Attempt + 1,
		MerchantID:  prev.MerchantID,
		OrderID:     prev.OrderID,
		EventType:   prev.EventType,
		URL:         prev.URL,
		Payload:     prev.Payload,
		Status:      model.WebhookStatusPending,
		NextRetryAt: &at,
	}
}

// RetryEligible 判断一条待投记录此刻是否可以尝试 (纯逻辑)
// pending 且在 24 小时窗口内; next_retry_at 为空表示首发, 立即可投
func RetryEligible(d *model.WebhookDelivery, now time.Time) bool {
	if d.Status != model.WebhookStatusPending {
		return false
	}
	if now.Sub(d.CreatedAt) > webhookRetryWindow {
		return false
	}
	if d.NextRetryAt != nil && d.NextRetryAt.After(now) {
		return false
	}
	return true
}

// EnqueueOrderEventTx 在订单事务里落一条待投递记录
// 事务回滚时记录一并消失, 不会发出幽灵回调; 提交后由 DeliverAsync 首发, 清扫兜底
func (s *WebhookService) EnqueueOrderEventTx(tx *gorm.DB, order *model.Order, eventType string) (*model.WebhookDelivery, error) {
	if order.CallbackURL == "" {
		return nil, nil
	}

	// 同一 (订单, 事件) 只建一条链: 重复入队沿用已有记录, event_id 不漂移
	var existing model.WebhookDelivery
	err := tx.Where("order_id = ? AND event_type = ?", order.ID, eventType).
		Order("attempt desc").
		First(&existing).Error
	if err == nil {
		return &existing, nil
	}
	if err != gorm.ErrRecordNotFound {
		return nil, err
	}

	var merchant model.Merchant
	if err := tx.First(&merchant, order.MerchantID).Error; err != nil {
		return nil, err
	}
	payload, err := buildOrderPayload(order, &merchant, eventType)
	if err != nil {
		return nil, err
	}

	delivery := &model.WebhookDelivery{
		EventID:    uuid.NewString(),
		Attempt:    1,
		MerchantID: order.MerchantID,
		OrderID:    order.ID,
		EventType:  eventType,
		URL:        order.CallbackURL,
		Payload:    string(payload),
		Status:     model.WebhookStatusPending,
	}
	if err := tx.Create(delivery).Error; err != nil {
		return nil, err
	}
	return delivery, nil
}

// DeliverAsync 事务提交后异步首发; 失败或进程死亡由重试清扫接手
func (s *WebhookService) DeliverAsync(delivery *model.WebhookDelivery) {
	if delivery == nil {
		return
	}
	go func() {
		// 与调用方的请求生命周期解耦
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := s.attempt(ctx, delivery); err != nil {
			logger.Error("回调投递失败", zap.String("event_id", delivery.EventID), zap.Error(err))
		}
	}()
}

// buildOrderPayload 规范化 JSON 载荷, 重试时原样重发
func buildOrderPayload(order *model.Order, merchant *model.Merchant, eventType string) ([]byte, error) {
	payload := map[string]interface{}{
		"event_type":     eventType,
		"merchant_no":    merchant.MerchantNo,
		"order_no":       order.OrderNo,
		"out_trade_no":   order.OutTradeNo,
		"order_type":     order.OrderType,
		"chain":          order.Chain,
		"token":          order.Token,
		"amount":         order.Amount.String(),
		"fee":            order.Fee.String(),
		"net_amount":     order.NetAmount.String(),
		"status":         order.Status,
		"wallet_address": order.WalletAddress,
		"to_address":     order.ToAddress,
		"tx_hash":        order.TxHash,
		"confirmations":  order.Confirmations,
		"timestamp":      time.Now().UnixMilli(),
	}
	if order.CompletedAt != nil {
		payload["completed_at"] = order.CompletedAt.UTC().Format(time.RFC3339)
	}
	return json.Marshal(payload)
}

// attempt 执行一次投递, 结果落在本行; 失败时追加下一次尝试
// 签名密钥现查现用: 商户换密钥后重试立即生效
func (s *WebhookService) attempt(ctx context.Context, delivery *model.WebhookDelivery) error {
	// 占住本行, 首发 goroutine 与重试清扫不会双发同一次尝试
	res := s.db.WithContext(ctx).Model(&model.WebhookDelivery{}).
		Where("id = ? AND status = ?", delivery.ID, model.WebhookStatusPending).
		Update("status", model.WebhookStatusSending)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return nil
	}

	var order model.Order
	if err := s.db.WithContext(ctx).First(&order, delivery.OrderID).Error; err != nil {
		return err
	}
	var merchant model.Merchant
	if err := s.db.WithContext(ctx).First(&merchant, delivery.MerchantID).Error; err != nil {
		return err
	}

	secret := merchant.DepositKey
	if order.OrderType == model.OrderTypeWithdraw {
		secret = merchant.WithdrawKey
	}
	message := BuildSignatureMessage(merchant.MerchantNo, order.OrderNo, order.Status, order.Amount.String())
	signature := crypto_util.HmacSHA256Hex(secret, message)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, delivery.URL, bytes.NewBufferString(delivery.Payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-AKX-Signature", signature)
	req.Header.Set("X-AKX-Event-Type", delivery.EventType)
	req.Header.Set("X-AKX-Event-ID", delivery.EventID)

	updates := map[string]interface{}{}
	delivered := false

	resp, err := s.client.Do(req)
	if err != nil {
		updates["last_error"] = err.Error()
		monitor.Business.WebhookDeliveredTotal.WithLabelValues("error").Inc()
	} else {
		defer resp.Body.Close()
		body, _ := io.ReadAll(io.LimitReader(resp.Body, webhookResponseLimit))
		updates["response_code"] = resp.StatusCode
		updates["response_body"] = string(body)
		if resp.StatusCode >= 200 && resp.StatusCode < 300 {
			delivered = true
		} else {
			updates["last_error"] = fmt.Sprintf("http %d", resp.StatusCode)
			monitor.Business.WebhookDeliveredTotal.WithLabelValues("failed").Inc()
		}
	}

	if delivered {
		now := time.Now().UTC()
		updates["status"] = model.WebhookStatusDelivered
		updates["delivered_at"] = now
		monitor.Business.WebhookDeliveredTotal.WithLabelValues("success").Inc()
		logger.Info("回调投递成功 webhook delivered",
			zap.String("event_id", delivery.EventID),
			zap.Int("attempt", delivery.Attempt))
		return s.db.WithContext(ctx).Model(delivery).Updates(updates).Error
	}

	updates["status"] = model.WebhookStatusFailed
	if err := s.db.WithContext(ctx).Model(delivery).Updates(updates).Error; err != nil {
		return err
	}
	return s.scheduleRetry(ctx, delivery)
}

// scheduleRetry 失败后追加下一次尝试; 超过上限则终结这条链
func (s *WebhookService) scheduleRetry(ctx context.Context, prev *model.WebhookDelivery) error {
	maxRetries := config.Global.Webhook.MaxRetries
	if maxRetries <= 0 {
		maxRetries = 3
	}
	if prev.Attempt >= maxRetries {
		logger.Warn("回调重试次数耗尽 webhook exhausted",
			zap.String("event_id", prev.EventID),
			zap.Int("attempts", prev.Attempt))
		return nil
	}
	next := NextAttempt(prev, time.Now().UTC())
	return s.db.WithContext(ctx).Create(next).Error
}

// RetrySweep 捞起到期待投的记录 (cron 调用)
// 含从未首发过的 (next_retry_at 为空) 与投到一半进程崩溃的
func (s *WebhookService) RetrySweep(ctx context.Context) error {
	now := time.Now().UTC()

	// 崩溃恢复: 占住太久没出结果的放回待投
	res := s.db.WithContext(ctx).Model(&model.WebhookDelivery{}).
		Where("status = ? AND updated_at < ?", model.WebhookStatusSending, now.Add(-webhookSendingStale)).
		Update("status", model.WebhookStatusPending)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected > 0 {
		logger.Warn("回收卡住的回调投递 stale deliveries reclaimed", zap.Int64("count", res.RowsAffected))
	}

	var deliveries []model.WebhookDelivery
	err := s.db.WithContext(ctx).
		Where("status = ? AND (next_retry_at IS NULL OR next_retry_at <= ?) AND created_at > ?",
			model.WebhookStatusPending, now, now.Add(-webhookRetryWindow)).
		Limit(100).
		Find(&deliveries).Error
	if err != nil {
		return err
	}

	for i := range deliveries {
		if !RetryEligible(&deliveries[i], now) {
			continue
		}
		if err := s.attempt(ctx, &deliveries[i]); err != nil {
			logger.Error("回调重试失败", zap.String("event_id", deliveries[i].EventID), zap.Error(err))
		}
	}
	return nil
}
