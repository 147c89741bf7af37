package model

import (
	"time"
)

// 回调投递状态
const (
	WebhookStatusPending   = "pending"
	WebhookStatusSending   = "sending" // 已被某个投递方占住
	WebhookStatusDelivered = "delivered"
	WebhookStatusFailed    = "failed"
)

// 回调事件类型
const (
	WebhookEventOrderSuccess = "order.success"
	WebhookEventOrderFailed  = "order.failed"
	WebhookEventOrderExpired = "order.expired"
)

// WebhookDelivery 回调投递表, 一行一次尝试
// 同一逻辑事件的所有尝试共享 EventID (商户侧幂等键) 与载荷;
// 失败的尝试保留完整响应快照, 重试追加新行
type WebhookDelivery struct {
	ID      uint64 `gorm:"primaryKey;autoIncrement" json:"id"`
	EventID string `gorm:"type:varchar(64);not null;uniqueIndex:idx_event_attempt" json:"event_id"`
	Attempt int    `gorm:"not null;default:1;uniqueIndex:idx_event_attempt" json:"attempt"` // 第几次尝试, 从 1 起

	MerchantID uint64 `gorm:"not null;index" json:"merchant_id"`
	OrderID    uint64 `gorm:"not null;index" json:"order_id"`
	EventType  string `gorm:"type:varchar(32);not null" json:"event_type"`

	URL     string `gorm:"type:varchar(512);not null" json:"url"`
	Payload string `gorm:"type:text;not null" json:"payload"` // 规范化 JSON, 重试时原样重发

	Status       string     `gorm:"type:varchar(16);not null;default:'pending';index" json:"status"`
	ResponseCode int        `gorm:"not null;default:0" json:"response_code"`
	ResponseBody string     `gorm:"type:varchar(1024)" json:"response_body"`
	LastError    string     `gorm:"type:varchar(512)" json:"last_error"`
	NextRetryAt  *time.Time `gorm:"index" json:"next_retry_at"` // NULL 表示立即可投 (首发)
	DeliveredAt  *time.Time `json:"delivered_at"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (WebhookDelivery) TableName() string {
	return "webhook_deliveries"
}
