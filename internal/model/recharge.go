package model

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// 充值单 / 归集任务状态
const (
	RechargeStatusPending    = "pending"
	RechargeStatusConfirming = "confirming"
	RechargeStatusSuccess    = "success"
	RechargeStatusExpired    = "expired"
)

const (
	CollectStatusPending    = "pending"
	CollectStatusProcessing = "processing"
	CollectStatusSuccess    = "success"
	CollectStatusFailed     = "failed"
	CollectStatusSkipped    = "skipped" // 执行时余额已低于阈值
)

// RechargeAddress 商户余额充值专用收款地址
type RechargeAddress struct {
	ID         uint64 `gorm:"primaryKey;autoIncrement" json:"id"`
	MerchantID uint64 `gorm:"not null;index" json:"merchant_id"`
	Chain      string `gorm:"type:varchar(16);not null" json:"chain"`
	Token      string `gorm:"type:varchar(16);not null" json:"token"`
	Address    string `gorm:"type:varchar(64);not null;unique" json:"address"`
	IsActive   bool   `gorm:"not null;default:true" json:"is_active"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (RechargeAddress) TableName() string {
	return "recharge_addresses"
}

// RechargeOrder 商户余额充值单 (给平台账户充钱, 区别于用户支付订单)
type RechargeOrder struct {
	ID         uint64 `gorm:"primaryKey;autoIncrement" json:"id"`
	RechargeNo string `gorm:"type:varchar(64);not null;unique" json:"recharge_no"`
	MerchantID uint64 `gorm:"not null;index" json:"merchant_id"`

	Chain   string          `gorm:"type:varchar(16);not null" json:"chain"`
	Token   string          `gorm:"type:varchar(16);not null" json:"token"`
	Address string          `gorm:"type:varchar(64);not null;index" json:"address"`
	Amount  decimal.Decimal `gorm:"type:decimal(32,8);not null" json:"amount"`

	TxHash        string `gorm:"type:varchar(128);index" json:"tx_hash"`
	Confirmations uint64 `gorm:"not null;default:0" json:"confirmations"`
	Status        string `gorm:"type:varchar(16);not null;default:'pending';index" json:"status"`

	ExpireTime  *time.Time `json:"expire_time"`
	CompletedAt *time.Time `json:"completed_at"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (RechargeOrder) TableName() string {
	return "recharge_orders"
}

// CollectTask 归集任务表
// 约束: 同一源地址同一时刻最多一个非终态任务 (pending/processing)
type CollectTask struct {
	ID uint64 `gorm:"primaryKey;autoIncrement" json:"id"`

	Chain       string `gorm:"type:varchar(16);not null" json:"chain"`
	Token       string `gorm:"type:varchar(16);not null" json:"token"`
	FromAddress string `gorm:"type:varchar(64);not null;index" json:"from_address"`
	ToAddress   string `gorm:"type:varchar(64);not null" json:"to_address"` // 目标热钱包

	Amount decimal.Decimal `gorm:"type:decimal(32,8);not null" json:"amount"` // 创建任务时的链上余额

	TxHash     string `gorm:"type:varchar(128)" json:"tx_hash"`
	Status     string `gorm:"type:varchar(16);not null;default:'pending';index" json:"status"`
	RetryCount int    `gorm:"not null;default:0" json:"retry_count"`
	LastError  string `gorm:"type:varchar(512)" json:"last_error"`

	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}

func (CollectTask) TableName() string {
	return "collect_tasks"
}

// IsLive 非终态任务占用源地址
func (t *CollectTask) IsLive() bool {
	return t.Status == CollectStatusPending || t.Status == CollectStatusProcessing
}
