package model

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// PaymentChannel 支付通道表
// 每日额度在 UTC 零点懒重置: 读取时发现 DailyResetAt 早于今天零点就先清零 DailyUsed
type PaymentChannel struct {
	ID   uint64 `gorm:"primaryKey;autoIncrement" json:"id"`
	Name string `gorm:"type:varchar(64);not null;unique" json:"name"`

	Chain   string `gorm:"type:varchar(16);not null;index" json:"chain"`
	Token   string `gorm:"type:varchar(16);not null" json:"token"`
	Address string `gorm:"type:varchar(64);not null" json:"address"` // 绑定的收款地址

	MinAmount    decimal.Decimal `gorm:"type:decimal(32,8);not null;default:0" json:"min_amount"`
	MaxAmount    decimal.Decimal `gorm:"type:decimal(32,8);not null;default:0" json:"max_amount"`    // 0 表示不限
	BalanceLimit decimal.Decimal `gorm:"type:decimal(32,8);not null;default:0" json:"balance_limit"` // 地址余额上限, 0 表示不限

	DailyLimit   decimal.Decimal `gorm:"type:decimal(32,8);not null;default:0" json:"daily_limit"` // 0 表示不限
	DailyUsed    decimal.Decimal `gorm:"type:decimal(32,8);not null;default:0" json:"daily_used"`
	DailyResetAt *time.Time      `json:"daily_reset_at"`

	Priority int  `gorm:"not null;default:100" json:"priority"` // 越小越优先
	IsActive bool `gorm:"not null;default:true" json:"is_active"`

	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}

func (PaymentChannel) TableName() string {
	return "payment_channels"
}

// NeedsDailyReset 判断是否跨过了 UTC 零点
func (c *PaymentChannel) NeedsDailyReset(now time.Time) bool {
	if c.DailyResetAt == nil {
		return true
	}
	y1, m1, d1 := c.DailyResetAt.UTC().Date()
	y2, m2, d2 := now.UTC().Date()
	return y1 != y2 || m1 != m2 || d1 != d2
}

// Remaining 返回今日剩余额度; 不限额时返回 (zero, false)
func (c *PaymentChannel) Remaining() (decimal.Decimal, bool) {
	if c.DailyLimit.IsZero() {
		return decimal.Zero, false
	}
	return c.DailyLimit.Sub(c.DailyUsed), true
}
