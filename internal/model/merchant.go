package model

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Merchant 商户表
// 余额三元组: Balance(可用) / FrozenBalance(冻结) / CreditLimit(信用额度, 允许透支到 -CreditLimit)
type Merchant struct {
	ID             uint64          `gorm:"primaryKey;autoIncrement" json:"id"`
	MerchantNo     string          `gorm:"type:varchar(32);not null;unique" json:"merchant_no"`
	Name           string          `gorm:"type:varchar(255);not null" json:"name"`
	Balance        decimal.Decimal `gorm:"type:decimal(32,8);not null;default:0" json:"balance"`
	FrozenBalance  decimal.Decimal `gorm:"type:decimal(32,8);not null;default:0" json:"frozen_balance"`
	CreditLimit    decimal.Decimal `gorm:"type:decimal(32,8);not null;default:0" json:"credit_limit"`
	TotalRecharged decimal.Decimal `gorm:"type:decimal(32,8);not null;default:0" json:"total_recharged"` // 累计充值到账

	// 回调签名密钥: 充值与提现各一把
	DepositKey  string `gorm:"type:varchar(128);not null" json:"-"`
	WithdrawKey string `gorm:"type:varchar(128);not null" json:"-"`

	CallbackURL string `gorm:"type:varchar(512)" json:"callback_url"`
	IsActive    bool   `gorm:"not null;default:true" json:"is_active"`

	// 费率: fee = amount * FeeRate + FeeFixed
	DepositFeeRate   decimal.Decimal `gorm:"type:decimal(10,6);not null;default:0" json:"deposit_fee_rate"`
	DepositFeeFixed  decimal.Decimal `gorm:"type:decimal(32,8);not null;default:0" json:"deposit_fee_fixed"`
	WithdrawFeeRate  decimal.Decimal `gorm:"type:decimal(10,6);not null;default:0" json:"withdraw_fee_rate"`
	WithdrawFeeFixed decimal.Decimal `gorm:"type:decimal(32,8);not null;default:0" json:"withdraw_fee_fixed"`

	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}

func (Merchant) TableName() string {
	return "merchants"
}

// Available 返回可动用额度 (余额 + 信用额度)
func (m *Merchant) Available() decimal.Decimal {
	return m.Balance.Add(m.CreditLimit)
}
