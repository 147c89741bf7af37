package model

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// 订单类型
const (
	OrderTypeDeposit  = "deposit"
	OrderTypeWithdraw = "withdraw"
)

// 订单状态机: pending → confirming → processing → success
// pending → expired / failed; processing → failed; 任意非终态 → success (强制完成)
const (
	OrderStatusPending    = "pending"
	OrderStatusConfirming = "confirming"
	OrderStatusProcessing = "processing"
	OrderStatusSuccess    = "success"
	OrderStatusFailed     = "failed"
	OrderStatusExpired    = "expired"
)

// 回调状态
const (
	CallbackStatusNone    = "none"
	CallbackStatusPending = "pending"
	CallbackStatusSuccess = "success"
	CallbackStatusFailed  = "failed"
)

// Order 支付订单表 (充值 + 提现共用)
type Order struct {
	ID         uint64 `gorm:"primaryKey;autoIncrement" json:"id"`
	OrderNo    string `gorm:"type:varchar(64);not null;unique" json:"order_no"`
	OutTradeNo string `gorm:"type:varchar(128);not null;uniqueIndex:idx_merchant_out_trade" json:"out_trade_no"` // 商户侧订单号
	MerchantID uint64 `gorm:"not null;index;uniqueIndex:idx_merchant_out_trade" json:"merchant_id"`

	OrderType string `gorm:"type:varchar(16);not null" json:"order_type"` // deposit, withdraw
	Chain     string `gorm:"type:varchar(16);not null" json:"chain"`      // trx, eth, sol
	Token     string `gorm:"type:varchar(16);not null" json:"token"`      // USDT 等

	Amount    decimal.Decimal `gorm:"type:decimal(32,8);not null" json:"amount"`     // 期望/实际到账金额 (含唯一性尾数)
	Fee       decimal.Decimal `gorm:"type:decimal(32,8);not null;default:0" json:"fee"`
	NetAmount decimal.Decimal `gorm:"type:decimal(32,8);not null;default:0" json:"net_amount"` // Amount - Fee

	WalletAddress string `gorm:"type:varchar(64);index:idx_wallet_status" json:"wallet_address"` // 充值: 收款地址
	ToAddress     string `gorm:"type:varchar(64)" json:"to_address"`                             // 提现: 目标地址
	FromAddress   string `gorm:"type:varchar(64)" json:"from_address"`

	TxHash        string `gorm:"type:varchar(128);index" json:"tx_hash"`
	BlockHeight   uint64 `gorm:"not null;default:0" json:"block_height"`
	Confirmations uint64 `gorm:"not null;default:0" json:"confirmations"`

	Status string `gorm:"type:varchar(16);not null;default:'pending';index:idx_wallet_status" json:"status"`

	CallbackURL    string `gorm:"type:varchar(512)" json:"callback_url"`
	CallbackStatus string `gorm:"type:varchar(16);not null;default:'none'" json:"callback_status"`
	CallbackRetry  int    `gorm:"not null;default:0" json:"callback_retry"`

	ExpireTime  *time.Time `json:"expire_time"`
	CompletedAt *time.Time `json:"completed_at"`

	// 强制完成审计
	ForceCompletedBy string `gorm:"type:varchar(64)" json:"force_completed_by,omitempty"`
	ForceRemark      string `gorm:"type:varchar(512)" json:"force_remark,omitempty"`

	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}

func (Order) TableName() string {
	return "orders"
}

// IsTerminal 终态订单不再接受任何转移
func (o *Order) IsTerminal() bool {
	switch o.Status {
	case OrderStatusSuccess, OrderStatusFailed, OrderStatusExpired:
		return true
	}
	return false
}
