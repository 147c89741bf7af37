package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// 账变类型
const (
	LedgerTypeDepositCredit = "deposit_credit" // 充值入账
	LedgerTypeWithdrawDebit = "withdraw_debit" // 提现扣款
	LedgerTypeFeeFreeze     = "fee_freeze"     // 手续费冻结
	LedgerTypeFeeSettle     = "fee_settle"     // 冻结手续费结算 (实扣)
	LedgerTypeFeeUnfreeze   = "fee_unfreeze"   // 冻结手续费解冻 (退回)
	LedgerTypeManualAdjust  = "manual_adjust"  // 人工调账
	LedgerTypeSweep         = "sweep"          // 归集记账
	LedgerTypeRefund        = "refund"         // 提现失败退款
	LedgerTypeRecharge      = "recharge"       // 商户余额充值
)

// BalanceLedger 余额流水表 (仅追加, 不可修改)
// 每条记录都带前后快照, 用于对账回放: PostBalance 必须等于 PreBalance + Amount
type BalanceLedger struct {
	ID         uint64 `gorm:"primaryKey;autoIncrement" json:"id"`
	MerchantID uint64 `gorm:"not null;index" json:"merchant_id"`
	OrderID    uint64 `gorm:"index" json:"order_id"` // 关联订单, 人工调账时为 0

	ChangeType string          `gorm:"type:varchar(24);not null" json:"change_type"`
	Amount     decimal.Decimal `gorm:"type:decimal(32,8);not null" json:"amount"` // 有符号: 入账为正, 扣款为负

	PreBalance  decimal.Decimal `gorm:"type:decimal(32,8);not null" json:"pre_balance"`
	PostBalance decimal.Decimal `gorm:"type:decimal(32,8);not null" json:"post_balance"`

	// 冻结余额变动 (仅 freeze/settle/unfreeze 类型使用)
	FrozenAmount decimal.Decimal `gorm:"type:decimal(32,8);not null;default:0" json:"frozen_amount"`
	PreFrozen    decimal.Decimal `gorm:"type:decimal(32,8);not null;default:0" json:"pre_frozen"`
	PostFrozen   decimal.Decimal `gorm:"type:decimal(32,8);not null;default:0" json:"post_frozen"`

	OperatorID string `gorm:"type:varchar(64)" json:"operator_id"` // 人工调账操作员
	Remark     string `gorm:"type:varchar(512)" json:"remark"`

	CreatedAt time.Time `json:"created_at"`
}

func (BalanceLedger) TableName() string {
	return "balance_ledgers"
}
