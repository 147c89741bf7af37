package service

import (
	"context"

	"akx-core/internal/model"
	"akx-core/pkg/errno"
	"akx-core/pkg/logger"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// LedgerService 是唯一的余额写入路径
// 每次账变在单事务里: 行锁商户 → 计算前后快照 → 追加流水 → 更新缓存余额
type LedgerService struct {
	db *gorm.DB
}

func NewLedgerService(db *gorm.DB) *LedgerService {
	return &LedgerService{db: db}
}

// ledgerChange 一次账变的完整描述
type ledgerChange struct {
	MerchantID   uint64
	OrderID      uint64
	ChangeType   string
	Amount       decimal.Decimal // 可用余额变动, 有符号
	FrozenAmount decimal.Decimal // 冻结余额变动, 有符号
	OperatorID   string
	Remark       string
}

// apply 在给定事务里执行账变, 写入前校验不变量
func (s *LedgerService) apply(tx *gorm.DB, c ledgerChange, check func(m *model.Merchant) error) error {
	var m model.Merchant
	if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&m, c.MerchantID).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return errno.ErrMerchantNotFound
		}
		return err
	}
	if check != nil {
		if err := check(&m); err != nil {
			return err
		}
	}

	entry := model.BalanceLedger{
		MerchantID:   c.MerchantID,
		OrderID:      c.OrderID,
		ChangeType:   c.ChangeType,
		Amount:       c.Amount,
		PreBalance:   m.Balance,
		PostBalance:  m.Balance.Add(c.Amount),
		FrozenAmount: c.FrozenAmount,
		PreFrozen:    m.FrozenBalance,
		PostFrozen:   m.FrozenBalance.Add(c.FrozenAmount),
		OperatorID:   c.OperatorID,
		Remark:       c.Remark,
	}

	// 不变量: post == pre + amount; 违反说明写入路径被破坏, 立即中止
	if err := VerifyLedgerEntry(&entry); err != nil {
		logger.Error("账本不变量被违反, 拒绝写入",
			zap.Uint64("merchant_id", c.MerchantID),
			zap.String("change_type", c.ChangeType),
			zap.String("amount", c.Amount.String()))
		return err
	}

	if err := tx.Create(&entry).Error; err != nil {
		return err
	}
	return tx.Model(&m).Updates(map[string]interface{}{
		"balance":        entry.PostBalance,
		"frozen_balance": entry.PostFrozen,
	}).Error
}

// VerifyLedgerEntry 校验单条流水的前后快照关系
func VerifyLedgerEntry(e *model.BalanceLedger) error {
	if !e.PostBalance.Equal(e.PreBalance.Add(e.Amount)) {
		return errno.ErrLedgerInvariant
	}
	if !e.PostFrozen.Equal(e.PreFrozen.Add(e.FrozenAmount)) {
		return errno.ErrLedgerInvariant
	}
	return nil
}

// ReplayBalance 按创建顺序回放流水, 返回最终余额
// 任意一条断链或快照不一致都返回不变量错误 (对账用)
func ReplayBalance(entries []model.BalanceLedger) (decimal.Decimal, error) {
	balance := decimal.Zero
	for i := range entries {
		e := &entries[i]
		if err := VerifyLedgerEntry(e); err != nil {
			return decimal.Zero, err
		}
		if i > 0 && !e.PreBalance.Equal(entries[i-1].PostBalance) {
			return decimal.Zero, errno.ErrLedgerInvariant
		}
		balance = e.PostBalance
	}
	return balance, nil
}

// CreditTx 入账; 供结算引擎在订单事务里复用
func (s *LedgerService) CreditTx(tx *gorm.DB, merchantID uint64, amount decimal.Decimal, orderID uint64, changeType string, remark string) error {
	return s.apply(tx, ledgerChange{
		MerchantID: merchantID,
		OrderID:    orderID,
		ChangeType: changeType,
		Amount:     amount,
		Remark:     remark,
	}, nil)
}

func (s *LedgerService) Credit(ctx context.Context, merchantID uint64, amount decimal.Decimal, orderID uint64, changeType string, remark string) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return s.CreditTx(tx, merchantID, amount, orderID, changeType, remark)
	})
}

// DebitTx 扣款; 允许透支到 -CreditLimit, 超出返回余额不足
func (s *LedgerService) DebitTx(tx *gorm.DB, merchantID uint64, amount decimal.Decimal, orderID uint64, changeType string, remark string) error {
	return s.apply(tx, ledgerChange{
		MerchantID: merchantID,
		OrderID:    orderID,
		ChangeType: changeType,
		Amount:     amount.Neg(),
		Remark:     remark,
	}, func(m *model.Merchant) error {
		if m.Balance.Sub(amount).LessThan(m.CreditLimit.Neg()) {
			return errno.ErrInsufficientBalance
		}
		return nil
	})
}

func (s *LedgerService) Debit(ctx context.Context, merchantID uint64, amount decimal.Decimal, orderID uint64, changeType string, remark string) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return s.DebitTx(tx, merchantID, amount, orderID, changeType, remark)
	})
}

// ManualAdjust 人工调账, 有符号金额, 必须记录操作员
func (s *LedgerService) ManualAdjust(ctx context.Context, operatorID string, merchantID uint64, amount decimal.Decimal, remark string) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return s.apply(tx, ledgerChange{
			MerchantID: merchantID,
			ChangeType: model.LedgerTypeManualAdjust,
			Amount:     amount,
			OperatorID: operatorID,
			Remark:     remark,
		}, nil)
	})
}

// FreezeFeeTx 冻结手续费: 可用余额不动, 冻结余额增加
// 要求 可用余额 = balance - frozen + credit_limit >= amount
func (s *LedgerService) FreezeFeeTx(tx *gorm.DB, merchantID uint64, amount decimal.Decimal, orderID uint64) error {
	return s.apply(tx, ledgerChange{
		MerchantID:   merchantID,
		OrderID:      orderID,
		ChangeType:   model.LedgerTypeFeeFreeze,
		FrozenAmount: amount,
	}, func(m *model.Merchant) error {
		available := m.Balance.Sub(m.FrozenBalance).Add(m.CreditLimit)
		if available.LessThan(amount) {
			return errno.ErrInsufficientBalance
		}
		return nil
	})
}

// SettleFeeTx 结算冻结的手续费: 冻结减少, 可用余额实扣
func (s *LedgerService) SettleFeeTx(tx *gorm.DB, merchantID uint64, amount decimal.Decimal, orderID uint64) error {
	return s.apply(tx, ledgerChange{
		MerchantID:   merchantID,
		OrderID:      orderID,
		ChangeType:   model.LedgerTypeFeeSettle,
		Amount:       amount.Neg(),
		FrozenAmount: amount.Neg(),
	}, nil)
}

// UnfreezeFeeTx 解冻手续费: 订单过期或失败时退回
func (s *LedgerService) UnfreezeFeeTx(tx *gorm.DB, merchantID uint64, amount decimal.Decimal, orderID uint64) error {
	return s.apply(tx, ledgerChange{
		MerchantID:   merchantID,
		OrderID:      orderID,
		ChangeType:   model.LedgerTypeFeeUnfreeze,
		FrozenAmount: amount.Neg(),
	}, nil)
}

func (s *LedgerService) FreezeFee(ctx context.Context, merchantID uint64, amount decimal.Decimal, orderID uint64) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return s.FreezeFeeTx(tx, merchantID, amount, orderID)
	})
}

func (s *LedgerService) UnfreezeFee(ctx context.Context, merchantID uint64, amount decimal.Decimal, orderID uint64) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return s.UnfreezeFeeTx(tx, merchantID, amount, orderID)
	})
}
