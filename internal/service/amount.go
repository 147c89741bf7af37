package service

import (
	"context"
	"math/big"
	"time"

	"akx-core/internal/model"
	"akx-core/pkg/errno"
	"akx-core/pkg/safe_random"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// 金额尾数空间: 小数点后三位 001–999
const suffixSpace = 999

var milli = decimal.New(1, -3) // 0.001

// AmountDisambiguator 为共用同一收款地址的多笔订单生成互不冲突的支付金额
// 尾数占用集合来自数据库里未过期的 pending 充值订单, 订单终结后尾数自然释放
type AmountDisambiguator struct {
	db *gorm.DB
}

func NewAmountDisambiguator(db *gorm.DB) *AmountDisambiguator {
	return &AmountDisambiguator{db: db}
}

// UniqueAmount 返回在 address 上无冲突的最终支付金额
// 整数部分保持不变, 仅调整三位小数尾数
func (a *AmountDisambiguator) UniqueAmount(ctx context.Context, address string, amount decimal.Decimal) (decimal.Decimal, error) {
	base := amount.Truncate(0)
	requested := SuffixOf(amount)

	used, err := a.usedSuffixes(ctx, address, base)
	if err != nil {
		return decimal.Zero, err
	}

	suffix, err := PickSuffix(requested, used)
	if err != nil {
		return decimal.Zero, err
	}
	return base.Add(decimal.New(int64(suffix), -3)), nil
}

// usedSuffixes 收集同地址同整数部分的在途订单尾数
func (a *AmountDisambiguator) usedSuffixes(ctx context.Context, address string, base decimal.Decimal) (map[int]bool, error) {
	var amounts []decimal.Decimal
	err := a.db.WithContext(ctx).
		Model(&model.Order{}).
		Where("wallet_address = ? AND order_type = ? AND status = ?", address, model.OrderTypeDeposit, model.OrderStatusPending).
		Where("expire_time IS NULL OR expire_time > ?", time.Now().UTC()).
		Where("amount >= ? AND amount < ?", base, base.Add(decimal.New(1, 0))).
		Pluck("amount", &amounts).Error
	if err != nil {
		return nil, err
	}

	used := make(map[int]bool, len(amounts))
	for _, amt := range amounts {
		used[SuffixOf(amt)] = true
	}
	return used, nil
}

// SuffixOf 提取金额的三位小数尾数 (100.125 → 125)
func SuffixOf(amount decimal.Decimal) int {
	frac := amount.Sub(amount.Truncate(0))
	return int(frac.Div(milli).Truncate(0).IntPart())
}

// PickSuffix 选择一个未被占用的尾数
// 原始尾数空闲就保留 (可以是 000); 否则在空闲尾数里均匀随机挑一个;
// 999 个尾数全部占用时返回容量错误
func PickSuffix(requested int, used map[int]bool) (int, error) {
	if !used[requested] {
		return requested, nil
	}

	free := make([]int, 0, suffixSpace)
	for s := 1; s <= suffixSpace; s++ {
		if !used[s] {
			free = append(free, s)
		}
	}
	if len(free) == 0 {
		return 0, errno.ErrAmountSuffixExhausted
	}

	idx, err := safe_random.GenerateRandomInt(big.NewInt(int64(len(free))))
	if err != nil {
		return 0, err
	}
	return free[idx.Int64()], nil
}
