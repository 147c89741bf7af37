package service

import (
	"testing"

	"akx-core/internal/model"
	"akx-core/pkg/errno"

	"github.com/shopspring/decimal"
)

func d(s string) decimal.Decimal {
	v, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return v
}

func TestVerifyLedgerEntry(t *testing.T) {
	good := &model.BalanceLedger{
		Amount:      d("100.5"),
		PreBalance:  d("10"),
		PostBalance: d("110.5"),
	}
	if err := VerifyLedgerEntry(good); err != nil {
		t.Errorf("合法流水不应报错: %v", err)
	}

	bad := &model.BalanceLedger{
		Amount:      d("100.5"),
		PreBalance:  d("10"),
		PostBalance: d("110.6"),
	}
	if err := VerifyLedgerEntry(bad); err != errno.ErrLedgerInvariant {
		t.Errorf("快照不一致应返回不变量错误, 得到 %v", err)
	}

	badFrozen := &model.BalanceLedger{
		FrozenAmount: d("5"),
		PreFrozen:    d("0"),
		PostFrozen:   d("4"),
	}
	if err := VerifyLedgerEntry(badFrozen); err != errno.ErrLedgerInvariant {
		t.Errorf("冻结快照不一致应返回不变量错误, 得到 %v", err)
	}
}

func TestReplayBalance(t *testing.T) {
	entries := []model.BalanceLedger{
		{ChangeType: model.LedgerTypeDepositCredit, Amount: d("100"), PreBalance: d("0"), PostBalance: d("100")},
		{ChangeType: model.LedgerTypeWithdrawDebit, Amount: d("-30"), PreBalance: d("100"), PostBalance: d("70")},
		{ChangeType: model.LedgerTypeFeeSettle, Amount: d("-0.5"), PreBalance: d("70"), PostBalance: d("69.5"),
			FrozenAmount: d("-0.5"), PreFrozen: d("0.5"), PostFrozen: d("0")},
	}

	final, err := ReplayBalance(entries)
	if err != nil {
		t.Fatalf("回放失败: %v", err)
	}
	if !final.Equal(d("69.5")) {
		t.Errorf("回放余额错误。得到: %s, 期望: 69.5", final)
	}
}

func TestReplayBalanceDetectsBrokenChain(t *testing.T) {
	// 第二条的 pre 与第一条的 post 不衔接
	entries := []model.BalanceLedger{
		{Amount: d("100"), PreBalance: d("0"), PostBalance: d("100")},
		{Amount: d("-30"), PreBalance: d("99"), PostBalance: d("69")},
	}

	if _, err := ReplayBalance(entries); err != errno.ErrLedgerInvariant {
		t.Errorf("断链应返回不变量错误, 得到 %v", err)
	}
}

func TestReplayBalanceEmpty(t *testing.T) {
	final, err := ReplayBalance(nil)
	if err != nil {
		t.Fatalf("空流水回放不应报错: %v", err)
	}
	if !final.IsZero() {
		t.Errorf("空流水应回放出零余额, 得到 %s", final)
	}
}
