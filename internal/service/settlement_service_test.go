package service

import (
	"testing"

	"akx-core/internal/chain"
	"akx-core/internal/model"
)

func TestCanTransition(t *testing.T) {
	cases := []struct {
		from, to string
		want     bool
	}{
		{model.OrderStatusPending, model.OrderStatusConfirming, true},
		{model.OrderStatusPending, model.OrderStatusProcessing, true},
		{model.OrderStatusPending, model.OrderStatusExpired, true},
		{model.OrderStatusPending, model.OrderStatusFailed, true},
		{model.OrderStatusPending, model.OrderStatusSuccess, false}, // 必须经过 confirming
		{model.OrderStatusProcessing, model.OrderStatusConfirming, true},
		{model.OrderStatusProcessing, model.OrderStatusFailed, true},
		{model.OrderStatusProcessing, model.OrderStatusExpired, false},
		{model.OrderStatusConfirming, model.OrderStatusSuccess, true},
		{model.OrderStatusConfirming, model.OrderStatusFailed, true},
		{model.OrderStatusConfirming, model.OrderStatusPending, false},
		// 终态不再转移
		{model.OrderStatusSuccess, model.OrderStatusFailed, false},
		{model.OrderStatusFailed, model.OrderStatusSuccess, false},
		{model.OrderStatusExpired, model.OrderStatusConfirming, false},
	}
	for _, c := range cases {
		if got := CanTransition(c.from, c.to); got != c.want {
			t.Errorf("CanTransition(%s, %s) = %v, 期望 %v", c.from, c.to, got, c.want)
		}
	}
}

func depositOrder(amount, token, status string) model.Order {
	return model.Order{
		OrderType: model.OrderTypeDeposit,
		Token:     token,
		Amount:    d(amount),
		Status:    status,
	}
}

func TestMatchTransferExactAmount(t *testing.T) {
	orders := []model.Order{
		depositOrder("100.001", "USDT", model.OrderStatusPending),
		depositOrder("100.002", "USDT", model.OrderStatusPending),
	}

	ev := chain.TransferEvent{Token: "USDT", Amount: d("100.002")}
	got := MatchTransfer(orders, ev)
	if got == nil || !got.Amount.Equal(d("100.002")) {
		t.Fatal("应精确匹配 100.002 的订单")
	}
}

func TestMatchTransferRejectsNearMiss(t *testing.T) {
	orders := []model.Order{
		depositOrder("100.001", "USDT", model.OrderStatusPending),
	}

	// 少付与多付都不匹配
	for _, amount := range []string{"100.000", "100.0009", "100.0011", "99.001", "200.001"} {
		ev := chain.TransferEvent{Token: "USDT", Amount: d(amount)}
		if MatchTransfer(orders, ev) != nil {
			t.Errorf("金额 %s 不应匹配 100.001 的订单", amount)
		}
	}
}

func TestMatchTransferTokenMismatch(t *testing.T) {
	orders := []model.Order{
		depositOrder("50.007", "USDT", model.OrderStatusPending),
	}
	ev := chain.TransferEvent{Token: "USDC", Amount: d("50.007")}
	if MatchTransfer(orders, ev) != nil {
		t.Fatal("代币不同不应匹配")
	}
}

// 充值成功的账变合计必须恰好是 net_amount: 全额入账一次, 手续费实扣一次
func TestDepositSettlementChargesFeeOnce(t *testing.T) {
	order := model.Order{
		ID:         7,
		MerchantID: 1,
		OrderType:  model.OrderTypeDeposit,
		Amount:     d("100.001"),
		Fee:        d("1"),
		NetAmount:  d("99.001"),
	}

	changes := depositSettlement(&order)
	if len(changes) != 2 {
		t.Fatalf("期望 2 条账变 (入账 + 手续费结算), 得到 %d", len(changes))
	}

	balanceDelta := d("0")
	frozenDelta := d("0")
	for _, c := range changes {
		balanceDelta = balanceDelta.Add(c.Amount)
		frozenDelta = frozenDelta.Add(c.FrozenAmount)
	}
	if !balanceDelta.Equal(order.NetAmount) {
		t.Errorf("商户净入 %s, 期望 net_amount %s", balanceDelta, order.NetAmount)
	}
	// 建单时冻结的手续费在这里正好全部释放
	if !frozenDelta.Equal(order.Fee.Neg()) {
		t.Errorf("冻结变动 %s, 期望 %s", frozenDelta, order.Fee.Neg())
	}
}

func TestDepositSettlementZeroFee(t *testing.T) {
	order := model.Order{
		MerchantID: 1,
		Amount:     d("50"),
		Fee:        d("0"),
		NetAmount:  d("50"),
	}
	changes := depositSettlement(&order)
	if len(changes) != 1 {
		t.Fatalf("零手续费只应有入账一条, 得到 %d", len(changes))
	}
	if !changes[0].Amount.Equal(d("50")) {
		t.Errorf("入账金额 %s, 期望 50", changes[0].Amount)
	}
}

func TestMatchTransferSkipsNonPending(t *testing.T) {
	orders := []model.Order{
		depositOrder("10.005", "USDT", model.OrderStatusConfirming),
		depositOrder("10.005", "USDT", model.OrderStatusPending),
	}
	got := MatchTransfer(orders, chain.TransferEvent{Token: "USDT", Amount: d("10.005")})
	if got == nil || got.Status != model.OrderStatusPending {
		t.Fatal("应跳过非 pending 订单")
	}
}
