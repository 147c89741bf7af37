package service

import (
	"context"
	"errors"
	"testing"

	"akx-core/internal/chain"
)

func TestConsumeEventsAllOK(t *testing.T) {
	events := []chain.TransferEvent{
		{TxHash: "tx1"},
		{TxHash: "tx2"},
	}
	var seen int
	ok := func(ctx context.Context, code string, ev chain.TransferEvent) error {
		seen++
		return nil
	}

	if err := consumeEvents(context.Background(), "trx", events, ok, ok); err != nil {
		t.Fatalf("全部成功不应返回错误: %v", err)
	}
	if seen != 4 {
		t.Errorf("每个事件应走过每个下游, 期望 4 次调用, 得到 %d", seen)
	}
}

func TestConsumeEventsFailureHoldsBatch(t *testing.T) {
	events := []chain.TransferEvent{
		{TxHash: "tx1"},
		{TxHash: "tx2"},
		{TxHash: "tx3"},
	}
	var seen []string
	flaky := func(ctx context.Context, code string, ev chain.TransferEvent) error {
		seen = append(seen, ev.TxHash)
		if ev.TxHash == "tx2" {
			return errors.New("db down")
		}
		return nil
	}

	// 任何一笔失败都必须报错, 调用方才不会推进游标跳过这笔入账
	err := consumeEvents(context.Background(), "trx", events, flaky)
	if err == nil {
		t.Fatal("有事件处理失败时必须返回错误")
	}
	// 失败不中断整批: 剩余事件照常处理 (各自幂等, 重扫无副作用)
	if len(seen) != 3 {
		t.Errorf("整批事件都应被尝试, 期望 3 次, 得到 %d", len(seen))
	}
}
