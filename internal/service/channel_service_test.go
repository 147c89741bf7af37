package service

import (
	"testing"

	"akx-core/internal/model"
)

func ch(name string, priority int, min, max, dailyLimit, dailyUsed string, active bool) model.PaymentChannel {
	return model.PaymentChannel{
		Name:       name,
		Priority:   priority,
		MinAmount:  d(min),
		MaxAmount:  d(max),
		DailyLimit: d(dailyLimit),
		DailyUsed:  d(dailyUsed),
		IsActive:   active,
	}
}

func TestFilterChannelsAmountBounds(t *testing.T) {
	channels := []model.PaymentChannel{
		ch("low", 1, "10", "100", "0", "0", true),
		ch("high", 1, "100", "10000", "0", "0", true),
		ch("nolimit", 2, "0", "0", "0", "0", true), // max=0 不限
	}

	got := FilterChannels(channels, d("50"))
	if len(got) != 2 {
		t.Fatalf("50 应匹配 2 个通道, 得到 %d", len(got))
	}
	if got[0].Channel.Name != "low" {
		t.Errorf("优先级高的应排前面, 得到 %s", got[0].Channel.Name)
	}

	got = FilterChannels(channels, d("5"))
	if len(got) != 1 || got[0].Channel.Name != "nolimit" {
		t.Errorf("5 只应匹配不限额通道, 得到 %d 个", len(got))
	}
}

func TestFilterChannelsDailyLimit(t *testing.T) {
	channels := []model.PaymentChannel{
		ch("nearly-full", 1, "0", "0", "1000", "980", true),
		ch("fresh", 2, "0", "0", "1000", "0", true),
	}

	// 30 会把 nearly-full 顶破日限额
	got := FilterChannels(channels, d("30"))
	if len(got) != 1 || got[0].Channel.Name != "fresh" {
		t.Fatalf("超出日限额的通道应被过滤, 得到 %d 个", len(got))
	}

	// 恰好用满可以
	got = FilterChannels(channels, d("20"))
	if len(got) != 2 {
		t.Fatalf("恰好用满日限额应放行, 得到 %d 个", len(got))
	}
	if !got[0].Remaining.Equal(d("20")) {
		t.Errorf("剩余额度应为 20, 得到 %s", got[0].Remaining)
	}
}

func TestFilterChannelsOrdering(t *testing.T) {
	channels := []model.PaymentChannel{
		ch("b", 1, "0", "0", "0", "500", true),
		ch("a", 1, "0", "0", "0", "100", true),
		ch("c", 0, "0", "0", "0", "900", true),
		ch("inactive", 0, "0", "0", "0", "0", false),
	}

	got := FilterChannels(channels, d("10"))
	if len(got) != 3 {
		t.Fatalf("停用通道应被过滤, 得到 %d 个", len(got))
	}
	want := []string{"c", "a", "b"} // priority 升序, 再按 daily_used 升序
	for i, name := range want {
		if got[i].Channel.Name != name {
			t.Errorf("排序错误: 位置 %d 得到 %s, 期望 %s", i, got[i].Channel.Name, name)
		}
	}
}

func TestPickChannelForToken(t *testing.T) {
	usdt := ch("usdt-ch", 1, "0", "0", "0", "0", true)
	usdt.Address = "TAddr1"
	usdt.Token = "USDT"
	usdc := ch("usdc-ch", 1, "0", "0", "0", "0", true)
	usdc.Address = "TAddr1"
	usdc.Token = "USDC"

	// 同一地址按代币挂两个通道, 额度消费不能互相串
	channels := []model.PaymentChannel{usdt, usdc}
	if got := PickChannelForToken(channels, "USDC"); got == nil || got.Name != "usdc-ch" {
		t.Fatal("应选中 USDC 绑定的通道")
	}
	if got := PickChannelForToken(channels, "USDT"); got == nil || got.Name != "usdt-ch" {
		t.Fatal("应选中 USDT 绑定的通道")
	}
	if PickChannelForToken(channels, "DAI") != nil {
		t.Error("地址未绑定该代币的通道时应返回 nil")
	}
}

func TestFilterChannelsUnlimited(t *testing.T) {
	channels := []model.PaymentChannel{
		ch("unlimited", 1, "0", "0", "0", "999999", true),
	}
	got := FilterChannels(channels, d("10"))
	if len(got) != 1 || !got[0].Unlimited {
		t.Fatal("daily_limit=0 的通道应视为不限额")
	}
}
