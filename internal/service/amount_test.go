package service

import (
	"testing"

	"akx-core/pkg/errno"

	"github.com/shopspring/decimal"
)

func TestSuffixOf(t *testing.T) {
	cases := []struct {
		amount string
		want   int
	}{
		{"100", 0},
		{"100.001", 1},
		{"100.125", 125},
		{"100.999", 999},
		{"0.5", 500},
		{"99.1234", 123}, // 超出三位的部分截断
	}
	for _, c := range cases {
		amt, _ := decimal.NewFromString(c.amount)
		if got := SuffixOf(amt); got != c.want {
			t.Errorf("SuffixOf(%s) = %d, 期望 %d", c.amount, got, c.want)
		}
	}
}

func TestPickSuffixKeepsRequested(t *testing.T) {
	used := map[int]bool{1: true, 2: true}

	got, err := PickSuffix(125, used)
	if err != nil {
		t.Fatalf("PickSuffix 失败: %v", err)
	}
	if got != 125 {
		t.Errorf("原始尾数空闲时应保留, 得到 %d", got)
	}

	// 000 尾数空闲时同样保留
	got, err = PickSuffix(0, used)
	if err != nil {
		t.Fatalf("PickSuffix 失败: %v", err)
	}
	if got != 0 {
		t.Errorf("空闲的 000 尾数应保留, 得到 %d", got)
	}
}

func TestPickSuffixAvoidsCollision(t *testing.T) {
	used := map[int]bool{125: true}

	for i := 0; i < 50; i++ {
		got, err := PickSuffix(125, used)
		if err != nil {
			t.Fatalf("PickSuffix 失败: %v", err)
		}
		if got == 125 {
			t.Fatal("被占用的尾数不应被选中")
		}
		if got < 1 || got > 999 {
			t.Fatalf("尾数超出范围: %d", got)
		}
	}
}

func TestPickSuffixOnlyOneFree(t *testing.T) {
	// 只留 777 空闲
	used := make(map[int]bool, 999)
	for s := 1; s <= 999; s++ {
		if s != 777 {
			used[s] = true
		}
	}

	got, err := PickSuffix(1, used)
	if err != nil {
		t.Fatalf("PickSuffix 失败: %v", err)
	}
	if got != 777 {
		t.Errorf("唯一空闲的尾数应被选中, 得到 %d", got)
	}
}

func TestPickSuffixExhausted(t *testing.T) {
	used := make(map[int]bool, 999)
	for s := 1; s <= 999; s++ {
		used[s] = true
	}

	_, err := PickSuffix(1, used)
	if err != errno.ErrAmountSuffixExhausted {
		t.Errorf("尾数耗尽应返回容量错误, 得到 %v", err)
	}
}
