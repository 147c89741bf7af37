package monitor

import (
	"testing"
)

func TestInitBusinessMetricsIdempotent(t *testing.T) {
	InitBusinessMetrics()
	first := Business
	if first == nil {
		t.Fatal("初始化后 Business 不应为 nil")
	}

	// 重复调用不应再次注册 (promauto 重复注册会 panic), 也不应换实例
	InitBusinessMetrics()
	if Business != first {
		t.Error("重复初始化不应替换指标实例")
	}
}
