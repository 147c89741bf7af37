package monitor

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// BusinessMetrics 定义业务监控指标
type BusinessMetrics struct {
	OrdersCreatedTotal    *prometheus.CounterVec
	OrdersSettledTotal    *prometheus.CounterVec
	DepositAmountTotal    *prometheus.CounterVec
	WithdrawAmountTotal   *prometheus.CounterVec
	WebhookDeliveredTotal *prometheus.CounterVec
	CollectJobDuration    *prometheus.HistogramVec
	SweptAmountTotal      *prometheus.CounterVec
	ScanLagBlocks         *prometheus.GaugeVec
	UnmatchedTransfers    *prometheus.CounterVec
}

// Global Metrics Instance
var Business *BusinessMetrics

// InitBusinessMetrics 初始化业务指标
// promauto 重复注册同名指标会 panic, 已初始化过就直接返回
func InitBusinessMetrics() {
	if Business != nil {
		return
	}
	Business = &BusinessMetrics{
		OrdersCreatedTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "akx_orders_created_total",
			Help: "The total number of orders created",
		}, []string{"order_type", "chain"}),
		OrdersSettledTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "akx_orders_settled_total",
			Help: "The total number of orders reaching a terminal status",
		}, []string{"order_type", "status"}),
		DepositAmountTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "akx_deposit_amount_total",
			Help: "The total amount of settled deposits",
		}, []string{"chain", "token"}),
		WithdrawAmountTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "akx_withdraw_amount_total",
			Help: "The total amount of settled withdrawals",
		}, []string{"chain", "token"}),
		WebhookDeliveredTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "akx_webhook_delivered_total",
			Help: "Webhook delivery attempts by result",
		}, []string{"result"}),
		CollectJobDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "akx_collect_job_duration_seconds",
			Help:    "Duration of collection executor runs",
			Buckets: prometheus.DefBuckets,
		}, []string{"chain"}),
		SweptAmountTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "akx_swept_amount_total",
			Help: "Total token amount swept to the cold wallet",
		}, []string{"chain", "token"}),
		ScanLagBlocks: promauto.NewGaugeVec(prometheus.GaugeOpts{
			Name: "akx_scan_lag_blocks",
			Help: "Blocks between chain head and the persisted scan cursor",
		}, []string{"chain"}),
		UnmatchedTransfers: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "akx_unmatched_transfers_total",
			Help: "Observed transfers to watched addresses that matched no order",
		}, []string{"chain"}),
	}
}
