// Package metrics 汇总各服务暴露在 /metrics 上的业务指标。
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	// OrderSagaTotal 按流程 (create/cancel/update) 与结果统计。
	OrderSagaTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "nexus",
		Subsystem: "order",
		Name:      "saga_total",
		Help:      "Order saga executions by flow and outcome.",
	}, []string{"flow", "outcome"})

	// StockDriftTotal 统计订单已提交但库存预留/释放失败的次数。
	StockDriftTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "nexus",
		Subsystem: "order",
		Name:      "stock_drift_total",
		Help:      "Stock reservations or releases that failed after the order was committed.",
	}, []string{"direction", "kind"})

	EventsPublishedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "nexus",
		Subsystem: "order",
		Name:      "events_published_total",
		Help:      "Order lifecycle events handed to the broker.",
	}, []string{"event_type", "result"})

	EventsConsumedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "nexus",
		Subsystem: "notification",
		Name:      "events_consumed_total",
		Help:      "Order lifecycle events processed by the consumer.",
	}, []string{"event_type", "result"})

	NotificationsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "nexus",
		Subsystem: "notification",
		Name:      "dispatched_total",
		Help:      "Notifications by type and final delivery status.",
	}, []string{"type", "status"})

	StockAdjustTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "nexus",
		Subsystem: "inventory",
		Name:      "adjust_total",
		Help:      "Stock adjustments by direction and result.",
	}, []string{"direction", "result"})
)

func init() {
	prometheus.MustRegister(
		OrderSagaTotal,
		StockDriftTotal,
		EventsPublishedTotal,
		EventsConsumedTotal,
		NotificationsTotal,
		StockAdjustTotal,
	)
}
