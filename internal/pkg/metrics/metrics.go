// Package metrics 定义两个服务暴露在 /metrics 上的 Prometheus 指标。
// 所有方法都允许 nil 接收者，测试中可以直接传 nil。
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// InventoryMetrics 是库存服务的指标。
type InventoryMetrics struct {
	reservations *prometheus.CounterVec
	lockWait     prometheus.Histogram
}

func NewInventoryMetrics(reg prometheus.Registerer) *InventoryMetrics {
	m := &InventoryMetrics{
		reservations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "inventory",
			Name:      "stock_reservations_total",
			Help:      "Stock reservation attempts by result.",
		}, []string{"result"}),
		lockWait: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "inventory",
			Name:      "reserve_lock_wait_seconds",
			Help:      "Time spent waiting for the per-product lock.",
			Buckets:   prometheus.ExponentialBuckets(0.0005, 2, 14),
		}),
	}
	reg.MustRegister(m.reservations, m.lockWait)
	return m
}

func (m *InventoryMetrics) ObserveReservation(result string) {
	if m == nil {
		return
	}
	m.reservations.WithLabelValues(result).Inc()
}

func (m *InventoryMetrics) ObserveLockWait(d time.Duration) {
	if m == nil {
		return
	}
	m.lockWait.Observe(d.Seconds())
}

// OrderMetrics 是订单服务的指标。
type OrderMetrics struct {
	creations       *prometheus.CounterVec
	inventoryCalls  *prometheus.HistogramVec
	inconsistencies prometheus.Counter
}

func NewOrderMetrics(reg prometheus.Registerer) *OrderMetrics {
	m := &OrderMetrics{
		creations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "order",
			Name:      "creations_total",
			Help:      "Order creation requests by outcome.",
		}, []string{"outcome"}),
		inventoryCalls: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "order",
			Name:      "inventory_call_duration_seconds",
			Help:      "Latency of calls to the inventory service.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"operation", "outcome"}),
		inconsistencies: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "order",
			Name:      "reservation_inconsistencies_total",
			Help:      "Stock reserved on the inventory service without a persisted order.",
		}),
	}
	reg.MustRegister(m.creations, m.inventoryCalls, m.inconsistencies)
	return m
}

func (m *OrderMetrics) ObserveCreation(outcome string) {
	if m == nil {
		return
	}
	m.creations.WithLabelValues(outcome).Inc()
}

func (m *OrderMetrics) ObserveInventoryCall(operation, outcome string, d time.Duration) {
	if m == nil {
		return
	}
	m.inventoryCalls.WithLabelValues(operation, outcome).Observe(d.Seconds())
}

func (m *OrderMetrics) IncInconsistency() {
	if m == nil {
		return
	}
	m.inconsistencies.Inc()
}
