package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	once sync.Once

	// OrdersAcceptedTotal — заказы, подтверждённые брокером.
	OrdersAcceptedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "gateway",
		Subsystem: "orders",
		Name:      "accepted_total",
		Help:      "Buy orders acknowledged by the Kafka cluster",
	})

	// OrdersRejectedTotal — заказы, отклонённые валидацией.
	OrdersRejectedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "gateway",
		Subsystem: "orders",
		Name:      "rejected_total",
		Help:      "Buy orders rejected before publishing",
	})

	// OrdersFailedTotal — заказы, не доставленные брокеру.
	OrdersFailedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "gateway",
		Subsystem: "orders",
		Name:      "failed_total",
		Help:      "Buy orders the broker failed to acknowledge",
	})

	// PublishLatency — задержка от приёма запроса до ack брокера.
	PublishLatency = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: "gateway",
		Subsystem: "orders",
		Name:      "publish_latency_seconds",
		Help:      "Latency from accepting a buy order to broker ack (seconds)",
		Buckets:   prometheus.DefBuckets,
	})

	// CacheHitsTotal / CacheMissesTotal — эффективность read-through кэша.
	CacheHitsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "gateway",
		Subsystem: "cache",
		Name:      "hits_total",
		Help:      "Purchase list reads served from Redis",
	})
	CacheMissesTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "gateway",
		Subsystem: "cache",
		Name:      "misses_total",
		Help:      "Purchase list reads that fell through to purchase-api",
	})
)

// Register регистрирует все метрики в заданном реестре.
// Можно вызвать без аргументов, чтобы зарегистрировать в DefaultRegisterer.
func Register(registerers ...prometheus.Registerer) {
	once.Do(func() {
		var reg prometheus.Registerer
		if len(registerers) > 0 && registerers[0] != nil {
			reg = registerers[0]
		} else {
			reg = prometheus.DefaultRegisterer
		}
		reg.MustRegister(
			OrdersAcceptedTotal,
			OrdersRejectedTotal,
			OrdersFailedTotal,
			PublishLatency,
			CacheHitsTotal,
			CacheMissesTotal,
		)
	})
}
