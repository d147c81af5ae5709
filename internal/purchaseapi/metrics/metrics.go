package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	once sync.Once

	// ConsumedTotal — общее число сообщений, прочитанных из топика.
	ConsumedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "purchaseapi",
		Subsystem: "consumer",
		Name:      "consumed_total",
		Help:      "Total number of messages polled from the purchases topic",
	})

	// PersistedTotal — число впервые записанных покупок.
	PersistedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "purchaseapi",
		Subsystem: "consumer",
		Name:      "persisted_total",
		Help:      "Total number of purchases inserted into storage",
	})

	// DuplicatesTotal — повторные доставки, погашенные идемпотентностью.
	DuplicatesTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "purchaseapi",
		Subsystem: "consumer",
		Name:      "duplicates_total",
		Help:      "Redeliveries absorbed by the idempotent store",
	})

	// PoisonTotal — «ядовитые» сообщения, пропущенные с коммитом.
	PoisonTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "purchaseapi",
		Subsystem: "consumer",
		Name:      "poison_total",
		Help:      "Messages skipped as undecodable or schema-invalid",
	})

	// RetriesTotal — сообщения, оставленные на передоставку.
	RetriesTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "purchaseapi",
		Subsystem: "consumer",
		Name:      "retries_total",
		Help:      "Messages left uncommitted for broker redelivery",
	})

	// PersistLatency — задержка от poll до подтверждения записи.
	PersistLatency = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: "purchaseapi",
		Subsystem: "consumer",
		Name:      "persist_latency_seconds",
		Help:      "Latency from polling a message to durable persistence (seconds)",
		Buckets:   prometheus.DefBuckets,
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
			ConsumedTotal,
			PersistedTotal,
			DuplicatesTotal,
			PoisonTotal,
			RetriesTotal,
			PersistLatency,
		)
	})
}
