// internal/pkg/metrics/metrics.go
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// outbox 中继与库存消费端的核心指标。
var (
	OutboxPublished = promauto.NewCounter(prometheus.CounterOpts{
		Name: "outbox_events_published_total",
		Help: "Number of outbox events successfully delivered to the broker.",
	})

	OutboxRetries = promauto.NewCounter(prometheus.CounterOpts{
		Name: "outbox_events_retried_total",
		Help: "Number of failed delivery attempts that will be retried.",
	})

	OutboxDead = promauto.NewCounter(prometheus.CounterOpts{
		Name: "outbox_events_dead_total",
		Help: "Number of outbox events that exhausted their retry budget.",
	})

	ConsumerProcessed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "consumer_events_processed_total",
		Help: "Number of events applied by the inventory worker, by event type.",
	}, []string{"event_type"})

	ConsumerDuplicates = promauto.NewCounter(prometheus.CounterOpts{
		Name: "consumer_events_duplicate_total",
		Help: "Number of redelivered events skipped by the dedup store.",
	})

	ConsumerDeadLettered = promauto.NewCounter(prometheus.CounterOpts{
		Name: "consumer_events_dead_lettered_total",
		Help: "Number of events forwarded to the dead letter topic.",
	})

	ReservationRejections = promauto.NewCounter(prometheus.CounterOpts{
		Name: "inventory_reservation_rejections_total",
		Help: "Number of reservations rejected for insufficient stock.",
	})
)
