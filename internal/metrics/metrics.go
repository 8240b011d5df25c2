// Package metrics exposes the service's Prometheus collectors.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Registry holds the application-specific Prometheus collectors.
	Registry = prometheus.NewRegistry()

	// OrdersPlaced counts orders that were persisted and announced.
	OrdersPlaced = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "catalog",
			Subsystem: "orders",
			Name:      "placed_total",
			Help:      "Orders accepted, persisted and published.",
		},
	)

	// OrdersRejected counts admission-check rejections by business error kind.
	OrdersRejected = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "catalog",
			Subsystem: "orders",
			Name:      "rejected_total",
			Help:      "Orders rejected by the admission check.",
		},
		[]string{"kind"},
	)

	// OrphanedOrders counts orders persisted without a published event.
	OrphanedOrders = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "catalog",
			Subsystem: "orders",
			Name:      "orphaned_total",
			Help:      "Orders persisted whose order.placed event failed to publish.",
		},
	)

	// OrdersRepublished counts events re-sent for orphaned orders.
	OrdersRepublished = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "catalog",
			Subsystem: "orders",
			Name:      "republished_total",
			Help:      "order.placed events re-sent for unprocessed orders.",
		},
	)

	// PaymentsProcessed counts applied payment results by status.
	PaymentsProcessed = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "catalog",
			Subsystem: "payments",
			Name:      "processed_total",
			Help:      "Payment results applied, by reported status.",
		},
		[]string{"status"},
	)

	// UnknownOrders counts payment results referencing unknown orders.
	UnknownOrders = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "catalog",
			Subsystem: "payments",
			Name:      "unknown_order_total",
			Help:      "Payment results for order ids this service does not know.",
		},
	)

	// EntitlementsGranted counts library entries actually inserted.
	EntitlementsGranted = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "catalog",
			Subsystem: "library",
			Name:      "entitlements_granted_total",
			Help:      "New library entries created.",
		},
	)

	// ConsumerDeliveries counts consumed messages by acknowledgement outcome.
	ConsumerDeliveries = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "catalog",
			Subsystem: "consumer",
			Name:      "deliveries_total",
			Help:      "Consumed messages by outcome (ack, drop, requeue).",
		},
		[]string{"outcome"},
	)
)

func init() {
	Registry.MustRegister(
		OrdersPlaced,
		OrdersRejected,
		OrphanedOrders,
		OrdersRepublished,
		PaymentsProcessed,
		UnknownOrders,
		EntitlementsGranted,
		ConsumerDeliveries,
		prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}),
		prometheus.NewGoCollector(),
	)
}

// Handler returns an HTTP handler exposing the registered Prometheus metrics.
func Handler() http.Handler {
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{})
}
