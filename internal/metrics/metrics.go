package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// OrdersTotal counts escrow orders by terminal outcome
	OrdersTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "swap_orders_total",
			Help: "Total number of swap orders observed, by outcome",
		},
		[]string{"outcome"},
	)

	// SubmissionsTotal counts target-ledger submissions by result
	SubmissionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "swap_relay_submissions_total",
			Help: "Total number of target-ledger submissions",
		},
		[]string{"result"},
	)

	// SubmissionRetries counts retry attempts per failure class
	SubmissionRetries = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "swap_relay_retries_total",
			Help: "Total number of submission retries",
		},
		[]string{"reason"},
	)

	// DeliveryDuration tracks end-to-end delivery time per order
	DeliveryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "swap_relay_delivery_duration_seconds",
			Help:    "Time from event pickup to target-ledger acceptance",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"result"},
	)

	// InFlightDeliveries tracks orders currently being relayed
	InFlightDeliveries = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "swap_relay_in_flight",
			Help: "Number of orders currently being relayed",
		},
	)

	// EventsObserved counts escrow events seen by the relayer
	EventsObserved = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "swap_escrow_events_total",
			Help: "Total number of escrow ledger events observed",
		},
		[]string{"event_type"},
	)

	// ErrorsTotal counts errors by component
	ErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "swap_errors_total",
			Help: "Total number of errors",
		},
		[]string{"component", "error_type"},
	)

	// RelayCursor tracks the last escrow event sequence processed
	RelayCursor = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "swap_relay_cursor",
			Help: "Last escrow event sequence processed by the relayer",
		},
	)
)
