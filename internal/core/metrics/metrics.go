// Package metrics holds the Prometheus collectors exported by trapmapper.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Delivery result label values.
const (
	ResultSuccess   = "success"
	ResultFailure   = "failure"
	ResultDiscarded = "discarded"
)

var (
	// Trap handling metrics
	TrapsReceived = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "trapmapper_traps_received_total",
			Help: "Total number of SNMP notifications received",
		},
	)

	TrapsDropped = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "trapmapper_traps_dropped_total",
			Help: "Total number of SNMP notifications dropped before rule evaluation",
		},
		[]string{"reason"},
	)

	RecordsDispatched = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "trapmapper_records_dispatched_total",
			Help: "Total number of action records enqueued for delivery",
		},
		[]string{"event_type"},
	)

	EvalErrors = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "trapmapper_eval_errors_total",
			Help: "Total number of rule condition evaluation failures",
		},
	)

	// Delivery metrics
	Deliveries = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "trapmapper_deliveries_total",
			Help: "Total number of action records leaving the delivery queue",
		},
		[]string{"result"},
	)

	DeliveryDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "trapmapper_delivery_duration_seconds",
			Help:    "Duration of individual sink executions in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)

	QueueDepth = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "trapmapper_queue_depth",
			Help: "Current number of records waiting in the delivery queue",
		},
	)

	// Point trigger metrics
	TriggerFires = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "trapmapper_trigger_fires_total",
			Help: "Total number of point trigger action executions",
		},
		[]string{"result"},
	)
)
