package messaging

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	publishedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "settlement_events_published_total",
			Help: "Events published to the settlement exchange, by topic.",
		},
		[]string{"topic"},
	)

	consumedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "settlement_events_consumed_total",
			Help: "Deliveries processed by settlement consumers, by queue and outcome.",
		},
		[]string{"queue", "outcome"},
	)
)
