package notification

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Delivery outcomes
const (
	outcomeSent     = "sent"
	outcomeSkipped  = "skipped"
	outcomeFailed   = "failed"
	outcomeEnqueued = "enqueued"
)

var (
	// deliveries counts channel deliveries by channel and outcome.
	deliveries = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "skillbarter_notification_deliveries_total",
		Help: "Total number of notification channel deliveries by channel and outcome",
	}, []string{"channel", "outcome"})

	// jobs counts notification jobs by outcome.
	jobs = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "skillbarter_notification_jobs_total",
		Help: "Total number of notification jobs by outcome",
	}, []string{"outcome"})
)

func recordDelivery(channel, outcome string) {
	deliveries.WithLabelValues(channel, outcome).Inc()
}
