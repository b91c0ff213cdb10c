package pipeline

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	cyclesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "fluxrelay_cycles_total",
		Help: "The total number of delivery cycles by result",
	}, []string{"result"})

	entriesFetched = promauto.NewCounter(prometheus.CounterOpts{
		Name: "fluxrelay_entries_fetched_total",
		Help: "The total number of unread entries fetched from Miniflux",
	})

	deliveriesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "fluxrelay_deliveries_total",
		Help: "The total number of messages sent to chat destinations by sink and result",
	}, []string{"sink", "result"})

	entriesAcknowledged = promauto.NewCounter(prometheus.CounterOpts{
		Name: "fluxrelay_entries_acknowledged_total",
		Help: "The total number of entries marked as read after delivery",
	})

	cycleDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "fluxrelay_cycle_duration_seconds",
		Help:    "Duration of a delivery cycle",
		Buckets: prometheus.ExponentialBuckets(0.1, 2, 12), // Start at 100ms, double each bucket, 12 buckets
	})

	summarizerRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "fluxrelay_summarizer_requests_total",
		Help: "The total number of digest requests sent to the language model by result",
	}, []string{"result"})
)

func resultLabel(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
